package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sarathm09/vibranium/packages/logging"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	verboseFlag int // 0=warnings, 1=-v info, 2=-vv debug
	quietFlag   bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "vibranium",
	Short: "Declarative API tests from JSON scenarios.",
	Long: `vibranium runs API test scenarios written as JSON documents. Endpoints
declare their dependencies, expectations and templated payloads, and
vibranium executes them concurrently in dependency order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.InitForCLI(logLevel(), os.Stderr)
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errEndpointsFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCodeFor(err))
}

func logLevel() logging.LogLevel {
	if name := os.Getenv("VIBRANIUM_LOG_LEVEL"); name != "" {
		return logging.ParseLevel(name)
	}
	switch {
	case quietFlag:
		return logging.LevelError
	case verboseFlag >= 2:
		return logging.LevelDebug
	case verboseFlag == 1:
		return logging.LevelInfo
	}
	return logging.LevelWarn
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("VIBRANIUM_CONFIG", ""), "Path to config file (env: VIBRANIUM_CONFIG)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for more detail)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("VIBRANIUM_QUIET", false), "Suppress all output except errors (env: VIBRANIUM_QUIET)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("VIBRANIUM_NO_COLOR", false), "Disable colored output (env: VIBRANIUM_NO_COLOR)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
