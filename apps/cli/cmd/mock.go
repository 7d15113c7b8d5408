package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/mock"
	"github.com/spf13/cobra"
)

var (
	mockFilters   filterFlags
	mockPortFlag  int
	mockDelayFlag string
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start a mock server from endpoint mock blocks",
	Long: `Start an HTTP mock server that answers every compiled endpoint declaring
a mock block with its status, headers and body.

The mock server:
- Routes on the endpoint method and url path
- Matches any value in path segments holding {placeholders}
- Substitutes captured segments into the mock body
- Honors the mock delay, plus an optional global delay

Examples:
  vibranium mock
  vibranium mock --port 3000 -c shop
  vibranium mock --delay 100ms -v`,
	Args: cobra.NoArgs,
	RunE: mockCommand,
}

func init() {
	mockFilters.register(mockCmd)
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("VIBRANIUM_MOCK_PORT", 3000), "Port to run the mock server on (env: VIBRANIUM_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	scenarios, err := newCompiler(cfg).Compile(cmd.Context(), mockFilters.filter())
	if err != nil {
		return err
	}

	server := mock.NewServer(
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithVerbose(verboseFlag > 0),
		mock.WithTemplates(template.New(template.WithDatasets(cfg.Datasets))),
	)
	if server.Load(scenarios) == 0 {
		return fmt.Errorf("no endpoints with a mock block found in %s", cfg.ScenariosDir)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d routes from %d scenarios\n", len(server.Routes()), len(scenarios))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}
