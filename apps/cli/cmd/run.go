package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/config"
	"github.com/sarathm09/vibranium/packages/core/runner"
	"github.com/sarathm09/vibranium/packages/db"
	"github.com/sarathm09/vibranium/packages/logging"
	"github.com/sarathm09/vibranium/packages/output"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run API test scenarios",
	Long: `Compile the scenarios in the workspace and execute them as one job.

Examples:
  vibranium run
  vibranium run -c shop -s orders
  vibranium run -a create --search
  vibranium run --system staging --var userId=42 --env-file .env
  vibranium run --output junit --output-file report.xml
  vibranium run --freeze frozen.json
  vibranium run --frozen frozen.json
  vibranium run --watch`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	runFilters      filterFlags
	systemFlag      string
	syncFlag        bool
	concurrencyFlag int
	rpsFlag         float64
	varFlags        []string
	envFileFlag     string
	outputFlag      string
	outputFileFlag  string
	freezeFlag      string
	frozenFlag      string
	watchFlag       bool
)

func init() {
	runFilters.register(runCmd)

	// Execution flags
	runCmd.Flags().StringVar(&systemFlag, "system", getEnvString("VIBRANIUM_SYSTEM", ""), "System used by endpoints that do not name one (env: VIBRANIUM_SYSTEM)")
	runCmd.Flags().BoolVar(&syncFlag, "sync", getEnvBool("VIBRANIUM_SYNC", false), "Run scenarios, endpoints and repeats one at a time (env: VIBRANIUM_SYNC)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("VIBRANIUM_CONCURRENCY", 0), "Maximum requests in flight (env: VIBRANIUM_CONCURRENCY)")
	runCmd.Flags().Float64Var(&rpsFlag, "rps", 0, "Maximum requests started per second (0 means unlimited)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a variable as key=value (repeatable)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("VIBRANIUM_ENV_FILE", ""), "Path to .env file with variables (env: VIBRANIUM_ENV_FILE)")

	// Output flags
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("VIBRANIUM_OUTPUT", "console"), "Output format: "+strings.Join(output.Formats, ", ")+" (env: VIBRANIUM_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("VIBRANIUM_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: VIBRANIUM_OUTPUT_FILE)")

	// Compilation flags
	runCmd.Flags().StringVar(&freezeFlag, "freeze", "", "Write the compiled scenarios to a file and exit")
	runCmd.Flags().StringVar(&frozenFlag, "frozen", "", "Run scenarios from a file written by --freeze")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch scenario files and re-run on change")
}

// job holds everything needed to run, and re-run, the selected scenarios.
type job struct {
	cfg      *config.Config
	compiler *compiler.Compiler
	filter   compiler.Filter
	settings *runner.Config
	opts     []runner.Option
}

func runCommand(cmd *cobra.Command, args []string) error {
	if freezeFlag != "" && frozenFlag != "" {
		return withExitCode(ExitUsageError, fmt.Errorf("--freeze and --frozen cannot be combined"))
	}
	if watchFlag && frozenFlag != "" {
		return withExitCode(ExitUsageError, fmt.Errorf("--watch has nothing to watch with --frozen"))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)
	if err := cfg.Validate(systemFlag); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCompiler(cfg)
	if freezeFlag != "" {
		return freeze(ctx, c, runFilters.filter())
	}

	variables, err := collectVariables(cfg, envFileFlag, varFlags)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	templates, scripts, evaluator := newEngines(cfg)

	opts := []runner.Option{
		runner.WithTransport(client),
		runner.WithTemplates(templates),
		runner.WithEvaluator(evaluator),
		runner.WithScripts(scripts),
	}
	if cfg.Database != "" {
		store, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		defer store.Close()
		opts = append(opts, runner.WithJobStore(store), runner.WithResponseCache(store))
	} else {
		// shared so cached responses survive watch re-runs
		opts = append(opts, runner.WithResponseCache(runner.NewMemoryCache()))
	}

	system := systemFlag
	if system == "" {
		system = cfg.DefaultSystem
	}
	j := &job{
		cfg:      cfg,
		compiler: c,
		filter:   runFilters.filter(),
		opts:     opts,
		settings: &runner.Config{
			Concurrency:         cfg.Concurrency,
			PollInterval:        cfg.PollIntervalDuration(),
			RequestsPerSecond:   cfg.RequestsPerSecond,
			RepeatUntilTimeout:  cfg.RepeatUntilTimeoutDuration(),
			RepeatUntilInterval: cfg.RepeatUntilIntervalDuration(),
			Sync:                cfg.GetSync(),
			System:              system,
			Language:            cfg.Language,
			Variables:           variables,
		},
	}

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOut()

	passed, err := j.run(ctx, out)
	if err != nil {
		return err
	}
	if !watchFlag {
		if !passed {
			return withExitCode(ExitTestFailure, errEndpointsFailed)
		}
		return nil
	}
	return j.watch(ctx, cmd, out)
}

// applyRunFlags overrides config values with explicitly set flags.
func applyRunFlags(cfg *config.Config) {
	if concurrencyFlag > 0 {
		cfg.Concurrency = concurrencyFlag
	}
	if rpsFlag > 0 {
		cfg.RequestsPerSecond = rpsFlag
	}
	if syncFlag {
		cfg.Sync = config.BoolPtr(true)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		cfg.Verbose = config.BoolPtr(true)
	}
}

func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	if outputFileFlag == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(outputFileFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func freeze(ctx context.Context, c *compiler.Compiler, f compiler.Filter) error {
	scenarios, err := c.Compile(ctx, f)
	if err != nil {
		return err
	}
	file, err := os.Create(freezeFlag)
	if err != nil {
		return fmt.Errorf("cannot create frozen file: %w", err)
	}
	defer file.Close()
	if err := compiler.Freeze(file, scenarios); err != nil {
		return fmt.Errorf("writing frozen scenarios: %w", err)
	}
	logging.Info("Compiler", "froze %d scenarios to %s", len(scenarios), freezeFlag)
	return nil
}

// run compiles and executes one job, writing it with a fresh formatter.
func (j *job) run(ctx context.Context, w io.Writer) (bool, error) {
	formatter, err := output.New(outputFlag, w, j.cfg.GetVerbose(), j.cfg.GetNoColor() || quietFlag)
	if err != nil {
		return false, withExitCode(ExitUsageError, err)
	}
	formatter.FormatHeader(version)

	scenarios, err := compileScenarios(ctx, j.compiler, frozenFlag, j.filter)
	if err != nil {
		formatter.FormatError(err)
		return false, err
	}
	if len(scenarios) == 0 {
		logging.Warn("Compiler", "no scenarios matched in %s", j.cfg.ScenariosDir)
	}

	start := time.Now()
	r := runner.NewRunner(j.settings, append(j.opts, runner.WithLookup(j.compiler))...)
	result, err := r.RunJob(ctx, scenarios)
	if err != nil {
		formatter.FormatError(err)
		return false, err
	}

	formatter.FormatJob(result)
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(time.Since(start)); err != nil {
			return false, fmt.Errorf("error writing output: %w", err)
		}
	}
	return result.Passed(), nil
}

// watch re-runs the job whenever a scenario or payload document changes,
// until ctx is cancelled.
func (j *job) watch(ctx context.Context, cmd *cobra.Command, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range []string{j.cfg.ScenariosDir, j.cfg.PayloadsDir} {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if err := watcher.Add(path); err != nil {
					logging.Warn("Watch", "failed to watch %s: %v", path, err)
				}
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := make(chan string, 1)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if !isScenarioFile(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case rerun <- name:
				default:
				}
			})

		case name := <-rerun:
			fmt.Fprintf(cmd.ErrOrStderr(), "\n\nFile changed: %s\nRe-running scenarios...\n\n", name)
			// compiled scenarios are stale once a file changes
			j.compiler = newCompiler(j.cfg)
			if _, err := j.run(ctx, w); err != nil {
				logging.Error("Watch", err, "re-run failed")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watch", err, "watcher error")
		}
	}
}

func isScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
