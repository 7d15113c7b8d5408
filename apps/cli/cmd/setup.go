package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sarathm09/vibranium/packages/assertions"
	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/config"
	"github.com/sarathm09/vibranium/packages/core/env"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/core/template"
	"github.com/sarathm09/vibranium/packages/http"
	"github.com/sarathm09/vibranium/packages/sandbox"
	"github.com/sarathm09/vibranium/packages/source"
	"github.com/spf13/cobra"
)

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// filterFlags are the selection flags shared by run, list, validate and mock.
type filterFlags struct {
	collections string
	scenarios   string
	apis        string
	search      bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.collections, "collections", "c", getEnvString("VIBRANIUM_COLLECTIONS", compiler.All), "Comma-separated collections to include (env: VIBRANIUM_COLLECTIONS)")
	cmd.Flags().StringVarP(&f.scenarios, "scenarios", "s", getEnvString("VIBRANIUM_SCENARIOS", compiler.All), "Comma-separated scenarios to include (env: VIBRANIUM_SCENARIOS)")
	cmd.Flags().StringVarP(&f.apis, "apis", "a", getEnvString("VIBRANIUM_APIS", compiler.All), "Comma-separated endpoints to include (env: VIBRANIUM_APIS)")
	cmd.Flags().BoolVar(&f.search, "search", false, "Match names by substring instead of exactly")

	_ = cmd.RegisterFlagCompletionFunc("collections", completeNames(collectionNames))
	_ = cmd.RegisterFlagCompletionFunc("scenarios", completeNames(scenarioNames))
	_ = cmd.RegisterFlagCompletionFunc("apis", completeNames(endpointNames))
}

func (f *filterFlags) filter() compiler.Filter {
	mode := compiler.ModeExact
	if f.search {
		mode = compiler.ModeSearch
	}
	return compiler.Filter{
		Collections: compiler.SplitList(f.collections),
		Scenarios:   compiler.SplitList(f.scenarios),
		APIs:        compiler.SplitList(f.apis),
		Mode:        mode,
	}
}

// loadConfig reads the config file named by --config, or the first known
// file in the working directory, falling back to defaults.
func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configFlag)
}

// newCompiler returns a compiler reading scenarios and payloads from the
// configured directories.
func newCompiler(cfg *config.Config) *compiler.Compiler {
	return compiler.New(
		source.NewFiles(cfg.ScenariosDir),
		compiler.WithPayloadLoader(&source.Payloads{Dir: cfg.PayloadsDir}),
	)
}

// compileScenarios compiles the workspace, or restores a frozen list when
// frozen is set.
func compileScenarios(ctx context.Context, c *compiler.Compiler, frozen string, f compiler.Filter) ([]*scenario.Scenario, error) {
	if frozen == "" {
		return c.Compile(ctx, f)
	}
	file, err := os.Open(frozen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compiler.ErrCompilation, err)
	}
	defer file.Close()
	return c.CompileFrozen(file, f)
}

// newClient builds the HTTP client and registers every configured system.
func newClient(cfg *config.Config) (*http.Client, error) {
	client := http.NewClient(
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithDefaultSystem(cfg.DefaultSystem),
	)
	for _, name := range cfg.SystemNames() {
		s := cfg.Systems[name]
		sys := http.System{Name: name, BaseURL: s.BaseURL, Headers: s.Headers}
		if s.Auth != nil {
			sys.Auth = &http.Auth{
				Type:     http.AuthType(strings.ToLower(s.Auth.Type)),
				Username: s.Auth.Username,
				Password: s.Auth.Password,
				Token:    s.Auth.Token,
				OAuth2:   s.Auth.OAuth2,
			}
		}
		if err := client.AddSystem(sys); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
	}
	return client, nil
}

// newEngines returns the template engine, the script sandbox and the
// assertion evaluator wired together.
func newEngines(cfg *config.Config) (*template.Engine, *sandbox.Sandbox, *assertions.Evaluator) {
	templates := template.New(template.WithDatasets(cfg.Datasets))
	scripts := sandbox.New(sandbox.WithTimeout(cfg.ScriptTimeoutDuration()))
	evaluator := assertions.NewEvaluator(
		assertions.WithTemplates(templates),
		assertions.WithExpressions(scripts),
		assertions.WithSchemaLoader(&source.Schemas{Dir: cfg.SchemasDir}),
	)
	return templates, scripts, evaluator
}

// collectVariables merges the variable sources in precedence order: config,
// .env file, prefixed process environment, then --var flags.
func collectVariables(cfg *config.Config, envFile string, vars []string) (map[string]any, error) {
	var dotenv map[string]any
	if envFile != "" {
		loaded, err := env.LoadDotEnv(envFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		dotenv = loaded
	}
	flags, err := env.ParseVars(vars)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	return env.MergeVariables(cfg.Variables, dotenv, env.LoadSystemEnv(env.SystemPrefix), flags), nil
}
