package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/spf13/cobra"
)

var validateFilters filterFlags

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and scenario dependencies without executing",
	Long: `Validate the configuration, compile the selected scenarios and check
that every dependency points at an endpoint that exists.

Examples:
  vibranium validate
  vibranium validate -c shop`,
	Args: cobra.NoArgs,
	RunE: validateCommand,
}

func init() {
	validateFilters.register(validateCmd)
}

func validateCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(""); err != nil {
		return err
	}

	c := newCompiler(cfg)
	scenarios, err := c.Compile(cmd.Context(), validateFilters.filter())
	if err != nil {
		return err
	}

	problems := checkDependencies(cmd.Context(), c, scenarios)
	for _, p := range problems {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", p)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %d unresolved dependencies", compiler.ErrCompilation, len(problems))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %d scenarios, %d endpoints\n", len(scenarios), len(compiler.Endpoints(scenarios)))
	return nil
}

// checkDependencies looks up the target of every dependency, including
// those declared in generate blocks.
func checkDependencies(ctx context.Context, c *compiler.Compiler, scenarios []*scenario.Scenario) []error {
	var problems []error
	check := func(from scenario.Ref, dep scenario.Dependency) {
		target := dep.Target(from)
		if _, _, err := c.Lookup(ctx, target); err != nil {
			if errors.Is(err, compiler.ErrNotFound) {
				err = fmt.Errorf("%s depends on missing endpoint %s", from, target)
			}
			problems = append(problems, err)
		}
	}
	for _, s := range scenarios {
		for _, ep := range s.Endpoints {
			for _, dep := range ep.Dependencies {
				check(s.Ref(ep.Name), dep)
			}
		}
	}
	return problems
}
