package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/output"
	"github.com/spf13/cobra"
)

var (
	listFilters  filterFlags
	listFlatFlag bool
	listJSONFlag bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List compiled collections, scenarios and endpoints",
	Long: `List the endpoints the current filters select, as a tree or one per line.

Examples:
  vibranium list
  vibranium list -c shop --flat
  vibranium list -a user --search --json`,
	Args: cobra.NoArgs,
	RunE: listCommand,
}

func init() {
	listFilters.register(listCmd)
	listCmd.Flags().BoolVar(&listFlatFlag, "flat", false, "Print one collection.scenario.endpoint per line")
	listCmd.Flags().BoolVar(&listJSONFlag, "json", false, "Print the tree as JSON")
}

func listCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	scenarios, err := newCompiler(cfg).Compile(cmd.Context(), listFilters.filter())
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No scenarios found in %s\n", cfg.ScenariosDir)
		return nil
	}

	w := cmd.OutOrStdout()
	switch {
	case listJSONFlag:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(compiler.Tree(scenarios))
	case listFlatFlag:
		for _, e := range compiler.Endpoints(scenarios) {
			fmt.Fprintf(w, "%-50s %-7s %s\n", e.Ref, e.Endpoint.HTTPMethod(), e.Endpoint.URL)
		}
	default:
		output.NewConsoleFormatter(output.WithWriter(w), output.WithNoColor(noColorFlag)).
			FormatTree(compiler.Tree(scenarios))
	}
	return nil
}
