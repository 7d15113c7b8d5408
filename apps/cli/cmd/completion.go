package cmd

import (
	"context"
	"sort"
	"strings"

	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for vibranium.

Besides commands and flags, the scripts complete the names given to
--collections, --scenarios and --apis by reading the scenarios directory
of the current workspace.

Bash:
  $ source <(vibranium completion bash)

Zsh:
  $ vibranium completion zsh > "${fpath[1]}/_vibranium"

Fish:
  $ vibranium completion fish > ~/.config/fish/completions/vibranium.fish

PowerShell:
  PS> vibranium completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

type nameKind int

const (
	collectionNames nameKind = iota
	scenarioNames
	endpointNames
)

// workspaceNames lists the distinct names of one kind found in the
// workspace scenarios. Errors yield no names.
func workspaceNames(ctx context.Context, kind nameKind) []string {
	cfg, err := loadConfig()
	if err != nil {
		return nil
	}
	scenarios, err := newCompiler(cfg).Compile(ctx, compiler.Filter{})
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, s := range scenarios {
		switch kind {
		case collectionNames:
			seen[s.Collection] = struct{}{}
		case scenarioNames:
			seen[s.Name] = struct{}{}
		case endpointNames:
			for _, ep := range s.Endpoints {
				seen[ep.Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// completeNames completes the last element of a comma separated list.
func completeNames(kind nameKind) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix := ""
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix = toComplete[:i+1]
		}
		var out []string
		for _, name := range workspaceNames(context.Background(), kind) {
			if strings.HasPrefix(prefix+name, toComplete) {
				out = append(out, prefix+name)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
