package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sarathm09/vibranium/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vibranium workspace",
	Long: `Initialize a new vibranium workspace in the current directory.

This creates:
  - vibranium.config.json        - Configuration with a local "api" system
  - scenarios/example/users.json - Example scenario with mock blocks
  - payloads/, schemas/          - Directories for "!name" payloads and schemas

Start the mock server with 'vibranium mock' and run the example against it
with 'vibranium run'.

Examples:
  vibranium init
  vibranium init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleScenario = `{
  "name": "users",
  "description": "Example scenario served by 'vibranium mock'",
  "endpoints": [
    {
      "name": "list",
      "url": "/users",
      "expect": {
        "status": 200,
        "response": {
          "hasUsers": "{response.length} > 0"
        }
      },
      "mock": {
        "status": 200,
        "body": [{"id": 1, "name": "ada"}, {"id": 2, "name": "linus"}]
      }
    },
    {
      "name": "details",
      "url": "/users/{userId}",
      "dependencies": [
        {"api": "list", "variable": "userId", "path": "response.0.id"}
      ],
      "expect": {
        "status": 200,
        "response": {
          "sameUser": "{response.id} == {userId}"
        }
      },
      "mock": {
        "status": 200,
        "body": {"id": "{userId}", "name": "user {userId}"}
      }
    },
    {
      "name": "create",
      "method": "POST",
      "url": "/users",
      "payload": {"name": "user_[a-z]{6}"},
      "expect": {"status": 201},
      "mock": {"status": 201, "body": {"id": 3}, "delay": 50}
    }
  ]
}
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.DefaultSystem = "api"
	cfg.Systems = map[string]*config.System{
		"api": {
			BaseURL: "http://localhost:3000",
			Headers: map[string]string{"User-Agent": "vibranium/" + version},
		},
	}

	configFile := filepath.Join(cwd, config.ConfigFilenames[0])
	exampleFile := filepath.Join(cwd, cfg.ScenariosDir, "example", "users.json")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	dirs := []string{
		filepath.Dir(exampleFile),
		filepath.Join(cwd, cfg.PayloadsDir),
		filepath.Join(cwd, cfg.SchemasDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleScenario), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nvibranium workspace initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'vibranium mock' and then 'vibranium run' to execute the example.\n")

	return nil
}
