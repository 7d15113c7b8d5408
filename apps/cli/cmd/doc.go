// Package cmd implements the vibranium CLI commands using Cobra.
//
// Available commands:
//   - run: Compile and execute scenarios against the configured systems
//   - list: Show the compiled collections, scenarios and endpoints
//   - validate: Compile scenarios and check that every dependency resolves
//   - mock: Serve the mock blocks of compiled endpoints over HTTP
//   - history: Show jobs recorded in the configured database
//   - init: Create a workspace with a config file and an example scenario
//   - version: Show version information
//
// Flags fall back to VIBRANIUM_* environment variables, and those fall back
// to the configuration file.
package cmd
