// Package env collects variables from outside the scenario files.
//
// Sources are merged in order, later ones winning:
//   - the variables block of the configuration
//   - a .env file (see LoadDotEnv)
//   - process environment variables carrying SystemPrefix
//   - --var key=value flags (see ParseVars)
package env
