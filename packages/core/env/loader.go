package env

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// SystemPrefix marks process environment variables exported to scenarios.
// VIBRANIUM_VAR_token becomes the variable "token".
const SystemPrefix = "VIBRANIUM_VAR_"

// LoadDotEnv reads a .env file without exporting it to the process.
func LoadDotEnv(path string) (map[string]any, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read env file %s: %w", path, err)
	}
	result := make(map[string]any, len(vars))
	for k, v := range vars {
		result[k] = v
	}
	return result, nil
}

// LoadAndExportDotEnv reads a .env file and exports its entries into the
// process environment. Variables already set are left alone.
func LoadAndExportDotEnv(path string) (map[string]any, error) {
	vars, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("cannot export env file %s: %w", path, err)
	}
	return vars, nil
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns the process environment variables starting with
// prefix, keyed without it. An empty prefix returns everything.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
			continue
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}

// ParseVars parses key=value pairs from the command line. Values that are
// valid JSON (numbers, booleans, objects) are decoded, anything else is kept
// as a string.
func ParseVars(pairs []string) (map[string]any, error) {
	result := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		result[key] = decodeValue(value)
	}
	return result, nil
}

func decodeValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
