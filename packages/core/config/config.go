package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sarathm09/vibranium/packages/auth/oauth2"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks invalid configuration. Commands exit before running
// anything when they see it.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	ScenariosDir        string             `json:"scenariosDir,omitempty" yaml:"scenariosDir,omitempty"`
	PayloadsDir         string             `json:"payloadsDir,omitempty" yaml:"payloadsDir,omitempty"`
	SchemasDir          string             `json:"schemasDir,omitempty" yaml:"schemasDir,omitempty"`
	Database            string             `json:"database,omitempty" yaml:"database,omitempty"`
	Concurrency         int                `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	PollInterval        int                `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"` // milliseconds
	RequestsPerSecond   float64            `json:"requestsPerSecond,omitempty" yaml:"requestsPerSecond,omitempty"`
	Timeout             int                `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	RepeatUntilTimeout  int                `json:"repeatUntilTimeout,omitempty" yaml:"repeatUntilTimeout,omitempty"`
	RepeatUntilInterval int                `json:"repeatUntilInterval,omitempty" yaml:"repeatUntilInterval,omitempty"`
	ScriptTimeout       int                `json:"scriptTimeout,omitempty" yaml:"scriptTimeout,omitempty"`
	DefaultSystem       string             `json:"defaultSystem,omitempty" yaml:"defaultSystem,omitempty"`
	Systems             map[string]*System `json:"systems,omitempty" yaml:"systems,omitempty"`
	Variables           map[string]any     `json:"variables,omitempty" yaml:"variables,omitempty"`
	Datasets            map[string][]any   `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	Language            string             `json:"language,omitempty" yaml:"language,omitempty"`
	ValidateSSL         *bool              `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Sync                *bool              `json:"sync,omitempty" yaml:"sync,omitempty"`
	Verbose             *bool              `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor             *bool              `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

type System struct {
	BaseURL string            `json:"baseUrl" yaml:"baseUrl"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Auth    *Auth             `json:"auth,omitempty" yaml:"auth,omitempty"`
}

type Auth struct {
	Type     string `json:"type" yaml:"type"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Token    string `json:"token,omitempty" yaml:"token,omitempty"`

	OAuth2 *oauth2.Config `json:"oauth2,omitempty" yaml:"oauth2,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

func (c *Config) GetValidateSSL() bool { return getBool(c.ValidateSSL, true) }
func (c *Config) GetSync() bool        { return getBool(c.Sync, false) }
func (c *Config) GetVerbose() bool     { return getBool(c.Verbose, false) }
func (c *Config) GetNoColor() bool     { return getBool(c.NoColor, false) }

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (c *Config) TimeoutDuration() time.Duration             { return millis(c.Timeout) }
func (c *Config) PollIntervalDuration() time.Duration        { return millis(c.PollInterval) }
func (c *Config) RepeatUntilTimeoutDuration() time.Duration  { return millis(c.RepeatUntilTimeout) }
func (c *Config) RepeatUntilIntervalDuration() time.Duration { return millis(c.RepeatUntilInterval) }
func (c *Config) ScriptTimeoutDuration() time.Duration       { return millis(c.ScriptTimeout) }

// SystemNames returns the configured systems in sorted order.
func (c *Config) SystemNames() []string {
	names := make([]string, 0, len(c.Systems))
	for name := range c.Systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the configuration for a run against system. An empty
// system means the configured default.
func (c *Config) Validate(system string) error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrConfiguration, c.Concurrency)
	}
	if system == "" {
		system = c.DefaultSystem
	}
	if system != "" {
		if _, ok := c.Systems[system]; !ok {
			return fmt.Errorf("%w: unknown system %q (configured: %s)", ErrConfiguration, system, strings.Join(c.SystemNames(), ", "))
		}
	}
	for _, name := range c.SystemNames() {
		s := c.Systems[name]
		if s == nil || s.BaseURL == "" {
			return fmt.Errorf("%w: system %q has no baseUrl", ErrConfiguration, name)
		}
		if s.Auth == nil {
			continue
		}
		switch s.Auth.Type {
		case "", "basic", "bearer":
		case "oauth2":
			if s.Auth.OAuth2 == nil {
				return fmt.Errorf("%w: system %q: oauth2 auth requires an oauth2 block", ErrConfiguration, name)
			}
			if err := s.Auth.OAuth2.Validate(); err != nil {
				return fmt.Errorf("%w: system %q: %v", ErrConfiguration, name, err)
			}
		default:
			return fmt.Errorf("%w: system %q: unsupported auth type %q", ErrConfiguration, name, s.Auth.Type)
		}
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	"vibranium.config.json",
	".vibraniumrc",
	".vibraniumrc.json",
	"vibranium.config.yaml",
	"vibranium.yaml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfiguration, path, err)
	}
	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.ScenariosDir != "" {
		result.ScenariosDir = other.ScenariosDir
	}
	if other.PayloadsDir != "" {
		result.PayloadsDir = other.PayloadsDir
	}
	if other.SchemasDir != "" {
		result.SchemasDir = other.SchemasDir
	}
	if other.Database != "" {
		result.Database = other.Database
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.PollInterval > 0 {
		result.PollInterval = other.PollInterval
	}
	if other.RequestsPerSecond > 0 {
		result.RequestsPerSecond = other.RequestsPerSecond
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.RepeatUntilTimeout > 0 {
		result.RepeatUntilTimeout = other.RepeatUntilTimeout
	}
	if other.RepeatUntilInterval > 0 {
		result.RepeatUntilInterval = other.RepeatUntilInterval
	}
	if other.ScriptTimeout > 0 {
		result.ScriptTimeout = other.ScriptTimeout
	}
	if other.DefaultSystem != "" {
		result.DefaultSystem = other.DefaultSystem
	}
	if other.Language != "" {
		result.Language = other.Language
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Sync != nil {
		result.Sync = other.Sync
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Systems) > 0 {
		systems := make(map[string]*System, len(result.Systems)+len(other.Systems))
		for k, v := range result.Systems {
			systems[k] = v
		}
		for k, v := range other.Systems {
			systems[k] = v
		}
		result.Systems = systems
	}
	if len(other.Variables) > 0 {
		vars := make(map[string]any, len(result.Variables)+len(other.Variables))
		for k, v := range result.Variables {
			vars[k] = v
		}
		for k, v := range other.Variables {
			vars[k] = v
		}
		result.Variables = vars
	}
	if len(other.Datasets) > 0 {
		sets := make(map[string][]any, len(result.Datasets)+len(other.Datasets))
		for k, v := range result.Datasets {
			sets[k] = v
		}
		for k, v := range other.Datasets {
			sets[k] = v
		}
		result.Datasets = sets
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
