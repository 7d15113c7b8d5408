package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ScenariosDir:        "scenarios",
		PayloadsDir:         "payloads",
		SchemasDir:          "schemas",
		Database:            "",
		Concurrency:         10,
		PollInterval:        300,    // ms between throttle polls
		Timeout:             30000,  // 30 seconds
		RepeatUntilTimeout:  120000, // 2 minutes
		RepeatUntilInterval: 1000,
		ScriptTimeout:       5000,
	}
}
