package config

// CLIConfig is the configuration for tally-cli.
type CLIConfig struct {
	Server string `yaml:"server"`
	Output string `yaml:"output"` // table, json, yaml

	// Token of the current account. The file is written with mode 0600.
	Token string `yaml:"token,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server: "http://127.0.0.1:5080",
		Output: "table",
	}
}
