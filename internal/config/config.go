// Package config loads the analysis configuration for covlink.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the full configuration for one analysis run.
type Config struct {
	// LogLevel controls logger verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Binaries are the root directories scanned for compiled class files.
	Binaries []string `mapstructure:"binaries"`

	// ExecFile is the path to the recorded execution data. It may be
	// absent; a missing file means no coverage was recorded.
	ExecFile string `mapstructure:"exec_file"`

	// Sources are the production source root directories.
	Sources []string `mapstructure:"sources"`

	// Tests are the test source root directories. Files resolved under
	// these roots never receive coverage measures.
	Tests []string `mapstructure:"tests"`

	// Report is the path the JSON coverage report is written to.
	Report string `mapstructure:"report"`

	// PerTest enables per-test coverage attribution.
	PerTest bool `mapstructure:"per_test"`
}

// Load reads a configuration file into a Config.
// The path parameter may name a concrete yaml file; when empty, a file
// named "covlink.yaml" is looked up in the working directory and in a
// "configs" subdirectory.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("covlink")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}

	v.SetDefault("log_level", "info")
	v.SetDefault("report", "covlink-report.json")
	v.SetDefault("per_test", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration names the inputs an analysis
// run cannot do without.
func (c *Config) Validate() error {
	if len(c.Binaries) == 0 {
		return fmt.Errorf("config: at least one binaries root is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one sources root is required")
	}
	return nil
}
