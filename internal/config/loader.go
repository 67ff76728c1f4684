package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, applies defaults to, and validates a run configuration
// file. Any problem is reported before the run starts.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses YAML bytes into a validated RunConfig.
func Parse(data []byte) (*RunConfig, error) {
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills in unset fields.
func ApplyDefaults(cfg *RunConfig) {
	if cfg.Settings.Timeout == 0 {
		cfg.Settings.Timeout = Duration(30 * time.Second)
	}
	if cfg.Settings.MaxIdleConnsPerHost == 0 {
		cfg.Settings.MaxIdleConnsPerHost = 100
	}
	if cfg.Scenario.GracefulRampDown == 0 {
		cfg.Scenario.GracefulRampDown = Duration(30 * time.Second)
	}
	if cfg.Scenario.Ramp == "" {
		cfg.Scenario.Ramp = "linear"
	}
	for i := range cfg.Steps {
		if cfg.Steps[i].Method == "" {
			cfg.Steps[i].Method = "GET"
		}
	}
}
