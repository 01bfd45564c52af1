package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.ID == "" {
			return nil, fmt.Errorf("source %d: missing id", i)
		}
		if s.Provider.URL == "" {
			return nil, fmt.Errorf("source %q: missing provider url", s.ID)
		}
		// Floor 0 would initialize the watermark at floor−1 = MaxUint64.
		if s.FloorHeight == 0 {
			return nil, fmt.Errorf("source %q: floor_height must be at least 1", s.ID)
		}
		if s.BatchSize == 0 {
			s.BatchSize = 1000
		}
		if s.MaintenanceInterval == 0 {
			s.MaintenanceInterval = 30 * time.Second
		}
		if s.CatchUpPacing == 0 {
			s.CatchUpPacing = time.Second
		}
		if s.Retry.MaxRetries == 0 {
			s.Retry.MaxRetries = 3
		}
		if s.Retry.BaseDelay == 0 {
			s.Retry.BaseDelay = time.Second
		}
		if s.Retry.MaxDelay == 0 {
			s.Retry.MaxDelay = time.Minute
		}
		if s.Provider.Timeout == 0 {
			s.Provider.Timeout = 30 * time.Second
		}
	}

	return &cfg, nil
}
