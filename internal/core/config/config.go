package config

import (
	"time"

	redisclient "github.com/vietddude/feescan/internal/infra/redis"
	"github.com/vietddude/feescan/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Sources  []SourceConfig     `yaml:"sources"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SourceConfig holds settings for one scanned event source.
type SourceConfig struct {
	ID                  string         `yaml:"id"`
	ContractAddress     string         `yaml:"contract_address"`
	EventTopic          string         `yaml:"event_topic"`
	FloorHeight         uint64         `yaml:"floor_height"`
	BatchSize           uint64         `yaml:"batch_size"`
	MaintenanceInterval time.Duration  `yaml:"maintenance_interval"`
	CatchUpPacing       time.Duration  `yaml:"catch_up_pacing"`
	Retry               RetryConfig    `yaml:"retry"`
	Provider            ProviderConfig `yaml:"provider"`
}

// RetryConfig tunes per-call retry behavior against the RPC provider.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}
