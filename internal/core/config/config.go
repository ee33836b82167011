package config

import (
	"fmt"
	"time"

	redisclient "coffee-queue/internal/infra/redis"
	"coffee-queue/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Sync     SyncConfig         `yaml:"sync"`
	Feed     FeedConfig         `yaml:"feed"`
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

// FeedBackend selects the change-feed transport.
type FeedBackend string

const (
	// FeedPostgres subscribes via LISTEN/NOTIFY on the database.
	FeedPostgres FeedBackend = "postgres"
	// FeedRedis subscribes via Redis pub/sub, with the store publishing.
	FeedRedis FeedBackend = "redis"
	// FeedMemory is an in-process feed for storeless demo mode.
	FeedMemory FeedBackend = "memory"
)

// FeedConfig holds change-feed settings.
type FeedConfig struct {
	Backend FeedBackend `yaml:"backend"`
	Channel string      `yaml:"channel"`
}

// SyncConfig holds synchronization-layer tunables.
type SyncConfig struct {
	WaitPerOrder         Duration `yaml:"wait_per_order"`
	DebounceWindow       Duration `yaml:"debounce_window"`
	PollInterval         Duration `yaml:"poll_interval"`
	MaxRetries           int      `yaml:"max_retries"`
	RetryBaseDelay       Duration `yaml:"retry_base_delay"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   Duration `yaml:"reconnect_base_delay"`
}

// Duration accepts Go duration strings ("30s", "2m") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
