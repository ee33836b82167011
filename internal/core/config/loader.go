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

	applyDefaults(&cfg)

	if cfg.Feed.Backend == FeedRedis && cfg.Redis.URL == "" {
		return nil, fmt.Errorf("feed backend %q requires redis.url", cfg.Feed.Backend)
	}
	if cfg.Feed.Backend == FeedPostgres && cfg.Database.URL == "" {
		return nil, fmt.Errorf("feed backend %q requires database.url", cfg.Feed.Backend)
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Feed.Channel == "" {
		cfg.Feed.Channel = "orders_changes"
	}
	if cfg.Feed.Backend == "" {
		if cfg.Database.URL != "" {
			cfg.Feed.Backend = FeedPostgres
		} else {
			cfg.Feed.Backend = FeedMemory
		}
	}
	if cfg.Sync.WaitPerOrder == 0 {
		cfg.Sync.WaitPerOrder = Duration(3 * time.Minute)
	}
	if cfg.Sync.DebounceWindow == 0 {
		cfg.Sync.DebounceWindow = Duration(time.Second)
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = Duration(30 * time.Second)
	}
	if cfg.Sync.MaxRetries == 0 {
		cfg.Sync.MaxRetries = 3
	}
	if cfg.Sync.RetryBaseDelay == 0 {
		cfg.Sync.RetryBaseDelay = Duration(time.Second)
	}
	if cfg.Sync.MaxReconnectAttempts == 0 {
		cfg.Sync.MaxReconnectAttempts = 5
	}
	if cfg.Sync.ReconnectBaseDelay == 0 {
		cfg.Sync.ReconnectBaseDelay = Duration(time.Second)
	}
}
