package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 0\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Feed.Backend != FeedMemory {
		t.Errorf("expected memory backend without database, got %s", cfg.Feed.Backend)
	}
	if cfg.Feed.Channel != "orders_changes" {
		t.Errorf("expected default channel, got %s", cfg.Feed.Channel)
	}
	if cfg.Sync.WaitPerOrder.Std() != 3*time.Minute {
		t.Errorf("expected default wait per order, got %v", cfg.Sync.WaitPerOrder)
	}
	if cfg.Sync.MaxReconnectAttempts != 5 {
		t.Errorf("expected default reconnect bound, got %d", cfg.Sync.MaxReconnectAttempts)
	}
}

func TestLoad_PostgresBackendImplied(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/coffee
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Feed.Backend != FeedPostgres {
		t.Errorf("expected postgres backend with database url, got %s", cfg.Feed.Backend)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://env-host/coffee")
	path := writeConfig(t, `
database:
  url: ${TEST_DB_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgres://env-host/coffee" {
		t.Errorf("expected expanded url, got %s", cfg.Database.URL)
	}
}

func TestLoad_RedisBackendRequiresURL(t *testing.T) {
	path := writeConfig(t, `
feed:
  backend: redis
database:
  url: postgres://localhost/coffee
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for redis backend without redis url")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
sync:
  wait_per_order: 2m
  poll_interval: 10s
  max_retries: 5
feed:
  backend: memory
  channel: shop_orders
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Sync.WaitPerOrder.Std() != 2*time.Minute {
		t.Errorf("expected 2m wait, got %v", cfg.Sync.WaitPerOrder.Std())
	}
	if cfg.Sync.PollInterval.Std() != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %v", cfg.Sync.PollInterval.Std())
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.Feed.Channel != "shop_orders" {
		t.Errorf("expected channel override, got %s", cfg.Feed.Channel)
	}
}
