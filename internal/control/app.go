// Package control assembles the application: storage backend, change-feed
// transport, synchronization layer and HTTP server, selected from config.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"coffee-queue/internal/admin"
	"coffee-queue/internal/core/config"
	"coffee-queue/internal/core/domain"
	redisclient "coffee-queue/internal/infra/redis"
	"coffee-queue/internal/infra/storage"
	"coffee-queue/internal/infra/storage/memory"
	"coffee-queue/internal/infra/storage/postgres"
	"coffee-queue/internal/sync/feed"
	"coffee-queue/internal/sync/health"
	"coffee-queue/internal/sync/ordersync"
	"coffee-queue/internal/sync/reconnect"
	"coffee-queue/internal/sync/retry"
)

// App is the assembled application.
type App struct {
	cfg    *config.AppConfig
	sync   *ordersync.OrderSync
	server *admin.Server
	db     *postgres.DB
	redis  *redisclient.Client
	log    *slog.Logger
}

// NewApp wires all components from configuration. Nothing runs until Start.
func NewApp(cfg *config.AppConfig) (*App, error) {
	app := &App{
		cfg: cfg,
		log: slog.Default().With("component", "app"),
	}

	repo, f, err := app.buildBackend()
	if err != nil {
		return nil, err
	}

	app.sync = ordersync.New(ordersync.Config{
		Channel:        cfg.Feed.Channel,
		WaitPerOrder:   cfg.Sync.WaitPerOrder.Std(),
		DebounceWindow: cfg.Sync.DebounceWindow.Std(),
		PollInterval:   cfg.Sync.PollInterval.Std(),
		Retry: retry.Options{
			MaxRetries:         cfg.Sync.MaxRetries,
			BaseDelay:          cfg.Sync.RetryBaseDelay.Std(),
			ExponentialBackoff: true,
		},
		Reconnect: reconnect.Config{
			MaxReconnectAttempts: cfg.Sync.MaxReconnectAttempts,
			BaseDelay:            cfg.Sync.ReconnectBaseDelay.Std(),
		},
	}, f, repo)

	var pinger health.StorePinger
	if app.db != nil {
		pinger = app.db
	}
	monitor := health.NewMonitor(app.sync, pinger, 0)
	app.server = admin.NewServer(app.sync, monitor, cfg.Server.Port)

	return app, nil
}

// buildBackend selects the repository and feed transport from config.
func (a *App) buildBackend() (storage.OrderRepository, feed.Feed, error) {
	cfg := a.cfg

	// Storeless demo mode: the in-memory store publishes straight into
	// the selected feed.
	if cfg.Database.URL == "" {
		switch cfg.Feed.Backend {
		case config.FeedMemory:
			mf := feed.NewMemoryFeed()
			store := memory.NewStore(func(ev domain.ChangeEvent) {
				mf.Publish(cfg.Feed.Channel, ev)
			})
			a.log.Info("using memory storage and feed")
			return store, mf, nil
		case config.FeedRedis:
			client, err := redisclient.NewClient(cfg.Redis)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init redis: %w", err)
			}
			a.redis = client
			store := memory.NewStore(func(ev domain.ChangeEvent) {
				if err := client.PublishEvent(context.Background(), cfg.Feed.Channel, ev); err != nil {
					a.log.Warn("failed to publish change event", "error", err)
				}
			})
			a.log.Info("using memory storage with redis feed")
			return store, client, nil
		default:
			return nil, nil, fmt.Errorf("feed backend %q requires database.url", cfg.Feed.Backend)
		}
	}

	db, err := postgres.NewDB(context.Background(), cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(cfg.Database.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	a.db = db

	var repo storage.OrderRepository = postgres.NewOrderRepo(db)

	switch cfg.Feed.Backend {
	case config.FeedPostgres:
		// A database trigger notifies on every write; no publishing
		// decorator needed.
		a.log.Info("using postgres storage with listen/notify feed")
		return repo, postgres.NewListenerFeed(cfg.Database.URL), nil
	case config.FeedRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redis = client
		a.log.Info("using postgres storage with redis feed")
		return storage.WithPublisher(repo, client, cfg.Feed.Channel), client, nil
	case config.FeedMemory:
		mf := feed.NewMemoryFeed()
		a.log.Info("using postgres storage with in-process feed")
		return storage.WithPublisher(repo, memoryPublisher{mf}, cfg.Feed.Channel), mf, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed backend %q", cfg.Feed.Backend)
	}
}

// Start launches the sync layer and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.sync.Start(ctx)

	go func() {
		a.log.Info("http server listening", "port", a.cfg.Server.Port)
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the application down: HTTP server first so no new requests
// reach a closing sync layer.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping application")

	err := a.server.Stop(ctx)
	a.sync.Close()

	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.log.Warn("failed to close redis", "error", cerr)
		}
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.Warn("failed to close database", "error", cerr)
		}
	}
	return err
}

// Sync exposes the synchronization layer, for the CLI.
func (a *App) Sync() *ordersync.OrderSync {
	return a.sync
}

// memoryPublisher adapts the in-process feed to the publisher interface.
type memoryPublisher struct {
	f *feed.MemoryFeed
}

func (p memoryPublisher) PublishEvent(ctx context.Context, channel string, ev domain.ChangeEvent) error {
	p.f.Publish(channel, ev)
	return nil
}
