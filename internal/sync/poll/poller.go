// Package poll implements the polling fallback: a full-state refetch on a
// fixed interval, plus on-demand catch-up fetches after detected
// disconnects. It runs concurrently with the push feed; the reconciliation
// engine absorbs whichever source lands first.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/sync/classify"
)

// Fetcher fetches the full order list from the data-access collaborator.
type Fetcher func(ctx context.Context) ([]*domain.Order, error)

// Config holds poller tunables.
type Config struct {
	Interval time.Duration // default 30s
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{Interval: 30 * time.Second}

// Poller issues full refreshes on a fixed interval and whenever TriggerNow
// is called. Results go to apply; fetch failures are logged and the next
// tick tries again.
type Poller struct {
	cfg   Config
	fetch Fetcher
	apply func([]*domain.Order)
	log   *slog.Logger

	triggers chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu          sync.Mutex
	lastSuccess time.Time
	lastErr     error
}

// NewPoller creates a poller. apply receives every successful fetch result.
func NewPoller(cfg Config, fetch Fetcher, apply func([]*domain.Order)) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig.Interval
	}
	return &Poller{
		cfg:      cfg,
		fetch:    fetch,
		apply:    apply,
		log:      slog.Default().With("component", "poll"),
		triggers: make(chan struct{}, 1),
	}
}

// Start launches the poll loop with one immediate initial refresh.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
}

// Close stops the poll loop and waits for it to exit. No refresh is applied
// after Close returns.
func (p *Poller) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// TriggerNow requests an immediate out-of-band refresh, used as the
// catch-up fetch after a reconnect. Requests coalesce while one is pending.
func (p *Poller) TriggerNow() {
	select {
	case p.triggers <- struct{}{}:
	default:
	}
}

// LastSuccess returns the time of the most recent successful refresh.
func (p *Poller) LastSuccess() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

// LastError returns the most recent fetch failure, cleared on success.
func (p *Poller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		case <-p.triggers:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	orders, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ce := classify.Classify(err, false)
		p.log.Warn("refresh failed", "category", ce.Category, "error", err)
		p.mu.Lock()
		p.lastErr = ce
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.lastSuccess = time.Now()
	p.lastErr = nil
	p.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	p.apply(orders)
}
