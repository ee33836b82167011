// Package reconnect owns the lifecycle of one change-feed subscription:
// connect, detect failure, schedule bounded exponential-backoff reconnect
// attempts, and expose manual reconnect. Push channels give no replay
// guarantee, so every recovery from a drop triggers one catch-up refresh.
package reconnect

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/sync/feed"
)

// Status is the connection state of the supervised subscription.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusError        Status = "error"
)

// Handle is an observable snapshot of the subscription state.
type Handle struct {
	ChannelName       string
	Status            Status
	ReconnectAttempts int
	LastConnected     time.Time
}

// Config holds supervisor tunables.
type Config struct {
	Channel              string
	Filter               feed.Filter
	MaxReconnectAttempts int           // default 5
	BaseDelay            time.Duration // default 1s
	MaxDelay             time.Duration // default 30s
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	Channel:              "orders",
	MaxReconnectAttempts: 5,
	BaseDelay:            1 * time.Second,
	MaxDelay:             30 * time.Second,
}

// Supervisor supervises one feed subscription. OnEvent receives every
// delivered change event; OnCatchUp fires once after each recovery from a
// drop, so the poller can cover events missed while offline.
type Supervisor struct {
	cfg       Config
	feed      feed.Feed
	onEvent   func(domain.ChangeEvent)
	onCatchUp func()
	log       *slog.Logger

	mu      sync.Mutex
	handle  Handle
	sub     feed.Subscription
	timer   *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	dropped bool // last disconnect was a failure, not a clean close
	wg      sync.WaitGroup
}

// NewSupervisor creates a supervisor. onEvent and onCatchUp may be nil.
func NewSupervisor(cfg Config, f feed.Feed, onEvent func(domain.ChangeEvent), onCatchUp func()) *Supervisor {
	if cfg.Channel == "" {
		cfg.Channel = DefaultConfig.Channel
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultConfig.MaxReconnectAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig.MaxDelay
	}
	if onEvent == nil {
		onEvent = func(domain.ChangeEvent) {}
	}
	if onCatchUp == nil {
		onCatchUp = func() {}
	}
	return &Supervisor{
		cfg:       cfg,
		feed:      f,
		onEvent:   onEvent,
		onCatchUp: onCatchUp,
		log:       slog.Default().With("component", "reconnect", "channel", cfg.Channel),
		handle: Handle{
			ChannelName: cfg.Channel,
			Status:      StatusDisconnected,
		},
	}
}

// Start connects the subscription. The supervisor keeps it alive until
// Close, within the reconnect bound.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.connect()
}

// Close unsubscribes and cancels any pending reconnect timer, even
// mid-backoff. No reconnect attempt runs after Close returns.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	sub := s.sub
	s.sub = nil
	s.handle.Status = StatusDisconnected
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.wg.Wait()
}

// Handle returns a snapshot of the subscription state.
func (s *Supervisor) Handle() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// IsConnected reports whether the subscription is live. This is the only
// connection detail the UI layer observes.
func (s *Supervisor) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.Status == StatusConnected
}

// Reconnect resets the attempt counter and restarts the subscription. It is
// the manual escape hatch once the automatic bound is exhausted.
func (s *Supervisor) Reconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.handle.ReconnectAttempts = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	sub := s.sub
	s.sub = nil
	s.dropped = true
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.connect()
}

func (s *Supervisor) connect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.handle.Status = StatusConnecting
	s.mu.Unlock()

	sub, err := s.feed.Subscribe(ctx, s.cfg.Channel, s.cfg.Filter)
	if err != nil {
		s.log.Warn("subscribe failed", "error", err)
		s.scheduleReconnect()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.sub = sub
	s.handle.Status = StatusConnected
	s.handle.ReconnectAttempts = 0
	s.handle.LastConnected = time.Now()
	recovered := s.dropped
	s.dropped = false
	s.mu.Unlock()

	s.log.Info("subscription connected")
	if recovered {
		s.onCatchUp()
	}

	s.wg.Add(1)
	go s.pump(ctx, sub)
}

// pump drains the subscription until it ends or the supervisor stops.
func (s *Supervisor) pump(ctx context.Context, sub feed.Subscription) {
	defer s.wg.Done()
	for {
		select {
		case ev := <-sub.Events():
			s.onEvent(ev)
		case <-sub.Done():
			// Drain events delivered before the failure.
			for {
				select {
				case ev := <-sub.Events():
					s.onEvent(ev)
					continue
				default:
				}
				break
			}
			s.mu.Lock()
			stale := s.sub != sub // replaced by Reconnect
			if !stale {
				s.sub = nil
				s.dropped = true
			}
			s.mu.Unlock()
			if !stale {
				if err := sub.Err(); err != nil {
					s.log.Warn("subscription dropped", "error", err)
				}
				s.scheduleReconnect()
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// scheduleReconnect transitions to reconnecting and arms the backoff timer,
// or rests in error once the bound is hit.
func (s *Supervisor) scheduleReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.handle.ReconnectAttempts >= s.cfg.MaxReconnectAttempts {
		s.handle.Status = StatusError
		s.mu.Unlock()
		s.log.Error("reconnect attempts exhausted", "attempts", s.cfg.MaxReconnectAttempts)
		return
	}

	delay := s.backoffDelay(s.handle.ReconnectAttempts)
	s.handle.ReconnectAttempts++
	s.handle.Status = StatusReconnecting
	s.timer = time.AfterFunc(delay, s.connect)
	attempts := s.handle.ReconnectAttempts
	s.mu.Unlock()

	s.log.Info("reconnect scheduled", "attempt", attempts, "delay", delay)
}

func (s *Supervisor) backoffDelay(attempts int) time.Duration {
	delay := float64(s.cfg.BaseDelay) * math.Pow(2, float64(attempts))
	if delay > float64(s.cfg.MaxDelay) {
		delay = float64(s.cfg.MaxDelay)
	}
	return time.Duration(delay)
}
