// Package ordersync is the consumer-facing surface of the synchronization
// layer. It owns the reconciliation engine, the feed supervisor, the
// polling fallback and the retry executor, and exposes the state/actions
// contract the UI layer binds to.
package ordersync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/infra/storage"
	"coffee-queue/internal/sync/classify"
	"coffee-queue/internal/sync/feed"
	"coffee-queue/internal/sync/metrics"
	"coffee-queue/internal/sync/poll"
	"coffee-queue/internal/sync/reconcile"
	"coffee-queue/internal/sync/reconnect"
	"coffee-queue/internal/sync/retry"
)

// Config aggregates the tunables of every sync component. Zero values fall
// back to each component's defaults.
type Config struct {
	Channel        string
	WaitPerOrder   time.Duration
	DebounceWindow time.Duration
	PollInterval   time.Duration
	Retry          retry.Options
	Reconnect      reconnect.Config
}

// State is the observable snapshot the UI layer reads.
type State struct {
	Orders      []*domain.Order
	IsLoading   bool
	Error       *classify.Error
	IsConnected bool
}

// OrderSync merges push events, poll results and optimistic mutations into
// one consistent view of the order queue.
type OrderSync struct {
	cfg      Config
	repo     storage.OrderRepository
	engine   *reconcile.Engine
	poller   *poll.Poller
	sup      *reconnect.Supervisor
	executor *retry.Executor
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires up the synchronization layer against a feed and a repository.
// Nothing runs until Start.
func New(cfg Config, f feed.Feed, repo storage.OrderRepository) *OrderSync {
	if cfg.Retry == (retry.Options{}) {
		cfg.Retry = retry.DefaultOptions
	}
	if cfg.Channel == "" {
		cfg.Channel = reconnect.DefaultConfig.Channel
	}

	s := &OrderSync{
		cfg:  cfg,
		repo: repo,
		log:  slog.Default().With("component", "ordersync"),
	}

	s.engine = reconcile.NewEngine(reconcile.Config{
		WaitPerOrder:   cfg.WaitPerOrder,
		DebounceWindow: cfg.DebounceWindow,
	})
	s.executor = retry.NewExecutor(s.IsConnected)
	s.poller = poll.NewPoller(poll.Config{Interval: cfg.PollInterval}, s.fetchAll, s.applyRefresh)

	supCfg := cfg.Reconnect
	supCfg.Channel = cfg.Channel
	s.sup = reconnect.NewSupervisor(supCfg, f, s.onFeedEvent, s.onCatchUp)
	return s
}

// Start connects the feed subscription and launches the poll loop.
func (s *OrderSync) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.sup.Start(ctx)
	s.poller.Start(ctx)

	s.wg.Add(1)
	go s.gaugeLoop(ctx)
}

// Close tears the layer down: subscriptions, poll loop, debounce and
// backoff timers all stop before it returns.
func (s *OrderSync) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.sup.Close()
	s.poller.Close()
	s.engine.Close()
	s.wg.Wait()
}

// Snapshot returns the current observable state.
func (s *OrderSync) Snapshot() State {
	es := s.executor.State()
	return State{
		Orders:      s.engine.Orders(),
		IsLoading:   es.IsLoading,
		Error:       es.Error,
		IsConnected: s.sup.IsConnected(),
	}
}

// Orders returns the visible order collection sorted by queue number.
func (s *OrderSync) Orders() []*domain.Order {
	return s.engine.Orders()
}

// QueueStatus returns the derived guest view for one order.
func (s *OrderSync) QueueStatus(id string) (*domain.QueueStatus, bool) {
	return s.engine.QueueStatus(id)
}

// IsConnected reports whether the push subscription is live.
func (s *OrderSync) IsConnected() bool {
	return s.sup.IsConnected()
}

// Updates delivers a coalesced signal whenever the visible collection may
// have changed.
func (s *OrderSync) Updates() <-chan struct{} {
	return s.engine.Updates()
}

// Refresh requests an immediate full-state refetch.
func (s *OrderSync) Refresh() {
	metrics.RefreshesTotal.WithLabelValues("manual").Inc()
	s.poller.TriggerNow()
}

// Reconnect manually restarts the feed subscription, resetting the
// reconnect attempt counter.
func (s *OrderSync) Reconnect() {
	metrics.ReconnectsTotal.WithLabelValues("manual").Inc()
	s.sup.Reconnect()
}

// ClearError resets the surfaced mutation error.
func (s *OrderSync) ClearError() {
	s.executor.ClearError()
}

// RetryLast re-runs the most recent mutation with its original options.
func (s *OrderSync) RetryLast(ctx context.Context) error {
	return s.executor.RetryLast(ctx)
}

// UpdateStatus mutates one order's status through the optimistic
// three-phase protocol: the write is applied locally first, then submitted
// with bounded retries; on success it is confirmed, on exhaustion rolled
// back. Conflict failures additionally trigger a full refresh, since
// retrying a stale write without refetching would repeat the conflict.
func (s *OrderSync) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("update status: invalid status %q", status)
	}
	if err := s.engine.ApplyOptimistic(id, reconcile.Patch{Status: status}); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	metrics.MutationsTotal.WithLabelValues("started").Inc()

	err := s.executor.Execute(ctx, func(ctx context.Context) error {
		_, err := s.repo.UpdateStatus(ctx, id, status)
		return err
	}, s.cfg.Retry)
	metrics.MutationRetriesTotal.Add(float64(s.executor.State().RetryCount))

	if err == nil {
		s.engine.ConfirmOptimistic(id)
		metrics.MutationsTotal.WithLabelValues("confirmed").Inc()
		return nil
	}

	s.engine.RollbackOptimistic(id)
	metrics.MutationsTotal.WithLabelValues("rolled_back").Inc()

	if ce, ok := err.(*classify.Error); ok && ce.Strategy.Kind == classify.RecoveryReload {
		s.log.Warn("conflict on status update, refreshing", "order", id)
		metrics.RefreshesTotal.WithLabelValues("conflict").Inc()
		s.poller.TriggerNow()
	}
	return err
}

// PlaceOrder creates a new order and makes it visible immediately. The
// matching feed event is deduplicated by the engine's recency rules.
func (s *OrderSync) PlaceOrder(ctx context.Context, o storage.NewOrder) (*domain.Order, error) {
	created, err := s.repo.Create(ctx, o)
	if err != nil {
		return nil, classify.Classify(err, !s.IsConnected())
	}
	s.engine.ApplyRemoteEvent(domain.ChangeEvent{
		Type:       domain.EventInsert,
		New:        created,
		ReceivedAt: time.Now(),
	})
	return created, nil
}

// OperationState exposes the retry executor's observable progress.
func (s *OrderSync) OperationState() retry.State {
	return s.executor.State()
}

// FeedHandle exposes the subscription handle for observability.
func (s *OrderSync) FeedHandle() reconnect.Handle {
	return s.sup.Handle()
}

// PendingMutations returns the number of unresolved optimistic overlays.
func (s *OrderSync) PendingMutations() int {
	return s.engine.PendingMutations()
}

// LastRefreshAt returns the time of the most recent successful full
// refresh.
func (s *OrderSync) LastRefreshAt() time.Time {
	return s.engine.LastRefreshAt()
}

func (s *OrderSync) fetchAll(ctx context.Context) ([]*domain.Order, error) {
	return s.repo.List(ctx)
}

func (s *OrderSync) applyRefresh(orders []*domain.Order) {
	metrics.RefreshesTotal.WithLabelValues("poll").Inc()
	s.engine.FullRefresh(orders)
}

func (s *OrderSync) onFeedEvent(ev domain.ChangeEvent) {
	metrics.FeedEventsTotal.WithLabelValues(string(ev.Type)).Inc()
	s.engine.ApplyRemoteEvent(ev)
}

// onCatchUp covers events missed while the subscription was down.
func (s *OrderSync) onCatchUp() {
	metrics.ReconnectsTotal.WithLabelValues("recovered").Inc()
	metrics.RefreshesTotal.WithLabelValues("catchup").Inc()
	s.poller.TriggerNow()
}

// gaugeLoop keeps the prometheus gauges in step with the engine. It runs
// on its own ticker so it never competes with Updates consumers.
func (s *OrderSync) gaugeLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.publishGauges()
		}
	}
}

func (s *OrderSync) publishGauges() {
	pending := 0
	for _, o := range s.engine.Orders() {
		if !o.Status.IsTerminal() {
			pending++
		}
	}
	metrics.QueueDepth.Set(float64(pending))
	metrics.PendingOverlays.Set(float64(s.engine.PendingMutations()))
	if s.sup.IsConnected() {
		metrics.FeedConnected.Set(1)
	} else {
		metrics.FeedConnected.Set(0)
	}
}
