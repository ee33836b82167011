// Package reconcile merges three concurrent sources of truth — push feed
// events, polling refreshes, and locally-issued optimistic mutations — into
// one authoritative in-memory order collection. Conflicts resolve by
// recency: within a single order id the last server timestamp wins, and a
// pending optimistic overlay stays visible to readers until it is confirmed
// or rolled back.
package reconcile

import (
	"errors"
	"sync"
	"time"

	"coffee-queue/internal/core/domain"
)

var (
	// ErrMutationInFlight is returned when an optimistic write is attempted
	// on an order that already has one pending.
	ErrMutationInFlight = errors.New("mutation already in flight for this order")

	// ErrUnknownOrder is returned when an optimistic write targets an order
	// the engine has never seen.
	ErrUnknownOrder = errors.New("unknown order")
)

// Config holds engine tunables. Zero values fall back to defaults.
type Config struct {
	// WaitPerOrder is the flat per-order wait constant used for
	// estimated wait times.
	WaitPerOrder time.Duration

	// DebounceWindow coalesces bursts of updates into one change
	// notification.
	DebounceWindow time.Duration
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	WaitPerOrder:   3 * time.Minute,
	DebounceWindow: 1 * time.Second,
}

// Patch is the field set an optimistic write may change.
type Patch struct {
	Status domain.OrderStatus
}

// overlay is a pending optimistic write shadowing the base record.
type overlay struct {
	patch     Patch
	writtenAt time.Time
}

// Engine is the single authoritative holder of order state. All state
// transitions happen synchronously under one lock; readers always see the
// base collection merged with pending overlays, never the raw base.
type Engine struct {
	cfg Config

	mu       sync.Mutex
	base     map[string]*domain.Order
	overlays map[string]*overlay
	deferred map[string]domain.ChangeEvent

	updates       chan struct{}
	debounce      *time.Timer
	pendingNotify bool
	closed        bool

	lastRefreshAt time.Time
}

// NewEngine creates an empty engine.
func NewEngine(cfg Config) *Engine {
	if cfg.WaitPerOrder <= 0 {
		cfg.WaitPerOrder = DefaultConfig.WaitPerOrder
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultConfig.DebounceWindow
	}
	return &Engine{
		cfg:      cfg,
		base:     make(map[string]*domain.Order),
		overlays: make(map[string]*overlay),
		deferred: make(map[string]domain.ChangeEvent),
		updates:  make(chan struct{}, 1),
	}
}

// Updates delivers a coalesced signal whenever the visible collection may
// have changed. Bursts within one debounce window produce one signal.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Close stops the pending debounce timer. No notification fires after
// Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// ApplyRemoteEvent merges one feed event into the base collection.
// Late or duplicate events for terminal orders are discarded. Events older
// than a pending overlay's write time are deferred one tick and replayed
// when the overlay clears, or dropped when clearly stale.
func (e *Engine) ApplyRemoteEvent(ev domain.ChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyRemoteLocked(ev, true)
}

func (e *Engine) applyRemoteLocked(ev domain.ChangeEvent, allowDefer bool) {
	id := ev.OrderID()
	if id == "" {
		return
	}

	if ev.Type == domain.EventDelete {
		if _, ok := e.base[id]; ok {
			delete(e.base, id)
			delete(e.overlays, id)
			delete(e.deferred, id)
			e.notifyLocked()
		}
		return
	}

	if ev.New == nil {
		return
	}

	cur := e.base[id]

	// Terminal orders accept no further writes.
	if cur != nil && cur.Status.IsTerminal() {
		return
	}

	// Last-timestamp-wins within one id.
	if cur != nil && ev.Timestamp().Before(cur.UpdatedAt) {
		return
	}

	if ov, ok := e.overlays[id]; ok && ev.Timestamp().Before(ov.writtenAt) {
		if !allowDefer {
			return // still older than the overlay on replay: drop
		}
		e.deferred[id] = ev
		return
	}

	next := ev.New.Clone()
	if cur != nil {
		// Update events merge fields; zero-valued fields in the payload
		// keep their current value.
		merged := cur.Clone()
		if next.GuestName != "" {
			merged.GuestName = next.GuestName
		}
		if next.Drink != "" {
			merged.Drink = next.Drink
		}
		if next.Options != nil {
			merged.Options = next.Options
		}
		if next.Status != "" {
			merged.Status = next.Status
		}
		if next.QueueNumber != 0 {
			merged.QueueNumber = next.QueueNumber
		}
		merged.UpdatedAt = ev.Timestamp()
		next = merged
	}
	e.base[id] = next
	e.notifyLocked()
}

// ApplyOptimistic stores a shadow patch for an order, immediately visible
// to readers. At most one overlay per id may be pending; a second mutation
// on the same order is rejected, never interleaved.
func (e *Engine) ApplyOptimistic(id string, patch Patch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.base[id]
	if !ok {
		return ErrUnknownOrder
	}
	if _, pending := e.overlays[id]; pending {
		return ErrMutationInFlight
	}
	if patch.Status != "" && !domain.CanTransition(cur.Status, patch.Status) {
		return domain.ErrInvalidTransition
	}

	e.overlays[id] = &overlay{patch: patch, writtenAt: time.Now()}
	e.notifyLocked()
	return nil
}

// ConfirmOptimistic settles a pending overlay after the remote call
// succeeded. The patch is folded into the base unless a newer server value
// already arrived, so readers never regress the user's own action while
// the confirming feed event is still in flight.
func (e *Engine) ConfirmOptimistic(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ov, ok := e.overlays[id]
	if !ok {
		return
	}
	delete(e.overlays, id)

	if cur, ok := e.base[id]; ok && cur.UpdatedAt.Before(ov.writtenAt) {
		next := cur.Clone()
		applyPatch(next, ov.patch)
		next.UpdatedAt = ov.writtenAt
		e.base[id] = next
	}

	e.replayDeferredLocked(id)
	e.notifyLocked()
}

// RollbackOptimistic discards a pending overlay after exhausted retries.
// The base already holds the last known-good value, including any newer
// server events merged while the overlay was pending.
func (e *Engine) RollbackOptimistic(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.overlays[id]; !ok {
		return
	}
	delete(e.overlays, id)
	e.replayDeferredLocked(id)
	e.notifyLocked()
}

// FullRefresh replaces the base collection wholesale from a poll result.
// Pending overlays are preserved and stay visible on top of the new base.
func (e *Engine) FullRefresh(orders []*domain.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()

	base := make(map[string]*domain.Order, len(orders))
	for _, o := range orders {
		if o == nil || o.ID == "" {
			continue
		}
		base[o.ID] = o.Clone()
	}
	e.base = base
	e.deferred = make(map[string]domain.ChangeEvent)

	// Drop overlays whose order vanished server-side.
	for id := range e.overlays {
		if _, ok := e.base[id]; !ok {
			delete(e.overlays, id)
		}
	}

	e.lastRefreshAt = time.Now()
	e.notifyLocked()
}

// Get returns the visible (overlay-merged) value of one order.
func (e *Engine) Get(id string) (*domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.base[id]
	if !ok {
		return nil, false
	}
	return e.mergedLocked(o), true
}

// Orders returns the visible collection sorted by queue number.
func (e *Engine) Orders() []*domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*domain.Order, 0, len(e.base))
	for _, o := range e.base {
		out = append(out, e.mergedLocked(o))
	}
	sortByQueueNumber(out)
	return out
}

// PendingMutations returns the number of unresolved optimistic overlays.
func (e *Engine) PendingMutations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.overlays)
}

// LastRefreshAt returns the time of the most recent full refresh.
func (e *Engine) LastRefreshAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRefreshAt
}

func (e *Engine) mergedLocked(o *domain.Order) *domain.Order {
	out := o.Clone()
	if ov, ok := e.overlays[o.ID]; ok {
		applyPatch(out, ov.patch)
	}
	return out
}

func applyPatch(o *domain.Order, p Patch) {
	if p.Status != "" {
		o.Status = p.Status
	}
}

func (e *Engine) replayDeferredLocked(id string) {
	ev, ok := e.deferred[id]
	if !ok {
		return
	}
	delete(e.deferred, id)
	e.applyRemoteLocked(ev, false)
}

// notifyLocked schedules a coalesced update signal one debounce window out.
func (e *Engine) notifyLocked() {
	if e.closed || e.pendingNotify {
		return
	}
	e.pendingNotify = true
	e.debounce = time.AfterFunc(e.cfg.DebounceWindow, func() {
		e.mu.Lock()
		e.pendingNotify = false
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return
		}
		select {
		case e.updates <- struct{}{}:
		default:
		}
	})
}
