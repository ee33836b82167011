package health

import (
	"context"
	"sync"
	"time"

	"coffee-queue/internal/sync/reconnect"
)

// SyncProbe is the slice of the sync layer the monitor observes.
type SyncProbe interface {
	IsConnected() bool
	FeedHandle() reconnect.Handle
	PendingMutations() int
	LastRefreshAt() time.Time
}

// StorePinger checks reachability of the backing store. May be nil when
// the store has no meaningful ping (in-memory).
type StorePinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the sync layer and the store.
type Monitor struct {
	probe      SyncProbe
	store      StorePinger
	staleAfter time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor. staleAfter bounds how old the last
// successful refresh may be before health degrades; zero defaults to 5m.
func NewMonitor(probe SyncProbe, store StorePinger, staleAfter time.Duration) *Monitor {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &Monitor{
		probe:      probe,
		store:      store,
		staleAfter: staleAfter,
	}
}

// CheckHealth builds the current health report.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering the store ping.
	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	handle := m.probe.FeedHandle()
	report := Report{
		Status:            StatusHealthy,
		FeedConnected:     m.probe.IsConnected(),
		ReconnectAttempts: handle.ReconnectAttempts,
		PendingMutations:  m.probe.PendingMutations(),
		StoreReachable:    true,
	}

	if last := m.probe.LastRefreshAt(); !last.IsZero() {
		report.RefreshAgeSecs = time.Since(last).Seconds()
	}

	if m.store != nil {
		if err := m.store.Health(ctx); err != nil {
			report.StoreReachable = false
		}
	}

	switch {
	case !report.StoreReachable:
		report.Status = StatusCritical
	case !report.FeedConnected && handle.Status == reconnect.StatusError:
		// Reconnect attempts exhausted; only manual intervention or a
		// poll cycle moves data now.
		report.Status = StatusCritical
	case !report.FeedConnected,
		report.RefreshAgeSecs > m.staleAfter.Seconds(),
		report.PendingMutations > 0:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
