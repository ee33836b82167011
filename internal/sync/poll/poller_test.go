package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coffee-queue/internal/core/domain"
)

func TestPoller_InitialAndIntervalRefresh(t *testing.T) {
	var fetches atomic.Int32
	var applied atomic.Int32

	p := NewPoller(Config{Interval: 20 * time.Millisecond},
		func(ctx context.Context) ([]*domain.Order, error) {
			fetches.Add(1)
			return []*domain.Order{{ID: "a"}}, nil
		},
		func(orders []*domain.Order) { applied.Add(1) })

	p.Start(context.Background())
	defer p.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && fetches.Load() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if fetches.Load() < 3 {
		t.Fatalf("expected initial + interval refreshes, got %d", fetches.Load())
	}
	if applied.Load() != fetches.Load() {
		t.Errorf("applied %d of %d fetches", applied.Load(), fetches.Load())
	}
}

func TestPoller_TriggerNow(t *testing.T) {
	var fetches atomic.Int32
	p := NewPoller(Config{Interval: time.Hour},
		func(ctx context.Context) ([]*domain.Order, error) {
			fetches.Add(1)
			return nil, nil
		},
		func([]*domain.Order) {})

	p.Start(context.Background())
	defer p.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && fetches.Load() < 1 {
		time.Sleep(2 * time.Millisecond)
	}

	p.TriggerNow()
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && fetches.Load() < 2 {
		time.Sleep(2 * time.Millisecond)
	}
	if fetches.Load() != 2 {
		t.Errorf("expected 2 fetches after trigger, got %d", fetches.Load())
	}
}

func TestPoller_FetchFailureRecorded(t *testing.T) {
	var mu sync.Mutex
	fail := true

	p := NewPoller(Config{Interval: 10 * time.Millisecond},
		func(ctx context.Context) ([]*domain.Order, error) {
			mu.Lock()
			defer mu.Unlock()
			if fail {
				return nil, errors.New("connection refused")
			}
			return nil, nil
		},
		func([]*domain.Order) {})

	p.Start(context.Background())
	defer p.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && p.LastError() == nil {
		time.Sleep(2 * time.Millisecond)
	}
	if p.LastError() == nil {
		t.Fatal("fetch failure not recorded")
	}

	mu.Lock()
	fail = false
	mu.Unlock()

	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) && p.LastError() != nil {
		time.Sleep(2 * time.Millisecond)
	}
	if p.LastError() != nil {
		t.Error("error not cleared after successful refresh")
	}
	if p.LastSuccess().IsZero() {
		t.Error("LastSuccess not recorded")
	}
}

func TestPoller_CloseStopsRefreshes(t *testing.T) {
	var fetches atomic.Int32
	p := NewPoller(Config{Interval: 5 * time.Millisecond},
		func(ctx context.Context) ([]*domain.Order, error) {
			fetches.Add(1)
			return nil, nil
		},
		func([]*domain.Order) {})

	p.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	p.Close()

	n := fetches.Load()
	time.Sleep(30 * time.Millisecond)
	if fetches.Load() != n {
		t.Errorf("fetches continued after Close: %d -> %d", n, fetches.Load())
	}
}
