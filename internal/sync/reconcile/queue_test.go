package reconcile

import (
	"testing"
	"time"

	"coffee-queue/internal/core/domain"
)

func TestQueueStatus_PositionCountsPendingAhead(t *testing.T) {
	e := NewEngine(testConfig())
	defer e.Close()

	now := time.Now()
	e.ApplyRemoteEvent(insertEvent(pendingOrder("first", 1, now)))
	e.ApplyRemoteEvent(insertEvent(pendingOrder("second", 2, now)))
	e.ApplyRemoteEvent(insertEvent(pendingOrder("third", 3, now)))

	qs, ok := e.QueueStatus("third")
	if !ok {
		t.Fatal("order not found")
	}
	if qs.Position != 2 {
		t.Errorf("position = %d, want 2", qs.Position)
	}
	if qs.EstimatedWait != "6 min" {
		t.Errorf("estimated wait = %q, want 6 min", qs.EstimatedWait)
	}
	if qs.IsReady {
		t.Error("pending order must not be ready")
	}
}

func TestQueueStatus_PositionDecreasesAsAheadComplete(t *testing.T) {
	e := NewEngine(testConfig())
	defer e.Close()

	now := time.Now()
	e.ApplyRemoteEvent(insertEvent(pendingOrder("x", 1, now)))
	e.ApplyRemoteEvent(insertEvent(pendingOrder("y", 2, now)))
	e.ApplyRemoteEvent(insertEvent(pendingOrder("a", 3, now)))

	qs, _ := e.QueueStatus("a")
	prev := qs.Position
	if prev != 2 {
		t.Fatalf("starting position = %d, want 2", prev)
	}

	// The order directly ahead completes: position drops within one
	// debounce window.
	done := pendingOrder("y", 2, now.Add(time.Second))
	done.Status = domain.OrderStatusCompleted
	e.ApplyRemoteEvent(updateEvent(done))

	select {
	case <-e.Updates():
	case <-time.After(time.Second):
		t.Fatal("no update signal after completion ahead")
	}

	qs, _ = e.QueueStatus("a")
	if qs.Position != 1 {
		t.Errorf("position = %d, want 1", qs.Position)
	}
	if qs.Position > prev {
		t.Error("position must never increase as orders ahead settle")
	}
	if qs.Position < 0 {
		t.Error("position must never be negative")
	}
}

func TestQueueStatus_FrontOfQueueAndReady(t *testing.T) {
	e := NewEngine(testConfig())
	defer e.Close()

	now := time.Now()
	e.ApplyRemoteEvent(insertEvent(pendingOrder("solo", 1, now)))

	qs, _ := e.QueueStatus("solo")
	if qs.Position != 0 {
		t.Errorf("front position = %d, want 0", qs.Position)
	}
	if qs.EstimatedWait != "0 min" {
		t.Errorf("front wait = %q, want 0 min", qs.EstimatedWait)
	}

	done := pendingOrder("solo", 1, now.Add(time.Second))
	done.Status = domain.OrderStatusCompleted
	e.ApplyRemoteEvent(updateEvent(done))

	qs, _ = e.QueueStatus("solo")
	if !qs.IsReady {
		t.Error("completed order must report ready")
	}
	if qs.Position != 0 {
		t.Errorf("terminal position = %d, want 0", qs.Position)
	}
}

func TestQueueStatus_CountsOptimisticOverlays(t *testing.T) {
	e := NewEngine(testConfig())
	defer e.Close()

	now := time.Now()
	e.ApplyRemoteEvent(insertEvent(pendingOrder("ahead", 1, now)))
	e.ApplyRemoteEvent(insertEvent(pendingOrder("mine", 2, now)))

	// Barista optimistically completes the order ahead; the derived view
	// must count the overlay, not the raw base.
	if err := e.ApplyOptimistic("ahead", Patch{Status: domain.OrderStatusCompleted}); err != nil {
		t.Fatalf("ApplyOptimistic: %v", err)
	}

	qs, _ := e.QueueStatus("mine")
	if qs.Position != 0 {
		t.Errorf("position = %d, want 0 with overlay applied", qs.Position)
	}
}

func TestFormatWait(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 min"},
		{30 * time.Second, "1 min"},
		{3 * time.Minute, "3 min"},
		{9 * time.Minute, "9 min"},
	}
	for _, c := range cases {
		if got := formatWait(c.d); got != c.want {
			t.Errorf("formatWait(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}
