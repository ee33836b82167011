package memory

import (
	"context"
	"errors"
	"testing"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/infra/storage"
)

func TestStore_CreateAssignsIDAndQueueNumber(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	a, err := s.Create(ctx, storage.NewOrder{GuestName: "Ana", Drink: "espresso"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, _ := s.Create(ctx, storage.NewOrder{GuestName: "Ben", Drink: "mocha"})

	if a.ID == "" || a.ID == b.ID {
		t.Error("ids must be unique and non-empty")
	}
	if a.QueueNumber != 1 || b.QueueNumber != 2 {
		t.Errorf("queue numbers = %d, %d; want 1, 2", a.QueueNumber, b.QueueNumber)
	}
	if a.Status != domain.OrderStatusPending {
		t.Errorf("new order status = %s, want pending", a.Status)
	}
}

func TestStore_CreateValidation(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Create(context.Background(), storage.NewOrder{Drink: "latte"}); err == nil {
		t.Error("expected validation error for missing guest name")
	}
}

func TestStore_UpdateStatusRejectsTerminal(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	o, _ := s.Create(ctx, storage.NewOrder{GuestName: "Ana", Drink: "espresso"})
	if _, err := s.UpdateStatus(ctx, o.ID, domain.OrderStatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := s.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("terminal update = %v, want ErrInvalidTransition", err)
	}

	got, _ := s.Get(ctx, o.ID)
	if got.Status != domain.OrderStatusCompleted {
		t.Error("rejected update changed stored state")
	}
}

func TestStore_CountAhead(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	first, _ := s.Create(ctx, storage.NewOrder{GuestName: "A", Drink: "latte"})
	second, _ := s.Create(ctx, storage.NewOrder{GuestName: "B", Drink: "latte"})
	third, _ := s.Create(ctx, storage.NewOrder{GuestName: "C", Drink: "latte"})

	if n, _ := s.CountAhead(ctx, third.ID); n != 2 {
		t.Errorf("count ahead = %d, want 2", n)
	}

	// Orders ahead that settle stop counting.
	if _, err := s.UpdateStatus(ctx, first.ID, domain.OrderStatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n, _ := s.CountAhead(ctx, third.ID); n != 1 {
		t.Errorf("count ahead after completion = %d, want 1", n)
	}
	if n, _ := s.CountAhead(ctx, second.ID); n != 0 {
		t.Errorf("count ahead for front order = %d, want 0", n)
	}
}

func TestStore_PublishesChangeEvents(t *testing.T) {
	var events []domain.ChangeEvent
	s := NewStore(func(ev domain.ChangeEvent) { events = append(events, ev) })
	ctx := context.Background()

	o, _ := s.Create(ctx, storage.NewOrder{GuestName: "Ana", Drink: "espresso"})
	_, _ = s.UpdateStatus(ctx, o.ID, domain.OrderStatusCompleted)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != domain.EventInsert || events[1].Type != domain.EventUpdate {
		t.Errorf("event types = %s, %s", events[0].Type, events[1].Type)
	}
	if events[1].Old == nil || events[1].Old.Status != domain.OrderStatusPending {
		t.Error("update event must carry the previous row")
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Get(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get unknown = %v, want ErrNotFound", err)
	}
}
