package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"coffee-queue/internal/core/domain"
)

func TestMemoryFeed_PublishDelivers(t *testing.T) {
	f := NewMemoryFeed()
	sub, err := f.Subscribe(context.Background(), "orders", Filter{})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	f.Publish("orders", domain.ChangeEvent{
		Type: domain.EventInsert,
		New:  &domain.Order{ID: "a", Status: domain.OrderStatusPending},
	})

	select {
	case ev := <-sub.Events():
		if ev.Type != domain.EventInsert || ev.New.ID != "a" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestMemoryFeed_FilterMatching(t *testing.T) {
	f := NewMemoryFeed()
	sub, _ := f.Subscribe(context.Background(), "orders", Filter{Column: "status", Equals: "pending"})
	defer sub.Unsubscribe()

	f.Publish("orders", domain.ChangeEvent{
		Type: domain.EventUpdate,
		New:  &domain.Order{ID: "done", Status: domain.OrderStatusCompleted},
	})
	f.Publish("orders", domain.ChangeEvent{
		Type: domain.EventInsert,
		New:  &domain.Order{ID: "open", Status: domain.OrderStatusPending},
	})

	select {
	case ev := <-sub.Events():
		if ev.New.ID != "open" {
			t.Errorf("filter let through %q", ev.New.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("filtered subscription received nothing")
	}
}

func TestMemoryFeed_ChannelIsolation(t *testing.T) {
	f := NewMemoryFeed()
	sub, _ := f.Subscribe(context.Background(), "orders", Filter{})
	defer sub.Unsubscribe()

	f.Publish("menu", domain.ChangeEvent{Type: domain.EventInsert, New: &domain.Order{ID: "x"}})

	select {
	case ev := <-sub.Events():
		t.Errorf("received event from another channel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryFeed_FailEndsSubscriptions(t *testing.T) {
	f := NewMemoryFeed()
	sub, _ := f.Subscribe(context.Background(), "orders", Filter{})

	cause := errors.New("transport dropped")
	f.Fail(cause)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Fail")
	}
	if !errors.Is(sub.Err(), cause) {
		t.Errorf("Err() = %v, want %v", sub.Err(), cause)
	}
	if f.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers after Fail, got %d", f.SubscriberCount())
	}
}

func TestMemoryFeed_UnsubscribeIdempotent(t *testing.T) {
	f := NewMemoryFeed()
	sub, _ := f.Subscribe(context.Background(), "orders", Filter{})

	sub.Unsubscribe()
	sub.Unsubscribe()

	if sub.Err() != nil {
		t.Errorf("clean unsubscribe must leave Err nil, got %v", sub.Err())
	}
	if f.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", f.SubscriberCount())
	}
}
