// Package memory implements the order repository in process memory, for
// tests and storeless demo mode. Writes publish change events so a local
// feed sees the same notifications a database trigger would produce.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/infra/storage"
)

// Store is an in-memory order repository.
type Store struct {
	mu        sync.RWMutex
	orders    map[string]*domain.Order
	nextQueue int
	publish   func(domain.ChangeEvent)
}

// NewStore creates an empty store. publish receives one event per write;
// nil disables publishing.
func NewStore(publish func(domain.ChangeEvent)) *Store {
	if publish == nil {
		publish = func(domain.ChangeEvent) {}
	}
	return &Store{
		orders:  make(map[string]*domain.Order),
		publish: publish,
	}
}

// List returns all orders sorted by queue number.
func (s *Store) List(ctx context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	sortByQueue(out)
	return out, nil
}

// Get returns one order by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, storage.ErrNotFound)
	}
	return o.Clone(), nil
}

// CountAhead counts non-terminal orders with a lower queue number.
func (s *Store) CountAhead(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.orders[id]
	if !ok {
		return 0, fmt.Errorf("count ahead %s: %w", id, storage.ErrNotFound)
	}

	count := 0
	for _, o := range s.orders {
		if o.ID != id && !o.Status.IsTerminal() && o.QueueNumber < target.QueueNumber {
			count++
		}
	}
	return count, nil
}

// Create inserts a new pending order with the next queue number.
func (s *Store) Create(ctx context.Context, no storage.NewOrder) (*domain.Order, error) {
	if no.GuestName == "" || no.Drink == "" {
		return nil, fmt.Errorf("create order: invalid order: guest name and drink required")
	}

	s.mu.Lock()
	s.nextQueue++
	now := time.Now()
	o := &domain.Order{
		ID:          uuid.New().String(),
		GuestName:   no.GuestName,
		Drink:       no.Drink,
		Options:     append([]string(nil), no.Options...),
		Status:      domain.OrderStatusPending,
		QueueNumber: s.nextQueue,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.orders[o.ID] = o
	out := o.Clone()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Type: domain.EventInsert, New: out.Clone(), ReceivedAt: now})
	return out, nil
}

// UpdateStatus applies a status mutation, rejecting invalid transitions.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("update status %s: %w", id, storage.ErrNotFound)
	}
	if !domain.CanTransition(o.Status, status) {
		cur := o.Status
		s.mu.Unlock()
		return nil, fmt.Errorf("update status %s: invalid transition %s -> %s: %w",
			id, cur, status, domain.ErrInvalidTransition)
	}

	old := o.Clone()
	o.Status = status
	o.UpdatedAt = time.Now()
	out := o.Clone()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{
		Type:       domain.EventUpdate,
		New:        out.Clone(),
		Old:        old,
		ReceivedAt: out.UpdatedAt,
	})
	return out, nil
}

func sortByQueue(orders []*domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].QueueNumber < orders[j].QueueNumber
	})
}
