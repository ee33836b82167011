// Package storage defines the data-access capability the sync layer
// consumes. Implementations live in subpackages; calls may fail with
// unclassified errors, which the sync layer classifies before acting.
package storage

import (
	"context"
	"errors"

	"coffee-queue/internal/core/domain"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// NewOrder carries the fields a guest supplies when placing an order.
type NewOrder struct {
	GuestName string
	Drink     string
	Options   []string
}

// OrderRepository is the request/response side of the order store.
type OrderRepository interface {
	// List fetches the full order list, newest queue number last.
	List(ctx context.Context) ([]*domain.Order, error)

	// Get fetches one order's details.
	Get(ctx context.Context, id string) (*domain.Order, error)

	// CountAhead returns the number of non-terminal orders queued ahead
	// of the given order, for wait-time computation.
	CountAhead(ctx context.Context, id string) (int, error)

	// Create inserts a new order, assigning id and queue number.
	Create(ctx context.Context, o NewOrder) (*domain.Order, error)

	// UpdateStatus submits a status mutation. Terminal orders reject
	// further updates.
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
}
