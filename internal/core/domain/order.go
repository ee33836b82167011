package domain

import (
	"errors"
	"time"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ErrInvalidTransition is returned when an invalid status transition is attempted.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidTransitions defines allowed status transitions.
// Completed and cancelled are terminal: no further writes are accepted.
var ValidTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

// CanTransition checks if a status transition is valid.
func CanTransition(from, to OrderStatus) bool {
	targets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, target := range targets {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status accepts no further updates.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsValid reports whether the status is one of the known values.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a single guest order. The reconciliation engine owns the
// authoritative in-memory collection of these; push events, poll refreshes
// and optimistic writes all mutate the same record.
type Order struct {
	ID          string      `json:"id"           db:"id"`
	GuestName   string      `json:"guest_name"   db:"guest_name"`
	Drink       string      `json:"drink"        db:"drink"`
	Options     []string    `json:"options"      db:"-"`
	Status      OrderStatus `json:"status"       db:"status"`
	QueueNumber int         `json:"queue_number" db:"queue_number"`
	CreatedAt   time.Time   `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"   db:"updated_at"`
}

// Clone returns a deep copy. The engine hands copies to readers so callers
// can never mutate the base collection behind its back.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.Options != nil {
		c.Options = append([]string(nil), o.Options...)
	}
	return &c
}

// QueueStatus is the derived per-order view the guest screen reads.
// It is recomputed on every engine update and never persisted.
type QueueStatus struct {
	OrderID       string      `json:"order_id"`
	Position      int         `json:"position"`
	EstimatedWait string      `json:"estimated_wait"`
	IsReady       bool        `json:"is_ready"`
	Status        OrderStatus `json:"status"`
}
