// Package feed defines the push-subscription contract for order change
// notifications. Implementations deliver events as typed messages on a
// channel rather than ambient callbacks so consumers can be tested against
// a deterministic event sequence.
package feed

import (
	"context"

	"coffee-queue/internal/core/domain"
)

// Filter narrows a subscription to rows matching one column value.
// A zero Filter matches everything.
type Filter struct {
	Column string
	Equals string
}

// Matches evaluates the filter against the order an event refers to.
func (f Filter) Matches(ev *domain.ChangeEvent) bool {
	if f.Column == "" {
		return true
	}
	o := ev.New
	if o == nil {
		o = ev.Old
	}
	if o == nil {
		return false
	}
	switch f.Column {
	case "id":
		return o.ID == f.Equals
	case "status":
		return string(o.Status) == f.Equals
	case "drink":
		return o.Drink == f.Equals
	}
	return false
}

// Subscription is one live subscription to a named channel.
type Subscription interface {
	// Events delivers change events until the subscription ends.
	Events() <-chan domain.ChangeEvent

	// Done is closed when the subscription ends, whether by failure or
	// by Unsubscribe.
	Done() <-chan struct{}

	// Err returns the failure that ended the subscription, or nil after
	// a clean Unsubscribe. Only valid once Done is closed.
	Err() error

	// Unsubscribe ends the subscription. Safe to call more than once.
	Unsubscribe()
}

// Feed is a push-subscription source for change events. Feeds give no
// replay or ordering guarantee across disconnects; consumers must issue a
// catch-up refresh after reconnecting.
type Feed interface {
	Subscribe(ctx context.Context, channel string, filter Filter) (Subscription, error)
}
