package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/sync/feed"
)

// ListenerFeed implements the change feed on Postgres LISTEN/NOTIFY. A
// trigger on the orders table notifies one JSON payload per row change;
// each subscription holds a dedicated connection, since LISTEN binds to a
// session. Notifications sent while the connection is down are lost, which
// is exactly the no-replay contract the sync layer is built around.
type ListenerFeed struct {
	url string
}

// NewListenerFeed creates a LISTEN/NOTIFY-backed feed for the given
// database URL.
func NewListenerFeed(url string) *ListenerFeed {
	return &ListenerFeed{url: url}
}

// Subscribe opens a connection, issues LISTEN, and pumps notifications
// into the returned subscription until the connection fails or the
// subscriber unsubscribes.
func (f *ListenerFeed) Subscribe(ctx context.Context, channel string, filter feed.Filter) (feed.Subscription, error) {
	conn, err := pgx.Connect(ctx, f.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect listener: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &listenerSub{
		events: make(chan domain.ChangeEvent, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			_ = conn.Close(closeCtx)
		}()

		for {
			n, err := conn.WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					sub.finish(nil) // clean unsubscribe
				} else {
					sub.finish(err)
				}
				return
			}

			ev, err := decodePayload(n.Payload)
			if err != nil {
				// A malformed payload is a bug in the trigger, not a
				// transport failure; skip the event.
				continue
			}
			if !filter.Matches(ev) {
				continue
			}
			select {
			case sub.events <- *ev:
			default:
				// Subscriber stopped draining; drop rather than block
				// the notification pump.
			}
		}
	}()

	return sub, nil
}

func decodePayload(payload string) (*domain.ChangeEvent, error) {
	var ev domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	ev.ReceivedAt = time.Now()
	if ev.OrderID() == "" {
		return nil, fmt.Errorf("notification without order id")
	}
	return &ev, nil
}

type listenerSub struct {
	events chan domain.ChangeEvent
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *listenerSub) Events() <-chan domain.ChangeEvent { return s.events }
func (s *listenerSub) Done() <-chan struct{}             { return s.done }

func (s *listenerSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *listenerSub) Unsubscribe() {
	s.cancel()
}

func (s *listenerSub) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
}
