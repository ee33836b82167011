package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/sync/feed"
)

// Subscribe implements feed.Feed over Redis pub/sub. The receive loop uses
// explicit ReceiveMessage calls so transport failures surface as a closed
// subscription instead of being retried silently; the reconnect supervisor
// owns the recovery policy.
func (c *Client) Subscribe(ctx context.Context, channel string, filter feed.Filter) (feed.Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, channel)

	// Force the SUBSCRIBE handshake so an unreachable server fails here,
	// not on first receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSub{
		events: make(chan domain.ChangeEvent, 64),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer func() { _ = pubsub.Close() }()
		for {
			msg, err := pubsub.ReceiveMessage(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					sub.finish(nil)
				} else {
					sub.finish(err)
				}
				return
			}

			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			ev.ReceivedAt = time.Now()
			if ev.OrderID() == "" || !filter.Matches(&ev) {
				continue
			}
			select {
			case sub.events <- ev:
			default:
			}
		}
	}()

	return sub, nil
}

type redisSub struct {
	events chan domain.ChangeEvent
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *redisSub) Events() <-chan domain.ChangeEvent { return s.events }
func (s *redisSub) Done() <-chan struct{}             { return s.done }

func (s *redisSub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *redisSub) Unsubscribe() {
	s.cancel()
}

func (s *redisSub) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
}
