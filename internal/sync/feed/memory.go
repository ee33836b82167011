package feed

import (
	"context"
	"sync"
	"time"

	"coffee-queue/internal/core/domain"
)

// MemoryFeed is an in-process Feed for tests and storeless demo mode.
// Publish fans events out to all matching subscribers; Fail simulates a
// transport failure ending every live subscription.
type MemoryFeed struct {
	mu           sync.Mutex
	subs         map[int]*memorySub
	nextID       int
	subscribeErr error
}

// NewMemoryFeed creates an empty in-memory feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]*memorySub)}
}

// SetSubscribeError makes subsequent Subscribe calls fail, to simulate an
// unreachable feed service.
func (f *MemoryFeed) SetSubscribeError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

// Subscribe registers a new subscriber on the channel.
func (f *MemoryFeed) Subscribe(ctx context.Context, channel string, filter Filter) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}

	id := f.nextID
	f.nextID++
	sub := &memorySub{
		feed:    f,
		id:      id,
		channel: channel,
		filter:  filter,
		events:  make(chan domain.ChangeEvent, 64),
		done:    make(chan struct{}),
	}
	f.subs[id] = sub
	return sub, nil
}

// Publish delivers an event to every matching subscriber on the channel.
func (f *MemoryFeed) Publish(channel string, ev domain.ChangeEvent) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	f.mu.Lock()
	subs := make([]*memorySub, 0, len(f.subs))
	for _, s := range f.subs {
		if s.channel == channel && s.filter.Matches(&ev) {
			subs = append(subs, s)
		}
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.deliver(ev)
	}
}

// Fail ends every live subscription with err, simulating a dropped
// transport connection.
func (f *MemoryFeed) Fail(err error) {
	f.mu.Lock()
	subs := make([]*memorySub, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.subs = make(map[int]*memorySub)
	f.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (f *MemoryFeed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type memorySub struct {
	feed    *MemoryFeed
	id      int
	channel string
	filter  Filter
	events  chan domain.ChangeEvent

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

func (s *memorySub) Events() <-chan domain.ChangeEvent { return s.events }
func (s *memorySub) Done() <-chan struct{}             { return s.done }

func (s *memorySub) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *memorySub) Unsubscribe() {
	s.feed.mu.Lock()
	delete(s.feed.subs, s.id)
	s.feed.mu.Unlock()
	s.close(nil)
}

func (s *memorySub) deliver(ev domain.ChangeEvent) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	// Drop rather than block when a subscriber stops draining.
	select {
	case s.events <- ev:
	default:
	}
}

func (s *memorySub) fail(err error) {
	s.close(err)
}

func (s *memorySub) close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.done)
}
