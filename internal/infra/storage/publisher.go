package storage

import (
	"context"
	"log/slog"
	"time"

	"coffee-queue/internal/core/domain"
)

// EventPublisher pushes change events onto an external broker. The Redis
// client satisfies this; the Postgres backend does not need it because a
// database trigger emits notifications on its own.
type EventPublisher interface {
	PublishEvent(ctx context.Context, channel string, ev domain.ChangeEvent) error
}

// PublishingRepository decorates a repository so every successful write is
// announced on the change feed. Publish failures are logged, not returned:
// the write already committed, and the polling fallback will deliver the
// change to any subscriber the broker missed.
type PublishingRepository struct {
	OrderRepository

	publisher EventPublisher
	channel   string
	logger    *slog.Logger
}

// WithPublisher wraps a repository with change-event publication.
func WithPublisher(repo OrderRepository, pub EventPublisher, channel string) *PublishingRepository {
	return &PublishingRepository{
		OrderRepository: repo,
		publisher:       pub,
		channel:         channel,
		logger:          slog.Default().With("component", "storage"),
	}
}

func (r *PublishingRepository) Create(ctx context.Context, o NewOrder) (*domain.Order, error) {
	created, err := r.OrderRepository.Create(ctx, o)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, domain.ChangeEvent{
		Type:       domain.EventInsert,
		New:        created.Clone(),
		ReceivedAt: time.Now(),
	})
	return created, nil
}

func (r *PublishingRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	before, _ := r.OrderRepository.Get(ctx, id)

	updated, err := r.OrderRepository.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	ev := domain.ChangeEvent{
		Type:       domain.EventUpdate,
		New:        updated.Clone(),
		ReceivedAt: time.Now(),
	}
	if before != nil {
		ev.Old = before.Clone()
	}
	r.publish(ctx, ev)
	return updated, nil
}

func (r *PublishingRepository) publish(ctx context.Context, ev domain.ChangeEvent) {
	if err := r.publisher.PublishEvent(ctx, r.channel, ev); err != nil {
		r.logger.Warn("failed to publish change event",
			"channel", r.channel,
			"order_id", ev.OrderID(),
			"error", err)
	}
}
