package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"coffee-queue/internal/core/domain"
	"coffee-queue/internal/infra/storage"
)

// OrderRepo implements storage.OrderRepository on PostgreSQL.
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a PostgreSQL order repository.
func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

type orderRow struct {
	ID          string         `db:"id"`
	GuestName   string         `db:"guest_name"`
	Drink       string         `db:"drink"`
	Options     pq.StringArray `db:"options"`
	Status      string         `db:"status"`
	QueueNumber int            `db:"queue_number"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r orderRow) toDomain() *domain.Order {
	return &domain.Order{
		ID:          r.ID,
		GuestName:   r.GuestName,
		Drink:       r.Drink,
		Options:     append([]string(nil), r.Options...),
		Status:      domain.OrderStatus(r.Status),
		QueueNumber: r.QueueNumber,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

const orderColumns = "id, guest_name, drink, options, status, queue_number, created_at, updated_at"

// List fetches the full order list sorted by queue number.
func (r *OrderRepo) List(ctx context.Context) ([]*domain.Order, error) {
	var rows []orderRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT "+orderColumns+" FROM orders ORDER BY queue_number")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	out := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Get fetches one order by id.
func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	var row orderRow
	err := r.db.GetContext(ctx, &row,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// CountAhead counts non-terminal orders queued ahead of the given order.
func (r *OrderRepo) CountAhead(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM orders
		WHERE status = 'pending'
		  AND queue_number < (SELECT queue_number FROM orders WHERE id = $1)`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count ahead %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count orders ahead of %s: %w", id, err)
	}
	return count, nil
}

// Create inserts a new pending order. The queue number comes from a
// database sequence so numbers stay stable and gap-free per instance.
func (r *OrderRepo) Create(ctx context.Context, no storage.NewOrder) (*domain.Order, error) {
	if no.GuestName == "" || no.Drink == "" {
		return nil, fmt.Errorf("create order: invalid order: guest name and drink required")
	}

	var row orderRow
	err := r.db.GetContext(ctx, &row, `
		INSERT INTO orders (id, guest_name, drink, options)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		uuid.New().String(), no.GuestName, no.Drink, pq.StringArray(no.Options))
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateStatus applies a status mutation guarded against concurrent
// settlement: the row only updates while still pending. A lost race is
// reported as a conflict so the sync layer refetches instead of retrying.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("update status %s: invalid status %q", id, status)
	}

	var row orderRow
	err := r.db.GetContext(ctx, &row, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+orderColumns,
		id, string(status))
	if errors.Is(err, sql.ErrNoRows) {
		// Either the order is unknown or it already settled.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("update status %s: conflict: order already settled", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order %s: %w", id, err)
	}
	return row.toDomain(), nil
}
