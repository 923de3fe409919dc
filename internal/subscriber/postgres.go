package subscriber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/weatherbot/core/logger"
)

const uniqueViolation = "23505"

// PostgresRepository stores subscribers in the subscribers table.
type PostgresRepository struct {
	db *sqlx.DB
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wraps db.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an unblocked subscriber. A taken chat id yields ErrDuplicate.
func (r *PostgresRepository) Create(ctx context.Context, chatID int64, name string) (Subscriber, error) {
	const q = `
INSERT INTO subscribers (chat_id, name)
VALUES ($1, $2)
RETURNING chat_id, name, blocked, created_at`
	start := time.Now()
	var s Subscriber
	err := r.db.GetContext(ctx, &s, q, chatID, name)
	logQuery(ctx, "subscriber.create", chatID, start, err)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Subscriber{}, ErrDuplicate
		}
		return Subscriber{}, fmt.Errorf("create subscriber %d: %w", chatID, err)
	}
	return s, nil
}

// FindByChatID loads one subscriber or returns ErrNotFound.
func (r *PostgresRepository) FindByChatID(ctx context.Context, chatID int64) (Subscriber, error) {
	const q = `
SELECT chat_id, name, blocked, created_at
  FROM subscribers
 WHERE chat_id = $1`
	var s Subscriber
	if err := r.db.GetContext(ctx, &s, q, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscriber{}, ErrNotFound
		}
		return Subscriber{}, fmt.Errorf("find subscriber %d: %w", chatID, err)
	}
	return s, nil
}

// SetBlocked updates the blocked flag and returns the updated row.
func (r *PostgresRepository) SetBlocked(ctx context.Context, chatID int64, blocked bool) (Subscriber, error) {
	const q = `
UPDATE subscribers
   SET blocked = $2
 WHERE chat_id = $1
RETURNING chat_id, name, blocked, created_at`
	start := time.Now()
	var s Subscriber
	err := r.db.GetContext(ctx, &s, q, chatID, blocked)
	logQuery(ctx, "subscriber.set_blocked", chatID, start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscriber{}, ErrNotFound
		}
		return Subscriber{}, fmt.Errorf("set blocked %d: %w", chatID, err)
	}
	return s, nil
}

// Delete removes the row and returns it as it was.
func (r *PostgresRepository) Delete(ctx context.Context, chatID int64) (Subscriber, error) {
	const q = `
DELETE FROM subscribers
 WHERE chat_id = $1
RETURNING chat_id, name, blocked, created_at`
	start := time.Now()
	var s Subscriber
	err := r.db.GetContext(ctx, &s, q, chatID)
	logQuery(ctx, "subscriber.delete", chatID, start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Subscriber{}, ErrNotFound
		}
		return Subscriber{}, fmt.Errorf("delete subscriber %d: %w", chatID, err)
	}
	return s, nil
}

// List returns all subscribers in registration order.
func (r *PostgresRepository) List(ctx context.Context) ([]Subscriber, error) {
	const q = `
SELECT chat_id, name, blocked, created_at
  FROM subscribers
 ORDER BY created_at, chat_id`
	out := []Subscriber{}
	if err := r.db.SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return out, nil
}

func logQuery(ctx context.Context, event string, chatID int64, start time.Time, err error) {
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Warn(ctx, "db", event,
			slog.String("status", logger.Status(err)),
			slog.Int64("chat_id", chatID),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "db", event,
			slog.String("status", "ok"),
			slog.Int64("chat_id", chatID),
			slog.Duration("duration", logger.Took(start)),
		)
	}
}
