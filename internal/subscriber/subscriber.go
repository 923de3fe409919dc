// Package subscriber persists weather subscribers keyed by Telegram chat id.
package subscriber

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record exists for a chat id.
	ErrNotFound = errors.New("subscriber: not found")
	// ErrDuplicate is returned when a record for the chat id already exists.
	ErrDuplicate = errors.New("subscriber: already exists")
)

// Subscriber is a persisted subscription record.
type Subscriber struct {
	ChatID    int64     `db:"chat_id" json:"chatId"`
	Name      string    `db:"name" json:"username"`
	Blocked   bool      `db:"blocked" json:"isBlock"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Repository is the subscriber store.
type Repository interface {
	Create(ctx context.Context, chatID int64, name string) (Subscriber, error)
	FindByChatID(ctx context.Context, chatID int64) (Subscriber, error)
	SetBlocked(ctx context.Context, chatID int64, blocked bool) (Subscriber, error)
	Delete(ctx context.Context, chatID int64) (Subscriber, error)
	List(ctx context.Context) ([]Subscriber, error)
}
