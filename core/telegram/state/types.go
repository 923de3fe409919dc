package state

import (
	"context"
	"time"
)

// Step identifies where a chat currently is in a conversation.
type Step string

// StepIdle is returned for chats without a stored step.
const StepIdle Step = ""

// DefaultTTL bounds how long an unanswered step is kept.
const DefaultTTL = 15 * time.Minute

// Store persists conversation steps keyed by chat id.
type Store interface {
	Get(ctx context.Context, chatID int64) (Step, error)
	Set(ctx context.Context, chatID int64, step Step) error
	Clear(ctx context.Context, chatID int64) error
}
