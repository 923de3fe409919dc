package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/weatherbot/core/logger"
	"github.com/m3rciful/weatherbot/internal/subscriber"
)

// LoadActive fills the active set from every persisted subscriber, blocked ones
// included. A listing failure is logged and leaves the set untouched.
func (s *Service) LoadActive(ctx context.Context) int {
	start := time.Now()
	list, err := s.repo.List(ctx)
	if err != nil {
		logger.Error(ctx, component, "reconcile.failed",
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return 0
	}
	for _, rec := range list {
		s.active.Add(rec.ChatID)
	}
	activeGauge.Set(float64(s.active.Len()))
	logger.Info(ctx, component, "reconcile.done",
		slog.Int("loaded", len(list)),
		slog.Int("active", s.active.Len()),
		slog.Duration("duration", logger.Took(start)),
	)
	return len(list)
}

// Shutdown empties the active set.
func (s *Service) Shutdown(ctx context.Context) {
	n := s.active.Len()
	s.active.Clear()
	activeGauge.Set(0)
	logger.Info(ctx, component, "shutdown.done", slog.Int("cleared", n))
}

// List returns every subscriber.
func (s *Service) List(ctx context.Context) ([]subscriber.Subscriber, error) {
	return s.repo.List(ctx)
}

// Block marks chatID as blocked. The chat stays in the active set.
func (s *Service) Block(ctx context.Context, chatID int64) (subscriber.Subscriber, error) {
	return s.setBlocked(ctx, chatID, true)
}

// Unblock clears the blocked flag for chatID.
func (s *Service) Unblock(ctx context.Context, chatID int64) (subscriber.Subscriber, error) {
	return s.setBlocked(ctx, chatID, false)
}

func (s *Service) setBlocked(ctx context.Context, chatID int64, blocked bool) (subscriber.Subscriber, error) {
	rec, err := s.repo.SetBlocked(ctx, chatID, blocked)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	logger.Info(ctx, component, "admin.set_blocked",
		slog.Int64("chat_id", chatID),
		slog.Bool("blocked", blocked),
	)
	return rec, nil
}

// Remove deletes chatID and drops it from the active set.
func (s *Service) Remove(ctx context.Context, chatID int64) (subscriber.Subscriber, error) {
	rec, err := s.repo.Delete(ctx, chatID)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	s.dropActive(chatID)
	s.clearStep(ctx, chatID)
	logger.Info(ctx, component, "admin.removed", slog.Int64("chat_id", chatID))
	return rec, nil
}
