// Package subscription implements the conversational subscription flow: it
// interprets chat events, drives registration through location capture and
// keeps the active subscription set in line with persisted subscribers.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/weatherbot/core/logger"
	"github.com/m3rciful/weatherbot/core/telegram/state"
	"github.com/m3rciful/weatherbot/internal/geocode"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/upstream"
	"github.com/m3rciful/weatherbot/internal/weather"
)

const component = "service.subscriptions"

// Conversation steps kept in the step store.
const (
	StepAwaitSubscribeLocation state.Step = "awaiting_location:subscribe"
	StepAwaitInfoLocation      state.Step = "awaiting_location:info"
)

// Messenger delivers outbound chat messages.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	// SendLocationRequest shows text with a one-time request-location button.
	SendLocationRequest(ctx context.Context, chatID int64, text string) error
}

// Credentials supplies the current weather-provider key.
type Credentials interface {
	Get() string
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo        subscriber.Repository
	Geocoder    geocode.Resolver
	Weather     weather.Fetcher
	Credentials Credentials
	Messenger   Messenger
	// Steps defaults to an in-memory store.
	Steps state.Store
	// Active defaults to a fresh set.
	Active *ActiveSet
}

// Service is the subscription state machine. Callers serialize events per chat.
type Service struct {
	repo    subscriber.Repository
	geo     geocode.Resolver
	weather weather.Fetcher
	creds   Credentials
	out     Messenger
	steps   state.Store
	active  *ActiveSet
}

// NewService validates deps and builds a Service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Repo == nil:
		return nil, errors.New("subscription: nil repository")
	case d.Geocoder == nil:
		return nil, errors.New("subscription: nil geocoder")
	case d.Weather == nil:
		return nil, errors.New("subscription: nil weather fetcher")
	case d.Credentials == nil:
		return nil, errors.New("subscription: nil credentials")
	case d.Messenger == nil:
		return nil, errors.New("subscription: nil messenger")
	}
	if d.Steps == nil {
		d.Steps = state.NewMemoryStore(state.DefaultTTL)
	}
	if d.Active == nil {
		d.Active = NewActiveSet()
	}
	return &Service{
		repo:    d.Repo,
		geo:     d.Geocoder,
		weather: d.Weather,
		creds:   d.Credentials,
		out:     d.Messenger,
		steps:   d.Steps,
		active:  d.Active,
	}, nil
}

// Active exposes the active subscription set.
func (s *Service) Active() *ActiveSet { return s.active }

// Start greets the user.
func (s *Service) Start(ctx context.Context, chatID int64, name string) error {
	countEvent("start", "ok")
	return s.reply(ctx, chatID, Welcome(name))
}

// Subscribe asks an unknown chat for its location; known chats get a notice.
func (s *Service) Subscribe(ctx context.Context, chatID int64) error {
	rec, err := s.repo.FindByChatID(ctx, chatID)
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		s.setStep(ctx, chatID, StepAwaitSubscribeLocation)
		countEvent("subscribe", "prompt")
		return s.out.SendLocationRequest(ctx, chatID, MsgSubscribePrompt)
	case err != nil:
		return s.lookupFailed(ctx, "subscribe", chatID, err)
	case rec.Blocked:
		countEvent("subscribe", "blocked")
		return s.reply(ctx, chatID, MsgBlocked)
	default:
		countEvent("subscribe", "already_registered")
		return s.reply(ctx, chatID, MsgAlreadyRegistered)
	}
}

// Info asks a registered chat for its location; the city is never cached.
func (s *Service) Info(ctx context.Context, chatID int64) error {
	rec, err := s.repo.FindByChatID(ctx, chatID)
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		countEvent("info", "not_subscribed")
		return s.reply(ctx, chatID, MsgNotSubscribed)
	case err != nil:
		return s.lookupFailed(ctx, "info", chatID, err)
	case rec.Blocked:
		countEvent("info", "blocked")
		return s.reply(ctx, chatID, MsgBlocked)
	default:
		s.setStep(ctx, chatID, StepAwaitInfoLocation)
		countEvent("info", "prompt")
		return s.out.SendLocationRequest(ctx, chatID, MsgInfoPrompt)
	}
}

// Unsubscribe deletes the chat's record and drops it from the active set.
// Repeated calls answer "not registered".
func (s *Service) Unsubscribe(ctx context.Context, chatID int64) error {
	if _, err := s.repo.FindByChatID(ctx, chatID); err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			countEvent("unsubscribe", "not_registered")
			return s.reply(ctx, chatID, MsgNotRegistered)
		}
		logger.Error(ctx, component, "unsubscribe.lookup_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		countEvent("unsubscribe", "error")
		return s.reply(ctx, chatID, MsgUnregisterFailed)
	}

	if _, err := s.repo.Delete(ctx, chatID); err != nil {
		if errors.Is(err, subscriber.ErrNotFound) {
			s.dropActive(chatID)
			countEvent("unsubscribe", "not_registered")
			return s.reply(ctx, chatID, MsgNotRegistered)
		}
		logger.Error(ctx, component, "unsubscribe.delete_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		countEvent("unsubscribe", "error")
		return s.reply(ctx, chatID, MsgUnregisterFailed)
	}

	s.dropActive(chatID)
	s.clearStep(ctx, chatID)
	logger.Info(ctx, component, "unsubscribe.done", slog.Int64("chat_id", chatID))
	countEvent("unsubscribe", "ok")
	return s.reply(ctx, chatID, MsgUnregistered)
}

// ShareLocation handles a location event. It is accepted with or without a
// pending step; the subscriber record decides what happens.
func (s *Service) ShareLocation(ctx context.Context, chatID int64, name string, lat, lon float64) error {
	s.clearStep(ctx, chatID)

	rec, err := s.repo.FindByChatID(ctx, chatID)
	switch {
	case errors.Is(err, subscriber.ErrNotFound):
		return s.register(ctx, chatID, name, lat, lon)
	case err != nil:
		return s.lookupFailed(ctx, "location", chatID, err)
	case rec.Blocked:
		countEvent("location", "blocked")
		return s.reply(ctx, chatID, MsgBlocked)
	}

	city, ok := s.resolveCity(ctx, chatID, lat, lon)
	if !ok {
		countEvent("location", "unknown_city")
		return s.reply(ctx, chatID, MsgUnknownCity)
	}
	s.addActive(chatID)
	countEvent("location", "weather")
	return s.sendWeather(ctx, chatID, city)
}

// Help answers free text. A chat with a pending location step is prompted again.
func (s *Service) Help(ctx context.Context, chatID int64) error {
	step, err := s.steps.Get(ctx, chatID)
	if err != nil {
		logger.Warn(ctx, component, "step.get_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
	if step == StepAwaitSubscribeLocation || step == StepAwaitInfoLocation {
		countEvent("text", "reprompt")
		return s.out.SendLocationRequest(ctx, chatID, MsgAwaitingLocation)
	}
	countEvent("text", "help")
	return s.reply(ctx, chatID, MsgHelp)
}

func (s *Service) register(ctx context.Context, chatID int64, name string, lat, lon float64) error {
	city, ok := s.resolveCity(ctx, chatID, lat, lon)
	if !ok {
		countEvent("register", "unknown_city")
		return s.reply(ctx, chatID, MsgUnknownCity)
	}

	if _, err := s.repo.Create(ctx, chatID, name); err != nil {
		event := "register.failed"
		if errors.Is(err, subscriber.ErrDuplicate) {
			event = "register.duplicate"
		}
		logger.Warn(ctx, component, event,
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		countEvent("register", "failed")
		return s.reply(ctx, chatID, MsgRegistrationFailed)
	}

	s.addActive(chatID)
	logger.Info(ctx, component, "register.done",
		slog.Int64("chat_id", chatID),
		slog.String("city", city),
	)
	countEvent("register", "ok")
	if err := s.reply(ctx, chatID, MsgRegistered); err != nil {
		return err
	}
	return s.sendWeather(ctx, chatID, city)
}

// resolveCity reports false when the location maps to no usable city.
func (s *Service) resolveCity(ctx context.Context, chatID int64, lat, lon float64) (string, bool) {
	city, err := s.geo.Resolve(ctx, lat, lon)
	if err != nil || city == "" || city == geocode.UnknownLocation {
		attrs := []slog.Attr{
			slog.Int64("chat_id", chatID),
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
		}
		if err != nil {
			attrs = append(attrs, slog.String("err", err.Error()))
		}
		logger.Warn(ctx, component, "geocode.unresolved", attrs...)
		return "", false
	}
	return city, true
}

// sendWeather performs a single fetch; any failure is reported to the user.
func (s *Service) sendWeather(ctx context.Context, chatID int64, city string) error {
	cond, err := s.weather.Current(ctx, city, s.creds.Get())
	if err != nil {
		attrs := []slog.Attr{
			slog.Int64("chat_id", chatID),
			slog.String("city", city),
			slog.String("err", err.Error()),
		}
		var se *upstream.StatusError
		if errors.As(err, &se) {
			attrs = append(attrs,
				slog.String("provider", se.Provider),
				slog.Int("http_status", se.Status),
			)
		}
		logger.Warn(ctx, component, "weather.failed", attrs...)
		countEvent("weather", "failed")
		return s.reply(ctx, chatID, MsgSomethingWentWrong)
	}
	countEvent("weather", "ok")
	return s.reply(ctx, chatID, weather.Format(city, cond))
}

func (s *Service) lookupFailed(ctx context.Context, event string, chatID int64, err error) error {
	logger.Error(ctx, component, event+".lookup_failed",
		slog.Int64("chat_id", chatID),
		slog.String("err", err.Error()),
	)
	countEvent(event, "error")
	return s.reply(ctx, chatID, MsgSomethingWentWrong)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) error {
	if err := s.out.SendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}

func (s *Service) setStep(ctx context.Context, chatID int64, step state.Step) {
	if err := s.steps.Set(ctx, chatID, step); err != nil {
		logger.Warn(ctx, component, "step.set_failed",
			slog.Int64("chat_id", chatID),
			slog.String("step", string(step)),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) clearStep(ctx context.Context, chatID int64) {
	if err := s.steps.Clear(ctx, chatID); err != nil {
		logger.Warn(ctx, component, "step.clear_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) addActive(chatID int64) {
	s.active.Add(chatID)
	activeGauge.Set(float64(s.active.Len()))
}

func (s *Service) dropActive(chatID int64) {
	s.active.Remove(chatID)
	activeGauge.Set(float64(s.active.Len()))
}
