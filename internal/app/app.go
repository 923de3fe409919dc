// Package app wires configuration, storage, providers and the Telegram runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/m3rciful/weatherbot/core/bootstrap"
	coredatabase "github.com/m3rciful/weatherbot/core/database"
	"github.com/m3rciful/weatherbot/core/logger"
	coretelegram "github.com/m3rciful/weatherbot/core/telegram"
	"github.com/m3rciful/weatherbot/core/telegram/state"
	"github.com/m3rciful/weatherbot/internal/admin"
	"github.com/m3rciful/weatherbot/internal/bot"
	"github.com/m3rciful/weatherbot/internal/config"
	"github.com/m3rciful/weatherbot/internal/credential"
	"github.com/m3rciful/weatherbot/internal/geocode"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/subscription"
	"github.com/m3rciful/weatherbot/internal/upstream"
	"github.com/m3rciful/weatherbot/internal/weather"
)

// App holds the long-lived components of the bot.
type App struct {
	cfg   *config.AppConfig
	infra *bootstrap.Result
	redis *redis.Client

	creds     *credential.Cell
	svc       *subscription.Service
	messenger *bot.Messenger
	handlers  *bot.Handlers
	locker    *state.ChatLocker
	admin     *admin.Server
}

// New bootstraps logging and, when configured, the database, then builds the App.
func New(cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:       &cfg.Config,
		Database:     cfg.Database,
		SkipDatabase: !cfg.UsesDatabase(),
	})
	if err != nil {
		return nil, err
	}
	a, err := Build(cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

// Build assembles the App on top of already initialized infrastructure.
func Build(cfg *config.AppConfig, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if infra == nil {
		infra = &bootstrap.Result{}
	}
	a := &App{
		cfg:       cfg,
		infra:     infra,
		creds:     credential.NewCell(cfg.Weather.APIKey),
		messenger: bot.NewMessenger(),
		locker:    state.NewChatLocker(),
	}

	repo, err := a.repository()
	if err != nil {
		return nil, err
	}
	steps, err := a.stepStore()
	if err != nil {
		return nil, err
	}

	a.svc, err = subscription.NewService(subscription.Deps{
		Repo:        repo,
		Geocoder:    a.geocoder(),
		Weather:     weather.NewClient(upstream.NewClient("weather", upstream.Options{Timeout: cfg.Weather.Timeout}), cfg.Weather.Endpoint),
		Credentials: a.creds,
		Messenger:   a.messenger,
		Steps:       steps,
	})
	if err != nil {
		a.closeRedis()
		return nil, err
	}
	a.handlers = bot.NewHandlers(a.svc, a.creds, a.messenger)

	if cfg.Admin.Listen != "" {
		a.admin = admin.NewServer(admin.Options{
			Listen: cfg.Admin.Listen,
			Token:  cfg.Admin.Token,
		}, admin.NewHandler(a.svc, a.creds))
	}
	return a, nil
}

func (a *App) repository() (subscriber.Repository, error) {
	if a.infra.DB == nil && a.cfg.UsesDatabase() {
		db, err := coredatabase.Open(a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.infra.DB = db
		a.infra.Degraded = true
	}
	if a.infra.DB != nil {
		if a.infra.Degraded {
			logger.Warn(logger.Background(), "app", "repository.degraded",
				slog.String("host", a.cfg.Database.Host),
			)
		}
		return subscriber.NewPostgresRepository(a.infra.DB), nil
	}
	logger.Warn(logger.Background(), "app", "repository.memory",
		slog.String("reason", "database.host not set"),
	)
	return subscriber.NewMemoryRepository(), nil
}

func (a *App) stepStore() (state.Store, error) {
	sc := a.cfg.State
	if sc.Backend != config.StateBackendRedis {
		return state.NewMemoryStore(sc.TTL), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := state.NewRedisClient(ctx, state.RedisOptions{
		Addr:     sc.Redis.Addr,
		Password: sc.Redis.Password,
		DB:       sc.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.redis = client
	return state.NewRedisStore(client, sc.TTL, sc.Redis.Prefix), nil
}

// geocoder falls back to the configured default city without a geocoding key.
func (a *App) geocoder() geocode.Resolver {
	gc := a.cfg.Geocode
	if gc.APIKey == "" {
		logger.Warn(logger.Background(), "app", "geocode.static",
			slog.String("city", a.cfg.Weather.DefaultCity),
		)
		return geocode.Static{City: a.cfg.Weather.DefaultCity}
	}
	api := upstream.NewClient("geocode", upstream.Options{Timeout: gc.Timeout})
	return geocode.NewClient(api, gc.Endpoint, gc.APIKey)
}

// Service exposes the subscription service.
func (a *App) Service() *subscription.Service { return a.svc }

// TelegramRunOptions satisfies the core runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.locker),
		Routes:      a.handlers.Routes(reg, a.cfg.Telegram.AdminID),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot != nil {
		a.messenger.Bind(rt.Bot)
	}
	a.svc.LoadActive(ctx)
	if a.admin != nil {
		if err := a.admin.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	var errs []error
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.svc.Shutdown(ctx)
	a.closeRedis()
	if err := a.infra.Close(); err != nil {
		errs = append(errs, fmt.Errorf("app: close database: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		logger.Warn(logger.Background(), "app", "redis.close_failed", slog.String("err", err.Error()))
	}
	a.redis = nil
}
