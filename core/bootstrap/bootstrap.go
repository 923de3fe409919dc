package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/weatherbot/core/config"
	coredatabase "github.com/m3rciful/weatherbot/core/database"
	"github.com/m3rciful/weatherbot/core/logger"
)

// DefaultMigrateRetry spaces background migration attempts after a failed boot.
const DefaultMigrateRetry = 30 * time.Second

// Options control the bootstrap pipeline: logger, database connection, schema migrations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// SkipDatabase initializes only the logger; Result.DB stays nil.
	SkipDatabase bool
	// MigrateRetry overrides DefaultMigrateRetry.
	MigrateRetry time.Duration

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	// Open builds a pool without dialing; used when Connect fails.
	Open    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
	// Degraded is set when the database was unreachable or unmigrated at boot.
	Degraded bool

	stop     context.CancelFunc
	migrated atomic.Bool
}

// Migrated reports whether schema migrations have been applied.
func (r *Result) Migrated() bool {
	return r != nil && r.migrated.Load()
}

// Close stops pending migration retries and releases the database pool.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	if r.stop != nil {
		r.stop()
	}
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database, and applies migrations.
// An unreachable database does not fail the boot: the pool is opened lazily,
// Result.Degraded is set and migrations are retried in the background.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	start := time.Now()

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.SkipDatabase {
		logger.Info(logger.Background(), "app", "bootstrap.done",
			slog.Bool("database", false),
			slog.Duration("duration", logger.Took(start)),
		)
		return &Result{}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	open := opts.Open
	if open == nil {
		open = coredatabase.Open
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	res := &Result{}
	db, err := connect(opts.Database)
	if err != nil {
		logger.Error(logger.Background(), "app", "db.connect",
			slog.String("host", opts.Database.Host),
			slog.String("err", err.Error()),
		)
		db, err = open(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db
		res.Degraded = true
		res.retryMigrations(opts, migrate)
	} else {
		res.DB = db
		if err := migrate(opts.Database); err != nil {
			logger.Error(logger.Background(), "app", "db.migrate",
				slog.String("err", err.Error()),
			)
			res.Degraded = true
			res.retryMigrations(opts, migrate)
		} else {
			res.migrated.Store(true)
		}
	}

	logger.Info(logger.Background(), "app", "bootstrap.done",
		slog.Bool("database", true),
		slog.Bool("degraded", res.Degraded),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}

// retryMigrations keeps applying migrations until one run succeeds or Close is called.
func (r *Result) retryMigrations(opts Options, migrate func(coredatabase.Config) error) {
	interval := opts.MigrateRetry
	if interval <= 0 {
		interval = DefaultMigrateRetry
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for attempt := 1; ; attempt++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if err := migrate(opts.Database); err != nil {
				logger.Warn(ctx, "app", "db.migrate_retry",
					slog.Int("attempt", attempt),
					slog.String("err", err.Error()),
				)
				continue
			}
			r.migrated.Store(true)
			logger.Info(ctx, "app", "db.migrated", slog.Int("attempt", attempt))
			return
		}
	}()
}
