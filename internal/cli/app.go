// Package cli wires the configured adapters into a running application.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	whatsflow "github.com/casfuk/whatsapp-flow-builder-sub001"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/config"
	"github.com/casfuk/whatsapp-flow-builder-sub001/internal/logging"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/cache"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/file"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/memory"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/redis"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/sqlite"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/adapters/whatsapp"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/domain"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/observability"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/persistence/middleware"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/ports"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/runner"
	"github.com/casfuk/whatsapp-flow-builder-sub001/pkg/scheduler"
)

// App holds the adapters built from a Config.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Flows     ports.FlowStore
	Sessions  ports.SessionStore
	Engine    *whatsflow.Engine
	Metrics   *observability.Metrics
	Scheduler *scheduler.Scheduler
	// Sanitizer bounds the answers read by every driving adapter.
	Sanitizer runner.Sanitizer
	// WhatsApp is nil unless credentials are configured.
	WhatsApp *whatsapp.Dispatcher

	closers []io.Closer
}

// BuildOptions selects the optional parts of the App.
type BuildOptions struct {
	// Schedule arms timers for wait actions and delivers sends through
	// WhatsApp when configured. The console runner handles waits itself.
	Schedule bool
	Logger   *slog.Logger
}

// NewLogger creates the application logger from the log settings.
func NewLogger(cfg config.Log, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithWriter(w, level, logging.Format(cfg.Format)), nil
}

// Build creates the stores, the engine and its collaborators.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (*App, error) {
	app := &App{
		Config:    cfg,
		Logger:    opts.Logger,
		Sanitizer: runner.NewSanitizer(cfg.Engine.MaxInputLength),
	}
	if app.Logger == nil {
		app.Logger = logging.NewNop()
	}

	app.Flows = file.NewFlowStore(cfg.Flows.Dir)
	if cfg.Flows.CacheTTL > 0 {
		app.Flows = cache.NewFlowStore(app.Flows, cfg.Flows.CacheTTL)
	}

	engineOpts, err := app.buildStores(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Metrics = observability.NewMetrics()
	engineOpts = append(engineOpts,
		whatsflow.WithFlowStore(app.Flows),
		whatsflow.WithSessionStore(app.Sessions),
		whatsflow.WithLogger(app.Logger),
		whatsflow.WithLifecycleHooks(observability.Combine(
			app.Metrics.Hooks(),
			observability.LoggingHooks(app.Logger),
		)),
		whatsflow.WithStrictPersistence(cfg.Engine.StrictPersistence),
		whatsflow.WithCheckpoint(checkpoint(cfg.Engine.Checkpoint)),
		whatsflow.WithConditionFallback(fallback(cfg.Engine.ConditionFallback)),
		whatsflow.WithMaxSteps(cfg.Engine.MaxSteps),
		whatsflow.WithConflictRetries(cfg.Engine.ConflictRetries),
	)

	if cfg.WhatsAppEnabled() {
		app.WhatsApp = whatsapp.New(cfg.WhatsApp, whatsapp.WithLogger(app.Logger))
	}
	if opts.Schedule {
		// Bound late: the scheduler is a dispatcher of the engine it wakes.
		app.Scheduler = scheduler.New(scheduler.WakerFunc(func(ctx context.Context, id string) (*domain.RunResult, error) {
			return app.Engine.Wake(ctx, id)
		}), scheduler.WithLogger(app.Logger))

		dispatchers := ports.MultiDispatcher{app.Scheduler}
		if app.WhatsApp != nil {
			dispatchers = append(dispatchers, app.WhatsApp)
		}
		engineOpts = append(engineOpts, whatsflow.WithDispatcher(dispatchers))
	}

	app.Engine, err = whatsflow.New(engineOpts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) buildStores(ctx context.Context, cfg *config.Config) ([]whatsflow.Option, error) {
	var opts []whatsflow.Option

	switch cfg.Store.Driver {
	case config.DriverMemory:
		app.Sessions = memory.NewSessionStore()
	case config.DriverFile:
		app.Sessions = file.NewSessionStore(cfg.Store.Path)
	case config.DriverRedis:
		storeOpts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, storeOpts...)
		app.closers = append(app.closers, store)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		app.Sessions = store
		if cfg.Redis.Lock {
			opts = append(opts,
				whatsflow.WithLocker(redis.NewLocker(store.Client(), cfg.Redis.Prefix)),
				whatsflow.WithLockTTL(cfg.Redis.LockTTL),
			)
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.EncryptionKey != "" {
		mw, err := encryption(cfg.Store)
		if err != nil {
			return nil, err
		}
		app.Sessions = middleware.Chain(app.Sessions, mw)
	}

	if cfg.SQLite.Path != "" {
		db, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
		opts = append(opts, whatsflow.WithAnswerLog(db), whatsflow.WithCustomFieldStore(db))
	} else {
		opts = append(opts,
			whatsflow.WithAnswerLog(memory.NewAnswerLog()),
			whatsflow.WithCustomFieldStore(memory.NewCustomFields()),
		)
	}
	return opts, nil
}

// Close stops the scheduler and releases connections.
func (app *App) Close() error {
	if app.Scheduler != nil {
		app.Scheduler.Stop()
	}
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}

func encryption(cfg config.Store) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store encryption key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store fallback key %d: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(enc)
}

func checkpoint(s string) whatsflow.Checkpoint {
	if s == "after" {
		return whatsflow.CheckpointAfter
	}
	return whatsflow.CheckpointBefore
}

func fallback(s string) whatsflow.ConditionFallback {
	if s == "none" {
		return whatsflow.FallbackNone
	}
	return whatsflow.FallbackUnconditional
}
