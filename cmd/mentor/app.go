package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careermentor/mentor-hub/config"
	"github.com/careermentor/mentor-hub/internal/application/command"
	"github.com/careermentor/mentor-hub/internal/application/eventhandler"
	"github.com/careermentor/mentor-hub/internal/application/query"
	"github.com/careermentor/mentor-hub/internal/domain/notification"
	"github.com/careermentor/mentor-hub/internal/domain/progress"
	"github.com/careermentor/mentor-hub/internal/domain/shared"
	"github.com/careermentor/mentor-hub/internal/infrastructure/messaging"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/memory"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/postgres"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/redis"
	"github.com/careermentor/mentor-hub/internal/infrastructure/persistence/sqlite"
	"github.com/careermentor/mentor-hub/internal/infrastructure/rules"
	"github.com/careermentor/mentor-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app bundles everything a store-backed subcommand needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	rules   rules.RuleSet
	store   progress.ProfileStore
	history progress.ActivityHistory
	cache   progress.ProfileCache
	bus     *messaging.InMemoryEventBus
	pub     shared.EventPublisher
	orch    *progress.Orchestrator
	closers []func()
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storeDriver != "" {
		cfg.Store.Driver = config.StoreDriver(storeDriver)
	}
	if sqlitePath != "" {
		cfg.Store.SQLitePath = sqlitePath
	}
	if rulesPath != "" {
		cfg.Rules.Path = rulesPath
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logger.New(logger.Options{
		Output:    os.Stderr,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.App.Debug,
		Service:   cfg.App.Name,
	})
}

// newApp connects the store, the optional Redis cache and the event bus.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: newLogger(cfg)}

	a.rules, err = rules.LoadOrDefault(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	a.log.Debug("rules loaded",
		zap.String("source", a.rules.Source),
		zap.Int("achievements", a.rules.Registry.Len()),
		zap.Int("milestones", len(a.rules.Milestones)),
	)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	publishers := messaging.TeePublisher{}
	a.bus = messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      false,
		Logger:         a.log,
		EnableMetrics:  true,
		DeadLetterSize: 100,
		Middlewares:    []messaging.Middleware{messaging.LoggingMiddleware(a.log)},
	})
	a.closers = append(a.closers, func() { _ = a.bus.Close() })
	publishers = append(publishers, a.bus)

	notifier := eventhandler.NewOnNotificationRaisedHandler(
		eventhandler.LogSender(a.log),
		a.log,
		eventhandler.DefaultNotificationRaisedConfig(),
	)
	if err := a.bus.Subscribe(shared.EventNotificationRaised, notifier.Handle); err != nil {
		a.Close()
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}

	if !cfg.Redis.Disabled {
		rc, err := redis.NewCache(redis.Config{
			URL:          cfg.Redis.URL,
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolTimeout:  4 * time.Second,
		})
		if err != nil {
			// The store stays authoritative; run without cache and fan-out.
			a.log.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = rc.Close() })
			a.cache = redis.NewGuardedProfileCache(redis.NewProfileCache(rc, cfg.Redis.SnapshotTTL), nil, a.log)
			publishers = append(publishers,
				messaging.NewGuardedPublisher(messaging.NewRedisPublisher(rc.Client(), a.log), nil, a.log))
		}
	}
	a.pub = publishers

	a.orch = progress.NewOrchestrator(a.rules.Registry,
		progress.WithIDGenerator(func() notification.NotificationID {
			return notification.NotificationID(uuid.NewString())
		}),
	)

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StoreMemory:
		s := memory.NewStore()
		a.store, a.history = s, s
		a.log.Debug("using in-memory store; profiles are lost on exit")

	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		a.store, a.history = s, s

	case config.StorePostgres:
		conn, err := openPostgres(ctx, a.cfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, conn.Close)
		if a.cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		repo := postgres.NewProfileRepository(conn)
		a.store, a.history = repo, repo

	default:
		return fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
	return nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return conn, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.log.Sync()
}

func (a *app) commandDeps() command.Deps {
	return command.Deps{
		Store:        a.store,
		Cache:        a.cache,
		Orchestrator: a.orch,
		Publisher:    a.pub,
		Flags:        a.cfg.Features,
		Logger:       a.log,
		NewID:        uuid.NewString,
		MaxAttempts:  a.cfg.App.CommitMaxAttempts,
	}
}

func (a *app) progressHandler() *query.GetProgressHandler {
	return query.NewGetProgressHandler(query.GetProgressDeps{
		Store:    a.store,
		Cache:    a.cache,
		History:  a.history,
		Registry: a.rules.Registry,
		Flags:    a.cfg.Features,
		Logger:   a.log,
	})
}

// ensureProfile creates the profile when it does not exist yet.
func (a *app) ensureProfile(ctx context.Context, userID string) error {
	_, err := command.NewInitProfileHandler(a.commandDeps(), a.rules.Milestones).
		Handle(ctx, command.InitProfileCommand{UserID: userID, IfNotExists: true})
	return err
}

// withApp runs fn against a freshly wired app and always closes it.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
