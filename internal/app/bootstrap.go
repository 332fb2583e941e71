package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"finelth-api/internal/auth"
	"finelth-api/internal/cache"
	"finelth-api/internal/config"
	"finelth-api/internal/db"
	"finelth-api/internal/observability"
)

type Options struct {
	LoadDotEnv bool
	// RunMigrations applies migrations even when RUN_MIGRATIONS_ON_STARTUP is off.
	RunMigrations bool
	// BehindProxy trusts X-Forwarded-For even when TRUST_PROXY_HEADERS is off.
	BehindProxy bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Logger  *observability.Logger
	Close   func() error
}

func Build(ctx context.Context, options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	if options.BehindProxy {
		cfg.TrustProxyHeaders = true
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime(),
	})
	if err != nil {
		return nil, err
	}

	if options.RunMigrations || cfg.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redisClient, err := cache.Open(ctx, cfg.RedisURL)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	closeAll := func() error {
		observability.FlushSentry()
		return errors.Join(redisClient.Close(), database.Close())
	}

	if err := bootstrapAdmin(ctx, auth.NewRepository(database), cfg, logger); err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	handler, err := NewHandler(Dependencies{
		Config: cfg,
		Logger: logger,
		DB:     database,
		Redis:  redisClient,
	})
	if err != nil {
		_ = closeAll()
		return nil, err
	}

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		Close:   closeAll,
	}, nil
}

type Dependencies struct {
	Config *config.Config
	Logger *observability.Logger
	DB     *sql.DB
	Redis  redis.Cmdable
}

type userUpserter interface {
	UpsertUser(ctx context.Context, email, plainPassword string) (int64, error)
}

// bootstrapAdmin makes the configured account able to log in. It is a no-op
// when ADMIN_EMAIL is unset.
func bootstrapAdmin(ctx context.Context, users userUpserter, cfg *config.Config, logger *observability.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}

	id, err := users.UpsertUser(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}

	logger.Info("admin_bootstrapped", map[string]any{"user_id": id})
	return nil
}
