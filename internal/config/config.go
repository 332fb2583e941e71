package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"finelth-api/internal/auth"
)

const envProduction = "production"

type Config struct {
	Env  string `env:"APP_ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"8080"`

	DatabaseURL   string `env:"DATABASE_URL" env-required:"true"`
	RedisURL      string `env:"REDIS_URL" env-required:"true"`
	SentryDSN     string `env:"SENTRY_DSN"`
	RunMigrations bool   `env:"RUN_MIGRATIONS_ON_STARTUP" env-default:"false"`

	// TrustProxyHeaders makes client IPs come from X-Forwarded-For. Only set
	// it when a proxy that appends to the header fronts every request.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" env-default:"false"`

	DB   DB
	Auth Auth

	CronSecret         string `env:"CRON_SECRET"`
	CleanupBatchSize   int    `env:"AUTH_CLEANUP_BATCH_SIZE" env-default:"500"`
	AdminEmail         string `env:"ADMIN_EMAIL"`
	AdminPassword      string `env:"ADMIN_PASSWORD"`
	ShutdownTimeoutSec int    `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"10"`
}

type DB struct {
	MaxOpenConns           int `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns           int `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetimeMinutes int `env:"DB_CONN_MAX_LIFETIME_MINUTES" env-default:"30"`
	ConnMaxIdleTimeMinutes int `env:"DB_CONN_MAX_IDLE_TIME_MINUTES" env-default:"10"`
}

type Auth struct {
	AccessSecret          string `env:"JWT_ACCESS_SECRET" env-required:"true"`
	RefreshSecret         string `env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTTLMinutes      int    `env:"ACCESS_TOKEN_TTL_MINUTES" env-default:"15"`
	RefreshTTLHours       int    `env:"REFRESH_TOKEN_TTL_HOURS" env-default:"168"`
	LoginRateLimitMax     int    `env:"LOGIN_RATE_LIMIT_MAX" env-default:"10"`
	LoginRateLimitSeconds int    `env:"LOGIN_RATE_LIMIT_WINDOW_SECONDS" env-default:"60"`
}

// Load reads the process environment, optionally seeding it from a .env file
// in the working directory first.
func Load(loadDotEnv bool) (*Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("missing required env: DATABASE_URL")
	}
	if strings.TrimSpace(c.RedisURL) == "" {
		return errors.New("missing required env: REDIS_URL")
	}

	c.Auth.AccessSecret = strings.TrimSpace(c.Auth.AccessSecret)
	c.Auth.RefreshSecret = strings.TrimSpace(c.Auth.RefreshSecret)

	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if strings.TrimSpace(c.AdminEmail) == "" != (strings.TrimSpace(c.AdminPassword) == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}
	if c.AdminPassword != "" && (len(c.AdminPassword) < auth.MinPasswordLength || len(c.AdminPassword) > auth.MaxPasswordLength) {
		return fmt.Errorf("ADMIN_PASSWORD must be %d to %d bytes", auth.MinPasswordLength, auth.MaxPasswordLength)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, envProduction)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) ShutdownTimeout() time.Duration {
	return secondsOrDefault(c.ShutdownTimeoutSec, 10)
}

func (d DB) ConnMaxLifetime() time.Duration {
	return minutesOrDefault(d.ConnMaxLifetimeMinutes, 30)
}

func (d DB) ConnMaxIdleTime() time.Duration {
	return minutesOrDefault(d.ConnMaxIdleTimeMinutes, 10)
}

func (a Auth) AccessTTL() time.Duration {
	return minutesOrDefault(a.AccessTTLMinutes, 15)
}

func (a Auth) RefreshTTL() time.Duration {
	return time.Duration(positiveOrDefault(a.RefreshTTLHours, 168)) * time.Hour
}

func (a Auth) LoginRateLimitWindow() time.Duration {
	return secondsOrDefault(a.LoginRateLimitSeconds, 60)
}

func positiveOrDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func minutesOrDefault(value, fallback int) time.Duration {
	return time.Duration(positiveOrDefault(value, fallback)) * time.Minute
}

func secondsOrDefault(value, fallback int) time.Duration {
	return time.Duration(positiveOrDefault(value, fallback)) * time.Second
}
