// Package config loads environment configuration. A .env file in the
// working directory is honored when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	// DatabaseURL names the SQLite database file. A sqlite:// scheme
	// prefix is tolerated for compatibility with URL-style configs.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"scheduler.db" validate:"required"`

	ServerPort  uint16 `env:"SERVER_PORT" envDefault:"8080" validate:"min=1"`
	MetricsPort uint16 `env:"METRICS_PORT" envDefault:"9091" validate:"min=1"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`

	Scheduler SchedulerConfig
	DB        DBConfig
	Backup    BackupConfig
}

// SchedulerConfig tunes the dispatcher.
type SchedulerConfig struct {
	// IdlePoll is the long sleep when no live task exists; it bounds how
	// late a task whose wake-up signal was dropped can fire.
	IdlePoll   time.Duration `env:"SCHEDULER_IDLE_POLL" envDefault:"1h" validate:"min=1s"`
	WakeBuffer int           `env:"SCHEDULER_WAKE_BUFFER" envDefault:"100" validate:"min=1"`
	// WebhookTimeout caps a single action execution.
	WebhookTimeout time.Duration `env:"SCHEDULER_WEBHOOK_TIMEOUT" envDefault:"30s" validate:"min=1s"`
}

// DBConfig tunes the connection pool.
type DBConfig struct {
	BusyTimeout  time.Duration `env:"DB_BUSY_TIMEOUT" envDefault:"5s" validate:"min=1ms"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10" validate:"min=1"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5" validate:"min=0"`
}

// BackupConfig enables the periodic online backup when Dir is set.
type BackupConfig struct {
	Dir      string        `env:"BACKUP_DIR"`
	Interval time.Duration `env:"BACKUP_INTERVAL" envDefault:"24h" validate:"min=1m"`
}

// Load reads configuration from the environment, after a best-effort .env
// load. Any parse or validation failure is fatal to the caller.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DatabasePath returns the filesystem path for the SQLite database,
// stripping an optional sqlite: or sqlite:// prefix.
func (c *Config) DatabasePath() string {
	p := c.DatabaseURL
	p = strings.TrimPrefix(p, "sqlite://")
	p = strings.TrimPrefix(p, "sqlite:")
	return p
}

// Production reports whether the service runs with production logging.
func (c *Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
