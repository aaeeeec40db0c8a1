// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and SHORTLIST_* environment variables on top.
// - Validation errors wrap ErrInvalidConfig, loading errors wrap ErrLoadConfig.
package config

import (
	"context"
	"runtime"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMySQL    = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// ShutdownTimeoutSec bounds graceful HTTP shutdown.
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec" validate:"gte=1"`

	// Store selects the repository backend: memory, postgres or mysql.
	Store string `koanf:"store" validate:"oneof=memory postgres mysql"`

	// DatabaseDSN is required for the SQL backends.
	DatabaseDSN string `koanf:"database_dsn" validate:"required_unless=Store memory"`

	DBMaxOpenConns       int  `koanf:"db_max_open_conns" validate:"gte=0"`
	DBMaxIdleConns       int  `koanf:"db_max_idle_conns" validate:"gte=0"`
	DBConnMaxLifetimeSec int  `koanf:"db_conn_max_lifetime_sec" validate:"gte=0"`
	DBAutoMigrate        bool `koanf:"db_auto_migrate"`
	// DBCreateDatabase creates the postgres database named in the DSN when missing.
	DBCreateDatabase bool `koanf:"db_create_database"`
	DBSlowQueryMS    int  `koanf:"db_slow_query_ms" validate:"gte=0"`

	// DefaultRoundWeight is the percentage given to rounds never weighted explicitly.
	DefaultRoundWeight float64 `koanf:"default_round_weight" validate:"gte=25,lte=200"`

	// EliminateAbsenteesDefault is the absentee policy of newly created rounds.
	EliminateAbsenteesDefault bool `koanf:"eliminate_absentees_default"`

	// ExportQueueSize bounds the in-memory export job queue.
	ExportQueueSize int `koanf:"export_queue_size" validate:"gte=1"`

	// ExportWorkerCount sets the number of export workers.
	ExportWorkerCount int `koanf:"export_worker_count" validate:"gte=1"`

	// DedupeSize sets the size of the export idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RateLimitRPS throttles mutating requests; zero disables the limiter.
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"gte=0"`

	// MailFrom is the sender address of export e-mails.
	MailFrom string `koanf:"mail_from" validate:"omitempty,email"`
}

// New creates a Config with defaults. The context is reserved for loaders
// that need it.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		ShutdownTimeoutSec:   10,
		Store:                StoreMemory,
		DBMaxOpenConns:       20,
		DBMaxIdleConns:       5,
		DBConnMaxLifetimeSec: 300,
		DBAutoMigrate:        true,
		DBSlowQueryMS:        200,
		DefaultRoundWeight:   100,
		ExportQueueSize:      256,
		ExportWorkerCount:    runtime.NumCPU(),
		DedupeSize:           10_000,
		RateLimitRPS:         50,
		RateLimitBurst:       100,
		MailFrom:             "noreply@shortlist.local",
	}
}

// ConnMaxLifetime returns DBConnMaxLifetimeSec as a duration.
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.DBConnMaxLifetimeSec) * time.Second
}

// SlowQueryThreshold returns DBSlowQueryMS as a duration.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.DBSlowQueryMS) * time.Millisecond
}

// ShutdownTimeout returns ShutdownTimeoutSec as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}
