package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" database/sql driver
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/okian/shortlist/pkg/logger"
)

// Options configures Open.
type Options struct {
	Backend         string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	AutoMigrate     bool
	// CreateDatabase creates the target postgres database when missing.
	CreateDatabase bool
	Logger         logger.Logger
}

// Open returns the Store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendPostgres, BackendMySQL:
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("%s store: empty dsn", opts.Backend)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	dialector, err := dialectorFor(ctx, opts)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log, opts.SlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Backend, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	store := NewGormStore(db, opts.Backend)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Backend, err)
	}
	if opts.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	log.Info(ctx, "store opened", logger.String("backend", opts.Backend), logger.Bool("migrated", opts.AutoMigrate))
	return store, nil
}

func dialectorFor(ctx context.Context, opts Options) (gorm.Dialector, error) {
	if opts.Backend == BackendMySQL {
		dsn, err := mysqlDSN(opts.DSN)
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	}
	if opts.CreateDatabase {
		if err := EnsurePostgresDatabase(ctx, opts.DSN); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
	}
	return postgres.Open(opts.DSN), nil
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysqldrv.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// EnsurePostgresDatabase creates the database named in dsn when it does not
// exist. dsn must be in URL form. It connects to the "postgres" maintenance
// database to do so and is a no-op when the target already exists.
func EnsurePostgresDatabase(ctx context.Context, dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.TrimPrefix(u.Path, "/"))
	if name == "" || name == "postgres" {
		return nil
	}
	u.Path = "/postgres"

	db, err := sql.Open("pgx", u.String())
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = $1", name).Scan(new(int))
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.ExecContext(ctx, `CREATE DATABASE "`+strings.ReplaceAll(name, `"`, `""`)+`"`)
	}
	return err
}
