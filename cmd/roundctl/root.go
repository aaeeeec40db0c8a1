package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/shortlist/internal/adapters/repository"
	app "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/config"
	"github.com/okian/shortlist/pkg/logger"
)

var version = "dev"

// storeOpener opens the store a command works on.
type storeOpener func(ctx context.Context, cfg *config.Config) (repository.Store, error)

// env is shared by every subcommand.
type env struct {
	open  storeOpener
	cfg   *config.Config
	store string
	dsn   string
	debug bool
}

func openFromConfig(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	return repository.Open(ctx, repository.Options{
		Backend:         cfg.Store,
		DSN:             cfg.DatabaseDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		SlowThreshold:   cfg.SlowQueryThreshold(),
		CreateDatabase:  cfg.DBCreateDatabase,
		Logger:          logger.Named("repository"),
	})
}

func newRootCommand(open storeOpener) *cobra.Command {
	e := &env{open: open}
	cmd := &cobra.Command{
		Use:   "roundctl",
		Short: "roundctl - maintenance tool for shortlist competitions",
		Long: `roundctl operates directly on a shortlist store.

Configuration is read like the server reads it (config file, .env and
SHORTLIST_* variables); --store and --dsn override the backend.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&e.store, "store", "", "Store backend: memory, postgres or mysql")
	cmd.PersistentFlags().StringVar(&e.dsn, "dsn", "", "Database DSN for the SQL backends")
	cmd.PersistentFlags().BoolVar(&e.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return e.setup(cmd)
	}

	cmd.AddCommand(newMigrateCommand(e))
	cmd.AddCommand(newLeaderboardCommand(e))
	cmd.AddCommand(newExportRoundCommand(e))

	return cmd
}

func (e *env) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if e.store != "" {
		cfg.Store = e.store
	}
	if e.dsn != "" {
		cfg.DatabaseDSN = e.dsn
	}
	if err := logger.InitWith(cmd.ErrOrStderr(), cfg.LogFormat); err != nil {
		return err
	}
	level := cfg.LogLevel
	if e.debug {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	e.cfg = cfg
	return nil
}

// withService opens the store, runs fn against a service bound to it and
// closes the store. Export workers are not started.
func (e *env) withService(ctx context.Context, fn func(*app.Service) error) error {
	store, err := e.open(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := app.New(
		app.WithStore(store),
		app.WithLogger(logger.Named("roundctl")),
		app.WithDefaultWeight(e.cfg.DefaultRoundWeight),
		app.WithWorkerCount(1),
	)
	return fn(svc)
}

func execute() error {
	return newRootCommand(openFromConfig).Execute()
}
