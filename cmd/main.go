package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/shortlist/internal/adapters/http/api"
	"github.com/okian/shortlist/internal/adapters/http/swagger"
	"github.com/okian/shortlist/internal/adapters/repository"
	app "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/config"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// the logger may not be available yet
		os.Stderr.WriteString("shortlist: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := newService(cfg, store, log)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(mux),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")

		// The root context is already cancelled here.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// openStore opens the repository backend selected by cfg.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	return repository.Open(ctx, repository.Options{
		Backend:         cfg.Store,
		DSN:             cfg.DatabaseDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		SlowThreshold:   cfg.SlowQueryThreshold(),
		AutoMigrate:     cfg.DBAutoMigrate,
		CreateDatabase:  cfg.DBCreateDatabase,
		Logger:          log.Named("repository"),
	})
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithWorkerCount(cfg.ExportWorkerCount),
		app.WithQueueSize(cfg.ExportQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithDefaultWeight(cfg.DefaultRoundWeight),
		app.WithEliminateAbsenteesDefault(cfg.EliminateAbsenteesDefault),
		app.WithMailFrom(cfg.MailFrom),
	)
}

// startServiceMetricsUpdater refreshes the service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes
// the team and round gauges.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	stats := svc.GetStats(ctx)
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
}
