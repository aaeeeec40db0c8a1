// Package service orchestrates the competition operations: every call runs
// in one store transaction, consults the caller policy and delegates the
// decisions to the pure domain packages.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/shortlist/internal/adapters/mail"
	"github.com/okian/shortlist/internal/adapters/mq/queue"
	"github.com/okian/shortlist/internal/adapters/mq/worker"
	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/dedupe"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

const tracerName = "github.com/okian/shortlist/internal/app"

var validate = validator.New()

// Service implements the operations consumed by the HTTP API and the CLI.
type Service struct {
	mu sync.RWMutex

	store       repository.Store
	policy      policy.Policy
	deduper     dedupe.Deduper
	exportQueue queue.Queue
	workerPool  *worker.Pool
	mailer      mail.Mailer

	workerCount        int
	queueSize          int
	dedupeSize         int
	defaultWeight      float64
	eliminateAbsentees bool
	mailFrom           string

	now    func() time.Time
	tracer trace.Tracer

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the repository. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPolicy replaces the default role policy.
func WithPolicy(p policy.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithMailer sets the export mail collaborator. Defaults to a logging mailer.
func WithMailer(m mail.Mailer) Option {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithWorkerCount sets the number of export workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the export queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the number of remembered idempotency keys.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDefaultWeight sets the percentage of rounds never weighted explicitly.
func WithDefaultWeight(p float64) Option {
	return func(s *Service) {
		if model.ValidWeight(p) {
			s.defaultWeight = p
		}
	}
}

// WithEliminateAbsenteesDefault sets the absentee policy of new rounds.
func WithEliminateAbsenteesDefault(eliminate bool) Option {
	return func(s *Service) {
		s.eliminateAbsentees = eliminate
	}
}

// WithMailFrom sets the sender of export mails.
func WithMailFrom(from string) Option {
	return func(s *Service) {
		if from != "" {
			s.mailFrom = from
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracer replaces the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New constructs a Service. Operations are usable right away; export jobs
// are only processed after Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     256,
		dedupeSize:    10000,
		defaultWeight: model.DefaultWeightPercentage,
		mailFrom:      "noreply@shortlist.local",
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.policy == nil {
		s.policy = policy.NewRolePolicy()
	}
	if s.mailer == nil {
		s.mailer = mail.NewLogMailer(s.logger)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.exportQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.workerPool = worker.NewPool(s.workerCount, s.exportQueue, s, s.mailer,
		worker.WithLogger(s.logger),
		worker.WithSender(s.mailFrom),
		worker.WithFailureHandler(func(ctx context.Context, j worker.Job, _ error) {
			// a failed delivery may be requested again with the same key
			s.deduper.Unrecord(ctx, j.IdempotencyKey)
		}),
	)
	return s
}

// Start launches the export workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	s.workerPool.Start(ctx)
	s.started = true
	s.logger.Info(ctx, "shortlist service started",
		logger.String("store", s.store.Backend()),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Float64("defaultWeight", s.defaultWeight),
	)
	return nil
}

// Stop drains the export queue and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info(ctx, "stopping shortlist service...")
	err := s.workerPool.Shutdown(ctx)
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.started = false
	s.logger.Info(ctx, "shortlist service stopped")
	return err
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]any{
		"started":        started,
		"store":          s.store.Backend(),
		"workerCount":    s.workerPool.Size(),
		"queueSize":      s.queueSize,
		"queueLength":    s.exportQueue.Len(ctx),
		"dedupeSize":     s.dedupeSize,
		"dedupeEntries":  s.deduper.Size(),
		"defaultWeight":  s.defaultWeight,
		"workersStarted": s.workerPool.Started(),
	}

	var teams []model.Team
	var rounds []model.Round
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		if teams, err = tx.Teams(ctx, repository.TeamFilter{Status: model.StatusActive}); err != nil {
			return err
		}
		rounds, err = tx.Rounds(ctx, repository.RoundFilter{})
		return err
	})
	if err != nil {
		s.logger.Warn(ctx, "stats query failed", logger.Error(err))
		return stats
	}
	stats["activeTeams"] = len(teams)
	stats["totalRounds"] = len(rounds)
	metrics.UpdateActiveTeams(len(teams))
	metrics.UpdateTotalRounds(len(rounds))
	return stats
}

func (s *Service) clock() time.Time { return s.now().UTC() }
