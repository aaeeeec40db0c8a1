package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okian/shortlist/internal/adapters/mail"
	"github.com/okian/shortlist/internal/adapters/mq/queue"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultSender       = "noreply@shortlist.local"
	defaultMaxRetries   = 3
	defaultRetryBase    = 200 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Document is a rendered export.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Renderer produces the document of a job.
type Renderer interface {
	RenderExport(ctx context.Context, j Job) (Document, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes export jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	renderer Renderer
	mailer   mail.Mailer
	name     string
	from     string

	maxRetries uint64
	retryBase  time.Duration
	onFailure  func(ctx context.Context, j Job, err error)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, r Renderer, m mail.Mailer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		renderer:   r,
		mailer:     m,
		name:       "worker",
		from:       defaultSender,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
		onFailure:  func(context.Context, Job, error) {},
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, j); err != nil {
				w.logger.Error(ctx, "export job failed", logger.String("job_id", j.ID), logger.Error(err))
				w.onFailure(ctx, j, err)
			}
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processJob(ctx context.Context, j Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	doc, err := w.renderer.RenderExport(ctx, j)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "render_error")
		return fmt.Errorf("render round %d: %w", j.RoundID, err)
	}

	msg := mail.Message{
		From:    w.from,
		To:      j.Recipients,
		Subject: fmt.Sprintf("Round %d evaluations", j.RoundID),
		Body:    fmt.Sprintf("Attached: evaluations of round %d.", j.RoundID),
		Attachments: []mail.Attachment{{
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Data:        doc.Data,
		}},
	}
	if err := msg.Validate(); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "invalid_message")
		return err
	}

	backoff := retry.WithMaxRetries(w.maxRetries, retry.NewExponential(w.retryBase))
	attempts := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		if err := w.mailer.Send(ctx, msg); err != nil {
			w.logger.Warn(ctx, "mail delivery failed",
				logger.String("job_id", j.ID),
				logger.Int("attempt", attempts),
				logger.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "mail_error")
		return fmt.Errorf("mail round %d after %d attempts: %w", j.RoundID, attempts, err)
	}

	metrics.RecordExport("email")
	w.logger.Info(ctx, "export mailed",
		logger.String("job_id", j.ID),
		logger.Int64("round_id", j.RoundID),
		logger.Int("recipients", len(j.Recipients)),
		logger.Int("attempts", attempts))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu      sync.Mutex
	started bool

	logger logger.Logger
}

// NewPool creates workerCount workers sharing q. A count below one uses
// runtime.NumCPU(). opts apply to every worker; names are assigned per index.
func NewPool(workerCount int, q Queue, r Renderer, m mail.Mailer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, r, m, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Started reports whether Start has been called.
func (p *Pool) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Start starts all workers in the pool. Only the first call has an effect.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	p.logger.Info(ctx, "workers started", logger.Int("count", len(p.workers)))
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.Started() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = fmt.Errorf("worker %d: %w", i, shutdownCtx.Err())
			}
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
