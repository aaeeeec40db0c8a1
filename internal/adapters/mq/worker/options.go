// Package worker runs export jobs: it renders the round document and mails it.
package worker

import (
	"context"
	"time"

	"github.com/okian/shortlist/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSender sets the From address of outgoing mail.
func WithSender(from string) Option {
	return func(w *InMemoryWorker) {
		if from != "" {
			w.from = from
		}
	}
}

// WithRetry bounds delivery retries. Delays grow exponentially from base.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(w *InMemoryWorker) {
		w.maxRetries = maxRetries
		if base > 0 {
			w.retryBase = base
		}
	}
}

// WithFailureHandler is called once for every job that could not be delivered.
func WithFailureHandler(fn func(ctx context.Context, j Job, err error)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onFailure = fn
		}
	}
}
