package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/types"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// ErrQueueFull is the cause of Unavailable errors from EmailRoundExport.
var ErrQueueFull = errors.New("export queue is full")

// classify maps store errors onto kinds. Errors that already carry a kind
// pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *types.Error
	if errors.As(err, &te) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return types.WrapKind(op, types.ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicate):
		return types.WrapKind(op, types.ErrInvalidArgument, err)
	}
	return types.Wrap(op, err)
}

func invalidArgument(op string, format string, args ...any) error {
	return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf(format, args...))
}

func kindName(err error) string {
	switch types.KindOf(err) {
	case types.ErrNotFound:
		return "not_found"
	case types.ErrInvalidState:
		return "invalid_state"
	case types.ErrInvalidArgument:
		return "invalid_argument"
	case types.ErrPermissionDenied:
		return "permission_denied"
	case types.ErrUnavailable:
		return "unavailable"
	}
	return "internal"
}

// begin opens the span of one operation.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// finish classifies err, records it on the span and in the logs, and ends the span.
func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error) error {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	err = classify(op, err)
	kind := kindName(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	span.SetAttributes(attribute.String("error.kind", kind))
	metrics.RecordErrorByComponent("service", kind)
	if kind == "internal" {
		s.logger.Error(ctx, "operation failed", logger.String("op", op), logger.Error(err))
	} else {
		s.logger.Debug(ctx, "operation rejected", logger.String("op", op), logger.String("kind", kind), logger.Error(err))
	}
	return err
}
