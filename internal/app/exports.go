package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/shortlist/internal/adapters/export"
	"github.com/okian/shortlist/internal/adapters/mq/queue"
	"github.com/okian/shortlist/internal/adapters/mq/worker"
	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/internal/domain/types"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// EmailExportInput asks for a round export to be mailed. Requests with the
// same IdempotencyKey are accepted once; an empty key is derived from the
// round, the ordering and the recipients.
type EmailExportInput struct {
	RoundID        int64            `json:"-"`
	SortBy         model.ExportSort `json:"sort_by"`
	Recipients     []string         `json:"recipients" validate:"required,min=1,dive,required,email"`
	IdempotencyKey string           `json:"idempotency_key" validate:"max=128"`
}

// EmailExportResult acknowledges an accepted export request.
type EmailExportResult struct {
	JobID          string `json:"job_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	Duplicate      bool   `json:"duplicate"`
}

func parseSort(op string, by model.ExportSort) (model.ExportSort, error) {
	if by == "" {
		return model.SortByName, nil
	}
	by = model.ExportSort(strings.ToLower(string(by)))
	if !by.Valid() {
		return "", invalidArgument(op, "unknown sort %q", by)
	}
	return by, nil
}

// RenderExport renders the CSV of a queued job. Jobs were authorized when
// they were accepted.
func (s *Service) RenderExport(ctx context.Context, j worker.Job) (worker.Document, error) {
	var buf bytes.Buffer
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return s.renderRound(ctx, tx, &buf, j.RoundID, j.SortBy)
	})
	if err != nil {
		return worker.Document{}, err
	}
	return worker.Document{Filename: export.RoundFilename(j.RoundID), ContentType: export.ContentType, Data: buf.Bytes()}, nil
}

func (s *Service) renderRound(ctx context.Context, tx repository.Tx, buf *bytes.Buffer, id int64, by model.ExportSort) error {
	r, err := tx.Round(ctx, id, false)
	if err != nil {
		return err
	}
	teams, err := tx.Teams(ctx, repository.TeamFilter{Status: model.StatusActive})
	if err != nil {
		return err
	}
	scores, err := tx.Scores(ctx, repository.ScoreFilter{RoundID: id})
	if err != nil {
		return err
	}
	return export.Round(buf, r, teams, scores, by)
}

// ExportRoundCSV renders the evaluations of a round.
func (s *Service) ExportRoundCSV(ctx context.Context, c policy.Caller, id int64, by model.ExportSort) (doc worker.Document, err error) {
	const op = "service.export_round_csv"
	ctx, span := s.begin(ctx, op, roundAttr(id), attribute.String("export.sort", string(by)))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if by, err = parseSort(op, by); err != nil {
		return worker.Document{}, err
	}
	var buf bytes.Buffer
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, false)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionExport, &r); err != nil {
			return err
		}
		return s.renderRound(ctx, tx, &buf, id, by)
	})
	if err != nil {
		return worker.Document{}, err
	}
	metrics.RecordExport("round_csv")
	return worker.Document{Filename: export.RoundFilename(id), ContentType: export.ContentType, Data: buf.Bytes()}, nil
}

// ExportLeaderboardCSV renders the overall leaderboard of every team.
func (s *Service) ExportLeaderboardCSV(ctx context.Context, c policy.Caller) (doc worker.Document, err error) {
	const op = "service.export_leaderboard_csv"
	ctx, span := s.begin(ctx, op)
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionExport, nil); err != nil {
		return worker.Document{}, err
	}
	var snap leaderboard.Snapshot
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		snap, err = s.loadSnapshot(ctx, tx, false)
		return err
	})
	if err != nil {
		return worker.Document{}, err
	}
	var buf bytes.Buffer
	if err := export.Leaderboard(&buf, leaderboard.Compute(snap, leaderboard.PopulationAll), teamIndex(snap.Teams)); err != nil {
		return worker.Document{}, err
	}
	metrics.RecordExport("leaderboard_csv")
	return worker.Document{Filename: export.LeaderboardFilename, ContentType: export.ContentType, Data: buf.Bytes()}, nil
}

// EmailRoundExport queues a round export for mailing. A repeated key is
// acknowledged without queuing a second job.
func (s *Service) EmailRoundExport(ctx context.Context, c policy.Caller, in EmailExportInput) (res EmailExportResult, err error) {
	const op = "service.email_round_export"
	ctx, span := s.begin(ctx, op, roundAttr(in.RoundID), attribute.Int("export.recipients", len(in.Recipients)))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := validate.Struct(in); err != nil {
		return EmailExportResult{}, types.WrapKind(op, types.ErrInvalidArgument, err)
	}
	by, err := parseSort(op, in.SortBy)
	if err != nil {
		return EmailExportResult{}, err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, in.RoundID, false)
		if err != nil {
			return err
		}
		return s.policy.Authorize(c, policy.ActionExport, &r)
	})
	if err != nil {
		return EmailExportResult{}, err
	}

	key := in.IdempotencyKey
	if key == "" {
		if key, err = exportKey(in.RoundID, by, in.Recipients); err != nil {
			return EmailExportResult{}, err
		}
	}
	res.IdempotencyKey = key
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordExportDuplicate()
		s.logger.Debug(ctx, "duplicate export request", logger.String("key", key))
		res.Duplicate = true
		return res, nil
	}

	job := model.ExportJob{
		ID:             uuid.NewString(),
		RoundID:        in.RoundID,
		SortBy:         by,
		Recipients:     in.Recipients,
		IdempotencyKey: key,
		RequestedBy:    string(c.Role),
	}
	if err := s.exportQueue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, key)
		if errors.Is(err, queue.ErrFull) {
			return EmailExportResult{}, types.WrapKind(op, types.ErrUnavailable, ErrQueueFull)
		}
		return EmailExportResult{}, types.WrapKind(op, types.ErrUnavailable, err)
	}
	span.SetAttributes(attribute.String("export.job_id", job.ID))
	s.logger.Info(ctx, "export queued",
		logger.String("job_id", job.ID),
		logger.Int64("round_id", in.RoundID),
		logger.Int("recipients", len(in.Recipients)))
	res.JobID = job.ID
	return res, nil
}

// exportKey hashes a request so identical retries share a key whatever
// the order of recipients.
func exportKey(id int64, by model.ExportSort, recipients []string) (string, error) {
	rcpt := make([]string, len(recipients))
	for i, r := range recipients {
		rcpt[i] = strings.ToLower(strings.TrimSpace(r))
	}
	sort.Strings(rcpt)
	h, err := hashstructure.Hash(struct {
		Round      int64
		Sort       string
		Recipients []string
	}{id, string(by), rcpt}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hash export request: %w", err)
	}
	return fmt.Sprintf("round-%d-%016x", id, h), nil
}
