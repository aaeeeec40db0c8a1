package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/lifecycle"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/internal/domain/types"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// RoundInput creates a round. A nil EliminateAbsentees takes the service default.
type RoundInput struct {
	EventID            string            `json:"event_id" validate:"required,max=64"`
	Number             int               `json:"round_number" validate:"gt=0"`
	Name               string            `json:"name" validate:"max=200"`
	Club               string            `json:"club" validate:"max=100"`
	Criteria           []model.Criterion `json:"evaluation_criteria"`
	EliminateAbsentees *bool             `json:"eliminate_absentees"`
}

// EvaluationInput is one judge submission. Present defaults to true and a
// nil EliminateAbsentees falls back to the round's policy.
type EvaluationInput struct {
	RoundID            int64              `json:"-"`
	TeamKey            string             `json:"-"`
	CriteriaScores     map[string]float64 `json:"criteria_scores"`
	Present            *bool              `json:"is_present"`
	EliminateAbsentees *bool              `json:"eliminate_absentees"`
}

// RoundStatsView is the statistics of a round. TopTeams is filled only
// while the round is frozen.
type RoundStatsView struct {
	RoundID     int64             `json:"round_id"`
	IsFrozen    bool              `json:"is_frozen"`
	IsEvaluated bool              `json:"is_evaluated"`
	Stats       *model.RoundStats `json:"stats"`
	TopTeams    []types.Entry     `json:"top_3_teams"`
}

func roundAttr(id int64) attribute.KeyValue { return attribute.Int64("round.id", id) }

// CreateRound creates an open round and its default weight.
func (s *Service) CreateRound(ctx context.Context, c policy.Caller, in RoundInput) (r model.Round, err error) {
	const op = "service.create_round"
	ctx, span := s.begin(ctx, op, attribute.String("event.id", in.EventID), attribute.Int("round.number", in.Number))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionManageRounds, nil); err != nil {
		return model.Round{}, err
	}
	in.EventID = strings.TrimSpace(in.EventID)
	if err := validate.Struct(in); err != nil {
		return model.Round{}, invalidArgument(op, "round: %v", err)
	}
	if in.Criteria != nil {
		if err := lifecycle.ValidateCriteria(op, in.Criteria); err != nil {
			return model.Round{}, err
		}
	}

	now := s.clock()
	r = model.Round{
		EventID:            in.EventID,
		Number:             in.Number,
		Name:               in.Name,
		Club:               in.Club,
		Criteria:           in.Criteria,
		EliminateAbsentees: s.eliminateAbsentees,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.EliminateAbsentees != nil {
		r.EliminateAbsentees = *in.EliminateAbsentees
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateRound(ctx, &r); err != nil {
			return err
		}
		_, created, err := tx.WeightOrDefault(ctx, r.ID, s.defaultWeight)
		if created {
			metrics.RecordWeightDefault()
		}
		return err
	})
	if err != nil {
		return model.Round{}, err
	}
	s.logger.Info(ctx, "round created",
		logger.Int64("round_id", r.ID),
		logger.String("event_id", r.EventID),
		logger.Int("round_number", r.Number))
	return r, nil
}

// GetRound returns one round.
func (s *Service) GetRound(ctx context.Context, c policy.Caller, id int64) (r model.Round, err error) {
	const op = "service.get_round"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		if r, err = tx.Round(ctx, id, false); err != nil {
			return err
		}
		return s.policy.Authorize(c, policy.ActionView, &r)
	})
	return r, err
}

// ListRounds returns the rounds of one event, or of all events when eventID is empty.
func (s *Service) ListRounds(ctx context.Context, c policy.Caller, eventID string) (rounds []model.Round, err error) {
	const op = "service.list_rounds"
	ctx, span := s.begin(ctx, op, attribute.String("event.id", eventID))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionView, nil); err != nil {
		return nil, err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		rounds, err = tx.Rounds(ctx, repository.RoundFilter{EventID: strings.TrimSpace(eventID)})
		return err
	})
	return rounds, err
}

// DeleteRound removes an open round with its scores and weight.
func (s *Service) DeleteRound(ctx context.Context, c policy.Caller, id int64) (err error) {
	const op = "service.delete_round"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, true)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionManageRounds, &r); err != nil {
			return err
		}
		if err := lifecycle.CheckDeletable(r); err != nil {
			return err
		}
		return tx.DeleteRound(ctx, id)
	})
	if err == nil {
		s.logger.Info(ctx, "round deleted", logger.Int64("round_id", id))
	}
	return err
}

// GetCriteria returns the criteria of a round, nil when never set.
func (s *Service) GetCriteria(ctx context.Context, c policy.Caller, id int64) ([]model.Criterion, error) {
	r, err := s.GetRound(ctx, c, id)
	if err != nil {
		return nil, err
	}
	return r.Criteria, nil
}

// SetCriteria replaces the criteria of an open round.
func (s *Service) SetCriteria(ctx context.Context, c policy.Caller, id int64, criteria []model.Criterion) (r model.Round, err error) {
	const op = "service.set_criteria"
	ctx, span := s.begin(ctx, op, roundAttr(id), attribute.Int("criteria.count", len(criteria)))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		if r, err = tx.Round(ctx, id, true); err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionSetCriteria, &r); err != nil {
			return err
		}
		if err := lifecycle.SetCriteria(&r, criteria, s.clock()); err != nil {
			return err
		}
		return tx.UpdateRound(ctx, r)
	})
	if err != nil {
		return model.Round{}, err
	}
	s.logger.Info(ctx, "criteria set", logger.Int64("round_id", id), logger.Int("count", len(criteria)))
	return r, nil
}

// EvaluateTeam scores a team in an open round. The round row stays locked
// until the score is written so a concurrent freeze cannot interleave.
func (s *Service) EvaluateTeam(ctx context.Context, c policy.Caller, in EvaluationInput) (score model.TeamScore, err error) {
	const op = "service.evaluate_team"
	ctx, span := s.begin(ctx, op, roundAttr(in.RoundID), attribute.String("team.id", in.TeamKey))
	defer func() { err = s.finish(ctx, span, op, err) }()

	present := in.Present == nil || *in.Present
	var eliminated bool
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, in.RoundID, true)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionEvaluate, &r); err != nil {
			return err
		}
		team, err := tx.Team(ctx, in.TeamKey)
		if err != nil {
			return err
		}

		var prev *model.TeamScore
		existing, err := tx.Score(ctx, r.ID, team.Key)
		switch {
		case err == nil:
			prev = &existing
		case !errors.Is(err, repository.ErrNotFound):
			return err
		}

		sub := lifecycle.Submission{
			CriteriaScores:     in.CriteriaScores,
			Present:            present,
			EliminateAbsentees: r.EliminateAbsentees,
		}
		if in.EliminateAbsentees != nil {
			sub.EliminateAbsentees = *in.EliminateAbsentees
		}
		now := s.clock()
		out, err := lifecycle.Evaluate(r, team, prev, sub, now)
		if err != nil {
			return err
		}
		score = out.Score
		if err := tx.UpsertScore(ctx, &score); err != nil {
			return err
		}
		if out.Eliminate {
			if _, err := tx.SetTeamStatus(ctx, []string{team.Key}, model.StatusEliminated, now); err != nil {
				return err
			}
			eliminated = true
		}
		return nil
	})
	if err != nil {
		return model.TeamScore{}, err
	}

	metrics.RecordEvaluation(present)
	if eliminated {
		metrics.RecordAbsentees("eliminated", 1)
	}
	s.logger.Info(ctx, "team evaluated",
		logger.Int64("round_id", in.RoundID),
		logger.String("team_id", in.TeamKey),
		logger.Bool("present", present),
		logger.Float64("score", score.Score),
		logger.Bool("eliminated", eliminated))
	return score, nil
}

// RoundEvaluations lists the score rows of a round.
func (s *Service) RoundEvaluations(ctx context.Context, c policy.Caller, id int64) (scores []model.TeamScore, err error) {
	const op = "service.round_evaluations"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, false)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionViewEvaluations, &r); err != nil {
			return err
		}
		scores, err = tx.Scores(ctx, repository.ScoreFilter{RoundID: id})
		return err
	})
	return scores, err
}

// RoundLeaderboard ranks the teams evaluated in one round by their score.
func (s *Service) RoundLeaderboard(ctx context.Context, c policy.Caller, id int64) (entries []types.Entry, err error) {
	const op = "service.round_leaderboard"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, false)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionViewEvaluations, &r); err != nil {
			return err
		}
		entries, err = s.roundRanking(ctx, tx, id)
		return err
	})
	return entries, err
}

func (s *Service) roundRanking(ctx context.Context, tx repository.Tx, id int64) ([]types.Entry, error) {
	scores, err := tx.Scores(ctx, repository.ScoreFilter{RoundID: id})
	if err != nil {
		return nil, err
	}
	teams, err := tx.Teams(ctx, repository.TeamFilter{})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(teams))
	for _, t := range teams {
		names[t.Key] = t.Name
	}
	return leaderboard.RoundRanking(scores, names), nil
}

// FreezeRound locks an evaluated-upon round and returns its statistics.
func (s *Service) FreezeRound(ctx context.Context, c policy.Caller, id int64) (stats model.RoundStats, err error) {
	const op = "service.freeze_round"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, true)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionFreeze, &r); err != nil {
			return err
		}
		scores, err := tx.Scores(ctx, repository.ScoreFilter{RoundID: id})
		if err != nil {
			return err
		}
		if stats, err = lifecycle.Freeze(&r, scores, s.clock()); err != nil {
			return err
		}
		return tx.UpdateRound(ctx, r)
	})
	if err != nil {
		return model.RoundStats{}, err
	}
	metrics.RecordRoundTransition("freeze")
	s.logger.Info(ctx, "round frozen",
		logger.Int64("round_id", id),
		logger.Int("participated", stats.ParticipatedCount),
		logger.Float64("avg_score", stats.AvgScore))
	return stats, nil
}

// UnfreezeRound reopens a frozen round that was not evaluated yet. The
// state is checked before the caller, so an evaluated round is always
// reported as such.
func (s *Service) UnfreezeRound(ctx context.Context, c policy.Caller, id int64) (err error) {
	const op = "service.unfreeze_round"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, true)
		if err != nil {
			return err
		}
		next := r.Clone()
		if err := lifecycle.Unfreeze(&next, s.clock()); err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionUnfreeze, &r); err != nil {
			return err
		}
		return tx.UpdateRound(ctx, next)
	})
	if err != nil {
		return err
	}
	metrics.RecordRoundTransition("unfreeze")
	s.logger.Info(ctx, "round unfrozen", logger.Int64("round_id", id))
	return nil
}

// RoundStats returns the cached statistics and, while frozen, the top three teams.
func (s *Service) RoundStats(ctx context.Context, c policy.Caller, id int64) (view RoundStatsView, err error) {
	const op = "service.round_stats"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, false)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionView, &r); err != nil {
			return err
		}
		view = RoundStatsView{
			RoundID:     r.ID,
			IsFrozen:    r.IsFrozen,
			IsEvaluated: r.IsEvaluated,
			Stats:       r.Stats,
			TopTeams:    []types.Entry{},
		}
		if !r.IsFrozen {
			return nil
		}
		entries, err := s.roundRanking(ctx, tx, id)
		if err != nil {
			return err
		}
		view.TopTeams = leaderboard.Top(entries, 3)
		return nil
	})
	return view, err
}
