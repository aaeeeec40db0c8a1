package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/lifecycle"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/internal/domain/shortlist"
	"github.com/okian/shortlist/internal/domain/types"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// ShortlistResult reports a committed shortlist decision.
type ShortlistResult struct {
	RoundID         int64          `json:"round_id"`
	Mode            shortlist.Mode `json:"mode"`
	Value           float64        `json:"value"`
	Shortlisted     []string       `json:"shortlisted_ids"`
	Eliminated      []string       `json:"eliminated_ids"`
	EliminatedCount int            `json:"eliminated_count"`
	EvaluatedRounds []int64        `json:"evaluated_rounds"`
}

// ToggleResult reports an absentee policy change.
type ToggleResult struct {
	RoundID            int64 `json:"round_id"`
	EliminateAbsentees bool  `json:"eliminate_absentees"`
	ReactivatedCount   int   `json:"reactivated_count"`
}

// ReconcileResult reports a bulk absentee pass.
type ReconcileResult struct {
	RoundID          int64 `json:"round_id"`
	EliminatedCount  int   `json:"eliminated_count"`
	ReactivatedCount int   `json:"reactivated_count"`
}

// Shortlist decides which active teams advance past a frozen round. The
// decision, the team statuses and the evaluated flag of every frozen round
// commit together or not at all.
func (s *Service) Shortlist(ctx context.Context, c policy.Caller, id int64, mode string, value float64) (res ShortlistResult, err error) {
	const op = "service.shortlist"
	ctx, span := s.begin(ctx, op, roundAttr(id), attribute.String("shortlist.mode", mode), attribute.Float64("shortlist.value", value))
	defer func() { err = s.finish(ctx, span, op, err) }()

	m, err := shortlist.ParseMode(mode)
	if err != nil {
		return ShortlistResult{}, err
	}
	rule := shortlist.Rule{Mode: m, Value: value}

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		target, err := tx.Round(ctx, id, true)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionShortlist, &target); err != nil {
			return err
		}
		if err := lifecycle.RequireFrozen(op, target); err != nil {
			return err
		}

		snap, err := s.loadSnapshot(ctx, tx, true)
		if err != nil {
			return err
		}
		if len(snap.Rounds) == 0 {
			return types.WrapKind(op, types.ErrInvalidState, shortlist.ErrNothingInScope)
		}
		decision, err := shortlist.Decide(leaderboard.Compute(snap, leaderboard.PopulationActive), rule)
		if err != nil {
			return err
		}

		now := s.clock()
		if _, err := tx.SetTeamStatus(ctx, decision.Eliminated, model.StatusEliminated, now); err != nil {
			return err
		}
		teams := teamIndex(snap.Teams)
		for _, key := range decision.Selected {
			t := teams[key]
			if t.CurrentRound > target.Number {
				continue
			}
			t.CurrentRound = target.Number + 1
			t.UpdatedAt = now
			if err := tx.UpdateTeam(ctx, t); err != nil {
				return err
			}
		}

		res = ShortlistResult{
			RoundID:         id,
			Mode:            m,
			Value:           value,
			Shortlisted:     decision.Selected,
			Eliminated:      decision.Eliminated,
			EliminatedCount: len(decision.Eliminated),
		}
		for _, r := range snap.Rounds {
			if r.IsEvaluated {
				continue
			}
			if err := lifecycle.MarkEvaluated(&r, now); err != nil {
				return err
			}
			if r.ID == id {
				r.ShortlistedTeams = decision.Selected
			}
			if err := tx.UpdateRound(ctx, r); err != nil {
				return err
			}
			res.EvaluatedRounds = append(res.EvaluatedRounds, r.ID)
		}
		return nil
	})
	if err != nil {
		return ShortlistResult{}, err
	}

	metrics.RecordShortlist(string(m), len(res.Shortlisted), res.EliminatedCount)
	for range res.EvaluatedRounds {
		metrics.RecordRoundTransition("evaluate")
	}
	s.logger.Info(ctx, "shortlist committed",
		logger.Int64("round_id", id),
		logger.String("mode", string(m)),
		logger.Float64("value", value),
		logger.Int("selected", len(res.Shortlisted)),
		logger.Int("eliminated", res.EliminatedCount),
		logger.Any("evaluated_rounds", res.EvaluatedRounds))
	return res, nil
}

func teamIndex(teams []model.Team) map[string]model.Team {
	out := make(map[string]model.Team, len(teams))
	for _, t := range teams {
		out[t.Key] = t
	}
	return out
}

// roundParticipants loads every team and the score rows of one round.
func roundParticipants(ctx context.Context, tx repository.Tx, id int64) (map[string]model.Team, []model.TeamScore, error) {
	teams, err := tx.Teams(ctx, repository.TeamFilter{})
	if err != nil {
		return nil, nil, err
	}
	scores, err := tx.Scores(ctx, repository.ScoreFilter{RoundID: id})
	if err != nil {
		return nil, nil, err
	}
	return teamIndex(teams), scores, nil
}

// ToggleEliminationPolicy stores the absentee policy of a round. Switching
// it off reactivates the teams eliminated for being absent in this round.
func (s *Service) ToggleEliminationPolicy(ctx context.Context, c policy.Caller, id int64, eliminate bool) (res ToggleResult, err error) {
	const op = "service.toggle_elimination_policy"
	ctx, span := s.begin(ctx, op, roundAttr(id), attribute.Bool("eliminate", eliminate))
	defer func() { err = s.finish(ctx, span, op, err) }()

	res = ToggleResult{RoundID: id, EliminateAbsentees: eliminate}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, true)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionHandleAbsentees, &r); err != nil {
			return err
		}
		now := s.clock()
		if r.EliminateAbsentees != eliminate {
			r.EliminateAbsentees = eliminate
			r.UpdatedAt = now
			if err := tx.UpdateRound(ctx, r); err != nil {
				return err
			}
		}
		if eliminate {
			return nil
		}
		teams, scores, err := roundParticipants(ctx, tx, id)
		if err != nil {
			return err
		}
		res.ReactivatedCount, err = tx.SetTeamStatus(ctx, lifecycle.AbsentToReactivate(teams, scores), model.StatusActive, now)
		return err
	})
	if err != nil {
		return ToggleResult{}, err
	}
	metrics.RecordAbsentees("reactivated", res.ReactivatedCount)
	s.logger.Info(ctx, "elimination policy toggled",
		logger.Int64("round_id", id),
		logger.Bool("eliminate", eliminate),
		logger.Int("reactivated", res.ReactivatedCount))
	return res, nil
}

// ReconcileAbsentees applies the absentee policy in bulk to a frozen round.
// With eliminate off it reactivates every eliminated participant, see
// ReactivateParticipants.
func (s *Service) ReconcileAbsentees(ctx context.Context, c policy.Caller, id int64, eliminate bool) (res ReconcileResult, err error) {
	if !eliminate {
		n, err := s.ReactivateParticipants(ctx, c, id)
		if err != nil {
			return ReconcileResult{}, err
		}
		return ReconcileResult{RoundID: id, ReactivatedCount: n}, nil
	}

	const op = "service.reconcile_absentees"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	res = ReconcileResult{RoundID: id}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := s.frozenRoundFor(ctx, tx, c, op, id); err != nil {
			return err
		}
		teams, scores, err := roundParticipants(ctx, tx, id)
		if err != nil {
			return err
		}
		res.EliminatedCount, err = tx.SetTeamStatus(ctx, lifecycle.AbsentToEliminate(teams, scores), model.StatusEliminated, s.clock())
		return err
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	metrics.RecordAbsentees("eliminated", res.EliminatedCount)
	s.logger.Info(ctx, "absentees eliminated", logger.Int64("round_id", id), logger.Int("eliminated", res.EliminatedCount))
	return res, nil
}

// ReactivateParticipants sets every eliminated team with a score row in the
// frozen round back to active, whatever caused its elimination. This can
// undo shortlist eliminations.
func (s *Service) ReactivateParticipants(ctx context.Context, c policy.Caller, id int64) (n int, err error) {
	const op = "service.reactivate_participants"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := s.frozenRoundFor(ctx, tx, c, op, id); err != nil {
			return err
		}
		teams, scores, err := roundParticipants(ctx, tx, id)
		if err != nil {
			return err
		}
		n, err = tx.SetTeamStatus(ctx, lifecycle.ParticipantsToReactivate(teams, scores), model.StatusActive, s.clock())
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordAbsentees("reactivated", n)
	s.logger.Info(ctx, "participants reactivated", logger.Int64("round_id", id), logger.Int("reactivated", n))
	return n, nil
}

// frozenRoundFor locks round id and checks the caller may handle its
// absentees. Evaluated rounds are frozen too and qualify.
func (s *Service) frozenRoundFor(ctx context.Context, tx repository.Tx, c policy.Caller, op string, id int64) error {
	r, err := tx.Round(ctx, id, true)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize(c, policy.ActionHandleAbsentees, &r); err != nil {
		return err
	}
	if !r.IsFrozen {
		return types.WrapKind(op, types.ErrInvalidState, lifecycle.ErrRoundNotFrozen)
	}
	return nil
}
