package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/pkg/logger"
	"github.com/okian/shortlist/pkg/metrics"
)

// EvaluatedRound is an in-scope round with its weight.
type EvaluatedRound struct {
	model.Round
	WeightPercentage float64 `json:"weight_percentage"`
}

// loadSnapshot reads everything an aggregation needs in one pass. Missing
// weights of in-scope rounds are created with the default. With lock set
// the in-scope rounds stay locked until tx ends.
func (s *Service) loadSnapshot(ctx context.Context, tx repository.Tx, lock bool) (leaderboard.Snapshot, error) {
	teams, err := tx.Teams(ctx, repository.TeamFilter{})
	if err != nil {
		return leaderboard.Snapshot{}, err
	}
	rounds, err := tx.Rounds(ctx, repository.RoundFilter{InScope: true, Lock: lock})
	if err != nil {
		return leaderboard.Snapshot{}, err
	}
	ids := make([]int64, len(rounds))
	inScope := make(map[int64]bool, len(rounds))
	for i, r := range rounds {
		ids[i] = r.ID
		inScope[r.ID] = true
	}
	weights, created, err := tx.WeightsOrDefault(ctx, ids, s.defaultWeight)
	if err != nil {
		return leaderboard.Snapshot{}, err
	}
	for i := 0; i < created; i++ {
		metrics.RecordWeightDefault()
	}

	all, err := tx.Scores(ctx, repository.ScoreFilter{})
	if err != nil {
		return leaderboard.Snapshot{}, err
	}
	scores := make([]model.TeamScore, 0, len(all))
	for _, sc := range all {
		if inScope[sc.RoundID] {
			scores = append(scores, sc)
		}
	}
	return leaderboard.Snapshot{Teams: teams, Rounds: rounds, Weights: weights, Scores: scores}, nil
}

// GetRoundWeight returns the weight of a round, creating the default row on first use.
func (s *Service) GetRoundWeight(ctx context.Context, c policy.Caller, id int64) (w model.RoundWeight, err error) {
	const op = "service.get_round_weight"
	ctx, span := s.begin(ctx, op, roundAttr(id))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionView, nil); err != nil {
		return model.RoundWeight{}, err
	}
	var created bool
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		w, created, err = tx.WeightOrDefault(ctx, id, s.defaultWeight)
		return err
	})
	if err != nil {
		return model.RoundWeight{}, err
	}
	if created {
		metrics.RecordWeightDefault()
	}
	return w, nil
}

// SetRoundWeight stores the weight percentage of a round.
func (s *Service) SetRoundWeight(ctx context.Context, c policy.Caller, id int64, percentage float64) (w model.RoundWeight, err error) {
	const op = "service.set_round_weight"
	ctx, span := s.begin(ctx, op, roundAttr(id), attribute.Float64("weight.percentage", percentage))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if !model.ValidWeight(percentage) {
		return model.RoundWeight{}, invalidArgument(op, "weight %v outside [%v, %v]",
			percentage, model.MinWeightPercentage, model.MaxWeightPercentage)
	}
	w = model.RoundWeight{RoundID: id, Percentage: percentage}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		r, err := tx.Round(ctx, id, false)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(c, policy.ActionSetWeight, &r); err != nil {
			return err
		}
		return tx.PutWeight(ctx, w)
	})
	if err != nil {
		return model.RoundWeight{}, err
	}
	s.logger.Info(ctx, "round weight set", logger.Int64("round_id", id), logger.Float64("percentage", percentage))
	return w, nil
}

// Leaderboard ranks the population by overall score over every in-scope round.
func (s *Service) Leaderboard(ctx context.Context, c policy.Caller, pop leaderboard.Population) (out []leaderboard.Standing, err error) {
	const op = "service.leaderboard"
	ctx, span := s.begin(ctx, op, attribute.String("population", string(pop)))
	defer func() {
		if err != nil {
			metrics.RecordLeaderboardError()
		}
		err = s.finish(ctx, span, op, err)
	}()

	if err := s.policy.Authorize(c, policy.ActionView, nil); err != nil {
		return nil, err
	}
	start := time.Now()
	var snap leaderboard.Snapshot
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		snap, err = s.loadSnapshot(ctx, tx, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	out = leaderboard.Compute(snap, pop)
	if out == nil {
		out = []leaderboard.Standing{}
	}
	metrics.RecordLeaderboardLatency(float64(time.Since(start).Microseconds()) / 1000)
	span.SetAttributes(attribute.Int("leaderboard.size", len(out)), attribute.Int("leaderboard.rounds", len(snap.Rounds)))
	return out, nil
}

// EvaluatedRounds lists the in-scope rounds with their weights.
func (s *Service) EvaluatedRounds(ctx context.Context, c policy.Caller) (out []EvaluatedRound, err error) {
	const op = "service.evaluated_rounds"
	ctx, span := s.begin(ctx, op)
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionView, nil); err != nil {
		return nil, err
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		rounds, err := tx.Rounds(ctx, repository.RoundFilter{InScope: true})
		if err != nil {
			return err
		}
		ids := make([]int64, len(rounds))
		for i, r := range rounds {
			ids[i] = r.ID
		}
		weights, created, err := tx.WeightsOrDefault(ctx, ids, s.defaultWeight)
		if err != nil {
			return err
		}
		for i := 0; i < created; i++ {
			metrics.RecordWeightDefault()
		}
		out = make([]EvaluatedRound, len(rounds))
		for i, r := range rounds {
			out[i] = EvaluatedRound{Round: r, WeightPercentage: weights[r.ID]}
		}
		return nil
	})
	return out, err
}
