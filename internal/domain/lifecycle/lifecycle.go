// Package lifecycle implements the per-round state machine:
// OPEN -> FROZEN -> EVALUATED, with FROZEN -> OPEN allowed until evaluation.
package lifecycle

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/scoring"
	"github.com/okian/shortlist/internal/domain/types"
)

var validate = validator.New()

// State of a round.
type State int

// Round states.
const (
	StateOpen State = iota
	StateFrozen
	StateEvaluated
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFrozen:
		return "FROZEN"
	case StateEvaluated:
		return "EVALUATED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateOf derives the state from the round flags.
func StateOf(r model.Round) State {
	switch {
	case r.IsEvaluated:
		return StateEvaluated
	case r.IsFrozen:
		return StateFrozen
	default:
		return StateOpen
	}
}

// CheckOpen fails unless criteria and scores of r may still change.
func CheckOpen(op string, r model.Round) error {
	switch StateOf(r) {
	case StateEvaluated:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundEvaluated)
	case StateFrozen:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundFrozen)
	}
	return nil
}

// ValidateCriteria checks names are present and unique and maxima are positive.
func ValidateCriteria(op string, criteria []model.Criterion) error {
	seen := make(map[string]struct{}, len(criteria))
	for i, c := range criteria {
		if err := validate.Struct(c); err != nil {
			return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: #%d: %v", ErrInvalidCriteria, i, err))
		}
		if math.IsInf(c.MaxPoints, 0) || strings.TrimSpace(c.Name) == "" {
			return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: #%d", ErrInvalidCriteria, i))
		}
		if _, dup := seen[c.Name]; dup {
			return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: %q", ErrDuplicateCriteria, c.Name))
		}
		seen[c.Name] = struct{}{}
	}
	if math.IsInf(model.MaxPossible(criteria), 0) {
		return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: maxima overflow", ErrInvalidCriteria))
	}
	return nil
}

// SetCriteria replaces the criteria of an open round wholesale.
func SetCriteria(r *model.Round, criteria []model.Criterion, now time.Time) error {
	const op = "lifecycle.set_criteria"
	if err := CheckOpen(op, *r); err != nil {
		return err
	}
	if err := ValidateCriteria(op, criteria); err != nil {
		return err
	}
	r.Criteria = append([]model.Criterion(nil), criteria...)
	r.UpdatedAt = now
	return nil
}

// Submission is one judge's evaluation of a team.
type Submission struct {
	CriteriaScores     map[string]float64
	Present            bool
	EliminateAbsentees bool
}

// Outcome is the score row to store and whether the team must be eliminated.
type Outcome struct {
	Score     model.TeamScore
	Eliminate bool
}

// Evaluate scores team t in open round r. prev is the existing row, if any,
// so re-evaluation updates in place.
func Evaluate(r model.Round, t model.Team, prev *model.TeamScore, sub Submission, now time.Time) (Outcome, error) {
	const op = "lifecycle.evaluate"
	if err := CheckOpen(op, r); err != nil {
		return Outcome{}, err
	}
	if !t.Active() {
		return Outcome{}, types.WrapKind(op, types.ErrInvalidState, fmt.Errorf("%w: %s is %s", ErrTeamNotActive, t.Key, t.Status))
	}

	res := scoring.Absent()
	criteria := map[string]float64{}
	if sub.Present {
		var err error
		res, err = scoring.Normalize(r.Criteria, sub.CriteriaScores)
		if err != nil {
			return Outcome{}, types.WrapKind(op, types.ErrInvalidArgument, err)
		}
		for k, v := range sub.CriteriaScores {
			criteria[k] = v
		}
	}

	score := model.TeamScore{
		TeamKey:        t.Key,
		RoundID:        r.ID,
		EventID:        r.EventID,
		RawTotal:       res.RawTotal,
		Score:          res.Score,
		CriteriaScores: criteria,
		IsNormalized:   res.Normalized,
		IsPresent:      sub.Present,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if prev != nil {
		score.ID = prev.ID
		score.CreatedAt = prev.CreatedAt
	}
	return Outcome{Score: score, Eliminate: !sub.Present && sub.EliminateAbsentees}, nil
}

// ComputeStats aggregates max, min and average over positive scores.
// ParticipatedCount counts every row, absent teams included.
func ComputeStats(scores []model.TeamScore) model.RoundStats {
	stats := model.RoundStats{ParticipatedCount: len(scores)}
	var sum float64
	n := 0
	for _, s := range scores {
		if s.Score <= 0 {
			continue
		}
		if n == 0 || s.Score > stats.MaxScore {
			stats.MaxScore = s.Score
		}
		if n == 0 || s.Score < stats.MinScore {
			stats.MinScore = s.Score
		}
		sum += s.Score
		n++
	}
	if n > 0 {
		stats.AvgScore = sum / float64(n)
	}
	return stats
}

// Freeze locks an open round that has at least one evaluation and caches its statistics.
func Freeze(r *model.Round, scores []model.TeamScore, now time.Time) (model.RoundStats, error) {
	const op = "lifecycle.freeze"
	if err := CheckOpen(op, *r); err != nil {
		return model.RoundStats{}, err
	}
	if len(scores) == 0 {
		return model.RoundStats{}, types.WrapKind(op, types.ErrInvalidState, ErrNoEvaluations)
	}
	stats := ComputeStats(scores)
	r.IsFrozen = true
	r.Stats = &stats
	r.UpdatedAt = now
	return stats, nil
}

// Unfreeze reopens a frozen round that has not been evaluated. Cached
// statistics stay until the next freeze.
func Unfreeze(r *model.Round, now time.Time) error {
	const op = "lifecycle.unfreeze"
	switch StateOf(*r) {
	case StateEvaluated:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundEvaluated)
	case StateOpen:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundNotFrozen)
	}
	r.IsFrozen = false
	r.UpdatedAt = now
	return nil
}

// MarkEvaluated finalizes a frozen round.
func MarkEvaluated(r *model.Round, now time.Time) error {
	const op = "lifecycle.mark_evaluated"
	switch StateOf(*r) {
	case StateOpen:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundNotFrozen)
	case StateEvaluated:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundEvaluated)
	}
	r.IsEvaluated = true
	r.UpdatedAt = now
	return nil
}

// CheckDeletable allows deleting only rounds that were never frozen.
func CheckDeletable(r model.Round) error {
	return CheckOpen("lifecycle.delete", r)
}

// RequireFrozen fails unless r is frozen and not yet evaluated.
func RequireFrozen(op string, r model.Round) error {
	switch StateOf(r) {
	case StateOpen:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundNotFrozen)
	case StateEvaluated:
		return types.WrapKind(op, types.ErrInvalidState, ErrRoundEvaluated)
	}
	return nil
}
