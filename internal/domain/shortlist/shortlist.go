// Package shortlist partitions active teams into advancing and eliminated sets.
package shortlist

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/types"
)

// Mode is the selection rule.
type Mode string

// Modes.
const (
	ModeTopK      Mode = "top_k"
	ModeThreshold Mode = "threshold"
)

// Decision errors.
var (
	ErrUnknownMode    = errors.New("unknown shortlist mode")
	ErrInvalidValue   = errors.New("invalid shortlist value")
	ErrNoActiveTeams  = errors.New("no active teams to shortlist")
	ErrNothingInScope = errors.New("no rounds in scope")
)

// Rule is a mode with its parameter: k for top_k, a minimum overall for threshold.
type Rule struct {
	Mode  Mode    `json:"mode"`
	Value float64 `json:"value"`
}

// ParseMode accepts top_k and threshold, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeTopK, ModeThreshold:
		return m, nil
	}
	return "", types.WrapKind("shortlist.mode", types.ErrInvalidArgument, fmt.Errorf("%w: %q", ErrUnknownMode, s))
}

// Decision lists team keys in ranking order.
type Decision struct {
	Selected   []string `json:"shortlisted_ids"`
	Eliminated []string `json:"eliminated_ids"`
}

// Validate checks the rule against the number of candidates.
func (r Rule) Validate(candidates int) error {
	const op = "shortlist.validate"
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: %v", ErrInvalidValue, r.Value))
	}
	switch r.Mode {
	case ModeTopK:
		if r.Value != math.Trunc(r.Value) {
			return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: top_k must be an integer, got %v", ErrInvalidValue, r.Value))
		}
		if r.Value < 1 || r.Value > float64(candidates) {
			return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidValue, candidates))
		}
	case ModeThreshold:
		if r.Value < 0 || r.Value > 100 {
			return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: threshold must be between 0 and 100", ErrInvalidValue))
		}
	default:
		return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: %q", ErrUnknownMode, r.Mode))
	}
	return nil
}

// Decide applies rule to the active standings. Standings are re-sorted by
// overall score, ties keeping their given order, so boundary ties follow
// input order.
func Decide(standings []leaderboard.Standing, rule Rule) (Decision, error) {
	const op = "shortlist.decide"
	if len(standings) == 0 {
		return Decision{}, types.WrapKind(op, types.ErrInvalidState, ErrNoActiveTeams)
	}
	if err := rule.Validate(len(standings)); err != nil {
		return Decision{}, err
	}

	ranked := append([]leaderboard.Standing(nil), standings...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Overall > ranked[j].Overall })

	d := Decision{Selected: []string{}, Eliminated: []string{}}
	for i, st := range ranked {
		var keep bool
		if rule.Mode == ModeTopK {
			keep = i < int(rule.Value)
		} else {
			keep = st.Overall >= rule.Value
		}
		if keep {
			d.Selected = append(d.Selected, st.TeamKey)
		} else {
			d.Eliminated = append(d.Eliminated, st.TeamKey)
		}
	}
	return d, nil
}
