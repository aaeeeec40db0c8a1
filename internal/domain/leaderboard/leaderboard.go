// Package leaderboard aggregates round scores into weighted overall standings.
//
// Aggregation is a pure function over a Snapshot: callers load teams, rounds,
// weights and scores once and every view (overall leaderboard, team listing,
// shortlist) derives its numbers from the same Compute call.
package leaderboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/types"
)

// Population selects which teams are ranked.
type Population string

// Populations.
const (
	PopulationAll    Population = "all"
	PopulationActive Population = "active"
)

// ParsePopulation accepts "all" or "active"; empty means all.
func ParsePopulation(s string) (Population, error) {
	switch Population(strings.ToLower(strings.TrimSpace(s))) {
	case "", PopulationAll:
		return PopulationAll, nil
	case PopulationActive:
		return PopulationActive, nil
	}
	return "", types.WrapKind("leaderboard.population", types.ErrInvalidArgument, fmt.Errorf("unknown population %q", s))
}

// InScope reports whether r counts toward overall scores: every evaluated
// round plus frozen rounds still awaiting a decision.
func InScope(r model.Round) bool {
	return r.IsEvaluated || r.IsFrozen
}

// Snapshot is the input of an aggregation. Weights maps round id to a
// percentage; a missing entry counts as the default weight.
type Snapshot struct {
	Teams   []model.Team
	Rounds  []model.Round
	Weights map[int64]float64
	Scores  []model.TeamScore
}

// Standing is one ranked row of the overall leaderboard.
type Standing struct {
	Rank          int              `json:"rank"`
	TeamKey       string           `json:"team_id"`
	TeamName      string           `json:"team_name"`
	Status        model.TeamStatus `json:"status"`
	Overall       float64          `json:"final_score"`
	Percentile    float64          `json:"percentile"`
	RoundsCounted int              `json:"rounds_counted"`
}

type scoreKey struct {
	team  string
	round int64
}

// Compute ranks the selected population by weighted overall score.
// Teams missing a score in an in-scope round get zero for it. Ties keep the
// order of s.Teams. With no round in scope the result is empty.
func Compute(s Snapshot, pop Population) []Standing {
	var scope []model.Round
	for _, r := range s.Rounds {
		if InScope(r) {
			scope = append(scope, r)
		}
	}
	if len(scope) == 0 {
		return nil
	}

	factors := make([]float64, len(scope))
	var totalWeight float64
	for i, r := range scope {
		p, ok := s.Weights[r.ID]
		if !ok {
			p = model.DefaultWeightPercentage
		}
		factors[i] = model.RoundWeight{RoundID: r.ID, Percentage: p}.Factor()
		totalWeight += factors[i]
	}
	if totalWeight <= 0 {
		return nil
	}

	byKey := make(map[scoreKey]float64, len(s.Scores))
	for _, sc := range s.Scores {
		byKey[scoreKey{sc.TeamKey, sc.RoundID}] = sc.Score
	}

	out := make([]Standing, 0, len(s.Teams))
	for _, t := range s.Teams {
		if pop == PopulationActive && !t.Active() {
			continue
		}
		var weighted float64
		counted := 0
		for i, r := range scope {
			if v, ok := byKey[scoreKey{t.Key, r.ID}]; ok {
				weighted += v * factors[i]
				counted++
			}
		}
		out = append(out, Standing{
			TeamKey:       t.Key,
			TeamName:      t.Name,
			Status:        t.Status,
			Overall:       weighted / totalWeight,
			RoundsCounted: counted,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Overall > out[j].Overall })

	var best float64
	if len(out) > 0 {
		best = out[0].Overall
	}
	for i := range out {
		out[i].Rank = i + 1
		if best > 0 {
			out[i].Percentile = out[i].Overall / best * 100
		}
	}
	return out
}

// RoundRanking orders the score rows of a single round by score, highest
// first, ties in row order. names resolves team display names.
func RoundRanking(scores []model.TeamScore, names map[string]string) []types.Entry {
	rows := append([]model.TeamScore(nil), scores...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	out := make([]types.Entry, len(rows))
	for i, r := range rows {
		out[i] = types.Entry{Rank: i + 1, TeamKey: r.TeamKey, TeamName: names[r.TeamKey], Score: r.Score}
	}
	return out
}

// Top returns at most n leading entries.
func Top(entries []types.Entry, n int) []types.Entry {
	if n < len(entries) {
		return entries[:n]
	}
	return entries
}
