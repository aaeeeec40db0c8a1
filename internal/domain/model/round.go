package model

import (
	"slices"
	"time"
)

// Criterion is one judged dimension of a round.
type Criterion struct {
	Name      string  `json:"name" validate:"required,max=100"`
	MaxPoints float64 `json:"max_points" validate:"gt=0"`
}

// RoundStats are computed once when a round is frozen.
type RoundStats struct {
	MaxScore          float64 `json:"max_score"`
	MinScore          float64 `json:"min_score"`
	AvgScore          float64 `json:"avg_score"`
	ParticipatedCount int     `json:"participated_count"`
}

// Round is one evaluation stage of an event.
// IsEvaluated implies IsFrozen.
type Round struct {
	ID                 int64       `json:"id"`
	EventID            string      `json:"event_id"`
	Number             int         `json:"round_number"`
	Name               string      `json:"name"`
	Club               string      `json:"club,omitempty"` // owning club, empty for admin-only rounds
	Criteria           []Criterion `json:"evaluation_criteria"`
	IsFrozen           bool        `json:"is_frozen"`
	IsEvaluated        bool        `json:"is_evaluated"`
	Stats              *RoundStats `json:"stats,omitempty"`
	ShortlistedTeams   []string    `json:"shortlisted_teams,omitempty"`
	EliminateAbsentees bool        `json:"eliminate_absentees"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r Round) Clone() Round {
	out := r
	out.Criteria = slices.Clone(r.Criteria)
	out.ShortlistedTeams = slices.Clone(r.ShortlistedTeams)
	if r.Stats != nil {
		s := *r.Stats
		out.Stats = &s
	}
	return out
}

// MaxPossible is the sum of the criteria maxima.
func MaxPossible(criteria []Criterion) float64 {
	var total float64
	for _, c := range criteria {
		total += c.MaxPoints
	}
	return total
}
