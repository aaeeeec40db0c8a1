package model

import (
	"maps"
	"time"
)

// Round weight bounds, in percent.
const (
	DefaultWeightPercentage = 100.0
	MinWeightPercentage     = 25.0
	MaxWeightPercentage     = 200.0
)

// TeamScore is the evaluation of one team in one round.
// An absent team has zero scores and no criteria scores.
type TeamScore struct {
	ID             int64              `json:"id"`
	TeamKey        string             `json:"team_id"`
	RoundID        int64              `json:"round_id"`
	EventID        string             `json:"event_id"`
	RawTotal       float64            `json:"raw_total_score"`
	Score          float64            `json:"score"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
	IsNormalized   bool               `json:"is_normalized"`
	IsPresent      bool               `json:"is_present"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s TeamScore) Clone() TeamScore {
	out := s
	out.CriteriaScores = maps.Clone(s.CriteriaScores)
	if out.CriteriaScores == nil {
		out.CriteriaScores = map[string]float64{}
	}
	return out
}

// RoundWeight is the multiplier of a round in the overall score.
type RoundWeight struct {
	RoundID    int64   `json:"round_id"`
	Percentage float64 `json:"weight_percentage"`
}

// Factor is the weight as a multiplier (100% -> 1.0).
func (w RoundWeight) Factor() float64 { return w.Percentage / 100 }

// ValidWeight reports whether p is within the accepted percentage range.
func ValidWeight(p float64) bool {
	return p >= MinWeightPercentage && p <= MaxWeightPercentage
}
