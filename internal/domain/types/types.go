// Package types contains common types used across the application
package types

// Entry represents one ranked row of a per-round leaderboard.
type Entry struct {
	Rank     int     `json:"rank"`
	TeamKey  string  `json:"team_id"`
	TeamName string  `json:"team_name"`
	Score    float64 `json:"score"`
}
