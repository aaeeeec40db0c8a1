// Package model contains domain models passed between layers.
package model

import "time"

// TeamStatus is a team's standing in the competition.
type TeamStatus string

// Team statuses.
const (
	StatusActive     TeamStatus = "ACTIVE"
	StatusEliminated TeamStatus = "ELIMINATED"
	StatusCompleted  TeamStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s TeamStatus) Valid() bool {
	switch s {
	case StatusActive, StatusEliminated, StatusCompleted:
		return true
	}
	return false
}

// Team is a competing team, identified by its business key.
type Team struct {
	Key           string     `json:"team_id"`
	Name          string     `json:"team_name"`
	LeaderName    string     `json:"leader_name,omitempty"`
	LeaderEmail   string     `json:"leader_email,omitempty"`
	LeaderContact string     `json:"leader_contact,omitempty"`
	Status        TeamStatus `json:"status"`
	CurrentRound  int        `json:"current_round"` // advisory progress marker
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Active reports whether the team may still be evaluated.
func (t Team) Active() bool { return t.Status == StatusActive }
