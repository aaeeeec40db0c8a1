// Package repository defines the competition store contracts and their
// in-memory and SQL (gorm) implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/shortlist/internal/domain/model"
)

// Backend names reported by Store.Backend.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// TeamFilter narrows Teams. A zero filter returns every team.
type TeamFilter struct {
	Status model.TeamStatus
}

// RoundFilter narrows Rounds. Lock takes row locks on the matched rounds
// until the surrounding transaction ends.
type RoundFilter struct {
	EventID string
	InScope bool
	Lock    bool
}

// ScoreFilter narrows Scores. A zero RoundID matches every round.
type ScoreFilter struct {
	RoundID int64
	TeamKey string
}

// Tx is the set of operations available inside one transaction.
// Listings are returned in a stable order: teams by creation, rounds by
// (event, number, id), scores by creation.
type Tx interface {
	// CreateTeam stores a new team. Returns ErrDuplicate when the key exists.
	CreateTeam(ctx context.Context, t *model.Team) error
	// Team returns ErrNotFound when key is unknown.
	Team(ctx context.Context, key string) (model.Team, error)
	Teams(ctx context.Context, f TeamFilter) ([]model.Team, error)
	// UpdateTeam overwrites status, current round and contact fields.
	UpdateTeam(ctx context.Context, t model.Team) error
	// SetTeamStatus updates the status of every listed team and returns how many changed.
	SetTeamStatus(ctx context.Context, keys []string, status model.TeamStatus, now time.Time) (int, error)

	// CreateRound assigns r.ID. Returns ErrDuplicate for a repeated (event, number).
	CreateRound(ctx context.Context, r *model.Round) error
	// Round loads one round, holding a row lock when forUpdate is set.
	Round(ctx context.Context, id int64, forUpdate bool) (model.Round, error)
	Rounds(ctx context.Context, f RoundFilter) ([]model.Round, error)
	UpdateRound(ctx context.Context, r model.Round) error
	// DeleteRound removes the round with its scores and weight.
	DeleteRound(ctx context.Context, id int64) error

	// Score returns ErrNotFound when the team has no row in the round.
	Score(ctx context.Context, roundID int64, teamKey string) (model.TeamScore, error)
	Scores(ctx context.Context, f ScoreFilter) ([]model.TeamScore, error)
	// UpsertScore inserts or replaces the (team, round) row and sets s.ID.
	UpsertScore(ctx context.Context, s *model.TeamScore) error

	// WeightOrDefault returns the stored weight, creating one with def when
	// absent. Concurrent callers for the same round observe a single row.
	WeightOrDefault(ctx context.Context, roundID int64, def float64) (w model.RoundWeight, created bool, err error)
	// WeightsOrDefault is the batch form; it returns percentages by round id
	// and the number of rows it had to create.
	WeightsOrDefault(ctx context.Context, roundIDs []int64, def float64) (map[int64]float64, int, error)
	// PutWeight creates or overwrites the weight of a round.
	PutWeight(ctx context.Context, w model.RoundWeight) error
}

// Store runs functions inside transactions. A non-nil error returned by fn
// rolls back every change fn made.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Backend() string
	Ping(ctx context.Context) error
	Close() error
}
