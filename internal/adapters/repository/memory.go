package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/pkg/metrics"
)

type scoreKey struct {
	round int64
	team  string
}

// memState is the full data set. Transactions work on a deep copy and
// replace the committed state on success.
type memState struct {
	teams     map[string]model.Team
	teamOrder []string
	rounds    map[int64]model.Round
	scores    map[scoreKey]model.TeamScore
	weights   map[int64]model.RoundWeight

	nextRoundID int64
	nextScoreID int64
}

func newMemState() *memState {
	return &memState{
		teams:       map[string]model.Team{},
		rounds:      map[int64]model.Round{},
		scores:      map[scoreKey]model.TeamScore{},
		weights:     map[int64]model.RoundWeight{},
		nextRoundID: 1,
		nextScoreID: 1,
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		teams:       make(map[string]model.Team, len(s.teams)),
		teamOrder:   append([]string(nil), s.teamOrder...),
		rounds:      make(map[int64]model.Round, len(s.rounds)),
		scores:      make(map[scoreKey]model.TeamScore, len(s.scores)),
		weights:     make(map[int64]model.RoundWeight, len(s.weights)),
		nextRoundID: s.nextRoundID,
		nextScoreID: s.nextScoreID,
	}
	for k, v := range s.teams {
		c.teams[k] = v
	}
	for k, v := range s.rounds {
		c.rounds[k] = v.Clone()
	}
	for k, v := range s.scores {
		c.scores[k] = v.Clone()
	}
	for k, v := range s.weights {
		c.weights[k] = v
	}
	return c
}

// MemoryStore is a Store kept in process memory. Transactions are fully
// serialized by one mutex, which also provides the round locks.
type MemoryStore struct {
	mu     sync.Mutex
	state  *memState
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// Backend implements Store.
func (m *MemoryStore) Backend() string { return BackendMemory }

// Ping implements Store.
func (m *MemoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// InTx implements Store.
func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryTx(BackendMemory, float64(time.Since(start).Microseconds())/1000, err != nil)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	tx := &memTx{s: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.s
	return nil
}

type memTx struct {
	s *memState
}

func (t *memTx) CreateTeam(_ context.Context, team *model.Team) error {
	if _, ok := t.s.teams[team.Key]; ok {
		return fmt.Errorf("team %q: %w", team.Key, ErrDuplicate)
	}
	t.s.teams[team.Key] = *team
	t.s.teamOrder = append(t.s.teamOrder, team.Key)
	return nil
}

func (t *memTx) Team(_ context.Context, key string) (model.Team, error) {
	team, ok := t.s.teams[key]
	if !ok {
		return model.Team{}, fmt.Errorf("team %q: %w", key, ErrNotFound)
	}
	return team, nil
}

func (t *memTx) Teams(_ context.Context, f TeamFilter) ([]model.Team, error) {
	out := make([]model.Team, 0, len(t.s.teamOrder))
	for _, key := range t.s.teamOrder {
		team := t.s.teams[key]
		if f.Status != "" && team.Status != f.Status {
			continue
		}
		out = append(out, team)
	}
	return out, nil
}

func (t *memTx) UpdateTeam(_ context.Context, team model.Team) error {
	if _, ok := t.s.teams[team.Key]; !ok {
		return fmt.Errorf("team %q: %w", team.Key, ErrNotFound)
	}
	t.s.teams[team.Key] = team
	return nil
}

func (t *memTx) SetTeamStatus(_ context.Context, keys []string, status model.TeamStatus, now time.Time) (int, error) {
	n := 0
	for _, key := range keys {
		team, ok := t.s.teams[key]
		if !ok || team.Status == status {
			continue
		}
		team.Status = status
		team.UpdatedAt = now
		t.s.teams[key] = team
		n++
	}
	return n, nil
}

func (t *memTx) CreateRound(_ context.Context, r *model.Round) error {
	for _, existing := range t.s.rounds {
		if existing.EventID == r.EventID && existing.Number == r.Number {
			return fmt.Errorf("round %s/%d: %w", r.EventID, r.Number, ErrDuplicate)
		}
	}
	r.ID = t.s.nextRoundID
	t.s.nextRoundID++
	t.s.rounds[r.ID] = r.Clone()
	return nil
}

func (t *memTx) Round(_ context.Context, id int64, _ bool) (model.Round, error) {
	r, ok := t.s.rounds[id]
	if !ok {
		return model.Round{}, fmt.Errorf("round %d: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

func (t *memTx) Rounds(_ context.Context, f RoundFilter) ([]model.Round, error) {
	out := make([]model.Round, 0, len(t.s.rounds))
	for _, r := range t.s.rounds {
		if f.EventID != "" && r.EventID != f.EventID {
			continue
		}
		if f.InScope && !r.IsFrozen && !r.IsEvaluated {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) UpdateRound(_ context.Context, r model.Round) error {
	if _, ok := t.s.rounds[r.ID]; !ok {
		return fmt.Errorf("round %d: %w", r.ID, ErrNotFound)
	}
	t.s.rounds[r.ID] = r.Clone()
	return nil
}

func (t *memTx) DeleteRound(_ context.Context, id int64) error {
	if _, ok := t.s.rounds[id]; !ok {
		return fmt.Errorf("round %d: %w", id, ErrNotFound)
	}
	delete(t.s.rounds, id)
	delete(t.s.weights, id)
	for k := range t.s.scores {
		if k.round == id {
			delete(t.s.scores, k)
		}
	}
	return nil
}

func (t *memTx) Score(_ context.Context, roundID int64, teamKey string) (model.TeamScore, error) {
	s, ok := t.s.scores[scoreKey{roundID, teamKey}]
	if !ok {
		return model.TeamScore{}, fmt.Errorf("score %d/%q: %w", roundID, teamKey, ErrNotFound)
	}
	return s.Clone(), nil
}

func (t *memTx) Scores(_ context.Context, f ScoreFilter) ([]model.TeamScore, error) {
	out := make([]model.TeamScore, 0)
	for k, s := range t.s.scores {
		if f.RoundID != 0 && k.round != f.RoundID {
			continue
		}
		if f.TeamKey != "" && k.team != f.TeamKey {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) UpsertScore(_ context.Context, s *model.TeamScore) error {
	if _, ok := t.s.rounds[s.RoundID]; !ok {
		return fmt.Errorf("round %d: %w", s.RoundID, ErrNotFound)
	}
	if _, ok := t.s.teams[s.TeamKey]; !ok {
		return fmt.Errorf("team %q: %w", s.TeamKey, ErrNotFound)
	}
	k := scoreKey{s.RoundID, s.TeamKey}
	if prev, ok := t.s.scores[k]; ok {
		s.ID = prev.ID
		s.CreatedAt = prev.CreatedAt
	} else {
		s.ID = t.s.nextScoreID
		t.s.nextScoreID++
	}
	t.s.scores[k] = s.Clone()
	return nil
}

func (t *memTx) WeightOrDefault(_ context.Context, roundID int64, def float64) (model.RoundWeight, bool, error) {
	if w, ok := t.s.weights[roundID]; ok {
		return w, false, nil
	}
	if _, ok := t.s.rounds[roundID]; !ok {
		return model.RoundWeight{}, false, fmt.Errorf("round %d: %w", roundID, ErrNotFound)
	}
	w := model.RoundWeight{RoundID: roundID, Percentage: def}
	t.s.weights[roundID] = w
	return w, true, nil
}

func (t *memTx) WeightsOrDefault(ctx context.Context, roundIDs []int64, def float64) (map[int64]float64, int, error) {
	out := make(map[int64]float64, len(roundIDs))
	created := 0
	for _, id := range roundIDs {
		w, c, err := t.WeightOrDefault(ctx, id, def)
		if err != nil {
			return nil, 0, err
		}
		if c {
			created++
		}
		out[id] = w.Percentage
	}
	return out, created, nil
}

func (t *memTx) PutWeight(_ context.Context, w model.RoundWeight) error {
	if _, ok := t.s.rounds[w.RoundID]; !ok {
		return fmt.Errorf("round %d: %w", w.RoundID, ErrNotFound)
	}
	t.s.weights[w.RoundID] = w
	return nil
}

// Counts reports the number of stored rows per table. Used by tests and stats.
func (m *MemoryStore) Counts() (teams, rounds, scores, weights int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.teams), len(m.state.rounds), len(m.state.scores), len(m.state.weights)
}
