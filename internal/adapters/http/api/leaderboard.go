package api

import (
	"context"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/policy"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, c policy.Caller, pop leaderboard.Population) ([]leaderboard.Standing, error)
}

// LeaderboardHandler handles leaderboard requests. Concurrent requests for
// the same population share one aggregation.
type LeaderboardHandler struct {
	deps  LeaderboardDependencies
	group singleflight.Group
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard?population=all|active.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	pop, err := leaderboard.ParsePopulation(r.URL.Query().Get("population"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	// every caller may view the leaderboard, so one result serves them all
	v, err, _ := h.group.Do(string(pop), func() (any, error) {
		return h.deps.Leaderboard(context.WithoutCancel(r.Context()), callerFrom(r), pop)
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
