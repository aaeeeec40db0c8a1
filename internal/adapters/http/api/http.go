// Package api serves the competition operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/shortlist/internal/adapters/mq/worker"
	service "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/internal/domain/types"
)

// Caller headers set by the upstream gateway.
const (
	HeaderCallerRole = "X-Caller-Role"
	HeaderCallerClub = "X-Caller-Club"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Dependencies is the set of operations the handlers call.
type Dependencies interface {
	CreateTeam(ctx context.Context, c policy.Caller, in service.TeamInput) (model.Team, error)
	ListTeams(ctx context.Context, c policy.Caller, status model.TeamStatus) ([]service.TeamView, error)

	CreateRound(ctx context.Context, c policy.Caller, in service.RoundInput) (model.Round, error)
	GetRound(ctx context.Context, c policy.Caller, id int64) (model.Round, error)
	ListRounds(ctx context.Context, c policy.Caller, eventID string) ([]model.Round, error)
	DeleteRound(ctx context.Context, c policy.Caller, id int64) error
	GetCriteria(ctx context.Context, c policy.Caller, id int64) ([]model.Criterion, error)
	SetCriteria(ctx context.Context, c policy.Caller, id int64, criteria []model.Criterion) (model.Round, error)
	EvaluateTeam(ctx context.Context, c policy.Caller, in service.EvaluationInput) (model.TeamScore, error)
	RoundEvaluations(ctx context.Context, c policy.Caller, id int64) ([]model.TeamScore, error)
	RoundLeaderboard(ctx context.Context, c policy.Caller, id int64) ([]types.Entry, error)
	FreezeRound(ctx context.Context, c policy.Caller, id int64) (model.RoundStats, error)
	UnfreezeRound(ctx context.Context, c policy.Caller, id int64) error
	RoundStats(ctx context.Context, c policy.Caller, id int64) (service.RoundStatsView, error)

	Shortlist(ctx context.Context, c policy.Caller, id int64, mode string, value float64) (service.ShortlistResult, error)
	ToggleEliminationPolicy(ctx context.Context, c policy.Caller, id int64, eliminate bool) (service.ToggleResult, error)
	ReconcileAbsentees(ctx context.Context, c policy.Caller, id int64, eliminate bool) (service.ReconcileResult, error)
	ReactivateParticipants(ctx context.Context, c policy.Caller, id int64) (int, error)

	GetRoundWeight(ctx context.Context, c policy.Caller, id int64) (model.RoundWeight, error)
	SetRoundWeight(ctx context.Context, c policy.Caller, id int64, percentage float64) (model.RoundWeight, error)
	Leaderboard(ctx context.Context, c policy.Caller, pop leaderboard.Population) ([]leaderboard.Standing, error)
	EvaluatedRounds(ctx context.Context, c policy.Caller) ([]service.EvaluatedRound, error)

	ExportRoundCSV(ctx context.Context, c policy.Caller, id int64, by model.ExportSort) (worker.Document, error)
	ExportLeaderboardCSV(ctx context.Context, c policy.Caller) (worker.Document, error)
	EmailRoundExport(ctx context.Context, c policy.Caller, in service.EmailExportInput) (service.EmailExportResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps    Dependencies
	limiter *rateLimiter

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:               deps,
		healthHandler:      NewHealthHandler(statsProvider),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	read := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}
	write := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.limiter.wrap(h), endpoint))
	}

	read("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	read("GET /readyz", "readyz", s.healthHandler.HandleReady)
	read("GET /stats", "stats", s.statsHandler.HandleStats)

	write("POST /teams", "teams", s.handleCreateTeam)
	read("GET /teams", "teams", s.handleListTeams)

	write("POST /rounds", "rounds", s.handleCreateRound)
	read("GET /rounds", "rounds", s.handleListRounds)
	read("GET /rounds/{id}", "round", s.handleGetRound)
	write("DELETE /rounds/{id}", "round", s.handleDeleteRound)
	read("GET /rounds/{id}/criteria", "criteria", s.handleGetCriteria)
	write("PUT /rounds/{id}/criteria", "criteria", s.handleSetCriteria)
	write("PUT /rounds/{id}/evaluate/{team}", "evaluate", s.handleEvaluate)
	read("GET /rounds/{id}/evaluations", "evaluations", s.handleEvaluations)
	read("GET /rounds/{id}/leaderboard", "round_leaderboard", s.handleRoundLeaderboard)
	write("POST /rounds/{id}/freeze", "freeze", s.handleFreeze)
	write("POST /rounds/{id}/unfreeze", "unfreeze", s.handleUnfreeze)
	read("GET /rounds/{id}/stats", "round_stats", s.handleRoundStats)

	write("POST /rounds/{id}/shortlist", "shortlist", s.handleShortlist)
	write("POST /rounds/{id}/toggle-elimination", "toggle_elimination", s.handleToggleElimination)
	write("POST /rounds/{id}/handle-absentees", "handle_absentees", s.handleAbsentees)
	write("POST /rounds/{id}/reactivate", "reactivate", s.handleReactivate)

	read("GET /rounds/{id}/export", "export_round", s.handleExportRound)
	write("POST /rounds/{id}/export-email", "export_email", s.handleExportEmail)

	read("GET /weights/{id}", "weights", s.handleGetWeight)
	write("PUT /weights/{id}", "weights", s.handleSetWeight)

	read("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	read("GET /leaderboard/export", "leaderboard_export", s.handleExportLeaderboard)
	read("GET /leaderboard/evaluated-rounds", "evaluated_rounds", s.handleEvaluatedRounds)
}

// Handler returns mux wrapped in the request-scoped middleware.
func Handler(mux http.Handler) http.Handler {
	return RequestIDMiddleware(mux)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps an operation error onto its status code.
func writeFailure(w http.ResponseWriter, err error) {
	switch types.KindOf(err) {
	case types.ErrNotFound:
		writeError(w, http.StatusNotFound, "not_found", err)
	case types.ErrInvalidState:
		writeError(w, http.StatusConflict, "invalid_state", err)
	case types.ErrInvalidArgument:
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case types.ErrPermissionDenied:
		writeError(w, http.StatusForbidden, "forbidden", err)
	case types.ErrUnavailable:
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		// internal causes stay out of the response
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// writeDocument sends a rendered export as an attachment.
func writeDocument(w http.ResponseWriter, doc worker.Document) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func callerFrom(r *http.Request) policy.Caller {
	return policy.Caller{
		Role: policy.ParseRole(r.Header.Get(HeaderCallerRole)),
		Club: strings.TrimSpace(r.Header.Get(HeaderCallerClub)),
	}
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	const op = "api.path_id"
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, raw))
	}
	return id, nil
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	const op = "api.decode"
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: %v", ErrBadRequest, err))
	}
	return nil
}

func badRequest(op string, format string, args ...any) error {
	return types.WrapKind(op, types.ErrInvalidArgument, fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...)))
}
