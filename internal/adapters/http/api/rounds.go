package api

import (
	"net/http"

	service "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/model"
)

type criteriaRequest struct {
	Criteria []model.Criterion `json:"evaluation_criteria"`
}

type evaluationRequest struct {
	CriteriaScores     map[string]float64 `json:"criteria_scores"`
	Present            *bool              `json:"is_present"`
	EliminateAbsentees *bool              `json:"eliminate_absentees"`
}

type freezeResponse struct {
	RoundID int64            `json:"round_id"`
	Status  string           `json:"status"`
	Stats   model.RoundStats `json:"stats"`
}

type statusResponse struct {
	RoundID int64  `json:"round_id"`
	Status  string `json:"status"`
}

// handleCreateRound handles POST /rounds.
func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	var in service.RoundInput
	if err := decode(w, r, &in); err != nil {
		writeFailure(w, err)
		return
	}
	round, err := s.deps.CreateRound(r.Context(), callerFrom(r), in)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

// handleListRounds handles GET /rounds?event_id=.
func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.deps.ListRounds(r.Context(), callerFrom(r), r.URL.Query().Get("event_id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rounds == nil {
		rounds = []model.Round{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// handleGetRound handles GET /rounds/{id}.
func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	round, err := s.deps.GetRound(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// handleDeleteRound handles DELETE /rounds/{id}.
func (s *Server) handleDeleteRound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.deps.DeleteRound(r.Context(), callerFrom(r), id); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetCriteria handles GET /rounds/{id}/criteria.
func (s *Server) handleGetCriteria(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	criteria, err := s.deps.GetCriteria(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if criteria == nil {
		criteria = []model.Criterion{}
	}
	writeJSON(w, http.StatusOK, criteriaRequest{Criteria: criteria})
}

// handleSetCriteria handles PUT /rounds/{id}/criteria.
func (s *Server) handleSetCriteria(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req criteriaRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	round, err := s.deps.SetCriteria(r.Context(), callerFrom(r), id, req.Criteria)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// handleEvaluate handles PUT /rounds/{id}/evaluate/{team}.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	team := r.PathValue("team")
	if team == "" {
		writeFailure(w, badRequest("api.evaluate", "missing team"))
		return
	}
	var req evaluationRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	score, err := s.deps.EvaluateTeam(r.Context(), callerFrom(r), service.EvaluationInput{
		RoundID:            id,
		TeamKey:            team,
		CriteriaScores:     req.CriteriaScores,
		Present:            req.Present,
		EliminateAbsentees: req.EliminateAbsentees,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// handleEvaluations handles GET /rounds/{id}/evaluations.
func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	scores, err := s.deps.RoundEvaluations(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if scores == nil {
		scores = []model.TeamScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

// handleRoundLeaderboard handles GET /rounds/{id}/leaderboard.
func (s *Server) handleRoundLeaderboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	entries, err := s.deps.RoundLeaderboard(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleFreeze handles POST /rounds/{id}/freeze.
func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	stats, err := s.deps.FreezeRound(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, freezeResponse{RoundID: id, Status: "frozen", Stats: stats})
}

// handleUnfreeze handles POST /rounds/{id}/unfreeze.
func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.deps.UnfreezeRound(r.Context(), callerFrom(r), id); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{RoundID: id, Status: "open"})
}

// handleRoundStats handles GET /rounds/{id}/stats.
func (s *Server) handleRoundStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	view, err := s.deps.RoundStats(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
