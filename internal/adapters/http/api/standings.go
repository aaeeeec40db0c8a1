package api

import (
	"net/http"

	service "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/model"
)

type weightRequest struct {
	Percentage *float64 `json:"weight_percentage"`
}

// handleGetWeight handles GET /weights/{id}.
func (s *Server) handleGetWeight(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	weight, err := s.deps.GetRoundWeight(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weight)
}

// handleSetWeight handles PUT /weights/{id}.
func (s *Server) handleSetWeight(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req weightRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Percentage == nil {
		writeFailure(w, badRequest("api.set_weight", "missing weight_percentage"))
		return
	}
	weight, err := s.deps.SetRoundWeight(r.Context(), callerFrom(r), id, *req.Percentage)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weight)
}

// handleEvaluatedRounds handles GET /leaderboard/evaluated-rounds.
func (s *Server) handleEvaluatedRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.deps.EvaluatedRounds(r.Context(), callerFrom(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if rounds == nil {
		rounds = []service.EvaluatedRound{}
	}
	writeJSON(w, http.StatusOK, rounds)
}

// handleExportRound handles GET /rounds/{id}/export?sort_by=name|score.
func (s *Server) handleExportRound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	by := model.ExportSort(r.URL.Query().Get("sort_by"))
	doc, err := s.deps.ExportRoundCSV(r.Context(), callerFrom(r), id, by)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeDocument(w, doc)
}

// handleExportLeaderboard handles GET /leaderboard/export.
func (s *Server) handleExportLeaderboard(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.ExportLeaderboardCSV(r.Context(), callerFrom(r))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeDocument(w, doc)
}

// handleExportEmail handles POST /rounds/{id}/export-email. An
// Idempotency-Key header is used when the body carries no key.
func (s *Server) handleExportEmail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	var in service.EmailExportInput
	if err := decode(w, r, &in); err != nil {
		writeFailure(w, err)
		return
	}
	in.RoundID = id
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	res, err := s.deps.EmailRoundExport(r.Context(), callerFrom(r), in)
	if err != nil {
		writeFailure(w, err)
		return
	}
	status := http.StatusAccepted
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}
