package api

import "net/http"

type shortlistRequest struct {
	Mode  string   `json:"mode"`
	Value *float64 `json:"value"`
}

type eliminateRequest struct {
	Eliminate *bool `json:"eliminate"`
}

type reactivateResponse struct {
	RoundID          int64 `json:"round_id"`
	ReactivatedCount int   `json:"reactivated_count"`
}

func (req eliminateRequest) value(op string) (bool, error) {
	if req.Eliminate == nil {
		return false, badRequest(op, "missing eliminate")
	}
	return *req.Eliminate, nil
}

// handleShortlist handles POST /rounds/{id}/shortlist.
func (s *Server) handleShortlist(w http.ResponseWriter, r *http.Request) {
	const op = "api.shortlist"
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req shortlistRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	if req.Value == nil {
		writeFailure(w, badRequest(op, "missing value"))
		return
	}
	res, err := s.deps.Shortlist(r.Context(), callerFrom(r), id, req.Mode, *req.Value)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleToggleElimination handles POST /rounds/{id}/toggle-elimination.
func (s *Server) handleToggleElimination(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle_elimination"
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req eliminateRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	eliminate, err := req.value(op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := s.deps.ToggleEliminationPolicy(r.Context(), callerFrom(r), id, eliminate)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAbsentees handles POST /rounds/{id}/handle-absentees.
func (s *Server) handleAbsentees(w http.ResponseWriter, r *http.Request) {
	const op = "api.handle_absentees"
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req eliminateRequest
	if err := decode(w, r, &req); err != nil {
		writeFailure(w, err)
		return
	}
	eliminate, err := req.value(op)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := s.deps.ReconcileAbsentees(r.Context(), callerFrom(r), id, eliminate)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReactivate handles POST /rounds/{id}/reactivate.
func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, err)
		return
	}
	n, err := s.deps.ReactivateParticipants(r.Context(), callerFrom(r), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reactivateResponse{RoundID: id, ReactivatedCount: n})
}
