package api

import (
	"net/http"
	"strings"

	service "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/model"
)

// handleCreateTeam handles POST /teams.
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var in service.TeamInput
	if err := decode(w, r, &in); err != nil {
		writeFailure(w, err)
		return
	}
	team, err := s.deps.CreateTeam(r.Context(), callerFrom(r), in)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// handleListTeams handles GET /teams?status=.
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	status := model.TeamStatus(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	teams, err := s.deps.ListTeams(r.Context(), callerFrom(r), status)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}
