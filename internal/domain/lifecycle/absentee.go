package lifecycle

import "github.com/okian/shortlist/internal/domain/model"

// AbsentToReactivate lists eliminated teams whose score row in this round
// marks them not present. Teams eliminated for other reasons are left alone.
func AbsentToReactivate(teams map[string]model.Team, scores []model.TeamScore) []string {
	var out []string
	for _, s := range scores {
		if s.IsPresent {
			continue
		}
		if t, ok := teams[s.TeamKey]; ok && t.Status == model.StatusEliminated {
			out = append(out, s.TeamKey)
		}
	}
	return out
}

// AbsentToEliminate lists absent teams of the round that are not eliminated yet.
func AbsentToEliminate(teams map[string]model.Team, scores []model.TeamScore) []string {
	var out []string
	for _, s := range scores {
		if s.IsPresent {
			continue
		}
		if t, ok := teams[s.TeamKey]; ok && t.Status != model.StatusEliminated {
			out = append(out, s.TeamKey)
		}
	}
	return out
}

// ParticipantsToReactivate lists every eliminated team with any score row in
// the round, whatever caused the elimination.
func ParticipantsToReactivate(teams map[string]model.Team, scores []model.TeamScore) []string {
	var out []string
	for _, s := range scores {
		if t, ok := teams[s.TeamKey]; ok && t.Status == model.StatusEliminated {
			out = append(out, s.TeamKey)
		}
	}
	return out
}
