// Package export renders rounds and leaderboards as CSV documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/model"
)

// ContentType is the MIME type of every rendered document.
const ContentType = "text/csv"

// LeaderboardFilename is the attachment name of a leaderboard export.
const LeaderboardFilename = "leaderboard.csv"

const timeLayout = "2006-01-02 15:04:05"

// RoundFilename names the export of round id.
func RoundFilename(id int64) string {
	return fmt.Sprintf("round_%d_evaluations.csv", id)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// Round writes one row for every active team of teams. Teams without a
// score in r are written with zeros. Criterion columns follow r.Criteria.
func Round(w io.Writer, r model.Round, teams []model.Team, scores []model.TeamScore, by model.ExportSort) error {
	byTeam := make(map[string]model.TeamScore, len(scores))
	for _, s := range scores {
		byTeam[s.TeamKey] = s
	}

	rows := make([]model.Team, 0, len(teams))
	for _, t := range teams {
		if t.Active() {
			rows = append(rows, t)
		}
	}
	switch by {
	case model.SortByScore:
		sort.SliceStable(rows, func(i, j int) bool {
			return byTeam[rows[i].Key].Score > byTeam[rows[j].Key].Score
		})
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
		})
	}

	cw := csv.NewWriter(w)
	header := []string{"Team ID", "Team Name", "Leader Name", "Present", "Score", "Raw Total Score", "Is Normalized", "Created At", "Updated At"}
	for _, c := range r.Criteria {
		header = append(header, "Criteria: "+c.Name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export round %d: %w", r.ID, err)
	}

	for _, t := range rows {
		s, scored := byTeam[t.Key]
		record := []string{t.Key, t.Name, t.LeaderName}
		if scored {
			record = append(record,
				strconv.FormatBool(s.IsPresent),
				formatScore(s.Score),
				formatScore(s.RawTotal),
				strconv.FormatBool(s.IsNormalized),
				formatTime(s.CreatedAt),
				formatTime(s.UpdatedAt))
		} else {
			record = append(record, "", formatScore(0), formatScore(0), "false", "", "")
		}
		for _, c := range r.Criteria {
			record = append(record, formatScore(s.CriteriaScores[c.Name]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export round %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Leaderboard writes standings in rank order. teams supplies the contact and
// progress columns; unknown keys leave them empty.
func Leaderboard(w io.Writer, standings []leaderboard.Standing, teams map[string]model.Team) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"Rank", "Team ID", "Team Name", "Leader Name", "Final Score",
		"Percentile", "Rounds Counted", "Current Round", "Status",
	}); err != nil {
		return fmt.Errorf("export leaderboard: %w", err)
	}
	for _, s := range standings {
		t := teams[s.TeamKey]
		if err := cw.Write([]string{
			strconv.Itoa(s.Rank),
			s.TeamKey,
			s.TeamName,
			t.LeaderName,
			formatScore(s.Overall),
			formatScore(s.Percentile),
			strconv.Itoa(s.RoundsCounted),
			strconv.Itoa(t.CurrentRound),
			string(s.Status),
		}); err != nil {
			return fmt.Errorf("export leaderboard: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
