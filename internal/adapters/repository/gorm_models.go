package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/okian/shortlist/internal/domain/model"
)

type teamRow struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Key           string    `gorm:"column:team_key;type:varchar(64);uniqueIndex;not null"`
	Name          string    `gorm:"column:team_name;type:varchar(200);not null"`
	LeaderName    string    `gorm:"column:leader_name;type:varchar(200)"`
	LeaderEmail   string    `gorm:"column:leader_email;type:varchar(200)"`
	LeaderContact string    `gorm:"column:leader_contact;type:varchar(64)"`
	Status        string    `gorm:"column:status;type:varchar(16);index;not null"`
	CurrentRound  int       `gorm:"column:current_round;not null"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (teamRow) TableName() string { return "teams" }

type roundRow struct {
	ID                 int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EventID            string         `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex:idx_rounds_event_number"`
	Number             int            `gorm:"column:round_number;not null;uniqueIndex:idx_rounds_event_number"`
	Name               string         `gorm:"column:name;type:varchar(200)"`
	Club               string         `gorm:"column:club;type:varchar(100);index"`
	Criteria           datatypes.JSON `gorm:"column:evaluation_criteria"`
	IsFrozen           bool           `gorm:"column:is_frozen;not null"`
	IsEvaluated        bool           `gorm:"column:is_evaluated;not null"`
	MaxScore           *float64       `gorm:"column:max_score"`
	MinScore           *float64       `gorm:"column:min_score"`
	AvgScore           *float64       `gorm:"column:avg_score"`
	ParticipatedCount  *int           `gorm:"column:participated_count"`
	ShortlistedTeams   datatypes.JSON `gorm:"column:shortlisted_teams"`
	EliminateAbsentees bool           `gorm:"column:eliminate_absentees;not null"`
	CreatedAt          time.Time      `gorm:"column:created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

func (roundRow) TableName() string { return "rounds" }

type teamScoreRow struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TeamKey        string         `gorm:"column:team_key;type:varchar(64);not null;uniqueIndex:idx_scores_team_round"`
	RoundID        int64          `gorm:"column:round_id;not null;uniqueIndex:idx_scores_team_round;index"`
	EventID        string         `gorm:"column:event_id;type:varchar(64)"`
	RawTotal       float64        `gorm:"column:raw_total_score;not null"`
	Score          float64        `gorm:"column:score;not null"`
	CriteriaScores datatypes.JSON `gorm:"column:criteria_scores"`
	IsNormalized   bool           `gorm:"column:is_normalized;not null"`
	IsPresent      bool           `gorm:"column:is_present;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (teamScoreRow) TableName() string { return "team_scores" }

type roundWeightRow struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RoundID    int64     `gorm:"column:round_id;not null;uniqueIndex"`
	Percentage float64   `gorm:"column:weight_percentage;not null"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (roundWeightRow) TableName() string { return "round_weights" }

// allModels lists the tables in migration order.
func allModels() []any {
	return []any{&teamRow{}, &roundRow{}, &teamScoreRow{}, &roundWeightRow{}}
}

func toTeamRow(t model.Team) teamRow {
	return teamRow{
		Key:           t.Key,
		Name:          t.Name,
		LeaderName:    t.LeaderName,
		LeaderEmail:   t.LeaderEmail,
		LeaderContact: t.LeaderContact,
		Status:        string(t.Status),
		CurrentRound:  t.CurrentRound,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (r teamRow) toModel() model.Team {
	return model.Team{
		Key:           r.Key,
		Name:          r.Name,
		LeaderName:    r.LeaderName,
		LeaderEmail:   r.LeaderEmail,
		LeaderContact: r.LeaderContact,
		Status:        model.TeamStatus(r.Status),
		CurrentRound:  r.CurrentRound,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func marshalJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func toRoundRow(r model.Round) (roundRow, error) {
	row := roundRow{
		ID:                 r.ID,
		EventID:            r.EventID,
		Number:             r.Number,
		Name:               r.Name,
		Club:               r.Club,
		IsFrozen:           r.IsFrozen,
		IsEvaluated:        r.IsEvaluated,
		EliminateAbsentees: r.EliminateAbsentees,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.Criteria != nil {
		b, err := marshalJSON(r.Criteria)
		if err != nil {
			return roundRow{}, fmt.Errorf("encode criteria: %w", err)
		}
		row.Criteria = b
	}
	if r.ShortlistedTeams != nil {
		b, err := marshalJSON(r.ShortlistedTeams)
		if err != nil {
			return roundRow{}, fmt.Errorf("encode shortlist: %w", err)
		}
		row.ShortlistedTeams = b
	}
	if r.Stats != nil {
		st := *r.Stats
		row.MaxScore, row.MinScore, row.AvgScore = &st.MaxScore, &st.MinScore, &st.AvgScore
		row.ParticipatedCount = &st.ParticipatedCount
	}
	return row, nil
}

func (r roundRow) toModel() (model.Round, error) {
	out := model.Round{
		ID:                 r.ID,
		EventID:            r.EventID,
		Number:             r.Number,
		Name:               r.Name,
		Club:               r.Club,
		IsFrozen:           r.IsFrozen,
		IsEvaluated:        r.IsEvaluated,
		EliminateAbsentees: r.EliminateAbsentees,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if len(r.Criteria) > 0 && string(r.Criteria) != "null" {
		if err := json.Unmarshal(r.Criteria, &out.Criteria); err != nil {
			return model.Round{}, fmt.Errorf("decode criteria of round %d: %w", r.ID, err)
		}
	}
	if len(r.ShortlistedTeams) > 0 && string(r.ShortlistedTeams) != "null" {
		if err := json.Unmarshal(r.ShortlistedTeams, &out.ShortlistedTeams); err != nil {
			return model.Round{}, fmt.Errorf("decode shortlist of round %d: %w", r.ID, err)
		}
	}
	if r.ParticipatedCount != nil {
		out.Stats = &model.RoundStats{ParticipatedCount: *r.ParticipatedCount}
		if r.MaxScore != nil {
			out.Stats.MaxScore = *r.MaxScore
		}
		if r.MinScore != nil {
			out.Stats.MinScore = *r.MinScore
		}
		if r.AvgScore != nil {
			out.Stats.AvgScore = *r.AvgScore
		}
	}
	return out, nil
}

func toScoreRow(s model.TeamScore) (teamScoreRow, error) {
	criteria := s.CriteriaScores
	if criteria == nil {
		criteria = map[string]float64{}
	}
	b, err := marshalJSON(criteria)
	if err != nil {
		return teamScoreRow{}, fmt.Errorf("encode criteria scores: %w", err)
	}
	return teamScoreRow{
		ID:             s.ID,
		TeamKey:        s.TeamKey,
		RoundID:        s.RoundID,
		EventID:        s.EventID,
		RawTotal:       s.RawTotal,
		Score:          s.Score,
		CriteriaScores: b,
		IsNormalized:   s.IsNormalized,
		IsPresent:      s.IsPresent,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

func (r teamScoreRow) toModel() (model.TeamScore, error) {
	out := model.TeamScore{
		ID:             r.ID,
		TeamKey:        r.TeamKey,
		RoundID:        r.RoundID,
		EventID:        r.EventID,
		RawTotal:       r.RawTotal,
		Score:          r.Score,
		CriteriaScores: map[string]float64{},
		IsNormalized:   r.IsNormalized,
		IsPresent:      r.IsPresent,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if len(r.CriteriaScores) > 0 && string(r.CriteriaScores) != "null" {
		if err := json.Unmarshal(r.CriteriaScores, &out.CriteriaScores); err != nil {
			return model.TeamScore{}, fmt.Errorf("decode criteria scores %d: %w", r.ID, err)
		}
	}
	return out, nil
}
