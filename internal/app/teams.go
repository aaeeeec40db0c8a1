package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/shortlist/internal/adapters/repository"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/pkg/logger"
)

// TeamInput registers a team.
type TeamInput struct {
	Key           string `json:"team_id" validate:"required,max=64"`
	Name          string `json:"team_name" validate:"required,max=200"`
	LeaderName    string `json:"leader_name" validate:"max=200"`
	LeaderEmail   string `json:"leader_email" validate:"omitempty,email"`
	LeaderContact string `json:"leader_contact" validate:"max=64"`
}

// TeamView is a team with its current overall score; OverallScore is nil
// while no round is in scope.
type TeamView struct {
	model.Team
	OverallScore *float64 `json:"overall_score"`
}

// CreateTeam registers an active team at round 1.
func (s *Service) CreateTeam(ctx context.Context, c policy.Caller, in TeamInput) (team model.Team, err error) {
	const op = "service.create_team"
	ctx, span := s.begin(ctx, op, attribute.String("team.id", in.Key))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionManageTeams, nil); err != nil {
		return model.Team{}, err
	}
	in.Key = strings.TrimSpace(in.Key)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return model.Team{}, invalidArgument(op, "team: %v", err)
	}

	now := s.clock()
	team = model.Team{
		Key:           in.Key,
		Name:          in.Name,
		LeaderName:    in.LeaderName,
		LeaderEmail:   in.LeaderEmail,
		LeaderContact: in.LeaderContact,
		Status:        model.StatusActive,
		CurrentRound:  1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateTeam(ctx, &team)
	})
	if err != nil {
		return model.Team{}, err
	}
	s.logger.Info(ctx, "team created", logger.String("team_id", team.Key))
	return team, nil
}

// ListTeams returns teams in registration order with their overall score.
// An empty status lists every team.
func (s *Service) ListTeams(ctx context.Context, c policy.Caller, status model.TeamStatus) (out []TeamView, err error) {
	const op = "service.list_teams"
	ctx, span := s.begin(ctx, op, attribute.String("team.status", string(status)))
	defer func() { err = s.finish(ctx, span, op, err) }()

	if err := s.policy.Authorize(c, policy.ActionView, nil); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, invalidArgument(op, "unknown team status %q", status)
	}

	var snap leaderboard.Snapshot
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) (err error) {
		snap, err = s.loadSnapshot(ctx, tx, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	overall := make(map[string]float64, len(snap.Teams))
	for _, st := range leaderboard.Compute(snap, leaderboard.PopulationAll) {
		overall[st.TeamKey] = st.Overall
	}
	out = make([]TeamView, 0, len(snap.Teams))
	for _, t := range snap.Teams {
		if status != "" && t.Status != status {
			continue
		}
		v := TeamView{Team: t}
		if o, ok := overall[t.Key]; ok {
			v.OverallScore = &o
		}
		out = append(out, v)
	}
	return out, nil
}
