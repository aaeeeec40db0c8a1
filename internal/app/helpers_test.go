package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/internal/domain/types"
	"github.com/okian/shortlist/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	admin = policy.System
	judge = policy.Caller{Role: policy.RoleClub, Club: "robotics"}
	other = policy.Caller{Role: policy.RoleClub, Club: "chess"}
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithClock(func() time.Time { return fixedNow }),
		service.WithWorkerCount(1),
	}, opts...)
	return service.New(opts...)
}

// hundred is a single criterion worth 100 points, so points equal the score.
var hundred = []model.Criterion{{Name: "overall", MaxPoints: 100}}

func mustTeams(t *testing.T, s *service.Service, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if _, err := s.CreateTeam(context.Background(), admin, service.TeamInput{Key: k, Name: "Team " + k}); err != nil {
			t.Fatalf("create team %s: %v", k, err)
		}
	}
}

func mustRound(t *testing.T, s *service.Service, number int, eliminate bool) model.Round {
	t.Helper()
	r, err := s.CreateRound(context.Background(), admin, service.RoundInput{
		EventID:            "hackathon",
		Number:             number,
		Name:               "Round",
		Club:               "robotics",
		Criteria:           hundred,
		EliminateAbsentees: &eliminate,
	})
	if err != nil {
		t.Fatalf("create round %d: %v", number, err)
	}
	return r
}

func mustScore(t *testing.T, s *service.Service, roundID int64, team string, points float64) model.TeamScore {
	t.Helper()
	sc, err := s.EvaluateTeam(context.Background(), admin, service.EvaluationInput{
		RoundID:        roundID,
		TeamKey:        team,
		CriteriaScores: map[string]float64{"overall": points},
	})
	if err != nil {
		t.Fatalf("evaluate %s in %d: %v", team, roundID, err)
	}
	return sc
}

func mustAbsent(t *testing.T, s *service.Service, roundID int64, team string) {
	t.Helper()
	absent := false
	if _, err := s.EvaluateTeam(context.Background(), admin, service.EvaluationInput{
		RoundID: roundID,
		TeamKey: team,
		Present: &absent,
	}); err != nil {
		t.Fatalf("mark %s absent in %d: %v", team, roundID, err)
	}
}

func mustFreeze(t *testing.T, s *service.Service, roundID int64) {
	t.Helper()
	if _, err := s.FreezeRound(context.Background(), admin, roundID); err != nil {
		t.Fatalf("freeze %d: %v", roundID, err)
	}
}

func statusOf(t *testing.T, s *service.Service, key string) model.TeamStatus {
	t.Helper()
	teams, err := s.ListTeams(context.Background(), admin, "")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	for _, tv := range teams {
		if tv.Key == key {
			return tv.Status
		}
	}
	t.Fatalf("team %s not found", key)
	return ""
}

func kindOf(err error) error { return types.KindOf(err) }

var (
	errNotFound         = types.ErrNotFound
	errInvalidState     = types.ErrInvalidState
	errInvalidArgument  = types.ErrInvalidArgument
	errPermissionDenied = types.ErrPermissionDenied
	errUnavailable      = types.ErrUnavailable
)
