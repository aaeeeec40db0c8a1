package lifecycle_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/shortlist/internal/domain/lifecycle"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func openRound() model.Round {
	return model.Round{
		ID:       1,
		EventID:  "hackathon",
		Number:   1,
		Criteria: []model.Criterion{{Name: "design", MaxPoints: 50}, {Name: "code", MaxPoints: 50}},
	}
}

func activeTeam(key string) model.Team {
	return model.Team{Key: key, Name: key, Status: model.StatusActive}
}

func TestState(t *testing.T) {
	Convey("StateOf follows the flags", t, func() {
		So(lifecycle.StateOf(model.Round{}), ShouldEqual, lifecycle.StateOpen)
		So(lifecycle.StateOf(model.Round{IsFrozen: true}), ShouldEqual, lifecycle.StateFrozen)
		So(lifecycle.StateOf(model.Round{IsFrozen: true, IsEvaluated: true}), ShouldEqual, lifecycle.StateEvaluated)
		So(lifecycle.StateFrozen.String(), ShouldEqual, "FROZEN")
	})
}

func TestSetCriteria(t *testing.T) {
	Convey("Given an open round", t, func() {
		r := openRound()

		Convey("Criteria are overwritten wholesale", func() {
			err := lifecycle.SetCriteria(&r, []model.Criterion{{Name: "pitch", MaxPoints: 10}}, now)
			So(err, ShouldBeNil)
			So(r.Criteria, ShouldResemble, []model.Criterion{{Name: "pitch", MaxPoints: 10}})
			So(r.UpdatedAt, ShouldEqual, now)
		})

		Convey("Invalid criteria are rejected without change", func() {
			err := lifecycle.SetCriteria(&r, []model.Criterion{{Name: "", MaxPoints: 10}}, now)
			So(errors.Is(err, types.ErrInvalidArgument), ShouldBeTrue)

			err = lifecycle.SetCriteria(&r, []model.Criterion{{Name: "a", MaxPoints: 0}}, now)
			So(errors.Is(err, types.ErrInvalidArgument), ShouldBeTrue)

			err = lifecycle.SetCriteria(&r, []model.Criterion{{Name: "a", MaxPoints: 1}, {Name: "a", MaxPoints: 2}}, now)
			So(errors.Is(err, lifecycle.ErrDuplicateCriteria), ShouldBeTrue)
			So(r.Criteria, ShouldResemble, openRound().Criteria)
		})

		Convey("Maxima whose sum overflows are rejected", func() {
			err := lifecycle.SetCriteria(&r, []model.Criterion{
				{Name: "a", MaxPoints: math.MaxFloat64},
				{Name: "b", MaxPoints: math.MaxFloat64},
			}, now)
			So(errors.Is(err, types.ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(err, lifecycle.ErrInvalidCriteria), ShouldBeTrue)
			So(r.Criteria, ShouldResemble, openRound().Criteria)
		})

		Convey("A frozen round rejects criteria", func() {
			r.IsFrozen = true
			err := lifecycle.SetCriteria(&r, []model.Criterion{{Name: "x", MaxPoints: 1}}, now)
			So(errors.Is(err, types.ErrInvalidState), ShouldBeTrue)
			So(errors.Is(err, lifecycle.ErrRoundFrozen), ShouldBeTrue)
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given an open round and an active team", t, func() {
		r := openRound()
		team := activeTeam("t1")

		Convey("A present team is normalized", func() {
			out, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{
				CriteriaScores: map[string]float64{"design": 40, "code": 35},
				Present:        true,
			}, now)
			So(err, ShouldBeNil)
			So(out.Eliminate, ShouldBeFalse)
			So(out.Score.Score, ShouldAlmostEqual, 75, 1e-9)
			So(out.Score.RawTotal, ShouldEqual, 75)
			So(out.Score.IsNormalized, ShouldBeTrue)
			So(out.Score.IsPresent, ShouldBeTrue)
			So(out.Score.EventID, ShouldEqual, "hackathon")
		})

		Convey("An absent team is zeroed whatever was submitted", func() {
			out, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{
				CriteriaScores:     map[string]float64{"design": 50, "code": 50},
				Present:            false,
				EliminateAbsentees: true,
			}, now)
			So(err, ShouldBeNil)
			So(out.Score.Score, ShouldEqual, 0)
			So(out.Score.RawTotal, ShouldEqual, 0)
			So(out.Score.CriteriaScores, ShouldBeEmpty)
			So(out.Score.IsNormalized, ShouldBeFalse)
			So(out.Eliminate, ShouldBeTrue)
		})

		Convey("Absent without the policy does not eliminate", func() {
			out, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{Present: false}, now)
			So(err, ShouldBeNil)
			So(out.Eliminate, ShouldBeFalse)
		})

		Convey("Re-evaluation keeps the row identity", func() {
			prev := &model.TeamScore{ID: 9, CreatedAt: now.Add(-time.Hour)}
			out, err := lifecycle.Evaluate(r, team, prev, lifecycle.Submission{
				CriteriaScores: map[string]float64{"design": 10},
				Present:        true,
			}, now)
			So(err, ShouldBeNil)
			So(out.Score.ID, ShouldEqual, 9)
			So(out.Score.CreatedAt, ShouldEqual, now.Add(-time.Hour))
			So(out.Score.UpdatedAt, ShouldEqual, now)
		})

		Convey("Negative points are invalid arguments", func() {
			_, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{
				CriteriaScores: map[string]float64{"design": -5},
				Present:        true,
			}, now)
			So(errors.Is(err, types.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("Points whose total overflows are invalid arguments", func() {
			_, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{
				CriteriaScores: map[string]float64{"design": math.MaxFloat64, "code": math.MaxFloat64},
				Present:        true,
			}, now)
			So(errors.Is(err, types.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("An eliminated team cannot be evaluated", func() {
			team.Status = model.StatusEliminated
			_, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{Present: true}, now)
			So(errors.Is(err, lifecycle.ErrTeamNotActive), ShouldBeTrue)
			So(types.KindOf(err), ShouldEqual, types.ErrInvalidState)
		})

		Convey("A frozen round cannot be evaluated", func() {
			r.IsFrozen = true
			_, err := lifecycle.Evaluate(r, team, nil, lifecycle.Submission{Present: true}, now)
			So(errors.Is(err, lifecycle.ErrRoundFrozen), ShouldBeTrue)
		})
	})
}

func TestFreezeLifecycle(t *testing.T) {
	Convey("Given an open round", t, func() {
		r := openRound()
		scores := []model.TeamScore{
			{TeamKey: "a", Score: 80},
			{TeamKey: "b", Score: 0, IsPresent: false},
			{TeamKey: "c", Score: 60},
		}

		Convey("Freezing without evaluations fails", func() {
			_, err := lifecycle.Freeze(&r, nil, now)
			So(errors.Is(err, lifecycle.ErrNoEvaluations), ShouldBeTrue)
			So(r.IsFrozen, ShouldBeFalse)
		})

		Convey("Freezing computes statistics over positive scores", func() {
			stats, err := lifecycle.Freeze(&r, scores, now)
			So(err, ShouldBeNil)
			So(stats, ShouldResemble, model.RoundStats{MaxScore: 80, MinScore: 60, AvgScore: 70, ParticipatedCount: 3})
			So(r.IsFrozen, ShouldBeTrue)
			So(*r.Stats, ShouldResemble, stats)

			Convey("A second freeze is rejected", func() {
				_, err := lifecycle.Freeze(&r, scores, now)
				So(errors.Is(err, lifecycle.ErrRoundFrozen), ShouldBeTrue)
			})

			Convey("Unfreeze reopens and keeps cached stats", func() {
				So(lifecycle.Unfreeze(&r, now), ShouldBeNil)
				So(r.IsFrozen, ShouldBeFalse)
				So(r.Stats, ShouldNotBeNil)
			})

			Convey("Evaluated is terminal", func() {
				So(lifecycle.MarkEvaluated(&r, now), ShouldBeNil)
				err := lifecycle.Unfreeze(&r, now)
				So(errors.Is(err, lifecycle.ErrRoundEvaluated), ShouldBeTrue)
				So(r.IsFrozen, ShouldBeTrue)
				So(errors.Is(lifecycle.MarkEvaluated(&r, now), lifecycle.ErrRoundEvaluated), ShouldBeTrue)
				So(errors.Is(lifecycle.CheckDeletable(r), types.ErrInvalidState), ShouldBeTrue)
			})
		})

		Convey("All-zero scores give zero statistics", func() {
			stats := lifecycle.ComputeStats([]model.TeamScore{{Score: 0}, {Score: 0}})
			So(stats, ShouldResemble, model.RoundStats{ParticipatedCount: 2})
		})

		Convey("Open rounds cannot be unfrozen or evaluated", func() {
			So(errors.Is(lifecycle.Unfreeze(&r, now), lifecycle.ErrRoundNotFrozen), ShouldBeTrue)
			So(errors.Is(lifecycle.MarkEvaluated(&r, now), lifecycle.ErrRoundNotFrozen), ShouldBeTrue)
			So(errors.Is(lifecycle.RequireFrozen("x", r), lifecycle.ErrRoundNotFrozen), ShouldBeTrue)
			So(lifecycle.CheckDeletable(r), ShouldBeNil)
		})
	})
}

func TestAbsentees(t *testing.T) {
	Convey("Given teams with mixed presence in a round", t, func() {
		teams := map[string]model.Team{
			"absent-out": {Key: "absent-out", Status: model.StatusEliminated},
			"absent-in":  {Key: "absent-in", Status: model.StatusActive},
			"cut":        {Key: "cut", Status: model.StatusEliminated},
			"ok":         {Key: "ok", Status: model.StatusActive},
		}
		scores := []model.TeamScore{
			{TeamKey: "absent-out", IsPresent: false},
			{TeamKey: "absent-in", IsPresent: false},
			{TeamKey: "cut", IsPresent: true, Score: 20},
			{TeamKey: "ok", IsPresent: true, Score: 90},
		}

		Convey("The toggle only touches absentees", func() {
			So(lifecycle.AbsentToReactivate(teams, scores), ShouldResemble, []string{"absent-out"})
		})

		Convey("Reconcile eliminates absentees still in", func() {
			So(lifecycle.AbsentToEliminate(teams, scores), ShouldResemble, []string{"absent-in"})
		})

		Convey("Reactivating participants includes score-based cuts", func() {
			So(lifecycle.ParticipantsToReactivate(teams, scores), ShouldResemble, []string{"absent-out", "cut"})
		})
	})
}
