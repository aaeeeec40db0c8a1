package service_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/shortlist"
)

func TestShortlist(t *testing.T) {
	Convey("Given a frozen round scored 90, 70 and 50", t, func() {
		svc := newService()
		ctx := context.Background()
		mustTeams(t, svc, "A", "B", "C")
		r := mustRound(t, svc, 1, false)
		mustScore(t, svc, r.ID, "A", 90)
		mustScore(t, svc, r.ID, "B", 70)
		mustScore(t, svc, r.ID, "C", 50)
		mustFreeze(t, svc, r.ID)

		Convey("When the top 2 are shortlisted", func() {
			res, err := svc.Shortlist(ctx, admin, r.ID, "top_k", 2)
			So(err, ShouldBeNil)

			Convey("Then the decision should split the teams", func() {
				So(res.Mode, ShouldEqual, shortlist.ModeTopK)
				So(res.Shortlisted, ShouldResemble, []string{"A", "B"})
				So(res.Eliminated, ShouldResemble, []string{"C"})
				So(res.EliminatedCount, ShouldEqual, 1)
				So(res.EvaluatedRounds, ShouldResemble, []int64{r.ID})
			})

			Convey("Then the statuses and progress should be committed", func() {
				So(statusOf(t, svc, "A"), ShouldEqual, model.StatusActive)
				So(statusOf(t, svc, "C"), ShouldEqual, model.StatusEliminated)
				teams, err := svc.ListTeams(ctx, admin, model.StatusActive)
				So(err, ShouldBeNil)
				for _, tv := range teams {
					So(tv.CurrentRound, ShouldEqual, 2)
				}
			})

			Convey("Then the round should be evaluated with its shortlist", func() {
				got, err := svc.GetRound(ctx, admin, r.ID)
				So(err, ShouldBeNil)
				So(got.IsEvaluated, ShouldBeTrue)
				So(got.IsFrozen, ShouldBeTrue)
				So(got.ShortlistedTeams, ShouldResemble, []string{"A", "B"})
			})

			Convey("Then the evaluated round should be terminal", func() {
				_, err := svc.Shortlist(ctx, admin, r.ID, "top_k", 1)
				So(kindOf(err), ShouldEqual, errInvalidState)
				So(kindOf(svc.UnfreezeRound(ctx, admin, r.ID)), ShouldEqual, errInvalidState)
				_, err = svc.FreezeRound(ctx, admin, r.ID)
				So(kindOf(err), ShouldEqual, errInvalidState)
			})
		})

		Convey("When teams at or above 65 are shortlisted", func() {
			res, err := svc.Shortlist(ctx, admin, r.ID, "THRESHOLD", 65)

			Convey("Then only the bottom team should be eliminated", func() {
				So(err, ShouldBeNil)
				So(res.Shortlisted, ShouldResemble, []string{"A", "B"})
				So(res.Eliminated, ShouldResemble, []string{"C"})
			})
		})

		Convey("When the threshold keeps everyone", func() {
			res, err := svc.Shortlist(ctx, admin, r.ID, "threshold", 0)
			So(err, ShouldBeNil)
			So(res.Eliminated, ShouldBeEmpty)
			So(res.EliminatedCount, ShouldEqual, 0)
		})

		Convey("When the rule is invalid", func() {
			for _, tc := range []struct {
				mode  string
				value float64
			}{
				{"top_k", 0},
				{"top_k", 4},
				{"top_k", 1.5},
				{"threshold", 101},
				{"threshold", -1},
				{"lottery", 1},
			} {
				_, err := svc.Shortlist(ctx, admin, r.ID, tc.mode, tc.value)
				So(kindOf(err), ShouldEqual, errInvalidArgument)
			}

			Convey("Then nothing should have changed", func() {
				got, err := svc.GetRound(ctx, admin, r.ID)
				So(err, ShouldBeNil)
				So(got.IsEvaluated, ShouldBeFalse)
				So(got.ShortlistedTeams, ShouldBeEmpty)
				So(statusOf(t, svc, "C"), ShouldEqual, model.StatusActive)
			})
		})

		Convey("When the round's club shortlists", func() {
			_, err := svc.Shortlist(ctx, judge, r.ID, "top_k", 1)
			So(kindOf(err), ShouldEqual, errPermissionDenied)
		})
	})

	Convey("Given an open round", t, func() {
		svc := newService()
		mustTeams(t, svc, "A")
		r := mustRound(t, svc, 1, false)
		mustScore(t, svc, r.ID, "A", 10)

		Convey("Then shortlisting should require a freeze", func() {
			_, err := svc.Shortlist(context.Background(), admin, r.ID, "top_k", 1)
			So(kindOf(err), ShouldEqual, errInvalidState)
		})
	})

	Convey("Given two frozen rounds", t, func() {
		svc := newService()
		ctx := context.Background()
		mustTeams(t, svc, "A", "B")
		r1 := mustRound(t, svc, 1, false)
		r2 := mustRound(t, svc, 2, false)
		mustScore(t, svc, r1.ID, "A", 40)
		mustScore(t, svc, r1.ID, "B", 80)
		mustScore(t, svc, r2.ID, "A", 100)
		mustScore(t, svc, r2.ID, "B", 50)
		mustFreeze(t, svc, r1.ID)
		mustFreeze(t, svc, r2.ID)

		Convey("When the second round is shortlisted", func() {
			res, err := svc.Shortlist(ctx, admin, r2.ID, "top_k", 1)
			So(err, ShouldBeNil)

			Convey("Then the decision should use the overall score", func() {
				So(res.Shortlisted, ShouldResemble, []string{"A"})
			})

			Convey("Then every frozen round should become evaluated", func() {
				So(res.EvaluatedRounds, ShouldHaveLength, 2)
				first, err := svc.GetRound(ctx, admin, r1.ID)
				So(err, ShouldBeNil)
				So(first.IsEvaluated, ShouldBeTrue)
				So(first.ShortlistedTeams, ShouldBeEmpty)
			})
		})
	})
}

func TestAbsentees(t *testing.T) {
	Convey("Given a frozen round with an absent team kept active", t, func() {
		svc := newService()
		ctx := context.Background()
		mustTeams(t, svc, "A", "B")
		r := mustRound(t, svc, 1, false)
		mustScore(t, svc, r.ID, "A", 60)
		mustAbsent(t, svc, r.ID, "B")
		mustFreeze(t, svc, r.ID)
		So(statusOf(t, svc, "B"), ShouldEqual, model.StatusActive)

		Convey("When absentees are eliminated in bulk", func() {
			res, err := svc.ReconcileAbsentees(ctx, admin, r.ID, true)

			Convey("Then only the absent team should be eliminated", func() {
				So(err, ShouldBeNil)
				So(res.EliminatedCount, ShouldEqual, 1)
				So(statusOf(t, svc, "B"), ShouldEqual, model.StatusEliminated)
				So(statusOf(t, svc, "A"), ShouldEqual, model.StatusActive)
			})

			Convey("Then running it again should change nothing", func() {
				res, err := svc.ReconcileAbsentees(ctx, admin, r.ID, true)
				So(err, ShouldBeNil)
				So(res.EliminatedCount, ShouldEqual, 0)
			})

			Convey("And reconciling with elimination off should reactivate them", func() {
				res, err := svc.ReconcileAbsentees(ctx, admin, r.ID, false)
				So(err, ShouldBeNil)
				So(res.ReactivatedCount, ShouldEqual, 1)
				So(statusOf(t, svc, "B"), ShouldEqual, model.StatusActive)
			})
		})

		Convey("When a club caller reconciles", func() {
			_, err := svc.ReconcileAbsentees(ctx, judge, r.ID, true)
			So(kindOf(err), ShouldEqual, errPermissionDenied)
			_, err = svc.ReactivateParticipants(ctx, judge, r.ID)
			So(kindOf(err), ShouldEqual, errPermissionDenied)
		})
	})

	Convey("Given eliminations from a shortlist", t, func() {
		svc := newService()
		ctx := context.Background()
		mustTeams(t, svc, "A", "B")
		r := mustRound(t, svc, 1, false)
		mustScore(t, svc, r.ID, "A", 60)
		mustScore(t, svc, r.ID, "B", 30)
		mustFreeze(t, svc, r.ID)
		_, err := svc.Shortlist(ctx, admin, r.ID, "top_k", 1)
		So(err, ShouldBeNil)

		Convey("Then reactivating participants should undo them", func() {
			n, err := svc.ReactivateParticipants(ctx, admin, r.ID)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			So(statusOf(t, svc, "B"), ShouldEqual, model.StatusActive)
		})

		Convey("Then toggling the policy off should keep them eliminated", func() {
			res, err := svc.ToggleEliminationPolicy(ctx, admin, r.ID, false)
			So(err, ShouldBeNil)
			So(res.ReactivatedCount, ShouldEqual, 0)
			So(statusOf(t, svc, "B"), ShouldEqual, model.StatusEliminated)
		})
	})

	Convey("Given an open round", t, func() {
		svc := newService()
		ctx := context.Background()
		mustTeams(t, svc, "A", "B", "C")
		r := mustRound(t, svc, 1, false)
		mustAbsent(t, svc, r.ID, "A")

		Convey("Then bulk reconciliation should require a freeze", func() {
			_, err := svc.ReconcileAbsentees(ctx, admin, r.ID, true)
			So(kindOf(err), ShouldEqual, errInvalidState)
		})

		Convey("When the policy is switched on", func() {
			res, err := svc.ToggleEliminationPolicy(ctx, admin, r.ID, true)
			So(err, ShouldBeNil)
			So(res.EliminateAbsentees, ShouldBeTrue)

			Convey("Then it should be stored and apply to new absentees only", func() {
				got, err := svc.GetRound(ctx, admin, r.ID)
				So(err, ShouldBeNil)
				So(got.EliminateAbsentees, ShouldBeTrue)
				So(statusOf(t, svc, "A"), ShouldEqual, model.StatusActive)
				mustAbsent(t, svc, r.ID, "C")
				So(statusOf(t, svc, "C"), ShouldEqual, model.StatusEliminated)
			})

			Convey("And switching it off should reactivate the eliminated absentee", func() {
				mustAbsent(t, svc, r.ID, "C")
				res, err := svc.ToggleEliminationPolicy(ctx, admin, r.ID, false)
				So(err, ShouldBeNil)
				So(res.ReactivatedCount, ShouldEqual, 1)
				So(statusOf(t, svc, "C"), ShouldEqual, model.StatusActive)
			})
		})

		Convey("When the round is unknown", func() {
			_, err := svc.ToggleEliminationPolicy(ctx, admin, 999, true)
			So(kindOf(err), ShouldEqual, errNotFound)
		})
	})
}
