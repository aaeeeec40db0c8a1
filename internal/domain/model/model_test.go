package model_test

import (
	"testing"

	"github.com/okian/shortlist/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRoundClone(t *testing.T) {
	Convey("Given a frozen round with criteria and a shortlist", t, func() {
		r := model.Round{
			ID:               1,
			Criteria:         []model.Criterion{{Name: "design", MaxPoints: 40}, {Name: "pitch", MaxPoints: 60}},
			IsFrozen:         true,
			Stats:            &model.RoundStats{MaxScore: 90},
			ShortlistedTeams: []string{"t1"},
		}

		Convey("Clone does not share mutable state", func() {
			c := r.Clone()
			c.Criteria[0].Name = "changed"
			c.Stats.MaxScore = 1
			c.ShortlistedTeams[0] = "t9"

			So(r.Criteria[0].Name, ShouldEqual, "design")
			So(r.Stats.MaxScore, ShouldEqual, 90)
			So(r.ShortlistedTeams[0], ShouldEqual, "t1")
		})

		Convey("MaxPossible sums the criteria", func() {
			So(model.MaxPossible(r.Criteria), ShouldEqual, 100)
			So(model.MaxPossible(nil), ShouldEqual, 0)
		})
	})
}

func TestTeamScoreClone(t *testing.T) {
	Convey("Cloning a score without criteria yields an empty map", t, func() {
		s := model.TeamScore{TeamKey: "t1"}.Clone()
		So(s.CriteriaScores, ShouldNotBeNil)
		So(s.CriteriaScores, ShouldBeEmpty)

		orig := model.TeamScore{CriteriaScores: map[string]float64{"a": 1}}
		c := orig.Clone()
		c.CriteriaScores["a"] = 5
		So(orig.CriteriaScores["a"], ShouldEqual, 1)
	})
}

func TestWeightsAndStatus(t *testing.T) {
	Convey("Weight bounds and factors", t, func() {
		So(model.ValidWeight(25), ShouldBeTrue)
		So(model.ValidWeight(200), ShouldBeTrue)
		So(model.ValidWeight(24.99), ShouldBeFalse)
		So(model.ValidWeight(200.01), ShouldBeFalse)
		So(model.RoundWeight{Percentage: 50}.Factor(), ShouldEqual, 0.5)
	})

	Convey("Team status helpers", t, func() {
		So(model.StatusActive.Valid(), ShouldBeTrue)
		So(model.TeamStatus("GONE").Valid(), ShouldBeFalse)
		So(model.Team{Status: model.StatusActive}.Active(), ShouldBeTrue)
		So(model.Team{Status: model.StatusEliminated}.Active(), ShouldBeFalse)
	})
}
