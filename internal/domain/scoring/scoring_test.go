package scoring_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalize(t *testing.T) {
	criteria := []model.Criterion{{Name: "design", MaxPoints: 40}, {Name: "pitch", MaxPoints: 60}}

	Convey("Given criteria worth 100 points", t, func() {
		Convey("A partial submission scales against the maximum", func() {
			res, err := scoring.Normalize(criteria, map[string]float64{"design": 30, "pitch": 45})
			So(err, ShouldBeNil)
			So(res.RawTotal, ShouldEqual, 75)
			So(res.Score, ShouldAlmostEqual, 75, 1e-9)
			So(res.Normalized, ShouldBeTrue)
		})

		Convey("Overshooting the maximum caps at 100", func() {
			res, err := scoring.Normalize(criteria, map[string]float64{"design": 80, "pitch": 60})
			So(err, ShouldBeNil)
			So(res.RawTotal, ShouldEqual, 140)
			So(res.Score, ShouldEqual, 100)
		})

		Convey("Negative points are rejected", func() {
			_, err := scoring.Normalize(criteria, map[string]float64{"design": -1})
			So(errors.Is(err, scoring.ErrNegativePoints), ShouldBeTrue)
		})

		Convey("NaN and infinite points are rejected", func() {
			_, err := scoring.Normalize(criteria, map[string]float64{"design": math.NaN()})
			So(errors.Is(err, scoring.ErrNonFinite), ShouldBeTrue)
			_, err = scoring.Normalize(criteria, map[string]float64{"design": math.Inf(1)})
			So(errors.Is(err, scoring.ErrNonFinite), ShouldBeTrue)
		})

		Convey("Finite points whose total overflows are rejected", func() {
			_, err := scoring.Normalize(criteria, map[string]float64{"design": math.MaxFloat64, "pitch": math.MaxFloat64})
			So(errors.Is(err, scoring.ErrNonFinite), ShouldBeTrue)
		})
	})

	Convey("Given a non-round maximum", t, func() {
		odd := []model.Criterion{{Name: "a", MaxPoints: 30}}
		res, err := scoring.Normalize(odd, map[string]float64{"a": 20})
		So(err, ShouldBeNil)
		So(res.Score, ShouldAlmostEqual, 66.6667, 1e-4)
	})

	Convey("Given no usable criteria", t, func() {
		Convey("The raw total is used and capped", func() {
			res, err := scoring.Normalize(nil, map[string]float64{"x": 42})
			So(err, ShouldBeNil)
			So(res.Score, ShouldEqual, 42)
			So(res.Normalized, ShouldBeFalse)

			res, err = scoring.Normalize([]model.Criterion{{Name: "z", MaxPoints: 0}}, map[string]float64{"x": 150})
			So(err, ShouldBeNil)
			So(res.Score, ShouldEqual, 100)
			So(res.Normalized, ShouldBeFalse)
		})

		Convey("An empty submission scores zero", func() {
			res, err := scoring.Normalize(nil, nil)
			So(err, ShouldBeNil)
			So(res, ShouldResemble, scoring.Result{})
		})
	})

	Convey("Absent is all zeros", t, func() {
		So(scoring.Absent(), ShouldResemble, scoring.Result{})
	})
}

func TestNormalizeBounds(t *testing.T) {
	Convey("For random criteria and submissions the score stays in [0,100]", t, func() {
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test input
		for i := 0; i < 2000; i++ {
			n := rng.Intn(4)
			criteria := make([]model.Criterion, n)
			var possible float64
			for j := range criteria {
				criteria[j] = model.Criterion{Name: string(rune('a' + j)), MaxPoints: float64(rng.Intn(50))}
				possible += criteria[j].MaxPoints
			}
			submitted := map[string]float64{}
			for j, m := 0, rng.Intn(5); j < m; j++ {
				submitted[string(rune('a'+j))] = rng.Float64() * 80
			}

			res, err := scoring.Normalize(criteria, submitted)
			So(err, ShouldBeNil)
			So(res.Score, ShouldBeBetweenOrEqual, 0, 100)

			limit := possible
			if possible <= 0 {
				limit = 100
			}
			So(res.Score == 100, ShouldEqual, res.RawTotal >= limit)
		}
	})
}
