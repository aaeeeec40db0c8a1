// Package scoring turns a judge's per-criterion points into a canonical 0-100 score.
package scoring

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/okian/shortlist/internal/domain/model"
)

// MaxScore is the upper bound of every normalized score.
const MaxScore = 100.0

// belowMax is the largest float strictly below MaxScore.
var belowMax = math.Nextafter(MaxScore, 0)

// Input validation errors.
var (
	ErrNegativePoints = errors.New("criterion points must not be negative")
	ErrNonFinite      = errors.New("criterion points must be finite")
)

// Result is the outcome of normalizing one submission.
type Result struct {
	RawTotal   float64
	Score      float64
	Normalized bool
}

// Normalize sums the submitted points and scales the total against the criteria maxima.
// Without criteria, or when the maxima sum to zero, the raw total is capped at MaxScore.
func Normalize(criteria []model.Criterion, submitted map[string]float64) (Result, error) {
	// fixed summation order keeps the total reproducible
	names := slices.Sorted(maps.Keys(submitted))

	var raw float64
	for _, name := range names {
		p := submitted[name]
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Result{}, fmt.Errorf("%w: %q", ErrNonFinite, name)
		}
		if p < 0 {
			return Result{}, fmt.Errorf("%w: %q=%g", ErrNegativePoints, name, p)
		}
		raw += p
	}
	if math.IsInf(raw, 0) {
		return Result{}, fmt.Errorf("%w: total overflows", ErrNonFinite)
	}

	possible := model.MaxPossible(criteria)
	if possible <= 0 {
		return Result{RawTotal: raw, Score: math.Min(MaxScore, raw)}, nil
	}

	if raw >= possible {
		return Result{RawTotal: raw, Score: MaxScore, Normalized: true}, nil
	}
	// raw < possible must never round up to a full score
	score := math.Min(belowMax, raw/possible*MaxScore)
	return Result{RawTotal: raw, Score: score, Normalized: true}, nil
}

// Absent is the forced-zero result recorded for a team that did not show up.
func Absent() Result {
	return Result{}
}
