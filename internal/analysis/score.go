package analysis

import "math"

// Score weights.
const (
	WeightCompleteness = 0.35
	WeightUniqueness   = 0.25
	WeightValidity     = 0.20
	WeightConsistency  = 0.20
)

// ScoreBreakdown holds the four components of the quality score, each in [0,1].
type ScoreBreakdown struct {
	Completeness float64 `json:"completeness"`
	Uniqueness   float64 `json:"uniqueness"`
	Validity     float64 `json:"validity"`
	Consistency  float64 `json:"consistency"`
	Score        float64 `json:"score"`
}

// Score returns the 0..100 data quality score of a profile, rounded to two
// decimals. A profile without columns scores 0.
func Score(r *Report) float64 { return Breakdown(r).Score }

// Breakdown computes the score together with its components.
//
// Completeness is the mean non-null share, uniqueness the mean distinct share.
// Validity is the share of numeric columns holding any value (1 when there are
// none); consistency is the same for the remaining columns.
func Breakdown(r *Report) ScoreBreakdown {
	if r == nil || len(r.Cols) == 0 {
		return ScoreBreakdown{}
	}
	var b ScoreBreakdown
	var numeric, numericFilled, other, otherFilled int
	for _, c := range r.Cols {
		b.Completeness += 1 - c.NullPct/100
		b.Uniqueness += c.DistinctPct / 100
		if c.Numeric() {
			numeric++
			if c.NonNull > 0 {
				numericFilled++
			}
		} else {
			other++
			if c.NonNull > 0 {
				otherFilled++
			}
		}
	}
	n := float64(len(r.Cols))
	b.Completeness /= n
	b.Uniqueness /= n
	b.Validity, b.Consistency = 1, 1
	if numeric > 0 {
		b.Validity = float64(numericFilled) / float64(numeric)
	}
	if other > 0 {
		b.Consistency = float64(otherFilled) / float64(other)
	}
	s := WeightCompleteness*b.Completeness + WeightUniqueness*b.Uniqueness +
		WeightValidity*b.Validity + WeightConsistency*b.Consistency
	b.Score = math.Round(s*100*100) / 100
	return b
}
