package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

// DefaultOutlierThreshold is the |z| above which a value is an outlier.
const DefaultOutlierThreshold = 3.5

// minOutlierValues is the sample size below which no value is flagged.
const minOutlierValues = 8

// OutlierMask flags rows where any numeric column has a robust z-score
// above threshold (|0.6745·(x−median)/MAD|).
func OutlierMask(t *dataset.Table, threshold float64) []bool {
	if threshold <= 0 {
		threshold = DefaultOutlierThreshold
	}
	mask := make([]bool, t.Len())
	for j, col := range t.Columns {
		if !col.Numeric() {
			continue
		}
		var rows []int
		var vals []float64
		for i := range t.Rows {
			if x, ok := dataset.AsFloat(t.Value(i, j)); ok {
				rows = append(rows, i)
				vals = append(vals, x)
			}
		}
		z := robustZ(vals)
		for k, v := range z {
			if math.Abs(v) > threshold {
				mask[rows[k]] = true
			}
		}
	}
	return mask
}

// CountTrue returns the number of set entries of a mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// robustZ returns modified z-scores for vals, or nil when there are too few
// values or the MAD is zero.
func robustZ(vals []float64) []float64 {
	if len(vals) < minOutlierValues {
		return nil
	}
	median, mad := medianMAD(vals)
	if mad == 0 {
		return nil
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = 0.6745 * (v - median) / mad
	}
	return out
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
