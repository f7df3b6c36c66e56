package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

// DefaultNeighbors is the neighbour count ImputeKNN uses for k <= 0.
const DefaultNeighbors = 3

// ImputeKNN returns a copy of t whose missing numeric cells are filled with
// the mean of that column over the k nearest rows holding a value there.
//
// Distance is the NaN-aware Euclidean distance over all numeric columns:
// sqrt(m/p · Σ(x−y)²) across the p coordinates present in both rows, out of m.
// Rows sharing no coordinate are not neighbours; a cell with no neighbour at
// all gets the column mean. Distances and donor values come from the input,
// so fill order does not matter. Columns without any value stay empty and
// non-numeric columns are copied as-is. An integer column that receives a
// fractional value becomes a float column.
func ImputeKNN(t *dataset.Table, k int) *dataset.Table {
	if t == nil {
		return nil
	}
	if k <= 0 {
		k = DefaultNeighbors
	}
	out := &dataset.Table{
		Name:      t.Name,
		Columns:   append([]dataset.Column(nil), t.Columns...),
		Rows:      make([][]any, len(t.Rows)),
		Warnings:  append([]string(nil), t.Warnings...),
		TotalRows: t.TotalRows,
	}
	for i, r := range t.Rows {
		row := make([]any, len(t.Columns))
		copy(row, r)
		out.Rows[i] = row
	}

	var num []int
	for j, c := range t.Columns {
		if c.Numeric() {
			num = append(num, j)
		}
	}
	if len(num) == 0 || len(t.Rows) == 0 {
		return out
	}

	n, m := len(t.Rows), len(num)
	x := make([][]float64, n)
	for i := range x {
		x[i] = make([]float64, m)
		for c, j := range num {
			if f, ok := dataset.AsFloat(t.Value(i, j)); ok {
				x[i][c] = f
			} else {
				x[i][c] = math.NaN()
			}
		}
	}
	means := make([]float64, m)
	for c := range means {
		var sum float64
		var cnt int
		for i := 0; i < n; i++ {
			if !math.IsNaN(x[i][c]) {
				sum += x[i][c]
				cnt++
			}
		}
		means[c] = math.NaN()
		if cnt > 0 {
			means[c] = sum / float64(cnt)
		}
	}

	filled := make([][]float64, n)
	dist := make([]float64, n)
	for i := 0; i < n; i++ {
		if !hasMissing(x[i], means) {
			continue
		}
		for j := 0; j < n; j++ {
			dist[j] = nanEuclidean(x[i], x[j])
		}
		filled[i] = make([]float64, m)
		for c := range filled[i] {
			filled[i][c] = math.NaN()
			if !math.IsNaN(x[i][c]) || math.IsNaN(means[c]) {
				continue
			}
			filled[i][c] = neighbourMean(x, dist, c, k, means[c])
		}
	}

	for c, j := range num {
		fractional := false
		for i := 0; i < n; i++ {
			if filled[i] != nil && !math.IsNaN(filled[i][c]) && filled[i][c] != math.Trunc(filled[i][c]) {
				fractional = true
				break
			}
		}
		toFloat := t.Columns[j].Kind == dataset.KindInteger && fractional
		if toFloat {
			out.Columns[j].Kind = dataset.KindFloat
		}
		for i := 0; i < n; i++ {
			switch {
			case filled[i] != nil && !math.IsNaN(filled[i][c]):
				v := filled[i][c]
				if out.Columns[j].Kind == dataset.KindInteger {
					out.Rows[i][j] = int64(v)
				} else {
					out.Rows[i][j] = v
				}
			case toFloat && !math.IsNaN(x[i][c]):
				out.Rows[i][j] = x[i][c]
			}
		}
	}
	return out
}

// hasMissing reports whether row lacks a value in a column that has values elsewhere.
func hasMissing(row, means []float64) bool {
	for c, v := range row {
		if math.IsNaN(v) && !math.IsNaN(means[c]) {
			return true
		}
	}
	return false
}

func nanEuclidean(a, b []float64) float64 {
	var sum float64
	present := 0
	for c := range a {
		if math.IsNaN(a[c]) || math.IsNaN(b[c]) {
			continue
		}
		d := a[c] - b[c]
		sum += d * d
		present++
	}
	if present == 0 {
		return math.NaN()
	}
	return math.Sqrt(float64(len(a)) / float64(present) * sum)
}

// neighbourMean averages column c over the k closest donors by dist. Ties
// keep row order; donors at an undefined distance do not count.
func neighbourMean(x [][]float64, dist []float64, c, k int, mean float64) float64 {
	var donors []int
	for i := range x {
		if !math.IsNaN(x[i][c]) {
			donors = append(donors, i)
		}
	}
	sort.SliceStable(donors, func(a, b int) bool {
		da, db := dist[donors[a]], dist[donors[b]]
		if math.IsNaN(db) {
			return !math.IsNaN(da)
		}
		return da < db
	})
	if len(donors) > k {
		donors = donors[:k]
	}
	var sum float64
	cnt := 0
	for _, i := range donors {
		if math.IsNaN(dist[i]) {
			continue
		}
		sum += x[i][c]
		cnt++
	}
	if cnt == 0 {
		return mean
	}
	return sum / float64(cnt)
}
