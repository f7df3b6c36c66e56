package analysis

import (
	"math"
	"testing"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

func imputeFixture() *dataset.Table {
	return dataset.FromRecords("t", []string{"a", "b", "name", "empty"}, []map[string]any{
		{"a": 1, "b": 10, "name": "x"},
		{"a": 2, "b": 20, "name": "y"},
		{"a": 3, "b": 30},
		{"a": 10, "b": 100, "name": "z"},
		{"a": 2, "name": "w"},
	})
}

func TestImputeKNNAveragesNearestRows(t *testing.T) {
	cases := []struct {
		k    int
		want int64
	}{
		{1, 20},
		{2, 15}, // rows 1 and 0; row 2 ties with row 0 but comes later
		{3, 20},
		{0, 20}, // default of three neighbours
	}
	for _, c := range cases {
		tab := imputeFixture()
		out := ImputeKNN(tab, c.k)
		if got := out.Value(4, 1); got != c.want {
			t.Fatalf("k=%d: filled b = %#v, want %d", c.k, got, c.want)
		}
		if out.Columns[1].Kind != dataset.KindInteger {
			t.Fatalf("k=%d: b kind = %s", c.k, out.Columns[1].Kind)
		}
		if tab.Value(4, 1) != nil {
			t.Fatalf("input table was modified")
		}
	}
}

func TestImputeKNNLeavesOtherColumns(t *testing.T) {
	out := ImputeKNN(imputeFixture(), 2)
	if out.Value(2, 2) != nil {
		t.Fatalf("text cell filled: %#v", out.Value(2, 2))
	}
	for i := 0; i < out.Len(); i++ {
		if out.Value(i, 3) != nil {
			t.Fatalf("empty column filled at row %d", i)
		}
	}
	if out.Value(0, 0) != int64(1) || out.Value(3, 1) != int64(100) {
		t.Fatalf("present values changed: %v", out.Rows)
	}
}

func TestImputeKNNFractionalAndMeanFallback(t *testing.T) {
	tab := dataset.FromRecords("t", []string{"a", "b"}, []map[string]any{
		{"a": 1, "b": 10},
		{"a": 2, "b": 21},
		{"a": 9},
		{},
	})
	out := ImputeKNN(tab, 2)

	// b receives 15.5 so the whole column turns float.
	if out.Columns[1].Kind != dataset.KindFloat {
		t.Fatalf("b kind = %s", out.Columns[1].Kind)
	}
	if got := out.Value(2, 1); got != 15.5 {
		t.Fatalf("b[2] = %#v", got)
	}
	if got := out.Value(0, 1); got != 10.0 {
		t.Fatalf("b[0] = %#v, want float 10", got)
	}
	// Row 3 shares no coordinate with any row: column means.
	if got := out.Value(3, 0); got != int64(4) {
		t.Fatalf("a[3] = %#v, want mean 4", got)
	}
	if got := out.Value(3, 1); got != 15.5 {
		t.Fatalf("b[3] = %#v, want mean 15.5", got)
	}
	if out.Columns[0].Kind != dataset.KindInteger {
		t.Fatalf("a kind = %s", out.Columns[0].Kind)
	}
}

func TestImputeKNNWithoutNumericColumns(t *testing.T) {
	tab := dataset.FromRecords("t", []string{"s"}, []map[string]any{{"s": "x"}, {}})
	out := ImputeKNN(tab, 3)
	if out == tab || out.Len() != 2 || out.Value(1, 0) != nil {
		t.Fatalf("unexpected copy: %#v", out)
	}
	if ImputeKNN(nil, 3) != nil {
		t.Fatalf("nil table")
	}
}

func TestNanEuclidean(t *testing.T) {
	nan := math.NaN()
	if got := nanEuclidean([]float64{1, nan}, []float64{3, 5}); math.Abs(got-math.Sqrt(8)) > 1e-12 {
		t.Fatalf("dist = %v, want sqrt(2*4)", got)
	}
	if got := nanEuclidean([]float64{nan, 1}, []float64{2, nan}); !math.IsNaN(got) {
		t.Fatalf("dist = %v, want NaN", got)
	}
}
