package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

// Options controls profiling behavior.
type Options struct {
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
	// TopValues caps the categorical values listed per column.
	TopValues int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: DefaultOutlierThreshold,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a table.
type Report struct {
	Name string `json:"name"`
	// Rows is the number of profiled rows; SourceRows counts rows in the
	// source before any MaxRows cut.
	Rows       int             `json:"rows"`
	SourceRows int             `json:"source_rows"`
	Cols       []ColumnSummary `json:"columns"`
	Samples    [][]string      `json:"samples,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name  string       `json:"column"`
	DType dataset.Kind `json:"dtype"`
	// Kind is the semantic kind: numeric|datetime|categorical|text|unknown.
	Kind        string  `json:"kind"`
	NonNull     int     `json:"non_null"`
	NullCount   int     `json:"null_count"`
	NullPct     float64 `json:"null_pct"`
	Distinct    int     `json:"distinct_count"`
	DistinctPct float64 `json:"distinct_pct"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Categorical top values
	TopValues    []CategoryCount `json:"top_values,omitempty"`
	ExampleTexts []string        `json:"example_texts,omitempty"`
}

// Numeric reports whether the column's storage type is numeric. All-null
// columns count as numeric, like an all-NaN float column.
func (c ColumnSummary) Numeric() bool {
	return c.DType == dataset.KindInteger || c.DType == dataset.KindFloat || c.DType == dataset.KindEmpty
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// maxCategoryLen is the longest value still treated as a category label.
const maxCategoryLen = 64

// Profile computes per-column statistics for t.
func Profile(t *dataset.Table, opt Options) *Report {
	rep := &Report{Name: t.Name, Rows: t.Len(), SourceRows: t.TotalRows}
	if rep.SourceRows < rep.Rows {
		rep.SourceRows = rep.Rows
	}
	rep.Warnings = append(rep.Warnings, t.Warnings...)
	sampleRows := opt.SampleRows
	if sampleRows <= 0 {
		sampleRows = 5
	}
	topN := opt.TopValues
	if topN <= 0 {
		topN = 8
	}
	for i := 0; i < len(t.Rows) && i < sampleRows; i++ {
		row := make([]string, len(t.Columns))
		for j := range t.Columns {
			row[j] = dataset.FormatValue(t.Value(i, j))
		}
		rep.Samples = append(rep.Samples, row)
	}

	denom := float64(max(1, t.Len()))
	rep.Cols = make([]ColumnSummary, 0, len(t.Columns))
	for j, col := range t.Columns {
		s := ColumnSummary{Name: col.Name, DType: col.Kind}
		distinct := map[string]int{}
		var nums []float64
		// Welford
		var n int
		var mean, m2 float64
		minV, maxV := math.Inf(1), math.Inf(-1)
		var dtCnt, txtCnt, longCnt int
		for i := range t.Rows {
			v := t.Value(i, j)
			if dataset.IsNull(v) {
				s.NullCount++
				continue
			}
			s.NonNull++
			str := dataset.FormatValue(v)
			distinct[str]++
			if x, ok := dataset.AsFloat(v); ok && col.Numeric() {
				n++
				if x < minV {
					minV = x
				}
				if x > maxV {
					maxV = x
				}
				delta := x - mean
				mean += delta / float64(n)
				m2 += delta * (x - mean)
				nums = append(nums, x)
				continue
			}
			if _, ok := v.(string); ok {
				if _, isTime := parseTimeMaybe(str); isTime {
					dtCnt++
				} else {
					txtCnt++
				}
				if len(str) > maxCategoryLen {
					longCnt++
				}
				if len(s.ExampleTexts) < 3 {
					s.ExampleTexts = append(s.ExampleTexts, str)
				}
			}
		}
		s.NullPct = float64(s.NullCount) * 100 / denom
		s.Distinct = len(distinct)
		s.DistinctPct = float64(s.Distinct) * 100 / denom

		switch {
		case n > 0:
			s.Kind = "numeric"
			s.Min, s.Max, s.Mean = minV, maxV, mean
			if n > 1 {
				s.Std = math.Sqrt(m2 / float64(n-1))
			}
			if opt.Outliers {
				thr := opt.OutlierThreshold
				if thr <= 0 {
					thr = DefaultOutlierThreshold
				}
				s.OutlierThreshold = thr
				if z := robustZ(nums); z != nil {
					for _, v := range z {
						az := math.Abs(v)
						if az > thr {
							s.OutliersCount++
						}
						if az > s.OutliersMaxAbsZ {
							s.OutliersMaxAbsZ = az
						}
					}
				}
			}
			s.ExampleTexts = nil
		case col.Kind == dataset.KindBool:
			s.Kind = "categorical"
			s.TopValues = topValues(distinct, topN)
		case dtCnt > 0 && dtCnt >= txtCnt:
			s.Kind = "datetime"
			s.ExampleTexts = nil
		case txtCnt > 0 && longCnt == 0 && (s.Distinct <= 20 || s.Distinct*2 <= s.NonNull):
			s.Kind = "categorical"
			s.TopValues = topValues(distinct, topN)
			s.ExampleTexts = nil
		case txtCnt > 0:
			s.Kind = "text"
		default:
			s.Kind = "unknown"
			s.ExampleTexts = nil
		}
		rep.Cols = append(rep.Cols, s)
	}
	return rep
}

func topValues(counts map[string]int, n int) []CategoryCount {
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > n {
		tops = tops[:n]
	}
	return tops
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
