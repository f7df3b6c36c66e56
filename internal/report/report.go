// Package report combines profile, score, outliers, duplicates and rules
// into one scan report.
package report

import (
	"time"

	"github.com/KaramelBytes/dqcheck-cli/internal/analysis"
	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
	"github.com/KaramelBytes/dqcheck-cli/internal/dedupe"
	"github.com/KaramelBytes/dqcheck-cli/internal/rules"
)

// ScanReport is the full result of scanning one dataset.
type ScanReport struct {
	Source      string
	GeneratedAt time.Time
	Rows        int
	Columns     int
	Score       analysis.ScoreBreakdown
	Profile     *analysis.Report
	// OutlierRows are row ids flagged by the robust z-score.
	OutlierRows      []int
	OutlierThreshold float64
	// Duplicates is nil when duplicate detection did not run.
	Duplicates *dedupe.Result
	Rules      []rules.Rule
}

// Options drive Run.
type Options struct {
	Profile analysis.Options
	Dedupe  dedupe.Options
	// SkipDuplicates leaves Duplicates nil.
	SkipDuplicates bool
	// Rules are reported as-is; when nil, heuristic rules are derived from
	// the profile.
	Rules []rules.Rule
}

// DefaultOptions returns the standard scan settings.
func DefaultOptions() Options {
	return Options{Profile: analysis.DefaultOptions(), Dedupe: dedupe.DefaultOptions()}
}

// Run profiles t, flags outliers, searches duplicates and assembles the report.
func Run(t *dataset.Table, opt Options) (*ScanReport, error) {
	prof := analysis.Profile(t, opt.Profile)
	outliers := analysis.OutlierMask(t, opt.Profile.OutlierThreshold)
	var dup *dedupe.Result
	if !opt.SkipDuplicates {
		var err error
		dup, err = dedupe.FindDuplicates(t, opt.Dedupe)
		if err != nil {
			return nil, err
		}
	}
	rs := opt.Rules
	if rs == nil {
		rs = rules.Heuristic(prof)
	}
	rep := Build(t, prof, outliers, dup, rs)
	rep.OutlierThreshold = opt.Profile.OutlierThreshold
	if rep.OutlierThreshold <= 0 {
		rep.OutlierThreshold = analysis.DefaultOutlierThreshold
	}
	return rep, nil
}

// Build assembles a report from already computed parts. The score is
// derived from prof.
func Build(t *dataset.Table, prof *analysis.Report, outliers []bool, dup *dedupe.Result, rs []rules.Rule) *ScanReport {
	rep := &ScanReport{
		GeneratedAt:      time.Now().UTC(),
		Score:            analysis.Breakdown(prof),
		Profile:          prof,
		OutlierRows:      []int{},
		OutlierThreshold: analysis.DefaultOutlierThreshold,
		Duplicates:       dup,
		Rules:            rs,
	}
	if t != nil {
		rep.Source = t.Name
		rep.Rows = t.Len()
		rep.Columns = len(t.Columns)
	}
	for i, flagged := range outliers {
		if flagged {
			rep.OutlierRows = append(rep.OutlierRows, i)
		}
	}
	if rep.Rules == nil {
		rep.Rules = []rules.Rule{}
	}
	return rep
}

// DuplicateCount is the number of rows flagged as duplicates.
func (r *ScanReport) DuplicateCount() int {
	if r.Duplicates == nil {
		return 0
	}
	return len(r.Duplicates.DuplicateRows())
}

// Summary is the persisted, JSON form of a report.
type Summary struct {
	Source      string                   `json:"source"`
	GeneratedAt time.Time                `json:"generated_at"`
	Rows        int                      `json:"rows"`
	Columns     int                      `json:"columns"`
	Score       analysis.ScoreBreakdown  `json:"score"`
	Profile     []analysis.ColumnSummary `json:"profile"`
	OutlierRows []int                    `json:"outlier_rows"`
	Duplicates  *DuplicateSummary        `json:"duplicates,omitempty"`
	Rules       []rules.Rule             `json:"rules"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// DuplicateSummary drops the per-row mask and pair previews.
type DuplicateSummary struct {
	Columns []string                `json:"columns"`
	Rows    []int                   `json:"rows"`
	Groups  []dedupe.DuplicateGroup `json:"groups"`
	Stats   dedupe.Stats            `json:"stats"`
}

// Summary returns the JSON-able digest stored in scan history.
func (r *ScanReport) Summary() Summary {
	s := Summary{
		Source:      r.Source,
		GeneratedAt: r.GeneratedAt,
		Rows:        r.Rows,
		Columns:     r.Columns,
		Score:       r.Score,
		OutlierRows: r.OutlierRows,
		Rules:       r.Rules,
	}
	if r.Profile != nil {
		s.Profile = r.Profile.Cols
		s.Warnings = r.Profile.Warnings
	}
	if d := r.Duplicates; d != nil {
		rows := d.DuplicateRows()
		if rows == nil {
			rows = []int{}
		}
		s.Duplicates = &DuplicateSummary{Columns: d.Columns, Rows: rows, Groups: d.Groups, Stats: d.Stats}
	}
	return s
}
