package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxListedRows caps row ids printed in the outliers section.
const maxListedRows = 50

// Markdown renders the report with bracketed section headers.
func (r *ScanReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATA QUALITY SCORE]\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", r.Source))
	}
	if !r.GeneratedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Generated: %s\n", r.GeneratedAt.Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf("Rows: %d; Columns: %d\n", r.Rows, r.Columns))
	s := r.Score
	b.WriteString(fmt.Sprintf("Score: %.2f / 100 (completeness %.2f, uniqueness %.2f, validity %.2f, consistency %.2f)\n",
		s.Score, s.Completeness, s.Uniqueness, s.Validity, s.Consistency))

	b.WriteString("\n[PROFILE]\n")
	if r.Profile == nil || len(r.Profile.Cols) == 0 {
		b.WriteString("No columns.\n")
	} else {
		b.WriteString("| column | kind | dtype | null % | distinct % | outliers |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
		for _, c := range r.Profile.Cols {
			outl := "-"
			if c.Kind == "numeric" && c.OutlierThreshold > 0 {
				outl = strconv.Itoa(c.OutliersCount)
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %.1f | %.1f | %s |\n",
				cell(c.Name), c.Kind, c.DType, c.NullPct, c.DistinctPct, outl))
		}
		for _, w := range r.Profile.Warnings {
			b.WriteString(fmt.Sprintf("- note: %s\n", w))
		}
	}

	b.WriteString("\n[OUTLIERS]\n")
	b.WriteString(fmt.Sprintf("Rows flagged: %d (|z| > %.1f)\n", len(r.OutlierRows), r.OutlierThreshold))
	if len(r.OutlierRows) > 0 {
		ids := make([]string, 0, min(len(r.OutlierRows), maxListedRows))
		for i, row := range r.OutlierRows {
			if i == maxListedRows {
				break
			}
			ids = append(ids, strconv.Itoa(row))
		}
		line := strings.Join(ids, ", ")
		if len(r.OutlierRows) > maxListedRows {
			line += fmt.Sprintf(", ... (%d more)", len(r.OutlierRows)-maxListedRows)
		}
		b.WriteString(fmt.Sprintf("Row ids: %s\n", line))
		if r.Profile != nil {
			for _, c := range r.Profile.Cols {
				if c.OutliersCount > 0 {
					b.WriteString(fmt.Sprintf("- %s: %d (max |z| %.2f)\n", cell(c.Name), c.OutliersCount, c.OutliersMaxAbsZ))
				}
			}
		}
	}

	b.WriteString("\n")
	if r.Duplicates != nil {
		b.WriteString(r.Duplicates.Markdown())
	} else {
		b.WriteString("[DUPLICATES]\nNot run.\n")
	}

	b.WriteString("\n[RULES]\n")
	if len(r.Rules) == 0 {
		b.WriteString("No rules configured.\n")
	}
	for _, rule := range r.Rules {
		src := ""
		if rule.Source != "" {
			src = ", " + rule.Source
		}
		b.WriteString(fmt.Sprintf("- %s: %s (conf %.2f%s)\n", cell(rule.Column), rule.Rule, rule.Confidence, src))
	}
	return b.String()
}

func cell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/"))
	if s == "" {
		return "(unnamed)"
	}
	return s
}
