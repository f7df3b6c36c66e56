// Package rules suggests data quality rules from a column profile, either
// through an LLM runtime or with built-in heuristics, and exports them.
package rules

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dqcheck-cli/internal/analysis"
)

// Sources of a rule.
const (
	SourceHeuristic = "heuristic"
	SourceLLM       = "llm"
)

// Rule is a single human-readable expectation about a column.
type Rule struct {
	Column     string  `json:"column" yaml:"column" toml:"column"`
	Rule       string  `json:"rule" yaml:"rule" toml:"rule"`
	Confidence float64 `json:"confidence" yaml:"confidence" toml:"confidence"`
	Source     string  `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
}

func (r Rule) String() string {
	return fmt.Sprintf("%s: %s (conf %.2f)", r.Column, r.Rule, r.Confidence)
}

// Heuristic rule texts.
const (
	EmailRule  = `value must match regex ^[^@]+@[^@]+\.[^@]+$`
	PhoneRule  = "value should be digits only and length between 8 and 15"
	NullRule   = "null percentage should be < 50%"
	UniqueRule = "column should probably be unique (or check for too many duplicates)"
)

// Heuristic derives rules from column names and null/distinct percentages.
func Heuristic(rep *analysis.Report) []Rule {
	out := []Rule{}
	if rep == nil {
		return out
	}
	for _, c := range rep.Cols {
		name := strings.ToLower(c.Name)
		add := func(rule string, conf float64) {
			out = append(out, Rule{Column: c.Name, Rule: rule, Confidence: conf, Source: SourceHeuristic})
		}
		if strings.Contains(name, "email") {
			add(EmailRule, 0.9)
		}
		if strings.Contains(name, "phone") || strings.Contains(name, "mobile") {
			add(PhoneRule, 0.8)
		}
		if c.NullPct > 50 {
			add(NullRule, 0.6)
		}
		if c.DistinctPct < 1 {
			add(UniqueRule, 0.7)
		}
	}
	return out
}

// Merge appends rules not already present in base, keyed on column and
// rule text (case-insensitive).
func Merge(base, extra []Rule) []Rule {
	seen := map[string]bool{}
	key := func(r Rule) string {
		return strings.ToLower(strings.TrimSpace(r.Column)) + "\x00" + strings.ToLower(strings.TrimSpace(r.Rule))
	}
	out := make([]Rule, 0, len(base)+len(extra))
	for _, list := range [][]Rule{base, extra} {
		for _, r := range list {
			if k := key(r); !seen[k] {
				seen[k] = true
				out = append(out, r)
			}
		}
	}
	return out
}
