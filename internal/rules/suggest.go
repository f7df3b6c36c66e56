package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/ai"
	"github.com/KaramelBytes/dqcheck-cli/internal/analysis"
	"github.com/KaramelBytes/dqcheck-cli/internal/utils"
)

// DefaultPromptTokens bounds the column metadata sent to the model.
const DefaultPromptTokens = 3000

// Suggester asks an LLM for rules and falls back to Heuristic when the
// runtime is missing, fails, or answers with something unparsable.
type Suggester struct {
	Runtime      ai.Runtime
	Model        string
	MaxTokens    int
	PromptTokens int
}

// Suggest returns rules for rep. The slice is never nil.
func (s *Suggester) Suggest(ctx context.Context, rep *analysis.Report) []Rule {
	if s == nil || s.Runtime == nil || rep == nil {
		return Heuristic(rep)
	}
	prompt, err := s.prompt(rep)
	if err != nil {
		zap.L().Warn("rule prompt failed; using heuristics", zap.Error(err))
		return Heuristic(rep)
	}
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	resp, err := s.Runtime.Generate(ctx, ai.GenerateRequest{
		Model:     s.Model,
		Messages:  []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		zap.L().Warn("llm rule suggestion failed; using heuristics", zap.String("model", s.Model), zap.Error(err))
		return Heuristic(rep)
	}
	rules, err := ParseLLM(resp.Text())
	if err != nil {
		zap.L().Warn("llm answer unparsable; using heuristics", zap.String("request_id", resp.RequestID), zap.Error(err))
		return Heuristic(rep)
	}
	zap.L().Debug("llm rules parsed", zap.Int("rules", len(rules)), zap.Int("total_tokens", resp.Usage.TotalTokens))
	return rules
}

// columnMeta is the per-column view sent to the model.
type columnMeta struct {
	Column      string   `json:"column"`
	DType       string   `json:"dtype"`
	Kind        string   `json:"kind"`
	NullPct     float64  `json:"null_pct"`
	DistinctPct float64  `json:"distinct_pct"`
	Examples    []string `json:"examples,omitempty"`
}

func (s *Suggester) prompt(rep *analysis.Report) (string, error) {
	meta := make([]columnMeta, 0, len(rep.Cols))
	for _, c := range rep.Cols {
		m := columnMeta{Column: c.Name, DType: string(c.DType), Kind: c.Kind, NullPct: c.NullPct, DistinctPct: c.DistinctPct}
		for _, tv := range c.TopValues {
			if len(m.Examples) == 3 {
				break
			}
			m.Examples = append(m.Examples, tv.Value)
		}
		if len(m.Examples) == 0 && len(c.ExampleTexts) > 0 {
			m.Examples = c.ExampleTexts
		}
		meta = append(meta, m)
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal column metadata: %w", err)
	}
	limit := s.PromptTokens
	if limit <= 0 {
		limit = DefaultPromptTokens
	}
	return "You are a data quality assistant. " +
		"Given column metadata in JSON format, suggest actionable data quality rules.\n\n" +
		"Return ONLY a JSON array of rules with fields: column, rule, confidence (0.0-1.0).\n\n" +
		"Column metadata:\n" + utils.TruncateToTokenLimit(string(b), limit) + "\n", nil
}

// ParseLLM reads a JSON array of rules from a model answer. The whole text
// is tried first, then the span from the first '[' to the last ']'.
// Entries without a column or rule are dropped; confidence is clamped to [0,1].
func ParseLLM(text string) ([]Rule, error) {
	var raw []Rule
	err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw)
	if err != nil {
		i, j := strings.Index(text, "["), strings.LastIndex(text, "]")
		if i < 0 || j <= i {
			return nil, fmt.Errorf("no JSON array in answer: %w", err)
		}
		if err := json.Unmarshal([]byte(text[i:j+1]), &raw); err != nil {
			return nil, fmt.Errorf("decode rule array: %w", err)
		}
	}
	out := make([]Rule, 0, len(raw))
	for _, r := range raw {
		r.Column = strings.TrimSpace(r.Column)
		r.Rule = strings.TrimSpace(r.Rule)
		if r.Column == "" || r.Rule == "" {
			continue
		}
		r.Confidence = min(max(r.Confidence, 0), 1)
		r.Source = SourceLLM
		out = append(out, r)
	}
	return out, nil
}
