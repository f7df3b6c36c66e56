package dedupe

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxMarkdownPairs caps the pair rows printed by Markdown.
const MaxMarkdownPairs = 50

// Markdown renders a compact, explainable summary of the result.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[DUPLICATES]\n")
	if len(r.Columns) > 0 {
		b.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(r.Columns, ", ")))
	}
	s := r.Stats
	b.WriteString(fmt.Sprintf("Candidates: %d of %d rows; blocks: %d (compared %d, skipped %d); comparisons: %d\n",
		s.Candidates, s.Rows, s.Blocks, s.ComparedBlocks, len(s.SkippedBlocks), s.Comparisons))
	b.WriteString(fmt.Sprintf("Duplicate pairs: %d in %d groups; rows flagged: %d\n", len(r.Pairs), len(r.Groups), len(r.DuplicateRows())))

	if len(r.Groups) > 0 {
		b.WriteString("\n[GROUPS]\n")
		for _, g := range r.Groups {
			ids := make([]string, len(g.Rows))
			for i, row := range g.Rows {
				ids[i] = strconv.Itoa(row)
			}
			b.WriteString(fmt.Sprintf("- group %d: rows %s\n", g.ID, strings.Join(ids, ", ")))
		}
	}
	if len(r.Pairs) > 0 {
		b.WriteString("\n[PAIRS]\n")
		b.WriteString("| group | left | right | score | left preview | right preview |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
		for i, p := range r.Pairs {
			if i == MaxMarkdownPairs {
				b.WriteString(fmt.Sprintf("\n... %d more pairs\n", len(r.Pairs)-MaxMarkdownPairs))
				break
			}
			b.WriteString(fmt.Sprintf("| %d | %d | %d | %.1f | %s | %s |\n",
				p.GroupID, p.Left, p.Right, p.Score, cell(p.LeftPreview), cell(p.RightPreview)))
		}
	}
	if len(s.SkippedBlocks) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, sb := range s.SkippedBlocks {
			b.WriteString(fmt.Sprintf("- block %q skipped: %d rows need %d comparisons\n", sb.Prefix, sb.Size, sb.Comparisons))
		}
	}
	return b.String()
}

// WriteCSV writes the pairs table with a header row.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"group_id", "left_index", "right_index", "score", "left_preview", "right_preview"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range r.Pairs {
		rec := []string{
			strconv.Itoa(p.GroupID),
			strconv.Itoa(p.Left),
			strconv.Itoa(p.Right),
			strconv.FormatFloat(p.Score, 'f', 2, 64),
			p.LeftPreview,
			p.RightPreview,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the whole result as indented JSON.
func (r *Result) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func cell(s string) string {
	s = strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
	if r := []rune(s); len(r) > 80 {
		s = string(r[:77]) + "..."
	}
	return s
}
