package dedupe

import (
	"sort"
	"strings"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
)

// Options controls a duplicate search.
type Options struct {
	// Columns to match on. Empty selects all textual columns, or every
	// column when the table has none.
	Columns []string
	// Threshold is the minimum similarity (0..100) for a pair to match.
	Threshold int
	// BlockSize is the number of key runes rows must share to be compared.
	BlockSize int
	// MinNonNull is the minimum number of non-null selected values a row
	// needs to take part.
	MinNonNull int
	// MaxPairsPerBlock skips blocks that would need more comparisons.
	MaxPairsPerBlock int
	// Scorer defaults to TokenSetRatio.
	Scorer Scorer
}

// DefaultOptions returns the standard search settings.
func DefaultOptions() Options {
	return Options{
		Threshold:        90,
		BlockSize:        2,
		MinNonNull:       1,
		MaxPairsPerBlock: 50000,
		Scorer:           TokenSetRatio,
	}
}

// PreviewColumns is the number of selected columns shown in pair previews.
const PreviewColumns = 3

// PairRow is one accepted match. Left < Right in block order, which is
// row order.
type PairRow struct {
	GroupID      int     `json:"group_id"`
	Left         int     `json:"left_index"`
	Right        int     `json:"right_index"`
	Score        float64 `json:"score"`
	LeftPreview  string  `json:"left_preview"`
	RightPreview string  `json:"right_preview"`
}

// DuplicateGroup is a set of rows connected by a chain of matches.
type DuplicateGroup struct {
	ID   int   `json:"group_id"`
	Rows []int `json:"rows"`
}

// SkippedBlock records a block left uncompared because it was too large.
type SkippedBlock struct {
	Prefix      string `json:"prefix"`
	Size        int    `json:"size"`
	Comparisons int    `json:"comparisons"`
}

// Stats describes the work a search did.
type Stats struct {
	Rows           int            `json:"rows"`
	Candidates     int            `json:"candidates"`
	Blocks         int            `json:"blocks"`
	ComparedBlocks int            `json:"compared_blocks"`
	SkippedBlocks  []SkippedBlock `json:"skipped_blocks,omitempty"`
	Comparisons    int            `json:"comparisons"`
	Pairs          int            `json:"pairs"`
}

// Result is the outcome of FindDuplicates.
type Result struct {
	// Columns are the selected column names, in matching order.
	Columns []string `json:"columns"`
	// Mask has one entry per table row; true when the row is part of a pair.
	Mask   []bool           `json:"mask"`
	Pairs  []PairRow        `json:"pairs"`
	Groups []DuplicateGroup `json:"groups"`
	Stats  Stats            `json:"stats"`
}

// DuplicateRows returns the row ids flagged in the mask.
func (r *Result) DuplicateRows() []int {
	var out []int
	for i, m := range r.Mask {
		if m {
			out = append(out, i)
		}
	}
	return out
}

type candidate struct {
	row int
	key string
}

type block struct {
	prefix  string
	members []int // candidate positions, in row order
}

// FindDuplicates finds near-duplicate rows of t. Rows are keyed on the
// normalized selected columns, bucketed by key prefix, compared pairwise
// within a bucket and clustered transitively.
func FindDuplicates(t *dataset.Table, opt Options) (*Result, error) {
	if t == nil {
		t = &dataset.Table{}
	}
	if err := opt.validate(); err != nil {
		return nil, err
	}
	cols, err := selectColumns(t, opt.Columns)
	if err != nil {
		return nil, err
	}
	score := opt.Scorer
	if score == nil {
		score = TokenSetRatio
	}

	res := &Result{
		Columns: make([]string, len(cols)),
		Mask:    make([]bool, t.Len()),
		Pairs:   []PairRow{},
		Groups:  []DuplicateGroup{},
	}
	for i, c := range cols {
		res.Columns[i] = t.Columns[c].Name
	}
	res.Stats.Rows = t.Len()

	cands := collectCandidates(t, cols, opt.MinNonNull)
	res.Stats.Candidates = len(cands)
	if len(cands) == 0 {
		return res, nil
	}

	blocks := buildBlocks(cands, opt.BlockSize)
	res.Stats.Blocks = len(blocks)

	type match struct {
		left, right int // candidate positions
		score       float64
	}
	var matches []match
	uf := newUnionFind(len(cands))
	for _, b := range blocks {
		k := len(b.members)
		if k < 2 {
			continue
		}
		n := k * (k - 1) / 2
		if n > opt.MaxPairsPerBlock {
			res.Stats.SkippedBlocks = append(res.Stats.SkippedBlocks, SkippedBlock{Prefix: b.prefix, Size: k, Comparisons: n})
			continue
		}
		res.Stats.ComparedBlocks++
		for i := 0; i < k; i++ {
			li := b.members[i]
			for j := i + 1; j < k; j++ {
				ri := b.members[j]
				res.Stats.Comparisons++
				s := score(cands[li].key, cands[ri].key)
				if s >= float64(opt.Threshold) {
					uf.union(li, ri)
					matches = append(matches, match{left: li, right: ri, score: s})
				}
			}
		}
	}
	res.Stats.Pairs = len(matches)
	if len(matches) == 0 {
		return res, nil
	}

	// Group ids follow the first appearance of each root in row order.
	groupOf := make(map[int]int)
	next := 1
	for i := range cands {
		r := uf.find(i)
		if _, ok := groupOf[r]; !ok {
			groupOf[r] = next
			next++
		}
	}

	preview := cols
	if len(preview) > PreviewColumns {
		preview = preview[:PreviewColumns]
	}
	members := map[int][]int{}
	inPair := make([]bool, len(cands))
	for _, m := range matches {
		gid := groupOf[uf.find(m.left)]
		l, r := cands[m.left].row, cands[m.right].row
		res.Mask[l] = true
		res.Mask[r] = true
		res.Pairs = append(res.Pairs, PairRow{
			GroupID:      gid,
			Left:         l,
			Right:        r,
			Score:        m.score,
			LeftPreview:  previewRow(t, l, preview),
			RightPreview: previewRow(t, r, preview),
		})
		for _, c := range []int{m.left, m.right} {
			if !inPair[c] {
				inPair[c] = true
				members[gid] = append(members[gid], cands[c].row)
			}
		}
	}
	sort.SliceStable(res.Pairs, func(i, j int) bool {
		if res.Pairs[i].GroupID != res.Pairs[j].GroupID {
			return res.Pairs[i].GroupID < res.Pairs[j].GroupID
		}
		return res.Pairs[i].Score > res.Pairs[j].Score
	})

	for gid, rows := range members {
		sort.Ints(rows)
		res.Groups = append(res.Groups, DuplicateGroup{ID: gid, Rows: rows})
	}
	sort.Slice(res.Groups, func(i, j int) bool { return res.Groups[i].ID < res.Groups[j].ID })
	return res, nil
}

// DuplicateMask is the mask-only form of FindDuplicates with default options.
func DuplicateMask(t *dataset.Table, columns []string, threshold int) ([]bool, error) {
	opt := DefaultOptions()
	opt.Columns = columns
	opt.Threshold = threshold
	res, err := FindDuplicates(t, opt)
	if err != nil {
		return nil, err
	}
	return res.Mask, nil
}

func (o Options) validate() error {
	if o.Threshold < 0 || o.Threshold > 100 {
		return invalidParam("threshold", "%d is outside [0,100]", o.Threshold)
	}
	if o.BlockSize < 1 {
		return invalidParam("block size", "%d must be at least 1", o.BlockSize)
	}
	if o.MinNonNull < 0 {
		return invalidParam("min non-null", "%d must not be negative", o.MinNonNull)
	}
	if o.MaxPairsPerBlock < 1 {
		return invalidParam("max pairs per block", "%d must be at least 1", o.MaxPairsPerBlock)
	}
	return nil
}

func selectColumns(t *dataset.Table, names []string) ([]int, error) {
	if len(names) > 0 {
		out := make([]int, 0, len(names))
		for _, n := range names {
			i, ok := t.ColumnIndex(n)
			if !ok {
				return nil, invalidParam("column", "%q not found (available: %s)", n, strings.Join(t.ColumnNames(), ", "))
			}
			out = append(out, i)
		}
		return out, nil
	}
	var out []int
	for i, c := range t.Columns {
		if c.Textual() {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		for i := range t.Columns {
			out = append(out, i)
		}
	}
	return out, nil
}

func collectCandidates(t *dataset.Table, cols []int, minNonNull int) []candidate {
	var out []candidate
	for r, row := range t.Rows {
		nonNull := 0
		for _, c := range cols {
			if c < len(row) && !dataset.IsNull(row[c]) {
				nonNull++
			}
		}
		if nonNull < minNonNull {
			continue
		}
		key := BuildKey(row, cols)
		if key == "" {
			continue
		}
		out = append(out, candidate{row: r, key: key})
	}
	return out
}

// buildBlocks buckets candidates by key prefix, keeping buckets in order of
// first appearance.
func buildBlocks(cands []candidate, size int) []block {
	index := map[string]int{}
	var blocks []block
	for i, c := range cands {
		p := BlockKey(c.key, size)
		if p == "" {
			continue
		}
		bi, ok := index[p]
		if !ok {
			bi = len(blocks)
			index[p] = bi
			blocks = append(blocks, block{prefix: p})
		}
		blocks[bi].members = append(blocks[bi].members, i)
	}
	return blocks
}

func previewRow(t *dataset.Table, row int, cols []int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = dataset.FormatValue(t.Value(row, c))
	}
	return strings.Join(parts, KeySeparator)
}
