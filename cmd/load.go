package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dqcheck-cli/internal/dataset"
	"github.com/KaramelBytes/dqcheck-cli/internal/dedupe"
)

// inputFlags are the ingestion flags shared by commands that read a dataset.
type inputFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	maxRows    int
	sheetName  string
	sheetIndex int
	source     string
	raw        bool
}

func (f *inputFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (from extension if omitted)")
	fs.StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum rows to load (default from config; -1 = unlimited)")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	fs.IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.StringVar(&f.source, "table", "", "SQLite: table name or SELECT query")
	fs.BoolVar(&f.raw, "raw", false, "keep every value as text (no type inference)")
}

func (f *inputFlags) options() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	switch {
	case f.maxRows < 0:
		opt.MaxRows = 0
	case f.maxRows > 0:
		opt.MaxRows = f.maxRows
	case cfg != nil:
		opt.MaxRows = cfg.MaxRows
	}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(f.thousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	opt.Sheet = f.sheetName
	opt.SheetIndex = f.sheetIndex
	opt.Source = f.source
	opt.RawStrings = f.raw
	return opt, nil
}

// loadTable reads path with the shared ingestion flags and logs load warnings.
func loadTable(ctx context.Context, path string, f *inputFlags) (*dataset.Table, error) {
	opt, err := f.options()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	t, err := dataset.Load(ctx, path, opt)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("dataset loaded",
		zap.String("path", path),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)),
		zap.Duration("took", time.Since(start)))
	for _, w := range t.Warnings {
		zap.L().Warn("dataset: "+w, zap.String("path", path))
	}
	return t, nil
}

// dedupeFlags are the duplicate search knobs; unset flags use the config.
type dedupeFlags struct {
	columns          []string
	threshold        int
	blockSize        int
	minNonNull       int
	maxPairsPerBlock int
	scorer           string
}

func (f *dedupeFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.columns, "columns", nil, "columns to match on (default: all text columns)")
	fs.IntVar(&f.threshold, "threshold", 90, "minimum similarity 0-100 for a duplicate pair")
	fs.IntVar(&f.blockSize, "block-size", 2, "key prefix length rows must share to be compared")
	fs.IntVar(&f.minNonNull, "min-non-null", 1, "minimum non-null selected values for a row to take part")
	fs.IntVar(&f.maxPairsPerBlock, "max-pairs-per-block", 50000, "skip blocks needing more comparisons")
	fs.StringVar(&f.scorer, "scorer", "", "similarity scorer: "+strings.Join(dedupe.ScorerNames(), "|")+" (default from config)")
}

func (f *dedupeFlags) options(fs *pflag.FlagSet) (dedupe.Options, error) {
	opt := dedupe.DefaultOptions()
	opt.Columns = f.columns
	pick := func(flag string, v, fromCfg int) int {
		if fs.Changed(flag) || cfg == nil {
			return v
		}
		return fromCfg
	}
	scorerName := f.scorer
	if cfg != nil {
		opt.Threshold = pick("threshold", f.threshold, cfg.DedupeThreshold)
		opt.BlockSize = pick("block-size", f.blockSize, cfg.DedupeBlockSize)
		opt.MinNonNull = pick("min-non-null", f.minNonNull, cfg.DedupeMinNonNull)
		opt.MaxPairsPerBlock = pick("max-pairs-per-block", f.maxPairsPerBlock, cfg.DedupeMaxPairsPerBlock)
		if scorerName == "" {
			scorerName = cfg.DedupeScorer
		}
	} else {
		opt.Threshold, opt.BlockSize, opt.MinNonNull, opt.MaxPairsPerBlock = f.threshold, f.blockSize, f.minNonNull, f.maxPairsPerBlock
	}
	sc, err := dedupe.ScorerByName(scorerName)
	if err != nil {
		return opt, err
	}
	opt.Scorer = sc
	return opt, nil
}

// logDedupeStats logs the work of a duplicate search; skipped blocks are warnings.
func logDedupeStats(path string, st dedupe.Stats) {
	zap.L().Debug("duplicates: search done",
		zap.String("path", path),
		zap.Int("candidates", st.Candidates),
		zap.Int("blocks", st.Blocks),
		zap.Int("comparisons", st.Comparisons),
		zap.Int("pairs", st.Pairs))
	for _, b := range st.SkippedBlocks {
		zap.L().Warn("duplicates: block skipped, raise --max-pairs-per-block or --block-size to compare it",
			zap.String("path", path),
			zap.String("prefix", b.Prefix),
			zap.Int("size", b.Size),
			zap.Int("comparisons", b.Comparisons))
	}
}

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
