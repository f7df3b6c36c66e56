package dataset

import (
	"strconv"
	"strings"
)

// Options controls how sources are read into a Table.
type Options struct {
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Delimiter for CSV. If 0, picked from the file extension.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// RawStrings keeps every non-empty cell as a string (no type inference).
	RawStrings bool
	// Sheet selects an XLSX worksheet by name; SheetIndex is 1-based.
	Sheet      string
	SheetIndex int
	// Source names the table (or holds the query) to read from a SQLite database.
	Source string
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{MaxRows: 100000}
}

// fromStrings builds a typed table from raw string records. Empty (after
// trimming) cells become nil. Records shorter than the header are padded.
func fromStrings(name string, header []string, records [][]string, opt Options) *Table {
	t := &Table{Name: name}
	t.Columns = make([]Column, len(header))
	for i, h := range header {
		t.Columns[i] = Column{Name: strings.TrimSpace(h)}
	}
	ncol := len(header)
	t.Rows = make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, ncol)
		for j := 0; j < ncol && j < len(rec); j++ {
			v := strings.TrimSpace(rec[j])
			if v == "" {
				continue
			}
			row[j] = v
		}
		t.Rows[i] = row
	}
	for j := range t.Columns {
		if opt.RawStrings {
			t.Columns[j].Kind = kindOfValues(t.Rows, j)
			continue
		}
		t.Columns[j].Kind = inferColumn(t.Rows, j, opt)
	}
	return t
}

// inferColumn picks the narrowest kind every non-null cell of column j parses
// as and converts the cells in place.
func inferColumn(rows [][]any, j int, opt Options) Kind {
	allInt, allFloat, allBool := true, true, true
	seen := 0
	for _, r := range rows {
		s, ok := r[j].(string)
		if !ok {
			continue
		}
		seen++
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat && !allInt {
			if _, ok := parseNumeric(s, opt); !ok {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(s); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}
	if seen == 0 {
		return KindEmpty
	}
	switch {
	case allInt:
		for _, r := range rows {
			if s, ok := r[j].(string); ok {
				n, _ := strconv.ParseInt(s, 10, 64)
				r[j] = n
			}
		}
		return KindInteger
	case allFloat:
		for _, r := range rows {
			if s, ok := r[j].(string); ok {
				f, _ := parseNumeric(s, opt)
				r[j] = f
			}
		}
		return KindFloat
	case allBool:
		for _, r := range rows {
			if s, ok := r[j].(string); ok {
				b, _ := parseBool(s)
				r[j] = b
			}
		}
		return KindBool
	}
	return KindText
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// parseNumeric parses locale-formatted numbers such as "1.234,5", "1,234.5"
// or "12%". Values with interior whitespace are not numbers.
func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\u00a0") {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.'} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
