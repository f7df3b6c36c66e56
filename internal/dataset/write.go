package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes t with a header row. Missing cells are empty fields.
func (t *Table) WriteCSV(w io.Writer, delim rune) error {
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for i := range t.Rows {
		for j := range t.Columns {
			rec[j] = FormatValue(t.Value(i, j))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Records returns the rows as column→value maps, missing cells as nil.
func (t *Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			v := t.Value(i, j)
			if IsNull(v) {
				v = nil
			}
			rec[c.Name] = v
		}
		out[i] = rec
	}
	return out
}

// NullCount counts missing cells in column j.
func (t *Table) NullCount(j int) int {
	n := 0
	for i := range t.Rows {
		if IsNull(t.Value(i, j)) {
			n++
		}
	}
	return n
}
