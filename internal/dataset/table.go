package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind is the storage type inferred for a column after loading.
type Kind string

const (
	KindText    Kind = "text"
	KindInteger Kind = "integer"
	KindFloat   Kind = "float"
	KindBool    Kind = "bool"
	// KindEmpty marks a column without a single non-null value.
	KindEmpty Kind = "empty"
)

// Column describes one column of a Table.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Textual reports whether the column holds free-form string values.
func (c Column) Textual() bool { return c.Kind == KindText }

// Numeric reports whether the column holds integers or floats.
func (c Column) Numeric() bool { return c.Kind == KindInteger || c.Kind == KindFloat }

// Table is an in-memory, row-ordered dataset. Cells are nil (missing), string,
// int64, float64 or bool. Row positions are the stable row ids used by the
// rest of the tool.
type Table struct {
	Name     string
	Columns  []Column
	Rows     [][]any
	Warnings []string
	// TotalRows counts rows seen in the source, including ones dropped by MaxRows.
	TotalRows int
}

// Len returns the number of loaded rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Value returns the cell at (row, col). Out of range cells are nil.
func (t *Table) Value(row, col int) any {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}

// IsNull reports whether a cell value counts as missing.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// FormatValue renders a cell the way previews and reports show it. Missing
// cells render as the empty string.
func FormatValue(v any) string {
	if IsNull(v) {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// FromRecords builds a table from column→value records, e.g. decoded JSON.
// When columns is empty, column order is the order of first appearance,
// with keys of each record visited in sorted order.
func FromRecords(name string, columns []string, records []map[string]any) *Table {
	if len(columns) == 0 {
		columns = recordColumns(records)
	}
	t := &Table{Name: name, TotalRows: len(records)}
	t.Rows = make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = normalizeJSONValue(rec[c])
		}
		t.Rows[i] = row
	}
	t.Columns = make([]Column, len(columns))
	for j, c := range columns {
		t.Columns[j] = Column{Name: c, Kind: kindOfValues(t.Rows, j)}
	}
	return t
}

func recordColumns(records []map[string]any) []string {
	seen := map[string]struct{}{}
	var cols []string
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return cols
}

// normalizeJSONValue maps decoded JSON scalars onto the cell types used by Table.
func normalizeJSONValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case int:
		return int64(x)
	case float32:
		return float64(x)
	}
	return FormatValue(v)
}

// kindOfValues infers the kind of column j from already-typed cells.
func kindOfValues(rows [][]any, j int) Kind {
	var hasText, hasInt, hasFloat, hasBool bool
	for _, r := range rows {
		if j >= len(r) || IsNull(r[j]) {
			continue
		}
		switch r[j].(type) {
		case int64, int:
			hasInt = true
		case float64, float32:
			hasFloat = true
		case bool:
			hasBool = true
		default:
			hasText = true
		}
	}
	switch {
	case hasText:
		return KindText
	case hasBool && (hasInt || hasFloat):
		return KindText
	case hasBool:
		return KindBool
	case hasFloat:
		return KindFloat
	case hasInt:
		return KindInteger
	}
	return KindEmpty
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsFloat converts a numeric cell to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, false
		}
		return x, true
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}
