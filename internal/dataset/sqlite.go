package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// LoadSQLite reads a table or the result of a query from a SQLite database.
// A source containing whitespace is run as a query; anything else is treated
// as a table name.
func LoadSQLite(ctx context.Context, dbPath, source string, opt Options) (*Table, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	query := SourceQuery(source)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", filepath.Base(dbPath), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	name := source
	if strings.ContainsAny(source, " \t\n") {
		name = filepath.Base(dbPath)
	}
	t := &Table{Name: name}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", t.TotalRows+1, err)
		}
		t.TotalRows++
		if len(t.Rows) >= maxRows {
			continue
		}
		for i, v := range vals {
			vals[i] = sqliteCell(v)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	t.Columns = make([]Column, len(cols))
	for j, c := range cols {
		t.Columns[j] = Column{Name: c, Kind: kindOfValues(t.Rows, j)}
	}
	if len(t.Rows) < t.TotalRows {
		t.Warnings = append(t.Warnings, fmt.Sprintf("loaded only %d/%d rows due to MaxRows", len(t.Rows), t.TotalRows))
	}
	return t, nil
}

// SourceQuery turns a table name or query into the SQL to run.
func SourceQuery(source string) string {
	s := strings.TrimSpace(source)
	if strings.ContainsAny(s, " \t\n") {
		return s
	}
	return `SELECT * FROM "` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqliteCell(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
	}
	return v
}
