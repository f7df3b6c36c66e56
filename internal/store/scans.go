package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no scan matches an id.
	ErrNotFound = errors.New("scan not found")
	// ErrAmbiguousID is returned when an id prefix matches several scans.
	ErrAmbiguousID = errors.New("ambiguous scan id")
)

// Scan is one recorded run over a dataset.
type Scan struct {
	ID         string          `json:"id"`
	Job        string          `json:"job"`
	Source     string          `json:"source"`
	RunAt      time.Time       `json:"run_at"`
	Rows       int             `json:"rows"`
	Score      float64         `json:"score"`
	Duplicates int             `json:"duplicates"`
	Outliers   int             `json:"outliers"`
	Report     json.RawMessage `json:"report,omitempty"`
}

// SaveScan inserts sc, filling ID and RunAt when empty, and returns the
// stored row.
func (s *Store) SaveScan(ctx context.Context, sc Scan) (Scan, error) {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.RunAt.IsZero() {
		sc.RunAt = time.Now()
	}
	sc.RunAt = sc.RunAt.UTC()
	if strings.TrimSpace(sc.Job) == "" {
		sc.Job = "default"
	}
	report := sc.Report
	if len(report) == 0 {
		report = json.RawMessage("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (id, job_name, source, run_at, row_count, dq_score, duplicates, outliers, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Job, sc.Source, formatTime(sc.RunAt), sc.Rows, sc.Score, sc.Duplicates, sc.Outliers, string(report))
	if err != nil {
		return Scan{}, fmt.Errorf("write scan: %w", err)
	}
	return sc, nil
}

// ListScans returns the most recent scans first, without their reports.
// limit <= 0 lists everything.
func (s *Store) ListScans(ctx context.Context, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_name, source, run_at, row_count, dq_score, duplicates, outliers
		FROM scans ORDER BY run_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()
	out := []Scan{}
	for rows.Next() {
		var sc Scan
		var runAt string
		if err := rows.Scan(&sc.ID, &sc.Job, &sc.Source, &runAt, &sc.Rows, &sc.Score, &sc.Duplicates, &sc.Outliers); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sc.RunAt, err = parseTime(runAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

// GetScan loads one scan with its report. id may be a unique prefix.
func (s *Store) GetScan(ctx context.Context, id string) (Scan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Scan{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_name, source, run_at, row_count, dq_score, duplicates, outliers, report
		FROM scans WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return Scan{}, fmt.Errorf("query scan: %w", err)
	}
	defer rows.Close()
	var found []Scan
	for rows.Next() {
		var sc Scan
		var runAt, report string
		if err := rows.Scan(&sc.ID, &sc.Job, &sc.Source, &runAt, &sc.Rows, &sc.Score, &sc.Duplicates, &sc.Outliers, &report); err != nil {
			return Scan{}, fmt.Errorf("scan row: %w", err)
		}
		if sc.RunAt, err = parseTime(runAt); err != nil {
			return Scan{}, err
		}
		sc.Report = json.RawMessage(report)
		found = append(found, sc)
	}
	if err := rows.Err(); err != nil {
		return Scan{}, fmt.Errorf("iterate scans: %w", err)
	}
	switch {
	case len(found) == 0:
		return Scan{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return Scan{}, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// DeleteScan removes a scan by exact id.
func (s *Store) DeleteScan(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction, so stored values
// sort as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run_at %q: %w", s, err)
	}
	return t, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
