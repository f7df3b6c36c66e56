package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KaramelBytes/dqcheck-cli/internal/rules"
)

// SaveRules replaces the stored rule set with rs.
func (s *Store) SaveRules(ctx context.Context, rs []rules.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	now := formatTime(time.Now())
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rules (created_at, rule_json) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range rs {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal rule: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, now, string(b)); err != nil {
			return fmt.Errorf("write rule: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rules: %w", err)
	}
	return nil
}

// LoadRules returns the stored rules in insertion order; never nil.
func (s *Store) LoadRules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT rule_json FROM rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	out := []rules.Rule{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var r rules.Rule
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return out, nil
}
