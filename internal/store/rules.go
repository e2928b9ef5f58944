package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SeedRules inserts rules that do not already exist. Existing rows
// keep their enabled flag and threshold, so operator edits survive
// restarts.
func (s *Store) SeedRules(rules []ObservabilityRule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("seed rules: begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rules {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO observability_rules (id, condition, threshold, action, enabled)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Condition, r.Threshold, r.Action, r.Enabled,
		); err != nil {
			return fmt.Errorf("seed rules: %q: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Rules returns all rules ordered by id.
func (s *Store) Rules() ([]*ObservabilityRule, error) {
	rows, err := s.db.Query(
		"SELECT id, condition, threshold, action, enabled FROM observability_rules ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	defer rows.Close()

	var out []*ObservabilityRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("rules: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RuleByID returns one rule, or nil for an unknown id.
func (s *Store) RuleByID(id string) (*ObservabilityRule, error) {
	row := s.db.QueryRow(
		"SELECT id, condition, threshold, action, enabled FROM observability_rules WHERE id = ?", id,
	)
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rule by id: %w", err)
	}
	return r, nil
}

// SetRuleEnabled toggles a rule. Returns false for an unknown id.
func (s *Store) SetRuleEnabled(id string, enabled bool) (bool, error) {
	res, err := s.db.Exec("UPDATE observability_rules SET enabled = ? WHERE id = ?", enabled, id)
	if err != nil {
		return false, fmt.Errorf("set rule enabled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set rule enabled: rows: %w", err)
	}
	return n > 0, nil
}

// RecordEvaluation persists one rule evaluation with arbitrary context.
func (s *Store) RecordEvaluation(ruleID string, violated bool, context map[string]any) error {
	ctx := "{}"
	if len(context) > 0 {
		b, err := json.Marshal(context)
		if err != nil {
			return fmt.Errorf("record evaluation: marshal context: %w", err)
		}
		ctx = string(b)
	}
	if _, err := s.db.Exec(
		"INSERT INTO rule_evaluations (rule_id, violated, context, evaluated_at) VALUES (?, ?, ?, ?)",
		ruleID, violated, ctx, time.Now(),
	); err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	return nil
}

// EvaluationsByRule returns the most recent evaluations for a rule,
// newest first, capped at limit.
func (s *Store) EvaluationsByRule(ruleID string, limit int) ([]*RuleEvaluation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, rule_id, violated, context, evaluated_at
		 FROM rule_evaluations WHERE rule_id = ? ORDER BY evaluated_at DESC, id DESC LIMIT ?`,
		ruleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("evaluations: %w", err)
	}
	defer rows.Close()

	var out []*RuleEvaluation
	for rows.Next() {
		ev := &RuleEvaluation{}
		var ctx sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RuleID, &ev.Violated, &ctx, &ev.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("evaluations: scan: %w", err)
		}
		ev.Context = ctx.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanRule(row scanner) (*ObservabilityRule, error) {
	r := &ObservabilityRule{}
	var threshold sql.NullFloat64
	if err := row.Scan(&r.ID, &r.Condition, &threshold, &r.Action, &r.Enabled); err != nil {
		return nil, err
	}
	if threshold.Valid {
		v := threshold.Float64
		r.Threshold = &v
	}
	return r, nil
}
