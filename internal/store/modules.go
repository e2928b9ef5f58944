package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SaveModuleAnnotation inserts a new summary for modulePath and
// supersedes the prior current one in the same transaction.
func (s *Store) SaveModuleAnnotation(modulePath, summary string, contentHashes []string) error {
	hashes, err := json.Marshal(sortedCopy(contentHashes))
	if err != nil {
		return fmt.Errorf("save module annotation: marshal hashes: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save module annotation: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(
		"UPDATE module_annotations SET superseded_at = ? WHERE module_path = ? AND superseded_at IS NULL",
		now, modulePath,
	); err != nil {
		return fmt.Errorf("save module annotation: supersede: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO module_annotations (module_path, summary, function_count, content_hashes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		modulePath, summary, len(contentHashes), string(hashes), now,
	); err != nil {
		return fmt.Errorf("save module annotation: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save module annotation: commit: %w", err)
	}
	return nil
}

// GetCurrentModuleAnnotation returns the current summary for
// modulePath, or nil if none exists.
func (s *Store) GetCurrentModuleAnnotation(modulePath string) (*ModuleAnnotation, error) {
	row := s.db.QueryRow(
		`SELECT id, module_path, summary, function_count, content_hashes, created_at, superseded_at
		 FROM module_annotations WHERE module_path = ? AND superseded_at IS NULL`, modulePath,
	)
	ma, err := scanModuleAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current module annotation: %w", err)
	}
	return ma, nil
}

// CurrentModuleAnnotations returns every module's current summary.
func (s *Store) CurrentModuleAnnotations() ([]*ModuleAnnotation, error) {
	rows, err := s.db.Query(
		`SELECT id, module_path, summary, function_count, content_hashes, created_at, superseded_at
		 FROM module_annotations WHERE superseded_at IS NULL ORDER BY module_path`,
	)
	if err != nil {
		return nil, fmt.Errorf("current module annotations: %w", err)
	}
	defer rows.Close()

	var out []*ModuleAnnotation
	for rows.Next() {
		ma, err := scanModuleAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("current module annotations: scan: %w", err)
		}
		out = append(out, ma)
	}
	return out, rows.Err()
}

// CheckModuleStaleness compares the module's live function hash set
// against the set recorded by its current annotation. Staleness is set
// membership, not hash equality: adding or removing a function flags
// the module even when no existing function changed. Returns nil when
// the module has no current annotation.
func (s *Store) CheckModuleStaleness(modulePath string, liveHashes []string) (*ModuleStaleness, error) {
	ma, err := s.GetCurrentModuleAnnotation(modulePath)
	if err != nil {
		return nil, err
	}
	if ma == nil {
		return nil, nil
	}

	annotated := make(map[string]bool, len(ma.ContentHashes))
	for _, h := range ma.ContentHashes {
		annotated[h] = true
	}
	live := make(map[string]bool, len(liveHashes))
	for _, h := range liveHashes {
		live[h] = true
	}

	st := &ModuleStaleness{
		ModulePath:   modulePath,
		CountChanged: ma.FunctionCount != len(liveHashes),
	}
	for _, h := range ma.ContentHashes {
		if !live[h] {
			st.MissingHashes = append(st.MissingHashes, h)
		}
	}
	for _, h := range sortedCopy(liveHashes) {
		if !annotated[h] {
			st.NewHashes = append(st.NewHashes, h)
		}
	}
	st.IsStale = len(st.MissingHashes) > 0 || len(st.NewHashes) > 0 || st.CountChanged
	return st, nil
}

func scanModuleAnnotation(row scanner) (*ModuleAnnotation, error) {
	ma := &ModuleAnnotation{}
	var hashes string
	var supersededAt sql.NullTime
	err := row.Scan(&ma.ID, &ma.ModulePath, &ma.Summary, &ma.FunctionCount, &hashes, &ma.CreatedAt, &supersededAt)
	if err != nil {
		return nil, err
	}
	if supersededAt.Valid {
		t := supersededAt.Time
		ma.SupersededAt = &t
	}
	if err := json.Unmarshal([]byte(hashes), &ma.ContentHashes); err != nil {
		return nil, fmt.Errorf("unmarshal content hashes: %w", err)
	}
	return ma, nil
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
