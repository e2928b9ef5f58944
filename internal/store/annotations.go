package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveAnnotation inserts a new annotation version for stableID and
// supersedes the prior current version in the same transaction, so no
// two current versions for one identity are ever visible. Returns true
// when this is a first-time annotation (no current version existed).
func (s *Store) SaveAnnotation(nodeID, stableID, text, contentHash, source string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("save annotation: begin: %w", err)
	}
	defer tx.Rollback()

	var priorID int64
	hasPrior := true
	err = tx.QueryRow(
		"SELECT id FROM annotation_versions WHERE stable_id = ? AND superseded_at IS NULL", stableID,
	).Scan(&priorID)
	if err == sql.ErrNoRows {
		hasPrior = false
	} else if err != nil {
		return false, fmt.Errorf("save annotation: find current: %w", err)
	}

	now := time.Now()
	res, err := tx.Exec(
		`INSERT INTO annotation_versions (node_id, stable_id, content_hash, text, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nodeID, stableID, contentHash, text, source, now,
	)
	if err != nil {
		return false, fmt.Errorf("save annotation: insert: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("save annotation: insert id: %w", err)
	}

	if hasPrior {
		if _, err := tx.Exec(
			"UPDATE annotation_versions SET superseded_at = ?, superseded_by = ? WHERE id = ?",
			now, newID, priorID,
		); err != nil {
			return false, fmt.Errorf("save annotation: supersede: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save annotation: commit: %w", err)
	}
	return !hasPrior, nil
}

const annotationCols = "id, node_id, stable_id, content_hash, text, source, created_at, superseded_at, superseded_by"

// GetCurrentAnnotation returns the current version for stableID, or
// nil if the identity has never been annotated (or was purged).
func (s *Store) GetCurrentAnnotation(stableID string) (*AnnotationVersion, error) {
	row := s.db.QueryRow(
		"SELECT "+annotationCols+" FROM annotation_versions WHERE stable_id = ? AND superseded_at IS NULL", stableID,
	)
	av, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("current annotation: %w", err)
	}
	return av, nil
}

// GetAnnotationHistory returns all versions for stableID, newest
// first.
func (s *Store) GetAnnotationHistory(stableID string) ([]*AnnotationVersion, error) {
	rows, err := s.db.Query(
		"SELECT "+annotationCols+" FROM annotation_versions WHERE stable_id = ? ORDER BY id DESC", stableID,
	)
	if err != nil {
		return nil, fmt.Errorf("annotation history: %w", err)
	}
	defer rows.Close()

	var versions []*AnnotationVersion
	for rows.Next() {
		av, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("annotation history: scan: %w", err)
		}
		versions = append(versions, av)
	}
	return versions, rows.Err()
}

// HasAnnotation reports whether stableID has a current annotation.
func (s *Store) HasAnnotation(stableID string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM annotation_versions WHERE stable_id = ? AND superseded_at IS NULL", stableID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has annotation: %w", err)
	}
	return n > 0, nil
}

// CurrentAnnotations returns every current annotation version.
func (s *Store) CurrentAnnotations() ([]*AnnotationVersion, error) {
	rows, err := s.db.Query(
		"SELECT " + annotationCols + " FROM annotation_versions WHERE superseded_at IS NULL ORDER BY stable_id",
	)
	if err != nil {
		return nil, fmt.Errorf("current annotations: %w", err)
	}
	defer rows.Close()

	var versions []*AnnotationVersion
	for rows.Next() {
		av, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("current annotations: scan: %w", err)
		}
		versions = append(versions, av)
	}
	return versions, rows.Err()
}

// GetStaleAnnotations returns every current annotation whose recorded
// content hash no longer matches the live node's hash. Identities with
// no live node are skipped: a removed node cannot go stale.
func (s *Store) GetStaleAnnotations(currentHashesByStable map[string]string) ([]*AnnotationVersion, error) {
	current, err := s.CurrentAnnotations()
	if err != nil {
		return nil, err
	}
	var stale []*AnnotationVersion
	for _, av := range current {
		live, ok := currentHashesByStable[av.StableID]
		if ok && live != av.ContentHash {
			stale = append(stale, av)
		}
	}
	return stale, nil
}

// PurgeAnnotations deletes all versions for stableID. This is the only
// operation that removes annotation history.
func (s *Store) PurgeAnnotations(stableID string) error {
	if _, err := s.db.Exec("DELETE FROM annotation_versions WHERE stable_id = ?", stableID); err != nil {
		return fmt.Errorf("purge annotations: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row scanner) (*AnnotationVersion, error) {
	av := &AnnotationVersion{}
	var supersededAt sql.NullTime
	var supersededBy sql.NullInt64
	err := row.Scan(
		&av.ID, &av.NodeID, &av.StableID, &av.ContentHash, &av.Text, &av.Source,
		&av.CreatedAt, &supersededAt, &supersededBy,
	)
	if err != nil {
		return nil, err
	}
	if supersededAt.Valid {
		t := supersededAt.Time
		av.SupersededAt = &t
	}
	if supersededBy.Valid {
		id := supersededBy.Int64
		av.SupersededBy = &id
	}
	return av, nil
}
