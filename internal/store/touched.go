package store

import (
	"database/sql"
	"fmt"
	"time"
)

// MarkTouched queues stableID for review. Re-touching an entry resets
// its timestamp and clears any prior annotated_at, so a fresh edit
// re-opens a previously reviewed function.
func (s *Store) MarkTouched(stableID, filePath string, changeID *int64) error {
	_, err := s.db.Exec(
		`INSERT INTO touched_functions (stable_id, file_path, touched_at, change_id)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(stable_id) DO UPDATE SET
			file_path = excluded.file_path,
			touched_at = excluded.touched_at,
			change_id = excluded.change_id,
			annotated_at = NULL`,
		stableID, filePath, time.Now(), changeID,
	)
	if err != nil {
		return fmt.Errorf("mark touched: %w", err)
	}
	return nil
}

// TouchedQueue returns the pending-review entries (annotated_at not
// set), oldest first.
func (s *Store) TouchedQueue() ([]*TouchedFunction, error) {
	rows, err := s.db.Query(
		`SELECT stable_id, file_path, touched_at, change_id, annotated_at
		 FROM touched_functions WHERE annotated_at IS NULL ORDER BY touched_at, stable_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("touched queue: %w", err)
	}
	defer rows.Close()

	var queue []*TouchedFunction
	for rows.Next() {
		tf, err := scanTouched(rows)
		if err != nil {
			return nil, fmt.Errorf("touched queue: scan: %w", err)
		}
		queue = append(queue, tf)
	}
	return queue, rows.Err()
}

// ClearTouched marks stableID reviewed by setting annotated_at.
// Clearing an unknown identity is a no-op and returns false.
func (s *Store) ClearTouched(stableID string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE touched_functions SET annotated_at = ? WHERE stable_id = ? AND annotated_at IS NULL",
		time.Now(), stableID,
	)
	if err != nil {
		return false, fmt.Errorf("clear touched: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear touched: rows: %w", err)
	}
	return n > 0, nil
}

// RemoveTouched drops a queue entry entirely, used when a file is
// deleted.
func (s *Store) RemoveTouched(stableID string) error {
	if _, err := s.db.Exec("DELETE FROM touched_functions WHERE stable_id = ?", stableID); err != nil {
		return fmt.Errorf("remove touched: %w", err)
	}
	return nil
}

func scanTouched(row scanner) (*TouchedFunction, error) {
	tf := &TouchedFunction{}
	var changeID sql.NullInt64
	var annotatedAt sql.NullTime
	if err := row.Scan(&tf.StableID, &tf.FilePath, &tf.TouchedAt, &changeID, &annotatedAt); err != nil {
		return nil, err
	}
	if changeID.Valid {
		id := changeID.Int64
		tf.ChangeID = &id
	}
	if annotatedAt.Valid {
		t := annotatedAt.Time
		tf.AnnotatedAt = &t
	}
	return tf, nil
}
