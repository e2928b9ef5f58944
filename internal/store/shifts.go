package store

import (
	"database/sql"
	"fmt"
	"time"
)

// InsertConceptShift records an externally detected purpose change for
// a node. The shift detector itself lives outside this module; the
// store only holds its output for review.
func (s *Store) InsertConceptShift(nodeID, stableID string, similarity float64, reason string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO concept_shifts (node_id, stable_id, similarity, reason, detected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		nodeID, stableID, similarity, reason, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert concept shift: %w", err)
	}
	return res.LastInsertId()
}

// UnreviewedShifts returns concept shifts awaiting review, oldest
// first.
func (s *Store) UnreviewedShifts() ([]*ConceptShift, error) {
	rows, err := s.db.Query(
		`SELECT id, node_id, stable_id, similarity, reason, detected_at, reviewed_at
		 FROM concept_shifts WHERE reviewed_at IS NULL ORDER BY detected_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("unreviewed shifts: %w", err)
	}
	defer rows.Close()

	var out []*ConceptShift
	for rows.Next() {
		cs := &ConceptShift{}
		var reason sql.NullString
		var reviewedAt sql.NullTime
		if err := rows.Scan(&cs.ID, &cs.NodeID, &cs.StableID, &cs.Similarity, &reason, &cs.DetectedAt, &reviewedAt); err != nil {
			return nil, fmt.Errorf("unreviewed shifts: scan: %w", err)
		}
		cs.Reason = reason.String
		if reviewedAt.Valid {
			t := reviewedAt.Time
			cs.ReviewedAt = &t
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// MarkShiftReviewed closes a concept shift. Returns false for an
// unknown or already reviewed id.
func (s *Store) MarkShiftReviewed(id int64) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE concept_shifts SET reviewed_at = ? WHERE id = ? AND reviewed_at IS NULL",
		time.Now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark shift reviewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark shift reviewed: rows: %w", err)
	}
	return n > 0, nil
}
