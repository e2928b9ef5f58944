package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ResolutionSuperseded marks drift resolved because a newer detection
// replaced it. At most one unresolved drift event exists per stable_id.
const ResolutionSuperseded = "superseded by new drift"

// InsertDriftEvent records a drift event. Any prior unresolved event
// for the same stable_id is resolved with ResolutionSuperseded in the
// same transaction, keeping the one-unresolved-per-identity invariant.
func (s *Store) InsertDriftEvent(ev *DriftEvent) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("insert drift: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(
		"UPDATE drift_events SET resolved_at = ?, resolution = ? WHERE stable_id = ? AND resolved_at IS NULL",
		now, ResolutionSuperseded, ev.StableID,
	); err != nil {
		return 0, fmt.Errorf("insert drift: supersede prior: %w", err)
	}

	detectedAt := ev.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = now
	}
	res, err := tx.Exec(
		`INSERT INTO drift_events (node_id, stable_id, old_content_hash, new_content_hash,
			old_annotation_id, drift_type, severity, reason, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.NodeID, ev.StableID, ev.OldContentHash, ev.NewContentHash,
		ev.OldAnnotationID, ev.DriftType, ev.Severity, ev.Reason, detectedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert drift: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert drift: id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert drift: commit: %w", err)
	}
	ev.ID = id
	ev.DetectedAt = detectedAt
	return id, nil
}

const driftCols = `id, node_id, stable_id, old_content_hash, new_content_hash,
	old_annotation_id, drift_type, severity, reason, detected_at, resolved_at, resolution`

// UnresolvedDriftByStable returns the unresolved drift event for
// stableID, or nil.
func (s *Store) UnresolvedDriftByStable(stableID string) (*DriftEvent, error) {
	row := s.db.QueryRow(
		"SELECT "+driftCols+" FROM drift_events WHERE stable_id = ? AND resolved_at IS NULL", stableID,
	)
	ev, err := scanDrift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unresolved drift: %w", err)
	}
	return ev, nil
}

// DriftEvents lists drift events, optionally restricted to unresolved
// ones, newest first.
func (s *Store) DriftEvents(onlyUnresolved bool) ([]*DriftEvent, error) {
	q := "SELECT " + driftCols + " FROM drift_events"
	if onlyUnresolved {
		q += " WHERE resolved_at IS NULL"
	}
	q += " ORDER BY detected_at DESC, id DESC"
	return s.queryDrift(q)
}

// DriftBySeverity lists drift events of one severity, optionally only
// unresolved ones.
func (s *Store) DriftBySeverity(severity string, onlyUnresolved bool) ([]*DriftEvent, error) {
	q := "SELECT " + driftCols + " FROM drift_events WHERE severity = ?"
	if onlyUnresolved {
		q += " AND resolved_at IS NULL"
	}
	q += " ORDER BY detected_at DESC, id DESC"
	return s.queryDrift(q, severity)
}

// DriftByStable lists all drift events recorded for stableID, newest
// first.
func (s *Store) DriftByStable(stableID string) ([]*DriftEvent, error) {
	return s.queryDrift(
		"SELECT "+driftCols+" FROM drift_events WHERE stable_id = ? ORDER BY detected_at DESC, id DESC",
		stableID,
	)
}

// ResolveDrift marks one drift event resolved. Resolving an already
// resolved or unknown id is a no-op and returns false.
func (s *Store) ResolveDrift(id int64, resolution string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE drift_events SET resolved_at = ?, resolution = ? WHERE id = ? AND resolved_at IS NULL",
		time.Now(), resolution, id,
	)
	if err != nil {
		return false, fmt.Errorf("resolve drift: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve drift: rows: %w", err)
	}
	return n > 0, nil
}

// ResolveDriftForStable resolves all unresolved drift for stableID and
// returns how many events were resolved.
func (s *Store) ResolveDriftForStable(stableID, resolution string) (int64, error) {
	res, err := s.db.Exec(
		"UPDATE drift_events SET resolved_at = ?, resolution = ? WHERE stable_id = ? AND resolved_at IS NULL",
		time.Now(), resolution, stableID,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve drift for stable: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryDrift(q string, args ...any) ([]*DriftEvent, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query drift: %w", err)
	}
	defer rows.Close()

	var events []*DriftEvent
	for rows.Next() {
		ev, err := scanDrift(rows)
		if err != nil {
			return nil, fmt.Errorf("query drift: scan: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanDrift(row scanner) (*DriftEvent, error) {
	ev := &DriftEvent{}
	var oldHash, reason, resolution sql.NullString
	var oldAnnID sql.NullInt64
	var resolvedAt sql.NullTime
	err := row.Scan(
		&ev.ID, &ev.NodeID, &ev.StableID, &oldHash, &ev.NewContentHash,
		&oldAnnID, &ev.DriftType, &ev.Severity, &reason, &ev.DetectedAt,
		&resolvedAt, &resolution,
	)
	if err != nil {
		return nil, err
	}
	ev.OldContentHash = oldHash.String
	ev.Reason = reason.String
	ev.Resolution = resolution.String
	if oldAnnID.Valid {
		id := oldAnnID.Int64
		ev.OldAnnotationID = &id
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		ev.ResolvedAt = &t
	}
	return ev, nil
}
