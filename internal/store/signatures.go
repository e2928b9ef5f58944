package store

import (
	"database/sql"
	"fmt"
	"time"
)

// UpsertSignature records the last-seen signature for a stable
// identity. Written on every analysis so full-graph drift sweeps can
// compare signatures the same way incremental detection does.
func (s *Store) UpsertSignature(stableID, signature string) error {
	_, err := s.db.Exec(
		`INSERT INTO node_signatures (stable_id, signature, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(stable_id) DO UPDATE SET signature = excluded.signature, updated_at = excluded.updated_at`,
		stableID, signature, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upsert signature: %w", err)
	}
	return nil
}

// Signature returns the last-seen signature for stableID. The second
// return is false when none has been recorded.
func (s *Store) Signature(stableID string) (string, bool, error) {
	var sig string
	err := s.db.QueryRow("SELECT signature FROM node_signatures WHERE stable_id = ?", stableID).Scan(&sig)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("signature: %w", err)
	}
	return sig, true, nil
}

// AllSignatures returns the last-seen signature per stable identity.
func (s *Store) AllSignatures() (map[string]string, error) {
	rows, err := s.db.Query("SELECT stable_id, signature FROM node_signatures")
	if err != nil {
		return nil, fmt.Errorf("all signatures: %w", err)
	}
	defer rows.Close()

	sigs := make(map[string]string)
	for rows.Next() {
		var id, sig string
		if err := rows.Scan(&id, &sig); err != nil {
			return nil, fmt.Errorf("all signatures: scan: %w", err)
		}
		sigs[id] = sig
	}
	return sigs, rows.Err()
}

// DeleteSignature drops the recorded signature for stableID, used when
// its file is deleted.
func (s *Store) DeleteSignature(stableID string) error {
	if _, err := s.db.Exec("DELETE FROM node_signatures WHERE stable_id = ?", stableID); err != nil {
		return fmt.Errorf("delete signature: %w", err)
	}
	return nil
}
