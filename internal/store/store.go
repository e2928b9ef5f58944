// Package store is the SQLite data access layer for vigil's persistent
// state: annotation versions, module annotations, drift events, the
// touched-function queue, observability rules, rule evaluations,
// concept shifts, and last-seen node signatures.
//
// The code graph itself is not persisted here; it lives in memory and
// is rebuilt from source. Everything keyed by stable_id or module_path
// outlives any individual graph snapshot.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS annotation_versions (
  id              INTEGER PRIMARY KEY,
  node_id         TEXT NOT NULL,
  stable_id       TEXT NOT NULL,
  content_hash    TEXT NOT NULL,
  text            TEXT NOT NULL,
  source          TEXT NOT NULL DEFAULT 'human',
  created_at      TIMESTAMP NOT NULL,
  superseded_at   TIMESTAMP,
  superseded_by   INTEGER REFERENCES annotation_versions(id)
);

CREATE TABLE IF NOT EXISTS module_annotations (
  id              INTEGER PRIMARY KEY,
  module_path     TEXT NOT NULL,
  summary         TEXT NOT NULL,
  function_count  INTEGER NOT NULL,
  content_hashes  TEXT NOT NULL,
  created_at      TIMESTAMP NOT NULL,
  superseded_at   TIMESTAMP
);

CREATE TABLE IF NOT EXISTS drift_events (
  id                INTEGER PRIMARY KEY,
  node_id           TEXT NOT NULL,
  stable_id         TEXT NOT NULL,
  old_content_hash  TEXT,
  new_content_hash  TEXT NOT NULL,
  old_annotation_id INTEGER REFERENCES annotation_versions(id),
  drift_type        TEXT NOT NULL,
  severity          TEXT NOT NULL,
  reason            TEXT,
  detected_at       TIMESTAMP NOT NULL,
  resolved_at       TIMESTAMP,
  resolution        TEXT
);

CREATE TABLE IF NOT EXISTS touched_functions (
  stable_id       TEXT PRIMARY KEY,
  file_path       TEXT NOT NULL,
  touched_at      TIMESTAMP NOT NULL,
  change_id       INTEGER,
  annotated_at    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS observability_rules (
  id              TEXT PRIMARY KEY,
  condition       TEXT NOT NULL,
  threshold       REAL,
  action          TEXT NOT NULL,
  enabled         BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS rule_evaluations (
  id              INTEGER PRIMARY KEY,
  rule_id         TEXT NOT NULL REFERENCES observability_rules(id),
  violated        BOOLEAN NOT NULL,
  context         TEXT,
  evaluated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS concept_shifts (
  id              INTEGER PRIMARY KEY,
  node_id         TEXT NOT NULL,
  stable_id       TEXT NOT NULL,
  similarity      REAL NOT NULL,
  reason          TEXT,
  detected_at     TIMESTAMP NOT NULL,
  reviewed_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS node_signatures (
  stable_id       TEXT PRIMARY KEY,
  signature       TEXT NOT NULL,
  updated_at      TIMESTAMP NOT NULL
);

-- Indexes

CREATE INDEX IF NOT EXISTS idx_annotations_stable ON annotation_versions(stable_id);
CREATE INDEX IF NOT EXISTS idx_annotations_current ON annotation_versions(stable_id) WHERE superseded_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_module_annotations_path ON module_annotations(module_path);
CREATE INDEX IF NOT EXISTS idx_module_annotations_current ON module_annotations(module_path) WHERE superseded_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_drift_stable ON drift_events(stable_id);
CREATE INDEX IF NOT EXISTS idx_drift_unresolved ON drift_events(stable_id) WHERE resolved_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_drift_severity ON drift_events(severity);
CREATE INDEX IF NOT EXISTS idx_touched_pending ON touched_functions(touched_at) WHERE annotated_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_rule_evaluations_rule ON rule_evaluations(rule_id);
CREATE INDEX IF NOT EXISTS idx_concept_shifts_unreviewed ON concept_shifts(stable_id) WHERE reviewed_at IS NULL;
`
