package store

import "time"

// Annotation sources.
const (
	SourceHuman     = "human"
	SourceGenerated = "generated"
)

// Drift types.
const (
	DriftImplementation = "implementation"
	DriftSemantic       = "semantic"
	DriftUnknown        = "unknown"
)

// Drift severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// AnnotationVersion is one version of a node annotation. Versions are
// append-only: a save supersedes the prior current version, it never
// mutates it.
type AnnotationVersion struct {
	ID           int64
	NodeID       string
	StableID     string
	ContentHash  string // hash of the code at annotation time
	Text         string
	Source       string
	CreatedAt    time.Time
	SupersededAt *time.Time
	SupersededBy *int64
}

// ModuleAnnotation summarizes a module (directory) at a point in time,
// recording the set of its member function content hashes.
type ModuleAnnotation struct {
	ID            int64
	ModulePath    string
	Summary       string
	FunctionCount int
	ContentHashes []string
	CreatedAt     time.Time
	SupersededAt  *time.Time
}

// ModuleStaleness reports how a module's live function set diverges
// from the set captured by its current annotation.
type ModuleStaleness struct {
	ModulePath    string
	IsStale       bool
	MissingHashes []string // present at annotation time, absent now
	NewHashes     []string // present now, absent at annotation time
	CountChanged  bool
}

// DriftEvent records a detected mismatch between a node's code and its
// current annotation.
type DriftEvent struct {
	ID              int64
	NodeID          string
	StableID        string
	OldContentHash  string
	NewContentHash  string
	OldAnnotationID *int64
	DriftType       string
	Severity        string
	Reason          string
	DetectedAt      time.Time
	ResolvedAt      *time.Time
	Resolution      string
}

// TouchedFunction is a pending-review queue entry: a function edited
// since its last annotation review.
type TouchedFunction struct {
	StableID    string
	FilePath    string
	TouchedAt   time.Time
	ChangeID    *int64
	AnnotatedAt *time.Time
}

// ObservabilityRule is a codebase-wide documentation contract.
type ObservabilityRule struct {
	ID        string
	Condition string
	Threshold *float64
	Action    string
	Enabled   bool
}

// RuleEvaluation is one persisted evaluation of a rule.
type RuleEvaluation struct {
	ID          int64
	RuleID      string
	Violated    bool
	Context     string // JSON
	EvaluatedAt time.Time
}

// ConceptShift is an externally sourced signal that a function's
// purpose appears to have changed.
type ConceptShift struct {
	ID         int64
	NodeID     string
	StableID   string
	Similarity float64
	Reason     string
	DetectedAt time.Time
	ReviewedAt *time.Time
}
