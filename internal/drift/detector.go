package drift

import (
	"fmt"
	"log/slog"

	"github.com/jward/vigil/internal/store"
)

// Skip reasons returned when a change produces no drift.
const (
	SkipNoAnnotation  = "no-annotation"
	SkipHashUnchanged = "hash-unchanged"
	SkipDriftRecorded = "drift-recorded"
)

// ResolutionAnnotated marks drift resolved because a fresh annotation
// was saved for the identity.
const ResolutionAnnotated = "Annotation regenerated"

// Change is one observed content change for a node, as reported by the
// aggregator. Signatures are optional: comparison only happens when
// both sides are known.
type Change struct {
	NodeID       string
	StableID     string
	NewHash      string
	OldSignature string
	NewSignature string
	LinesAdded   int
	LinesRemoved int
}

func (c Change) linesChanged() int { return c.LinesAdded + c.LinesRemoved }

func (c Change) signatureChanged() bool {
	return c.OldSignature != "" && c.NewSignature != "" && c.OldSignature != c.NewSignature
}

// LiveNode is a graph node's current state as seen by a full sweep.
type LiveNode struct {
	NodeID    string
	StableID  string
	Hash      string
	Signature string
}

// Result of running detection on one change.
type Result struct {
	StableID string
	Drifted  bool
	Skipped  string // skip reason when Drifted is false
	Event    *store.DriftEvent
	Classification
}

// Detector scores changes against current annotations and records
// drift events.
type Detector struct {
	store *store.Store
	log   *slog.Logger
}

func NewDetector(st *store.Store, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{store: st, log: log}
}

// DetectChange runs the single-change path: skip when the identity has
// no current annotation or the hash is unchanged, otherwise classify
// and record a drift event. Recording supersedes any prior unresolved
// event for the identity.
func (d *Detector) DetectChange(ch Change) (*Result, error) {
	if ch.StableID == "" || ch.NewHash == "" {
		return nil, fmt.Errorf("detect change: missing stable id or hash")
	}

	ann, err := d.store.GetCurrentAnnotation(ch.StableID)
	if err != nil {
		return nil, fmt.Errorf("detect change: %w", err)
	}
	if ann == nil {
		return &Result{StableID: ch.StableID, Skipped: SkipNoAnnotation}, nil
	}
	if ann.ContentHash == ch.NewHash {
		return &Result{StableID: ch.StableID, Skipped: SkipHashUnchanged}, nil
	}

	cls := Classify(ch.linesChanged(), ch.signatureChanged())
	ev := &store.DriftEvent{
		NodeID:          ch.NodeID,
		StableID:        ch.StableID,
		OldContentHash:  ann.ContentHash,
		NewContentHash:  ch.NewHash,
		OldAnnotationID: &ann.ID,
		DriftType:       cls.Type,
		Severity:        cls.Severity,
		Reason:          cls.Reason,
	}
	if _, err := d.store.InsertDriftEvent(ev); err != nil {
		return nil, fmt.Errorf("detect change: %w", err)
	}

	d.log.Info("drift detected",
		"stable_id", ch.StableID,
		"type", cls.Type,
		"severity", cls.Severity,
		"reason", cls.Reason,
	)
	return &Result{StableID: ch.StableID, Drifted: true, Event: ev, Classification: cls}, nil
}

// DetectBatch applies the single-change path to each change, scored
// independently. A store failure on one change aborts the batch.
func (d *Detector) DetectBatch(changes []Change) ([]*Result, error) {
	results := make([]*Result, 0, len(changes))
	for _, ch := range changes {
		res, err := d.DetectChange(ch)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// CheckAll sweeps every annotated identity whose live hash disagrees
// with its annotation. Signature deltas come from the persisted
// last-seen signatures; line deltas are unavailable on this path, so
// hash-only mismatches classify as unknown.
func (d *Detector) CheckAll(nodes []LiveNode) ([]*Result, error) {
	persisted, err := d.store.AllSignatures()
	if err != nil {
		return nil, fmt.Errorf("check all: %w", err)
	}

	var results []*Result
	for _, n := range nodes {
		has, err := d.store.HasAnnotation(n.StableID)
		if err != nil {
			return results, fmt.Errorf("check all: %w", err)
		}
		if !has {
			continue
		}
		// An unresolved event already recorded for this exact content
		// stays in place; re-detecting here would supersede it with a
		// line-delta-free classification.
		open, err := d.store.UnresolvedDriftByStable(n.StableID)
		if err != nil {
			return results, fmt.Errorf("check all: %w", err)
		}
		if open != nil && open.NewContentHash == n.Hash {
			results = append(results, &Result{StableID: n.StableID, Skipped: SkipDriftRecorded})
			continue
		}
		res, err := d.DetectChange(Change{
			NodeID:       n.NodeID,
			StableID:     n.StableID,
			NewHash:      n.Hash,
			OldSignature: persisted[n.StableID],
			NewSignature: n.Signature,
		})
		if err != nil {
			return results, err
		}
		if res.Skipped == SkipHashUnchanged {
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// ResolveOnAnnotation resolves all unresolved drift for stableID,
// called whenever a fresh annotation is saved. Returns how many events
// were resolved.
func (d *Detector) ResolveOnAnnotation(stableID string) (int64, error) {
	n, err := d.store.ResolveDriftForStable(stableID, ResolutionAnnotated)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.log.Debug("drift resolved by annotation", "stable_id", stableID, "events", n)
	}
	return n, nil
}

// Resolve marks one drift event resolved with an operator-provided
// resolution.
func (d *Detector) Resolve(id int64, resolution string) (bool, error) {
	return d.store.ResolveDrift(id, resolution)
}
