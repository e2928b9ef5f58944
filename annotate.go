package vigil

import (
	"fmt"

	"github.com/jward/vigil/internal/store"
)

// Annotate saves a new annotation version for the identity's current
// node, resolves any outstanding drift, and clears the touched queue
// entry. Returns true for a first-time annotation.
func (e *Engine) Annotate(stableID, text, source string) (bool, error) {
	n := e.graph.NodeByStableID(stableID)
	if n == nil {
		return false, fmt.Errorf("vigil: annotate: no live node for %s", stableID)
	}
	first, err := e.store.SaveAnnotation(n.ID, n.StableID, text, n.ContentHash, source)
	if err != nil {
		return false, fmt.Errorf("vigil: annotate: %w", err)
	}
	if _, err := e.detector.ResolveOnAnnotation(stableID); err != nil {
		return first, fmt.Errorf("vigil: annotate: resolve drift: %w", err)
	}
	if _, err := e.store.ClearTouched(stableID); err != nil {
		return first, fmt.Errorf("vigil: annotate: clear touched: %w", err)
	}
	return first, nil
}

// Annotation returns the current annotation for a stable identity, or
// nil.
func (e *Engine) Annotation(stableID string) (*store.AnnotationVersion, error) {
	return e.store.GetCurrentAnnotation(stableID)
}

// AnnotationHistory returns every version for a stable identity,
// newest first.
func (e *Engine) AnnotationHistory(stableID string) ([]*store.AnnotationVersion, error) {
	return e.store.GetAnnotationHistory(stableID)
}

// AnnotateModule saves a summary for a module, capturing the set of
// its current member function hashes for staleness checks.
func (e *Engine) AnnotateModule(modulePath, summary string) error {
	hashes := e.graph.FunctionHashesByModule()[modulePath]
	if hashes == nil {
		return fmt.Errorf("vigil: annotate module: no functions in %s", modulePath)
	}
	if err := e.store.SaveModuleAnnotation(modulePath, summary, hashes); err != nil {
		return fmt.Errorf("vigil: annotate module: %w", err)
	}
	return nil
}

// ModuleAnnotation returns the current summary for a module, or nil.
func (e *Engine) ModuleAnnotation(modulePath string) (*store.ModuleAnnotation, error) {
	return e.store.GetCurrentModuleAnnotation(modulePath)
}

// ModuleStaleness compares a module's live function hash set against
// its summary. Returns nil when the module has no summary.
func (e *Engine) ModuleStaleness(modulePath string) (*store.ModuleStaleness, error) {
	return e.store.CheckModuleStaleness(modulePath, e.graph.FunctionHashesByModule()[modulePath])
}

// StaleModules returns staleness reports for every summarized module
// whose live function set diverged.
func (e *Engine) StaleModules() ([]*store.ModuleStaleness, error) {
	summarized, err := e.store.CurrentModuleAnnotations()
	if err != nil {
		return nil, err
	}
	byModule := e.graph.FunctionHashesByModule()
	var stale []*store.ModuleStaleness
	for _, ma := range summarized {
		st, err := e.store.CheckModuleStaleness(ma.ModulePath, byModule[ma.ModulePath])
		if err != nil {
			return nil, err
		}
		if st != nil && st.IsStale {
			stale = append(stale, st)
		}
	}
	return stale, nil
}

// ReportConceptShift records an externally detected purpose change for
// a node, feeding the concept-shift-reviewed invariant.
func (e *Engine) ReportConceptShift(stableID string, similarity float64, reason string) (int64, error) {
	nodeID := stableID
	if n := e.graph.NodeByStableID(stableID); n != nil {
		nodeID = n.ID
	}
	return e.store.InsertConceptShift(nodeID, stableID, similarity, reason)
}

// ReviewConceptShift marks a concept shift reviewed.
func (e *Engine) ReviewConceptShift(id int64) (bool, error) {
	return e.store.MarkShiftReviewed(id)
}

// UnreviewedConceptShifts lists shifts awaiting review, oldest first.
func (e *Engine) UnreviewedConceptShifts() ([]*store.ConceptShift, error) {
	return e.store.UnreviewedShifts()
}
