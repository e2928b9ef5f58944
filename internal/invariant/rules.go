// Package invariant evaluates codebase-wide documentation contracts
// over the code graph and the persistent store.
package invariant

import (
	"fmt"

	"github.com/jward/vigil/internal/graph"
	"github.com/jward/vigil/internal/store"
)

// Rule ids, fixed catalog.
const (
	RulePublicAPIAnnotated      = "public-api-annotated"
	RuleNoHighDriftUnannotated  = "no-high-drift-unannotated"
	RuleConceptShiftReviewed    = "concept-shift-reviewed"
	RuleCriticalPathsAnnotated  = "critical-paths-annotated"
	RuleModulesHaveSummaries    = "modules-have-summaries"
	RuleStaleAnnotationsLimited = "stale-annotations-limited"
)

// Default thresholds, overridable per rule row in the store.
const (
	defaultCriticalCallers = 5.0
	defaultModuleFunctions = 5.0
	defaultStaleRatio      = 0.2
)

// Violation is one concrete target of a violated rule.
type Violation struct {
	Target string // stable id, module path, or event reference
	Detail string
}

type rule struct {
	id               string
	condition        string
	defaultThreshold *float64
	evaluate         func(e *Engine, threshold float64) ([]Violation, error)
}

func ptr(v float64) *float64 { return &v }

var catalog = []rule{
	{
		id:        RulePublicAPIAnnotated,
		condition: "an exported function or method has no current annotation",
		evaluate: func(e *Engine, _ float64) ([]Violation, error) {
			annotated, err := e.annotatedSet()
			if err != nil {
				return nil, err
			}
			var out []Violation
			for _, n := range e.graph.AllNodes() {
				if !n.Exported || !isFunction(n.Kind) {
					continue
				}
				if !annotated[n.StableID] {
					out = append(out, Violation{
						Target: n.StableID,
						Detail: fmt.Sprintf("%s %s in %s is exported but unannotated", n.Kind, n.Name, n.FilePath),
					})
				}
			}
			return out, nil
		},
	},
	{
		id:        RuleNoHighDriftUnannotated,
		condition: "a high-severity drift event is unresolved",
		evaluate: func(e *Engine, _ float64) ([]Violation, error) {
			events, err := e.store.DriftBySeverity(store.SeverityHigh, true)
			if err != nil {
				return nil, err
			}
			var out []Violation
			for _, ev := range events {
				out = append(out, Violation{
					Target: ev.StableID,
					Detail: fmt.Sprintf("unresolved high drift (event %d): %s", ev.ID, ev.Reason),
				})
			}
			return out, nil
		},
	},
	{
		id:        RuleConceptShiftReviewed,
		condition: "an unreviewed concept shift exists",
		evaluate: func(e *Engine, _ float64) ([]Violation, error) {
			shifts, err := e.store.UnreviewedShifts()
			if err != nil {
				return nil, err
			}
			var out []Violation
			for _, cs := range shifts {
				out = append(out, Violation{
					Target: cs.StableID,
					Detail: fmt.Sprintf("unreviewed concept shift (similarity %.2f): %s", cs.Similarity, cs.Reason),
				})
			}
			return out, nil
		},
	},
	{
		id:               RuleCriticalPathsAnnotated,
		condition:        "a function with at least threshold distinct callers has no current annotation",
		defaultThreshold: ptr(defaultCriticalCallers),
		evaluate: func(e *Engine, threshold float64) ([]Violation, error) {
			annotated, err := e.annotatedSet()
			if err != nil {
				return nil, err
			}
			var out []Violation
			for nodeID, callers := range e.graph.CallerCount() {
				if float64(callers) < threshold {
					continue
				}
				n := e.graph.NodeByID(nodeID)
				if n == nil || !isFunction(n.Kind) || annotated[n.StableID] {
					continue
				}
				out = append(out, Violation{
					Target: n.StableID,
					Detail: fmt.Sprintf("%s has %d callers but no annotation", n.Name, callers),
				})
			}
			return out, nil
		},
	},
	{
		id:               RuleModulesHaveSummaries,
		condition:        "a module with at least threshold functions has no current summary",
		defaultThreshold: ptr(defaultModuleFunctions),
		evaluate: func(e *Engine, threshold float64) ([]Violation, error) {
			summarized, err := e.store.CurrentModuleAnnotations()
			if err != nil {
				return nil, err
			}
			have := make(map[string]bool, len(summarized))
			for _, ma := range summarized {
				have[ma.ModulePath] = true
			}
			var out []Violation
			for _, st := range e.graph.GetModuleGraph() {
				if float64(st.FunctionCount) < threshold || have[st.Path] {
					continue
				}
				out = append(out, Violation{
					Target: st.Path,
					Detail: fmt.Sprintf("module has %d functions but no summary", st.FunctionCount),
				})
			}
			return out, nil
		},
	},
	{
		id:               RuleStaleAnnotationsLimited,
		condition:        "the stale fraction of annotated functions exceeds threshold",
		defaultThreshold: ptr(defaultStaleRatio),
		evaluate: func(e *Engine, threshold float64) ([]Violation, error) {
			liveHashes := e.graph.CurrentHashesByStable()
			current, err := e.store.CurrentAnnotations()
			if err != nil {
				return nil, err
			}
			// Only identities with a live node count toward the ratio.
			total, stale := 0, 0
			for _, av := range current {
				live, ok := liveHashes[av.StableID]
				if !ok {
					continue
				}
				total++
				if live != av.ContentHash {
					stale++
				}
			}
			if total == 0 {
				return nil, nil
			}
			ratio := float64(stale) / float64(total)
			if ratio <= threshold {
				return nil, nil
			}
			return []Violation{{
				Target: "annotations",
				Detail: fmt.Sprintf("%d of %d annotated functions are stale (%.0f%%)", stale, total, ratio*100),
			}}, nil
		},
	},
}

func isFunction(k graph.Kind) bool {
	return k == graph.KindFunction || k == graph.KindMethod
}

// SeedRows returns the catalog as store rows for seeding, all enabled.
func SeedRows() []store.ObservabilityRule {
	rows := make([]store.ObservabilityRule, 0, len(catalog))
	for _, r := range catalog {
		rows = append(rows, store.ObservabilityRule{
			ID:        r.id,
			Condition: r.condition,
			Threshold: r.defaultThreshold,
			Action:    "warn",
			Enabled:   true,
		})
	}
	return rows
}
