package invariant

import (
	"fmt"
	"log/slog"

	"github.com/jward/vigil/internal/graph"
	"github.com/jward/vigil/internal/store"
)

// RuleResult is one rule's evaluation outcome.
type RuleResult struct {
	RuleID     string
	Violated   bool
	Violations []Violation
}

// Summary partitions the catalog into violated and passed rules.
type Summary struct {
	Violated []*RuleResult
	Passed   []*RuleResult
}

// Engine evaluates the rule catalog against a graph and store. Rules
// are stateless with respect to each other; evaluation order carries
// no meaning.
type Engine struct {
	graph *graph.Graph
	store *store.Store
	log   *slog.Logger
}

func NewEngine(g *graph.Graph, st *store.Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{graph: g, store: st, log: log}
}

// Seed inserts the catalog rows into the store. Existing rows keep
// their enabled flag and threshold.
func (e *Engine) Seed() error {
	return e.store.SeedRules(SeedRows())
}

// Check evaluates one rule by id and persists the evaluation. The
// threshold comes from the stored rule row when set, falling back to
// the catalog default.
func (e *Engine) Check(id string) (*RuleResult, error) {
	for _, r := range catalog {
		if r.id == id {
			return e.run(r)
		}
	}
	return nil, fmt.Errorf("check invariant: unknown rule %q", id)
}

// CheckAll evaluates every enabled rule in the catalog. Disabled rules
// are skipped without an evaluation record.
func (e *Engine) CheckAll() ([]*RuleResult, error) {
	var results []*RuleResult
	for _, r := range catalog {
		row, err := e.store.RuleByID(r.id)
		if err != nil {
			return results, err
		}
		if row != nil && !row.Enabled {
			continue
		}
		res, err := e.run(r)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Summary evaluates the catalog and splits results into violated and
// passed.
func (e *Engine) Summary() (*Summary, error) {
	results, err := e.CheckAll()
	if err != nil {
		return nil, err
	}
	s := &Summary{}
	for _, res := range results {
		if res.Violated {
			s.Violated = append(s.Violated, res)
		} else {
			s.Passed = append(s.Passed, res)
		}
	}
	return s, nil
}

func (e *Engine) run(r rule) (*RuleResult, error) {
	threshold := 0.0
	if r.defaultThreshold != nil {
		threshold = *r.defaultThreshold
	}
	row, err := e.store.RuleByID(r.id)
	if err != nil {
		return nil, err
	}
	if row != nil && row.Threshold != nil {
		threshold = *row.Threshold
	}

	violations, err := r.evaluate(e, threshold)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", r.id, err)
	}

	res := &RuleResult{RuleID: r.id, Violated: len(violations) > 0, Violations: violations}
	targets := make([]string, 0, len(violations))
	for _, v := range violations {
		targets = append(targets, v.Target)
	}
	if err := e.store.RecordEvaluation(r.id, res.Violated, map[string]any{
		"violations": len(violations),
		"targets":    targets,
	}); err != nil {
		return nil, fmt.Errorf("record evaluation %s: %w", r.id, err)
	}
	if res.Violated {
		e.log.Warn("invariant violated", "rule", r.id, "violations", len(violations))
	}
	return res, nil
}

// annotatedSet returns the stable ids with a current annotation.
func (e *Engine) annotatedSet() (map[string]bool, error) {
	current, err := e.store.CurrentAnnotations()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(current))
	for _, av := range current {
		set[av.StableID] = true
	}
	return set, nil
}
