package vigil

import (
	"github.com/jward/vigil/internal/aggregate"
	"github.com/jward/vigil/internal/drift"
	"github.com/jward/vigil/internal/graph"
	"github.com/jward/vigil/internal/invariant"
	"github.com/jward/vigil/internal/store"
)

// Snapshot is a consistent view of the whole code graph.
type Snapshot struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// GetGraph returns the current graph snapshot.
func (e *Engine) GetGraph() *Snapshot {
	return &Snapshot{Nodes: e.graph.AllNodes(), Edges: e.graph.AllEdges()}
}

// Node returns a node by its position-sensitive ID, or nil.
func (e *Engine) Node(id string) *graph.Node {
	return e.graph.NodeByID(id)
}

// NodeByStableID returns the current node for a stable identity, or
// nil.
func (e *Engine) NodeByStableID(stableID string) *graph.Node {
	return e.graph.NodeByStableID(stableID)
}

// Callers returns the direct callers of a node.
func (e *Engine) Callers(nodeID string) []graph.Node {
	return e.graph.FindCallers(nodeID)
}

// Callees returns the direct callees of a node.
func (e *Engine) Callees(nodeID string) []graph.Node {
	return e.graph.FindCallees(nodeID)
}

// CallTree expands callees from a root to the given depth. Cycles are
// flagged and not expanded.
func (e *Engine) CallTree(nodeID string, depth int) (*graph.CallTree, error) {
	return e.graph.GetCallTree(nodeID, depth)
}

// Neighborhood returns the induced subgraph within hops call-edge hops
// of a root, in either direction.
func (e *Engine) Neighborhood(nodeID string, hops int) (*graph.Neighborhood, error) {
	return e.graph.GetNeighborhood(nodeID, hops)
}

// Search finds nodes by name, exact matches first.
func (e *Engine) Search(query string) []graph.Node {
	return e.graph.SearchNodes(query)
}

// ModuleStats aggregates node counts per module directory.
func (e *Engine) ModuleStats() []graph.ModuleStat {
	return e.graph.GetModuleGraph()
}

// Stats summarizes the current snapshot.
func (e *Engine) Stats() graph.Stats {
	return e.graph.GetStats()
}

// StaleAnnotations returns current annotations whose recorded hash no
// longer matches the live node.
func (e *Engine) StaleAnnotations() ([]*store.AnnotationVersion, error) {
	return e.store.GetStaleAnnotations(e.graph.CurrentHashesByStable())
}

// PendingAnnotations returns exported functions and methods without a
// current annotation.
func (e *Engine) PendingAnnotations() ([]graph.Node, error) {
	current, err := e.store.CurrentAnnotations()
	if err != nil {
		return nil, err
	}
	annotated := make(map[string]bool, len(current))
	for _, av := range current {
		annotated[av.StableID] = true
	}
	var pending []graph.Node
	for _, n := range e.graph.AllNodes() {
		if (n.Kind == graph.KindFunction || n.Kind == graph.KindMethod) && n.Exported && !annotated[n.StableID] {
			pending = append(pending, n)
		}
	}
	return pending, nil
}

// TouchedQueue returns functions edited since their last review,
// oldest first.
func (e *Engine) TouchedQueue() ([]*store.TouchedFunction, error) {
	return e.store.TouchedQueue()
}

// DriftEvents lists drift events, optionally only unresolved ones.
func (e *Engine) DriftEvents(onlyUnresolved bool) ([]*store.DriftEvent, error) {
	return e.store.DriftEvents(onlyUnresolved)
}

// DriftBySeverity lists drift events of one severity.
func (e *Engine) DriftBySeverity(severity string, onlyUnresolved bool) ([]*store.DriftEvent, error) {
	return e.store.DriftBySeverity(severity, onlyUnresolved)
}

// DriftForNode lists all drift recorded for a stable identity, newest
// first.
func (e *Engine) DriftForNode(stableID string) ([]*store.DriftEvent, error) {
	return e.store.DriftByStable(stableID)
}

// ResolveDrift marks one drift event resolved.
func (e *Engine) ResolveDrift(id int64, resolution string) (bool, error) {
	return e.detector.Resolve(id, resolution)
}

// CheckAllDrift sweeps every annotated function whose live hash
// disagrees with its annotation and records drift for each.
func (e *Engine) CheckAllDrift() ([]*drift.Result, error) {
	var live []drift.LiveNode
	for _, n := range e.graph.AllNodes() {
		if n.Kind != graph.KindFunction && n.Kind != graph.KindMethod {
			continue
		}
		live = append(live, drift.LiveNode{
			NodeID:    n.ID,
			StableID:  n.StableID,
			Hash:      n.ContentHash,
			Signature: n.Signature,
		})
	}
	return e.detector.CheckAll(live)
}

// CheckInvariant evaluates one rule by id.
func (e *Engine) CheckInvariant(id string) (*invariant.RuleResult, error) {
	return e.invariants.Check(id)
}

// InvariantSummary evaluates the full catalog and partitions the
// results.
func (e *Engine) InvariantSummary() (*invariant.Summary, error) {
	return e.invariants.Summary()
}

// History returns the recorded change events, oldest first.
func (e *Engine) History() []*aggregate.ChangeEvent {
	return e.agg.History()
}

// PendingChanges returns the paths debounced but not yet analyzed.
func (e *Engine) PendingChanges() []string {
	return e.agg.Pending()
}

// Flush forces immediate analysis of all pending files.
func (e *Engine) Flush() *aggregate.FlushResult {
	return e.agg.Flush()
}
