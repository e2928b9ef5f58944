// Package graph maintains the in-memory code graph: nodes and call
// edges for the current analysis snapshot, with identity-stable lookup
// and traversal queries.
//
// Mutation is atomic per file: ReplaceFile swaps in a fully rebuilt
// snapshot, so concurrent readers never observe a half-updated graph.
// All history (annotations, drift, summaries) lives in the persistent
// store, not here.
package graph

import (
	"sort"
	"sync"
)

// fileEntry holds the parsed contents of one file.
type fileEntry struct {
	nodes []Node
	edges []Edge
}

// snapshot is an immutable view of the whole graph. Built on every
// mutation, read without locks once obtained.
type snapshot struct {
	nodesByID     map[string]*Node
	nodesByStable map[string]*Node
	nodeIDsByFile map[string][]string
	edges         []Edge
	out           map[string][]int // node ID -> indices into edges
	in            map[string][]int
}

// Graph is the current code graph. Safe for concurrent use; writes are
// serialized, reads operate on the snapshot current at call time.
type Graph struct {
	mu    sync.RWMutex
	files map[string]fileEntry
	snap  *snapshot
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		files: make(map[string]fileEntry),
		snap:  buildSnapshot(nil),
	}
}

// ReplaceFile atomically replaces all nodes and edges previously
// extracted from filePath with the given set. Passing empty slices
// clears the file without removing its entry.
func (g *Graph) ReplaceFile(filePath string, nodes []Node, edges []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[filePath] = fileEntry{nodes: nodes, edges: edges}
	g.snap = buildSnapshot(g.files)
}

// RemoveFile drops all nodes and edges belonging to filePath.
// Removing an untracked file is a no-op.
func (g *Graph) RemoveFile(filePath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.files[filePath]; !ok {
		return
	}
	delete(g.files, filePath)
	g.snap = buildSnapshot(g.files)
}

// current returns the snapshot in effect at call time.
func (g *Graph) current() *snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

func buildSnapshot(files map[string]fileEntry) *snapshot {
	s := &snapshot{
		nodesByID:     make(map[string]*Node),
		nodesByStable: make(map[string]*Node),
		nodeIDsByFile: make(map[string][]string),
		out:           make(map[string][]int),
		in:            make(map[string][]int),
	}
	// Deterministic order keeps AllNodes/AllEdges stable across builds.
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		entry := files[path]
		for i := range entry.nodes {
			n := entry.nodes[i]
			s.nodesByID[n.ID] = &n
			s.nodesByStable[n.StableID] = &n
			s.nodeIDsByFile[path] = append(s.nodeIDsByFile[path], n.ID)
		}
		for _, e := range entry.edges {
			idx := len(s.edges)
			s.edges = append(s.edges, e)
			s.out[e.Source] = append(s.out[e.Source], idx)
			s.in[e.Target] = append(s.in[e.Target], idx)
		}
	}
	return s
}

// NodeByID returns the node with the given ID, or nil if absent.
func (g *Graph) NodeByID(id string) *Node {
	if n, ok := g.current().nodesByID[id]; ok {
		cp := *n
		return &cp
	}
	return nil
}

// NodeByStableID returns the current node for a stable identity, or
// nil if no node with that identity exists in the snapshot.
func (g *Graph) NodeByStableID(stableID string) *Node {
	if n, ok := g.current().nodesByStable[stableID]; ok {
		cp := *n
		return &cp
	}
	return nil
}

// AllNodes returns every node in the current snapshot.
func (g *Graph) AllNodes() []Node {
	snap := g.current()
	nodes := make([]Node, 0, len(snap.nodesByID))
	for _, ids := range orderedFiles(snap) {
		for _, id := range ids {
			nodes = append(nodes, *snap.nodesByID[id])
		}
	}
	return nodes
}

// AllEdges returns every edge in the current snapshot.
func (g *Graph) AllEdges() []Edge {
	snap := g.current()
	edges := make([]Edge, len(snap.edges))
	copy(edges, snap.edges)
	return edges
}

// NodesByFile returns the nodes extracted from filePath, in extraction
// order.
func (g *Graph) NodesByFile(filePath string) []Node {
	snap := g.current()
	ids := snap.nodeIDsByFile[filePath]
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, *snap.nodesByID[id])
	}
	return nodes
}

// FindCallers returns the direct callers of nodeID (one hop along
// incoming "calls" edges). Unknown IDs yield an empty result.
func (g *Graph) FindCallers(nodeID string) []Node {
	snap := g.current()
	return snap.neighbors(nodeID, snap.in, func(e Edge) string { return e.Source })
}

// FindCallees returns the direct callees of nodeID (one hop along
// outgoing "calls" edges).
func (g *Graph) FindCallees(nodeID string) []Node {
	snap := g.current()
	return snap.neighbors(nodeID, snap.out, func(e Edge) string { return e.Target })
}

// neighbors resolves one-hop neighbor nodes, deduplicated, in edge
// order.
func (s *snapshot) neighbors(nodeID string, adj map[string][]int, pick func(Edge) string) []Node {
	seen := make(map[string]bool)
	var nodes []Node
	for _, idx := range adj[nodeID] {
		e := s.edges[idx]
		if e.Type != EdgeCalls {
			continue
		}
		id := pick(e)
		if seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := s.nodesByID[id]; ok {
			nodes = append(nodes, *n)
		}
	}
	return nodes
}

// CallerCount returns the number of distinct direct callers per callee
// node ID, across the whole snapshot.
func (g *Graph) CallerCount() map[string]int {
	snap := g.current()
	counts := make(map[string]int)
	for target, idxs := range snap.in {
		seen := make(map[string]bool)
		for _, idx := range idxs {
			e := snap.edges[idx]
			if e.Type == EdgeCalls && !seen[e.Source] {
				seen[e.Source] = true
				counts[target]++
			}
		}
	}
	return counts
}

// Stats summarizes the current snapshot.
type Stats struct {
	NodesByKind map[Kind]int
	NodeCount   int
	EdgeCount   int
	FileCount   int
}

// GetStats returns node counts by kind plus edge and file totals.
func (g *Graph) GetStats() Stats {
	snap := g.current()
	st := Stats{NodesByKind: make(map[Kind]int)}
	for _, n := range snap.nodesByID {
		st.NodesByKind[n.Kind]++
		st.NodeCount++
	}
	st.EdgeCount = len(snap.edges)
	st.FileCount = len(snap.nodeIDsByFile)
	return st
}

func orderedFiles(snap *snapshot) [][]string {
	paths := make([]string, 0, len(snap.nodeIDsByFile))
	for p := range snap.nodeIDsByFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([][]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, snap.nodeIDsByFile[p])
	}
	return out
}
