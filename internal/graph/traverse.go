package graph

import "fmt"

// maxTraversalDepth caps call tree and neighborhood expansion.
const maxTraversalDepth = 100

// CallTree is a depth-bounded tree of outgoing "calls" edges rooted at
// a node. A node already on the current root-to-node path is included
// but not re-expanded, so recursive calls always produce a finite tree.
type CallTree struct {
	Node     Node
	Depth    int
	Cycle    bool // true when the node appears on its own ancestor path
	Children []*CallTree
}

// GetCallTree builds the call tree rooted at nodeID, expanding at most
// maxDepth hops. Returns nil, nil when nodeID is unknown; negative
// depth is an error.
func (g *Graph) GetCallTree(nodeID string, maxDepth int) (*CallTree, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("call tree: maxDepth must be non-negative, got %d", maxDepth)
	}
	if maxDepth > maxTraversalDepth {
		maxDepth = maxTraversalDepth
	}
	snap := g.current()
	root, ok := snap.nodesByID[nodeID]
	if !ok {
		return nil, nil
	}
	onPath := map[string]bool{nodeID: true}
	tree := expandCallTree(snap, *root, 0, maxDepth, onPath)
	return tree, nil
}

func expandCallTree(snap *snapshot, node Node, depth, maxDepth int, onPath map[string]bool) *CallTree {
	t := &CallTree{Node: node, Depth: depth}
	if depth >= maxDepth {
		return t
	}
	for _, idx := range snap.out[node.ID] {
		e := snap.edges[idx]
		if e.Type != EdgeCalls {
			continue
		}
		callee, ok := snap.nodesByID[e.Target]
		if !ok {
			continue
		}
		if onPath[callee.ID] {
			t.Children = append(t.Children, &CallTree{Node: *callee, Depth: depth + 1, Cycle: true})
			continue
		}
		onPath[callee.ID] = true
		t.Children = append(t.Children, expandCallTree(snap, *callee, depth+1, maxDepth, onPath))
		delete(onPath, callee.ID)
	}
	return t
}

// Count returns the number of nodes in the tree, including the root
// and cycle markers.
func (t *CallTree) Count() int {
	if t == nil {
		return 0
	}
	n := 1
	for _, c := range t.Children {
		n += c.Count()
	}
	return n
}

// Neighborhood is the induced subgraph of all nodes reachable within a
// bounded number of call-edge hops from a root, in either direction.
type Neighborhood struct {
	Root  string
	Nodes []Node
	Edges []Edge
}

// GetNeighborhood returns the induced subgraph of nodes within hops
// steps of nodeID in either direction, including the root and every
// edge whose endpoints are both in the set. Returns nil, nil when
// nodeID is unknown.
func (g *Graph) GetNeighborhood(nodeID string, hops int) (*Neighborhood, error) {
	if hops < 0 {
		return nil, fmt.Errorf("neighborhood: hops must be non-negative, got %d", hops)
	}
	if hops > maxTraversalDepth {
		hops = maxTraversalDepth
	}
	snap := g.current()
	if _, ok := snap.nodesByID[nodeID]; !ok {
		return nil, nil
	}

	// BFS over both adjacency maps.
	visited := map[string]int{nodeID: 0}
	queue := []string{nodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		depth := visited[id]
		if depth >= hops {
			continue
		}
		for _, idxs := range [][]int{snap.out[id], snap.in[id]} {
			for _, idx := range idxs {
				e := snap.edges[idx]
				if e.Type != EdgeCalls {
					continue
				}
				for _, next := range []string{e.Source, e.Target} {
					if _, seen := visited[next]; !seen {
						if _, ok := snap.nodesByID[next]; ok {
							visited[next] = depth + 1
							queue = append(queue, next)
						}
					}
				}
			}
		}
	}

	nb := &Neighborhood{Root: nodeID}
	for _, nodes := range orderedFiles(snap) {
		for _, id := range nodes {
			if _, ok := visited[id]; ok {
				nb.Nodes = append(nb.Nodes, *snap.nodesByID[id])
			}
		}
	}
	for _, e := range snap.edges {
		if _, okS := visited[e.Source]; !okS {
			continue
		}
		if _, okT := visited[e.Target]; !okT {
			continue
		}
		nb.Edges = append(nb.Edges, e)
	}
	return nb, nil
}
