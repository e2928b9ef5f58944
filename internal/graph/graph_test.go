package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeNode builds a function node with computed identity keys.
func makeNode(file, name string, line int, sig string) Node {
	return Node{
		ID:          NodeID(file, KindFunction, name, line, sig),
		StableID:    StableNodeID(file, KindFunction, name),
		Kind:        KindFunction,
		Name:        name,
		FilePath:    file,
		Signature:   sig,
		ContentHash: "hash-" + name,
		Exported:    true,
	}
}

func callEdge(from, to Node, line int) Edge {
	return Edge{Source: from.ID, Target: to.ID, Type: EdgeCalls, Line: line}
}

func TestStableID_SurvivesSignatureChange(t *testing.T) {
	t.Parallel()
	before := makeNode("a.go", "Handle", 10, "func Handle(x int)")
	after := makeNode("a.go", "Handle", 14, "func Handle(x, y int)")

	assert.Equal(t, before.StableID, after.StableID)
	assert.NotEqual(t, before.ID, after.ID)
}

func TestReplaceFile_AtomicSwap(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "func Alpha()")
	b := makeNode("a.go", "Beta", 5, "func Beta()")
	g.ReplaceFile("a.go", []Node{a, b}, []Edge{callEdge(a, b, 2)})

	require.Len(t, g.AllNodes(), 2)
	require.Len(t, g.AllEdges(), 1)

	// Re-analysis fully replaces the file's prior nodes and edges.
	c := makeNode("a.go", "Gamma", 1, "func Gamma()")
	g.ReplaceFile("a.go", []Node{c}, nil)

	nodes := g.AllNodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, "Gamma", nodes[0].Name)
	assert.Empty(t, g.AllEdges())
	assert.Nil(t, g.NodeByID(a.ID))
}

func TestRemoveFile(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "")
	b := makeNode("b.go", "Beta", 1, "")
	g.ReplaceFile("a.go", []Node{a}, nil)
	g.ReplaceFile("b.go", []Node{b}, nil)

	g.RemoveFile("a.go")
	require.Len(t, g.AllNodes(), 1)
	assert.Equal(t, "Beta", g.AllNodes()[0].Name)

	// Removing an untracked file is a no-op.
	g.RemoveFile("missing.go")
	assert.Len(t, g.AllNodes(), 1)
}

func TestCallersAndCallees_OneHop(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "")
	b := makeNode("a.go", "Beta", 5, "")
	c := makeNode("a.go", "Gamma", 9, "")
	g.ReplaceFile("a.go", []Node{a, b, c}, []Edge{
		callEdge(a, b, 2),
		callEdge(c, b, 10),
		callEdge(b, c, 6),
	})

	callers := g.FindCallers(b.ID)
	require.Len(t, callers, 2)

	callees := g.FindCallees(a.ID)
	require.Len(t, callees, 1)
	assert.Equal(t, "Beta", callees[0].Name)

	assert.Empty(t, g.FindCallers("unknown"))
}

func TestFindCallers_DistinctDespiteParallelEdges(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "")
	b := makeNode("a.go", "Beta", 5, "")
	// Same caller at two call sites: one caller, two edges.
	g.ReplaceFile("a.go", []Node{a, b}, []Edge{callEdge(a, b, 2), callEdge(a, b, 3)})

	assert.Len(t, g.FindCallers(b.ID), 1)
	assert.Len(t, g.AllEdges(), 2)
	assert.Equal(t, map[string]int{b.ID: 1}, g.CallerCount())
}

func TestGetCallTree_CycleSafe(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "")
	b := makeNode("a.go", "Beta", 5, "")
	// Alpha -> Beta -> Alpha, plus Alpha -> Alpha self-recursion.
	g.ReplaceFile("a.go", []Node{a, b}, []Edge{
		callEdge(a, b, 2),
		callEdge(b, a, 6),
		callEdge(a, a, 3),
	})

	for _, depth := range []int{1, 5, 50} {
		tree, err := g.GetCallTree(a.ID, depth)
		require.NoError(t, err)
		require.NotNil(t, tree)
		assert.LessOrEqual(t, tree.Count(), 16, "depth %d must stay finite", depth)
	}

	shallow, err := g.GetCallTree(a.ID, 1)
	require.NoError(t, err)
	deep, err := g.GetCallTree(a.ID, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deep.Count(), shallow.Count())

	// Cycle markers are flagged and never expanded.
	var cycles int
	var walk func(*CallTree)
	walk = func(node *CallTree) {
		if node.Cycle {
			cycles++
			assert.Empty(t, node.Children, "cycle node must not be expanded")
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	walk(deep)
	assert.Positive(t, cycles)
}

func TestGetCallTree_UnknownAndNegative(t *testing.T) {
	t.Parallel()
	g := New()
	tree, err := g.GetCallTree("nope", 3)
	require.NoError(t, err)
	assert.Nil(t, tree)

	_, err = g.GetCallTree("nope", -1)
	assert.Error(t, err)
}

func TestGetNeighborhood_InducedSubgraph(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "")
	b := makeNode("a.go", "Beta", 5, "")
	c := makeNode("a.go", "Gamma", 9, "")
	d := makeNode("a.go", "Delta", 13, "")
	// Chain: Alpha -> Beta -> Gamma -> Delta.
	g.ReplaceFile("a.go", []Node{a, b, c, d}, []Edge{
		callEdge(a, b, 2),
		callEdge(b, c, 6),
		callEdge(c, d, 10),
	})

	nb, err := g.GetNeighborhood(b.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, nb)
	// One hop either direction from Beta: Alpha, Beta, Gamma.
	assert.Len(t, nb.Nodes, 3)
	assert.Len(t, nb.Edges, 2)

	nb2, err := g.GetNeighborhood(b.ID, 2)
	require.NoError(t, err)
	assert.Len(t, nb2.Nodes, 4)
	assert.Len(t, nb2.Edges, 3)

	missing, err := g.GetNeighborhood("nope", 2)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSearchNodes_ExactBeforeSubstring(t *testing.T) {
	t.Parallel()
	g := New()
	g.ReplaceFile("a.go", []Node{
		makeNode("a.go", "parse", 1, ""),
		makeNode("a.go", "parseHeader", 5, ""),
		makeNode("a.go", "reparse", 9, ""),
		makeNode("a.go", "unrelated", 13, ""),
	}, nil)

	results := g.SearchNodes("parse")
	require.Len(t, results, 3)
	assert.Equal(t, "parse", results[0].Name)
	assert.Equal(t, []string{"parseHeader", "reparse"}, []string{results[1].Name, results[2].Name})

	assert.Empty(t, g.SearchNodes(""))
}

func TestGetModuleGraph(t *testing.T) {
	t.Parallel()
	g := New()
	g.ReplaceFile("pkg/auth/login.go", []Node{
		makeNode("pkg/auth/login.go", "Login", 1, ""),
		makeNode("pkg/auth/login.go", "Logout", 9, ""),
	}, nil)
	g.ReplaceFile("main.go", []Node{makeNode("main.go", "main", 1, "")}, nil)

	mods := g.GetModuleGraph()
	require.Len(t, mods, 2)
	assert.Equal(t, ".", mods[0].Path)
	assert.Equal(t, 1, mods[0].FunctionCount)
	assert.Equal(t, "pkg/auth", mods[1].Path)
	assert.Equal(t, 2, mods[1].FunctionCount)
}

func TestGetStats(t *testing.T) {
	t.Parallel()
	g := New()
	a := makeNode("a.go", "Alpha", 1, "")
	cls := Node{
		ID: NodeID("a.go", KindClass, "Widget", 20, ""), StableID: StableNodeID("a.go", KindClass, "Widget"),
		Kind: KindClass, Name: "Widget", FilePath: "a.go",
	}
	g.ReplaceFile("a.go", []Node{a, cls}, nil)

	st := g.GetStats()
	assert.Equal(t, 2, st.NodeCount)
	assert.Equal(t, 1, st.NodesByKind[KindFunction])
	assert.Equal(t, 1, st.NodesByKind[KindClass])
	assert.Equal(t, 1, st.FileCount)
}
