package graph

import (
	"path/filepath"
	"sort"
	"strings"
)

// SearchNodes returns nodes whose name matches query, ranked with
// exact-name matches before substring matches. Matching is
// case-insensitive; within each class results are ordered by
// (name, filePath) for determinism. An empty query matches nothing.
func (g *Graph) SearchNodes(query string) []Node {
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)

	var exact, partial []Node
	for _, n := range g.AllNodes() {
		name := strings.ToLower(n.Name)
		switch {
		case name == q:
			exact = append(exact, n)
		case strings.Contains(name, q):
			partial = append(partial, n)
		}
	}
	sortNodes(exact)
	sortNodes(partial)
	return append(exact, partial...)
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].FilePath < nodes[j].FilePath
	})
}

// ModuleStat aggregates per-directory node counts.
type ModuleStat struct {
	Path          string // directory path, "." for root files
	FunctionCount int    // functions and methods
	NodeCount     int
	FileCount     int
}

// ModulePath returns the module path for a file: its directory, with
// "." for files at the root.
func ModulePath(filePath string) string {
	return filepath.Dir(filePath)
}

// GetModuleGraph aggregates the snapshot per directory, sorted by
// module path.
func (g *Graph) GetModuleGraph() []ModuleStat {
	snap := g.current()
	byModule := make(map[string]*ModuleStat)
	for path, ids := range snap.nodeIDsByFile {
		mod := ModulePath(path)
		st, ok := byModule[mod]
		if !ok {
			st = &ModuleStat{Path: mod}
			byModule[mod] = st
		}
		st.FileCount++
		for _, id := range ids {
			n := snap.nodesByID[id]
			st.NodeCount++
			if n.Kind == KindFunction || n.Kind == KindMethod {
				st.FunctionCount++
			}
		}
	}
	stats := make([]ModuleStat, 0, len(byModule))
	for _, st := range byModule {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Path < stats[j].Path })
	return stats
}

// FunctionHashesByModule returns, per module path, the content hashes
// of its function and method nodes. Used for module annotation
// staleness checks.
func (g *Graph) FunctionHashesByModule() map[string][]string {
	snap := g.current()
	out := make(map[string][]string)
	for path, ids := range snap.nodeIDsByFile {
		mod := ModulePath(path)
		for _, id := range ids {
			n := snap.nodesByID[id]
			if n.Kind == KindFunction || n.Kind == KindMethod {
				out[mod] = append(out[mod], n.ContentHash)
			}
		}
	}
	for _, hashes := range out {
		sort.Strings(hashes)
	}
	return out
}

// CurrentHashesByStable returns the live content hash per stableId for
// every function and method node. Used for annotation staleness.
func (g *Graph) CurrentHashesByStable() map[string]string {
	snap := g.current()
	out := make(map[string]string)
	for _, n := range snap.nodesByStable {
		if n.Kind == KindFunction || n.Kind == KindMethod {
			out[n.StableID] = n.ContentHash
		}
	}
	return out
}
