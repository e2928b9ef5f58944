package graph

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"
)

// Kind classifies a code graph node.
type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindClass    Kind = "class"
	KindModule   Kind = "module"
)

// EdgeCalls is the edge type for caller -> callee relationships.
const EdgeCalls = "calls"

// Node is a code entity in the current graph snapshot.
//
// Two identity keys exist on purpose: ID changes whenever the node's
// position or signature changes, StableID survives signature and body
// edits and is the durable key used for annotations and drift.
type Node struct {
	ID            string
	StableID      string
	Kind          Kind
	Name          string
	FilePath      string
	Signature     string
	ContentHash   string
	Exported      bool
	Description   string
	SourcePreview string
	StartLine     int
	StartCol      int
}

// Edge is a typed relationship between two nodes in the same snapshot.
// The graph is a directed multigraph: self-loops and parallel edges at
// different call sites are allowed.
type Edge struct {
	Source string // node ID
	Target string // node ID
	Type   string
	Line   int
	Col    int
}

// NodeID computes the position/signature-sensitive identity key.
func NodeID(filePath string, kind Kind, name string, startLine int, signature string) string {
	return shortHash(fmt.Sprintf("%s|%s|%s|%d|%s", filePath, kind, name, startLine, signature))
}

// StableNodeID computes the durable identity key from path, kind, and
// name only.
func StableNodeID(filePath string, kind Kind, name string) string {
	return shortHash(fmt.Sprintf("%s|%s|%s", filePath, kind, name))
}

// shortHash returns the first 16 hex chars of a BLAKE3 hash.
func shortHash(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
