// Package vigil keeps code and its documentation honest: it maintains
// an in-memory call graph of a codebase, versions annotations for
// every function in SQLite, and detects drift whenever code changes
// out from under its annotation.
//
// # Pipeline
//
// Vigil watches a project root (or indexes it once) and, per changed
// file:
//
//  1. Debounce: bursts of edits to one file collapse into a single
//     re-analysis.
//  2. Extract: parse the file with tree-sitter and emit function,
//     method, and class nodes plus intra-file call edges.
//  3. Replace: atomically swap the file's entries in the code graph.
//  4. Detect: classify drift for every annotated function whose
//     content hash changed, and queue touched functions for review.
//
// # Usage
//
// Create an Engine from a config, index, and query:
//
//	e, err := vigil.New(config.Default())
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	res, err := e.IndexDirectory(ctx)
//	summary, err := e.InvariantSummary()
//
// Watch mode runs the filesystem watcher and the aggregator until the
// context is canceled:
//
//	err = e.Watch(ctx)
//
// # Identity
//
// Every node carries two keys: ID, sensitive to position and
// signature, and StableID, derived from path, kind, and name only.
// Annotations, drift events, and the touched queue all key on
// StableID so history survives signature and body edits.
package vigil
