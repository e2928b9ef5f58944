package vigil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/vigil/internal/config"
	"github.com/jward/vigil/internal/invariant"
	"github.com/jward/vigil/internal/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.DBPath = filepath.Join(t.TempDir(), "vigil.db")

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeSource(t *testing.T, e *Engine, rel, content string) {
	t.Helper()
	abs := filepath.Join(e.cfg.Root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func indexed(t *testing.T, e *Engine) *IndexResult {
	t.Helper()
	res, err := e.IndexDirectory(context.Background())
	require.NoError(t, err)
	return res
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.MaxHistory = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestIndexDirectory(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "services/auth/login.py", `
def login(user):
    return validate(user)

def validate(user):
    return user is not None
`)
	writeSource(t, e, "services/auth/README.md", "not source")
	writeSource(t, e, "node_modules/dep/index.js", "function skipped() {}")

	res := indexed(t, e)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 2, res.Nodes)
	assert.Equal(t, 1, res.Edges)

	matches := e.Search("login")
	require.Len(t, matches, 1)
	assert.Equal(t, "services/auth/login.py", matches[0].FilePath)

	stats := e.ModuleStats()
	require.Len(t, stats, 1)
	assert.Equal(t, "services/auth", stats[0].Path)
	assert.Equal(t, 2, stats[0].FunctionCount)
}

func TestIndexDirectory_IncludeRestrictedToOneLanguage(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.DBPath = filepath.Join(t.TempDir(), "vigil.db")
	cfg.Include = []string{"**/*.ts", "**/*.tsx"}

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	// Directory pruning must not drop subtrees just because the
	// includes name a subset of the supported languages.
	writeSource(t, e, "src/app.ts", "function main() {\n    start()\n}\n")
	writeSource(t, e, "src/ignored.py", "def skipped():\n    pass\n")

	res := indexed(t, e)
	assert.Equal(t, 1, res.Files)
	require.Len(t, e.Search("main"), 1)
	assert.Empty(t, e.Search("skipped"))
}

func TestAnnotateLifecycle(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "auth.py", "def login(user):\n    return user\n")
	indexed(t, e)

	node := e.Search("login")[0]

	first, err := e.Annotate(node.StableID, "authenticates a user", store.SourceHuman)
	require.NoError(t, err)
	assert.True(t, first)

	av, err := e.Annotation(node.StableID)
	require.NoError(t, err)
	require.NotNil(t, av)
	assert.Equal(t, node.ContentHash, av.ContentHash)

	// Edit the function, re-index: drift appears against the annotation.
	writeSource(t, e, "auth.py", "def login(user, mfa):\n    verify(mfa)\n    return user\n")
	indexed(t, e)

	events, err := e.DriftEvents(true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, node.StableID, events[0].StableID)
	assert.Equal(t, store.DriftSemantic, events[0].DriftType)

	queue, err := e.TouchedQueue()
	require.NoError(t, err)
	require.Len(t, queue, 1)

	// Re-annotating resolves the drift and clears the queue.
	first, err = e.Annotate(node.StableID, "authenticates a user with mfa", store.SourceHuman)
	require.NoError(t, err)
	assert.False(t, first)

	events, err = e.DriftEvents(true)
	require.NoError(t, err)
	assert.Empty(t, events)

	queue, err = e.TouchedQueue()
	require.NoError(t, err)
	assert.Empty(t, queue)

	history, err := e.AnnotationHistory(node.StableID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAnnotate_UnknownIdentity(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.Annotate("nope", "text", store.SourceHuman)
	assert.Error(t, err)
}

func TestStaleAnnotations(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "calc.py", "def add(a, b):\n    return a + b\n")
	indexed(t, e)

	node := e.Search("add")[0]
	_, err := e.Annotate(node.StableID, "adds two numbers", store.SourceGenerated)
	require.NoError(t, err)

	stale, err := e.StaleAnnotations()
	require.NoError(t, err)
	assert.Empty(t, stale)

	writeSource(t, e, "calc.py", "def add(a, b):\n    return b + a\n")
	indexed(t, e)

	stale, err = e.StaleAnnotations()
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, node.StableID, stale[0].StableID)
}

func TestModuleAnnotationStaleness(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "billing/invoice.py", "def issue():\n    pass\n\ndef void():\n    pass\n")
	indexed(t, e)

	require.NoError(t, e.AnnotateModule("billing", "invoicing"))

	st, err := e.ModuleStaleness("billing")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.False(t, st.IsStale)

	// A new function in the module flips it stale without editing the
	// existing ones.
	writeSource(t, e, "billing/invoice.py", "def issue():\n    pass\n\ndef void():\n    pass\n\ndef refund():\n    pass\n")
	indexed(t, e)

	stale, err := e.StaleModules()
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "billing", stale[0].ModulePath)
	assert.True(t, stale[0].CountChanged)
}

func TestCheckAllDrift(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "app.py", "def handler(req):\n    return req\n")
	indexed(t, e)

	node := e.Search("handler")[0]
	_, err := e.Annotate(node.StableID, "handles a request", store.SourceHuman)
	require.NoError(t, err)

	results, err := e.CheckAllDrift()
	require.NoError(t, err)
	assert.Empty(t, results)

	// Simulate an annotation made against older code.
	_, err = e.store.SaveAnnotation(node.ID, node.StableID, "stale text", "old-hash", store.SourceGenerated)
	require.NoError(t, err)

	results, err = e.CheckAllDrift()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Drifted)
}

func TestInvariantSummary(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "api.py", "def PublicEntry():\n    return 1\n")
	indexed(t, e)

	sum, err := e.InvariantSummary()
	require.NoError(t, err)
	var violatedIDs []string
	for _, r := range sum.Violated {
		violatedIDs = append(violatedIDs, r.RuleID)
	}
	assert.Contains(t, violatedIDs, invariant.RulePublicAPIAnnotated)

	node := e.Search("PublicEntry")[0]
	_, err = e.Annotate(node.StableID, "entry point", store.SourceHuman)
	require.NoError(t, err)

	res, err := e.CheckInvariant(invariant.RulePublicAPIAnnotated)
	require.NoError(t, err)
	assert.False(t, res.Violated)
}

func TestQuerySurface_Traversal(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "core.py", `
def a():
    b()

def b():
    c()

def c():
    pass
`)
	indexed(t, e)

	a := e.Search("a")[0]
	b := e.Search("b")[0]

	callees := e.Callees(a.ID)
	require.Len(t, callees, 1)
	assert.Equal(t, "b", callees[0].Name)

	callers := e.Callers(b.ID)
	require.Len(t, callers, 1)
	assert.Equal(t, "a", callers[0].Name)

	tree, err := e.CallTree(a.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, tree.Count())

	nb, err := e.Neighborhood(b.ID, 1)
	require.NoError(t, err)
	assert.Len(t, nb.Nodes, 3)

	assert.Nil(t, e.Node("unknown"))
	assert.NotNil(t, e.NodeByStableID(a.StableID))
}

func TestHistoryAndGraphSnapshot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "one.py", "def one():\n    pass\n")
	writeSource(t, e, "two.py", "def two():\n    pass\n")
	indexed(t, e)

	history := e.History()
	assert.Len(t, history, 2)

	snap := e.GetGraph()
	assert.Len(t, snap.Nodes, 2)
	assert.Empty(t, e.PendingChanges())
}

func TestPendingAnnotations(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "api.py", "def Exported():\n    pass\n\ndef _private():\n    pass\n")
	indexed(t, e)

	pending, err := e.PendingAnnotations()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Exported", pending[0].Name)

	_, err = e.Annotate(pending[0].StableID, "documented", store.SourceHuman)
	require.NoError(t, err)

	pending, err = e.PendingAnnotations()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestConceptShiftFlow(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	writeSource(t, e, "app.py", "def f():\n    pass\n")
	indexed(t, e)

	node := e.Search("f")[0]
	id, err := e.ReportConceptShift(node.StableID, 0.4, "summary diverged")
	require.NoError(t, err)

	shifts, err := e.UnreviewedConceptShifts()
	require.NoError(t, err)
	require.Len(t, shifts, 1)

	ok, err := e.ReviewConceptShift(id)
	require.NoError(t, err)
	assert.True(t, ok)
}
