package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/vigil/internal/graph"
)

func extractSrc(t *testing.T, path, src string) *Result {
	t.Helper()
	res, err := New(nil).ExtractFile(context.Background(), path, []byte(src))
	require.NoError(t, err)
	return res
}

func nodeByName(t *testing.T, res *Result, name string) graph.Node {
	t.Helper()
	for _, n := range res.Nodes {
		if n.Name == name {
			return n
		}
	}
	t.Fatalf("no node named %s", name)
	return graph.Node{}
}

func TestExtractFile_Unsupported(t *testing.T) {
	t.Parallel()
	_, err := New(nil).ExtractFile(context.Background(), "notes.txt", []byte("hello"))
	assert.Error(t, err)
}

func TestExtractFile_Python(t *testing.T) {
	t.Parallel()
	src := `
class Session:
    """Holds an authenticated session."""

    def refresh(self):
        validate(self.token)

def validate(token):
    """Checks token expiry."""
    return token is not None

def _internal():
    pass

def login(user):
    return validate(user.token)
`
	res := extractSrc(t, "auth/session.py", src)
	assert.Equal(t, "python", res.Language)

	session := nodeByName(t, res, "Session")
	assert.Equal(t, graph.KindClass, session.Kind)
	assert.Equal(t, "Holds an authenticated session.", session.Description)

	refresh := nodeByName(t, res, "refresh")
	assert.Equal(t, graph.KindMethod, refresh.Kind)

	validate := nodeByName(t, res, "validate")
	assert.Equal(t, graph.KindFunction, validate.Kind)
	assert.True(t, validate.Exported)
	assert.Equal(t, "Checks token expiry.", validate.Description)
	assert.NotEmpty(t, validate.ContentHash)

	internal := nodeByName(t, res, "_internal")
	assert.False(t, internal.Exported)

	// Both refresh and login call validate, intra-file.
	var callers []string
	for _, e := range res.Edges {
		if e.Target == validate.ID {
			callers = append(callers, e.Source)
		}
	}
	assert.ElementsMatch(t, []string{refresh.ID, nodeByName(t, res, "login").ID}, callers)
}

func TestExtractFile_Go(t *testing.T) {
	t.Parallel()
	src := `package auth

// Login authenticates a user.
func Login(name string) error {
	return check(name)
}

func check(name string) error { return nil }

type Client struct{}

func (c *Client) Do() error { return check("x") }
`
	res := extractSrc(t, "auth/login.go", src)
	assert.Equal(t, "go", res.Language)

	login := nodeByName(t, res, "Login")
	assert.Equal(t, graph.KindFunction, login.Kind)
	assert.True(t, login.Exported)
	assert.Equal(t, "Login authenticates a user.", login.Description)
	assert.Contains(t, login.Signature, "func Login(name string) error")

	check := nodeByName(t, res, "check")
	assert.False(t, check.Exported)

	do := nodeByName(t, res, "Do")
	assert.Equal(t, graph.KindMethod, do.Kind)

	client := nodeByName(t, res, "Client")
	assert.Equal(t, graph.KindClass, client.Kind)

	var callers []string
	for _, e := range res.Edges {
		if e.Target == check.ID {
			callers = append(callers, e.Source)
		}
	}
	assert.ElementsMatch(t, []string{login.ID, do.ID}, callers)
}

func TestExtractFile_JavaScript(t *testing.T) {
	t.Parallel()
	src := `
// Formats a price for display.
function formatPrice(cents) {
  return round(cents) / 100;
}

function round(n) { return Math.round(n); }

const toLabel = (cents) => formatPrice(cents);

class Cart {
  total() {
    return formatPrice(this.cents);
  }
}
`
	res := extractSrc(t, "billing/price.js", src)

	format := nodeByName(t, res, "formatPrice")
	assert.Equal(t, graph.KindFunction, format.Kind)
	assert.Equal(t, "Formats a price for display.", format.Description)

	assert.Equal(t, graph.KindFunction, nodeByName(t, res, "toLabel").Kind)
	assert.Equal(t, graph.KindMethod, nodeByName(t, res, "total").Kind)
	assert.Equal(t, graph.KindClass, nodeByName(t, res, "Cart").Kind)

	var targets []string
	for _, e := range res.Edges {
		if e.Source == nodeByName(t, res, "total").ID {
			targets = append(targets, e.Target)
		}
	}
	assert.Contains(t, targets, format.ID)
}

func TestExtractFile_StableIDSurvivesEdits(t *testing.T) {
	t.Parallel()
	v1 := extractSrc(t, "core/util.py", "def helper(a):\n    return a\n")
	v2 := extractSrc(t, "core/util.py", "def helper(a, b):\n    return a + b\n")

	n1 := nodeByName(t, v1, "helper")
	n2 := nodeByName(t, v2, "helper")
	assert.Equal(t, n1.StableID, n2.StableID)
	assert.NotEqual(t, n1.ID, n2.ID)
	assert.NotEqual(t, n1.ContentHash, n2.ContentHash)
}

func TestExtractFile_EmptyFile(t *testing.T) {
	t.Parallel()
	res := extractSrc(t, "core/empty.py", "")
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.Edges)
}

func TestLanguageForFile(t *testing.T) {
	t.Parallel()
	for path, want := range map[string]string{
		"a/b.go": "go", "a/b.py": "python", "a/b.js": "javascript",
		"a/b.jsx": "javascript", "a/b.ts": "typescript", "a/b.tsx": "typescript",
	} {
		lang, ok := LanguageForFile(path)
		require.True(t, ok, path)
		assert.Equal(t, want, lang)
	}
	_, ok := LanguageForFile("a/b.txt")
	assert.False(t, ok)
}
