package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/vigil/internal/store"
)

func TestClassify_DecisionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		lines        int
		sigChanged   bool
		wantType     string
		wantSeverity string
	}{
		{"no delta no sig", 0, false, store.DriftUnknown, store.SeverityLow},
		{"small edit", 1, false, store.DriftImplementation, store.SeverityLow},
		{"largest implementation", 9, false, store.DriftImplementation, store.SeverityLow},
		{"smallest semantic by lines", 10, false, store.DriftSemantic, store.SeverityLow},
		{"medium by line count", 21, false, store.DriftSemantic, store.SeverityMedium},
		{"high by line count", 51, false, store.DriftSemantic, store.SeverityHigh},
		{"sig only", 0, true, store.DriftSemantic, store.SeverityMedium},
		{"sig with small body edit", 10, true, store.DriftSemantic, store.SeverityMedium},
		{"sig with body rewrite", 11, true, store.DriftSemantic, store.SeverityHigh},
		{"sig with large rewrite", 60, true, store.DriftSemantic, store.SeverityHigh},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Classify(tt.lines, tt.sigChanged)
			assert.Equal(t, tt.wantType, c.Type)
			assert.Equal(t, tt.wantSeverity, c.Severity)
			assert.NotEmpty(t, c.Reason)
		})
	}
}

func TestClassify_SeverityMonotonicInLines(t *testing.T) {
	t.Parallel()

	rank := map[string]int{
		store.SeverityLow:    0,
		store.SeverityMedium: 1,
		store.SeverityHigh:   2,
	}
	for _, sig := range []bool{false, true} {
		prev := 0
		for lines := 0; lines <= 100; lines++ {
			cur := rank[Classify(lines, sig).Severity]
			assert.GreaterOrEqual(t, cur, prev, "severity dropped at lines=%d sig=%v", lines, sig)
			prev = cur
		}
	}
}

func TestClassify_Reason(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "function signature changed, 34 lines changed", Classify(34, true).Reason)
	assert.Equal(t, "5 lines changed", Classify(5, false).Reason)
	assert.Equal(t, "content changed with no line delta", Classify(0, false).Reason)
}
