// Package drift detects and classifies mismatches between a function's
// current code and the code its annotation describes.
package drift

import (
	"fmt"
	"strings"

	"github.com/jward/vigil/internal/store"
)

// Classification is the outcome of scoring one content change.
type Classification struct {
	Type     string
	Severity string
	Reason   string
}

// The scoring thresholds live in two ordered tables, first match wins.
// Keeping them as data makes each threshold testable on its own.

type typeRule struct {
	driftType string
	when      func(lines int, sigChanged bool) bool
}

var typeRules = []typeRule{
	{store.DriftSemantic, func(_ int, sig bool) bool { return sig }},
	{store.DriftImplementation, func(lines int, _ bool) bool { return lines >= 1 && lines <= 9 }},
	{store.DriftSemantic, func(lines int, _ bool) bool { return lines >= 10 }},
	// Hash changed with zero line delta: formatting or whitespace.
	{store.DriftUnknown, func(int, bool) bool { return true }},
}

type severityRule struct {
	severity string
	when     func(lines int, sigChanged bool) bool
}

var severityRules = []severityRule{
	{store.SeverityHigh, func(lines int, sig bool) bool { return lines > 50 || (sig && lines > 10) }},
	{store.SeverityMedium, func(lines int, sig bool) bool { return sig || lines > 20 }},
	{store.SeverityLow, func(int, bool) bool { return true }},
}

// Classify scores a change by total lines changed and whether the
// signature text differs. A signature change always reads as semantic;
// a large body rewrite without one is treated as a refactor until the
// delta grows past the semantic threshold.
func Classify(linesChanged int, signatureChanged bool) Classification {
	c := Classification{Reason: reasonFor(linesChanged, signatureChanged)}
	for _, r := range typeRules {
		if r.when(linesChanged, signatureChanged) {
			c.Type = r.driftType
			break
		}
	}
	for _, r := range severityRules {
		if r.when(linesChanged, signatureChanged) {
			c.Severity = r.severity
			break
		}
	}
	return c
}

func reasonFor(linesChanged int, signatureChanged bool) string {
	var parts []string
	if signatureChanged {
		parts = append(parts, "function signature changed")
	}
	if linesChanged > 0 {
		parts = append(parts, fmt.Sprintf("%d lines changed", linesChanged))
	}
	if len(parts) == 0 {
		return "content changed with no line delta"
	}
	return strings.Join(parts, ", ")
}
