package aggregate

import (
	"time"

	"github.com/jward/vigil/internal/watch"
)

// EventType names an aggregator lifecycle event.
type EventType string

const (
	EventChange           EventType = "change"
	EventAnalysisStart    EventType = "analysis:start"
	EventAnalysisComplete EventType = "analysis:complete"
	EventChangeRecorded   EventType = "change:recorded"
)

// Event is one emission on the aggregator's event stream.
type Event struct {
	Type   EventType
	Path   string
	Change *ChangeEvent // set for change:recorded
	Time   time.Time
}

// ChangeEvent is one recorded file analysis: the diff against the
// prior content, the affected identities, and the drift outcome.
type ChangeEvent struct {
	ID           int64
	Path         string
	Op           watch.Op
	Source       string
	Diff         string
	LinesAdded   int
	LinesRemoved int
	Affected     []string // stable ids touched by this change
	DriftCount   int
	Content      string // raw file content, only when retention is on
	Time         time.Time
}

// FlushResult aggregates the outcome of processing pending files.
type FlushResult struct {
	Files    int
	Duration time.Duration
	Changes  []*ChangeEvent
}
