// Package aggregate debounces raw file changes and drives re-analysis:
// parse, graph replacement, drift detection, and change history.
package aggregate

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jward/vigil/internal/config"
	"github.com/jward/vigil/internal/drift"
	"github.com/jward/vigil/internal/extract"
	"github.com/jward/vigil/internal/graph"
	"github.com/jward/vigil/internal/store"
	"github.com/jward/vigil/internal/watch"
)

const eventBuffer = 256

// pendingChange is one debounced-but-not-fired file.
type pendingChange struct {
	change watch.RawChange
	timer  *time.Timer
}

// Aggregator coalesces bursts of edits per file and re-analyzes each
// file once its debounce window closes. Timer state is shared mutable
// state; every insert, cancel, and fire holds the mutex so a reset
// never interleaves with a fire.
type Aggregator struct {
	cfg       *config.Config
	graph     *graph.Graph
	store     *store.Store
	extractor *extract.Extractor
	detector  *drift.Detector
	log       *slog.Logger

	mu       sync.Mutex
	pending  map[string]*pendingChange
	contents map[string][]byte // last analyzed content per path
	history  []*ChangeEvent
	nextID   int64

	events chan Event
}

func New(cfg *config.Config, g *graph.Graph, st *store.Store, ex *extract.Extractor, det *drift.Detector, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		cfg:       cfg,
		graph:     g,
		store:     st,
		extractor: ex,
		detector:  det,
		log:       log,
		pending:   make(map[string]*pendingChange),
		contents:  make(map[string][]byte),
		events:    make(chan Event, eventBuffer),
	}
}

// Events returns the aggregator's event stream. Emission never blocks;
// a slow consumer loses events.
func (a *Aggregator) Events() <-chan Event {
	return a.events
}

// Notify ingests one raw change. Malformed events are dropped with a
// logged reason. A change for an already pending path resets its
// debounce timer, so only the last event's deadline matters.
func (a *Aggregator) Notify(ch watch.RawChange) {
	if reason := validate(ch); reason != "" {
		a.log.Warn("dropping malformed change event", "path", ch.Path, "op", ch.Op, "reason", reason)
		return
	}
	a.emit(Event{Type: EventChange, Path: ch.Path, Time: time.Now()})

	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pending[ch.Path]; ok {
		p.timer.Stop()
		// A create followed by a modify is still a create.
		if !(p.change.Op == watch.OpCreate && ch.Op == watch.OpModify) {
			p.change.Op = ch.Op
		}
		p.change.Source = ch.Source
		p.change.Time = ch.Time
		p.timer = a.startTimer(ch.Path)
		return
	}
	a.pending[ch.Path] = &pendingChange{change: ch, timer: a.startTimer(ch.Path)}
}

func validate(ch watch.RawChange) string {
	switch {
	case ch.Path == "":
		return "empty path"
	case filepath.IsAbs(ch.Path):
		return "absolute path"
	case strings.Contains(ch.Path, ".."):
		return "path escapes root"
	case ch.Op != watch.OpCreate && ch.Op != watch.OpModify && ch.Op != watch.OpDelete:
		return "unknown op"
	case ch.Source != watch.SourceWatcher && ch.Source != watch.SourceHook:
		return "unknown source"
	}
	return ""
}

// startTimer schedules the debounce fire for path. Caller holds a.mu.
func (a *Aggregator) startTimer(path string) *time.Timer {
	return time.AfterFunc(a.cfg.Debounce(), func() { a.fire(path) })
}

// fire runs when a path's debounce window closes.
func (a *Aggregator) fire(path string) {
	a.mu.Lock()
	p, ok := a.pending[path]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, path)
	a.mu.Unlock()

	a.analyze(p.change)
}

// ProcessNow bypasses debouncing and analyzes a change immediately,
// used for one-shot indexing. Any pending debounce for the same path
// is dropped first.
func (a *Aggregator) ProcessNow(ch watch.RawChange) *ChangeEvent {
	a.mu.Lock()
	if p, ok := a.pending[ch.Path]; ok {
		p.timer.Stop()
		delete(a.pending, ch.Path)
	}
	a.mu.Unlock()
	return a.analyze(ch)
}

// Pending returns the paths debounced but not yet analyzed, sorted.
func (a *Aggregator) Pending() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	paths := make([]string, 0, len(a.pending))
	for p := range a.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Flush forces immediate processing of every pending file and returns
// the merged result.
func (a *Aggregator) Flush() *FlushResult {
	a.mu.Lock()
	due := make([]watch.RawChange, 0, len(a.pending))
	for path, p := range a.pending {
		p.timer.Stop()
		due = append(due, p.change)
		delete(a.pending, path)
	}
	a.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].Path < due[j].Path })

	start := time.Now()
	res := &FlushResult{}
	for _, ch := range due {
		if ev := a.analyze(ch); ev != nil {
			res.Changes = append(res.Changes, ev)
		}
		res.Files++
	}
	res.Duration = time.Since(start)
	return res
}

// analyze processes one due change end to end. Failures are
// recoverable: they are logged and the file is left as-is.
func (a *Aggregator) analyze(ch watch.RawChange) *ChangeEvent {
	a.emit(Event{Type: EventAnalysisStart, Path: ch.Path, Time: time.Now()})
	defer a.emit(Event{Type: EventAnalysisComplete, Path: ch.Path, Time: time.Now()})

	var ev *ChangeEvent
	if ch.Op == watch.OpDelete {
		ev = a.applyDelete(ch)
	} else {
		ev = a.applyUpdate(ch)
	}
	if ev == nil {
		return nil
	}

	a.record(ev)
	a.emit(Event{Type: EventChangeRecorded, Path: ch.Path, Change: ev, Time: ev.Time})
	return ev
}

// applyDelete removes the file from the graph. A removed node cannot
// drift, so no detection runs.
func (a *Aggregator) applyDelete(ch watch.RawChange) *ChangeEvent {
	old := a.graph.NodesByFile(ch.Path)
	a.graph.RemoveFile(ch.Path)

	var affected []string
	for _, n := range old {
		if n.Kind != graph.KindFunction && n.Kind != graph.KindMethod {
			continue
		}
		affected = append(affected, n.StableID)
		if err := a.store.DeleteSignature(n.StableID); err != nil {
			a.log.Warn("delete signature", "stable_id", n.StableID, "error", err)
		}
		if err := a.store.RemoveTouched(n.StableID); err != nil {
			a.log.Warn("remove touched", "stable_id", n.StableID, "error", err)
		}
	}

	a.mu.Lock()
	delete(a.contents, ch.Path)
	a.mu.Unlock()

	a.log.Info("file removed", "path", ch.Path, "nodes", len(old))
	return &ChangeEvent{
		Path:     ch.Path,
		Op:       watch.OpDelete,
		Source:   ch.Source,
		Affected: affected,
		Time:     time.Now(),
	}
}

// applyUpdate re-parses the file, swaps its graph entries, and runs
// drift detection for every changed function.
func (a *Aggregator) applyUpdate(ch watch.RawChange) *ChangeEvent {
	abs := filepath.Join(a.cfg.Root, filepath.FromSlash(ch.Path))
	content, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between the event and the fire.
			return a.applyDelete(ch)
		}
		a.log.Warn("read changed file", "path", ch.Path, "error", err)
		return nil
	}

	a.mu.Lock()
	prior, hadPrior := a.contents[ch.Path]
	a.mu.Unlock()
	diff, added, removed := unifiedDiff(prior, content, ch.Path, a.cfg.DiffContextLines)
	// Without a recorded prior the whole file reads as added; that is
	// no basis for scoring drift, so classification goes hash-only.
	driftAdded, driftRemoved := added, removed
	if !hadPrior {
		driftAdded, driftRemoved = 0, 0
	}

	res, err := a.extractor.ExtractFile(context.Background(), ch.Path, content)
	if err != nil {
		a.log.Warn("analysis failed", "path", ch.Path, "error", err)
		return nil
	}

	oldByStable := make(map[string]graph.Node)
	for _, n := range a.graph.NodesByFile(ch.Path) {
		oldByStable[n.StableID] = n
	}
	a.graph.ReplaceFile(ch.Path, res.Nodes, res.Edges)

	ev := &ChangeEvent{
		Path:         ch.Path,
		Op:           ch.Op,
		Source:       ch.Source,
		Diff:         diff,
		LinesAdded:   added,
		LinesRemoved: removed,
		Time:         time.Now(),
	}
	if a.cfg.RetainContent {
		ev.Content = string(content)
	}

	newStable := make(map[string]bool, len(res.Nodes))
	for _, n := range res.Nodes {
		if n.Kind != graph.KindFunction && n.Kind != graph.KindMethod {
			continue
		}
		newStable[n.StableID] = true

		old, existed := oldByStable[n.StableID]
		oldSig := old.Signature
		if !existed {
			// Fall back to the persisted signature so hook-sourced
			// changes on a cold graph still see signature deltas.
			oldSig, _, _ = a.store.Signature(n.StableID)
		}
		if err := a.store.UpsertSignature(n.StableID, n.Signature); err != nil {
			a.log.Warn("persist signature", "stable_id", n.StableID, "error", err)
		}
		if existed && old.ContentHash == n.ContentHash {
			continue
		}

		ev.Affected = append(ev.Affected, n.StableID)
		if err := a.store.MarkTouched(n.StableID, ch.Path, nil); err != nil {
			a.log.Warn("mark touched", "stable_id", n.StableID, "error", err)
		}
		// Line deltas are file-level: every changed function in the
		// file is scored with the whole file's delta.
		dres, err := a.detector.DetectChange(drift.Change{
			NodeID:       n.ID,
			StableID:     n.StableID,
			NewHash:      n.ContentHash,
			OldSignature: oldSig,
			NewSignature: n.Signature,
			LinesAdded:   driftAdded,
			LinesRemoved: driftRemoved,
		})
		if err != nil {
			a.log.Warn("drift detection", "stable_id", n.StableID, "error", err)
			continue
		}
		if dres.Drifted {
			ev.DriftCount++
		}
	}

	// Functions that vanished from the file lose their live state.
	for stable, old := range oldByStable {
		if newStable[stable] || (old.Kind != graph.KindFunction && old.Kind != graph.KindMethod) {
			continue
		}
		if err := a.store.DeleteSignature(stable); err != nil {
			a.log.Warn("delete signature", "stable_id", stable, "error", err)
		}
	}

	a.mu.Lock()
	a.contents[ch.Path] = content
	a.mu.Unlock()

	a.log.Info("file analyzed", "path", ch.Path,
		"nodes", len(res.Nodes), "affected", len(ev.Affected), "drift", ev.DriftCount)
	return ev
}

// record appends to the bounded change history.
func (a *Aggregator) record(ev *ChangeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	ev.ID = a.nextID
	a.history = append(a.history, ev)
	if limit := a.cfg.MaxHistory; len(a.history) > limit {
		a.history = a.history[len(a.history)-limit:]
	}
}

// History returns the recorded change events, oldest first.
func (a *Aggregator) History() []*ChangeEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*ChangeEvent, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Aggregator) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
	}
}

// unifiedDiff renders the change and counts added and removed lines.
func unifiedDiff(before, after []byte, path string, contextLines int) (string, int, int) {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: path,
		ToFile:   path,
		Context:  contextLines,
	})
	if err != nil {
		return "", 0, 0
	}
	added, removed := 0, 0
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return text, added, removed
}
