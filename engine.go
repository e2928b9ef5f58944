package vigil

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jward/vigil/internal/aggregate"
	"github.com/jward/vigil/internal/config"
	"github.com/jward/vigil/internal/drift"
	"github.com/jward/vigil/internal/extract"
	"github.com/jward/vigil/internal/graph"
	"github.com/jward/vigil/internal/invariant"
	"github.com/jward/vigil/internal/store"
	"github.com/jward/vigil/internal/watch"
)

// Engine wires the analysis pipeline: config, store, graph, extractor,
// aggregator, drift detector, and invariant engine. All query access
// goes through Engine methods.
type Engine struct {
	cfg        *config.Config
	store      *store.Store
	graph      *graph.Graph
	extractor  *extract.Extractor
	detector   *drift.Detector
	invariants *invariant.Engine
	agg        *aggregate.Aggregator
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used by all components.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine backed by the SQLite database named in cfg.
// The rule catalog is seeded on creation; existing rule rows keep
// their operator edits.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vigil: config: %w", err)
	}

	e := &Engine{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	s, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("vigil: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("vigil: migrate: %w", err)
	}

	e.store = s
	e.graph = graph.New()
	e.extractor = extract.New(e.log)
	e.detector = drift.NewDetector(s, e.log)
	e.invariants = invariant.NewEngine(e.graph, s, e.log)
	e.agg = aggregate.New(cfg, e.graph, s, e.extractor, e.detector, e.log)

	if err := e.invariants.Seed(); err != nil {
		s.Close()
		return nil, fmt.Errorf("vigil: seed rules: %w", err)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Events exposes the aggregator's event stream.
func (e *Engine) Events() <-chan aggregate.Event {
	return e.agg.Events()
}

// IndexResult summarizes a one-shot indexing run.
type IndexResult struct {
	Files    int
	Nodes    int
	Edges    int
	Duration time.Duration
}

// IndexDirectory walks the configured root and analyzes every tracked
// source file. Files that fail to read or parse are logged and
// skipped; the rest of the run continues.
func (e *Engine) IndexDirectory(ctx context.Context) (*IndexResult, error) {
	start := time.Now()
	res := &IndexResult{}

	err := filepath.WalkDir(e.cfg.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(e.cfg.Root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if path != e.cfg.Root && (d.Name() == ".git" || !e.dirTracked(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.extractor.Supported(path) || !e.cfg.Tracked(rel) {
			return nil
		}
		e.agg.ProcessNow(watch.RawChange{
			Path:   rel,
			Op:     watch.OpCreate,
			Source: watch.SourceHook,
			Time:   time.Now(),
		})
		res.Files++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vigil: index %s: %w", e.cfg.Root, err)
	}

	stats := e.graph.GetStats()
	res.Nodes = stats.NodeCount
	res.Edges = stats.EdgeCount
	res.Duration = time.Since(start)
	e.log.Info("index complete", "files", res.Files, "nodes", res.Nodes,
		"edges", res.Edges, "duration", res.Duration)
	return res, nil
}

// dirTracked reports whether a directory subtree can contain tracked
// files, probing one hypothetical file per supported extension.
func (e *Engine) dirTracked(rel string) bool {
	probe := rel + "/x"
	for _, ext := range extract.Extensions() {
		if e.cfg.Tracked(probe + ext) {
			return true
		}
	}
	return false
}

// Watch runs the filesystem watcher and feeds the aggregator until ctx
// is canceled. Changes still pending at cancellation are flushed.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := watch.NewWatcher(e.cfg.Root, e.cfg.Tracked, e.log)
	if err != nil {
		return fmt.Errorf("vigil: %w", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	for {
		select {
		case ch, ok := <-w.Changes():
			if !ok {
				e.agg.Flush()
				return <-errc
			}
			e.agg.Notify(ch)
		case <-ctx.Done():
			// Drain whatever the watcher already queued, then flush.
			for {
				select {
				case ch, ok := <-w.Changes():
					if !ok {
						e.agg.Flush()
						return ctx.Err()
					}
					e.agg.Notify(ch)
				default:
					e.agg.Flush()
					<-errc
					return ctx.Err()
				}
			}
		}
	}
}

// NotifyChange ingests an externally sourced change event, e.g. from
// an editor hook.
func (e *Engine) NotifyChange(path string, op watch.Op) {
	e.agg.Notify(watch.RawChange{Path: path, Op: op, Source: watch.SourceHook, Time: time.Now()})
}
