package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/vigil/internal/graph"
	"github.com/jward/vigil/internal/store"
)

func toCLINodes(nodes []graph.Node) []CLINode {
	out := make([]CLINode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, CLINode{
			ID:        n.ID,
			StableID:  n.StableID,
			Kind:      string(n.Kind),
			Name:      n.Name,
			File:      n.FilePath,
			Line:      n.StartLine,
			Signature: n.Signature,
			Exported:  n.Exported,
		})
	}
	return out
}

func toCLIDrift(events []*store.DriftEvent) []CLIDrift {
	out := make([]CLIDrift, 0, len(events))
	for _, ev := range events {
		out = append(out, CLIDrift{
			ID:         ev.ID,
			StableID:   ev.StableID,
			Type:       ev.DriftType,
			Severity:   ev.Severity,
			Reason:     ev.Reason,
			DetectedAt: ev.DetectedAt,
			ResolvedAt: ev.ResolvedAt,
			Resolution: ev.Resolution,
		})
	}
	return out
}

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Summarize the graph, annotation coverage, and open drift",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(args)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}

		stats := e.Stats()
		byKind := make(map[string]int, len(stats.NodesByKind))
		for k, n := range stats.NodesByKind {
			byKind[string(k)] = n
		}
		pending, err := e.PendingAnnotations()
		if err != nil {
			return err
		}
		stale, err := e.StaleAnnotations()
		if err != nil {
			return err
		}
		drift, err := e.DriftEvents(true)
		if err != nil {
			return err
		}
		touched, err := e.TouchedQueue()
		if err != nil {
			return err
		}

		st := CLIStatus{
			Files:       stats.FileCount,
			Nodes:       stats.NodeCount,
			Edges:       stats.EdgeCount,
			NodesByKind: byKind,
			Pending:     len(pending),
			Stale:       len(stale),
			Drift:       len(drift),
			Touched:     len(touched),
		}
		return output(st, func(w io.Writer) { formatStatusText(w, st) })
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find functions, methods, and classes by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(nil)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}

		nodes := toCLINodes(e.Search(args[0]))
		return output(nodes, func(w io.Writer) { formatNodesText(w, nodes) })
	},
}

var (
	flagDriftSeverity string
	flagDriftAll      bool
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Inspect and resolve annotation drift",
}

var driftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List drift events (unresolved by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(nil)
		if err != nil {
			return err
		}
		defer e.Close()

		var events []*store.DriftEvent
		if flagDriftSeverity != "" {
			events, err = e.DriftBySeverity(flagDriftSeverity, !flagDriftAll)
		} else {
			events, err = e.DriftEvents(!flagDriftAll)
		}
		if err != nil {
			return err
		}
		out := toCLIDrift(events)
		return output(out, func(w io.Writer) { formatDriftText(w, out) })
	},
}

var driftResolveCmd = &cobra.Command{
	Use:   "resolve <id> <resolution>",
	Short: "Mark one drift event resolved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid drift id %q", args[0])
		}
		e, err := newEngine(nil)
		if err != nil {
			return err
		}
		defer e.Close()

		ok, err := e.ResolveDrift(id, args[1])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("drift event %d not found or already resolved", id)
		}
		fmt.Fprintf(os.Stderr, "Resolved drift %d\n", id)
		return nil
	},
}

var driftCheckCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Sweep every annotated function for drift against its annotation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(args)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}

		results, err := e.CheckAllDrift()
		if err != nil {
			return err
		}
		drifted := 0
		for _, r := range results {
			if r.Drifted {
				drifted++
			}
		}
		fmt.Fprintf(os.Stderr, "Checked %d annotated functions, %d drifted\n", len(results), drifted)

		events, err := e.DriftEvents(true)
		if err != nil {
			return err
		}
		out := toCLIDrift(events)
		return output(out, func(w io.Writer) { formatDriftText(w, out) })
	},
}

var (
	flagAnnotateModule string
	flagAnnotateSource string
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <stable-id> <text>",
	Short: "Record an annotation for a function, or a module summary with --module",
	Long: `Saves a new annotation version bound to the function's current content
hash. Re-annotating a drifted function resolves its open drift and
clears its touched-queue entry. With --module, the two arguments are
replaced by the module path given to the flag and the summary text.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if flagAnnotateModule != "" {
			return cobra.ExactArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(nil)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}

		if flagAnnotateModule != "" {
			if err := e.AnnotateModule(flagAnnotateModule, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Summarized module %s\n", flagAnnotateModule)
			return nil
		}

		first, err := e.Annotate(args[0], args[1], flagAnnotateSource)
		if err != nil {
			return err
		}
		if first {
			fmt.Fprintf(os.Stderr, "Annotated %s\n", args[0])
		} else {
			fmt.Fprintf(os.Stderr, "Updated annotation for %s\n", args[0])
		}
		return nil
	},
}

var annotatePendingCmd = &cobra.Command{
	Use:   "pending [path]",
	Short: "List exported functions without a current annotation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(args)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}

		pending, err := e.PendingAnnotations()
		if err != nil {
			return err
		}
		nodes := toCLINodes(pending)
		return output(nodes, func(w io.Writer) { formatNodesText(w, nodes) })
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Evaluate observability rules; exits nonzero when any is violated",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(args)
		if err != nil {
			return err
		}
		defer e.Close()
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}

		sum, err := e.InvariantSummary()
		if err != nil {
			return err
		}
		var results []CLIInvariant
		for _, r := range append(sum.Violated, sum.Passed...) {
			ci := CLIInvariant{Rule: r.RuleID, Violated: r.Violated}
			for _, v := range r.Violations {
				ci.Violations = append(ci.Violations, fmt.Sprintf("%s: %s", v.Target, v.Detail))
			}
			results = append(results, ci)
		}
		if err := output(results, func(w io.Writer) { formatInvariantsText(w, results) }); err != nil {
			return err
		}
		if len(sum.Violated) > 0 {
			return fmt.Errorf("%d rule(s) violated", len(sum.Violated))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [stable-id]",
	Short: "Show recorded change events, or annotation history for one identity",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(nil)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 1 {
			versions, err := e.AnnotationHistory(args[0])
			if err != nil {
				return err
			}
			return output(versions, func(w io.Writer) {
				for _, v := range versions {
					state := "current"
					if v.SupersededAt != nil {
						state = "superseded " + v.SupersededAt.Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "[%s] %s (%s): %s\n", v.CreatedAt.Format("2006-01-02 15:04"), v.Source, state, v.Text)
				}
			})
		}

		// Change history is per-session: index so the run's own pass is
		// what gets reported.
		if _, err := e.IndexDirectory(cmd.Context()); err != nil {
			return err
		}
		var changes []CLIChange
		for _, c := range e.History() {
			changes = append(changes, CLIChange{
				ID:       c.ID,
				Path:     c.Path,
				Op:       string(c.Op),
				Added:    c.LinesAdded,
				Removed:  c.LinesRemoved,
				Affected: c.Affected,
				Drift:    c.DriftCount,
				Time:     c.Time,
			})
		}
		return output(changes, func(w io.Writer) { formatHistoryText(w, changes) })
	},
}

var touchedCmd = &cobra.Command{
	Use:   "touched",
	Short: "List functions edited since their last annotation review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEngine(nil)
		if err != nil {
			return err
		}
		defer e.Close()

		queue, err := e.TouchedQueue()
		if err != nil {
			return err
		}
		out := make([]CLITouched, 0, len(queue))
		for _, tf := range queue {
			out = append(out, CLITouched{StableID: tf.StableID, File: tf.FilePath, TouchedAt: tf.TouchedAt})
		}
		return output(out, func(w io.Writer) { formatTouchedText(w, out) })
	},
}

func init() {
	driftListCmd.Flags().StringVar(&flagDriftSeverity, "severity", "", "filter by severity: low|medium|high")
	driftListCmd.Flags().BoolVar(&flagDriftAll, "all", false, "include resolved events")
	driftCmd.AddCommand(driftListCmd)
	driftCmd.AddCommand(driftResolveCmd)
	driftCmd.AddCommand(driftCheckCmd)

	annotateCmd.Flags().StringVar(&flagAnnotateModule, "module", "", "annotate a module path instead of a function")
	annotateCmd.Flags().StringVar(&flagAnnotateSource, "source", store.SourceHuman, "annotation source: human|generated")
	annotateCmd.AddCommand(annotatePendingCmd)
}
