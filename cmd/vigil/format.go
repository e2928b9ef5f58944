package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// output renders v as JSON, or through textFn for text format.
func output(v any, textFn func(w io.Writer)) error {
	if flagFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	textFn(os.Stdout)
	return nil
}

func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STABLE_ID\tKIND\tNAME\tFILE\tLINE")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", n.StableID, n.Kind, n.Name, n.File, n.Line)
	}
	tw.Flush()
}

func formatDriftText(w io.Writer, events []CLIDrift) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTABLE_ID\tTYPE\tSEVERITY\tREASON\tSTATE")
	for _, ev := range events {
		state := "unresolved"
		if ev.ResolvedAt != nil {
			state = ev.Resolution
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", ev.ID, ev.StableID, ev.Type, ev.Severity, ev.Reason, state)
	}
	tw.Flush()
}

func formatStatusText(w io.Writer, st CLIStatus) {
	fmt.Fprintf(w, "Files: %d\n", st.Files)
	fmt.Fprintf(w, "Nodes: %d (", st.Nodes)
	first := true
	for _, kind := range []string{"function", "method", "class", "module"} {
		if n, ok := st.NodesByKind[kind]; ok {
			if !first {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%d %s", n, kind)
			first = false
		}
	}
	fmt.Fprintf(w, ")\n")
	fmt.Fprintf(w, "Edges: %d\n", st.Edges)
	fmt.Fprintf(w, "Pending annotations: %d\n", st.Pending)
	fmt.Fprintf(w, "Stale annotations: %d\n", st.Stale)
	fmt.Fprintf(w, "Unresolved drift: %d\n", st.Drift)
	fmt.Fprintf(w, "Touched functions: %d\n", st.Touched)
}

func formatInvariantsText(w io.Writer, results []CLIInvariant) {
	for _, r := range results {
		mark := "ok"
		if r.Violated {
			mark = "VIOLATED"
		}
		fmt.Fprintf(w, "%-28s %s\n", r.Rule, mark)
		for _, v := range r.Violations {
			fmt.Fprintf(w, "    %s\n", v)
		}
	}
}

func formatHistoryText(w io.Writer, changes []CLIChange) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOP\tPATH\t+/-\tAFFECTED\tDRIFT\tTIME")
	for _, c := range changes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t+%d/-%d\t%d\t%d\t%s\n",
			c.ID, c.Op, c.Path, c.Added, c.Removed, len(c.Affected), c.Drift, c.Time.Format("15:04:05"))
	}
	tw.Flush()
}

func formatTouchedText(w io.Writer, queue []CLITouched) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STABLE_ID\tFILE\tTOUCHED_AT")
	for _, tf := range queue {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tf.StableID, tf.File, tf.TouchedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}
