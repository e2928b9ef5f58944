package main

import "time"

// CLI output types, decoupled from internal representations so the
// JSON surface stays stable.

type CLINode struct {
	ID        string `json:"id"`
	StableID  string `json:"stableId"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	File      string `json:"file"`
	Line      int    `json:"line"`
	Signature string `json:"signature,omitempty"`
	Exported  bool   `json:"exported"`
}

type CLIStatus struct {
	Files       int            `json:"files"`
	Nodes       int            `json:"nodes"`
	Edges       int            `json:"edges"`
	NodesByKind map[string]int `json:"nodesByKind"`
	Pending     int            `json:"pendingAnnotations"`
	Stale       int            `json:"staleAnnotations"`
	Drift       int            `json:"unresolvedDrift"`
	Touched     int            `json:"touchedFunctions"`
}

type CLIDrift struct {
	ID         int64      `json:"id"`
	StableID   string     `json:"stableId"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Reason     string     `json:"reason"`
	DetectedAt time.Time  `json:"detectedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
}

type CLIInvariant struct {
	Rule       string   `json:"rule"`
	Violated   bool     `json:"violated"`
	Violations []string `json:"violations,omitempty"`
}

type CLIChange struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	Op       string    `json:"op"`
	Added    int       `json:"linesAdded"`
	Removed  int       `json:"linesRemoved"`
	Affected []string  `json:"affected,omitempty"`
	Drift    int       `json:"driftCount"`
	Time     time.Time `json:"time"`
}

type CLITouched struct {
	StableID  string    `json:"stableId"`
	File      string    `json:"file"`
	TouchedAt time.Time `json:"touchedAt"`
}
