// Package model defines core data structures for spinecheck.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TrackedFile is one document loaded from the tree. Binary files are only
// tracked by spec-diff and carry no Text.
type TrackedFile struct {
	Path    string // Slash-separated, relative to the tree root
	Text    string
	Hash    string // "sha256:<hex>"
	Binary  bool
	ModTime time.Time
}

// EdgeKind distinguishes how a reference was declared.
type EdgeKind string

const (
	IndexRow   EdgeKind = "index"
	InlineLink EdgeKind = "link"
)

// Edge is a declared reference from one document to a target path.
// Target is the cleaned, root-relative path with any anchor removed.
type Edge struct {
	Source   string
	Target   string
	Raw      string // Destination as written
	Anchor   string
	Label    string
	Kind     EdgeKind
	Line     int
	Resolved bool
}

// ReferenceGraph holds every edge found in a tree, sorted by source, line, target.
type ReferenceGraph struct {
	Edges []Edge
}

// InDegree counts edges pointing at each resolved target, ignoring self-references.
func (g *ReferenceGraph) InDegree() map[string]int {
	deg := make(map[string]int)
	for i := range g.Edges {
		e := &g.Edges[i]
		if !e.Resolved || e.Source == e.Target {
			continue
		}
		deg[e.Target]++
	}
	return deg
}

// From returns the edges declared by source in graph order.
func (g *ReferenceGraph) From(source string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// Severity of a finding. Errors fail a validation run; warnings do not.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
)

// Finding codes.
const (
	CodeIOError           = "io-error"
	CodeDanglingReference = "dangling-reference"
	CodeMissingIndex      = "missing-index"
	CodeUnreferencedRule  = "unreferenced-rule"
	CodeAdapterDrift      = "adapter-drift"
	CodeAdapterMissing    = "adapter-missing"
	CodeMissingSection    = "missing-section"
	CodeSectionOrder      = "section-order"
)

// Finding is one reported validation outcome.
type Finding struct {
	Severity  Severity
	Component string
	Code      string
	Path      string
	Line      int // 0 when the finding is not tied to a line
	Message   string
}

// DiffStatus is the per-path outcome of comparing a tree against the baseline.
type DiffStatus string

const (
	Added     DiffStatus = "added"
	Removed   DiffStatus = "removed"
	Modified  DiffStatus = "modified"
	Unchanged DiffStatus = "unchanged"
)

// FileChange is the comparison result for one tracked spec path.
type FileChange struct {
	Path   string
	Status DiffStatus
	Patch  string // Unified diff; empty for unchanged paths
}

// DiffEntry is one timestamped record appended to the diff report.
type DiffEntry struct {
	ID      string
	Time    time.Time
	Scope   string
	Changes []FileChange // Sorted by path, unchanged paths included
}

// Count returns how many changes have the given status.
func (d *DiffEntry) Count(status DiffStatus) int {
	n := 0
	for _, c := range d.Changes {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Changed reports whether any path was added, removed or modified.
func (d *DiffEntry) Changed() bool {
	return d.Count(Unchanged) != len(d.Changes)
}

// ContentHash returns the "sha256:<hex>" digest used to compare file contents.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
