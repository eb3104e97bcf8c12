// Package specdiff compares the spec subtree against its baseline and keeps
// an append-only markdown report of the changes.
package specdiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/phobologic/spinecheck/internal/baseline"
	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/model"
)

// ReportHeader opens a newly created report.
const ReportHeader = "# Spec Diff Report\n\n> This file is generated/updated by `spinecheck spec-diff`.\n"

const timeLayout = "2006-01-02 15:04:05Z"

// Options control a single run.
type Options struct {
	// Force lets Init replace an existing baseline.
	Force bool
	// DryRun renders the entry without touching the report or baseline.
	DryRun bool
	// NoPatch omits per-file diff bodies.
	NoPatch bool
}

// Result describes what a run produced.
type Result struct {
	Entry    model.DiffEntry
	Markdown string // Rendered report entry
	Written  bool   // Whether the report and baseline were updated
}

// Generator produces diff entries for one tree.
type Generator struct {
	cfg    *config.Config
	root   string
	logger *slog.Logger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// New creates a generator for the tree at root. A nil logger means slog.Default().
func New(cfg *config.Config, root string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:    cfg,
		root:   root,
		logger: logger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

func (g *Generator) baselineStore() *baseline.Store {
	return baseline.New(g.abs(g.cfg.Specs.Baseline))
}

func (g *Generator) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(g.root, filepath.FromSlash(rel))
}

func (g *Generator) scope() string {
	return config.Clean(g.cfg.Specs.Root)
}

// Init records the current spec files as the baseline and appends a
// "Baseline initialized" entry to the report.
func (g *Generator) Init(ctx context.Context, opts Options) (*Result, error) {
	files, err := g.specFiles(ctx)
	if err != nil {
		return nil, err
	}

	entry := g.newEntry()
	for _, f := range files {
		entry.Changes = append(entry.Changes, model.FileChange{Path: f.Path, Status: model.Unchanged})
	}
	res := &Result{Entry: entry, Markdown: g.renderInit(&entry)}
	if opts.DryRun {
		return res, nil
	}

	store := g.baselineStore()
	exists, err := store.Exists()
	if err != nil {
		return nil, fmt.Errorf("checking baseline: %w", err)
	}
	if exists && !opts.Force {
		return nil, fmt.Errorf("%s: %w", g.cfg.Specs.Baseline, baseline.ErrAlreadyInitialized)
	}

	if err := store.Init(baseline.FromFiles(g.scope(), files), true); err != nil {
		return nil, err
	}
	if err := g.appendReport(res.Markdown); err != nil {
		return nil, err
	}
	res.Written = true
	g.logger.Info("Initialized spec baseline",
		slog.String("baseline", g.cfg.Specs.Baseline),
		slog.Int("files", len(files)))
	return res, nil
}

// Update compares the spec files against the baseline, appends an entry to
// the report and saves the new baseline. A missing baseline counts as empty.
func (g *Generator) Update(ctx context.Context, opts Options) (*Result, error) {
	files, err := g.specFiles(ctx)
	if err != nil {
		return nil, err
	}

	store := g.baselineStore()
	prev, err := store.Load()
	if errors.Is(err, baseline.ErrNoBaseline) {
		g.logger.Warn("No baseline found; every spec file counts as added",
			slog.String("baseline", g.cfg.Specs.Baseline))
		prev = baseline.FromFiles(g.scope(), nil)
	} else if err != nil {
		return nil, err
	}

	entry := g.newEntry()
	entry.Changes = Compare(prev, files, g.cfg.Specs.ContextLines, !opts.NoPatch)
	res := &Result{Entry: entry, Markdown: g.renderUpdate(&entry, !opts.NoPatch)}
	if opts.DryRun {
		return res, nil
	}

	if err := g.appendReport(res.Markdown); err != nil {
		return nil, err
	}
	if err := store.Save(baseline.FromFiles(g.scope(), files)); err != nil {
		return nil, err
	}
	res.Written = true
	g.logger.Info("Updated spec baseline",
		slog.Int("added", entry.Count(model.Added)),
		slog.Int("modified", entry.Count(model.Modified)),
		slog.Int("removed", entry.Count(model.Removed)))
	return res, nil
}

func (g *Generator) newEntry() model.DiffEntry {
	return model.DiffEntry{
		ID:    g.NewID(),
		Time:  g.Now().UTC(),
		Scope: g.scope(),
	}
}

// specFiles loads every file under the spec root, minus excludes. Unlike a
// validate scan it is not limited to markdown or the include globs.
func (g *Generator) specFiles(ctx context.Context) ([]model.TrackedFile, error) {
	scanner := discover.NewScanner(g.cfg, g.logger).TrackAll(g.scope())
	store, findings, err := scanner.Scan(ctx, g.root)
	if err != nil {
		return nil, err
	}

	scope := g.scope()
	for _, f := range findings {
		if config.Within(scope, f.Path) && !g.excluded(f.Path) {
			return nil, fmt.Errorf("reading spec file %s: %s", f.Path, f.Message)
		}
	}

	var out []model.TrackedFile
	for _, f := range store.Under(scope) {
		if g.excluded(f.Path) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (g *Generator) excluded(p string) bool {
	for _, pattern := range g.cfg.Specs.Exclude {
		pattern = config.Clean(pattern)
		if pattern == p {
			return true
		}
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// Compare computes the per-path status of files against prev, sorted by
// path. Patches are unified diffs with the given context when withPatch is set.
func Compare(prev *baseline.Snapshot, files []model.TrackedFile, contextLines int, withPatch bool) []model.FileChange {
	old := prev.Lookup()
	current := make(map[string]struct{}, len(files))

	var changes []model.FileChange
	for _, f := range files {
		current[f.Path] = struct{}{}
		hash := f.Hash
		if hash == "" {
			hash = model.ContentHash([]byte(f.Text))
		}

		c := model.FileChange{Path: f.Path}
		before, ok := old[f.Path]
		switch {
		case !ok:
			c.Status = model.Added
			if withPatch {
				c.Patch = patchFor(f.Path, "", f.Text, false, true, f.Binary, contextLines)
			}
		case before.Hash != hash:
			c.Status = model.Modified
			if withPatch {
				c.Patch = patchFor(f.Path, before.Text, f.Text, true, true, before.Binary || f.Binary, contextLines)
			}
		default:
			c.Status = model.Unchanged
		}
		changes = append(changes, c)
	}

	for _, e := range prev.Files {
		if _, ok := current[e.Path]; ok {
			continue
		}
		c := model.FileChange{Path: e.Path, Status: model.Removed}
		if withPatch {
			c.Patch = patchFor(e.Path, e.Text, "", true, false, e.Binary, contextLines)
		}
		changes = append(changes, c)
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}

func patchFor(p, before, after string, hadBefore, hasAfter, binary bool, contextLines int) string {
	if binary {
		from, to := labels(p, hadBefore, hasAfter)
		return fmt.Sprintf("Binary files %s and %s differ", from, to)
	}
	return Patch(p, before, after, hadBefore, hasAfter, contextLines)
}

func labels(p string, hadBefore, hasAfter bool) (from, to string) {
	from, to = "/dev/null", "/dev/null"
	if hadBefore {
		from = "a/" + p
	}
	if hasAfter {
		to = "b/" + p
	}
	return from, to
}

// Patch renders a unified diff of one file. A side that does not exist is
// labelled /dev/null.
func Patch(p, before, after string, hadBefore, hasAfter bool, contextLines int) string {
	from, to := labels(p, hadBefore, hasAfter)
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: from,
		ToFile:   to,
		Context:  max(contextLines, 0),
	})
	if err != nil {
		return fmt.Sprintf("error generating diff for %s: %v", p, err)
	}
	return strings.TrimRight(diff, "\n")
}

// splitLines splits text into newline-terminated lines. A final line without
// a newline gets one so it compares equal to the same line with one.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}

// appendReport adds entry to the report, creating it with its header first.
func (g *Generator) appendReport(entry string) error {
	path := g.abs(g.cfg.Specs.Report)
	current, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		current = []byte(ReportHeader)
	case err != nil:
		return fmt.Errorf("reading report: %w", err)
	}

	text := strings.TrimRight(string(current), "\n") + "\n\n" + entry
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := baseline.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
