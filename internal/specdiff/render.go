package specdiff

import (
	"fmt"
	"strings"

	"github.com/phobologic/spinecheck/internal/model"
)

func (g *Generator) writeHeader(b *strings.Builder, e *model.DiffEntry) {
	fmt.Fprintf(b, "## %s\n\n", e.Time.Format(timeLayout))
	fmt.Fprintf(b, "Entry: %s\n", e.ID)
	fmt.Fprintf(b, "Scope: %s\n", displayScope(e.Scope))
	fmt.Fprintf(b, "Baseline: %s\n", g.cfg.Specs.Baseline)
	if excludes := g.cfg.Specs.Exclude; len(excludes) > 0 {
		b.WriteString("Excludes:\n")
		for _, p := range excludes {
			fmt.Fprintf(b, "- `%s`\n", p)
		}
	}
	b.WriteString("\n")
}

func (g *Generator) renderInit(e *model.DiffEntry) string {
	var b strings.Builder
	g.writeHeader(&b, e)
	b.WriteString("### Summary\n")
	b.WriteString("- Baseline initialized (no diff).\n")
	fmt.Fprintf(&b, "- Files: %d\n", len(e.Changes))
	return b.String()
}

func (g *Generator) renderUpdate(e *model.DiffEntry, withPatch bool) string {
	var b strings.Builder
	g.writeHeader(&b, e)

	b.WriteString("### Summary\n")
	if !e.Changed() {
		b.WriteString("- No changes detected in the default scope.\n")
	}
	fmt.Fprintf(&b, "- Added: %d\n", e.Count(model.Added))
	fmt.Fprintf(&b, "- Modified: %d\n", e.Count(model.Modified))
	fmt.Fprintf(&b, "- Deleted: %d\n", e.Count(model.Removed))
	fmt.Fprintf(&b, "- Unchanged: %d\n", e.Count(model.Unchanged))

	sections := []struct {
		title  string
		status model.DiffStatus
	}{
		{"Added", model.Added},
		{"Modified", model.Modified},
		{"Deleted", model.Removed},
	}
	var patched []model.FileChange
	for _, s := range sections {
		var paths []model.FileChange
		for _, c := range e.Changes {
			if c.Status == s.status {
				paths = append(paths, c)
			}
		}
		if len(paths) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", s.title)
		for _, c := range paths {
			fmt.Fprintf(&b, "- `%s`\n", c.Path)
		}
		patched = append(patched, paths...)
	}

	if withPatch && len(patched) > 0 {
		b.WriteString("\n### Patch\n")
		for _, c := range patched {
			body := c.Patch
			if body == "" {
				body = "(no line changes)"
			}
			fence := Fence(body)
			fmt.Fprintf(&b, "\n#### `%s`\n\n%sdiff\n%s\n%s\n", c.Path, fence, body, fence)
		}
	}
	return b.String()
}

// Fence returns a backtick fence longer than any backtick run in body.
func Fence(body string) string {
	longest, run := 0, 0
	for _, r := range body {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return strings.Repeat("`", max(3, longest+1))
}

func displayScope(scope string) string {
	if scope == "" {
		return "."
	}
	return scope
}
