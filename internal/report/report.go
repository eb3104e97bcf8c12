// Package report aggregates validation findings and renders them.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/phobologic/spinecheck/internal/model"
	"github.com/phobologic/spinecheck/internal/toon"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatTOON = "toon"
)

// Report collects findings in the order they were discovered.
type Report struct {
	Root     string
	findings []model.Finding
}

// New creates an empty report for the tree named root.
func New(root string) *Report {
	return &Report{Root: root}
}

// Add appends one finding.
func (r *Report) Add(f model.Finding) {
	r.findings = append(r.findings, f)
}

// AddAll appends findings, keeping their order.
func (r *Report) AddAll(fs []model.Finding) {
	r.findings = append(r.findings, fs...)
}

// Len returns the number of findings collected.
func (r *Report) Len() int {
	return len(r.findings)
}

// Sorted returns the findings ordered by path. Findings on the same path
// keep discovery order.
func (r *Report) Sorted() []model.Finding {
	out := append([]model.Finding(nil), r.findings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Counts returns the number of error and warning findings.
func (r *Report) Counts() (errs, warns int) {
	for _, f := range r.findings {
		switch f.Severity {
		case model.Error:
			errs++
		case model.Warning:
			warns++
		}
	}
	return errs, warns
}

// HasErrors reports whether any finding has error severity.
func (r *Report) HasErrors() bool {
	errs, _ := r.Counts()
	return errs > 0
}

// Render writes the report in the given format.
func (r *Report) Render(w io.Writer, format string, useColor bool) error {
	switch format {
	case FormatText, "":
		return r.RenderText(w, useColor)
	case FormatTOON:
		_, err := fmt.Fprintln(w, toon.EncodeFindings(r.Root, r.Sorted()))
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// RenderText writes findings grouped by path followed by a summary line:
//
//	rules/README.md
//	  error    dangling-reference  L6  index reference to rules/gone.md does not resolve
//
//	1 error(s), 0 warning(s)
func (r *Report) RenderText(w io.Writer, useColor bool) error {
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)
	pathColor := color.New(color.Bold)
	for _, c := range []*color.Color{errColor, warnColor, pathColor} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	sorted := r.Sorted()
	codeWidth := 0
	for _, f := range sorted {
		codeWidth = max(codeWidth, len(f.Code))
	}

	current := ""
	for i, f := range sorted {
		if i == 0 || f.Path != current {
			if i > 0 {
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
			current = f.Path
			if _, err := fmt.Fprintln(w, pathColor.Sprint(displayPath(f.Path))); err != nil {
				return err
			}
		}

		sev := fmt.Sprintf("%-8s", f.Severity)
		if f.Severity == model.Error {
			sev = errColor.Sprint(sev)
		} else {
			sev = warnColor.Sprint(sev)
		}
		line := "-"
		if f.Line > 0 {
			line = fmt.Sprintf("L%d", f.Line)
		}
		if _, err := fmt.Fprintf(w, "  %s %-*s  %s  %s\n", sev, codeWidth, f.Code, line, f.Message); err != nil {
			return err
		}
	}

	if len(sorted) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	errs, warns := r.Counts()
	summary := fmt.Sprintf("%d error(s), %d warning(s)", errs, warns)
	if errs > 0 {
		summary = errColor.Sprint(summary)
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

func displayPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}
