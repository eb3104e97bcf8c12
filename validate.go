package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/phobologic/spinecheck/internal/check"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/graph"
	"github.com/phobologic/spinecheck/internal/report"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		format    string
		colorMode string
	)

	cmd := &cobra.Command{
		Use:   "validate [root]",
		Short: "Check rule references, adapters and templates",
		Long: `Validate scans the markdown documents under root (default ".") and reports
dangling references, unreferenced rule files, drift between adapter entry
points and templates missing their required sections.

Exit status is 0 when no error findings are reported (warnings allowed), 1
when at least one error is found and 2 when the tree or configuration cannot
be read.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != report.FormatText && format != report.FormatTOON {
				return fatal(fmt.Errorf("unknown format %q (want text or toon)", format))
			}
			useColor, err := colorEnabled(colorMode, a.stdout)
			if err != nil {
				return fatal(err)
			}
			root, err := resolveRoot(args)
			if err != nil {
				return fatal(err)
			}
			return a.validate(cmd.Context(), root, format, useColor)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", report.FormatText, "output format (text, toon)")
	cmd.Flags().StringVar(&colorMode, "color", "auto", "colorize output (auto, always, never)")
	return cmd
}

func (a *app) validate(ctx context.Context, root, format string, useColor bool) error {
	cfg, err := a.loadConfig(root)
	if err != nil {
		return fatal(err)
	}

	store, findings, err := discover.NewScanner(cfg, a.logger).Scan(ctx, root)
	if err != nil {
		return fatal(err)
	}

	docs, err := graph.ParseDocuments(ctx, store)
	if err != nil {
		return fatal(fmt.Errorf("parsing documents: %w", err))
	}
	g := graph.Build(cfg, store, docs)

	rep := report.New(filepath.Base(root))
	rep.AddAll(findings)
	rep.AddAll(check.All(cfg, store, g, docs))

	errs, warns := rep.Counts()
	a.logger.Info("Validated tree",
		slog.String("root", root),
		slog.Int("files", store.Len()),
		slog.Int("edges", len(g.Edges)),
		slog.Int("errors", errs),
		slog.Int("warnings", warns))

	if err := rep.Render(a.stdout, format, useColor); err != nil {
		return fatal(fmt.Errorf("writing report: %w", err))
	}
	if rep.HasErrors() {
		return &exitError{code: exitFindings}
	}
	return nil
}

// colorEnabled resolves --color. In auto mode colour is used only when w is
// a terminal and NO_COLOR is unset.
func colorEnabled(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		f, ok := w.(*os.File)
		if !ok || os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		return !color.NoColor && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())), nil
	default:
		return false, fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
	}
}
