package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/model"
	"github.com/phobologic/spinecheck/internal/specdiff"
)

type specDiffFlags struct {
	init, update bool
	force        bool
	stdout       bool
	noPatch      bool
	report       string
	baseline     string
	scope        string
}

func newSpecDiffCmd(a *app) *cobra.Command {
	var f specDiffFlags

	cmd := &cobra.Command{
		Use:   "spec-diff [root] --init|--update",
		Short: "Record a spec baseline or append a diff entry to the report",
		Long: `spec-diff compares the spec documents (default sdd/memory-bank) with the
recorded baseline and appends a timestamped entry to the markdown report.

  --init    record the current documents as the baseline
  --update  append the changes since the baseline, then move the baseline

Exit status is 0 on success, 1 when the baseline already exists or a file
cannot be read or written and 2 for usage errors.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args)
			if err != nil {
				return fatal(err)
			}
			cfg, err := a.loadConfig(root)
			if err != nil {
				return fatal(err)
			}
			applySpecOverrides(cmd, cfg, f)
			if err := cfg.Validate(); err != nil {
				return fatal(fmt.Errorf("invalid configuration: %w", err))
			}

			gen := specdiff.New(cfg, root, a.logger)
			opts := specdiff.Options{Force: f.force, DryRun: f.stdout, NoPatch: f.noPatch}

			var res *specdiff.Result
			if f.init {
				res, err = gen.Init(cmd.Context(), opts)
			} else {
				res, err = gen.Update(cmd.Context(), opts)
			}
			if err != nil {
				return &exitError{code: exitFindings, err: err}
			}

			if f.stdout {
				_, _ = fmt.Fprint(a.stdout, res.Markdown)
				return nil
			}
			e := res.Entry
			if f.init {
				_, _ = fmt.Fprintf(a.stdout, "initialized %s (%d files)\n", cfg.Specs.Baseline, len(e.Changes))
				return nil
			}
			_, _ = fmt.Fprintf(a.stdout, "appended entry %s to %s: %d added, %d modified, %d deleted\n",
				e.ID, cfg.Specs.Report, e.Count(model.Added), e.Count(model.Modified), e.Count(model.Removed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.init, "init", false, "record the current spec documents as the baseline")
	cmd.Flags().BoolVar(&f.update, "update", false, "append a diff entry and move the baseline")
	cmd.Flags().BoolVar(&f.force, "force", false, "replace an existing baseline on --init")
	cmd.Flags().BoolVar(&f.stdout, "stdout", false, "print the entry instead of writing the report and baseline")
	cmd.Flags().BoolVar(&f.noPatch, "no-patch", false, "omit per-file diff bodies")
	cmd.Flags().StringVar(&f.report, "report", "", "report path relative to root")
	cmd.Flags().StringVar(&f.baseline, "baseline", "", "baseline path relative to root")
	cmd.Flags().StringVar(&f.scope, "scope", "", "spec directory relative to root")

	cmd.MarkFlagsOneRequired("init", "update")
	cmd.MarkFlagsMutuallyExclusive("init", "update")
	cmd.MarkFlagsMutuallyExclusive("force", "update")
	return cmd
}

func applySpecOverrides(cmd *cobra.Command, cfg *config.Config, f specDiffFlags) {
	if cmd.Flags().Changed("report") {
		cfg.Specs.Report = config.Clean(f.report)
	}
	if cmd.Flags().Changed("baseline") {
		cfg.Specs.Baseline = config.Clean(f.baseline)
	}
	if cmd.Flags().Changed("scope") {
		cfg.Specs.Root = config.Clean(f.scope)
	}
}
