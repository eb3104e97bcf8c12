// spinecheck validates the rule index, adapters and templates of an SDD spine
// tree and keeps a spec diff report against a recorded baseline.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/spinecheck/internal/config"
)

var version = "dev"

// Process exit codes.
const (
	exitOK       = 0
	exitFindings = 1
	exitFatal    = 2
)

// exitError carries a process exit code out of a command. A nil err means
// the command already reported its outcome.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func fatal(err error) error { return &exitError{code: exitFatal, err: err} }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", ee.err)
		}
		return ee.code
	}
	// Flag and argument errors from cobra.
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return exitFatal
}

// app holds state shared by every subcommand.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logLevel   string
	logger     *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "spinecheck",
		Short: "Validate an SDD spine tree and track spec changes",
		Long: `spinecheck checks the markdown spine of a spec-driven project:

- every rule index entry and link resolves to a file
- every rule file is reachable from an index
- adapter entry points (AGENTS.md, CLAUDE.md, ...) reference the same rules
- templates keep their required sections in order

It also records a baseline of the spec documents and appends readable diff
entries to a markdown report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.logLevel, a.stderr)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("spinecheck {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (default <root>/"+config.FileName+")")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newValidateCmd(a))
	cmd.AddCommand(newSpecDiffCmd(a))
	cmd.AddCommand(newInitCmd(a))
	return cmd
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// resolveRoot returns the absolute tree root named by args, defaulting to ".".
func resolveRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}

func (a *app) loadConfig(root string) (*config.Config, error) {
	return config.NewLoader(a.logger).Load(root, a.configPath)
}
