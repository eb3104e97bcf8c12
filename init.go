package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/spinecheck/internal/config"
)

const configHeader = `# spinecheck configuration.
#
# Paths are relative to the tree root and use forward slashes. Lists replace
# the built-in defaults rather than extending them.
`

// newInitCmd implements the "spinecheck init" subcommand, which writes the
// default configuration to <root>/spinecheck.yaml.
func newInitCmd(a *app) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [root]",
		Short: "Write a default " + config.FileName,
		Long: `Write the default configuration to <root>/` + config.FileName + ` so it can be
edited. An existing file is left alone unless --force is given.

root defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := generateConfig()
			if err != nil {
				return &exitError{code: exitFindings, err: err}
			}

			// --dry-run: print the file without touching the tree.
			if dryRun {
				_, _ = fmt.Fprint(a.stdout, content)
				return nil
			}

			root, err := resolveRoot(args)
			if err != nil {
				return fatal(err)
			}
			path := filepath.Join(root, config.FileName)
			if err := writeConfig(path, content, force); err != nil {
				return &exitError{code: exitFindings, err: err}
			}

			_, _ = fmt.Fprintf(a.stderr, "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the configuration without writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}

// generateConfig renders the default configuration with its header comment.
func generateConfig() (string, error) {
	data, err := config.Default().Marshal()
	if err != nil {
		return "", err
	}
	return configHeader + "\n" + string(data), nil
}

func writeConfig(path, content string, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
