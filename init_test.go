package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/phobologic/spinecheck/internal/config"
)

// TestGenerateConfigRoundTrip verifies that the generated file parses back
// into the default configuration.
func TestGenerateConfigRoundTrip(t *testing.T) {
	t.Parallel()
	content, err := generateConfig()
	if err != nil {
		t.Fatalf("generateConfig: %v", err)
	}
	if !strings.HasPrefix(content, "# spinecheck configuration.") {
		t.Errorf("missing header comment:\n%s", content)
	}

	cfg, err := config.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(cfg, config.Default()) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", cfg, config.Default())
	}
}

// TestInitCreatesFile verifies that init writes spinecheck.yaml at the root.
func TestInitCreatesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if code := execute(context.Background(), []string{"init", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if !strings.Contains(string(data), "sdd/rules/README.md") {
		t.Errorf("default index missing from created file:\n%s", data)
	}
	if !strings.Contains(stderr.String(), "wrote ") {
		t.Errorf("expected confirmation on stderr, got %q", stderr.String())
	}
}

// TestInitRefusesOverwrite verifies that an existing file is kept unless
// --force is given.
func TestInitRefusesOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, config.FileName, "include: [\"docs/**/*.md\"]\n")

	var stdout, stderr bytes.Buffer
	if code := execute(context.Background(), []string{"init", dir}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
	data, _ := os.ReadFile(filepath.Join(dir, config.FileName))
	if string(data) != "include: [\"docs/**/*.md\"]\n" {
		t.Errorf("existing file modified:\n%s", data)
	}

	stderr.Reset()
	if code := execute(context.Background(), []string{"init", "--force", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("--force: exit %d, stderr: %s", code, stderr.String())
	}
	data, _ = os.ReadFile(filepath.Join(dir, config.FileName))
	if !strings.Contains(string(data), "# spinecheck configuration.") {
		t.Error("--force should replace the file")
	}
}

// TestInitDryRun verifies that --dry-run prints the configuration to stdout
// and does not create the file.
func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if code := execute(context.Background(), []string{"init", "--dry-run", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		t.Error("--dry-run should not create the file")
	}
	out := stdout.String()
	if !strings.Contains(out, "rules:") || !strings.Contains(out, "specs:") {
		t.Errorf("dry-run output missing sections:\n%s", out)
	}
}

// TestInitWrittenConfigIsUsed verifies that validate picks up the file init wrote.
func TestInitWrittenConfigIsUsed(t *testing.T) {
	t.Parallel()
	dir := createSampleRepo(t)

	var stdout, stderr bytes.Buffer
	if code := execute(context.Background(), []string{"init", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("init: exit %d", code)
	}
	stdout.Reset()
	if code := execute(context.Background(), []string{"validate", "--color", "never", dir}, &stdout, &stderr); code != 0 {
		t.Fatalf("validate: exit %d\n%s", code, stdout.String())
	}
}
