package baseline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/spinecheck/internal/model"
)

func files() []model.TrackedFile {
	return []model.TrackedFile{
		{Path: "specs/b.md", Text: "# B\n\nline with `code`\n"},
		{Path: "specs/a.md", Text: "# A\n", Hash: model.ContentHash([]byte("# A\n"))},
		{Path: "specs/empty.md", Text: ""},
	}
}

func TestFromFilesSortsAndHashes(t *testing.T) {
	t.Parallel()

	snap := FromFiles("specs", files())
	require.Len(t, snap.Files, 3)
	assert.Equal(t, "specs/a.md", snap.Files[0].Path)
	assert.Equal(t, "specs/b.md", snap.Files[1].Path)
	assert.Equal(t, model.ContentHash([]byte("# B\n\nline with `code`\n")), snap.Files[1].Hash)
	assert.Equal(t, Version, snap.Version)
	assert.Contains(t, snap.Lookup(), "specs/empty.md")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "core", "baseline.yaml"))
	want := FromFiles("specs", files())
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveLoadPreservesWhitespace(t *testing.T) {
	t.Parallel()

	texts := map[string]string{
		"leading blank line": "\n# Product\n",
		"two blank lines":    "\n\nstart blank\n",
		"leading tab":        "\ttab\n",
		"leading spaces":     "    indented\nnext\n",
		"crlf":               "# A\r\n\r\nbody\r\n",
		"no final newline":   "# A\nlast",
		"trailing spaces":    "# A  \n  \n",
		"boolean-like":       "true",
		"quotes":             "say \"hi\" \\ bye\n",
		"unicode":            "# Café ✓\n",
		"empty":              "",
	}
	for name, text := range texts {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := New(filepath.Join(t.TempDir(), "baseline.yaml"))
			want := FromFiles("specs", []model.TrackedFile{{Path: "specs/f.md", Text: text}})
			require.NoError(t, store.Save(want))

			got, err := store.Load()
			require.NoError(t, err)
			require.Len(t, got.Files, 1)
			assert.Equal(t, text, got.Files[0].Text)
			assert.Equal(t, want, got)
		})
	}
}

func TestSaveLoadBinaryEntry(t *testing.T) {
	t.Parallel()

	hash := model.ContentHash([]byte{0x89, 'P', 'N', 'G', 0x00})
	store := New(filepath.Join(t.TempDir(), "baseline.yaml"))
	want := FromFiles("specs", []model.TrackedFile{
		{Path: "specs/logo.png", Hash: hash, Binary: true, Text: "ignored"},
	})
	require.Equal(t, "", want.Files[0].Text)
	require.NoError(t, store.Save(want))

	data, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "binary: true")

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.ErrorIs(t, err, ErrNoBaseline)
}

func TestLoadDetectsTampering(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "baseline.yaml")
	data := "version: 1\nscope: specs\nfiles:\n  - path: specs/a.md\n    hash: sha256:00\n    text: \"# A\\n\"\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := New(path).Load()
	assert.ErrorContains(t, err, "hash mismatch for specs/a.md")
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "baseline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 9\nscope: specs\nfiles: []\n"), 0o644))

	_, err := New(path).Load()
	assert.ErrorContains(t, err, "unsupported version 9")
}

func TestInitRefusesExisting(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "baseline.yaml"))
	require.NoError(t, store.Init(FromFiles("specs", files()), false))

	err := store.Init(FromFiles("specs", nil), false)
	assert.True(t, errors.Is(err, ErrAlreadyInitialized))

	require.NoError(t, store.Init(FromFiles("specs", nil), true))
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Files)
}

func TestSaveUnchangedKeepsFile(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "baseline.yaml"))
	snap := FromFiles("specs", files())
	require.NoError(t, store.Save(snap))

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(store.Path, past, past))
	require.NoError(t, store.Save(FromFiles("specs", files())))

	info, err := os.Stat(store.Path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "unchanged baseline should not be rewritten")
}

func TestWriteFileAtomicLeavesNoTemp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("new"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	t.Parallel()

	err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "out.yaml"), []byte("x"), 0o644)
	assert.Error(t, err)
}
