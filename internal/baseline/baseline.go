// Package baseline persists the snapshot of spec documents that spec-diff
// compares against.
package baseline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/spinecheck/internal/model"
)

// Version is the snapshot format written by this package.
const Version = 1

var (
	// ErrAlreadyInitialized is returned by Init when a baseline exists.
	ErrAlreadyInitialized = errors.New("baseline already initialized")
	// ErrNoBaseline is returned by Load when no baseline file exists.
	ErrNoBaseline = errors.New("no baseline")
)

// Entry is the recorded state of one spec document. Binary files keep only
// their hash.
type Entry struct {
	Path   string `yaml:"path"`
	Hash   string `yaml:"hash"`
	Binary bool   `yaml:"binary,omitempty"`
	Text   string `yaml:"text"`
}

// MarshalYAML writes Text double-quoted. Block and plain styles do not
// round-trip leading blank lines, leading tabs or carriage returns.
func (e Entry) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	}
	add("path", str(e.Path, 0))
	add("hash", str(e.Hash, 0))
	if e.Binary {
		add("binary", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}
	add("text", str(e.Text, yaml.DoubleQuotedStyle))
	return node, nil
}

func str(value string, style yaml.Style) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: style}
}

// Snapshot is the full baseline. It carries no timestamp so that saving an
// unchanged tree produces identical bytes.
type Snapshot struct {
	Version int     `yaml:"version"`
	Scope   string  `yaml:"scope"`
	Files   []Entry `yaml:"files"`
}

// FromFiles builds a snapshot of files, sorted by path.
func FromFiles(scope string, files []model.TrackedFile) *Snapshot {
	snap := &Snapshot{Version: Version, Scope: scope, Files: make([]Entry, 0, len(files))}
	for _, f := range files {
		hash := f.Hash
		if hash == "" {
			hash = model.ContentHash([]byte(f.Text))
		}
		e := Entry{Path: f.Path, Hash: hash, Binary: f.Binary}
		if !f.Binary {
			e.Text = f.Text
		}
		snap.Files = append(snap.Files, e)
	}
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	return snap
}

// Lookup indexes the snapshot by path.
func (s *Snapshot) Lookup() map[string]Entry {
	m := make(map[string]Entry, len(s.Files))
	for _, e := range s.Files {
		m[e.Path] = e
	}
	return m
}

// Marshal encodes the snapshot as YAML.
func (s *Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encoding baseline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding baseline: %w", err)
	}
	return buf.Bytes(), nil
}

// Store reads and writes the baseline file at Path.
type Store struct {
	Path string
}

// New creates a store for the baseline at path.
func New(path string) *Store {
	return &Store{Path: path}
}

// Exists reports whether the baseline file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Init writes the first baseline. Unless force is set it refuses to replace
// an existing file.
func (s *Store) Init(snap *Snapshot, force bool) error {
	exists, err := s.Exists()
	if err != nil {
		return fmt.Errorf("checking baseline: %w", err)
	}
	if exists && !force {
		return fmt.Errorf("%s: %w", s.Path, ErrAlreadyInitialized)
	}
	return s.Save(snap)
}

// Load reads the baseline and verifies the hash of every recorded text.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoBaseline
		}
		return nil, fmt.Errorf("reading baseline: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing baseline %s: %w", s.Path, err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("baseline %s: unsupported version %d", s.Path, snap.Version)
	}
	for _, e := range snap.Files {
		if e.Binary {
			continue
		}
		if got := model.ContentHash([]byte(e.Text)); got != e.Hash {
			return nil, fmt.Errorf("baseline %s: hash mismatch for %s", s.Path, e.Path)
		}
	}
	return &snap, nil
}

// Save replaces the baseline atomically. Nothing is written when the file
// already holds the same bytes.
func (s *Store) Save(snap *Snapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return err
	}
	if current, err := os.ReadFile(s.Path); err == nil && bytes.Equal(current, data) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("creating baseline directory: %w", err)
	}
	if err := WriteFileAtomic(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to path via a temp file in the same directory,
// fsync and rename. Readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	ok = true
	return nil
}
