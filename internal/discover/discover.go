// Package discover loads the tracked markdown documents of a tree.
package discover

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/lang"
	"github.com/phobologic/spinecheck/internal/model"
)

// ErrSymlinkCycle marks a directory reached again through a symlink.
var ErrSymlinkCycle = errors.New("symlink cycle")

var errNotText = errors.New("not valid UTF-8 text")

// ScanError reports a tree that cannot be scanned at all.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanning %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
}

// Scanner walks a tree and reads the documents selected by a config.
type Scanner struct {
	cfg     *config.Config
	logger  *slog.Logger
	workers int

	trackAll bool
	allDir   string
}

// NewScanner creates a scanner. A nil logger means slog.Default().
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{cfg: cfg, logger: logger, workers: runtime.GOMAXPROCS(0)}
}

// TrackAll makes every file under dir a candidate, whatever its extension
// and the include globs. Non-markdown files there that are not text are
// loaded as binary. An empty dir is the root.
func (s *Scanner) TrackAll(dir string) *Scanner {
	s.trackAll = true
	s.allDir = config.Clean(dir)
	return s
}

func (s *Scanner) tracksAll(rel string) bool {
	return s.trackAll && config.Within(s.allDir, rel)
}

// Scan loads every readable tracked document under root. Files that cannot be
// read as text become io-error findings. A *ScanError is returned when the
// tree itself cannot be walked.
func (s *Scanner) Scan(ctx context.Context, root string) (*Store, []model.Finding, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, &ScanError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, nil, &ScanError{Path: root, Err: errors.New("not a directory")}
	}

	w := &walker{
		scanner: s,
		cfg:     s.cfg,
		logger:  s.logger,
		ignore:  s.compileIgnore(root),
		active:  make(map[string]bool),
		known:   make(map[string]struct{}),
	}
	if err := w.walk(root, ""); err != nil {
		return nil, nil, err
	}
	sort.Strings(w.candidates)

	files, findings, err := s.readAll(ctx, root, w.candidates)
	if err != nil {
		return nil, nil, err
	}

	known := make([]string, 0, len(w.known))
	for k := range w.known {
		known = append(known, k)
	}
	s.logger.Debug("Scanned tree",
		slog.String("root", root),
		slog.Int("tracked", len(files)),
		slog.Int("unreadable", len(findings)))
	store := NewStore(files, known...)
	store.root = root
	return store, findings, nil
}

func (s *Scanner) compileIgnore(root string) *ignore.GitIgnore {
	lines := append([]string(nil), s.cfg.Exclude...)
	if f, err := os.Open(filepath.Join(root, ".gitignore")); err == nil {
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		_ = f.Close()
	}
	return ignore.CompileIgnoreLines(lines...)
}

type walker struct {
	scanner    *Scanner
	cfg        *config.Config
	logger     *slog.Logger
	ignore     *ignore.GitIgnore
	active     map[string]bool // Real paths of directories on the current walk path
	known      map[string]struct{}
	candidates []string
}

func (w *walker) walk(abs, rel string) error {
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return &ScanError{Path: displayPath(rel), Err: err}
	}
	if w.active[resolved] {
		return &ScanError{Path: displayPath(rel), Err: ErrSymlinkCycle}
	}
	w.active[resolved] = true
	defer delete(w.active, resolved)

	entries, err := os.ReadDir(abs)
	if err != nil {
		return &ScanError{Path: displayPath(rel), Err: err}
	}

	for _, e := range entries {
		name := e.Name()
		childRel := path.Join(rel, name)
		childAbs := filepath.Join(abs, name)

		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			st, err := os.Stat(childAbs)
			if err != nil {
				w.logger.Debug("Skipping broken symlink", slog.String("path", childRel))
				continue
			}
			isDir = st.IsDir()
		}

		if isDir {
			if _, skip := skipDirs[name]; skip || w.excluded(childRel, true) {
				continue
			}
			w.known[childRel] = struct{}{}
			if err := w.walk(childAbs, childRel); err != nil {
				return err
			}
			continue
		}

		if w.excluded(childRel, false) {
			continue
		}
		w.known[childRel] = struct{}{}
		if w.cfg.Generated(childRel) || !w.included(childRel) {
			continue
		}
		w.candidates = append(w.candidates, childRel)
	}
	return nil
}

func (w *walker) excluded(rel string, dir bool) bool {
	if w.ignore == nil {
		return false
	}
	if w.ignore.MatchesPath(rel) {
		return true
	}
	return dir && w.ignore.MatchesPath(rel+"/")
}

func (w *walker) included(rel string) bool {
	if w.scanner.tracksAll(rel) {
		return true
	}
	if lang.ForExtension(path.Ext(rel)) == "" {
		return false
	}
	for _, pattern := range w.cfg.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// readAll reads candidates in parallel. Output order follows candidates.
func (s *Scanner) readAll(ctx context.Context, root string, candidates []string) ([]model.TrackedFile, []model.Finding, error) {
	type result struct {
		file    model.TrackedFile
		finding *model.Finding
	}
	results := make([]result, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.workers, 1))
	for i, rel := range candidates {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := readText(filepath.Join(root, filepath.FromSlash(rel)), rel)
			if errors.Is(err, errNotText) && s.tracksAll(rel) && lang.ForExtension(path.Ext(rel)) == "" {
				f.Binary, f.Text, err = true, "", nil
			}
			if err != nil {
				results[i].finding = &model.Finding{
					Severity:  model.Error,
					Component: "reader",
					Code:      model.CodeIOError,
					Path:      rel,
					Message:   err.Error(),
				}
				return nil
			}
			results[i].file = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		files    []model.TrackedFile
		findings []model.Finding
	)
	for _, r := range results {
		if r.finding != nil {
			s.logger.Warn("Skipping unreadable file", slog.String("path", r.finding.Path), slog.String("error", r.finding.Message))
			findings = append(findings, *r.finding)
			continue
		}
		files = append(files, r.file)
	}
	return files, findings, nil
}

func readText(abs, rel string) (model.TrackedFile, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return model.TrackedFile{}, fmt.Errorf("reading file: %w", err)
	}
	f := model.TrackedFile{
		Path: rel,
		Text: string(data),
		Hash: model.ContentHash(data),
	}
	if fi, err := os.Stat(abs); err == nil {
		f.ModTime = fi.ModTime()
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return f, errNotText
	}
	return f, nil
}

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// Store is the immutable set of documents loaded for one run.
type Store struct {
	files  []model.TrackedFile
	byPath map[string]int
	known  map[string]struct{}
	root   string // Set by Scan; enables the filesystem fallback in Exists
}

// NewStore builds a store from already-loaded files. known lists additional
// paths (untracked files and directories) that exist in the tree.
func NewStore(files []model.TrackedFile, known ...string) *Store {
	sorted := append([]model.TrackedFile(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	s := &Store{
		files:  sorted,
		byPath: make(map[string]int, len(sorted)),
		known:  make(map[string]struct{}, len(known)),
	}
	for i := range sorted {
		s.byPath[sorted[i].Path] = i
	}
	for _, k := range known {
		s.known[config.Clean(k)] = struct{}{}
	}
	return s
}

// Files returns all tracked files sorted by path.
func (s *Store) Files() []model.TrackedFile {
	return s.files
}

// Len returns the number of tracked files.
func (s *Store) Len() int {
	return len(s.files)
}

// Get returns the tracked file at p.
func (s *Store) Get(p string) (model.TrackedFile, bool) {
	i, ok := s.byPath[p]
	if !ok {
		return model.TrackedFile{}, false
	}
	return s.files[i], true
}

// Tracked reports whether p is a tracked document.
func (s *Store) Tracked(p string) bool {
	_, ok := s.byPath[p]
	return ok
}

// Exists reports whether p is tracked or otherwise present in the tree.
// Paths the walk skipped, such as ignored or excluded ones, are looked up on
// disk as long as they stay inside the root.
func (s *Store) Exists(p string) bool {
	if s.Tracked(p) {
		return true
	}
	if _, ok := s.known[p]; ok {
		return true
	}
	if s.root == "" || p == "" || !filepath.IsLocal(filepath.FromSlash(p)) {
		return false
	}
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(p)))
	return err == nil
}

// Under returns the tracked files inside dir, sorted by path.
func (s *Store) Under(dir string) []model.TrackedFile {
	dir = config.Clean(dir)
	var out []model.TrackedFile
	for _, f := range s.files {
		if config.Within(dir, f.Path) {
			out = append(out, f)
		}
	}
	return out
}
