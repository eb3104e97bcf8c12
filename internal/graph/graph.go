// Package graph builds the reference graph of a document tree.
package graph

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/model"
	"github.com/phobologic/spinecheck/internal/parse"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// Documents maps a tracked path to its parsed outline.
type Documents map[string]*parse.Document

// ParseDocuments parses every file of the store concurrently. Each worker
// owns its own parser since tree-sitter parsers are not thread-safe.
func ParseDocuments(ctx context.Context, store *discover.Store) (Documents, error) {
	files := store.Files()
	docs := make(Documents, len(files))
	if len(files) == 0 {
		return docs, nil
	}

	type result struct {
		path string
		doc  *parse.Document
		err  error
	}

	numWorkers := min(runtime.GOMAXPROCS(0), len(files))
	work := make(chan int, len(files))
	results := make(chan result, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := parse.NewParser()
			for idx := range work {
				f := files[idx]
				doc, err := p.Parse(ctx, []byte(f.Text))
				results <- result{path: f.Path, doc: doc, err: err}
			}
		}()
	}

	for i := range files {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		docs[r.path] = r.doc
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return docs, nil
}

// Build creates reference edges from index tables and inline links.
// Index files contribute one edge per table row that names a path; their
// table links are not counted again as inline links.
func Build(cfg *config.Config, store *discover.Store, docs Documents) *model.ReferenceGraph {
	type edgeKey struct {
		src, tgt string
		kind     model.EdgeKind
		line     int
	}
	seen := make(map[edgeKey]struct{})

	var edges []model.Edge
	add := func(e model.Edge) {
		key := edgeKey{e.Source, e.Target, e.Kind, e.Line}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		edges = append(edges, e)
	}

	for _, f := range store.Files() {
		doc := docs[f.Path]
		if doc == nil {
			continue
		}
		isIndex := cfg.IsIndex(f.Path)

		if isIndex {
			for _, row := range doc.Rows {
				raw, ok := rowPath(row)
				if !ok {
					continue
				}
				e, ok := resolve(store, f.Path, raw)
				if !ok {
					continue
				}
				e.Kind = model.IndexRow
				e.Label = rowLabel(row)
				e.Line = row.Line
				add(e)
			}
		}

		for _, l := range doc.Links {
			if isIndex && l.InTable {
				continue
			}
			e, ok := resolve(store, f.Path, l.Dest)
			if !ok {
				continue
			}
			e.Kind = model.InlineLink
			e.Label = l.Text
			e.Line = l.Line
			add(e)
		}
	}

	// Sort for deterministic output
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Line != edges[j].Line {
			return edges[i].Line < edges[j].Line
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})

	return &model.ReferenceGraph{Edges: edges}
}

// rowPath returns the first link destination of an index row, falling back
// to the first code span naming a markdown file.
func rowPath(row parse.TableRow) (string, bool) {
	if len(row.Links) > 0 {
		return row.Links[0].Dest, true
	}
	for _, c := range row.Code {
		if strings.HasSuffix(strings.ToLower(c), ".md") {
			return c, true
		}
	}
	return "", false
}

func rowLabel(row parse.TableRow) string {
	if len(row.Cells) == 0 {
		return ""
	}
	return strings.Trim(row.Cells[0], "`*_ ")
}

// resolve turns a destination written in source into an edge. It returns
// false for destinations that are not file references inside the root (URLs,
// bare anchors, paths leaving the root).
func resolve(store *discover.Store, source, raw string) (model.Edge, bool) {
	dest := strings.TrimSpace(raw)
	if dest == "" || strings.HasPrefix(dest, "//") || schemeRe.MatchString(dest) {
		return model.Edge{}, false
	}

	pathPart, anchor, _ := strings.Cut(dest, "#")
	pathPart, _, _ = strings.Cut(pathPart, "?")
	if pathPart == "" {
		return model.Edge{}, false
	}
	if unescaped, err := url.PathUnescape(pathPart); err == nil {
		pathPart = unescaped
	}

	var joined string
	if strings.HasPrefix(pathPart, "/") {
		joined = path.Clean(pathPart[1:])
	} else {
		joined = path.Join(path.Dir(source), pathPart)
	}
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return model.Edge{}, false
	}

	e := model.Edge{
		Source: source,
		Raw:    raw,
		Anchor: anchor,
	}
	e.Target = config.Clean(joined)
	e.Resolved = e.Target == "" || store.Exists(e.Target)
	return e, true
}
