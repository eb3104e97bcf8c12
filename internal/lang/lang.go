// Package lang provides the tree-sitter grammars used to read markdown
// documents: the block grammar for structure and the inline grammar for
// links and code spans.
package lang

import (
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	mdblock "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown"
	mdinline "github.com/smacker/go-tree-sitter/markdown/tree-sitter-markdown-inline"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for one grammar.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Block and Inline are the two halves of the markdown grammar.
var (
	Block = &Language{
		Name:       "markdown",
		Extensions: []string{".md", ".markdown"},
		lang:       mdblock.GetLanguage(),
	}
	Inline = &Language{
		Name: "markdown-inline",
		lang: mdinline.GetLanguage(),
	}
)

// Languages maps language names to their configuration.
var Languages = map[string]*Language{
	Block.Name:  Block,
	Inline.Name: Inline,
}

// extensionMap is built lazily on first lookup.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
