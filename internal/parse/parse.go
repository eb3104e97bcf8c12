// Package parse extracts headings, links and table rows from markdown
// documents using the tree-sitter markdown grammars.
package parse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/spinecheck/internal/lang"
)

// Heading is one ATX or setext heading.
type Heading struct {
	Level int
	Title string
	Line  int
}

// String renders the heading in ATX form, e.g. "## Purpose".
func (h Heading) String() string {
	return strings.Repeat("#", h.Level) + " " + h.Title
}

// Link is an inline link or a link reference definition.
type Link struct {
	Text    string
	Dest    string
	Line    int
	InTable bool
}

// TableRow is one body row of a pipe table (the header row is not included).
type TableRow struct {
	Line  int
	Cells []string
	Links []Link
	Code  []string // Code span contents, backticks removed
}

// Document is the structural outline of a markdown file.
type Document struct {
	Headings []Heading
	Links    []Link
	Rows     []TableRow
}

var closingHashes = regexp.MustCompile(`\s+#+\s*$`)

// Parser holds one block and one inline tree-sitter parser.
// A Parser is not safe for concurrent use.
type Parser struct {
	block  *sitter.Parser
	inline *sitter.Parser
}

// NewParser creates a markdown parser.
func NewParser() *Parser {
	return &Parser{
		block:  lang.Block.NewParser(),
		inline: lang.Inline.NewParser(),
	}
}

// Parse extracts the outline of source. Content of code blocks is ignored.
func (p *Parser) Parse(ctx context.Context, source []byte) (*Document, error) {
	doc := &Document{}
	if len(source) == 0 {
		return doc, nil
	}

	tree, err := p.block.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing markdown: %w", err)
	}
	defer tree.Close()

	var walkErr error
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		if walkErr != nil {
			return false
		}
		switch n.Type() {
		case "fenced_code_block", "indented_code_block", "html_block":
			return false
		case "atx_heading":
			if h, ok := atxHeading(n, source); ok {
				doc.Headings = append(doc.Headings, h)
			}
			walkErr = p.collectInline(ctx, n, source, doc, false)
			return false
		case "setext_heading":
			if h, ok := setextHeading(n, source); ok {
				doc.Headings = append(doc.Headings, h)
			}
			walkErr = p.collectInline(ctx, n, source, doc, false)
			return false
		case "link_reference_definition":
			if l, ok := referenceDefinition(n, source); ok {
				doc.Links = append(doc.Links, l)
			}
			return false
		case "pipe_table_header", "pipe_table_delimiter_row":
			return false
		case "pipe_table_row":
			var row TableRow
			row, walkErr = p.tableRow(ctx, n, source)
			doc.Rows = append(doc.Rows, row)
			doc.Links = append(doc.Links, row.Links...)
			return false
		case "inline":
			walkErr = p.collectInline(ctx, n, source, doc, false)
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return doc, nil
}

// collectInline parses every inline range under n and appends its links.
func (p *Parser) collectInline(ctx context.Context, n *sitter.Node, source []byte, doc *Document, inTable bool) error {
	var err error
	walk(n, func(c *sitter.Node) bool {
		if err != nil || c.Type() != "inline" {
			return err == nil
		}
		var links []Link
		links, _, err = p.inlineRange(ctx, c, source)
		for i := range links {
			links[i].InTable = inTable
		}
		doc.Links = append(doc.Links, links...)
		return false
	})
	return err
}

func (p *Parser) tableRow(ctx context.Context, n *sitter.Node, source []byte) (TableRow, error) {
	row := TableRow{Line: int(n.StartPoint().Row) + 1}
	for i := 0; i < int(n.ChildCount()); i++ {
		cell := n.Child(i)
		if cell.Type() != "pipe_table_cell" {
			continue
		}
		row.Cells = append(row.Cells, lang.CollapseWhitespace(lang.NodeText(cell, source)))
		links, code, err := p.inlineRange(ctx, cell, source)
		if err != nil {
			return row, err
		}
		for j := range links {
			links[j].InTable = true
		}
		row.Links = append(row.Links, links...)
		row.Code = append(row.Code, code...)
	}
	return row, nil
}

// inlineRange runs the inline grammar over the bytes of n.
func (p *Parser) inlineRange(ctx context.Context, n *sitter.Node, source []byte) ([]Link, []string, error) {
	text := source[n.StartByte():n.EndByte()]
	if len(text) == 0 {
		return nil, nil, nil
	}
	baseLine := int(n.StartPoint().Row) + 1

	tree, err := p.inline.ParseCtx(ctx, nil, text)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing inline markdown: %w", err)
	}
	defer tree.Close()

	var (
		links []Link
		code  []string
	)
	walk(tree.RootNode(), func(c *sitter.Node) bool {
		switch c.Type() {
		case "code_span":
			code = append(code, strings.TrimSpace(strings.Trim(lang.NodeText(c, text), "`")))
			return false
		case "image", "uri_autolink", "email_autolink":
			return false
		case "inline_link":
			l := Link{Line: baseLine + int(c.StartPoint().Row)}
			for i := 0; i < int(c.ChildCount()); i++ {
				part := c.Child(i)
				switch part.Type() {
				case "link_text":
					l.Text = lang.CollapseWhitespace(lang.NodeText(part, text))
				case "link_destination":
					l.Dest = cleanDestination(lang.NodeText(part, text))
				}
			}
			if l.Dest != "" {
				links = append(links, l)
			}
			return false
		}
		return true
	})
	return links, code, nil
}

func atxHeading(n *sitter.Node, source []byte) (Heading, bool) {
	h := Heading{Line: int(n.StartPoint().Row) + 1}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		t := c.Type()
		switch {
		case strings.HasPrefix(t, "atx_h") && strings.HasSuffix(t, "_marker") && len(t) == len("atx_h1_marker"):
			h.Level = int(t[5] - '0')
		case t == "inline":
			h.Title = lang.CollapseWhitespace(closingHashes.ReplaceAllString(lang.NodeText(c, source), ""))
		}
	}
	return h, h.Level > 0
}

func setextHeading(n *sitter.Node, source []byte) (Heading, bool) {
	h := Heading{Line: int(n.StartPoint().Row) + 1}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "setext_h1_underline":
			h.Level = 1
		case "setext_h2_underline":
			h.Level = 2
		case "paragraph":
			h.Title = lang.CollapseWhitespace(lang.NodeText(c, source))
		}
	}
	return h, h.Level > 0 && h.Title != ""
}

func referenceDefinition(n *sitter.Node, source []byte) (Link, bool) {
	l := Link{Line: int(n.StartPoint().Row) + 1}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "link_label":
			l.Text = strings.Trim(lang.NodeText(c, source), "[]")
		case "link_destination":
			l.Dest = cleanDestination(lang.NodeText(c, source))
		}
	}
	return l, l.Dest != ""
}

// cleanDestination strips angle brackets and surrounding whitespace.
func cleanDestination(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = s[1 : len(s)-1]
	}
	return s
}

// walk visits n and its descendants depth-first in document order.
// Children are skipped when fn returns false.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}
