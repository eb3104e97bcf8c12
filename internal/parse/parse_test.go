package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, source string) *Document {
	t.Helper()
	doc, err := NewParser().Parse(context.Background(), []byte(source))
	require.NoError(t, err)
	return doc
}

func headingStrings(doc *Document) []string {
	out := make([]string, 0, len(doc.Headings))
	for _, h := range doc.Headings {
		out = append(out, h.String())
	}
	return out
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "")
	assert.Empty(t, doc.Headings)
	assert.Empty(t, doc.Links)
	assert.Empty(t, doc.Rows)
}

func TestParseATXHeadings(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "# Title\n\n## Purpose\n\ntext\n\n### Deep   Heading ##\n")
	assert.Equal(t, []string{"# Title", "## Purpose", "### Deep Heading"}, headingStrings(doc))
	assert.Equal(t, 1, doc.Headings[0].Line)
	assert.Equal(t, 3, doc.Headings[1].Line)
}

func TestParseSetextHeading(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "Overview\n========\n\nSummary\n-------\n")
	assert.Equal(t, []string{"# Overview", "## Summary"}, headingStrings(doc))
}

func TestParseHeadingsIgnoreCodeBlocks(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "# Real\n\n```md\n# Not a heading\n[x](y.md)\n```\n")
	assert.Equal(t, []string{"# Real"}, headingStrings(doc))
	assert.Empty(t, doc.Links)
}

func TestParseInlineLinks(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "# Rules\n\nSee [intake](rules/intake.md#start) and `[code](not.md)`.\n\n- [list item](./list.md)\n")
	require.Len(t, doc.Links, 2)
	assert.Equal(t, "intake", doc.Links[0].Text)
	assert.Equal(t, "rules/intake.md#start", doc.Links[0].Dest)
	assert.Equal(t, 3, doc.Links[0].Line)
	assert.False(t, doc.Links[0].InTable)
	assert.Equal(t, "./list.md", doc.Links[1].Dest)
	assert.Equal(t, 5, doc.Links[1].Line)
}

func TestParseLinkInHeading(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "## See [core](core.md)\n")
	require.Len(t, doc.Links, 1)
	assert.Equal(t, "core.md", doc.Links[0].Dest)
}

func TestParseReferenceDefinition(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "Read the [guide][g].\n\n[g]: <docs/guide.md>\n")
	require.Len(t, doc.Links, 1)
	assert.Equal(t, "docs/guide.md", doc.Links[0].Dest)
	assert.Equal(t, 3, doc.Links[0].Line)
}

func TestParseTableRows(t *testing.T) {
	t.Parallel()

	source := "# Index\n\n" +
		"| Rule | File |\n" +
		"|------|------|\n" +
		"| Intake | [intake](intake.md) |\n" +
		"| Sprint | `sprint.md` |\n"
	doc := parseString(t, source)

	require.Len(t, doc.Rows, 2)
	assert.Equal(t, 5, doc.Rows[0].Line)
	assert.Equal(t, "Intake", doc.Rows[0].Cells[0])
	require.Len(t, doc.Rows[0].Links, 1)
	assert.Equal(t, "intake.md", doc.Rows[0].Links[0].Dest)
	assert.True(t, doc.Rows[0].Links[0].InTable)

	assert.Equal(t, "Sprint", doc.Rows[1].Cells[0])
	assert.Equal(t, []string{"sprint.md"}, doc.Rows[1].Code)

	// Table links are also reported as document links.
	require.Len(t, doc.Links, 1)
	assert.True(t, doc.Links[0].InTable)
}

func TestParseSkipsImagesAndAutolinks(t *testing.T) {
	t.Parallel()

	doc := parseString(t, "![logo](img/logo.png) <https://example.com>\n")
	assert.Empty(t, doc.Links)
}
