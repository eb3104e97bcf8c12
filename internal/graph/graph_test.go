package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/model"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Rules.Root = "rules"
	cfg.Rules.Indexes = []string{"rules/README.md"}
	return cfg
}

func build(t *testing.T, cfg *config.Config, files map[string]string, known ...string) *model.ReferenceGraph {
	t.Helper()
	var tracked []model.TrackedFile
	for p, text := range files {
		tracked = append(tracked, model.TrackedFile{Path: p, Text: text})
	}
	store := discover.NewStore(tracked, known...)
	docs, err := ParseDocuments(context.Background(), store)
	require.NoError(t, err)
	return Build(cfg, store, docs)
}

func TestBuildIndexRows(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"rules/README.md": "# Rules\n\n| Rule | File |\n|---|---|\n| Intake | [intake](intake.md) |\n| Sprint | `sprint.md` |\n",
		"rules/intake.md": "# Intake\n",
		"rules/sprint.md": "# Sprint\n",
	})

	require.Len(t, g.Edges, 2)
	assert.Equal(t, model.Edge{
		Source: "rules/README.md", Target: "rules/intake.md", Raw: "intake.md",
		Label: "Intake", Kind: model.IndexRow, Line: 5, Resolved: true,
	}, g.Edges[0])
	assert.Equal(t, "rules/sprint.md", g.Edges[1].Target)
	assert.Equal(t, "Sprint", g.Edges[1].Label)
	assert.Equal(t, model.IndexRow, g.Edges[1].Kind)
}

func TestBuildDanglingIndexTarget(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"rules/README.md": "| Rule | File |\n|---|---|\n| Gone | [gone](does-not-exist.md) |\n",
	})

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "rules/does-not-exist.md", g.Edges[0].Target)
	assert.False(t, g.Edges[0].Resolved)
}

func TestBuildInlineLinksResolveRelative(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"docs/guide.md":  "See [intake](../rules/intake.md#steps), [root](/AGENTS.md) and [web](https://example.com).\n",
		"rules/intake.md": "# Intake\n",
		"AGENTS.md":       "# Agents\n",
	})

	edges := g.From("docs/guide.md")
	require.Len(t, edges, 2)

	byTarget := map[string]model.Edge{}
	for _, e := range edges {
		byTarget[e.Target] = e
	}
	intake := byTarget["rules/intake.md"]
	assert.True(t, intake.Resolved)
	assert.Equal(t, "steps", intake.Anchor)
	assert.Equal(t, model.InlineLink, intake.Kind)
	assert.True(t, byTarget["AGENTS.md"].Resolved)
}

func TestBuildKnownNonMarkdownTarget(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"README.md": "Run [the script](scripts/spec-diff.py).\n",
	}, "scripts/spec-diff.py")

	require.Len(t, g.Edges, 1)
	assert.True(t, g.Edges[0].Resolved)
}

func TestBuildSkipsAnchorsAndSchemes(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"README.md": "[top](#intro) [mail](mailto:x@example.com) [proto](//cdn.example.com/x.md)\n",
	})
	assert.Empty(t, g.Edges)
}

func TestBuildSkipsTargetsOutsideRoot(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"README.md":       "[up](../elsewhere.md) [deep](rules/../../x.md) [here](rules/a.md)\n",
		"rules/README.md": "| Rule | Purpose |\n|---|---|\n| [out](../../out.md) | x |\n",
		"rules/a.md":      "# A\n",
	})
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "rules/a.md", g.Edges[0].Target)
	assert.True(t, g.Edges[0].Resolved)
}

func TestBuildIndexTableLinksCountedOnce(t *testing.T) {
	t.Parallel()

	g := build(t, testConfig(), map[string]string{
		"rules/README.md": "| Rule | File |\n|---|---|\n| A | [a](a.md) |\n\nAlso [a](a.md) inline.\n",
		"rules/a.md":      "# A\n",
	})

	require.Len(t, g.Edges, 2)
	assert.Equal(t, model.IndexRow, g.Edges[0].Kind)
	assert.Equal(t, model.InlineLink, g.Edges[1].Kind)
	assert.Equal(t, 2, g.InDegree()["rules/a.md"])
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"b.md": "[a](a.md) [c](c.md)\n",
		"a.md": "[b](b.md)\n",
		"c.md": "[a](a.md)\n",
	}
	first := build(t, testConfig(), files)
	for range 5 {
		assert.Equal(t, first, build(t, testConfig(), files))
	}
	assert.Equal(t, "a.md", first.Edges[0].Source)
}

func TestInDegreeIgnoresSelfAndDangling(t *testing.T) {
	t.Parallel()

	g := &model.ReferenceGraph{Edges: []model.Edge{
		{Source: "a.md", Target: "a.md", Resolved: true},
		{Source: "a.md", Target: "b.md", Resolved: true},
		{Source: "a.md", Target: "c.md"},
	}}
	deg := g.InDegree()
	assert.Equal(t, 0, deg["a.md"])
	assert.Equal(t, 1, deg["b.md"])
	assert.Equal(t, 0, deg["c.md"])
}
