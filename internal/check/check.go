// Package check implements the structural validators of a document tree:
// rule index reachability, adapter consistency and template skeletons.
package check

import (
	"sort"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/graph"
	"github.com/phobologic/spinecheck/internal/model"
)

// Component names reported on findings.
const (
	ComponentRules     = "rules"
	ComponentAdapters  = "adapters"
	ComponentTemplates = "templates"
)

// All runs every validator and returns their findings in validator order.
func All(cfg *config.Config, store *discover.Store, g *model.ReferenceGraph, docs graph.Documents) []model.Finding {
	var out []model.Finding
	out = append(out, Rules(cfg, store, g)...)
	out = append(out, Adapters(cfg, store, g)...)
	out = append(out, Templates(cfg, store, docs)...)
	return out
}

// sortByPath orders findings by path, keeping emission order within a path.
func sortByPath(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Path < findings[j].Path
	})
}
