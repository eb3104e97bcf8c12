package check

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/model"
)

// Rules reports dangling references anywhere in the graph, configured
// indexes that do not exist, and rule files nothing links to.
func Rules(cfg *config.Config, store *discover.Store, g *model.ReferenceGraph) []model.Finding {
	var findings []model.Finding

	for _, e := range g.Edges {
		if e.Resolved {
			continue
		}
		findings = append(findings, model.Finding{
			Severity:  model.Error,
			Component: ComponentRules,
			Code:      model.CodeDanglingReference,
			Path:      e.Source,
			Line:      e.Line,
			Message:   fmt.Sprintf("%s reference to %s does not resolve", e.Kind, e.Target),
		})
	}

	for _, ix := range cfg.Rules.Indexes {
		ix = config.Clean(ix)
		if store.Tracked(ix) {
			continue
		}
		findings = append(findings, model.Finding{
			Severity:  model.Error,
			Component: ComponentRules,
			Code:      model.CodeMissingIndex,
			Path:      ix,
			Message:   "configured rule index does not exist",
		})
	}

	deg := g.InDegree()
	for _, f := range store.Under(cfg.Rules.Root) {
		if deg[f.Path] > 0 || cfg.IsIndex(f.Path) || allowedUnreferenced(cfg, f.Path) {
			continue
		}
		findings = append(findings, model.Finding{
			Severity:  model.Warning,
			Component: ComponentRules,
			Code:      model.CodeUnreferencedRule,
			Path:      f.Path,
			Message:   "rule file is not referenced by any index or document",
		})
	}

	sortByPath(findings)
	return findings
}

func allowedUnreferenced(cfg *config.Config, p string) bool {
	for _, pattern := range cfg.Rules.AllowUnreferenced {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}
