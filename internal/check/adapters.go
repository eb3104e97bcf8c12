package check

import (
	"fmt"
	"sort"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/model"
)

// ReferenceSet returns the rule targets adapter references, mapped to the
// first line each appears on.
func ReferenceSet(cfg *config.Config, g *model.ReferenceGraph, adapter string) map[string]int {
	set := make(map[string]int)
	for _, e := range g.From(config.Clean(adapter)) {
		if !cfg.UnderRules(e.Target) {
			continue
		}
		if _, ok := set[e.Target]; !ok {
			set[e.Target] = e.Line
		}
	}
	return set
}

// Adapters compares the rule reference set of every mirror adapter with the
// primary one. Each reference present on one side only is one drift finding.
func Adapters(cfg *config.Config, store *discover.Store, g *model.ReferenceGraph) []model.Finding {
	primary, ok := cfg.Primary()
	if !ok {
		return nil
	}

	var findings []model.Finding
	missing := func(p string) model.Finding {
		return model.Finding{
			Severity:  model.Error,
			Component: ComponentAdapters,
			Code:      model.CodeAdapterMissing,
			Path:      p,
			Message:   "configured adapter file does not exist",
		}
	}

	primaryPath := config.Clean(primary.Path)
	if !store.Tracked(primaryPath) {
		findings = append(findings, missing(primaryPath))
	}
	baseline := ReferenceSet(cfg, g, primaryPath)

	for _, a := range cfg.Adapters {
		p := config.Clean(a.Path)
		if p == primaryPath {
			continue
		}
		if !store.Tracked(p) {
			findings = append(findings, missing(p))
			continue
		}
		if !store.Tracked(primaryPath) {
			continue
		}
		set := ReferenceSet(cfg, g, p)

		for _, ref := range sortedKeys(baseline) {
			if _, ok := set[ref]; ok {
				continue
			}
			findings = append(findings, model.Finding{
				Severity:  model.Error,
				Component: ComponentAdapters,
				Code:      model.CodeAdapterDrift,
				Path:      p,
				Message:   fmt.Sprintf("%s is referenced by %s but missing from %s", ref, primaryPath, p),
			})
		}
		for _, ref := range sortedKeys(set) {
			if _, ok := baseline[ref]; ok {
				continue
			}
			findings = append(findings, model.Finding{
				Severity:  model.Error,
				Component: ComponentAdapters,
				Code:      model.CodeAdapterDrift,
				Path:      p,
				Line:      set[ref],
				Message:   fmt.Sprintf("%s is referenced by %s but not by %s", ref, p, primaryPath),
			})
		}
	}

	sortByPath(findings)
	return findings
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
