package check

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/phobologic/spinecheck/internal/config"
	"github.com/phobologic/spinecheck/internal/discover"
	"github.com/phobologic/spinecheck/internal/graph"
	"github.com/phobologic/spinecheck/internal/model"
	"github.com/phobologic/spinecheck/internal/parse"
)

// Templates checks every file matched by a template glob against its
// required heading sequence.
func Templates(cfg *config.Config, store *discover.Store, docs graph.Documents) []model.Finding {
	var findings []model.Finding
	for _, f := range store.Files() {
		for _, t := range cfg.Templates {
			if ok, _ := doublestar.Match(t.Match, f.Path); !ok {
				continue
			}
			var headings []parse.Heading
			if doc := docs[f.Path]; doc != nil {
				headings = doc.Headings
			}
			findings = append(findings, Headings(f.Path, headings, t.Headings)...)
		}
	}
	return findings
}

// Headings verifies that required is a subsequence of the document headings.
// Comparison is exact and case-sensitive on the "## Title" form.
func Headings(p string, headings []parse.Heading, required []string) []model.Finding {
	if len(required) == 0 {
		return nil
	}
	finding := func(code string, line int, msg string) model.Finding {
		return model.Finding{
			Severity:  model.Error,
			Component: ComponentTemplates,
			Code:      code,
			Path:      p,
			Line:      line,
			Message:   msg,
		}
	}

	if len(headings) == 0 {
		return []model.Finding{finding(model.CodeMissingSection, 0,
			fmt.Sprintf("document has no headings; template requires %s", strings.Join(required, ", ")))}
	}

	actual := make([]string, len(headings))
	for i, h := range headings {
		actual[i] = h.String()
	}

	var findings []model.Finding
	cursor := 0 // Index after the last heading matched in order
	prev := ""
	for _, want := range required {
		first := indexFrom(actual, want, 0)
		if first < 0 {
			findings = append(findings, finding(model.CodeMissingSection, 0,
				fmt.Sprintf("missing required section %q", want)))
			continue
		}
		next := indexFrom(actual, want, cursor)
		if next < 0 {
			findings = append(findings, finding(model.CodeSectionOrder, headings[first].Line,
				fmt.Sprintf("section %q must come after %q", want, prev)))
			continue
		}
		cursor = next + 1
		prev = want
	}
	return findings
}

func indexFrom(list []string, s string, from int) int {
	for i := from; i < len(list); i++ {
		if list[i] == s {
			return i
		}
	}
	return -1
}
