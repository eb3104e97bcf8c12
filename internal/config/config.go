// Package config provides the static layout configuration for spinecheck.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the project config file looked up at the tree root.
const FileName = "spinecheck.yaml"

// Adapter roles.
const (
	RolePrimary = "primary"
	RoleMirror  = "mirror"
)

// Config describes where rules, specs, adapters and templates live in a tree.
type Config struct {
	// Include lists doublestar globs selecting the tracked documents.
	Include []string `yaml:"include"`
	// Exclude lists gitignore-style patterns that are never scanned.
	Exclude   []string         `yaml:"exclude"`
	Rules     RulesConfig      `yaml:"rules"`
	Specs     SpecsConfig      `yaml:"specs"`
	Adapters  []AdapterConfig  `yaml:"adapters"`
	Templates []TemplateConfig `yaml:"templates"`
}

// RulesConfig configures the rules subtree and its indexes.
type RulesConfig struct {
	Root    string   `yaml:"root"`
	Indexes []string `yaml:"indexes"`
	// AllowUnreferenced lists globs for rule files that may have no inbound reference.
	AllowUnreferenced []string `yaml:"allow_unreferenced,omitempty"`
}

// SpecsConfig configures the spec subtree tracked by spec-diff.
type SpecsConfig struct {
	Root     string   `yaml:"root"`
	Exclude  []string `yaml:"exclude"`
	Baseline string   `yaml:"baseline"`
	Report   string   `yaml:"report"`
	// ContextLines is the number of unchanged lines around each diff hunk.
	ContextLines int `yaml:"context_lines"`
}

// AdapterConfig tags one entry-point document with its mirror role.
type AdapterConfig struct {
	Path string `yaml:"path"`
	Role string `yaml:"role"`
}

// TemplateConfig binds a required heading skeleton to files matching a glob.
type TemplateConfig struct {
	Match    string   `yaml:"match"`
	Headings []string `yaml:"headings"`
}

// Default returns the layout of an SDD spine tree.
func Default() *Config {
	return &Config{
		Include: []string{"**/*.md"},
		Exclude: []string{
			"node_modules/",
			"vendor/",
			"dist/",
		},
		Rules: RulesConfig{
			Root:    "sdd/rules",
			Indexes: []string{"sdd/rules/README.md"},
		},
		Specs: SpecsConfig{
			Root: "sdd/memory-bank",
			// Process logs change on every session and would drown the report.
			Exclude: []string{
				"sdd/memory-bank/core/intake-state.md",
				"sdd/memory-bank/core/progress.md",
				"sdd/memory-bank/core/progress-archive.md",
				"sdd/memory-bank/core/sprint-current.md",
				"sdd/memory-bank/core/sprint-plan.md",
				"sdd/memory-bank/core/backlog.md",
			},
			Baseline:     "sdd/memory-bank/core/spec-baseline.yaml",
			Report:       "sdd/memory-bank/core/spec-diff.md",
			ContextLines: 3,
		},
		Adapters: []AdapterConfig{
			{Path: "AGENTS.md", Role: RolePrimary},
			{Path: "CLAUDE.md", Role: RoleMirror},
			{Path: ".github/copilot-instructions.md", Role: RoleMirror},
		},
		Templates: []TemplateConfig{
			{
				Match:    "sdd/templates/*.md",
				Headings: []string{"## Purpose", "## Validation"},
			},
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Include) == 0 {
		errs = append(errs, errors.New("include must list at least one glob"))
	}
	for _, g := range c.Include {
		if !doublestar.ValidatePattern(g) {
			errs = append(errs, fmt.Errorf("include: invalid glob %q", g))
		}
	}
	if c.Rules.Root == "" {
		errs = append(errs, errors.New("rules.root is required"))
	}
	for _, g := range c.Rules.AllowUnreferenced {
		if !doublestar.ValidatePattern(g) {
			errs = append(errs, fmt.Errorf("rules.allow_unreferenced: invalid glob %q", g))
		}
	}
	if c.Specs.Root == "" {
		errs = append(errs, errors.New("specs.root is required"))
	}
	if c.Specs.Baseline == "" {
		errs = append(errs, errors.New("specs.baseline is required"))
	}
	if c.Specs.Report == "" {
		errs = append(errs, errors.New("specs.report is required"))
	}
	if c.Specs.ContextLines < 0 {
		errs = append(errs, errors.New("specs.context_lines must not be negative"))
	}

	primaries := 0
	for i, a := range c.Adapters {
		if a.Path == "" {
			errs = append(errs, fmt.Errorf("adapters[%d]: path is required", i))
		}
		switch a.Role {
		case RolePrimary:
			primaries++
		case RoleMirror, "":
		default:
			errs = append(errs, fmt.Errorf("adapters[%d]: unknown role %q", i, a.Role))
		}
	}
	if primaries > 1 {
		errs = append(errs, fmt.Errorf("adapters: %d primary adapters, at most one allowed", primaries))
	}

	for i, t := range c.Templates {
		if !doublestar.ValidatePattern(t.Match) || t.Match == "" {
			errs = append(errs, fmt.Errorf("templates[%d]: invalid match glob %q", i, t.Match))
		}
		if len(t.Headings) == 0 {
			errs = append(errs, fmt.Errorf("templates[%d]: headings must not be empty", i))
		}
	}
	return errors.Join(errs...)
}

// Primary returns the canonical adapter: the one tagged primary, else the first.
func (c *Config) Primary() (AdapterConfig, bool) {
	for _, a := range c.Adapters {
		if a.Role == RolePrimary {
			return a, true
		}
	}
	if len(c.Adapters) == 0 {
		return AdapterConfig{}, false
	}
	return c.Adapters[0], true
}

// Generated reports whether p is one of the files spinecheck itself writes.
// Those are never scanned, validated or diffed.
func (c *Config) Generated(p string) bool {
	p = Clean(p)
	return p == Clean(c.Specs.Baseline) || p == Clean(c.Specs.Report)
}

// UnderRules reports whether p lies inside the rules subtree.
func (c *Config) UnderRules(p string) bool {
	return Within(Clean(c.Rules.Root), Clean(p))
}

// IsIndex reports whether p is a configured rule index.
func (c *Config) IsIndex(p string) bool {
	p = Clean(p)
	for _, ix := range c.Rules.Indexes {
		if Clean(ix) == p {
			return true
		}
	}
	return false
}

// Clean normalises a configured path to slash-separated, root-relative form.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(strings.TrimPrefix(p, "/"))
	if p == "." {
		return ""
	}
	return p
}

// Within reports whether p is dir itself or lies below it. An empty dir is the root.
func Within(dir, p string) bool {
	if dir == "" {
		return true
	}
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Lists in data replace the default lists.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
