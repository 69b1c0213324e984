package intent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScopeEntry binds a message keyword to the canonical file it scopes to.
// Entries are consulted in order; the first keyword found in the message wins.
type ScopeEntry struct {
	Keyword string `yaml:"keyword"`
	Path    string `yaml:"path"`
}

// Config holds the classifier's scope map. The keyword-to-type rules are
// fixed in code; the scope side is data and can be overridden from a YAML
// file for sites with different component layouts.
type Config struct {
	Scopes       []ScopeEntry `yaml:"scopes"`
	DefaultScope string       `yaml:"default_scope"`
	// RepoOverrides maps a target-repository name (from a trailing
	// "in <repo>" clause) to a fixed scope replacing the component map,
	// e.g. flat HTML sites that keep everything in one file.
	RepoOverrides map[string][]string `yaml:"repo_overrides"`
}

// DefaultConfig returns the built-in scope map for a Next.js-style
// component layout.
func DefaultConfig() *Config {
	return &Config{
		Scopes: []ScopeEntry{
			{Keyword: "hero", Path: "app/components/Hero.tsx"},
			{Keyword: "header", Path: "app/components/Header.tsx"},
			{Keyword: "footer", Path: "app/components/Footer.tsx"},
			{Keyword: "cta", Path: "app/components/CTA.tsx"},
			{Keyword: "nav", Path: "app/components/Nav.tsx"},
			{Keyword: "pricing", Path: "app/components/Pricing.tsx"},
			{Keyword: "features", Path: "app/components/Features.tsx"},
			{Keyword: "seo", Path: "app/layout.tsx"},
			{Keyword: "colors", Path: "tailwind.config.js"},
		},
		DefaultScope: "app/components/Hero.tsx",
		RepoOverrides: map[string][]string{
			"landing-page": {"index.html"},
		},
	}
}

// LoadConfig reads a YAML scope-map override. Missing fields fall back to
// the built-in defaults so a partial file only overrides what it names.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse classifier config: %w", err)
	}
	def := DefaultConfig()
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = def.Scopes
	}
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = def.DefaultScope
	}
	if cfg.RepoOverrides == nil {
		cfg.RepoOverrides = def.RepoOverrides
	}
	return &cfg, nil
}
