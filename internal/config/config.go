// Package config loads the analysis configuration from a YAML file,
// with defaults suitable for watching a project root.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Root       string   `yaml:"root"`
	DBPath     string   `yaml:"db_path"`
	DebounceMs int      `yaml:"debounce_ms"`
	Include    []string `yaml:"include"`
	Ignore     []string `yaml:"ignore"`

	// Aggregator knobs.
	RetainContent    bool `yaml:"retain_content"`
	MaxHistory       int  `yaml:"max_history"`
	DiffContextLines int  `yaml:"diff_context_lines"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Root:             ".",
		DBPath:           "vigil.db",
		DebounceMs:       500,
		Include:          []string{"**/*.go", "**/*.py", "**/*.js", "**/*.jsx", "**/*.ts", "**/*.tsx"},
		Ignore:           []string{"**/node_modules/**", "**/.git/**", "**/vendor/**", "**/__pycache__/**"},
		RetainContent:    false,
		MaxHistory:       500,
		DiffContextLines: 3,
	}
}

// Load reads path and overlays it on the defaults. Missing keys keep
// their default values; glob patterns are validated up front.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("load config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges and glob syntax.
func (c *Config) Validate() error {
	if c.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("max_history must be at least 1")
	}
	if c.DiffContextLines < 0 {
		return fmt.Errorf("diff_context_lines must not be negative")
	}
	for _, pat := range append(append([]string{}, c.Include...), c.Ignore...) {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid glob pattern %q", pat)
		}
	}
	return nil
}

// Debounce returns the debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Tracked reports whether relPath (slash-separated, relative to Root)
// matches the include patterns and none of the ignore patterns. With
// no include patterns every path is a candidate.
func (c *Config) Tracked(relPath string) bool {
	for _, pat := range c.Ignore {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return false
		}
	}
	if len(c.Include) == 0 {
		return true
	}
	for _, pat := range c.Include {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
	}
	return false
}
