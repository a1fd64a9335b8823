// Package config loads the optional on-disk settings cryptoaudit reads
// before CLI flags are applied, following the same "defaults, then
// override from file" pattern ktaffy-gophercheck's config package used.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds settings that can be overridden by a .cryptoaudit.yml
// file; CLI flags take precedence over whatever this produces.
type Config struct {
	Catalog string `yaml:"catalog,omitempty"`
	Policy  string `yaml:"policy,omitempty"`
	Format  string `yaml:"format"`
	Output  string `yaml:"output,omitempty"`
	Workers int    `yaml:"workers"`
	Verbose bool   `yaml:"verbose"`
	Watch   bool   `yaml:"watch"`
}

// Default returns the baseline configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		Format:  "text",
		Workers: 0, // 0 means "default to available CPUs", resolved in corpus.Run
		Verbose: false,
		Watch:   false,
	}
}

// Load reads path if non-empty, falling back to the usual dotfile
// locations, and overlays it onto Default(). A missing file at any of
// the fallback locations is not an error; a missing file at an
// explicitly supplied path is.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func findConfigFile() string {
	for _, candidate := range []string{".cryptoaudit.yml", ".cryptoaudit.yaml", "cryptoaudit.yml", "cryptoaudit.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (c *Config) validate() error {
	switch c.Format {
	case "text", "html":
	default:
		return fmt.Errorf("invalid output format: %s (valid: text, html)", c.Format)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}
