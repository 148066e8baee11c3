package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ramazansakin/pg-profiler/internal/snapshot"
)

// Config holds all pgprofiler configuration.
type Config struct {
	DBURL      string     `yaml:"db_url"`
	Collection Collection `yaml:"collection"`
	Analysis   Analysis   `yaml:"analysis"`
	Exclude    Exclude    `yaml:"exclude"`
	Defaults   Defaults   `yaml:"defaults"`
}

// Collection controls where snapshots and reports live and which
// metric categories the collector gathers.
type Collection struct {
	RawDir    string   `yaml:"raw_dir"`
	ReportDir string   `yaml:"report_dir"`
	Metrics   []string `yaml:"metrics"`
}

// Analysis controls the report aggregation.
type Analysis struct {
	TopNQueries int `yaml:"top_n_queries"`
}

// Exclude lists schemas, tables, and rule names to skip during analysis.
type Exclude struct {
	Schemas []string `yaml:"schemas"`
	Tables  []string `yaml:"tables"`
	Rules   []string `yaml:"rules"`
}

// Defaults holds default CLI flag values.
type Defaults struct {
	Timeout string `yaml:"timeout"` // parsed as time.Duration
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Collection: Collection{
			RawDir:    filepath.Join("data", "raw"),
			ReportDir: filepath.Join("data", "reports"),
			Metrics:   append([]string(nil), snapshot.Categories...),
		},
		Analysis: Analysis{
			TopNQueries: 10,
		},
		Defaults: Defaults{
			Timeout: "30s",
		},
	}
}

// Load reads configuration from .pgprofiler.yml in the given directory,
// falling back to ~/.pgprofiler.yml. Returns DefaultConfig if no file
// is found.
func Load(dir string) (Config, error) {
	cfg := DefaultConfig()

	paths := []string{filepath.Join(dir, ".pgprofiler.yml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".pgprofiler.yml"))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	return cfg, nil
}

// Validate checks the keys no run can proceed without. A report cannot
// be positioned on disk without the directories, so these are fatal.
func (c *Config) Validate() error {
	if c.Collection.RawDir == "" {
		return fmt.Errorf("collection.raw_dir must not be empty")
	}
	if c.Collection.ReportDir == "" {
		return fmt.Errorf("collection.report_dir must not be empty")
	}
	if c.Analysis.TopNQueries < 1 {
		return fmt.Errorf("analysis.top_n_queries must be at least 1, got %d", c.Analysis.TopNQueries)
	}
	return nil
}

// TimeoutDuration parses the Defaults.Timeout string as a time.Duration.
// Returns 30s if parsing fails.
func (c *Config) TimeoutDuration() time.Duration {
	if c.Defaults.Timeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(c.Defaults.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
