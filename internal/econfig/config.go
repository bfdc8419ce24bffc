// Package econfig loads and validates the core's runtime configuration,
// following the teacher pack's convention (grounded on
// ahrav-go-gavel/infrastructure/units's unit configs) of a YAML-tagged
// struct validated with github.com/go-playground/validator/v10 against
// struct tags, rather than hand-rolled field checks.
package econfig

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the core's tunable surface (spec.md §4.7's compression
// threshold, plus the observability knobs SPEC_FULL.md's ambient stack
// adds).
type Config struct {
	// CompressionThreshold is the candidate count above which a caller
	// should prefer CollapseNamedFrontier over carrying every leaf
	// explicitly (spec.md §4.7).
	CompressionThreshold int `yaml:"compression_threshold" json:"compression_threshold" validate:"required,min=1"`

	// CacheCapacity bounds the optional WorkCache.WithRecentCache
	// front-accelerator. Zero disables it.
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity" validate:"min=0"`

	// LogLevel is a logrus level name ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level" json:"log_level" validate:"required,oneof=trace debug info warn error fatal panic"`

	// MetricsNamespace is loaded and validated with the rest of the
	// config. obs.NewMetrics does not read it: its collectors always use
	// the "esvc" namespace.
	MetricsNamespace string `yaml:"metrics_namespace" json:"metrics_namespace" validate:"required"`
}

var validate = validator.New()

// DefaultConfig returns the baseline configuration: a compression
// threshold of 100 (spec.md §4.7's stated default), a modest bounded
// cache, info-level logging, and the "esvc" metrics namespace.
func DefaultConfig() Config {
	return Config{
		CompressionThreshold: 100,
		CacheCapacity:        4096,
		LogLevel:             "info",
		MetricsNamespace:     "esvc",
	}
}

// Load reads a YAML document from path, applying DefaultConfig's values
// as a base before unmarshaling so a partial file only overrides what it
// sets, then validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("econfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("econfig: parse %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("econfig: invalid config: %w", err)
	}
	return cfg, nil
}

// Validate re-checks cfg against its struct tags; useful when a caller
// builds a Config programmatically instead of via Load.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("econfig: invalid config: %w", err)
	}
	return nil
}
