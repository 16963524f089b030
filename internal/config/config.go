// Package config loads the backtester's run configuration from YAML,
// mirroring the source system's config-loading shape: a typed struct,
// strict validation, and a LoadOrDefault fallback for a missing file.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nordlight/backtester/errs"
)

// StrategyConfig selects which strategy harness to run, if any.
type StrategyConfig struct {
	// Kind is "native" (Go, not configurable from YAML — wired by the
	// caller) or "js" (a JavaScript source file on disk).
	Kind       string `yaml:"kind"`
	SourcePath string `yaml:"source_path"`
	EntryPoint string `yaml:"entry_point"`
}

// CommissionConfig selects the broker's commission model.
type CommissionConfig struct {
	// Model is "none", "per_share", or "proportional".
	Model string  `yaml:"model"`
	Rate  float64 `yaml:"rate"`
}

// Config is the unified run configuration sourced from YAML.
type Config struct {
	DataPath        string           `yaml:"data_path"`
	Start           time.Time        `yaml:"start"`
	End             time.Time        `yaml:"end"`
	CapitalBase     float64          `yaml:"capital_base"`
	Calendar        string           `yaml:"calendar"`
	Commission      CommissionConfig `yaml:"commission"`
	ExecutionDelay  time.Duration    `yaml:"execution_delay"`
	Strategy        StrategyConfig   `yaml:"strategy"`
	PriceTickerURL  string           `yaml:"price_ticker_url"`
	RateLimitPerSec float64          `yaml:"rate_limit_per_sec"`
	EnableMetrics   bool             `yaml:"enable_metrics"`
	EventLogPath    string           `yaml:"event_log_path"`
}

// Default returns the baseline configuration used when no file is
// supplied: no strategy, no commission, XNYS calendar, $100,000 capital.
func Default() Config {
	return Config{
		CapitalBase: 100000,
		Calendar:    "XNYS",
		Commission:  CommissionConfig{Model: "none"},
	}
}

// Load reads and validates a Config from the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided via the CLI.
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errs.New("config", errs.KindSchemaValidation,
			errs.WithMessage("parse config file "+path), errs.WithCause(err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. The returned bool reports whether the file was loaded (false for
// the fallback).
func LoadOrDefault(path string) (Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return Config{}, false, err
}

// Validate performs semantic validation beyond what YAML unmarshaling
// already guarantees.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataPath) == "" {
		return errs.New("config", errs.KindConfiguration, errs.WithMessage("data_path is required"))
	}
	if c.CapitalBase <= 0 {
		return errs.New("config", errs.KindConfiguration, errs.WithMessage("capital_base must be positive"))
	}
	if !c.End.After(c.Start) {
		return errs.New("config", errs.KindConfiguration, errs.WithMessage("end must be after start"))
	}
	switch c.Commission.Model {
	case "", "none", "per_share", "proportional":
	default:
		return errs.New("config", errs.KindConfiguration,
			errs.WithMessage("commission.model must be one of none, per_share, proportional"))
	}
	switch c.Strategy.Kind {
	case "", "native", "js":
	default:
		return errs.New("config", errs.KindConfiguration,
			errs.WithMessage("strategy.kind must be one of native, js"))
	}
	if c.Strategy.Kind == "js" && strings.TrimSpace(c.Strategy.SourcePath) == "" {
		return errs.New("config", errs.KindConfiguration,
			errs.WithMessage("strategy.source_path is required when strategy.kind is js"))
	}
	return nil
}
