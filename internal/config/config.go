package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the epistemic coordination
// engine. Precedence: environment variables > config file > defaults.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
	Store     StoreConfig     `toml:"store"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Cron      CronConfig      `toml:"cron"`
}

// ServerConfig holds process identity metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// StoreConfig holds per-store bounded-history ceilings.
type StoreConfig struct {
	KUCeiling           int `toml:"ku_ceiling"`
	EvidenceCeiling     int `toml:"evidence_ceiling"`
	VerificationHistory int `toml:"verification_history_ceiling"`
	OutcomeCeiling      int `toml:"outcome_ceiling"`
	SkillCeiling        int `toml:"skill_ceiling"`
}

// SchedulerConfig holds work-queue weight-learning parameters.
type SchedulerConfig struct {
	MinSamples    int     `toml:"min_samples"`
	MaxAdjustment float64 `toml:"max_adjustment"`
	Lookback      int     `toml:"lookback"`
}

// CronConfig holds maintenance-job interval configuration.
type CronConfig struct {
	Enabled               bool `toml:"enabled"`
	WeightLearningMinutes int  `toml:"weight_learning_minutes"`
	StagnationMinutes     int  `toml:"stagnation_minutes"`
	BreachMinutes         int  `toml:"breach_minutes"`
	TriageMinutes         int  `toml:"triage_minutes"`
}

// Load creates a Config by reading from a TOML config file and
// environment variables. Precedence: environment variables > config
// file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. EPISTEMIC_CONFIG environment variable
//  3. ./epistemic.toml (current directory)
//  4. ~/.config/epistemic-core/epistemic.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables
// always override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Name:    "epistemic-core",
			Version: "0.1.0",
		},
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			KUCeiling:           50_000,
			EvidenceCeiling:     50_000,
			VerificationHistory: 100,
			OutcomeCeiling:      50_000,
			SkillCeiling:        50_000,
		},
		Scheduler: SchedulerConfig{
			MinSamples:    10,
			MaxAdjustment: 0.1,
			Lookback:      200,
		},
		Cron: CronConfig{
			Enabled:               false,
			WeightLearningMinutes: 60,
			StagnationMinutes:     30,
			BreachMinutes:         15,
			TriageMinutes:         5,
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty
// string if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit // caller wants this file; let DecodeFile report if missing
	}

	if p := os.Getenv("EPISTEMIC_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("epistemic.toml"); err == nil {
		return "epistemic.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/epistemic-core/epistemic.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config
// values. An env var only takes effect if it is non-empty (strings) or
// set at all (booleans/ints).
func (c *Config) applyEnv() {
	envOverride("EPISTEMIC_LOG_LEVEL", &c.Log.Level)
	envOverride("EPISTEMIC_SERVER_NAME", &c.Server.Name)

	if v := os.Getenv("EPISTEMIC_CRON_ENABLED"); v != "" {
		c.Cron.Enabled = (v == "true" || v == "1")
	}
	envOverrideInt("EPISTEMIC_CRON_WEIGHT_LEARNING_MINUTES", &c.Cron.WeightLearningMinutes)
	envOverrideInt("EPISTEMIC_CRON_STAGNATION_MINUTES", &c.Cron.StagnationMinutes)
	envOverrideInt("EPISTEMIC_CRON_BREACH_MINUTES", &c.Cron.BreachMinutes)
	envOverrideInt("EPISTEMIC_CRON_TRIAGE_MINUTES", &c.Cron.TriageMinutes)

	envOverrideInt("EPISTEMIC_SCHEDULER_MIN_SAMPLES", &c.Scheduler.MinSamples)
	envOverrideInt("EPISTEMIC_SCHEDULER_LOOKBACK", &c.Scheduler.Lookback)
}

// Validate checks that configuration values are internally consistent.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Scheduler.MinSamples < 0 {
		return fmt.Errorf("scheduler.min_samples must be >= 0")
	}
	return nil
}

// envOverride sets *dst to the value of the named env var, if it is
// non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envOverrideInt sets *dst to the integer value of the named env var,
// if it parses and is non-empty.
func envOverrideInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
		*dst = n
	}
}
