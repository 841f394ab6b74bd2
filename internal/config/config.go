// Package config loads CLI configuration with the precedence
// defaults → .env file → YAML file → VERSO_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/verso-study/verso"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Learner   LearnerConfig   `yaml:"learner"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Profile   ProfileConfig   `yaml:"profile"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LearnerConfig identifies whose cards the CLI operates on.
type LearnerConfig struct {
	ID string `yaml:"id"`
}

// SchedulerConfig contains scheduling policy settings.
type SchedulerConfig struct {
	LearningSteps []Duration `yaml:"learning_steps"` // one entry per non-Easy rating
	EnableFuzzing bool       `yaml:"enable_fuzzing"`
}

// ProfileConfig overrides the learner's stored scheduling parameters.
// Weights are never configured here; they come from the store or the
// optimizer.
type ProfileConfig struct {
	TargetRetention float64 `yaml:"target_retention"`
	MaximumInterval int     `yaml:"maximum_interval"`
}

// OptimizerConfig contains weight-training settings.
type OptimizerConfig struct {
	Epochs        int     `yaml:"epochs"`
	MiniBatchSize int     `yaml:"mini_batch_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	MaxSeqLen     int     `yaml:"max_seq_len"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → .env → YAML → env vars.
// A missing .env or YAML file is not an error. Returns an immutable Config
// suitable for concurrent read access.
func Load() (*Config, error) {
	// Best-effort .env so VERSO_* overrides can live next to the project.
	_ = godotenv.Load()

	cfg := newDefaults()

	configPath := getEnv("VERSO_CONFIG_PATH", "config/verso.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML path, which must
// exist. Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "data/verso.db",
		},
		Learner: LearnerConfig{
			ID: "default",
		},
		Scheduler: SchedulerConfig{
			LearningSteps: []Duration{
				Duration(time.Minute),
				Duration(6 * time.Minute),
				Duration(10 * time.Minute),
			},
			EnableFuzzing: false,
		},
		Profile: ProfileConfig{
			TargetRetention: 0.9,
			MaximumInterval: 36500,
		},
		Optimizer: OptimizerConfig{
			Epochs:        5,
			MiniBatchSize: 512,
			LearningRate:  0.04,
			MaxSeqLen:     64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies VERSO_* environment variable overrides.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VERSO_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VERSO_LEARNER"); v != "" {
		cfg.Learner.ID = v
	}
	if v := os.Getenv("VERSO_LEARNING_STEPS"); v != "" {
		if steps, err := parseSteps(v); err == nil {
			cfg.Scheduler.LearningSteps = steps
		}
	}
	if v := os.Getenv("VERSO_ENABLE_FUZZING"); v != "" {
		cfg.Scheduler.EnableFuzzing = v == "true" || v == "1"
	}
	if v := os.Getenv("VERSO_TARGET_RETENTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Profile.TargetRetention = f
		}
	}
	if v := os.Getenv("VERSO_MAX_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Profile.MaximumInterval = n
		}
	}
	if v := os.Getenv("VERSO_OPTIMIZER_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Optimizer.Epochs = n
		}
	}
	if v := os.Getenv("VERSO_OPTIMIZER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Optimizer.MiniBatchSize = n
		}
	}
	if v := os.Getenv("VERSO_OPTIMIZER_LEARNING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Optimizer.LearningRate = f
		}
	}
	if v := os.Getenv("VERSO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VERSO_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// parseSteps parses a comma-separated duration list, e.g. "1m,6m,10m".
func parseSteps(s string) ([]Duration, error) {
	parts := strings.Split(s, ",")
	steps := make([]Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid learning step %q: %w", p, err)
		}
		steps = append(steps, Duration(d))
	}
	return steps, nil
}

// validate checks that configuration values are usable.
func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Learner.ID == "" {
		return fmt.Errorf("learner id must not be empty")
	}
	if len(c.Scheduler.LearningSteps) != 3 {
		return fmt.Errorf("learning steps need 3 entries (Again, Hard, Good), got %d", len(c.Scheduler.LearningSteps))
	}
	for i, d := range c.Scheduler.LearningSteps {
		if d <= 0 {
			return fmt.Errorf("learning step %d must be positive, got %v", i, time.Duration(d))
		}
	}
	if r := c.Profile.TargetRetention; r <= 0 || r >= 1 {
		return fmt.Errorf("target retention %f out of range (0, 1)", r)
	}
	if c.Profile.MaximumInterval < 1 {
		return fmt.Errorf("maximum interval %d must be at least 1 day", c.Profile.MaximumInterval)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// EngineConfig converts the scheduling section to the engine's config type.
func (c *Config) EngineConfig() verso.SchedulerConfig {
	steps := make([]time.Duration, len(c.Scheduler.LearningSteps))
	for i, d := range c.Scheduler.LearningSteps {
		steps[i] = time.Duration(d)
	}
	return verso.SchedulerConfig{
		LearningSteps: steps,
		EnableFuzzing: c.Scheduler.EnableFuzzing,
	}
}

// ApplyProfileOverrides copies the configured retention and interval cap
// onto a stored profile.
func (c *Config) ApplyProfileOverrides(p verso.ParameterProfile) verso.ParameterProfile {
	p.TargetRetention = c.Profile.TargetRetention
	p.MaximumInterval = c.Profile.MaximumInterval
	return p
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
