// Package config holds all overmind configuration: the autonomy loop pacing,
// the decision thresholds shared by the engine and the action handlers, the
// storage layout, and the ledger endpoint. Configuration is loaded from a YAML
// file with environment-variable overrides; every knob has a default so the
// daemon runs with no config file at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all overmind configuration.
type Config struct {
	// Core identity
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Autonomy loop pacing
	Loop LoopConfig `yaml:"loop"`

	// Decision engine and handler thresholds
	Thresholds ThresholdConfig `yaml:"thresholds"`

	// Durable memory store
	Storage StorageConfig `yaml:"storage"`

	// External ledger
	Ledger LedgerConfig `yaml:"ledger"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LoopConfig paces the autonomy cycle.
type LoopConfig struct {
	// Target wall-clock interval between cycle starts
	Interval string `yaml:"interval"`

	// Cooldown after a cycle-level failure before the next cycle
	ErrorCooldown string `yaml:"error_cooldown"`

	// How many recent decisions the observe phase reads
	ObservationWindow int `yaml:"observation_window"`

	// Identity stamped on decisions made by the root controller
	RootID string `yaml:"root_id"`
}

// ThresholdConfig carries the numeric thresholds used by the decision engine
// and the action handlers. Values are behavioral pins; change with care.
type ThresholdConfig struct {
	// Swarm sizing: spawn is boosted below the floor, coordinate above the ceiling
	AgentFloor   int `yaml:"agent_floor"`
	AgentCeiling int `yaml:"agent_ceiling"`

	// Weight vector bounds and reinforcement step
	WeightMin       float64 `yaml:"weight_min"`
	WeightMax       float64 `yaml:"weight_max"`
	ReinforceStep   float64 `yaml:"reinforce_step"`
	SelectionJitter float64 `yaml:"selection_jitter"` // symmetric, e.g. 0.2 for ±20%

	// Agent health classification
	CriticalSuccessRate float64 `yaml:"critical_success_rate"`
	DegradedSuccessRate float64 `yaml:"degraded_success_rate"`
	CriticalIdle        string  `yaml:"critical_idle"`
	DegradedIdle        string  `yaml:"degraded_idle"`

	// Strategy evolution
	LowSuccessRate float64 `yaml:"low_success_rate"`
	MinHistory     int     `yaml:"min_history"` // decisions needed before delegate is favored
}

// StorageConfig configures the file-backed memory store.
type StorageConfig struct {
	// Directory holding one JSON file per collection plus backups
	DataDir string `yaml:"data_dir"`
}

// LedgerConfig configures the transactional submitter.
type LedgerConfig struct {
	// "local" runs against the in-process ledger, "remote" against Endpoint
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint"`

	// Retry policy: total attempts and the linear backoff base
	MaxAttempts int    `yaml:"max_attempts"`
	RetryBase   string `yaml:"retry_base"`

	// Per-call budget for one submission round trip
	Timeout string `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "overmind",
		Version: "0.3.0",

		Loop: LoopConfig{
			Interval:          "30s",
			ErrorCooldown:     "10s",
			ObservationWindow: 20,
			RootID:            "overmind-root",
		},

		Thresholds: ThresholdConfig{
			AgentFloor:          2,
			AgentCeiling:        5,
			WeightMin:           0.05,
			WeightMax:           0.9,
			ReinforceStep:       0.05,
			SelectionJitter:     0.2,
			CriticalSuccessRate: 0.3,
			DegradedSuccessRate: 0.6,
			CriticalIdle:        "5m",
			DegradedIdle:        "2m",
			LowSuccessRate:      0.5,
			MinHistory:          10,
		},

		Storage: StorageConfig{
			DataDir: "data/overmind",
		},

		Ledger: LedgerConfig{
			Mode:        "local",
			Endpoint:    "http://localhost:8899",
			MaxAttempts: 3,
			RetryBase:   "1s",
			Timeout:     "30s",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file is not an error;
// defaults apply and environment overrides are still honored.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("OVERMIND_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
	if ep := os.Getenv("OVERMIND_LEDGER_ENDPOINT"); ep != "" {
		c.Ledger.Endpoint = ep
		c.Ledger.Mode = "remote"
	}
	if mode := os.Getenv("OVERMIND_LEDGER_MODE"); mode != "" {
		c.Ledger.Mode = mode
	}
	if iv := os.Getenv("OVERMIND_LOOP_INTERVAL"); iv != "" {
		c.Loop.Interval = iv
	}
	if lvl := os.Getenv("OVERMIND_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
	if floor := os.Getenv("OVERMIND_AGENT_FLOOR"); floor != "" {
		if n, err := strconv.Atoi(floor); err == nil && n >= 0 {
			c.Thresholds.AgentFloor = n
		}
	}
}

// GetInterval returns the target cycle interval as a duration.
func (c *Config) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Loop.Interval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetErrorCooldown returns the post-failure cooldown as a duration.
func (c *Config) GetErrorCooldown() time.Duration {
	d, err := time.ParseDuration(c.Loop.ErrorCooldown)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetRetryBase returns the submitter's linear backoff base as a duration.
func (c *Config) GetRetryBase() time.Duration {
	d, err := time.ParseDuration(c.Ledger.RetryBase)
	if err != nil {
		return time.Second
	}
	return d
}

// GetLedgerTimeout returns the per-submission budget as a duration.
func (c *Config) GetLedgerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Ledger.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetCriticalIdle returns the idle span past which an agent is critical.
func (c *Config) GetCriticalIdle() time.Duration {
	d, err := time.ParseDuration(c.Thresholds.CriticalIdle)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetDegradedIdle returns the idle span past which an agent is degraded.
func (c *Config) GetDegradedIdle() time.Duration {
	d, err := time.ParseDuration(c.Thresholds.DegradedIdle)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Thresholds.WeightMin <= 0 || c.Thresholds.WeightMax <= c.Thresholds.WeightMin {
		return fmt.Errorf("invalid weight bounds [%v, %v]", c.Thresholds.WeightMin, c.Thresholds.WeightMax)
	}
	if c.Thresholds.WeightMax > 1 {
		return fmt.Errorf("thresholds.weight_max must not exceed 1.0")
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("ledger.max_attempts must be at least 1")
	}
	switch c.Ledger.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("invalid ledger mode: %s (valid: local, remote)", c.Ledger.Mode)
	}
	if c.Ledger.Mode == "remote" && c.Ledger.Endpoint == "" {
		return fmt.Errorf("ledger.endpoint required in remote mode")
	}
	return nil
}
