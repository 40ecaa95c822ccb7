// Package config provides unified configuration loading for the TELOS core.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TelosConfig contains all TELOS core configuration settings.
type TelosConfig struct {
	// Memory contains tiered memory fabric tuning.
	Memory MemoryConfig `json:"memory" yaml:"memory"`

	// HRC contains hierarchical cognitive controller tuning.
	HRC HRCConfig `json:"hrc" yaml:"hrc"`

	// Planner contains active-inference planner tuning.
	Planner PlannerConfig `json:"planner" yaml:"planner"`

	// Chaos contains chaos conductor tuning.
	Chaos ChaosConfig `json:"chaos" yaml:"chaos"`

	// GraphIndex contains graph indexer tuning.
	GraphIndex GraphIndexConfig `json:"graph_index" yaml:"graph_index"`

	// Transducer configures the external LLM transducer client.
	Transducer TransducerConfig `json:"transducer" yaml:"transducer"`

	// Logging contains settings for operational and decision logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// DataRoot is the root directory for persisted state: l2/ (the L2
	// vector index), l3/ (the L3 object store and the concept repository)
	// and decisions.jsonl. The outbox, the chaos experiment history and the
	// planner's world model are held in memory and are not written here.
	DataRoot string `json:"data_root" yaml:"data_root"`
}

// MemoryConfig configures the tiered memory fabric.
type MemoryConfig struct {
	// L1MaxEntries and L2MaxEntries are the initial per-tier capacities.
	// Adaptive sizing grows/shrinks them at runtime.
	L1MaxEntries int `json:"l1_max_entries" yaml:"l1_max_entries"`
	L2MaxEntries int `json:"l2_max_entries" yaml:"l2_max_entries"`

	// PromotionThreshold is the L2 access count that schedules promotion.
	PromotionThreshold int `json:"promotion_threshold" yaml:"promotion_threshold"`

	// TargetHitRatio drives adaptive sizing decisions.
	TargetHitRatio float64 `json:"target_hit_ratio" yaml:"target_hit_ratio"`

	// SyncIntervalSeconds is how often the sync coordinator runs.
	SyncIntervalSeconds int `json:"sync_interval_seconds" yaml:"sync_interval_seconds"`

	// ConflictStrategy selects last_write_wins (default), merge, or
	// version_vector.
	ConflictStrategy string `json:"conflict_strategy" yaml:"conflict_strategy"`

	// VectorDim is the dense vector dimension for ANN adapters.
	VectorDim int `json:"vector_dim" yaml:"vector_dim"`

	// LanceDBURI, when set, switches the L2 ANN backend to LanceDB instead
	// of the embedded SQLite fallback.
	LanceDBURI string `json:"lancedb_uri,omitempty" yaml:"lancedb_uri,omitempty"`
}

// HRCConfig configures the hierarchical cognitive controller.
type HRCConfig struct {
	MaxElaborationCycles int     `json:"max_elaboration_cycles" yaml:"max_elaboration_cycles"`
	LearningRate          float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxSubgoals           int     `json:"max_subgoals" yaml:"max_subgoals"`
	ChunkingEnabled        bool    `json:"chunking_enabled" yaml:"chunking_enabled"`
}

// PlannerConfig configures the active-inference planner.
type PlannerConfig struct {
	Horizon int `json:"horizon" yaml:"horizon"`
}

// ChaosConfig configures the chaos conductor.
type ChaosConfig struct {
	SteadyStateCheckIntervalSeconds int `json:"steady_state_check_interval_seconds" yaml:"steady_state_check_interval_seconds"`
	ExperimentTimeoutSeconds        int `json:"experiment_timeout_seconds" yaml:"experiment_timeout_seconds"`
}

// GraphIndexConfig configures the graph indexer.
type GraphIndexConfig struct {
	IndexIntervalSeconds int     `json:"index_interval_seconds" yaml:"index_interval_seconds"`
	MaxLevels            int     `json:"max_levels" yaml:"max_levels"`
	Resolution           float64 `json:"resolution" yaml:"resolution"`
	SummaryBatchSize     int     `json:"summary_batch_size" yaml:"summary_batch_size"`
}

// TransducerConfig configures the external LLM transducer RPC client.
type TransducerConfig struct {
	// Endpoint is the gRPC target for the transducer service.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// APIKey supports ${VAR} syntax for env vars. Redacted in String().
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Timeout is checked by Validate to be non-negative; the transducer
	// client does not apply it to its calls.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Enabled indicates whether transducer calls are permitted; when false,
	// callers receive a "disabled" error rather than attempting a connection.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// RedactedAPIKey returns the API key with most characters masked.
func (c TransducerConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer to prevent accidental API key logging.
func (c TransducerConfig) String() string {
	return fmt.Sprintf("TransducerConfig{Endpoint:%s, Enabled:%t, APIKey:%s}", c.Endpoint, c.Enabled, c.RedactedAPIKey())
}

// LoggingConfig configures the core's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables decision logging to <data_root>/decisions.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a TelosConfig with sensible defaults.
func Default() *TelosConfig {
	return &TelosConfig{
		Memory: MemoryConfig{
			L1MaxEntries:        1000,
			L2MaxEntries:        10000,
			PromotionThreshold:  100,
			TargetHitRatio:      0.85,
			SyncIntervalSeconds: 300,
			ConflictStrategy:    "last_write_wins",
			VectorDim:           768,
		},
		HRC: HRCConfig{
			MaxElaborationCycles: 100,
			LearningRate:         0.1,
			MaxSubgoals:          10,
			ChunkingEnabled:      true,
		},
		Planner: PlannerConfig{
			Horizon: 2,
		},
		Chaos: ChaosConfig{
			SteadyStateCheckIntervalSeconds: 10,
			ExperimentTimeoutSeconds:        300,
		},
		GraphIndex: GraphIndexConfig{
			IndexIntervalSeconds: 3600,
			MaxLevels:            3,
			Resolution:           1.0,
			SummaryBatchSize:     10,
		},
		Transducer: TransducerConfig{
			Timeout: 30 * time.Second,
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		DataRoot: ".telos",
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> <root>/telos.yaml -> environment variables.
func Load(root string) (*TelosConfig, error) {
	cfg := Default()

	configPath := filepath.Join(root, "telos.yaml")
	if _, statErr := os.Stat(configPath); statErr == nil {
		fileConfig, loadErr := LoadFromFile(configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		cfg = fileConfig
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*TelosConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transducer.APIKey = expandEnvVars(cfg.Transducer.APIKey)

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *TelosConfig) Validate() error {
	if c.Memory.TargetHitRatio < 0 || c.Memory.TargetHitRatio > 1 {
		return fmt.Errorf("memory.target_hit_ratio must be between 0 and 1, got %f", c.Memory.TargetHitRatio)
	}

	validStrategies := map[string]bool{"last_write_wins": true, "merge": true, "version_vector": true}
	if !validStrategies[c.Memory.ConflictStrategy] {
		return fmt.Errorf("invalid memory.conflict_strategy: %s", c.Memory.ConflictStrategy)
	}

	if c.HRC.LearningRate < 0 || c.HRC.LearningRate > 1 {
		return fmt.Errorf("hrc.learning_rate must be between 0 and 1, got %f", c.HRC.LearningRate)
	}
	if c.HRC.MaxSubgoals < 1 {
		return fmt.Errorf("hrc.max_subgoals must be >= 1, got %d", c.HRC.MaxSubgoals)
	}

	if c.GraphIndex.MaxLevels < 1 {
		return fmt.Errorf("graph_index.max_levels must be >= 1, got %d", c.GraphIndex.MaxLevels)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	if c.Transducer.Timeout < 0 {
		return fmt.Errorf("transducer.timeout must be non-negative, got %v", c.Transducer.Timeout)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *TelosConfig) {
	if v := os.Getenv("TELOS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TELOS_DATA_ROOT"); v != "" {
		cfg.DataRoot = v
	}
	if v := os.Getenv("TELOS_TRANSDUCER_ENDPOINT"); v != "" {
		cfg.Transducer.Endpoint = v
	}
	if v := os.Getenv("TELOS_TRANSDUCER_API_KEY"); v != "" {
		cfg.Transducer.APIKey = v
	}
	if v := os.Getenv("TELOS_TRANSDUCER_ENABLED"); v != "" {
		cfg.Transducer.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TELOS_MEMORY_L1_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.L1MaxEntries = n
		}
	}
	if v := os.Getenv("TELOS_MEMORY_L2_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.L2MaxEntries = n
		}
	}
	if v := os.Getenv("TELOS_MEMORY_SYNC_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.SyncIntervalSeconds = n
		}
	}
	if v := os.Getenv("TELOS_MEMORY_LANCEDB_URI"); v != "" {
		cfg.Memory.LanceDBURI = v
	}
	if v := os.Getenv("TELOS_HRC_MAX_CYCLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HRC.MaxElaborationCycles = n
		}
	}
	if v := os.Getenv("TELOS_CHAOS_EXPERIMENT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chaos.ExperimentTimeoutSeconds = n
		}
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment
// variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
