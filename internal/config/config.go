// Package config loads application configuration from YAML with
// environment-variable overrides for deployment-specific values.
package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region types

// SearchConfig configures the trial registry client.
type SearchConfig struct {
	BaseURL     string `yaml:"base_url"`
	PageSize    int    `yaml:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// ScorerConfig selects the relevance scorer implementation.
type ScorerConfig struct {
	// Type is "heuristic" (in-process, deterministic) or "gemini".
	Type        string `yaml:"type"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// SweepConfig bounds the ablation worker pool.
type SweepConfig struct {
	Workers         int `yaml:"workers"`
	CellTimeoutSecs int `yaml:"cell_timeout_secs"`
}

// AppConfig is the root application configuration.
type AppConfig struct {
	Search       SearchConfig `yaml:"search"`
	Scorer       ScorerConfig `yaml:"scorer"`
	KnowledgeDir string       `yaml:"knowledge_dir"`
	ArtifactDB   string       `yaml:"artifact_db"`
	Sweep        SweepConfig  `yaml:"sweep"`
}

// ScorerTimeout returns the scorer call bound as a duration.
func (c *AppConfig) ScorerTimeout() time.Duration {
	return time.Duration(c.Scorer.TimeoutSecs) * time.Second
}

// SearchTimeout returns the registry call bound as a duration.
func (c *AppConfig) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSecs) * time.Second
}

// CellTimeout returns the per-cell sweep bound as a duration.
func (c *AppConfig) CellTimeout() time.Duration {
	return time.Duration(c.Sweep.CellTimeoutSecs) * time.Second
}

// #endregion types

// #region loading

// Load reads a config file, applies defaults and environment
// overrides. A missing file is not an error: defaults apply.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		applyDefaults(cfg)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Search: SearchConfig{
			BaseURL:     "https://clinicaltrials.gov/api/v2/studies",
			PageSize:    50,
			TimeoutSecs: 30,
		},
		Scorer: ScorerConfig{
			Type:        "heuristic",
			Model:       "gemini-1.5-flash",
			APIKeyEnv:   "GEMINI_API_KEY",
			TimeoutSecs: 30,
		},
		KnowledgeDir: "knowledge",
		ArtifactDB:   "artifacts.db",
		Sweep: SweepConfig{
			Workers:         4,
			CellTimeoutSecs: 120,
		},
	}
}

func applyDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Search.BaseURL == "" {
		cfg.Search.BaseURL = def.Search.BaseURL
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = def.Search.PageSize
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = def.Search.TimeoutSecs
	}
	if cfg.Scorer.Type == "" {
		cfg.Scorer.Type = def.Scorer.Type
	}
	if cfg.Scorer.Model == "" {
		cfg.Scorer.Model = def.Scorer.Model
	}
	if cfg.Scorer.APIKeyEnv == "" {
		cfg.Scorer.APIKeyEnv = def.Scorer.APIKeyEnv
	}
	if cfg.Scorer.TimeoutSecs == 0 {
		cfg.Scorer.TimeoutSecs = def.Scorer.TimeoutSecs
	}
	if cfg.KnowledgeDir == "" {
		cfg.KnowledgeDir = def.KnowledgeDir
	}
	if cfg.ArtifactDB == "" {
		cfg.ArtifactDB = def.ArtifactDB
	}
	if cfg.Sweep.Workers == 0 {
		cfg.Sweep.Workers = def.Sweep.Workers
	}
	if cfg.Sweep.CellTimeoutSecs == 0 {
		cfg.Sweep.CellTimeoutSecs = def.Sweep.CellTimeoutSecs
	}
}

// applyEnvOverrides lets deployment environments override file values
// without editing the file.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("TRIALMATCH_SEARCH_URL"); v != "" {
		cfg.Search.BaseURL = v
	}
	if v := os.Getenv("TRIALMATCH_SCORER"); v != "" {
		cfg.Scorer.Type = v
	}
	if v := os.Getenv("TRIALMATCH_KNOWLEDGE_DIR"); v != "" {
		cfg.KnowledgeDir = v
	}
	if v := os.Getenv("TRIALMATCH_ARTIFACT_DB"); v != "" {
		cfg.ArtifactDB = v
	}
	if v := os.Getenv("TRIALMATCH_SWEEP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sweep.Workers = n
		}
	}
}

// Validate rejects configurations no component could run with.
func (c *AppConfig) Validate() error {
	if c.Search.PageSize <= 0 || c.Search.PageSize > 100 {
		return fmt.Errorf("search.page_size must be in 1..100, got %d", c.Search.PageSize)
	}
	switch c.Scorer.Type {
	case "heuristic", "gemini":
	default:
		return fmt.Errorf("scorer.type must be heuristic or gemini, got %q", c.Scorer.Type)
	}
	if c.Sweep.Workers <= 0 {
		return fmt.Errorf("sweep.workers must be positive, got %d", c.Sweep.Workers)
	}
	return nil
}

// #endregion loading
