package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.PageSize != 50 || cfg.Scorer.Type != "heuristic" {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFileWithPartialValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
search:
  page_size: 25
scorer:
  type: gemini
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.PageSize != 25 {
		t.Errorf("page_size = %d, want 25", cfg.Search.PageSize)
	}
	if cfg.Scorer.Type != "gemini" {
		t.Errorf("scorer = %s, want gemini", cfg.Scorer.Type)
	}
	// Unset fields fall back to defaults.
	if cfg.Search.BaseURL == "" || cfg.Sweep.Workers != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRIALMATCH_SCORER", "gemini")
	t.Setenv("TRIALMATCH_SWEEP_WORKERS", "8")
	t.Setenv("TRIALMATCH_ARTIFACT_DB", "/tmp/override.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scorer.Type != "gemini" {
		t.Errorf("scorer = %s, want gemini", cfg.Scorer.Type)
	}
	if cfg.Sweep.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Sweep.Workers)
	}
	if cfg.ArtifactDB != "/tmp/override.db" {
		t.Errorf("artifact db = %s", cfg.ArtifactDB)
	}
}

func TestValidateRejections(t *testing.T) {
	for name, mutate := range map[string]func(*AppConfig){
		"bad page size": func(c *AppConfig) { c.Search.PageSize = 500 },
		"bad scorer":    func(c *AppConfig) { c.Scorer.Type = "oracle" },
		"zero workers":  func(c *AppConfig) { c.Sweep.Workers = 0 },
	} {
		cfg := defaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
