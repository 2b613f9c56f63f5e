package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultAnalysisConfig(t *testing.T) {
	cfg := DefaultAnalysisConfig()

	if cfg.Draws == nil || *cfg.Draws != 4000 {
		t.Errorf("Expected Draws 4000, got %v", cfg.Draws)
	}
	if cfg.GetIntervalWidth() != 0.95 {
		t.Errorf("GetIntervalWidth() = %f, want 0.95", cfg.GetIntervalWidth())
	}
	if cfg.GetExplorationModel() != "m50" {
		t.Errorf("GetExplorationModel() = %q, want m50", cfg.GetExplorationModel())
	}
	if cfg.GetArchivePath() != "" {
		t.Errorf("archive should be disabled by default, got %q", cfg.GetArchivePath())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadAnalysisConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "seed": 7,
  "draws": 500,
  "strict_join": true,
  "nls_start": {"a0": 0.8, "a1": 0.1, "b0": 2.5, "b1": 0, "delta": 1}
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadAnalysisConfig(configPath)
	if err != nil {
		t.Fatalf("LoadAnalysisConfig failed: %v", err)
	}

	if cfg.GetSeed() != 7 {
		t.Errorf("GetSeed() = %d, want 7", cfg.GetSeed())
	}
	if cfg.GetDraws() != 500 {
		t.Errorf("GetDraws() = %d, want 500", cfg.GetDraws())
	}
	if !cfg.GetStrictJoin() {
		t.Error("GetStrictJoin() = false, want true")
	}
	want := NLSStart{A0: 0.8, A1: 0.1, B0: 2.5, B1: 0, Delta: 1}
	if diff := cmp.Diff(want, cfg.GetNLSStart()); diff != "" {
		t.Errorf("NLSStart mismatch (-want +got):\n%s", diff)
	}
	// Omitted fields fall back to defaults.
	if cfg.GetPermutations() != 999 {
		t.Errorf("GetPermutations() = %d, want 999", cfg.GetPermutations())
	}
}

func TestLoadAnalysisConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	cases := []struct {
		name string
		path string
	}{
		{"wrong extension", write("cfg.yaml", "{}")},
		{"missing file", filepath.Join(tmpDir, "absent.json")},
		{"bad json", write("bad.json", "{not json")},
		{"bad interval", write("interval.json", `{"interval_width": 1.5}`)},
		{"few draws", write("draws.json", `{"draws": 10}`)},
		{"unknown model", write("model.json", `{"exploration_model": "m25"}`)},
		{"negative increment", write("inc.json", `{"correlogram_increment": -1}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadAnalysisConfig(tc.path); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	fileCfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultAnalysisConfig(), fileCfg); diff != "" {
		t.Errorf("%s drifted from DefaultAnalysisConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}
