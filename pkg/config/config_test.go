package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"msacbgcorr/pkg/msac"
	"msacbgcorr/pkg/polyfit"
)

// TestDefaultConfig verifies the published defaults for both flow types
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(false)
	if cfg.MSAC.Threshold != 0.01 || cfg.MSAC.Samples != 10 || cfg.MSAC.Trials != 100 {
		t.Errorf("Unexpected MSAC defaults: %+v", cfg.MSAC)
	}
	if cfg.Mask.MagnitudeThreshold != 0.08 || cfg.Processing.FlowDimensions != 1 {
		t.Errorf("Unexpected 2D defaults: mask %f, dims %d",
			cfg.Mask.MagnitudeThreshold, cfg.Processing.FlowDimensions)
	}

	cfg = DefaultConfig(true)
	if cfg.Mask.MagnitudeThreshold != 0.12 || cfg.Processing.FlowDimensions != 3 {
		t.Errorf("Unexpected 4D defaults: mask %f, dims %d",
			cfg.Mask.MagnitudeThreshold, cfg.Processing.FlowDimensions)
	}

	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("Default config should produce valid params: %v", err)
	}
	if params.Channels != 3 || params.CorrectionOrder != 3 || params.Degenerate != msac.Abort {
		t.Errorf("Unexpected params: %+v", params)
	}
}

// TestLoadMissingConfig verifies that a missing file yields defaults
func TestLoadMissingConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MSAC.Trials != 100 {
		t.Errorf("Expected default trials 100, got %d", cfg.MSAC.Trials)
	}
}

// TestSaveAndLoadConfig verifies that a saved configuration is read back
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig(false)
	cfg.MSAC.Trials = 250
	cfg.MSAC.DegenerateSamples = "skip"
	cfg.Correction.FitOrder = 2
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.MSAC.Trials != 250 || loaded.Correction.FitOrder != 2 {
		t.Errorf("Expected saved values, got trials %d order %d", loaded.MSAC.Trials, loaded.Correction.FitOrder)
	}
	// Values present in the file override the 4D defaults
	if loaded.Processing.FlowDimensions != 1 {
		t.Errorf("Expected flow dimensions 1 from file, got %d", loaded.Processing.FlowDimensions)
	}

	params, err := loaded.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if params.Degenerate != msac.Skip {
		t.Errorf("Expected skip policy, got %v", params.Degenerate)
	}
}

// TestPartialConfig verifies that keys absent from the file keep defaults
func TestPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("msac:\n  samples: 6\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MSAC.Samples != 6 {
		t.Errorf("Expected samples 6, got %d", cfg.MSAC.Samples)
	}
	if cfg.Processing.FlowDimensions != 3 || cfg.MSAC.Trials != 100 {
		t.Errorf("Expected defaults for absent keys, got dims %d trials %d",
			cfg.Processing.FlowDimensions, cfg.MSAC.Trials)
	}
}

// TestInvalidConfig verifies that bad values surface as configuration errors
func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig(false)
	cfg.Correction.FitOrder = 5
	if _, err := cfg.Params(); !errors.Is(err, polyfit.ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}

	cfg = DefaultConfig(false)
	cfg.MSAC.DegenerateSamples = "sometimes"
	if _, err := cfg.Params(); !errors.Is(err, polyfit.ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("msac: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path, false); err == nil {
		t.Errorf("Expected a parse error for malformed YAML")
	}
}
