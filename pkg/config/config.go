// Package config provides configuration loading and management for msaccorrect.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"msacbgcorr/pkg/correction"
	"msacbgcorr/pkg/msac"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// MSAC search parameters
	MSAC struct {
		// Threshold truncates the MSAC residual, in units of venc
		Threshold float64 `yaml:"threshold"`

		// Samples is the number of pixels drawn per trial
		Samples int `yaml:"samples"`

		// Trials is the number of MSAC trials
		Trials int `yaml:"trials"`

		// FitOrder is the polynomial order used during the search
		FitOrder int `yaml:"fitOrder"`

		// DegenerateSamples is "abort" or "skip"
		DegenerateSamples string `yaml:"degenerateSamples"`
	} `yaml:"msac"`

	// Correction parameters
	Correction struct {
		// FitOrder is the polynomial order of the background model
		FitOrder int `yaml:"fitOrder"`
	} `yaml:"correction"`

	// Mask parameters
	Mask struct {
		// MagnitudeThreshold selects stationary-tissue candidates from the
		// peak-normalized magnitude
		MagnitudeThreshold float64 `yaml:"magnitudeThreshold"`
	} `yaml:"mask"`

	// Processing parameters
	Processing struct {
		// FlowDimensions is 1 for 2D flow and 3 for 4D flow
		FlowDimensions int `yaml:"flowDimensions"`

		// NumCores specifies how many goroutines score MSAC trials
		NumCores int `yaml:"numCores"`

		// Seed initializes the random source
		Seed uint64 `yaml:"seed"`
	} `yaml:"processing"`

	// Input normalization parameters
	Input struct {
		// PhaseScale is the raw phase range mapped onto [-1, 1)
		PhaseScale float64 `yaml:"phaseScale"`

		// Venc is the maximum encoded velocity in cm/s
		Venc float64 `yaml:"venc"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// PanelDir is where result panels are written; empty disables them
		PanelDir string `yaml:"panelDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns the published parameters for 2D flow, or for 4D flow
// when flow4D is set
func DefaultConfig(flow4D bool) *Config {
	cfg := &Config{}

	// MSAC parameters from the publication
	cfg.MSAC.Threshold = 0.01
	cfg.MSAC.Samples = 10
	cfg.MSAC.Trials = 100
	cfg.MSAC.FitOrder = 1
	cfg.MSAC.DegenerateSamples = msac.Abort.String()

	cfg.Correction.FitOrder = 3

	cfg.Mask.MagnitudeThreshold = 0.08
	cfg.Processing.FlowDimensions = 1
	if flow4D {
		cfg.Mask.MagnitudeThreshold = 0.12
		cfg.Processing.FlowDimensions = 3
	}
	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Seed = 274612

	cfg.Input.PhaseScale = 4096
	cfg.Input.Venc = 150

	cfg.Output.PanelDir = ""
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string, flow4D bool) (*Config, error) {
	cfg := DefaultConfig(flow4D)

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string, flow4D bool) error {
	return SaveConfig(DefaultConfig(flow4D), configPath)
}

// Params converts the configuration into validated correction parameters
func (cfg *Config) Params() (*correction.Params, error) {
	policy, err := msac.ParseDegeneratePolicy(cfg.MSAC.DegenerateSamples)
	if err != nil {
		return nil, err
	}

	params := &correction.Params{
		MagnitudeThreshold: cfg.Mask.MagnitudeThreshold,
		Threshold:          cfg.MSAC.Threshold,
		Samples:            cfg.MSAC.Samples,
		Trials:             cfg.MSAC.Trials,
		SearchOrder:        cfg.MSAC.FitOrder,
		CorrectionOrder:    cfg.Correction.FitOrder,
		Channels:           cfg.Processing.FlowDimensions,
		Workers:            cfg.Processing.NumCores,
		Seed:               cfg.Processing.Seed,
		Degenerate:         policy,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}
