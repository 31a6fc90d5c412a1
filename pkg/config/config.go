// Package config provides configuration loading and management for
// radscan analyses. It handles loading configuration from YAML files
// and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Analysis modes selectable in the configuration. The roi modes yield
// one value per region pair; the image modes yield a per-pixel map.
const (
	ModeSimpleROI   = "simple-roi"
	ModeSimpleImage = "simple-image"
	ModeFullROI     = "full-roi"
	ModeFullImage   = "full-image"
)

// Config represents the analysis configuration loaded from YAML.
type Config struct {
	// Analysis parameters
	Analysis struct {
		// Mode selects one of the four analysis procedures.
		Mode string `yaml:"mode"`

		// Channel is the color channel to analyze (RED, GREEN or BLUE).
		Channel string `yaml:"channel"`

		// CalibrationFile is the path to a saved calibration record.
		// When empty, results are NetOD instead of dose.
		CalibrationFile string `yaml:"calibrationFile"`
	} `yaml:"analysis"`

	// Input file lists. Each image entry may name several scans of the
	// same film, which are averaged before analysis.
	Input struct {
		// PreImages are the pre-irradiation scans.
		PreImages []string `yaml:"preImages"`

		// PreROIs is the ImageJ ROI file for the pre-irradiation scans.
		PreROIs string `yaml:"preROIs"`

		// PostImages are the post-irradiation scans.
		PostImages []string `yaml:"postImages"`

		// PostROIs is the ImageJ ROI file for the post-irradiation scans.
		PostROIs string `yaml:"postROIs"`

		// ControlPreImages and ControlPostImages are scans of the
		// unirradiated control film, used by the full modes.
		ControlPreImages  []string `yaml:"controlPreImages"`
		ControlPreROIs    string   `yaml:"controlPreROIs"`
		ControlPostImages []string `yaml:"controlPostImages"`
		ControlPostROIs   string   `yaml:"controlPostROIs"`

		// BackgroundImages are scans with no film present, used by the
		// full modes to correct the scanner dark signal. Optional.
		BackgroundImages []string `yaml:"backgroundImages"`
		BackgroundROIs   string   `yaml:"backgroundROIs"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// MapFile is where the per-pixel result of the image modes is
		// saved as a PNG.
		MapFile string `yaml:"mapFile"`

		// PlotFile, when set, saves a plot of the calibration curve.
		PlotFile string `yaml:"plotFile"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.Mode = ModeSimpleROI
	cfg.Analysis.Channel = "RED"

	cfg.Output.MapFile = "dose_map.png"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
