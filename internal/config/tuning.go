// Package config loads engraving tuning parameters from JSON. Fields are
// pointers so a partial file overlays cleanly on top of defaults: anything
// omitted keeps its built-in value.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Built-in defaults, used for any field a config file omits.
const (
	DefaultPixelSpacing        = 0.07
	DefaultConfidenceThreshold = 0.5
	DefaultDitherDensity       = 0.5
	DefaultHistoryCapacity     = 50
	DefaultBrightnessLevel     = 1
	DefaultDedupGridSize       = 0.05
)

// TuningConfig is the engraving tuning overlay. The schema doubles as the
// runtime-update payload, so the same JSON works for startup configuration
// and live adjustment.
type TuningConfig struct {
	// Reconstruction params
	PixelSpacing        *float64 `json:"pixel_spacing,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`

	// Dither params
	DitherDensity *float64 `json:"dither_density,omitempty"`
	InvertDither  *bool    `json:"invert_dither,omitempty"`

	// Editing params
	HistoryCapacity *int `json:"history_capacity,omitempty"`

	// Export params
	BrightnessLevel *int     `json:"brightness_level,omitempty"`
	DedupGridSize   *float64 `json:"dedup_grid_size,omitempty"`

	// Depth service endpoint (optional)
	DepthServiceURL *string `json:"depth_service_url,omitempty"`
}

// EmptyTuningConfig returns a config with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads and validates a config file. The file must carry a
// .json extension and stay under 1MB; omitted fields retain defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that set fields carry usable values.
func (c *TuningConfig) Validate() error {
	if c.PixelSpacing != nil && *c.PixelSpacing <= 0 {
		return fmt.Errorf("pixel_spacing must be positive, got %f", *c.PixelSpacing)
	}
	if c.ConfidenceThreshold != nil && (*c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1) {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
	}
	if c.DitherDensity != nil && (*c.DitherDensity < 0 || *c.DitherDensity > 1) {
		return fmt.Errorf("dither_density must be between 0 and 1, got %f", *c.DitherDensity)
	}
	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be at least 1, got %d", *c.HistoryCapacity)
	}
	if c.BrightnessLevel != nil && *c.BrightnessLevel < 1 {
		return fmt.Errorf("brightness_level must be at least 1, got %d", *c.BrightnessLevel)
	}
	if c.DedupGridSize != nil && *c.DedupGridSize <= 0 {
		return fmt.Errorf("dedup_grid_size must be positive, got %f", *c.DedupGridSize)
	}
	return nil
}

// Getter methods resolve a field or its default.

func (c *TuningConfig) GetPixelSpacing() float64 {
	if c != nil && c.PixelSpacing != nil {
		return *c.PixelSpacing
	}
	return DefaultPixelSpacing
}

func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c != nil && c.ConfidenceThreshold != nil {
		return *c.ConfidenceThreshold
	}
	return DefaultConfidenceThreshold
}

func (c *TuningConfig) GetDitherDensity() float64 {
	if c != nil && c.DitherDensity != nil {
		return *c.DitherDensity
	}
	return DefaultDitherDensity
}

func (c *TuningConfig) GetInvertDither() bool {
	if c != nil && c.InvertDither != nil {
		return *c.InvertDither
	}
	return false
}

func (c *TuningConfig) GetHistoryCapacity() int {
	if c != nil && c.HistoryCapacity != nil {
		return *c.HistoryCapacity
	}
	return DefaultHistoryCapacity
}

func (c *TuningConfig) GetBrightnessLevel() int {
	if c != nil && c.BrightnessLevel != nil {
		return *c.BrightnessLevel
	}
	return DefaultBrightnessLevel
}

func (c *TuningConfig) GetDedupGridSize() float64 {
	if c != nil && c.DedupGridSize != nil {
		return *c.DedupGridSize
	}
	return DefaultDedupGridSize
}

func (c *TuningConfig) GetDepthServiceURL() string {
	if c != nil && c.DepthServiceURL != nil {
		return *c.DepthServiceURL
	}
	return ""
}

// Merge overlays other's set fields onto c, returning a new config.
func (c *TuningConfig) Merge(other *TuningConfig) *TuningConfig {
	out := *c
	if other == nil {
		return &out
	}
	if other.PixelSpacing != nil {
		out.PixelSpacing = other.PixelSpacing
	}
	if other.ConfidenceThreshold != nil {
		out.ConfidenceThreshold = other.ConfidenceThreshold
	}
	if other.DitherDensity != nil {
		out.DitherDensity = other.DitherDensity
	}
	if other.InvertDither != nil {
		out.InvertDither = other.InvertDither
	}
	if other.HistoryCapacity != nil {
		out.HistoryCapacity = other.HistoryCapacity
	}
	if other.BrightnessLevel != nil {
		out.BrightnessLevel = other.BrightnessLevel
	}
	if other.DedupGridSize != nil {
		out.DedupGridSize = other.DedupGridSize
	}
	if other.DepthServiceURL != nil {
		out.DepthServiceURL = other.DepthServiceURL
	}
	return &out
}
