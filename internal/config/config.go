// Package config holds the tunable parameters of the card scanner and loads
// them from named profiles and YAML files.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete scanner configuration.
type Config struct {
	Edge      EdgeConfig      `yaml:"edge"`
	Contour   ContourConfig   `yaml:"contour"`
	Gate      GateConfig      `yaml:"gate"`
	Stability StabilityConfig `yaml:"stability"`
	Rectify   RectifyConfig   `yaml:"rectify"`
	Detection DetectionConfig `yaml:"detection"`
	Source    SourceConfig    `yaml:"source"`
}

// EdgeConfig controls the grayscale -> blur -> Canny preprocessing.
type EdgeConfig struct {
	ThresholdLow     int     `yaml:"threshold_low"`     // hysteresis low threshold (gradient units, 0-255 scale)
	ThresholdHigh    int     `yaml:"threshold_high"`    // hysteresis high threshold
	BlurRadius       float64 `yaml:"blur_radius"`       // Gaussian radius; 2 gives a 5x5 kernel
	DilateIterations int     `yaml:"dilate_iterations"` // 3x3 dilation passes over the edge map (0 = off)
}

// ContourConfig controls boundary filtering and polygon approximation.
type ContourConfig struct {
	MinArea            float64 `yaml:"min_area"`             // absolute area floor in px²
	MinAreaRatio       float64 `yaml:"min_area_ratio"`       // area floor as a fraction of the frame (0 = off)
	ApproxEpsilonRatio float64 `yaml:"approx_epsilon_ratio"` // Douglas-Peucker tolerance as a fraction of the perimeter
}

// GateConfig is the per-candidate quality gate applied before stability
// comparison.
type GateConfig struct {
	MinAreaRatio  float64 `yaml:"min_area_ratio"`
	MaxAreaRatio  float64 `yaml:"max_area_ratio"`
	MinAspect     float64 `yaml:"min_aspect"` // long/short edge of the oriented bounding box
	MaxAspect     float64 `yaml:"max_aspect"`
	RequireConvex bool    `yaml:"require_convex"`
}

// StabilityConfig controls lock-in and timeout behaviour.
type StabilityConfig struct {
	MaxMovement   float64       `yaml:"max_movement"`    // centroid displacement in px
	MaxAreaChange float64       `yaml:"max_area_change"` // relative area change
	LockFrames    int           `yaml:"lock_frames"`     // consecutive stable frames before capture
	Timeout       time.Duration `yaml:"timeout"`         // no gate-passing candidate for this long -> TimedOut
}

// RectifyConfig controls the perspective correction output.
type RectifyConfig struct {
	MinOutputSize int `yaml:"min_output_size"`
}

// DetectionConfig controls fault tolerance of the per-frame detector.
type DetectionConfig struct {
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// SourceConfig describes the frame source.
type SourceConfig struct {
	FPS    int  `yaml:"fps"`
	Device int  `yaml:"device"` // camera index for the gocv source
	Width  int  `yaml:"width"`  // requested capture width (0 = device default)
	Height int  `yaml:"height"` // requested capture height (0 = device default)
	Loop   bool `yaml:"loop"`   // restart image sequences when they run out
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Edge: EdgeConfig{
			ThresholdLow:     75,
			ThresholdHigh:    200,
			BlurRadius:       2,
			DilateIterations: 1,
		},
		Contour: ContourConfig{
			MinArea:            1000,
			MinAreaRatio:       0,
			ApproxEpsilonRatio: 0.02,
		},
		Gate: GateConfig{
			MinAreaRatio:  0.05,
			MaxAreaRatio:  0.85,
			MinAspect:     1.3,
			MaxAspect:     2.5,
			RequireConvex: true,
		},
		Stability: StabilityConfig{
			MaxMovement:   15,
			MaxAreaChange: 0.10,
			LockFrames:    30,               // ~1s at 30 fps
			Timeout:       10 * time.Second, // user-facing "nothing found"
		},
		Rectify: RectifyConfig{
			MinOutputSize: 100,
		},
		Detection: DetectionConfig{
			MaxConsecutiveFailures: 5,
		},
		Source: SourceConfig{
			FPS:    30,
			Width:  1280,
			Height: 720,
		},
	}
}

// StrictConfig rejects more background clutter at the cost of needing the
// card to fill more of the frame.
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.Contour.MinAreaRatio = 0.10
	cfg.Gate.MinAreaRatio = 0.10
	cfg.Gate.MaxAreaRatio = 0.80
	cfg.Gate.MinAspect = 1.4
	cfg.Gate.MaxAspect = 2.2
	cfg.Stability.MaxMovement = 8
	cfg.Stability.MaxAreaChange = 0.05
	return cfg
}

// LenientConfig accepts faint edges and small cards, for poor lighting.
func LenientConfig() Config {
	cfg := DefaultConfig()
	cfg.Edge.ThresholdLow = 50
	cfg.Edge.ThresholdHigh = 150
	cfg.Contour.MinArea = 500
	cfg.Gate.MaxAreaRatio = 0.90
	cfg.Stability.LockFrames = 20
	cfg.Stability.Timeout = 20 * time.Second
	return cfg
}

var profiles = map[string]func() Config{
	"default": DefaultConfig,
	"strict":  StrictConfig,
	"lenient": LenientConfig,
}

// Profile returns the named preset.
func Profile(name string) (Config, error) {
	if name == "" {
		name = "default"
	}
	fn, ok := profiles[name]
	if !ok {
		return Config{}, fmt.Errorf("unknown profile %q (available: %v)", name, ProfileNames())
	}
	return fn(), nil
}

// ProfileNames lists the available presets in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a YAML file over base. Keys absent from the file keep the base
// value.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, base)
}

// Parse decodes YAML over base and validates the result.
func Parse(data []byte, base Config) (Config, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
