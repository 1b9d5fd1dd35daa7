package config

import "fmt"

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	e := c.Edge
	if e.ThresholdLow < 0 || e.ThresholdHigh > 1020 {
		return fmt.Errorf("edge thresholds must be within 0-1020, got %d/%d", e.ThresholdLow, e.ThresholdHigh)
	}
	if e.ThresholdLow >= e.ThresholdHigh {
		return fmt.Errorf("edge.threshold_low (%d) must be < edge.threshold_high (%d)", e.ThresholdLow, e.ThresholdHigh)
	}
	if e.BlurRadius < 0 {
		return fmt.Errorf("edge.blur_radius must be >= 0")
	}
	if e.DilateIterations < 0 {
		return fmt.Errorf("edge.dilate_iterations must be >= 0")
	}

	ct := c.Contour
	if ct.MinArea < 0 {
		return fmt.Errorf("contour.min_area must be >= 0")
	}
	if ct.MinAreaRatio < 0 || ct.MinAreaRatio >= 1 {
		return fmt.Errorf("contour.min_area_ratio must be within [0, 1)")
	}
	if ct.ApproxEpsilonRatio <= 0 || ct.ApproxEpsilonRatio >= 0.5 {
		return fmt.Errorf("contour.approx_epsilon_ratio must be within (0, 0.5)")
	}

	g := c.Gate
	if g.MinAreaRatio < 0 || g.MaxAreaRatio > 1 || g.MinAreaRatio >= g.MaxAreaRatio {
		return fmt.Errorf("gate area bounds must satisfy 0 <= min < max <= 1, got [%g, %g]", g.MinAreaRatio, g.MaxAreaRatio)
	}
	if g.MinAspect < 1 || g.MinAspect >= g.MaxAspect {
		return fmt.Errorf("gate aspect bounds must satisfy 1 <= min < max, got [%g, %g]", g.MinAspect, g.MaxAspect)
	}

	s := c.Stability
	if s.MaxMovement <= 0 {
		return fmt.Errorf("stability.max_movement must be > 0")
	}
	if s.MaxAreaChange <= 0 {
		return fmt.Errorf("stability.max_area_change must be > 0")
	}
	if s.LockFrames <= 0 {
		return fmt.Errorf("stability.lock_frames must be > 0")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("stability.timeout must be > 0")
	}

	if c.Rectify.MinOutputSize <= 0 {
		return fmt.Errorf("rectify.min_output_size must be > 0")
	}
	if c.Detection.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("detection.max_consecutive_failures must be >= 0")
	}
	if c.Source.FPS < 0 {
		return fmt.Errorf("source.fps must be >= 0")
	}
	return nil
}
