// Package settings holds the process-wide studio configuration injected
// into every plugin bridge and the shell.
//
// The Global record is loaded once at session start, mutated through the
// Manager's explicit setters, and persisted through the injected Saver on
// every change.
package settings

import (
	"time"

	"github.com/opd-ai/rackcore/limits"
)

// Tier selects how much work the visualizers are allowed to do per frame.
type Tier string

const (
	// TierLow bounds particle counts for constrained machines.
	TierLow Tier = "low"
	// TierHigh is the full-detail tier.
	TierHigh Tier = "high"
)

// Global is the process-wide configuration record.
type Global struct {
	// AnimationIntensity ranges 0–100 and affects transition durations and
	// visualizer motion speed. Higher values mean faster perceived motion.
	AnimationIntensity int `json:"animationIntensity"`
	// VisualizerComplexity bounds per-burst particle counts. Any tier other
	// than TierLow behaves as the full-detail tier.
	VisualizerComplexity Tier `json:"visualizerComplexity"`
	// Theme names the active panel skin.
	Theme string `json:"theme"`
}

// Defaults returns the configuration used before any persisted record exists.
func Defaults() Global {
	return Global{
		AnimationIntensity:   50,
		VisualizerComplexity: TierHigh,
		Theme:                "midnight",
	}
}

// MotionScale maps AnimationIntensity 0–100 onto the multiplier range
// 1.0–0.25. The multiplier scales durations and periods, so a smaller
// multiplier means faster perceived motion.
func (g Global) MotionScale() float64 {
	intensity := limits.ClampIntensity(g.AnimationIntensity)
	return 1.0 - 0.75*float64(intensity)/float64(limits.MaxAnimationIntensity)
}

// TransitionDuration scales a base transition time by the motion multiplier.
func (g Global) TransitionDuration(base time.Duration) time.Duration {
	return time.Duration(float64(base) * g.MotionScale())
}

// ComplexityFactor returns the burst multiplier for the active tier:
// 1 at TierLow, limits.HighTierBurstFactor otherwise.
func (g Global) ComplexityFactor() int {
	if g.VisualizerComplexity == TierLow {
		return 1
	}
	return limits.HighTierBurstFactor
}
