// Package limits provides centralized bounds and validation functions for
// studio state. This package ensures consistent enforcement across all
// components of the rackcore implementation.
//
// # Bound Hierarchy
//
// The package defines the bounds that keep the frame-driven simulation and
// user-supplied state well behaved:
//
//   - MaxParticles (300): The hard cap on live particles per visualizer
//     bridge. Bursts that would grow past this drop the oldest particles,
//     bounding memory and render cost indefinitely.
//
//   - MinBurstLow / MaxBurstLow (10 / 40): The burst size range at the low
//     complexity tier. Higher tiers scale by HighTierBurstFactor.
//
//   - MaxPresetNameLength (64): Preset names stay displayable in a rack
//     header.
//
//   - MaxClipBytes (16MB): The absolute maximum for uploaded audio clips.
//     This prevents memory exhaustion from oversized payloads.
//
//   - MaxAnimationIntensity (100): The global animation intensity range is
//     0–100.
//
// # Validation Functions
//
// Each validation function checks for empty input and limit violations:
//
//	err := limits.ValidatePresetName(name)
//	if err != nil {
//	    // Handle validation error (ErrEmptyInput or ErrTooLarge)
//	}
//
// Clamp helpers force values into range where a silent correction is the
// documented behavior rather than an error:
//
//	intensity = limits.ClampIntensity(intensity)
//
// # Error Types
//
// The package provides structured errors with context:
//
//   - ErrEmptyInput: Returned when an empty or nil value is provided
//   - ErrTooLarge: Returned when input exceeds the specified limit
//   - ErrOutOfRange: Returned when a numeric value falls outside its range
package limits
