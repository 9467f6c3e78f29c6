// Package limits provides centralized bounds for studio state and validation functions.
// This ensures consistent enforcement across different components of the system.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxParticles is the hard cap on live particles per visualizer bridge.
	// Growth beyond this drops the oldest particles so render cost stays bounded
	// regardless of transient rate.
	MaxParticles = 300

	// MinBurstLow is the smallest particle burst emitted at the low complexity tier
	// for a non-zero mix amount.
	MinBurstLow = 10

	// MaxBurstLow is the largest particle burst emitted at the low complexity tier.
	MaxBurstLow = 40

	// HighTierBurstFactor scales burst sizes above the low tier.
	HighTierBurstFactor = 3

	// MaxAnimationIntensity is the upper bound of the global animation intensity range.
	MaxAnimationIntensity = 100

	// MaxPresetNameLength is the maximum allowed preset name length in bytes.
	// The value keeps names displayable in a rack header and fits in a uint8.
	MaxPresetNameLength = 64

	// MaxPromptLength is the maximum allowed audio generation prompt length in bytes.
	MaxPromptLength = 500

	// MaxClipBytes is the absolute maximum for any audio clip accepted for
	// envelope extraction. This prevents memory exhaustion from oversized uploads (16MB).
	MaxClipBytes = 16 * 1024 * 1024

	// MaxControllerValue is the largest raw MIDI control-change value.
	MaxControllerValue = 127
)

var (
	// ErrEmptyInput indicates an empty value was provided
	ErrEmptyInput = errors.New("empty input")

	// ErrTooLarge indicates input exceeds its maximum size
	ErrTooLarge = errors.New("input too large")

	// ErrOutOfRange indicates a numeric value is outside its allowed range
	ErrOutOfRange = errors.New("value out of range")
)

// ValidatePresetName validates a preset name against MaxPresetNameLength.
// Returns an error with context if the name is empty or exceeds the limit.
func ValidatePresetName(name string) error {
	if len(name) == 0 {
		return ErrEmptyInput
	}
	if len(name) > MaxPresetNameLength {
		return fmt.Errorf("%w: name length %d exceeds limit %d", ErrTooLarge, len(name), MaxPresetNameLength)
	}
	return nil
}

// ValidatePrompt validates an audio generation prompt against MaxPromptLength.
// Returns an error with context if the prompt is empty or exceeds the limit.
func ValidatePrompt(prompt string) error {
	if len(prompt) == 0 {
		return ErrEmptyInput
	}
	if len(prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt length %d exceeds limit %d", ErrTooLarge, len(prompt), MaxPromptLength)
	}
	return nil
}

// ValidateClip validates clip data against the absolute maximum (MaxClipBytes).
// This limit prevents memory exhaustion and should be used for all untrusted uploads.
// Returns an error with context if the data is empty or exceeds the limit.
func ValidateClip(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyInput
	}
	if len(data) > MaxClipBytes {
		return fmt.Errorf("%w: clip size %d exceeds limit %d", ErrTooLarge, len(data), MaxClipBytes)
	}
	return nil
}

// ValidateIntensity validates an animation intensity value against the 0–MaxAnimationIntensity range.
// Returns an error with context if the value falls outside the range.
func ValidateIntensity(value int) error {
	if value < 0 || value > MaxAnimationIntensity {
		return fmt.Errorf("%w: intensity %d outside 0–%d", ErrOutOfRange, value, MaxAnimationIntensity)
	}
	return nil
}

// ClampIntensity forces an animation intensity value into the 0–MaxAnimationIntensity range.
func ClampIntensity(value int) int {
	if value < 0 {
		return 0
	}
	if value > MaxAnimationIntensity {
		return MaxAnimationIntensity
	}
	return value
}

// ClampParticles forces a particle count into the 0–MaxParticles range.
func ClampParticles(count int) int {
	if count < 0 {
		return 0
	}
	if count > MaxParticles {
		return MaxParticles
	}
	return count
}
