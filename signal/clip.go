package signal

import (
	"fmt"

	"github.com/opd-ai/rackcore/limits"
)

// Clip is the precomputed energy envelope of an analyzed audio clip. The
// generator reads it, never the raw samples, so playback cost is constant
// regardless of clip length.
type Clip struct {
	name     string
	hop      float64
	envelope []float64
	onsets   []bool
}

// NewClip builds a clip from an envelope sampled every hop seconds. The
// envelope is clamped to [0, 1] and onsets shorter than the envelope are
// padded with false.
func NewClip(name string, hop float64, envelope []float64, onsets []bool) (*Clip, error) {
	if hop <= 0 {
		return nil, fmt.Errorf("%w: hop %v must be positive", limits.ErrOutOfRange, hop)
	}
	if len(envelope) == 0 {
		return nil, fmt.Errorf("%w: envelope has no slots", limits.ErrEmptyInput)
	}

	levels := make([]float64, len(envelope))
	for i, level := range envelope {
		if level < 0 {
			level = 0
		} else if level > 1 {
			level = 1
		}
		levels[i] = level
	}

	marks := make([]bool, len(envelope))
	copy(marks, onsets)

	return &Clip{
		name:     name,
		hop:      hop,
		envelope: levels,
		onsets:   marks,
	}, nil
}

// Name returns the clip's display name.
func (c *Clip) Name() string {
	return c.name
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return c.hop * float64(len(c.envelope))
}

// Slots returns the number of envelope windows.
func (c *Clip) Slots() int {
	return len(c.envelope)
}

// LevelAt returns the envelope level at the given playhead position,
// linearly interpolated between adjacent windows.
func (c *Clip) LevelAt(position float64) float64 {
	if position < 0 {
		position = 0
	}
	exact := position / c.hop
	index := int(exact)
	if index >= len(c.envelope)-1 {
		return c.envelope[len(c.envelope)-1]
	}
	fraction := exact - float64(index)
	return c.envelope[index]*(1-fraction) + c.envelope[index+1]*fraction
}

// OnsetBetween reports whether any onset window was crossed while the
// playhead moved from previous to position. A negative previous includes
// the first window, so an onset at the very start of the clip fires on the
// first tick of a fresh pass.
func (c *Clip) OnsetBetween(previous, position float64) bool {
	if position < previous {
		return false
	}
	first := int(previous/c.hop) + 1
	if previous < 0 {
		first = 0
	}
	last := int(position / c.hop)
	if last >= len(c.onsets) {
		last = len(c.onsets) - 1
	}
	for i := first; i <= last; i++ {
		if i >= 0 && i < len(c.onsets) && c.onsets[i] {
			return true
		}
	}
	return false
}

// normalizeEnvelope rescales levels in place so the loudest window is 1.
func normalizeEnvelope(envelope []float64) {
	var peak float64
	for i, level := range envelope {
		if level < 0 {
			envelope[i] = 0
			continue
		}
		if level > peak {
			peak = level
		}
	}
	if peak <= 0 {
		return
	}
	for i := range envelope {
		envelope[i] /= peak
	}
}

const (
	onsetRatio = 1.5
	onsetFloor = 0.05
)

// detectOnsets marks windows whose level jumps well above the running
// average of the preceding windows.
func detectOnsets(envelope []float64) []bool {
	onsets := make([]bool, len(envelope))
	var recent float64
	for i, level := range envelope {
		if i == 0 {
			recent = level
			onsets[i] = level > 0.5
			continue
		}
		if level > recent*onsetRatio+onsetFloor {
			onsets[i] = true
		}
		recent = recent*0.8 + level*0.2
	}
	return onsets
}
