package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rackcore/param"
)

func delayWith(overrides param.Settings) *delayBridge {
	return newDelayBridge(delayDefaults().Merge(overrides))
}

func TestEchoesFireAfterDelayTime(t *testing.T) {
	bridge := delayWith(param.Settings{
		"time":     param.Number(200),
		"feedback": param.Number(0.5),
		"mix":      param.Number(100),
	})
	defer bridge.Close()

	snap := bridge.Advance(frame(1.0, true, lowTier())).(DelaySnapshot)
	assert.Empty(t, snap.Rings, "the first echo waits one delay time")

	snap = bridge.Advance(frame(1.1, false, lowTier())).(DelaySnapshot)
	assert.Empty(t, snap.Rings)

	snap = bridge.Advance(frame(1.25, false, lowTier())).(DelaySnapshot)
	require.Len(t, snap.Rings, 1)

	snap = bridge.Advance(frame(1.45, false, lowTier())).(DelaySnapshot)
	assert.Len(t, snap.Rings, 2)
}

func TestEchoStrengthFollowsFeedback(t *testing.T) {
	bridge := delayWith(param.Settings{
		"time":     param.Number(100),
		"feedback": param.Number(0.5),
		"mix":      param.Number(100),
	})
	defer bridge.Close()

	bridge.Advance(frame(1.0, true, lowTier()))
	// Fire the whole train at once, far in the future.
	snap := bridge.Advance(frame(10.0, false, lowTier())).(DelaySnapshot)

	// Strengths 1.0, 0.5, 0.25, 0.125, 0.0625; the next would fall below
	// the cutoff.
	require.Len(t, snap.Rings, 5)
	assert.Greater(t, snap.Rings[0].Opacity, snap.Rings[1].Opacity)
}

func TestLowFeedbackShortensTrain(t *testing.T) {
	bridge := delayWith(param.Settings{
		"time":     param.Number(100),
		"feedback": param.Number(0.1),
		"mix":      param.Number(100),
	})
	defer bridge.Close()

	bridge.Advance(frame(1.0, true, lowTier()))
	snap := bridge.Advance(frame(10.0, false, lowTier())).(DelaySnapshot)
	assert.Len(t, snap.Rings, 2, "1.0 and 0.1 survive the cutoff, 0.01 does not")
}

func TestRingsExpandThenExpire(t *testing.T) {
	bridge := delayWith(param.Settings{
		"time": param.Number(50),
		"mix":  param.Number(100),
	})
	defer bridge.Close()

	bridge.Advance(frame(1.0, true, lowTier()))
	snap := bridge.Advance(frame(1.1, false, lowTier())).(DelaySnapshot)
	require.NotEmpty(t, snap.Rings)
	firstRadius := snap.Rings[0].Radius

	snap = bridge.Advance(frame(1.12, false, lowTier())).(DelaySnapshot)
	require.NotEmpty(t, snap.Rings)
	assert.Greater(t, snap.Rings[0].Radius, firstRadius)

	for i := 0; i < 120; i++ {
		snap = bridge.Advance(frame(2.0+float64(i)/60, false, lowTier())).(DelaySnapshot)
	}
	assert.Empty(t, snap.Rings, "rings die at their radius limit")
}

func TestDelayZeroMixIgnoresTransients(t *testing.T) {
	bridge := delayWith(param.Settings{"mix": param.Number(0)})
	defer bridge.Close()

	bridge.Advance(frame(1.0, true, lowTier()))
	snap := bridge.Advance(frame(10.0, false, lowTier())).(DelaySnapshot)
	assert.Empty(t, snap.Rings)
}

func TestDelayCloseClearsEverything(t *testing.T) {
	bridge := delayWith(param.Settings{"time": param.Number(100), "mix": param.Number(100)})
	bridge.Advance(frame(1.0, true, lowTier()))
	bridge.Close()

	snap := bridge.Advance(frame(10.0, false, lowTier())).(DelaySnapshot)
	assert.Empty(t, snap.Rings, "a closed bridge never fires queued echoes")
	assert.Nil(t, bridge.queue)
	assert.Nil(t, bridge.rings)
}
