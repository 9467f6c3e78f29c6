package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock is a manually advanced time source for deterministic ticks.
type stepClock struct {
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Unix(1700000000, 0)}
}

func (c *stepClock) Now() time.Time {
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func rampClip(t *testing.T) *Clip {
	t.Helper()
	clip, err := NewClip("ramp", 0.25,
		[]float64{1, 0, 0, 0},
		[]bool{true, false, false, false})
	require.NoError(t, err)
	return clip
}

func TestTickTimeIsMonotonic(t *testing.T) {
	clock := newStepClock()
	generator := NewGenerator()
	generator.SetTimeProvider(clock)

	var last float64
	for i := 0; i < 50; i++ {
		clock.advance(16 * time.Millisecond)
		sig := generator.Tick()
		if sig.Time < last {
			t.Fatalf("tick %d rewound time from %v to %v", i, last, sig.Time)
		}
		last = sig.Time
	}
	assert.InDelta(t, 50*0.016, last, 0.001)

	// Transport changes never rewind the stream clock.
	generator.Stop()
	clock.advance(16 * time.Millisecond)
	assert.Greater(t, generator.Tick().Time, last)
}

func TestTickClampsLargeGaps(t *testing.T) {
	clock := newStepClock()
	generator := NewGenerator()
	generator.SetTimeProvider(clock)

	generator.Tick()
	clock.advance(10 * time.Second)
	sig := generator.Tick()
	assert.InDelta(t, maxFrameDelta, sig.Time, 0.001,
		"a suspended host must not fast-forward the stream")
}

func TestIdleOscillation(t *testing.T) {
	clock := newStepClock()
	generator := NewGenerator()
	generator.SetTimeProvider(clock)

	lowest, highest := 1.0, 0.0
	transients := 0
	for i := 0; i < 40; i++ {
		clock.advance(100 * time.Millisecond)
		sig := generator.Tick()
		require.GreaterOrEqual(t, sig.Level, 0.0)
		require.LessOrEqual(t, sig.Level, 1.0)
		if sig.Level < lowest {
			lowest = sig.Level
		}
		if sig.Level > highest {
			highest = sig.Level
		}
		if sig.Transient {
			transients++
		}
	}
	assert.Greater(t, highest-lowest, 0.1, "idle level should oscillate")
	assert.GreaterOrEqual(t, transients, 1, "idle pulses should fire within four seconds")
}

func TestTransportGuards(t *testing.T) {
	generator := NewGenerator()

	assert.ErrorIs(t, generator.Play(), ErrNoClip)
	assert.ErrorIs(t, generator.Pause(), ErrNotPlaying)
	generator.Stop()
	assert.Equal(t, TransportStopped, generator.State())

	assert.ErrorIs(t, generator.LoadClip(nil), ErrNoClip)
}

func TestClipPlaybackFollowsEnvelope(t *testing.T) {
	clock := newStepClock()
	generator := NewGenerator()
	generator.SetTimeProvider(clock)
	require.NoError(t, generator.LoadClip(rampClip(t)))
	require.NoError(t, generator.Play())

	first := generator.Tick()
	assert.True(t, first.Transient, "the opening onset fires on the first tick")
	assert.InDelta(t, 1.0, first.Level, 0.001)

	var levels []float64
	transients := 0
	for i := 0; i < 9; i++ {
		clock.advance(100 * time.Millisecond)
		sig := generator.Tick()
		levels = append(levels, sig.Level)
		if sig.Transient {
			transients++
		}
	}
	// The envelope decays toward zero across the pass.
	assert.Less(t, levels[4], levels[0])
	assert.InDelta(t, 0.0, levels[8], 0.05)
	assert.Zero(t, transients, "no further onsets inside the pass")

	// The clip loops and the opening onset fires again after the wrap.
	clock.advance(150 * time.Millisecond)
	wrap := generator.Tick()
	assert.True(t, wrap.Transient)
	assert.Less(t, generator.Position(), 0.25)
}

func TestPauseHoldsLevel(t *testing.T) {
	clock := newStepClock()
	generator := NewGenerator()
	generator.SetTimeProvider(clock)
	require.NoError(t, generator.LoadClip(rampClip(t)))
	require.NoError(t, generator.Play())

	generator.Tick()
	clock.advance(100 * time.Millisecond)
	generator.Tick()
	position := generator.Position()
	require.NoError(t, generator.Pause())

	for i := 0; i < 5; i++ {
		clock.advance(100 * time.Millisecond)
		sig := generator.Tick()
		assert.False(t, sig.Transient)
		assert.InDelta(t, rampClip(t).LevelAt(position), sig.Level, 0.001)
	}
	assert.InDelta(t, position, generator.Position(), 0.001, "pause freezes the playhead")
}

func TestStopRevertsToIdle(t *testing.T) {
	clock := newStepClock()
	generator := NewGenerator()
	generator.SetTimeProvider(clock)
	require.NoError(t, generator.LoadClip(rampClip(t)))
	require.NoError(t, generator.Play())

	for i := 0; i < 3; i++ {
		clock.advance(100 * time.Millisecond)
		generator.Tick()
	}
	generator.Stop()
	assert.Zero(t, generator.Position())

	// Stopped output follows the idle oscillator, not the clip tail.
	clock.advance(100 * time.Millisecond)
	sig := generator.Tick()
	assert.Greater(t, sig.Level, 0.05)
	assert.Equal(t, TransportStopped, generator.State())
}

func TestUnloadClipRevertsToIdle(t *testing.T) {
	generator := NewGenerator()
	require.NoError(t, generator.LoadClip(mustClip(t, []float64{0.5, 0.5})))
	require.NoError(t, generator.Play())

	generator.UnloadClip()
	assert.Nil(t, generator.LoadedClip())
	assert.Equal(t, TransportStopped, generator.State())
	assert.ErrorIs(t, generator.Play(), ErrNoClip)
}

func mustClip(t *testing.T, envelope []float64) *Clip {
	t.Helper()
	clip, err := NewClip("clip", 0.25, envelope, nil)
	require.NoError(t, err)
	return clip
}
