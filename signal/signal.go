// Package signal produces the simulated audio feed that drives every
// visualizer in the studio.
//
// The Generator advances cooperatively, one tick per animation frame, and
// never runs on a background thread. Each tick yields an immutable Signal
// value carrying a monotonic clock, a level in [0, 1], and a transient
// flag. With no clip loaded (or the transport stopped) an idle oscillator
// with randomized synthetic pulses drives the feed; with a clip loaded and
// the transport playing, the feed follows the clip's precomputed energy
// envelope and onset markers.
//
// Example:
//
//	generator := signal.NewGenerator()
//	for range frameTicker.C {
//		sig := generator.Tick()
//		render(sig.Level, sig.Transient)
//	}
//
// Transport changes swap which source drives the feed. They never rewind
// the monotonic clock, so downstream simulations observe one continuous,
// non-restartable stream.
package signal

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoClip is returned when playback is requested without a loaded clip.
var ErrNoClip = errors.New("no clip loaded")

// ErrNotPlaying is returned when pausing a transport that is not playing.
var ErrNotPlaying = errors.New("transport is not playing")

// Signal is one immutable tick of the simulated audio feed.
type Signal struct {
	// Time is the monotonic stream clock in seconds. It only moves forward.
	Time float64 `json:"time"`
	// Level is the current amplitude in [0, 1].
	Level float64 `json:"level"`
	// Transient marks a sudden-onset event on this tick.
	Transient bool `json:"transient"`
}

// TransportState describes what currently drives the signal feed.
type TransportState uint8

const (
	// TransportStopped reverts the feed to the idle oscillator.
	TransportStopped TransportState = iota
	// TransportPlaying advances the loaded clip's playhead.
	TransportPlaying
	// TransportPaused freezes the playhead while holding the clip's level.
	TransportPaused
)

// String returns a human-readable transport state name.
func (s TransportState) String() string {
	switch s {
	case TransportStopped:
		return "stopped"
	case TransportPlaying:
		return "playing"
	case TransportPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// TimeProvider abstracts time operations for testability.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard time package.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (d *DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

const (
	// maxFrameDelta bounds how far one tick may advance the stream clock,
	// so a suspended host does not fast-forward the simulation on resume.
	maxFrameDelta = 0.25

	idleBaseLevel   = 0.35
	idleSwell       = 0.25
	idleRate        = 0.4
	idlePulseMin    = 1.2
	idlePulseSpread = 1.6
)

// Generator produces the studio's signal feed one tick at a time.
type Generator struct {
	mu    sync.Mutex
	clock TimeProvider
	rng   *rand.Rand

	started bool
	last    time.Time
	elapsed float64

	state    TransportState
	clip     *Clip
	position float64
	fresh    bool

	nextPulse float64
	current   Signal
}

// NewGenerator creates a generator in the stopped state with no clip.
func NewGenerator() *Generator {
	return &Generator{
		clock:     &DefaultTimeProvider{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		nextPulse: idlePulseMin,
	}
}

// SetTimeProvider replaces the clock source used to measure frame deltas.
func (g *Generator) SetTimeProvider(clock TimeProvider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clock = clock
	g.started = false
}

// Tick advances the feed by the wall time elapsed since the previous tick
// and returns the resulting Signal. The first tick establishes the clock
// baseline and advances by zero.
func (g *Generator) Tick() Signal {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if !g.started {
		g.started = true
		g.last = now
	}
	delta := now.Sub(g.last).Seconds()
	g.last = now
	if delta < 0 {
		delta = 0
	}
	if delta > maxFrameDelta {
		delta = maxFrameDelta
	}
	g.elapsed += delta

	next := Signal{Time: g.elapsed}
	switch {
	case g.state == TransportPlaying && g.clip != nil:
		previous := g.position
		if g.fresh {
			previous = -1
			g.fresh = false
		}
		g.position += delta
		if g.position >= g.clip.Duration() {
			// The clip loops. Cover the tail of this pass and the head of
			// the next without firing the first window twice.
			wrapped := g.position - g.clip.Duration()
			next.Transient = g.clip.OnsetBetween(previous, g.clip.Duration()) ||
				g.clip.OnsetBetween(-1, wrapped)
			g.position = wrapped
		} else {
			next.Transient = g.clip.OnsetBetween(previous, g.position)
		}
		next.Level = g.clip.LevelAt(g.position)
	case g.state == TransportPaused && g.clip != nil:
		next.Level = g.clip.LevelAt(g.position)
	default:
		next.Level = idleBaseLevel + idleSwell*math.Sin(2*math.Pi*idleRate*g.elapsed)
		if g.elapsed >= g.nextPulse {
			next.Transient = true
			g.nextPulse = g.elapsed + idlePulseMin + g.rng.Float64()*idlePulseSpread
		}
	}

	if next.Level < 0 {
		next.Level = 0
	} else if next.Level > 1 {
		next.Level = 1
	}
	g.current = next
	return next
}

// Current returns the most recent tick without advancing the feed.
func (g *Generator) Current() Signal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// LoadClip installs a clip as the playback source and rewinds the playhead.
// The transport state is preserved, so loading during playback switches
// sources mid-stream.
func (g *Generator) LoadClip(clip *Clip) error {
	if clip == nil || clip.Duration() <= 0 {
		return ErrNoClip
	}

	g.mu.Lock()
	g.clip = clip
	g.position = 0
	g.fresh = true
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "LoadClip",
		"clip":     clip.Name(),
		"duration": clip.Duration(),
	}).Info("Clip loaded as signal source")
	return nil
}

// UnloadClip removes the clip and reverts the feed to the idle oscillator.
func (g *Generator) UnloadClip() {
	g.mu.Lock()
	g.clip = nil
	g.position = 0
	g.state = TransportStopped
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "UnloadClip",
	}).Info("Clip unloaded, reverting to idle oscillator")
}

// LoadedClip returns the current clip, or nil when none is loaded.
func (g *Generator) LoadedClip() *Clip {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clip
}

// Play starts or resumes clip playback.
func (g *Generator) Play() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clip == nil {
		return ErrNoClip
	}
	g.state = TransportPlaying
	return nil
}

// Pause freezes the playhead. The clip's level at the frozen position keeps
// driving the feed until playback resumes or stops.
func (g *Generator) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != TransportPlaying {
		return ErrNotPlaying
	}
	g.state = TransportPaused
	return nil
}

// Stop rewinds the playhead and reverts the feed to the idle oscillator.
// The monotonic stream clock keeps advancing.
func (g *Generator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = TransportStopped
	g.position = 0
	g.fresh = true
}

// State returns the current transport state.
func (g *Generator) State() TransportState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Position returns the clip playhead in seconds.
func (g *Generator) Position() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}
