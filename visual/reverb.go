package visual

import (
	"math/rand"

	"github.com/opd-ai/rackcore/limits"
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
)

// Default reverb parameters.
const (
	defaultReverbMix      = 50
	defaultReverbSize     = 5
	defaultReverbPreDelay = 20
	defaultReverbMood     = "Warm"
)

func reverbDefaults() param.Settings {
	return param.Settings{
		"mix":      param.Number(defaultReverbMix),
		"size":     param.Number(defaultReverbSize),
		"predelay": param.Number(defaultReverbPreDelay),
		"mood":     param.Text(defaultReverbMood),
	}
}

// Simulation tuning.
const (
	// mixThreshold is the near-zero wet amount below which transients are
	// ignored entirely.
	mixThreshold = 0.01
	// burstMixSpread widens a burst from the low-tier floor as mix rises.
	burstMixSpread = 30
	// baseDepthStep is the per-frame depth advance before intensity scaling.
	baseDepthStep = 0.35
	// lateralDrift bounds the per-frame random sideways wander in pixels.
	lateralDrift = 1.5
	// minVisibleAlpha drops particles that faded out of sight.
	minVisibleAlpha = 0.02
	// spawnSpread places new particles within this fraction of the viewport
	// around its center.
	spawnSpread = 0.2
)

// pendingBurst is the single delayed-burst slot. It fires when the signal
// clock passes due; a newer transient replaces it, and Close discards it.
type pendingBurst struct {
	due   float64
	count int
	hue   float64
	size  float64
}

// ReverbSnapshot is the reverb panel's render state for one frame.
type ReverbSnapshot struct {
	Particles []Particle `json:"particles"`
	Wet       float64    `json:"wet"`
}

// Kind identifies the producing plugin.
func (s ReverbSnapshot) Kind() plugin.Kind { return plugin.KindReverb }

// Active reports whether the diffusion field currently holds particles.
func (s ReverbSnapshot) Active() bool { return len(s.Particles) > 0 }

// Activity returns the brightest particle's opacity as the field's drive
// level.
func (s ReverbSnapshot) Activity() float64 {
	peak := 0.0
	for _, p := range s.Particles {
		if p.Opacity > peak {
			peak = p.Opacity
		}
	}
	return clamp01(peak)
}

type reverbBridge struct {
	settings  param.Settings
	rng       *rand.Rand
	particles []Particle
	pending   *pendingBurst
	closed    bool
}

func newReverbBridge(settings param.Settings) *reverbBridge {
	return &reverbBridge{settings: settings, rng: newRand()}
}

func (b *reverbBridge) UpdateSettings(settings param.Settings) {
	if settings == nil {
		return
	}
	b.settings = settings
}

func (b *reverbBridge) Close() {
	b.closed = true
	b.pending = nil
	b.particles = nil
}

func (b *reverbBridge) Advance(ctx Context) Snapshot {
	if b.closed {
		return ReverbSnapshot{}
	}

	mix := clamp01(b.settings.FloatOr("mix", 0) / 100)

	if ctx.Signal.Transient && mix > mixThreshold {
		b.schedule(ctx, mix)
	}
	if b.pending != nil && ctx.Signal.Time >= b.pending.due {
		b.spawn(ctx, *b.pending)
		b.pending = nil
	}
	b.step(ctx)

	view := make([]Particle, len(b.particles))
	copy(view, b.particles)
	return ReverbSnapshot{Particles: view, Wet: mix}
}

// schedule arms the delayed-burst slot, replacing any burst still waiting.
func (b *reverbBridge) schedule(ctx Context, mix float64) {
	preDelay := b.settings.FloatOr("predelay", defaultReverbPreDelay)
	if preDelay < 0 {
		preDelay = 0
	}
	size := b.settings.FloatOr("size", defaultReverbSize)
	if size < 0.5 {
		size = 0.5
	} else if size > 10 {
		size = 10
	}

	count := (limits.MinBurstLow + int(mix*burstMixSpread)) * ctx.Global.ComplexityFactor()
	b.pending = &pendingBurst{
		due:   ctx.Signal.Time + preDelay/1000,
		count: count,
		hue:   hueForMood(b.settings.TextOr("mood", "")),
		size:  size,
	}
}

// spawn emits a burst near the viewport center, then drops the oldest
// excess above the particle cap.
func (b *reverbBridge) spawn(ctx Context, burst pendingBurst) {
	centerX := ctx.Width / 2
	centerY := ctx.Height / 2
	for i := 0; i < burst.count; i++ {
		opacity := 0.5 + 0.5*b.rng.Float64()
		b.particles = append(b.particles, Particle{
			X:        centerX + (b.rng.Float64()-0.5)*spawnSpread*ctx.Width,
			Y:        centerY + (b.rng.Float64()-0.5)*spawnSpread*ctx.Height,
			Hue:      burst.hue + (b.rng.Float64()-0.5)*20,
			Size:     1 + 3*b.rng.Float64(),
			Lifetime: burst.size * (0.6 + 0.8*b.rng.Float64()),
			Opacity:  opacity,
			peak:     opacity,
		})
	}
	if excess := len(b.particles) - limits.MaxParticles; excess > 0 {
		b.particles = append(b.particles[:0], b.particles[excess:]...)
	}
}

// step advances every live particle and compacts the list in place,
// preserving birth order so the cap can drop oldest first.
func (b *reverbBridge) step(ctx Context) {
	depthStep := baseDepthStep / ctx.Global.MotionScale()
	alive := b.particles[:0]
	for _, p := range b.particles {
		p.Depth += depthStep
		p.X += (b.rng.Float64() - 0.5) * lateralDrift
		if p.Lifetime <= 0 {
			continue
		}
		remaining := 1 - p.Depth/p.Lifetime
		if remaining <= 0 {
			continue
		}
		p.Opacity = p.peak * remaining
		if p.Opacity < minVisibleAlpha {
			continue
		}
		alive = append(alive, p)
	}
	b.particles = alive
}
