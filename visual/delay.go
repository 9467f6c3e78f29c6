package visual

import (
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
)

// Default delay parameters.
const (
	defaultDelayTime     = 250
	defaultDelayFeedback = 0.4
	defaultDelayMix      = 30
)

func delayDefaults() param.Settings {
	return param.Settings{
		"time":     param.Number(defaultDelayTime),
		"feedback": param.Number(defaultDelayFeedback),
		"mix":      param.Number(defaultDelayMix),
	}
}

const (
	// maxEchoes bounds the echo train emitted per transient.
	maxEchoes = 6
	// minEchoStrength cuts the train once repeats fade below it.
	minEchoStrength = 0.05
	// maxQueuedEchoes bounds the not-yet-due echo queue.
	maxQueuedEchoes = 32
	// maxRings bounds the live expanding rings.
	maxRings = 48
	// ringGrowth is the per-frame radius advance as a fraction of the
	// viewport's smaller dimension, before intensity scaling.
	ringGrowth = 0.02
)

// Ring is one expanding echo circle, radius in pixels.
type Ring struct {
	Radius  float64 `json:"radius"`
	Opacity float64 `json:"opacity"`
}

// DelaySnapshot is the delay panel's render state for one frame.
type DelaySnapshot struct {
	Rings []Ring  `json:"rings"`
	Mix   float64 `json:"mix"`
}

// Kind identifies the producing plugin.
func (s DelaySnapshot) Kind() plugin.Kind { return plugin.KindDelay }

// Active reports whether any echo rings are still expanding.
func (s DelaySnapshot) Active() bool { return len(s.Rings) > 0 }

// Activity returns the strongest ring's opacity as the panel's drive level.
func (s DelaySnapshot) Activity() float64 {
	peak := 0.0
	for _, ring := range s.Rings {
		if ring.Opacity > peak {
			peak = ring.Opacity
		}
	}
	return clamp01(peak)
}

type queuedEcho struct {
	due      float64
	strength float64
}

type liveRing struct {
	radius   float64
	limit    float64
	strength float64
}

type delayBridge struct {
	settings param.Settings
	queue    []queuedEcho
	rings    []liveRing
	closed   bool
}

func newDelayBridge(settings param.Settings) *delayBridge {
	return &delayBridge{settings: settings}
}

func (b *delayBridge) UpdateSettings(settings param.Settings) {
	if settings == nil {
		return
	}
	b.settings = settings
}

func (b *delayBridge) Close() {
	b.closed = true
	b.queue = nil
	b.rings = nil
}

func (b *delayBridge) Advance(ctx Context) Snapshot {
	if b.closed {
		return DelaySnapshot{}
	}

	mix := clamp01(b.settings.FloatOr("mix", 0) / 100)
	if ctx.Signal.Transient && mix > mixThreshold {
		b.enqueueTrain(ctx.Signal.Time, mix)
	}

	minDim := ctx.Width
	if ctx.Height < minDim {
		minDim = ctx.Height
	}
	if minDim <= 0 {
		minDim = 1
	}
	b.fireDue(ctx.Signal.Time, minDim)
	b.expand(ctx, minDim)

	view := make([]Ring, len(b.rings))
	for i, ring := range b.rings {
		view[i] = Ring{
			Radius:  ring.radius,
			Opacity: ring.strength * (1 - ring.radius/ring.limit),
		}
	}
	return DelaySnapshot{Rings: view, Mix: mix}
}

// enqueueTrain schedules the repeats for one hit: the first echo lands one
// delay time after the transient, each repeat scaled by feedback.
func (b *delayBridge) enqueueTrain(now, mix float64) {
	delaySeconds := b.settings.FloatOr("time", defaultDelayTime) / 1000
	if delaySeconds < 0.001 {
		delaySeconds = 0.001
	} else if delaySeconds > 2 {
		delaySeconds = 2
	}
	feedback := clamp01(b.settings.FloatOr("feedback", defaultDelayFeedback))
	if feedback > 0.95 {
		feedback = 0.95
	}

	strength := mix
	for i := 0; i < maxEchoes && strength >= minEchoStrength; i++ {
		b.queue = append(b.queue, queuedEcho{
			due:      now + delaySeconds*float64(i+1),
			strength: strength,
		})
		strength *= feedback
	}
	if excess := len(b.queue) - maxQueuedEchoes; excess > 0 {
		b.queue = append(b.queue[:0], b.queue[excess:]...)
	}
}

// fireDue converts due echoes into live rings.
func (b *delayBridge) fireDue(now, minDim float64) {
	waiting := b.queue[:0]
	for _, echo := range b.queue {
		if now >= echo.due {
			b.rings = append(b.rings, liveRing{
				limit:    minDim / 2,
				strength: echo.strength,
			})
			continue
		}
		waiting = append(waiting, echo)
	}
	b.queue = waiting

	if excess := len(b.rings) - maxRings; excess > 0 {
		b.rings = append(b.rings[:0], b.rings[excess:]...)
	}
}

// expand grows every ring and drops the ones that reached their limit.
func (b *delayBridge) expand(ctx Context, minDim float64) {
	growth := ringGrowth * minDim / ctx.Global.MotionScale()
	alive := b.rings[:0]
	for _, ring := range b.rings {
		ring.radius += growth
		if ring.radius >= ring.limit {
			continue
		}
		alive = append(alive, ring)
	}
	b.rings = alive
}
