package visual

import (
	"math"

	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
)

// Default compressor parameters.
const (
	defaultCompThreshold = -24.0
	defaultCompRatio     = 4.0
	defaultCompAttack    = 10.0
	defaultCompRelease   = 120.0
)

func compressorDefaults() param.Settings {
	return param.Settings{
		"threshold": param.Number(defaultCompThreshold),
		"ratio":     param.Number(defaultCompRatio),
		"attack":    param.Number(defaultCompAttack),
		"release":   param.Number(defaultCompRelease),
		"sidechain": param.Flag(false),
	}
}

// levelFloorDb is the meter floor; silence maps here.
const levelFloorDb = -60.0

// SidechainLevelKey is the Context.Extra key carrying the activity level of
// the sidechain source feeding this panel.
const SidechainLevelKey = "sidechainLevel"

// CompressorSnapshot is the compressor panel's render state for one frame.
type CompressorSnapshot struct {
	// Reduction is the simulated gain reduction in dB, never negative.
	Reduction float64 `json:"reduction"`
	// Pump is the normalized meter deflection in [0, 1].
	Pump float64 `json:"pump"`
	// Sidechain reports whether an external source drove detection.
	Sidechain bool `json:"sidechain"`
}

// Kind identifies the producing plugin.
func (s CompressorSnapshot) Kind() plugin.Kind { return plugin.KindCompressor }

// Active reports whether the meter shows meaningful gain reduction.
func (s CompressorSnapshot) Active() bool { return s.Reduction > 1 }

// Activity returns the meter deflection as the panel's drive level.
func (s CompressorSnapshot) Activity() float64 { return clamp01(s.Pump) }

type compressorBridge struct {
	settings  param.Settings
	reduction float64
	lastTime  float64
	closed    bool
}

func newCompressorBridge(settings param.Settings) *compressorBridge {
	return &compressorBridge{settings: settings}
}

func (b *compressorBridge) UpdateSettings(settings param.Settings) {
	if settings == nil {
		return
	}
	b.settings = settings
}

func (b *compressorBridge) Close() {
	b.closed = true
	b.reduction = 0
}

func (b *compressorBridge) Advance(ctx Context) Snapshot {
	if b.closed {
		return CompressorSnapshot{}
	}

	sidechain := b.settings.Bool("sidechain")
	level := ctx.Signal.Level
	if sidechain {
		if source, ok := ctx.Extra[SidechainLevelKey]; ok {
			level = clamp01(source)
		}
	}

	threshold := b.settings.FloatOr("threshold", defaultCompThreshold)
	if threshold < levelFloorDb {
		threshold = levelFloorDb
	} else if threshold > 0 {
		threshold = 0
	}
	ratio := b.settings.FloatOr("ratio", defaultCompRatio)
	if ratio < 1 {
		ratio = 1
	} else if ratio > 20 {
		ratio = 20
	}

	levelDb := levelFloorDb
	if level > 0.001 {
		levelDb = 20 * math.Log10(level)
	}
	target := 0.0
	if over := levelDb - threshold; over > 0 {
		target = over * (1 - 1/ratio)
	}

	dt := ctx.Signal.Time - b.lastTime
	if b.lastTime == 0 || dt <= 0 || dt > 0.25 {
		dt = 1.0 / 60
	}
	b.lastTime = ctx.Signal.Time

	// The meter's ballistic speed follows the intensity setting like every
	// other visual.
	tauMs := b.settings.FloatOr("release", defaultCompRelease)
	if target > b.reduction {
		tauMs = b.settings.FloatOr("attack", defaultCompAttack)
	}
	tauMs *= ctx.Global.MotionScale()
	if tauMs < 1 {
		tauMs = 1
	}
	alpha := 1 - math.Exp(-dt*1000/tauMs)
	b.reduction += (target - b.reduction) * alpha
	if b.reduction < 0 {
		b.reduction = 0
	}

	return CompressorSnapshot{
		Reduction: b.reduction,
		Pump:      clamp01(b.reduction / 24),
		Sidechain: sidechain,
	}
}
