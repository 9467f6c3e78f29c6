// Package visual implements the per-plugin, frame-driven visualizer
// simulations of the studio rack.
//
// Each mounted plugin panel owns one Bridge. A bridge consumes the shared
// audio signal, the plugin's current parameters, and the global settings
// once per animation frame, and produces a render-ready Snapshot. All
// simulation state (particle lists, scheduled bursts, envelope followers)
// is private to the bridge and dies with it: closing a bridge and creating
// a new one always starts from a blank simulation.
//
// Bridges never run timers of their own. Anything delayed, such as a
// pre-delayed particle burst, is scheduled against the signal clock and
// fires inside Advance, so tearing a bridge down can never leave a
// callback behind.
package visual

import (
	"math/rand"
	"time"

	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
	"github.com/opd-ai/rackcore/settings"
	"github.com/opd-ai/rackcore/signal"
)

// Context carries everything a bridge reads during one frame.
type Context struct {
	// Signal is the current tick of the simulated audio feed.
	Signal signal.Signal
	// Width and Height are the panel's viewport dimensions in pixels.
	Width  float64
	Height float64
	// Global is the process-wide settings record.
	Global settings.Global
	// Extra carries shell-supplied per-panel values, such as the activity
	// level of a sidechain source feeding this panel.
	Extra map[string]float64
}

// Snapshot is the render-ready output of one frame of simulation.
type Snapshot interface {
	// Kind identifies which plugin produced the snapshot.
	Kind() plugin.Kind
	// Active reports whether the visual is hot this frame. The shell uses
	// it as the activity signal for sidechain propagation.
	Active() bool
	// Activity returns the normalized drive level in [0, 1] the shell feeds
	// to sidechain targets of this panel.
	Activity() float64
}

// Bridge is one plugin panel's simulation. Implementations are not safe
// for concurrent use; the shell drives them from its frame loop only.
type Bridge interface {
	// Advance steps the simulation by one frame and returns its snapshot.
	Advance(ctx Context) Snapshot
	// UpdateSettings informs the bridge of the plugin's current settings.
	// The bridge keeps the reference; parameter store maps are never
	// mutated after publication.
	UpdateSettings(settings param.Settings)
	// Close tears the simulation down and invalidates anything scheduled.
	// A closed bridge ignores further Advance calls.
	Close()
}

type definition struct {
	defaults func() param.Settings
	build    func(settings param.Settings) Bridge
}

var definitions = map[plugin.Kind]definition{
	plugin.KindReverb: {
		defaults: reverbDefaults,
		build:    func(s param.Settings) Bridge { return newReverbBridge(s) },
	},
	plugin.KindDelay: {
		defaults: delayDefaults,
		build:    func(s param.Settings) Bridge { return newDelayBridge(s) },
	},
	plugin.KindCompressor: {
		defaults: compressorDefaults,
		build:    func(s param.Settings) Bridge { return newCompressorBridge(s) },
	},
}

// Defaults returns a fresh copy of the default settings for a plugin kind,
// or nil for an unknown kind.
func Defaults(kind plugin.Kind) param.Settings {
	def, ok := definitions[kind]
	if !ok {
		return nil
	}
	return def.defaults()
}

// New builds the visualizer bridge for a plugin kind. A nil settings map
// starts from the kind's defaults.
func New(kind plugin.Kind, settings param.Settings) (Bridge, error) {
	def, ok := definitions[kind]
	if !ok {
		return nil, plugin.ErrUnknownKind
	}
	if settings == nil {
		settings = def.defaults()
	}
	return def.build(settings), nil
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
