// Package param implements the parameter store at the center of the rack.
//
// Every plugin's settings live in one Store keyed by plugin kind. UI
// widgets, the MIDI layer, and preset loads all mutate parameters through
// the same two entry points:
//
//	store.Update(plugin.KindReverb, param.Settings{
//	    "mix": param.Number(62.5),
//	})
//
//	store.UpdateWith(plugin.KindReverb, func(prev param.Settings) param.Settings {
//	    return param.Settings{"mix": param.Number(prev.Float("mix") + 5)}
//	})
//
// Both forms funnel into a single shallow-merge path with copy-on-write
// semantics: the plugin's settings map is replaced wholesale on every
// update, the previous map is never mutated, and other plugins' maps keep
// their identity. A reader holding a map therefore sees a stable snapshot,
// and observers detect changes by reference inequality.
//
// The store performs no range validation. Whoever supplies a value (a UI
// widget with its slider bounds, the MIDI layer with its mapping range) is
// responsible for clamping. Reads are defensive instead: non-finite numbers
// come back as 0, missing names as zero values.
package param
