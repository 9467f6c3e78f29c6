// Package telemetry defines the ambient event stream the studio emits after
// every state change.
//
// The core calls an injected Sink synchronously after each mutation; nothing
// reaches for a global emitter. Embedders route events to analytics, debug
// overlays, or logs.
//
// Example:
//
//	sink := telemetry.LogSink{Level: logrus.DebugLevel}
//	sink.Emit(telemetry.New(telemetry.EventPresetSaved, plugin.KindUnknown, "P1"))
package telemetry

import (
	"time"

	"github.com/opd-ai/rackcore/plugin"
)

// EventType represents the kind of state change an event describes.
type EventType uint8

const (
	// EventParameterChanged fires after a plugin parameter mutation.
	EventParameterChanged EventType = iota
	// EventMappingCreated fires when a MIDI learn capture completes.
	EventMappingCreated
	// EventLearnArmed fires when a learn target is armed.
	EventLearnArmed
	// EventLearnCancelled fires when an armed learn target is toggled off.
	EventLearnCancelled
	// EventLinkAdded fires when a sidechain link is inserted.
	EventLinkAdded
	// EventLinkRemoved fires when a sidechain link is removed.
	EventLinkRemoved
	// EventPresetSaved fires after a preset snapshot is stored.
	EventPresetSaved
	// EventPresetLoaded fires after a preset replaced the settings mapping.
	EventPresetLoaded
	// EventPresetDeleted fires after a preset is removed.
	EventPresetDeleted
	// EventPanelMounted fires when a panel's visualizer bridge is created.
	EventPanelMounted
	// EventPanelUnmounted fires when a panel's bridge is torn down.
	EventPanelUnmounted
	// EventTransportChanged fires on play/pause/stop transitions.
	EventTransportChanged
	// EventSettingsChanged fires after a global settings mutation.
	EventSettingsChanged
	// EventGenerationDone fires when an audio generation job finishes,
	// successfully or not.
	EventGenerationDone
	// EventSessionReset fires after the session is cleared to defaults.
	EventSessionReset
)

// String returns the stable identifier used in logs and the event stream.
func (t EventType) String() string {
	switch t {
	case EventParameterChanged:
		return "parameter_changed"
	case EventMappingCreated:
		return "mapping_created"
	case EventLearnArmed:
		return "learn_armed"
	case EventLearnCancelled:
		return "learn_cancelled"
	case EventLinkAdded:
		return "link_added"
	case EventLinkRemoved:
		return "link_removed"
	case EventPresetSaved:
		return "preset_saved"
	case EventPresetLoaded:
		return "preset_loaded"
	case EventPresetDeleted:
		return "preset_deleted"
	case EventPanelMounted:
		return "panel_mounted"
	case EventPanelUnmounted:
		return "panel_unmounted"
	case EventTransportChanged:
		return "transport_changed"
	case EventSettingsChanged:
		return "settings_changed"
	case EventGenerationDone:
		return "generation_done"
	case EventSessionReset:
		return "session_reset"
	default:
		return "unknown"
	}
}

// Event is one state-change notification.
type Event struct {
	Type EventType
	// Plugin scopes the event to a panel; KindUnknown for session-wide events.
	Plugin plugin.Kind
	// Name carries the parameter, preset, or setting name when applicable.
	Name string
	// Detail carries free-form context such as a device id or error text.
	Detail string
	// Value carries the numeric payload when applicable.
	Value float64
	// Time is when the mutation happened.
	Time time.Time
}

// New creates a timestamped event. Callers fill Value and Detail on the
// returned value as needed before emitting.
func New(eventType EventType, kind plugin.Kind, name string) Event {
	return Event{
		Type:   eventType,
		Plugin: kind,
		Name:   name,
		Time:   time.Now(),
	}
}
