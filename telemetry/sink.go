package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/plugin"
)

// Sink receives events synchronously after each state change. Emit must not
// block; the studio calls it from the frame path.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f.
func (f SinkFunc) Emit(event Event) { f(event) }

// NopSink discards all events. It is the default when the embedder wires
// nothing.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(Event) {}

// LogSink writes every event to logrus at the configured level.
type LogSink struct {
	Level logrus.Level
}

// Emit logs the event with structured fields.
func (s LogSink) Emit(event Event) {
	fields := logrus.Fields{
		"event": event.Type.String(),
	}
	if event.Plugin != plugin.KindUnknown {
		fields["plugin"] = event.Plugin.String()
	}
	if event.Name != "" {
		fields["name"] = event.Name
	}
	if event.Detail != "" {
		fields["detail"] = event.Detail
	}
	logrus.WithFields(fields).Log(s.Level, "Studio event")
}
