// Package rackcore implements the engine behind a virtual studio rack of
// audio-plugin panels.
//
// A Studio owns a rack of plugin panels, each with its own settings and a
// frame-driven visualizer simulation, all fed by one simulated audio signal.
// Parameters move through UI calls, mapped MIDI controllers, or preset
// loads; sidechain links let one panel's activity trigger another.
//
// Example:
//
//	options := rackcore.NewOptions()
//
//	studio, err := rackcore.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer studio.Kill()
//
//	studio.MountPanel(plugin.KindReverb)
//	studio.OnFrame(func(frame rackcore.Frame) {
//	    render(frame.Snapshots)
//	})
//
//	// Drive the frame loop
//	for studio.IsRunning() {
//	    studio.Iterate()
//	    time.Sleep(studio.IterationInterval())
//	}
package rackcore

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/opd-ai/rackcore/audiogen"
	"github.com/opd-ai/rackcore/midi"
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
	"github.com/opd-ai/rackcore/preset"
	"github.com/opd-ai/rackcore/settings"
	"github.com/opd-ai/rackcore/sidechain"
	"github.com/opd-ai/rackcore/signal"
	"github.com/opd-ai/rackcore/telemetry"
	"github.com/opd-ai/rackcore/visual"
)

// defaultFrameInterval paces the cooperative loop near 60 frames per second.
const defaultFrameInterval = 16 * time.Millisecond

// ConfirmFunc asks the user to approve a destructive action such as
// "overwrite", "delete", or "reset". A nil hook approves everything; a
// false return aborts the action silently.
type ConfirmFunc func(action, name string) bool

// FrameCallback receives the completed frame after every Iterate.
type FrameCallback func(Frame)

// Frame is one iteration's render-ready output.
type Frame struct {
	// Signal is the tick that drove this frame.
	Signal signal.Signal `json:"signal"`
	// Snapshots holds the advanced state of every mounted panel.
	Snapshots map[plugin.Kind]visual.Snapshot `json:"snapshots"`
	// Generating reports whether an audio generation job is still running.
	Generating bool `json:"generating"`
}

// Options contains configuration for creating a Studio.
type Options struct {
	// FrameInterval is the pacing hint returned by IterationInterval.
	FrameInterval time.Duration
	// SavedataType selects how Savedata is interpreted.
	SavedataType SaveDataType
	// Savedata restores a previous session when SavedataType says how.
	Savedata []byte
	// SavedataPassphrase opens sealed savedata.
	SavedataPassphrase string
	// Confirm approves destructive operations. Nil approves everything.
	Confirm ConfirmFunc
	// Telemetry receives a typed event after every state change. Nil
	// discards events.
	Telemetry telemetry.Sink
	// SettingsSaver persists the global settings record on every change.
	SettingsSaver settings.Saver
	// GenerationService produces audio clips from text prompts. Nil leaves
	// GenerateAudio unavailable.
	GenerationService audiogen.Service
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		FrameInterval: defaultFrameInterval,
		SavedataType:  SaveDataTypeNone,
	}
}

// Studio is one studio rack session: the parameter store, MIDI routing,
// sidechain graph, preset store, signal feed, panels, and their visualizer
// bridges, driven by a cooperative frame loop.
//
// API methods may be called from any goroutine. Iterate itself must be
// driven from a single goroutine; it is the only place bridges advance.
type Studio struct {
	options *Options

	// Core components
	store     *param.Store
	router    *midi.Router
	graph     *sidechain.Graph
	presets   *preset.Store
	globals   *settings.Manager
	signals   *signal.Generator
	generator *audiogen.Manager

	// Panel state
	mu        sync.RWMutex
	panels    map[plugin.Kind]*Panel
	bridges   map[plugin.Kind]visual.Bridge
	snapshots map[plugin.Kind]visual.Snapshot
	active    plugin.Kind
	zCounter  int
	running   bool

	iterationTime time.Duration

	// Callbacks
	cbMu          sync.RWMutex
	confirm       ConfirmFunc
	sink          telemetry.Sink
	frameCallback FrameCallback

	// Context for clean shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Studio with the given options. Every plugin kind is seeded
// with its default settings; panels start unmounted unless savedata restores
// them. A nil options uses NewOptions.
func New(options *Options) (*Studio, error) {
	if options == nil {
		options = NewOptions()
	}

	store := param.NewStore()
	for _, kind := range plugin.Kinds() {
		store.Seed(kind, visual.Defaults(kind))
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Studio{
		options:       options,
		store:         store,
		router:        midi.NewRouter(store),
		graph:         sidechain.NewGraph(store),
		presets:       preset.NewStore(preset.ConfirmFunc(options.Confirm)),
		globals:       settings.NewManager(settings.Defaults(), options.SettingsSaver),
		signals:       signal.NewGenerator(),
		generator:     audiogen.NewManager(options.GenerationService),
		panels:        defaultPanels(),
		bridges:       make(map[plugin.Kind]visual.Bridge),
		snapshots:     make(map[plugin.Kind]visual.Snapshot),
		zCounter:      len(plugin.Kinds()),
		running:       true,
		iterationTime: options.FrameInterval,
		confirm:       options.Confirm,
		sink:          options.Telemetry,
		ctx:           ctx,
		cancel:        cancel,
	}
	if s.iterationTime <= 0 {
		s.iterationTime = defaultFrameInterval
	}
	if s.sink == nil {
		s.sink = telemetry.NopSink{}
	}

	// Restore before wiring emitters so a restored session does not replay
	// its own history into the event stream.
	if err := s.restoreSavedata(options); err != nil {
		cancel()
		return nil, err
	}
	s.wireEvents()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"panels":   len(s.panels),
	}).Info("Studio created")
	return s, nil
}

// wireEvents forwards subsystem notifications into the telemetry sink.
func (s *Studio) wireEvents() {
	s.store.OnChange(func(kind plugin.Kind, name string, value param.Value) {
		event := telemetry.New(telemetry.EventParameterChanged, kind, name)
		event.Value = value.Float()
		event.Detail = value.String()
		s.emit(event)
	})
	s.router.OnMappingCreated(func(mapping midi.Mapping) {
		event := telemetry.New(telemetry.EventMappingCreated, mapping.Plugin, mapping.Param)
		event.Detail = string(mapping.Device)
		event.Value = float64(mapping.Controller)
		s.emit(event)
	})
	s.router.OnLearnChanged(func(target *midi.LearnTarget) {
		if target == nil {
			s.emit(telemetry.New(telemetry.EventLearnCancelled, plugin.KindUnknown, ""))
			return
		}
		s.emit(telemetry.New(telemetry.EventLearnArmed, target.Plugin, target.Param))
	})
	s.graph.OnLinkAdded(func(link sidechain.Link) {
		event := telemetry.New(telemetry.EventLinkAdded, link.To, "")
		event.Detail = link.From.String()
		s.emit(event)
	})
	s.graph.OnLinkRemoved(func(link sidechain.Link) {
		event := telemetry.New(telemetry.EventLinkRemoved, link.To, "")
		event.Detail = link.From.String()
		s.emit(event)
	})
	s.globals.OnChange(func(g settings.Global) {
		event := telemetry.New(telemetry.EventSettingsChanged, plugin.KindUnknown, "")
		event.Value = float64(g.AnimationIntensity)
		event.Detail = string(g.VisualizerComplexity)
		s.emit(event)
	})
}

// Iterate runs one frame of the studio: finished generation jobs are
// applied, the signal advances one tick, every mounted panel's bridge
// advances with that tick, sidechain activity propagates into target
// flags, and the frame callback receives the assembled Frame.
func (s *Studio) Iterate() {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return
	}

	s.applyGenerated()

	sig := s.signals.Tick()

	s.mu.Lock()
	global := s.globals.Current()
	frame := Frame{
		Signal:     sig,
		Snapshots:  make(map[plugin.Kind]visual.Snapshot, len(s.bridges)),
		Generating: s.generator.Busy(),
	}
	activity := make(map[plugin.Kind]bool, len(s.bridges))
	for _, kind := range plugin.Kinds() {
		bridge, mounted := s.bridges[kind]
		if !mounted {
			continue
		}
		panel := s.panels[kind]
		bridge.UpdateSettings(s.store.Get(kind))
		snap := bridge.Advance(visual.Context{
			Signal: sig,
			Width:  panel.Width,
			Height: panel.Height,
			Global: global,
			Extra:  s.extraFor(kind),
		})
		s.snapshots[kind] = snap
		frame.Snapshots[kind] = snap
		activity[kind] = snap.Active()
	}
	s.graph.Propagate(activity)
	s.mu.Unlock()

	s.cbMu.RLock()
	callback := s.frameCallback
	s.cbMu.RUnlock()
	if callback != nil {
		callback(frame)
	}
}

// extraFor assembles the per-panel context for link targets: the source
// panel's drive level, zero while the source is quiet or unmounted.
// Callers hold s.mu.
func (s *Studio) extraFor(kind plugin.Kind) map[string]float64 {
	source, linked := s.graph.SourceFor(kind)
	if !linked {
		return nil
	}
	level := 0.0
	if snap, ok := s.snapshots[source]; ok {
		level = snap.Activity()
	}
	return map[string]float64{visual.SidechainLevelKey: level}
}

// applyGenerated drains finished generation jobs. A successful payload is
// analyzed and loaded as the active clip; a failure only reaches the logs
// and the event stream, never playback state.
func (s *Studio) applyGenerated() {
	for _, result := range s.generator.Drain() {
		event := telemetry.New(telemetry.EventGenerationDone, plugin.KindUnknown, result.JobID)
		if result.Err != nil {
			event.Detail = result.Err.Error()
			s.emit(event)
			continue
		}

		clip, err := signal.AnalyzeClip(result.Payload, result.Prompt)
		if err == nil {
			err = s.signals.LoadClip(clip)
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "applyGenerated",
				"job_id":   result.JobID,
				"error":    err.Error(),
			}).Warn("Generated clip rejected")
			event.Detail = err.Error()
			s.emit(event)
			continue
		}
		event.Value = clip.Duration()
		s.emit(event)
	}
}

// IterationInterval returns the recommended delay between Iterate calls.
func (s *Studio) IterationInterval() time.Duration {
	return s.iterationTime
}

// IsRunning checks if the Studio is still running.
func (s *Studio) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Kill stops the Studio, cancels running generation jobs, and tears down
// every bridge along with anything they had scheduled.
func (s *Studio) Kill() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	bridges := s.bridges
	s.bridges = make(map[plugin.Kind]visual.Bridge)
	s.snapshots = make(map[plugin.Kind]visual.Snapshot)
	for _, panel := range s.panels {
		panel.Mounted = false
	}
	s.active = plugin.KindUnknown
	s.mu.Unlock()

	s.cancel()
	s.generator.CancelAll()
	for _, bridge := range bridges {
		bridge.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Kill",
	}).Info("Studio stopped")
}

// SetTimeProvider replaces the clock behind the signal feed, for
// deterministic tests of time-coupled behavior.
func (s *Studio) SetTimeProvider(clock signal.TimeProvider) {
	s.signals.SetTimeProvider(clock)
}

// UpdateParameter sets one parameter on a plugin. Range clamping is the
// caller's responsibility.
func (s *Studio) UpdateParameter(kind plugin.Kind, name string, value param.Value) {
	s.store.Update(kind, param.Settings{name: value})
}

// UpdateParameters shallow-merges a partial settings map into a plugin.
func (s *Studio) UpdateParameters(kind plugin.Kind, partial param.Settings) {
	s.store.Update(kind, partial)
}

// Parameters returns the plugin's current settings map, to be treated as
// read-only.
func (s *Studio) Parameters(kind plugin.Kind) param.Settings {
	return s.store.Get(kind)
}

// ParameterSnapshot returns a deep copy of every plugin's settings.
func (s *Studio) ParameterSnapshot() map[plugin.Kind]param.Settings {
	return s.store.Snapshot()
}

// HandleMIDI routes one parsed MIDI message from the given device. Control
// changes apply synchronously: captured while learn is armed, otherwise
// scaled through their mapping into the parameter store.
func (s *Studio) HandleMIDI(device midi.DeviceID, msg gomidi.Message) {
	s.router.HandleMessage(device, msg)
}

// HandleMIDIRaw routes raw MIDI bytes from the given device.
func (s *Studio) HandleMIDIRaw(device midi.DeviceID, raw []byte) {
	s.router.HandleRaw(device, raw)
}

// StartLearn arms MIDI learn for the given parameter, or cancels it when
// the same target is already armed.
func (s *Studio) StartLearn(kind plugin.Kind, name string, min, max float64) {
	s.router.StartLearn(kind, name, min, max)
}

// CancelLearn disarms MIDI learn regardless of target.
func (s *Studio) CancelLearn() {
	s.router.CancelLearn()
}

// LearnTarget returns the armed learn target, if any.
func (s *Studio) LearnTarget() (midi.LearnTarget, bool) {
	return s.router.LearnTarget()
}

// Mappings returns all MIDI bindings sorted by device then controller.
func (s *Studio) Mappings() []midi.Mapping {
	return s.router.Mappings()
}

// AddSidechainLink inserts a from→to trigger link. The insert is silently
// rejected when the target already has a source.
func (s *Studio) AddSidechainLink(from, to plugin.Kind) bool {
	return s.graph.AddLink(from, to)
}

// RemoveSidechainLink deletes the exact from→to link, clearing the
// target's sidechain flag when it carries one.
func (s *Studio) RemoveSidechainLink(from, to plugin.Kind) bool {
	return s.graph.RemoveLink(from, to)
}

// SidechainLinks returns every link sorted by target then source.
func (s *Studio) SidechainLinks() []sidechain.Link {
	return s.graph.Links()
}

// SavePreset snapshots every plugin's current settings under name.
// Overwriting asks the confirmation hook first; a declined overwrite
// returns false with no error and no state change.
func (s *Studio) SavePreset(name string) (bool, error) {
	saved, err := s.presets.Save(name, s.store.Snapshot())
	if saved {
		s.emit(telemetry.New(telemetry.EventPresetSaved, plugin.KindUnknown, name))
	}
	return saved, err
}

// LoadPreset replaces the entire settings mapping with the named preset's
// snapshot. An unknown name is silently ignored.
func (s *Studio) LoadPreset(name string) bool {
	snapshot, ok := s.presets.Load(name)
	if !ok {
		return false
	}
	s.store.ReplaceAll(snapshot)
	s.emit(telemetry.New(telemetry.EventPresetLoaded, plugin.KindUnknown, name))
	return true
}

// DeletePreset removes the named preset after confirmation.
func (s *Studio) DeletePreset(name string) bool {
	deleted := s.presets.Delete(name)
	if deleted {
		s.emit(telemetry.New(telemetry.EventPresetDeleted, plugin.KindUnknown, name))
	}
	return deleted
}

// Presets lists every stored preset sorted by name.
func (s *Studio) Presets() []preset.Preset {
	return s.presets.List()
}

// PresetNames lists stored preset names sorted alphabetically.
func (s *Studio) PresetNames() []string {
	return s.presets.Names()
}

// Settings returns the live global configuration record.
func (s *Studio) Settings() settings.Global {
	return s.globals.Current()
}

// SetAnimationIntensity updates the motion intensity, clamped to 0–100.
func (s *Studio) SetAnimationIntensity(value int) {
	s.globals.SetAnimationIntensity(value)
}

// SetVisualizerComplexity updates the particle complexity tier.
func (s *Studio) SetVisualizerComplexity(tier settings.Tier) {
	s.globals.SetVisualizerComplexity(tier)
}

// SetTheme updates the active panel skin.
func (s *Studio) SetTheme(name string) {
	s.globals.SetTheme(name)
}

// Play starts clip playback. Returns signal.ErrNoClip when nothing is
// loaded.
func (s *Studio) Play() error {
	if err := s.signals.Play(); err != nil {
		return err
	}
	s.emit(telemetry.New(telemetry.EventTransportChanged, plugin.KindUnknown, signal.TransportPlaying.String()))
	return nil
}

// Pause freezes the playhead. Returns signal.ErrNotPlaying unless playing.
func (s *Studio) Pause() error {
	if err := s.signals.Pause(); err != nil {
		return err
	}
	s.emit(telemetry.New(telemetry.EventTransportChanged, plugin.KindUnknown, signal.TransportPaused.String()))
	return nil
}

// StopPlayback rewinds the clip and reverts the feed to the idle
// oscillator. Bridge simulation state is untouched.
func (s *Studio) StopPlayback() {
	s.signals.Stop()
	s.emit(telemetry.New(telemetry.EventTransportChanged, plugin.KindUnknown, signal.TransportStopped.String()))
}

// TransportState returns the current playback state.
func (s *Studio) TransportState() signal.TransportState {
	return s.signals.State()
}

// PlaybackPosition returns the clip playhead in seconds.
func (s *Studio) PlaybackPosition() float64 {
	return s.signals.Position()
}

// CurrentSignal returns the most recent signal tick without advancing it.
func (s *Studio) CurrentSignal() signal.Signal {
	return s.signals.Current()
}

// LoadClip analyzes an encoded audio payload (WAV or opus frames) and
// installs its envelope as the active clip. The transport state is
// preserved.
func (s *Studio) LoadClip(payload []byte, name string) error {
	clip, err := signal.AnalyzeClip(payload, name)
	if err != nil {
		return err
	}
	return s.signals.LoadClip(clip)
}

// LoadClipWAV analyzes a RIFF/WAV stream and installs its envelope as the
// active clip.
func (s *Studio) LoadClipWAV(r io.ReadSeeker, name string) error {
	clip, err := signal.AnalyzeWAV(r, name)
	if err != nil {
		return err
	}
	return s.signals.LoadClip(clip)
}

// UnloadClip discards the loaded clip, stopping playback first.
func (s *Studio) UnloadClip() {
	s.signals.UnloadClip()
}

// LoadedClip returns the active clip, or nil when none is loaded.
func (s *Studio) LoadedClip() *signal.Clip {
	return s.signals.LoadedClip()
}

// GenerateAudio starts a background text-to-audio job and returns its id.
// The finished clip, successful or not, is applied on a later Iterate.
func (s *Studio) GenerateAudio(prompt string) (string, error) {
	return s.generator.Begin(prompt)
}

// Generating reports whether any generation job is still running.
func (s *Studio) Generating() bool {
	return s.generator.Busy()
}

// SetConfirm replaces the confirmation hook for destructive operations.
func (s *Studio) SetConfirm(confirm ConfirmFunc) {
	s.cbMu.Lock()
	s.confirm = confirm
	s.cbMu.Unlock()
	s.presets.SetConfirm(preset.ConfirmFunc(confirm))
}

// OnFrame sets the callback receiving each completed frame. Registering
// replaces the previous callback.
func (s *Studio) OnFrame(callback FrameCallback) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.frameCallback = callback
}

// OnEvent replaces the telemetry sink. The sink runs synchronously on the
// mutation path and must not call back into the Studio.
func (s *Studio) OnEvent(sink telemetry.Sink) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	s.sink = sink
}

// emit forwards one event to the telemetry sink.
func (s *Studio) emit(event telemetry.Event) {
	s.cbMu.RLock()
	sink := s.sink
	s.cbMu.RUnlock()
	sink.Emit(event)
}

// confirmAction runs the confirmation hook. A missing hook approves.
func (s *Studio) confirmAction(action, name string) bool {
	s.cbMu.RLock()
	confirm := s.confirm
	s.cbMu.RUnlock()
	if confirm == nil {
		return true
	}
	return confirm(action, name)
}
