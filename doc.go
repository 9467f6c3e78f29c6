// Package rackcore implements the engine behind a virtual studio rack of
// audio-plugin panels.
//
// The rack hosts a fixed set of plugin kinds (reverb, delay, compressor),
// each with a settings schema, a movable panel, and a frame-driven
// visualizer simulation. One simulated audio signal feeds every panel. This
// package provides the main API facade integrating all subsystems: the
// parameter store, MIDI mapping, the sidechain graph, presets, the signal
// generator, visualizer bridges, and audio generation.
//
// # Getting Started
//
// Create a Studio with options, mount panels, and drive the frame loop:
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
//	studio.MountPanel(plugin.KindCompressor)
//
//	studio.OnFrame(func(frame rackcore.Frame) {
//	    render(frame.Snapshots)
//	})
//
//	for studio.IsRunning() {
//	    studio.Iterate()
//	    time.Sleep(studio.IterationInterval())
//	}
//
// # Core Types
//
// The package defines several core types:
//
//   - [Studio]: Main API facade integrating all rack subsystems
//   - [Options]: Configuration options for creating a new Studio
//   - [Frame]: Per-iteration render output for every mounted panel
//   - [Panel]: One rack unit's placement state
//   - [SaveData]: Serializable session state
//
// # Parameters and MIDI
//
// Parameters change through direct calls, or through mapped MIDI
// controllers. A mapping is captured with the learn flow: arm a target,
// then move a controller.
//
//	// Direct parameter edit
//	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(75))
//
//	// Capture a MIDI mapping: arm, then turn a knob
//	studio.StartLearn(plugin.KindReverb, "mix", 0, 100)
//	studio.HandleMIDI("nano-kontrol", midi.ControlChange(0, 21, 64))
//
//	// Later control changes scale through the mapping
//	studio.HandleMIDI("nano-kontrol", midi.ControlChange(0, 21, 127))
//
// Arming the same target twice cancels the learn. The captured message is
// consumed by the capture and does not also edit the parameter.
//
// # Presets
//
// A preset is a named snapshot of every plugin's settings. Loading one
// replaces the whole settings mapping:
//
//	saved, err := studio.SavePreset("warm stage")
//	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(10))
//	studio.LoadPreset("warm stage") // mix is back
//
// Overwriting and deleting run through the confirmation hook; a declined
// confirmation aborts silently.
//
// # Sidechain Links
//
// A link routes one panel's activity into another panel's trigger flag.
// Fan-in is capped at one source per target:
//
//	studio.AddSidechainLink(plugin.KindReverb, plugin.KindCompressor)
//	studio.RemoveSidechainLink(plugin.KindReverb, plugin.KindCompressor)
//
// Every frame the shell mirrors each source's activity into its target's
// "sidechain" settings flag and hands the target bridge the source's drive
// level.
//
// # Panels
//
// Panels exist for every kind for the whole session; mounting controls
// whether a panel runs a visualizer bridge. Unmounting tears the bridge
// down and discards its simulation state, so remounting starts fresh:
//
//	studio.MountPanel(plugin.KindDelay)
//	studio.MovePanel(plugin.KindDelay, 120, 80)
//	studio.ResizePanel(plugin.KindDelay, 480, 300)
//	duration, ok := studio.ActivatePanel(plugin.KindDelay)
//	studio.UnmountPanel(plugin.KindDelay)
//
// # Transport and Clips
//
// The signal feed idles on a synthetic oscillation until a clip is loaded
// and played; then it follows the clip's energy envelope. Stopping reverts
// to the idle feed without touching any panel's simulation state:
//
//	err := studio.LoadClip(wavBytes, "drums.wav")
//	studio.Play()
//	studio.Pause()
//	studio.StopPlayback()
//
// # Audio Generation
//
// Text prompts become clips through an injected generation service. Jobs
// run in the background and finished clips are applied by Iterate:
//
//	options.GenerationService = audiogen.NewHTTPService(endpoint)
//	jobID, err := studio.GenerateAudio("rolling thunder")
//	// a later Iterate loads the generated clip
//
// # Persistence
//
// Save and restore session state:
//
//	// Save to file
//	data := studio.GetSavedata()
//	os.WriteFile("session.save", data, 0600)
//
//	// Restore from saved data
//	options := rackcore.NewOptions()
//	options.Savedata = data
//	options.SavedataType = rackcore.SaveDataTypeSession
//	studio, err := rackcore.New(options)
//
// A passphrase-sealed variant is available through GetSavedataSealed and
// SaveDataTypeSealedSession.
//
// # Deterministic Testing
//
// Time-coupled behavior reads the clock through an injectable provider:
//
//	studio.SetTimeProvider(fakeClock)
//
// Advancing the fake clock between Iterate calls makes transient timing,
// pre-delayed bursts, and envelope playback fully reproducible.
//
// # Thread Safety
//
// Studio methods may be called from any goroutine; internal locking keeps
// shared state consistent. Iterate must be driven from one goroutine, and
// the telemetry sink runs synchronously on the mutation path, so it must
// not call back into the Studio.
//
// # Integration Architecture
//
// This package serves as the main integration point, orchestrating:
//
//   - [param]: per-plugin settings state with immutable-update semantics
//   - [midi]: controller mappings and the learn state machine
//   - [signal]: the simulated audio feed, clip analysis, and transport
//   - [visual]: per-kind visualizer bridges and their snapshots
//   - [sidechain]: directed trigger links between panels
//   - [preset]: named full-rack settings snapshots
//   - [settings]: the global configuration record
//   - [audiogen]: background text-to-audio generation
//   - [crypto]: passphrase-sealed session snapshots
//   - [telemetry]: the typed event stream
package rackcore
