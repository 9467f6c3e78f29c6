package rackcore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/opd-ai/rackcore/audiogen"
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
	"github.com/opd-ai/rackcore/signal"
	"github.com/opd-ai/rackcore/telemetry"
	"github.com/opd-ai/rackcore/visual"
)

// stepClock is a manually advanced time source for deterministic frames.
type stepClock struct {
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Unix(1700000000, 0)}
}

func (c *stepClock) Now() time.Time {
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestStudio(t *testing.T, options *Options) (*Studio, *stepClock) {
	t.Helper()
	studio, err := New(options)
	require.NoError(t, err)
	t.Cleanup(studio.Kill)

	clock := newStepClock()
	studio.SetTimeProvider(clock)
	return studio, clock
}

// pulseClip carries a single onset in its first window so the first playing
// tick fires a transient deterministically.
func pulseClip(t *testing.T) *signal.Clip {
	t.Helper()
	envelope := make([]float64, 10)
	onsets := make([]bool, 10)
	for i := range envelope {
		envelope[i] = 1
	}
	onsets[0] = true
	clip, err := signal.NewClip("pulse", 0.1, envelope, onsets)
	require.NoError(t, err)
	return clip
}

// wavPayload renders a small mono WAV file and returns its bytes.
func wavPayload(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	out, err := os.Create(path)
	require.NoError(t, err)

	samples := make([]int, 4000)
	for i := range samples {
		samples[i] = 12000
	}
	encoder := wav.NewEncoder(out, 8000, 16, 1, 1)
	require.NoError(t, encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 8000},
		SourceBitDepth: 16,
		Data:           samples,
	}))
	require.NoError(t, encoder.Close())
	require.NoError(t, out.Close())

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	return payload
}

func TestNewStudioDefaults(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	assert.True(t, studio.IsRunning())
	assert.Equal(t, defaultFrameInterval, studio.IterationInterval())

	reverb := studio.Parameters(plugin.KindReverb)
	assert.InDelta(t, 50.0, reverb.Float("mix"), 1e-9)
	assert.Equal(t, "Warm", reverb.TextOr("mood", ""))
	assert.False(t, studio.Parameters(plugin.KindCompressor).Bool("sidechain"))

	assert.Empty(t, studio.MountedPanels())
	assert.Equal(t, plugin.KindUnknown, studio.ActivePanel())
	assert.Equal(t, signal.TransportStopped, studio.TransportState())
	assert.Empty(t, studio.Mappings())
	assert.Empty(t, studio.SidechainLinks())
	assert.Empty(t, studio.PresetNames())

	panels := studio.Panels()
	require.Len(t, panels, 3)
	for i, panel := range panels {
		assert.Equal(t, i+1, panel.Z)
		assert.False(t, panel.Mounted)
	}
}

func TestIterateDeliversFrames(t *testing.T) {
	studio, clock := newTestStudio(t, nil)
	require.True(t, studio.MountPanel(plugin.KindReverb))

	var frames []Frame
	studio.OnFrame(func(frame Frame) { frames = append(frames, frame) })

	for i := 0; i < 3; i++ {
		clock.advance(16 * time.Millisecond)
		studio.Iterate()
	}

	require.Len(t, frames, 3)
	last := frames[2]
	assert.Contains(t, last.Snapshots, plugin.KindReverb)
	assert.NotContains(t, last.Snapshots, plugin.KindDelay)
	assert.GreaterOrEqual(t, last.Signal.Level, 0.0)
	assert.LessOrEqual(t, last.Signal.Level, 1.0)
	assert.False(t, last.Generating)

	// The stream clock only moves forward.
	assert.Greater(t, frames[2].Signal.Time, frames[0].Signal.Time)
}

func TestKillStopsStudio(t *testing.T) {
	studio, clock := newTestStudio(t, nil)
	studio.MountPanel(plugin.KindReverb)

	count := 0
	studio.OnFrame(func(Frame) { count++ })
	clock.advance(16 * time.Millisecond)
	studio.Iterate()
	require.Equal(t, 1, count)

	studio.Kill()
	assert.False(t, studio.IsRunning())

	clock.advance(16 * time.Millisecond)
	studio.Iterate()
	assert.Equal(t, 1, count, "no frames after Kill")

	assert.False(t, studio.MountPanel(plugin.KindDelay))
	assert.Empty(t, studio.MountedPanels())

	// A second Kill is harmless.
	studio.Kill()
}

func TestLearnCapturesWithoutApplying(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	studio.StartLearn(plugin.KindReverb, "mix", 0, 100)
	target, armed := studio.LearnTarget()
	require.True(t, armed)
	assert.Equal(t, plugin.KindReverb, target.Plugin)
	assert.Equal(t, "mix", target.Param)

	// The captured movement becomes the binding but must not move the
	// parameter, even at full deflection.
	studio.HandleMIDIRaw("nano", []byte{0xB0, 10, 127})
	assert.InDelta(t, 50.0, studio.Parameters(plugin.KindReverb).Float("mix"), 1e-9)

	_, armed = studio.LearnTarget()
	assert.False(t, armed)

	mappings := studio.Mappings()
	require.Len(t, mappings, 1)
	assert.Equal(t, uint8(10), mappings[0].Controller)
	assert.Equal(t, "mix", mappings[0].Param)

	// From now on the controller drives the parameter through its range.
	studio.HandleMIDI("nano", gomidi.ControlChange(0, 10, 0))
	assert.InDelta(t, 0.0, studio.Parameters(plugin.KindReverb).Float("mix"), 1e-9)
	studio.HandleMIDI("nano", gomidi.ControlChange(0, 10, 127))
	assert.InDelta(t, 100.0, studio.Parameters(plugin.KindReverb).Float("mix"), 1e-9)
}

func TestLearnToggleAndCancel(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	studio.StartLearn(plugin.KindDelay, "feedback", 0, 1)
	studio.StartLearn(plugin.KindDelay, "feedback", 0, 1)
	_, armed := studio.LearnTarget()
	assert.False(t, armed, "re-arming the same target toggles learn off")

	studio.StartLearn(plugin.KindDelay, "feedback", 0, 1)
	studio.CancelLearn()
	_, armed = studio.LearnTarget()
	require.False(t, armed)

	// With nothing armed and nothing mapped, messages are dropped.
	studio.HandleMIDIRaw("nano", []byte{0xB0, 20, 99})
	assert.Empty(t, studio.Mappings())
}

func TestSidechainDrivesCompressor(t *testing.T) {
	studio, clock := newTestStudio(t, nil)
	require.True(t, studio.MountPanel(plugin.KindReverb))
	require.True(t, studio.MountPanel(plugin.KindCompressor))

	// Remove the pre-delay so the onset burst lands in the same frame.
	studio.UpdateParameter(plugin.KindReverb, "predelay", param.Number(0))

	require.True(t, studio.AddSidechainLink(plugin.KindReverb, plugin.KindCompressor))
	assert.False(t, studio.AddSidechainLink(plugin.KindDelay, plugin.KindCompressor),
		"one source per target")

	require.NoError(t, studio.signals.LoadClip(pulseClip(t)))
	require.NoError(t, studio.Play())

	var frames []Frame
	studio.OnFrame(func(frame Frame) { frames = append(frames, frame) })

	// First frame: the clip onset fires, the reverb field lights up, and the
	// propagation pass raises the compressor's trigger flag.
	studio.Iterate()
	require.Len(t, frames, 1)
	reverbSnap := frames[0].Snapshots[plugin.KindReverb].(visual.ReverbSnapshot)
	require.True(t, reverbSnap.Active())
	assert.True(t, studio.Parameters(plugin.KindCompressor).Bool("sidechain"))

	// Second frame: the compressor advances with the flag set and reads the
	// source panel's level instead of the signal feed.
	clock.advance(16 * time.Millisecond)
	studio.Iterate()
	compSnap := frames[1].Snapshots[plugin.KindCompressor].(visual.CompressorSnapshot)
	assert.True(t, compSnap.Sidechain)

	// Removing the link clears the trigger flag immediately.
	require.True(t, studio.RemoveSidechainLink(plugin.KindReverb, plugin.KindCompressor))
	assert.False(t, studio.Parameters(plugin.KindCompressor).Bool("sidechain"))

	clock.advance(16 * time.Millisecond)
	studio.Iterate()
	compSnap = frames[2].Snapshots[plugin.KindCompressor].(visual.CompressorSnapshot)
	assert.False(t, compSnap.Sidechain)
}

func TestPresetRoundTripExact(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	studio.UpdateParameters(plugin.KindReverb, param.Settings{
		"mix":  param.Number(83),
		"mood": param.Text("Energetic"),
	})
	studio.UpdateParameter(plugin.KindCompressor, "sidechain", param.Flag(true))
	expected := studio.ParameterSnapshot()

	saved, err := studio.SavePreset("live set")
	require.NoError(t, err)
	require.True(t, saved)

	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(1))
	studio.UpdateParameter(plugin.KindDelay, "time", param.Number(999))

	require.True(t, studio.LoadPreset("live set"))
	assert.Equal(t, expected, studio.ParameterSnapshot())

	assert.False(t, studio.LoadPreset("never saved"))
	assert.Equal(t, []string{"live set"}, studio.PresetNames())
}

func TestPresetConfirmations(t *testing.T) {
	approved := true
	options := NewOptions()
	options.Confirm = func(action, name string) bool { return approved }
	studio, _ := newTestStudio(t, options)

	saved, err := studio.SavePreset("take one")
	require.NoError(t, err)
	require.True(t, saved)
	before := studio.ParameterSnapshot()

	// A declined overwrite leaves the stored snapshot untouched.
	approved = false
	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(2))
	saved, err = studio.SavePreset("take one")
	require.NoError(t, err)
	assert.False(t, saved)

	require.True(t, studio.LoadPreset("take one"))
	assert.Equal(t, before, studio.ParameterSnapshot())

	assert.False(t, studio.DeletePreset("take one"))
	assert.Equal(t, []string{"take one"}, studio.PresetNames())

	approved = true
	assert.True(t, studio.DeletePreset("take one"))
	assert.Empty(t, studio.PresetNames())
}

func TestSavePresetValidatesName(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	_, err := studio.SavePreset("")
	assert.Error(t, err)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, err = studio.SavePreset(string(long))
	assert.Error(t, err)
}

func TestGenerateAudioAppliesClipOnIterate(t *testing.T) {
	options := NewOptions()
	options.GenerationService = &audiogen.StaticService{Payload: wavPayload(t)}
	studio, clock := newTestStudio(t, options)

	jobID, err := studio.GenerateAudio("rolling thunder")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		clock.advance(16 * time.Millisecond)
		studio.Iterate()
		return studio.LoadedClip() != nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "rolling thunder", studio.LoadedClip().Name())
	assert.Greater(t, studio.LoadedClip().Duration(), 0.0)

	// Generation never touches the transport.
	assert.Equal(t, signal.TransportStopped, studio.TransportState())
	assert.False(t, studio.Generating())
}

func TestGenerateAudioFailureLeavesPlaybackAlone(t *testing.T) {
	options := NewOptions()
	options.GenerationService = &audiogen.StaticService{Err: errors.New("model offline")}
	studio, clock := newTestStudio(t, options)

	var done []telemetry.Event
	studio.OnEvent(telemetry.SinkFunc(func(event telemetry.Event) {
		if event.Type == telemetry.EventGenerationDone {
			done = append(done, event)
		}
	}))

	_, err := studio.GenerateAudio("rain")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		clock.advance(16 * time.Millisecond)
		studio.Iterate()
		return len(done) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "model offline", done[0].Detail)
	assert.Nil(t, studio.LoadedClip())
	assert.Equal(t, signal.TransportStopped, studio.TransportState())
}

func TestGenerateAudioRejectsBadRequests(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	_, err := studio.GenerateAudio("rain")
	assert.ErrorIs(t, err, audiogen.ErrNoService)

	options := NewOptions()
	options.GenerationService = &audiogen.StaticService{}
	studio, _ = newTestStudio(t, options)

	_, err = studio.GenerateAudio("")
	assert.Error(t, err)
}

func TestTelemetryEventStream(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	var events []telemetry.Event
	studio.OnEvent(telemetry.SinkFunc(func(event telemetry.Event) {
		events = append(events, event)
	}))
	types := func() []telemetry.EventType {
		collected := make([]telemetry.EventType, len(events))
		for i, event := range events {
			collected[i] = event.Type
		}
		return collected
	}

	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(70))
	require.Contains(t, types(), telemetry.EventParameterChanged)
	assert.Equal(t, plugin.KindReverb, events[0].Plugin)
	assert.Equal(t, "mix", events[0].Name)
	assert.InDelta(t, 70.0, events[0].Value, 1e-9)

	// Writing the same value again is not a change.
	before := len(events)
	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(70))
	assert.Equal(t, before, len(events))

	studio.MountPanel(plugin.KindReverb)
	assert.Contains(t, types(), telemetry.EventPanelMounted)

	studio.AddSidechainLink(plugin.KindReverb, plugin.KindCompressor)
	assert.Contains(t, types(), telemetry.EventLinkAdded)

	studio.SetAnimationIntensity(80)
	assert.Contains(t, types(), telemetry.EventSettingsChanged)

	_, err := studio.SavePreset("telemetry check")
	require.NoError(t, err)
	assert.Contains(t, types(), telemetry.EventPresetSaved)
}

func TestRemountStartsFreshSimulation(t *testing.T) {
	studio, clock := newTestStudio(t, nil)
	require.True(t, studio.MountPanel(plugin.KindReverb))
	studio.UpdateParameter(plugin.KindReverb, "predelay", param.Number(0))

	require.NoError(t, studio.signals.LoadClip(pulseClip(t)))
	require.NoError(t, studio.Play())

	var frames []Frame
	studio.OnFrame(func(frame Frame) { frames = append(frames, frame) })

	studio.Iterate()
	require.True(t, frames[0].Snapshots[plugin.KindReverb].(visual.ReverbSnapshot).Active())

	// Tearing the panel down discards the field; remounting starts empty
	// even though playback continues.
	require.True(t, studio.UnmountPanel(plugin.KindReverb))
	require.True(t, studio.MountPanel(plugin.KindReverb))

	clock.advance(16 * time.Millisecond)
	studio.Iterate()
	remounted := frames[1].Snapshots[plugin.KindReverb].(visual.ReverbSnapshot)
	assert.False(t, remounted.Active(), "fresh simulation after remount")
}

func TestParameterIsolationAcrossPlugins(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	delayBefore := studio.Parameters(plugin.KindDelay)
	studio.UpdateParameter(plugin.KindReverb, "mix", param.Number(12))

	assert.Equal(t, delayBefore, studio.Parameters(plugin.KindDelay))
}

func TestTransportFlow(t *testing.T) {
	studio, clock := newTestStudio(t, nil)

	assert.ErrorIs(t, studio.Play(), signal.ErrNoClip)

	require.NoError(t, studio.signals.LoadClip(pulseClip(t)))
	require.NoError(t, studio.Play())
	assert.Equal(t, signal.TransportPlaying, studio.TransportState())

	studio.Iterate()
	for i := 0; i < 3; i++ {
		clock.advance(100 * time.Millisecond)
		studio.Iterate()
	}
	assert.InDelta(t, 0.3, studio.PlaybackPosition(), 1e-6)

	require.NoError(t, studio.Pause())
	assert.Equal(t, signal.TransportPaused, studio.TransportState())
	assert.ErrorIs(t, studio.Pause(), signal.ErrNotPlaying)

	studio.StopPlayback()
	assert.Equal(t, signal.TransportStopped, studio.TransportState())
	assert.Zero(t, studio.PlaybackPosition())

	studio.UnloadClip()
	assert.Nil(t, studio.LoadedClip())
}

func TestLoadClipFromWAVPayload(t *testing.T) {
	studio, _ := newTestStudio(t, nil)

	require.NoError(t, studio.LoadClip(wavPayload(t), "tone"))
	require.NotNil(t, studio.LoadedClip())
	assert.Equal(t, "tone", studio.LoadedClip().Name())

	assert.Error(t, studio.LoadClip([]byte("not audio at all"), "junk"))
}
