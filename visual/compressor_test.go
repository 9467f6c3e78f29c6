package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/settings"
	"github.com/opd-ai/rackcore/signal"
)

func compressorWith(overrides param.Settings) *compressorBridge {
	return newCompressorBridge(compressorDefaults().Merge(overrides))
}

func compFrame(t, level float64, extra map[string]float64) Context {
	return Context{
		Signal: signal.Signal{Time: t, Level: level},
		Width:  800,
		Height: 600,
		Global: settings.Global{AnimationIntensity: 50, VisualizerComplexity: settings.TierHigh},
		Extra:  extra,
	}
}

func TestReductionConvergesAboveThreshold(t *testing.T) {
	bridge := compressorWith(nil)
	defer bridge.Close()

	var snap CompressorSnapshot
	for i := 0; i < 240; i++ {
		snap = bridge.Advance(compFrame(float64(i)/60, 1.0, nil)).(CompressorSnapshot)
	}

	// Full level sits 24dB over the -24dB threshold; at ratio 4 the meter
	// settles at 24 * (1 - 1/4) = 18dB.
	assert.InDelta(t, 18.0, snap.Reduction, 0.5)
	assert.InDelta(t, 0.75, snap.Pump, 0.05)
	assert.True(t, snap.Active())
}

func TestSilenceShowsNoReduction(t *testing.T) {
	bridge := compressorWith(nil)
	defer bridge.Close()

	var snap CompressorSnapshot
	for i := 0; i < 60; i++ {
		snap = bridge.Advance(compFrame(float64(i)/60, 0, nil)).(CompressorSnapshot)
	}
	assert.InDelta(t, 0.0, snap.Reduction, 0.001)
	assert.False(t, snap.Active())
}

func TestRatioOneIsTransparent(t *testing.T) {
	bridge := compressorWith(param.Settings{"ratio": param.Number(1)})
	defer bridge.Close()

	var snap CompressorSnapshot
	for i := 0; i < 120; i++ {
		snap = bridge.Advance(compFrame(float64(i)/60, 1.0, nil)).(CompressorSnapshot)
	}
	assert.InDelta(t, 0.0, snap.Reduction, 0.001)
}

func TestReleaseDecaysGradually(t *testing.T) {
	bridge := compressorWith(nil)
	defer bridge.Close()

	for i := 0; i < 120; i++ {
		bridge.Advance(compFrame(float64(i)/60, 1.0, nil))
	}
	engaged := bridge.reduction
	require.Greater(t, engaged, 10.0)

	snap := bridge.Advance(compFrame(2.0+1.0/60, 0, nil)).(CompressorSnapshot)
	assert.Less(t, snap.Reduction, engaged)
	assert.Greater(t, snap.Reduction, 1.0, "release lets the meter fall over many frames, not one")
}

func TestSidechainDrivesDetection(t *testing.T) {
	bridge := compressorWith(param.Settings{"sidechain": param.Flag(true)})
	defer bridge.Close()

	// The panel's own signal is silent; the sidechain source is hot.
	extra := map[string]float64{SidechainLevelKey: 1.0}
	var snap CompressorSnapshot
	for i := 0; i < 120; i++ {
		snap = bridge.Advance(compFrame(float64(i)/60, 0, extra)).(CompressorSnapshot)
	}
	assert.True(t, snap.Sidechain)
	assert.Greater(t, snap.Reduction, 10.0, "the external source pumps the meter")

	// Without the flag the same Extra value is ignored.
	plain := compressorWith(nil)
	defer plain.Close()
	for i := 0; i < 120; i++ {
		snap = plain.Advance(compFrame(float64(i)/60, 0, extra)).(CompressorSnapshot)
	}
	assert.False(t, snap.Sidechain)
	assert.InDelta(t, 0.0, snap.Reduction, 0.001)
}

func TestCompressorCloseStops(t *testing.T) {
	bridge := compressorWith(nil)
	for i := 0; i < 60; i++ {
		bridge.Advance(compFrame(float64(i)/60, 1.0, nil))
	}
	bridge.Close()

	snap := bridge.Advance(compFrame(2.0, 1.0, nil)).(CompressorSnapshot)
	assert.Zero(t, snap.Reduction)
	assert.False(t, snap.Active())
}
