package settings

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestMotionScaleRange verifies the documented 0–100 → 1.0–0.25 mapping
func TestMotionScaleRange(t *testing.T) {
	tests := []struct {
		intensity int
		want      float64
	}{
		{0, 1.0},
		{50, 0.625},
		{100, 0.25},
		{-20, 1.0},  // clamped up
		{500, 0.25}, // clamped down
	}

	for _, tt := range tests {
		g := Global{AnimationIntensity: tt.intensity}
		if got := g.MotionScale(); got != tt.want {
			t.Errorf("MotionScale(intensity=%d) = %v, want %v", tt.intensity, got, tt.want)
		}
	}
}

// TestMotionScaleMonotonic verifies higher intensity always yields a smaller
// multiplier, which is what makes motion faster.
func TestMotionScaleMonotonic(t *testing.T) {
	prev := Global{AnimationIntensity: 0}.MotionScale()
	for intensity := 10; intensity <= 100; intensity += 10 {
		scale := Global{AnimationIntensity: intensity}.MotionScale()
		if scale >= prev {
			t.Fatalf("MotionScale not strictly decreasing at intensity %d: %v >= %v", intensity, scale, prev)
		}
		prev = scale
	}
}

// TestTransitionDuration verifies transitions shorten as intensity rises
func TestTransitionDuration(t *testing.T) {
	base := 400 * time.Millisecond

	slow := Global{AnimationIntensity: 0}.TransitionDuration(base)
	fast := Global{AnimationIntensity: 100}.TransitionDuration(base)

	assert.Equal(t, base, slow)
	assert.Equal(t, 100*time.Millisecond, fast)
}

// TestComplexityFactor verifies the tier multiplier
func TestComplexityFactor(t *testing.T) {
	if got := (Global{VisualizerComplexity: TierLow}).ComplexityFactor(); got != 1 {
		t.Errorf("low tier factor = %d, want 1", got)
	}
	if got := (Global{VisualizerComplexity: TierHigh}).ComplexityFactor(); got <= 1 {
		t.Errorf("high tier factor = %d, want > 1", got)
	}
	if got := (Global{VisualizerComplexity: "ultra"}).ComplexityFactor(); got <= 1 {
		t.Errorf("unrecognized tier factor = %d, want the full-detail factor", got)
	}
}

// TestManagerPersistsOnEveryChange verifies each setter reaches the saver
func TestManagerPersistsOnEveryChange(t *testing.T) {
	var saved []Global
	manager := NewManager(Defaults(), SaverFunc(func(g Global) error {
		saved = append(saved, g)
		return nil
	}))

	manager.SetAnimationIntensity(80)
	manager.SetVisualizerComplexity(TierLow)
	manager.SetTheme("daylight")

	assert.Len(t, saved, 3)
	assert.Equal(t, 80, saved[0].AnimationIntensity)
	assert.Equal(t, TierLow, saved[1].VisualizerComplexity)
	assert.Equal(t, "daylight", saved[2].Theme)

	current := manager.Current()
	assert.Equal(t, 80, current.AnimationIntensity)
	assert.Equal(t, TierLow, current.VisualizerComplexity)
	assert.Equal(t, "daylight", current.Theme)
}

// TestManagerSaverFailureKeepsValue verifies a failing saver is logged and
// the in-memory record still advances.
func TestManagerSaverFailureKeepsValue(t *testing.T) {
	manager := NewManager(Defaults(), SaverFunc(func(Global) error {
		return errors.New("disk full")
	}))

	manager.SetAnimationIntensity(90)

	assert.Equal(t, 90, manager.Current().AnimationIntensity)
}

// TestManagerClampsIntensity verifies setter input is clamped into range
func TestManagerClampsIntensity(t *testing.T) {
	manager := NewManager(Defaults(), nil)

	manager.SetAnimationIntensity(1000)
	assert.Equal(t, 100, manager.Current().AnimationIntensity)

	manager.SetAnimationIntensity(-5)
	assert.Equal(t, 0, manager.Current().AnimationIntensity)
}

// TestManagerOnChange verifies the change callback observes every mutation
func TestManagerOnChange(t *testing.T) {
	manager := NewManager(Defaults(), nil)

	var seen []Global
	manager.OnChange(func(g Global) { seen = append(seen, g) })

	manager.SetTheme("daylight")
	manager.SetAnimationIntensity(10)

	assert.Len(t, seen, 2)
	assert.Equal(t, "daylight", seen[0].Theme)
	assert.Equal(t, 10, seen[1].AnimationIntensity)
}

// TestNewManagerNormalizesInitial verifies restored records are sanitized
func TestNewManagerNormalizesInitial(t *testing.T) {
	manager := NewManager(Global{AnimationIntensity: 400, VisualizerComplexity: ""}, nil)

	current := manager.Current()
	assert.Equal(t, 100, current.AnimationIntensity)
	assert.Equal(t, TierHigh, current.VisualizerComplexity)
}
