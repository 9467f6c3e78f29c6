package settings

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/limits"
)

// Saver persists the global configuration record. Implementations belong to
// the embedder (file, browser storage, remote profile).
type Saver interface {
	SaveGlobal(Global) error
}

// SaverFunc adapts a plain function to the Saver interface.
type SaverFunc func(Global) error

// SaveGlobal calls f.
func (f SaverFunc) SaveGlobal(g Global) error { return f(g) }

// Manager owns the live Global record and persists it on every change.
type Manager struct {
	mu       sync.RWMutex
	current  Global
	saver    Saver
	onChange func(Global)
}

// NewManager creates a manager starting from initial, which the embedder
// loads from persisted storage once at session start. A nil saver disables
// persistence.
func NewManager(initial Global, saver Saver) *Manager {
	initial.AnimationIntensity = limits.ClampIntensity(initial.AnimationIntensity)
	if initial.VisualizerComplexity == "" {
		initial.VisualizerComplexity = TierHigh
	}
	return &Manager{
		current: initial,
		saver:   saver,
	}
}

// Current returns the live configuration record.
func (m *Manager) Current() Global {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetAnimationIntensity updates the intensity, clamped to 0–100, and
// persists the record.
func (m *Manager) SetAnimationIntensity(value int) {
	m.mutate(func(g *Global) {
		g.AnimationIntensity = limits.ClampIntensity(value)
	})
}

// SetVisualizerComplexity updates the complexity tier and persists the record.
func (m *Manager) SetVisualizerComplexity(tier Tier) {
	m.mutate(func(g *Global) {
		if tier == "" {
			tier = TierHigh
		}
		g.VisualizerComplexity = tier
	})
}

// SetTheme updates the active panel skin and persists the record.
func (m *Manager) SetTheme(name string) {
	m.mutate(func(g *Global) {
		g.Theme = name
	})
}

// Replace swaps in a whole record at once (session restore). Persists like
// any other change.
func (m *Manager) Replace(g Global) {
	m.mutate(func(current *Global) {
		g.AnimationIntensity = limits.ClampIntensity(g.AnimationIntensity)
		if g.VisualizerComplexity == "" {
			g.VisualizerComplexity = TierHigh
		}
		*current = g
	})
}

// OnChange registers a callback invoked synchronously after every change,
// with the new record. Registering replaces the previous callback.
func (m *Manager) OnChange(callback func(Global)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// mutate applies the edit, persists, and notifies. A failing saver is logged
// and otherwise ignored; the in-memory record keeps the new value.
func (m *Manager) mutate(edit func(*Global)) {
	m.mu.Lock()
	edit(&m.current)
	updated := m.current
	saver := m.saver
	callback := m.onChange
	m.mu.Unlock()

	if saver != nil {
		if err := saver.SaveGlobal(updated); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "mutate",
				"error":    err.Error(),
			}).Warn("Failed to persist global settings")
		}
	}
	if callback != nil {
		callback(updated)
	}
}
