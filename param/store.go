package param

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/plugin"
)

// UpdateFunc computes a partial settings update from the previous settings.
// The function must not modify prev; it receives a private copy and returns
// only the names it wants changed.
type UpdateFunc func(prev Settings) Settings

// ChangeCallback is invoked synchronously after a parameter's value changed.
type ChangeCallback func(kind plugin.Kind, name string, value Value)

// Store holds the settings of every plugin in the rack.
//
// Updates follow copy-on-write semantics: the plugin's settings map is
// replaced wholesale on every update and the previous map is never touched.
// Other plugins' maps are left reference-identical, so observers can detect
// exactly which plugin changed by comparing map references.
type Store struct {
	mu       sync.RWMutex
	settings map[plugin.Kind]Settings
	onChange ChangeCallback
}

// NewStore creates an empty parameter store. Plugins become known to the
// store through Seed.
func NewStore() *Store {
	return &Store{
		settings: make(map[plugin.Kind]Settings),
	}
}

// Seed installs a plugin's settings wholesale, typically its kind defaults
// at session start or a restored snapshot. No change callbacks fire.
func (s *Store) Seed(kind plugin.Kind, settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[kind] = settings.Clone()
}

// Get returns the plugin's current settings map. The map must be treated as
// read-only; later updates install a fresh map rather than mutating it.
// Unknown kinds return nil.
func (s *Store) Get(kind plugin.Kind) Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings[kind]
}

// Update shallow-merges a literal partial into the plugin's settings.
// Range clamping is the caller's responsibility; the store applies whatever
// it is given. Updating a kind never seeded is ignored.
func (s *Store) Update(kind plugin.Kind, partial Settings) {
	s.apply(kind, func(Settings) Settings { return partial })
}

// UpdateWith derives the partial from the previous settings through fn,
// then merges it exactly like Update.
func (s *Store) UpdateWith(kind plugin.Kind, fn UpdateFunc) {
	if fn == nil {
		return
	}
	s.apply(kind, fn)
}

// apply runs the single merge path shared by both update forms.
// Change callbacks fire once per parameter whose value actually changed,
// after the new map is installed.
func (s *Store) apply(kind plugin.Kind, fn UpdateFunc) {
	s.mu.Lock()
	prev, ok := s.settings[kind]
	if !ok {
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "apply",
			"plugin":   kind.String(),
		}).Debug("Ignoring update for unseeded plugin")
		return
	}

	partial := fn(prev.Clone())
	if len(partial) == 0 {
		s.mu.Unlock()
		return
	}

	next := prev.Merge(partial)
	changed := make([]string, 0, len(partial))
	for name := range partial {
		if !prev[name].Equal(next[name]) {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 {
		// Nothing moved; keep the previous map so reference comparisons
		// stay meaningful.
		s.mu.Unlock()
		return
	}

	s.settings[kind] = next
	callback := s.onChange
	s.mu.Unlock()

	if callback == nil {
		return
	}
	for _, name := range changed {
		callback(kind, name, next[name])
	}
}

// OnChange registers the callback invoked after each parameter change.
// Only one callback is held; registering replaces the previous one.
func (s *Store) OnChange(callback ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = callback
}

// Kinds returns the kinds currently seeded, in unspecified order.
func (s *Store) Kinds() []plugin.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]plugin.Kind, 0, len(s.settings))
	for kind := range s.settings {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Snapshot returns a deep copy of every plugin's settings, suitable for
// preset capture or savedata.
func (s *Store) Snapshot() map[plugin.Kind]Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[plugin.Kind]Settings, len(s.settings))
	for kind, settings := range s.settings {
		snapshot[kind] = settings.Clone()
	}
	return snapshot
}

// ReplaceAll swaps in a full settings snapshot, replacing the entire
// mapping (preset load semantics). The input is deep-copied, so callers may
// reuse it afterwards. No change callbacks fire; the caller announces the
// wholesale replacement itself.
func (s *Store) ReplaceAll(snapshot map[plugin.Kind]Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make(map[plugin.Kind]Settings, len(snapshot))
	for kind, settings := range snapshot {
		replaced[kind] = settings.Clone()
	}
	s.settings = replaced
}
