// Package preset stores named full-rack settings snapshots.
//
// A preset is a wholesale copy of every plugin's settings at save time.
// Loading one replaces the entire settings mapping; nothing is merged.
// Overwrite and delete are destructive, so both run through the injected
// confirmation hook first. A declined confirmation aborts silently with no
// state change, matching how the rest of the studio treats user-declined
// actions.
package preset

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/limits"
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
)

// Preset is one named snapshot of every plugin's settings.
type Preset struct {
	Name     string                         `json:"name"`
	Settings map[plugin.Kind]param.Settings `json:"settings"`
	SavedAt  time.Time                      `json:"savedAt"`
}

// ConfirmFunc asks the user to approve a destructive action such as
// "overwrite" or "delete". A nil hook approves everything.
type ConfirmFunc func(action, name string) bool

// Store holds presets keyed by unique name.
type Store struct {
	mu      sync.RWMutex
	presets map[string]Preset
	confirm ConfirmFunc
}

// NewStore creates an empty preset store with the given confirmation hook.
func NewStore(confirm ConfirmFunc) *Store {
	return &Store{
		presets: make(map[string]Preset),
		confirm: confirm,
	}
}

// SetConfirm replaces the confirmation hook.
func (s *Store) SetConfirm(confirm ConfirmFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirm = confirm
}

// Save snapshots the given settings under name. Overwriting an existing
// preset asks for confirmation first; a declined overwrite changes nothing.
// The snapshot is deep-copied, so the caller's maps stay independent.
// The returned bool reports whether the preset was written.
func (s *Store) Save(name string, snapshot map[plugin.Kind]param.Settings) (bool, error) {
	if err := limits.ValidatePresetName(name); err != nil {
		return false, err
	}

	s.mu.Lock()
	_, exists := s.presets[name]
	confirm := s.confirm
	s.mu.Unlock()

	if exists && confirm != nil && !confirm("overwrite", name) {
		logrus.WithFields(logrus.Fields{
			"function": "Save",
			"preset":   name,
		}).Info("Preset overwrite declined")
		return false, nil
	}

	preset := Preset{
		Name:     name,
		Settings: cloneSnapshot(snapshot),
		SavedAt:  time.Now(),
	}

	s.mu.Lock()
	s.presets[name] = preset
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Save",
		"preset":   name,
		"plugins":  len(preset.Settings),
	}).Info("Preset saved")
	return true, nil
}

// Load returns a deep copy of the named preset's settings. A missing name
// returns (nil, false) with no error surfaced.
func (s *Store) Load(name string) (map[plugin.Kind]param.Settings, bool) {
	s.mu.RLock()
	preset, ok := s.presets[name]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cloneSnapshot(preset.Settings), true
}

// Delete removes the named preset after confirmation and reports whether it
// was removed. Missing names and declined confirmations are silent no-ops.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	_, exists := s.presets[name]
	confirm := s.confirm
	s.mu.Unlock()

	if !exists {
		return false
	}
	if confirm != nil && !confirm("delete", name) {
		logrus.WithFields(logrus.Fields{
			"function": "Delete",
			"preset":   name,
		}).Info("Preset delete declined")
		return false
	}

	s.mu.Lock()
	delete(s.presets, name)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Delete",
		"preset":   name,
	}).Info("Preset deleted")
	return true
}

// List returns every preset sorted by name, settings deep-copied.
func (s *Store) List() []Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]Preset, 0, len(s.presets))
	for _, preset := range s.presets {
		list = append(list, Preset{
			Name:     preset.Name,
			Settings: cloneSnapshot(preset.Settings),
			SavedAt:  preset.SavedAt,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Names returns the stored preset names sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.presets))
	for name := range s.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Restore replaces all presets wholesale (session restore). No
// confirmations run; restore is not a user-facing overwrite.
func (s *Store) Restore(presets []Preset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = make(map[string]Preset, len(presets))
	for _, preset := range presets {
		if limits.ValidatePresetName(preset.Name) != nil {
			continue
		}
		s.presets[preset.Name] = Preset{
			Name:     preset.Name,
			Settings: cloneSnapshot(preset.Settings),
			SavedAt:  preset.SavedAt,
		}
	}
}

// Reset drops every preset without confirmation; the session-level reset
// confirmation already happened upstream.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets = make(map[string]Preset)
}

func cloneSnapshot(snapshot map[plugin.Kind]param.Settings) map[plugin.Kind]param.Settings {
	clone := make(map[plugin.Kind]param.Settings, len(snapshot))
	for kind, settings := range snapshot {
		clone[kind] = settings.Clone()
	}
	return clone
}
