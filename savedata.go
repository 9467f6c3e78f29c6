package rackcore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/crypto"
	"github.com/opd-ai/rackcore/midi"
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
	"github.com/opd-ai/rackcore/preset"
	"github.com/opd-ai/rackcore/settings"
	"github.com/opd-ai/rackcore/sidechain"
	"github.com/opd-ai/rackcore/telemetry"
	"github.com/opd-ai/rackcore/visual"
)

// SaveDataType specifies how Options.Savedata is interpreted.
type SaveDataType uint8

const (
	// SaveDataTypeNone starts a fresh session.
	SaveDataTypeNone SaveDataType = iota
	// SaveDataTypeSession restores a plain JSON session snapshot.
	SaveDataTypeSession
	// SaveDataTypeSealedSession restores a passphrase-sealed snapshot.
	SaveDataTypeSealedSession
)

// SaveData is the serializable state of a Studio session.
type SaveData struct {
	Settings  map[plugin.Kind]param.Settings `json:"settings"`
	Mappings  []midi.Mapping                 `json:"mappings"`
	Links     []sidechain.Link               `json:"links"`
	Panels    []Panel                        `json:"panels"`
	Presets   []preset.Preset                `json:"presets"`
	Global    settings.Global                `json:"global"`
	Timestamp int64                          `json:"timestamp"`
}

// Serialize converts SaveData to a byte slice using JSON.
func (s *SaveData) Serialize() []byte {
	data, _ := json.Marshal(s)
	return data
}

// LoadSaveData deserializes a byte slice into SaveData.
func LoadSaveData(data []byte) (*SaveData, error) {
	var saveData SaveData
	if err := json.Unmarshal(data, &saveData); err != nil {
		return nil, fmt.Errorf("parsing savedata: %w", err)
	}
	return &saveData, nil
}

// GetSavedata returns the current session state as a byte slice for
// persistence: every plugin's settings, MIDI mappings, sidechain links,
// panel placement, presets, and the global settings record.
func (s *Studio) GetSavedata() []byte {
	s.mu.RLock()
	panels := make([]Panel, 0, len(s.panels))
	for _, kind := range plugin.Kinds() {
		if panel, ok := s.panels[kind]; ok {
			panels = append(panels, *panel)
		}
	}
	s.mu.RUnlock()

	saveData := &SaveData{
		Settings:  s.store.Snapshot(),
		Mappings:  s.router.Mappings(),
		Links:     s.graph.Links(),
		Panels:    panels,
		Presets:   s.presets.List(),
		Global:    s.globals.Current(),
		Timestamp: time.Now().Unix(),
	}
	return saveData.Serialize()
}

// GetSavedataSealed returns the session state sealed under a passphrase,
// suitable for untrusted storage.
func (s *Studio) GetSavedataSealed(passphrase string) ([]byte, error) {
	return crypto.SealSnapshot(s.GetSavedata(), passphrase)
}

// restoreSavedata applies Options.Savedata according to its declared type.
// Unreadable plain savedata degrades to a fresh session with a warning; a
// sealed snapshot that fails to open is an error, since silently discarding
// it would look like data loss.
func (s *Studio) restoreSavedata(options *Options) error {
	switch options.SavedataType {
	case SaveDataTypeSession:
		if len(options.Savedata) == 0 {
			return nil
		}
		if err := s.loadFromSaveData(options.Savedata); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "restoreSavedata",
				"error":    err.Error(),
			}).Warn("Ignoring unreadable savedata, starting fresh")
		}
		return nil
	case SaveDataTypeSealedSession:
		if len(options.Savedata) == 0 {
			return nil
		}
		data, err := crypto.OpenSnapshot(options.Savedata, options.SavedataPassphrase)
		if err != nil {
			return fmt.Errorf("opening sealed savedata: %w", err)
		}
		if err := s.loadFromSaveData(data); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "restoreSavedata",
				"error":    err.Error(),
			}).Warn("Ignoring unreadable savedata, starting fresh")
		}
		return nil
	default:
		return nil
	}
}

// loadFromSaveData restores session state from serialized savedata. Kinds
// missing from the snapshot keep their defaults; saved panels that were
// mounted get fresh bridges with their restored z-order intact.
func (s *Studio) loadFromSaveData(data []byte) error {
	save, err := LoadSaveData(data)
	if err != nil {
		return err
	}

	for kind, restored := range save.Settings {
		if kind.Valid() {
			s.store.Seed(kind, restored)
		}
	}
	s.router.LoadMappings(save.Mappings)
	s.graph.LoadLinks(save.Links)
	s.presets.Restore(save.Presets)
	s.globals.Replace(save.Global)

	s.mu.Lock()
	for _, saved := range save.Panels {
		panel, ok := s.panels[saved.Kind]
		if !ok {
			continue
		}
		panel.X = saved.X
		panel.Y = saved.Y
		panel.Width = saved.Width
		if panel.Width < minPanelWidth {
			panel.Width = minPanelWidth
		}
		panel.Height = saved.Height
		if panel.Height < minPanelHeight {
			panel.Height = minPanelHeight
		}
		panel.Z = saved.Z
		if panel.Z > s.zCounter {
			s.zCounter = panel.Z
		}
		if saved.Mounted {
			if bridge, buildErr := visual.New(saved.Kind, s.store.Get(saved.Kind)); buildErr == nil {
				s.bridges[saved.Kind] = bridge
				panel.Mounted = true
			}
		}
	}
	s.active = s.topmostMountedLocked()
	mounted := len(s.bridges)
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "loadFromSaveData",
		"mappings": len(save.Mappings),
		"links":    len(save.Links),
		"presets":  len(save.Presets),
		"mounted":  mounted,
	}).Info("Session restored from savedata")
	return nil
}

// ResetSession clears the session back to defaults: plugin settings, MIDI
// mappings, sidechain links, panel placement and mounts, and the loaded
// clip. Presets and the global settings record survive. The operation is
// irreversible and runs through the confirmation hook first.
func (s *Studio) ResetSession() bool {
	if !s.confirmAction("reset", "session") {
		logrus.WithFields(logrus.Fields{
			"function": "ResetSession",
		}).Info("Session reset declined")
		return false
	}

	s.mu.Lock()
	bridges := s.bridges
	s.bridges = make(map[plugin.Kind]visual.Bridge)
	s.snapshots = make(map[plugin.Kind]visual.Snapshot)
	s.panels = defaultPanels()
	s.zCounter = len(plugin.Kinds())
	s.active = plugin.KindUnknown
	s.mu.Unlock()

	for _, bridge := range bridges {
		bridge.Close()
	}

	defaults := make(map[plugin.Kind]param.Settings, len(plugin.Kinds()))
	for _, kind := range plugin.Kinds() {
		defaults[kind] = visual.Defaults(kind)
	}
	s.store.ReplaceAll(defaults)
	s.router.Reset()
	s.graph.Reset()
	s.signals.UnloadClip()

	logrus.WithFields(logrus.Fields{
		"function": "ResetSession",
	}).Info("Session reset to defaults")
	s.emit(telemetry.New(telemetry.EventSessionReset, plugin.KindUnknown, ""))
	return true
}
