package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opd-ai/rackcore"
	"github.com/opd-ai/rackcore/limits"
	"github.com/opd-ai/rackcore/midi"
	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
	"github.com/opd-ai/rackcore/settings"
	"github.com/opd-ai/rackcore/sidechain"
	"github.com/opd-ai/rackcore/signal"
)

// stateResponse is the full studio state a frontend needs to draw the rack.
type stateResponse struct {
	Panels     []rackcore.Panel               `json:"panels"`
	Active     string                         `json:"active"`
	Params     map[plugin.Kind]param.Settings `json:"params"`
	Mappings   []midi.Mapping                 `json:"mappings"`
	Links      []sidechain.Link               `json:"links"`
	Presets    []string                       `json:"presets"`
	Settings   settings.Global                `json:"settings"`
	Transport  string                         `json:"transport"`
	Position   float64                        `json:"position"`
	Signal     signal.Signal                  `json:"signal"`
	Generating bool                           `json:"generating"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer io.Copy(io.Discard, r.Body)
	return json.NewDecoder(r.Body).Decode(v)
}

// kindParam resolves the {kind} URL segment; a nil error means the kind is
// real.
func kindParam(r *http.Request) (plugin.Kind, error) {
	return plugin.ParseKind(chi.URLParam(r, "kind"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"running": s.studio.IsRunning(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Panels:     s.studio.Panels(),
		Active:     s.studio.ActivePanel().String(),
		Params:     s.studio.ParameterSnapshot(),
		Mappings:   s.studio.Mappings(),
		Links:      s.studio.SidechainLinks(),
		Presets:    s.studio.PresetNames(),
		Settings:   s.studio.Settings(),
		Transport:  s.studio.TransportState().String(),
		Position:   s.studio.PlaybackPosition(),
		Signal:     s.studio.CurrentSignal(),
		Generating: s.studio.Generating(),
	})
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.studio.Panels())
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.studio.MountPanel(kind)})
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.studio.UnmountPanel(kind)})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	duration, ok := s.studio.ActivatePanel(kind)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           ok,
		"transitionMs": duration.Milliseconds(),
	})
}

// geometryRequest updates panel placement. Position and size move
// independently; absent fields leave their half untouched.
type geometryRequest struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
}

func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var req geometryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid geometry body")
		return
	}
	if req.X != nil && req.Y != nil {
		s.studio.MovePanel(kind, *req.X, *req.Y)
	}
	if req.Width != nil && req.Height != nil {
		s.studio.ResizePanel(kind, *req.Width, *req.Height)
	}
	panel, _ := s.studio.Panel(kind)
	writeJSON(w, http.StatusOK, panel)
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.studio.Parameters(kind))
}

func (s *Server) handlePatchParams(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var partial param.Settings
	if err := decodeJSON(r, &partial); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	s.studio.UpdateParameters(kind, partial)
	writeJSON(w, http.StatusOK, s.studio.Parameters(kind))
}

// midiRequest injects one control-change message. Raw bytes win over the
// structured fields when both are present.
type midiRequest struct {
	Device     string `json:"device"`
	Channel    uint8  `json:"channel"`
	Controller uint8  `json:"controller"`
	Value      uint8  `json:"value"`
	Raw        []byte `json:"raw,omitempty"`
}

func (s *Server) handleMIDI(w http.ResponseWriter, r *http.Request) {
	var req midiRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid midi body")
		return
	}
	if req.Device == "" {
		writeError(w, http.StatusBadRequest, "device is required")
		return
	}

	raw := req.Raw
	if len(raw) == 0 {
		raw = []byte{0xB0 | req.Channel&0x0F, req.Controller & 0x7F, req.Value & 0x7F}
	}
	s.studio.HandleMIDIRaw(midi.DeviceID(req.Device), raw)
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

// learnRequest arms the learn slot for one parameter.
type learnRequest struct {
	Plugin string  `json:"plugin"`
	Param  string  `json:"param"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func (s *Server) handleStartLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid learn body")
		return
	}
	kind, err := plugin.ParseKind(req.Plugin)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if req.Param == "" {
		writeError(w, http.StatusBadRequest, "param is required")
		return
	}

	s.studio.StartLearn(kind, req.Param, req.Min, req.Max)
	_, armed := s.studio.LearnTarget()
	writeJSON(w, http.StatusOK, map[string]bool{"armed": armed})
}

func (s *Server) handleCancelLearn(w http.ResponseWriter, r *http.Request) {
	s.studio.CancelLearn()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.studio.Mappings())
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.studio.SidechainLinks())
}

// linkRequest names a directed sidechain edge.
type linkRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) parseLink(r *http.Request) (plugin.Kind, plugin.Kind, error) {
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		return plugin.KindUnknown, plugin.KindUnknown, errors.New("invalid link body")
	}
	from, err := plugin.ParseKind(req.From)
	if err != nil {
		return plugin.KindUnknown, plugin.KindUnknown, err
	}
	to, err := plugin.ParseKind(req.To)
	if err != nil {
		return plugin.KindUnknown, plugin.KindUnknown, err
	}
	return from, to, nil
}

func (s *Server) handleAddLink(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseLink(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.studio.AddSidechainLink(from, to)})
}

func (s *Server) handleRemoveLink(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseLink(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.studio.RemoveSidechainLink(from, to)})
}

// presetInfo is the list entry for one stored preset.
type presetInfo struct {
	Name    string    `json:"name"`
	SavedAt time.Time `json:"savedAt"`
	Plugins int       `json:"plugins"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	stored := s.studio.Presets()
	list := make([]presetInfo, 0, len(stored))
	for _, p := range stored {
		list = append(list, presetInfo{Name: p.Name, SavedAt: p.SavedAt, Plugins: len(p.Settings)})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	saved, err := s.studio.SavePreset(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": saved})
}

func (s *Server) handleLoadPreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.studio.LoadPreset(name) {
		writeError(w, http.StatusNotFound, "no preset named "+name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.studio.DeletePreset(name)})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.studio.Settings())
}

// settingsRequest updates the global record; absent fields keep their
// current values.
type settingsRequest struct {
	AnimationIntensity   *int    `json:"animationIntensity"`
	VisualizerComplexity *string `json:"visualizerComplexity"`
	Theme                *string `json:"theme"`
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings body")
		return
	}
	if req.AnimationIntensity != nil {
		s.studio.SetAnimationIntensity(*req.AnimationIntensity)
	}
	if req.VisualizerComplexity != nil {
		s.studio.SetVisualizerComplexity(settings.Tier(*req.VisualizerComplexity))
	}
	if req.Theme != nil {
		s.studio.SetTheme(*req.Theme)
	}
	writeJSON(w, http.StatusOK, s.studio.Settings())
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Play(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transport": s.studio.TransportState().String()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Pause(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"transport": s.studio.TransportState().String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.studio.StopPlayback()
	writeJSON(w, http.StatusOK, map[string]string{"transport": s.studio.TransportState().String()})
}

func (s *Server) handleLoadClip(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "uploaded clip"
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(limits.MaxClipBytes))
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "clip exceeds size limit")
		return
	}
	if err := s.studio.LoadClip(payload, name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"duration": s.studio.LoadedClip().Duration(),
	})
}

func (s *Server) handleUnloadClip(w http.ResponseWriter, r *http.Request) {
	s.studio.UnloadClip()
	w.WriteHeader(http.StatusNoContent)
}

// generateRequest asks the generation service for a clip.
type generateRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid generate body")
		return
	}
	jobID, err := s.studio.GenerateAudio(req.Prompt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleSavedata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="session.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.studio.GetSavedata())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.studio.ResetSession()})
}
