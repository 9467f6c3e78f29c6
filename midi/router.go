// Package midi implements the control-surface mapping layer of the studio.
//
// The Router binds (device, controller) pairs to plugin parameters and
// scales incoming control-change values into each binding's range. A
// single-slot learn mode captures the next controller movement as a new
// binding.
//
// Example:
//
//	router := midi.NewRouter(store)
//	router.StartLearn(plugin.KindReverb, "mix", 0, 100)
//
//	// The next control-change movement on any device becomes the binding.
//	router.HandleMessage("nano-kontrol", gomidi.ControlChange(0, 10, 64))
//
//	// From now on the same controller drives reverb mix directly.
//	router.HandleMessage("nano-kontrol", gomidi.ControlChange(0, 10, 127))
package midi

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
)

// DeviceID identifies a MIDI input device. Identifiers are opaque stable
// strings supplied by the embedder's device layer; two inputs reporting the
// same identifier share one mapping namespace.
type DeviceID string

// ControllerMax is the largest raw value a control-change message carries.
const ControllerMax = 127

// Mapping binds one (device, controller) pair to a plugin parameter with a
// scaling range.
type Mapping struct {
	Device     DeviceID    `json:"device"`
	Controller uint8       `json:"controller"`
	Plugin     plugin.Kind `json:"plugin"`
	Param      string      `json:"param"`
	Min        float64     `json:"min"`
	Max        float64     `json:"max"`
}

// Scale converts a raw 0–127 controller value into the mapping's range.
func (m Mapping) Scale(raw uint8) float64 {
	return m.Min + float64(raw)/float64(ControllerMax)*(m.Max-m.Min)
}

// LearnTarget names the parameter awaiting the next controller movement.
type LearnTarget struct {
	Plugin plugin.Kind
	Param  string
	Min    float64
	Max    float64
}

type mappingKey struct {
	device     DeviceID
	controller uint8
}

// Router routes control-change messages into the parameter store.
//
// The learn slot is a two-state toggle: arming the same (plugin, param)
// twice cancels, arming a different target replaces the slot. Only one
// target can be armed at a time.
type Router struct {
	mu       sync.RWMutex
	store    *param.Store
	mappings map[mappingKey]Mapping
	learn    *LearnTarget

	mappingCallback func(Mapping)
	learnCallback   func(*LearnTarget)
}

// NewRouter creates a router writing into the given parameter store.
func NewRouter(store *param.Store) *Router {
	return &Router{
		store:    store,
		mappings: make(map[mappingKey]Mapping),
	}
}

// StartLearn arms the learn slot for the given target. Arming the currently
// armed (plugin, param) pair again cancels learn mode without creating a
// mapping; arming a different target replaces the slot.
func (r *Router) StartLearn(kind plugin.Kind, name string, min, max float64) {
	r.mu.Lock()
	if r.learn != nil && r.learn.Plugin == kind && r.learn.Param == name {
		r.learn = nil
		callback := r.learnCallback
		r.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "StartLearn",
			"plugin":   kind.String(),
			"param":    name,
		}).Info("MIDI learn cancelled by toggle")

		if callback != nil {
			callback(nil)
		}
		return
	}

	target := &LearnTarget{Plugin: kind, Param: name, Min: min, Max: max}
	r.learn = target
	callback := r.learnCallback
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "StartLearn",
		"plugin":   kind.String(),
		"param":    name,
		"min":      min,
		"max":      max,
	}).Info("MIDI learn armed")

	if callback != nil {
		armed := *target
		callback(&armed)
	}
}

// CancelLearn disarms the learn slot regardless of its target.
func (r *Router) CancelLearn() {
	r.mu.Lock()
	armed := r.learn != nil
	r.learn = nil
	callback := r.learnCallback
	r.mu.Unlock()

	if armed && callback != nil {
		callback(nil)
	}
}

// LearnTarget returns the armed target, if any.
func (r *Router) LearnTarget() (LearnTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.learn == nil {
		return LearnTarget{}, false
	}
	return *r.learn, true
}

// HandleRaw parses raw MIDI bytes and routes them like HandleMessage.
func (r *Router) HandleRaw(device DeviceID, raw []byte) {
	if len(raw) == 0 {
		return
	}
	r.HandleMessage(device, gomidi.Message(raw))
}

// HandleMessage routes one incoming MIDI message from the given device.
//
// Non-control-change messages are ignored entirely regardless of state.
// While the learn slot is armed, the message is consumed as a capture: the
// new mapping is recorded and the message does NOT also reach the parameter
// store. While idle, a mapped message scales its value into the binding's
// range and updates the parameter store; unmapped messages are dropped.
func (r *Router) HandleMessage(device DeviceID, msg gomidi.Message) {
	var channel, controller, value uint8
	if !msg.GetControlChange(&channel, &controller, &value) {
		return
	}

	r.mu.Lock()
	if r.learn != nil {
		target := *r.learn
		r.learn = nil
		mapping := Mapping{
			Device:     device,
			Controller: controller,
			Plugin:     target.Plugin,
			Param:      target.Param,
			Min:        target.Min,
			Max:        target.Max,
		}
		r.mappings[mappingKey{device, controller}] = mapping
		mappingCallback := r.mappingCallback
		learnCallback := r.learnCallback
		r.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function":   "HandleMessage",
			"device":     string(device),
			"controller": controller,
			"plugin":     mapping.Plugin.String(),
			"param":      mapping.Param,
		}).Info("MIDI mapping captured")

		if learnCallback != nil {
			learnCallback(nil)
		}
		if mappingCallback != nil {
			mappingCallback(mapping)
		}
		return
	}

	mapping, ok := r.mappings[mappingKey{device, controller}]
	r.mu.Unlock()
	if !ok {
		return
	}

	scaled := mapping.Scale(value)
	logrus.WithFields(logrus.Fields{
		"function":   "HandleMessage",
		"device":     string(device),
		"controller": controller,
		"raw":        value,
		"scaled":     scaled,
		"plugin":     mapping.Plugin.String(),
		"param":      mapping.Param,
	}).Debug("Applying mapped controller value")

	r.store.Update(mapping.Plugin, param.Settings{mapping.Param: param.Number(scaled)})
}

// Mappings returns all bindings sorted by device then controller.
func (r *Router) Mappings() []Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Mapping, 0, len(r.mappings))
	for _, mapping := range r.mappings {
		list = append(list, mapping)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Device != list[j].Device {
			return list[i].Device < list[j].Device
		}
		return list[i].Controller < list[j].Controller
	})
	return list
}

// LoadMappings replaces all bindings wholesale (session restore).
func (r *Router) LoadMappings(list []Mapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = make(map[mappingKey]Mapping, len(list))
	for _, mapping := range list {
		r.mappings[mappingKey{mapping.Device, mapping.Controller}] = mapping
	}
}

// Reset clears every binding and disarms the learn slot (session reset).
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = make(map[mappingKey]Mapping)
	r.learn = nil
}

// OnMappingCreated registers a callback invoked after each learn capture.
func (r *Router) OnMappingCreated(callback func(Mapping)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappingCallback = callback
}

// OnLearnChanged registers a callback invoked when the learn slot changes;
// the argument is nil when the slot was disarmed.
func (r *Router) OnLearnChanged(callback func(*LearnTarget)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.learnCallback = callback
}
