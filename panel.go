package rackcore

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/plugin"
	"github.com/opd-ai/rackcore/telemetry"
	"github.com/opd-ai/rackcore/visual"
)

const (
	defaultPanelWidth  = 420.0
	defaultPanelHeight = 260.0
	minPanelWidth      = 160.0
	minPanelHeight     = 120.0

	// focusTransitionBase is the unscaled duration of the active-panel
	// focus transition.
	focusTransitionBase = 220 * time.Millisecond
)

// Panel is one rack unit's placement state. Panels exist for every plugin
// kind for the whole session; mounting controls whether the panel runs a
// visualizer bridge, not whether it exists.
type Panel struct {
	Kind    plugin.Kind `json:"kind"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	Z       int         `json:"z"`
	Mounted bool        `json:"mounted"`
}

// defaultPanels lays the rack out as a cascade in rack order.
func defaultPanels() map[plugin.Kind]*Panel {
	panels := make(map[plugin.Kind]*Panel)
	for i, kind := range plugin.Kinds() {
		panels[kind] = &Panel{
			Kind:   kind,
			X:      40 + float64(i)*48,
			Y:      40 + float64(i)*36,
			Width:  defaultPanelWidth,
			Height: defaultPanelHeight,
			Z:      i + 1,
		}
	}
	return panels
}

// MountPanel creates the panel's visualizer bridge from its current
// settings, brings it to the front, and makes it the active panel. A
// second mount of an already-mounted panel is a silent no-op.
func (s *Studio) MountPanel(kind plugin.Kind) bool {
	s.mu.Lock()
	mounted := s.mountLocked(kind)
	s.mu.Unlock()
	if !mounted {
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function": "MountPanel",
		"plugin":   kind.String(),
	}).Info("Panel mounted")
	s.emit(telemetry.New(telemetry.EventPanelMounted, kind, ""))
	return true
}

// mountLocked performs the mount without logging or events; callers hold
// s.mu. Savedata restore uses it directly to keep restores quiet.
func (s *Studio) mountLocked(kind plugin.Kind) bool {
	panel, known := s.panels[kind]
	if !known || panel.Mounted || !s.running {
		return false
	}
	bridge, err := visual.New(kind, s.store.Get(kind))
	if err != nil {
		return false
	}
	s.bridges[kind] = bridge
	panel.Mounted = true
	s.zCounter++
	panel.Z = s.zCounter
	s.active = kind
	return true
}

// UnmountPanel tears the panel's bridge down, discarding its simulation
// state and anything it had scheduled. The panel keeps its geometry and can
// be remounted later, starting a fresh simulation. Unmounting a panel that
// is not mounted is a silent no-op.
func (s *Studio) UnmountPanel(kind plugin.Kind) bool {
	s.mu.Lock()
	panel, known := s.panels[kind]
	if !known || !panel.Mounted {
		s.mu.Unlock()
		return false
	}
	bridge := s.bridges[kind]
	delete(s.bridges, kind)
	delete(s.snapshots, kind)
	panel.Mounted = false
	if s.active == kind {
		s.active = s.topmostMountedLocked()
	}
	s.mu.Unlock()

	if bridge != nil {
		bridge.Close()
	}

	logrus.WithFields(logrus.Fields{
		"function": "UnmountPanel",
		"plugin":   kind.String(),
	}).Info("Panel unmounted")
	s.emit(telemetry.New(telemetry.EventPanelUnmounted, kind, ""))
	return true
}

// topmostMountedLocked returns the mounted panel with the highest z-order,
// or KindUnknown when nothing is mounted. Callers hold s.mu.
func (s *Studio) topmostMountedLocked() plugin.Kind {
	top := plugin.KindUnknown
	best := 0
	for kind, panel := range s.panels {
		if panel.Mounted && panel.Z > best {
			best = panel.Z
			top = kind
		}
	}
	return top
}

// Panels returns a copy of every panel sorted by z-order, lowest first.
func (s *Studio) Panels() []Panel {
	s.mu.RLock()
	panels := make([]Panel, 0, len(s.panels))
	for _, panel := range s.panels {
		panels = append(panels, *panel)
	}
	s.mu.RUnlock()

	sort.Slice(panels, func(i, j int) bool { return panels[i].Z < panels[j].Z })
	return panels
}

// Panel returns a copy of one panel's placement state.
func (s *Studio) Panel(kind plugin.Kind) (Panel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	panel, ok := s.panels[kind]
	if !ok {
		return Panel{}, false
	}
	return *panel, true
}

// MountedPanels returns the mounted kinds in rack order.
func (s *Studio) MountedPanels() []plugin.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mounted := make([]plugin.Kind, 0, len(s.bridges))
	for _, kind := range plugin.Kinds() {
		if panel, ok := s.panels[kind]; ok && panel.Mounted {
			mounted = append(mounted, kind)
		}
	}
	return mounted
}

// MovePanel places the panel at a new position.
func (s *Studio) MovePanel(kind plugin.Kind, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	panel, ok := s.panels[kind]
	if !ok {
		return false
	}
	panel.X = x
	panel.Y = y
	return true
}

// ResizePanel changes the panel's viewport, clamped to the minimum size.
func (s *Studio) ResizePanel(kind plugin.Kind, width, height float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	panel, ok := s.panels[kind]
	if !ok {
		return false
	}
	if width < minPanelWidth {
		width = minPanelWidth
	}
	if height < minPanelHeight {
		height = minPanelHeight
	}
	panel.Width = width
	panel.Height = height
	return true
}

// BringToFront raises the panel above every other panel.
func (s *Studio) BringToFront(kind plugin.Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	panel, ok := s.panels[kind]
	if !ok {
		return false
	}
	s.zCounter++
	panel.Z = s.zCounter
	return true
}

// ActivatePanel focuses a mounted panel, raising it to the front, and
// returns the focus transition duration scaled by the animation intensity.
// Activating an unmounted or unknown panel changes nothing.
func (s *Studio) ActivatePanel(kind plugin.Kind) (time.Duration, bool) {
	s.mu.Lock()
	panel, ok := s.panels[kind]
	if !ok || !panel.Mounted {
		s.mu.Unlock()
		return 0, false
	}
	s.zCounter++
	panel.Z = s.zCounter
	s.active = kind
	s.mu.Unlock()

	return s.globals.Current().TransitionDuration(focusTransitionBase), true
}

// ActivePanel returns the focused panel kind, or KindUnknown when nothing
// is mounted.
func (s *Studio) ActivePanel() plugin.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}
