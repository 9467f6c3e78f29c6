// Package sidechain maintains the directed trigger links between plugin
// panels.
//
// A link from→to means the source panel's signal activity drives the
// target's "sidechain" settings flag. Fan-in is capped at one: a panel can
// only be triggered by a single source, and a second link aimed at an
// already-linked target is silently rejected. The graph never propagates
// beyond one hop; each target reacts to its direct source only.
package sidechain

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore/param"
	"github.com/opd-ai/rackcore/plugin"
)

// Link is one directed trigger edge.
type Link struct {
	From plugin.Kind `json:"from"`
	To   plugin.Kind `json:"to"`
}

// FlagName is the settings parameter the graph writes on link targets.
const FlagName = "sidechain"

// Graph tracks sidechain links and mirrors source activity into target
// settings flags.
type Graph struct {
	mu       sync.RWMutex
	byTarget map[plugin.Kind]plugin.Kind
	store    *param.Store

	addedCallback   func(Link)
	removedCallback func(Link)
}

// NewGraph creates an empty graph writing flags into the given store.
func NewGraph(store *param.Store) *Graph {
	return &Graph{
		byTarget: make(map[plugin.Kind]plugin.Kind),
		store:    store,
	}
}

// AddLink inserts from→to and reports whether the link was created. The
// insert is rejected when the target already has an incoming link, and for
// self-links, both silently.
func (g *Graph) AddLink(from, to plugin.Kind) bool {
	if from == to {
		return false
	}

	g.mu.Lock()
	if existing, linked := g.byTarget[to]; linked {
		g.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "AddLink",
			"from":     from.String(),
			"to":       to.String(),
			"existing": existing.String(),
		}).Debug("Target already linked, keeping first writer")
		return false
	}
	g.byTarget[to] = from
	callback := g.addedCallback
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "AddLink",
		"from":     from.String(),
		"to":       to.String(),
	}).Info("Sidechain link added")

	if callback != nil {
		callback(Link{From: from, To: to})
	}
	return true
}

// RemoveLink deletes the exact from→to edge and reports whether it existed.
// When the target kind supports being a sidechain target, its settings flag
// is cleared back to the un-triggered state.
func (g *Graph) RemoveLink(from, to plugin.Kind) bool {
	g.mu.Lock()
	existing, linked := g.byTarget[to]
	if !linked || existing != from {
		g.mu.Unlock()
		return false
	}
	delete(g.byTarget, to)
	callback := g.removedCallback
	g.mu.Unlock()

	if to.SupportsSidechainTarget() {
		g.store.Update(to, param.Settings{FlagName: param.Flag(false)})
	}

	logrus.WithFields(logrus.Fields{
		"function": "RemoveLink",
		"from":     from.String(),
		"to":       to.String(),
	}).Info("Sidechain link removed")

	if callback != nil {
		callback(Link{From: from, To: to})
	}
	return true
}

// SourceFor returns the source linked to the given target, if any.
func (g *Graph) SourceFor(to plugin.Kind) (plugin.Kind, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	from, ok := g.byTarget[to]
	return from, ok
}

// Links returns every edge sorted by target then source.
func (g *Graph) Links() []Link {
	g.mu.RLock()
	defer g.mu.RUnlock()
	links := make([]Link, 0, len(g.byTarget))
	for to, from := range g.byTarget {
		links = append(links, Link{From: from, To: to})
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].To != links[j].To {
			return links[i].To < links[j].To
		}
		return links[i].From < links[j].From
	})
	return links
}

// LoadLinks replaces all edges wholesale (session restore). Fan-in stays
// capped: for duplicate targets the first entry wins.
func (g *Graph) LoadLinks(links []Link) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byTarget = make(map[plugin.Kind]plugin.Kind, len(links))
	for _, link := range links {
		if link.From == link.To {
			continue
		}
		if _, linked := g.byTarget[link.To]; linked {
			continue
		}
		g.byTarget[link.To] = link.From
	}
}

// Reset drops every edge without touching settings flags; the caller is
// expected to reseed the store alongside.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byTarget = make(map[plugin.Kind]plugin.Kind)
}

// Propagate mirrors each source's activity into its target's settings
// flag. Writes that leave the flag unchanged are absorbed by the store, so
// calling this every frame is cheap.
func (g *Graph) Propagate(activity map[plugin.Kind]bool) {
	g.mu.RLock()
	pairs := make([]Link, 0, len(g.byTarget))
	for to, from := range g.byTarget {
		pairs = append(pairs, Link{From: from, To: to})
	}
	g.mu.RUnlock()

	for _, pair := range pairs {
		if !pair.To.SupportsSidechainTarget() {
			continue
		}
		g.store.Update(pair.To, param.Settings{FlagName: param.Flag(activity[pair.From])})
	}
}

// OnLinkAdded registers a callback invoked after each successful insert.
func (g *Graph) OnLinkAdded(callback func(Link)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addedCallback = callback
}

// OnLinkRemoved registers a callback invoked after each successful removal.
func (g *Graph) OnLinkRemoved(callback func(Link)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removedCallback = callback
}
