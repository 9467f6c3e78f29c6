// Package web exposes a Studio over HTTP for browser shells.
//
// The server offers a small REST surface for everything a rack frontend
// needs: reading and editing parameters, injecting MIDI, driving the learn
// flow, preset and sidechain operations, transport control, and session
// export. A Server-Sent Events endpoint streams each completed frame to
// subscribed clients, so panels render without polling.
//
// The server observes the studio; it never drives it. The embedder keeps
// running the Iterate loop, and the server registers the studio's frame
// callback to feed its event stream.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/rackcore"
)

const (
	readTimeout = 30 * time.Second
	// writeTimeout stays long because the events endpoint holds its
	// connection open.
	writeTimeout    = 10 * time.Minute
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server serves the studio's HTTP control surface and frame stream.
type Server struct {
	studio *rackcore.Studio
	router *chi.Mux
	hub    *frameHub
}

// NewServer creates a server around the given studio and takes over the
// studio's frame callback to feed the event stream.
func NewServer(studio *rackcore.Studio) *Server {
	s := &Server{
		studio: studio,
		router: chi.NewRouter(),
		hub:    newFrameHub(),
	}
	s.setupRoutes()
	studio.OnFrame(s.hub.publish)
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.handleEvents)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)

		r.Route("/panels", func(r chi.Router) {
			r.Get("/", s.handlePanels)
			r.Post("/{kind}/mount", s.handleMount)
			r.Post("/{kind}/unmount", s.handleUnmount)
			r.Post("/{kind}/activate", s.handleActivate)
			r.Put("/{kind}/geometry", s.handleGeometry)
		})

		r.Route("/params", func(r chi.Router) {
			r.Get("/{kind}", s.handleGetParams)
			r.Patch("/{kind}", s.handlePatchParams)
		})

		r.Route("/midi", func(r chi.Router) {
			r.Post("/", s.handleMIDI)
			r.Post("/learn", s.handleStartLearn)
			r.Delete("/learn", s.handleCancelLearn)
			r.Get("/mappings", s.handleMappings)
		})

		r.Route("/links", func(r chi.Router) {
			r.Get("/", s.handleLinks)
			r.Post("/", s.handleAddLink)
			r.Delete("/", s.handleRemoveLink)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handlePresets)
			r.Put("/{name}", s.handleSavePreset)
			r.Post("/{name}/load", s.handleLoadPreset)
			r.Delete("/{name}", s.handleDeletePreset)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Patch("/", s.handlePatchSettings)
		})

		r.Route("/transport", func(r chi.Router) {
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/stop", s.handleStop)
		})

		r.Route("/clip", func(r chi.Router) {
			r.Post("/", s.handleLoadClip)
			r.Delete("/", s.handleUnloadClip)
		})

		r.Post("/generate", s.handleGenerate)
		r.Get("/savedata", s.handleSavedata)
		r.Post("/reset", s.handleReset)
	})
}

// Handler returns the server's routes for embedding in another mux or for
// httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until the context is cancelled, then drains the event
// stream and shuts the listener down.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.hub.closeAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	logrus.WithFields(logrus.Fields{
		"function": "Run",
		"addr":     addr,
	}).Info("Web shell listening")

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("serving web shell: %w", err)
	}
	return <-done
}
