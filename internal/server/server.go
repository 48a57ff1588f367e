// Package server provides the status and control HTTP API.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/wave/internal/app"
	"github.com/ayusman/wave/internal/gesture"
	"github.com/ayusman/wave/internal/log"
	"github.com/ayusman/wave/internal/plugin"
	"github.com/ayusman/wave/internal/server/api"
	"github.com/ayusman/wave/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Controller is the part of the pipeline the API reads and toggles.
type Controller interface {
	Status() app.Status
	SetEnabled(enabled bool)
	// Toggle flips the enabled flag atomically and returns the new state.
	Toggle() bool
}

// Config holds the server configuration. Endpoints whose dependency is nil
// are not registered.
type Config struct {
	Store    *store.Store
	Pipeline Controller
	Labels   gesture.LabelMap
	Plugins  *plugin.Manager
	Events   *EventHub
}

// Server represents the HTTP API.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Labels != nil {
		s.mux.HandleFunc("/api/labels", s.handleLabels)
	}

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/toggle", s.handleToggle)
	}

	if s.config.Store != nil {
		var resolver api.PluginResolver
		if s.config.Plugins != nil {
			resolver = s.config.Plugins
		}
		bindings := api.NewBindingHandler(s.config.Store, s.config.Labels, resolver)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
		s.mux.Handle("/api/history", api.NewHistoryHandler(s.config.Store))
	}

	if s.config.Plugins != nil {
		s.mux.HandleFunc("/api/plugins", s.handlePlugins)
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn(log.Fields{"error": err}, "failed to encode response")
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Pipeline.Status())
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleToggle handles POST /api/toggle. A body of {"enabled": bool} sets the
// state; an empty body flips it.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	var enabled bool
	if req.Enabled != nil {
		enabled = *req.Enabled
		s.config.Pipeline.SetEnabled(enabled)
	} else {
		enabled = s.config.Pipeline.Toggle()
	}
	log.Info(log.Fields{"enabled": enabled}, "detection toggled")

	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

type labelResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// handleLabels handles GET /api/labels.
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	labels := make([]labelResponse, 0, len(s.config.Labels))
	for _, id := range s.config.Labels.IDs() {
		labels = append(labels, labelResponse{ID: id, Name: string(s.config.Labels[id])})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"labels": labels})
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// handlePlugins handles GET /api/plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := make([]pluginResponse, 0)
	for _, p := range s.config.Plugins.List() {
		actions := append([]string(nil), p.Manifest.Actions...)
		sort.Strings(actions)
		plugins = append(plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"plugins": plugins,
		"count":   len(plugins),
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.Fields{"addr": addr}, "http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s.config.Events != nil {
			s.config.Events.Close()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
