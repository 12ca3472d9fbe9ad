// Package server provides the HTTP control surface for the Kinetic intent
// engine: REST CRUD for intents and plugin bindings, engine snapshots, and
// WebSocket endpoints for frame ingestion and lifecycle-event egress.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/kinetic/internal/engine"
	"github.com/ayusman/kinetic/internal/ingest"
	"github.com/ayusman/kinetic/internal/resolver"
	"github.com/ayusman/kinetic/internal/server/api"
	"github.com/ayusman/kinetic/internal/store"
)

// ResolutionKey is the settings-table key the resolution config lives
// under.
const ResolutionKey = "resolution"

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    *engine.Engine
}

// Server represents the HTTP control surface for the Kinetic daemon.
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

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register intent/binding API handlers if Store is configured
	if s.config.Store != nil {
		intentHandler := api.NewIntentHandler(s.config.Store, s.reconfigureEngine)
		eventsHandler := api.NewEventsHandler(s.config.Store)

		// Route between the intent CRUD and per-intent event log handlers
		intentRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if this is an event-log request: /api/intents/{id}/events
			if strings.HasSuffix(r.URL.Path, "/events") {
				eventsHandler.ServeHTTP(w, r)
				return
			}
			intentHandler.ServeHTTP(w, r)
		})

		s.mux.Handle("/api/intents", intentRouter)
		s.mux.Handle("/api/intents/", intentRouter)

		bindingHandler := api.NewBindingHandler(s.config.Store)
		s.mux.Handle("/api/bindings", bindingHandler)
		s.mux.Handle("/api/bindings/", bindingHandler)
	}

	// Register engine snapshot and streaming endpoints if Engine is configured
	if s.config.Engine != nil {
		s.mux.HandleFunc("/api/active", s.handleActive)
		s.mux.HandleFunc("/api/config", s.handleConfig)

		eventsWS := NewEventStreamHandler(s.config.Engine)
		s.mux.Handle("/api/events", eventsWS)

		framesWS := NewFrameIngestHandler(s.config.Engine)
		s.mux.Handle("/api/frames", framesWS)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// reconfigureEngine reloads the enabled intent set and resolution config
// from the store into the engine. Called by the API handlers after every
// successful intent mutation; a no-op when no engine is wired.
func (s *Server) reconfigureEngine() error {
	if s.config.Engine == nil {
		return nil
	}

	records, err := s.config.Store.Intents().ListEnabled()
	if err != nil {
		return err
	}
	defs, err := ingest.FromRecords(records)
	if err != nil {
		return err
	}

	var resolveCfg *resolver.Config
	if value, err := s.config.Store.Settings().Get(ResolutionKey); err == nil {
		cfg, err := ingest.DecodeResolution([]byte(value))
		if err != nil {
			return err
		}
		resolveCfg = &cfg
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return s.config.Engine.Configure(defs, resolveCfg)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// activeInstanceResponse is one active instance in the /api/active
// snapshot.
type activeInstanceResponse struct {
	InstanceID string  `json:"instance_id"`
	IntentID   string  `json:"intent_id"`
	Hand       string  `json:"hand"`
	HandIndex  int     `json:"hand_index"`
	StartedAt  int64   `json:"started_at"`
	LastMatch  int64   `json:"last_match_at"`
	Group      string  `json:"group"`
	Priority   int     `json:"priority"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
}

// handleActive handles GET requests to /api/active.
func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	instances := s.config.Engine.ActiveActions()
	response := struct {
		Active []activeInstanceResponse `json:"active"`
	}{Active: make([]activeInstanceResponse, 0, len(instances))}

	for _, inst := range instances {
		response.Active = append(response.Active, activeInstanceResponse{
			InstanceID: inst.InstanceID,
			IntentID:   inst.IntentID,
			Hand:       string(inst.Hand),
			HandIndex:  inst.HandIndex,
			StartedAt:  inst.StartedAt,
			LastMatch:  inst.LastMatchAt,
			Group:      inst.Group,
			Priority:   inst.Priority,
			X:          inst.LastPosition.X,
			Y:          inst.LastPosition.Y,
			Z:          inst.LastPosition.Z,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig handles GET and PUT requests to /api/config: the engine's
// conflict-resolution configuration.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := ingest.EncodeResolution(s.config.Engine.CurrentConfig())
		if err != nil {
			http.Error(w, "Failed to encode config", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPut:
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if _, err := ingest.DecodeResolution(body); err != nil {
			http.Error(w, "Invalid resolution config", http.StatusBadRequest)
			return
		}
		if s.config.Store == nil {
			http.Error(w, "No store configured", http.StatusServiceUnavailable)
			return
		}
		if s.config.Store != nil {
			if err := s.config.Store.Settings().Set(ResolutionKey, string(body)); err != nil {
				http.Error(w, "Failed to persist config", http.StatusInternalServerError)
				return
			}
		}
		if err := s.reconfigureEngine(); err != nil {
			http.Error(w, "Failed to apply config", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
