// Package api provides HTTP API handlers for the Kinetic intent engine's
// control surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/pattern"
	"github.com/ayusman/kinetic/internal/store"
)

// IntentHandler handles HTTP requests for intent resources. After every
// successful mutation it invokes onChange, which the server wires to an
// engine reconfiguration.
type IntentHandler struct {
	store    *store.Store
	onChange func() error
}

// NewIntentHandler creates a new IntentHandler with the given store.
// onChange may be nil.
func NewIntentHandler(s *store.Store, onChange func() error) *IntentHandler {
	return &IntentHandler{store: s, onChange: onChange}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *IntentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/intents or /api/intents/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/intents")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		// Collection endpoint: /api/intents
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	// Item endpoint: /api/intents/{id}
	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createIntentRequest struct {
	ID               string          `json:"id"`
	Pattern          json.RawMessage `json:"pattern"`
	MinDurationMs    *int64          `json:"min_duration_ms"`
	MaxGapMs         *int64          `json:"max_gap_ms"`
	Group            string          `json:"group"`
	Priority         int             `json:"priority"`
	ConcurrencyScope string          `json:"concurrency_scope"`
}

type updateIntentRequest struct {
	Pattern          json.RawMessage `json:"pattern"`
	MinDurationMs    *int64          `json:"min_duration_ms"`
	MaxGapMs         *int64          `json:"max_gap_ms"`
	Group            string          `json:"group"`
	Priority         *int            `json:"priority"`
	ConcurrencyScope string          `json:"concurrency_scope"`
	Enabled          *bool           `json:"enabled"`
}

type intentResponse struct {
	ID               string          `json:"id"`
	Pattern          json.RawMessage `json:"pattern"`
	MinDurationMs    int64           `json:"min_duration_ms"`
	MaxGapMs         int64           `json:"max_gap_ms"`
	Group            string          `json:"group"`
	Priority         int             `json:"priority"`
	ConcurrencyScope string          `json:"concurrency_scope"`
	Enabled          bool            `json:"enabled"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

type listIntentsResponse struct {
	Intents []intentResponse `json:"intents"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Intent to an intentResponse.
func toResponse(in *store.Intent) intentResponse {
	return intentResponse{
		ID:               in.ID,
		Pattern:          in.Pattern,
		MinDurationMs:    in.MinDurationMs,
		MaxGapMs:         in.MaxGapMs,
		Group:            in.Group,
		Priority:         in.Priority,
		ConcurrencyScope: string(in.ConcurrencyScope),
		Enabled:          in.Enabled,
		CreatedAt:        in.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        in.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// validatePattern decodes and validates a serialized pattern expression.
func validatePattern(data json.RawMessage) error {
	var expr pattern.Expression
	if err := json.Unmarshal(data, &expr); err != nil {
		return err
	}
	return expr.Validate()
}

// notifyChange invokes the handler's onChange hook.
func (h *IntentHandler) notifyChange(w http.ResponseWriter) bool {
	if h.onChange == nil {
		return true
	}
	if err := h.onChange(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to apply configuration")
		return false
	}
	return true
}

// list handles GET /api/intents and returns all intents.
func (h *IntentHandler) list(w http.ResponseWriter, r *http.Request) {
	intents, err := h.store.Intents().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list intents")
		return
	}

	response := listIntentsResponse{
		Intents: make([]intentResponse, 0, len(intents)),
	}

	for _, in := range intents {
		response.Intents = append(response.Intents, toResponse(in))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/intents/{id} and returns a single intent.
func (h *IntentHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	in, err := h.store.Intents().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get intent")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(in))
}

// create handles POST /api/intents and creates a new intent.
func (h *IntentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if len(req.Pattern) == 0 {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	if err := validatePattern(req.Pattern); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid pattern: "+err.Error())
		return
	}

	minDuration := int64(intent.DefaultMinDurationMs)
	if req.MinDurationMs != nil {
		minDuration = *req.MinDurationMs
	}
	maxGap := int64(intent.DefaultMaxGapMs)
	if req.MaxGapMs != nil {
		maxGap = *req.MaxGapMs
	}
	group := req.Group
	if group == "" {
		group = intent.DefaultGroup
	}
	scope := store.ConcurrencyScope(req.ConcurrencyScope)
	if scope == "" {
		scope = store.ScopeGlobal
	}
	if scope != store.ScopeGlobal && scope != store.ScopePerHand {
		writeError(w, http.StatusBadRequest, "Invalid concurrency scope")
		return
	}

	in := &store.Intent{
		ID:               req.ID,
		Pattern:          req.Pattern,
		MinDurationMs:    minDuration,
		MaxGapMs:         maxGap,
		Group:            group,
		Priority:         req.Priority,
		ConcurrencyScope: scope,
		Enabled:          true,
	}

	if err := h.store.Intents().Create(in); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create intent")
		return
	}

	if !h.notifyChange(w) {
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(in))
}

// update handles PUT /api/intents/{id} and updates an existing intent.
func (h *IntentHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	in, err := h.store.Intents().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get intent")
		return
	}

	var req updateIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Pattern != nil {
		if err := validatePattern(req.Pattern); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid pattern: "+err.Error())
			return
		}
		in.Pattern = req.Pattern
	}
	if req.MinDurationMs != nil {
		in.MinDurationMs = *req.MinDurationMs
	}
	if req.MaxGapMs != nil {
		in.MaxGapMs = *req.MaxGapMs
	}
	if req.Group != "" {
		in.Group = req.Group
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}
	if req.ConcurrencyScope != "" {
		scope := store.ConcurrencyScope(req.ConcurrencyScope)
		if scope != store.ScopeGlobal && scope != store.ScopePerHand {
			writeError(w, http.StatusBadRequest, "Invalid concurrency scope")
			return
		}
		in.ConcurrencyScope = scope
	}
	if req.Enabled != nil {
		in.Enabled = *req.Enabled
	}

	if err := h.store.Intents().Update(in); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update intent")
		return
	}

	if !h.notifyChange(w) {
		return
	}

	writeJSON(w, http.StatusOK, toResponse(in))
}

// delete handles DELETE /api/intents/{id} and removes an intent.
func (h *IntentHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Intents().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete intent")
		return
	}

	if !h.notifyChange(w) {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
