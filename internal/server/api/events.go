package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/kinetic/internal/store"
)

// defaultEventLimit bounds how many log rows one query returns unless the
// caller asks for more.
const defaultEventLimit = 100

// EventsHandler serves the per-intent diagnostic event log.
type EventsHandler struct {
	store *store.Store
}

// NewEventsHandler creates a new EventsHandler with the given store.
func NewEventsHandler(s *store.Store) *EventsHandler {
	return &EventsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/intents/{id}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Parse intent ID from path: /api/intents/{id}/events
	path := strings.TrimPrefix(r.URL.Path, "/api/intents/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[1] != "events" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	intentID := parts[0]

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.list(w, r, intentID)
}

// Response types

type eventResponse struct {
	ID          int64           `json:"id"`
	IntentID    string          `json:"intent_id"`
	InstanceID  string          `json:"instance_id"`
	Phase       string          `json:"phase"`
	TimestampMs int64           `json:"timestamp_ms"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   string          `json:"created_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

// list handles GET /api/intents/{id}/events. The optional limit query
// parameter bounds the row count; the log returns newest first.
func (h *EventsHandler) list(w http.ResponseWriter, r *http.Request, intentID string) {
	// Verify intent exists
	if _, err := h.store.Intents().GetByID(intentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify intent")
		return
	}

	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	events, err := h.store.Events().GetByIntentID(intentID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
	}

	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			ID:          e.ID,
			IntentID:    e.IntentID,
			InstanceID:  e.InstanceID,
			Phase:       e.Phase,
			TimestampMs: e.TimestampMs,
			Payload:     e.Payload,
			CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
