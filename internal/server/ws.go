package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/kinetic/internal/engine"
	"github.com/ayusman/kinetic/internal/ingest"
	"github.com/ayusman/kinetic/internal/intent"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// EventStreamHandler broadcasts lifecycle events to WebSocket clients.
// It registers a single wildcard subscription on the engine's bus; each
// delivered event is fanned out as its wire-form JSON.
type EventStreamHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewEventStreamHandler creates an EventStreamHandler subscribed to every
// event the engine emits.
func NewEventStreamHandler(eng *engine.Engine) *EventStreamHandler {
	h := &EventStreamHandler{
		clients: make(map[*websocket.Conn]bool),
	}
	eng.Subscribe("", "", h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends one event to all connected clients. It runs on the
// engine's dispatch path; a slow or broken client write fails that client
// only.
func (h *EventStreamHandler) broadcast(ev intent.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return nil
	}

	msg, err := json.Marshal(ev.Wire())
	if err != nil {
		return err
	}

	for conn := range h.clients {
		conn.WriteMessage(websocket.TextMessage, msg)
	}
	return nil
}

// FrameIngestHandler accepts serialized frames from the vision front-end
// over a WebSocket connection and feeds them to the engine.
type FrameIngestHandler struct {
	engine *engine.Engine
}

// NewFrameIngestHandler creates a FrameIngestHandler over the engine.
func NewFrameIngestHandler(eng *engine.Engine) *FrameIngestHandler {
	return &FrameIngestHandler{engine: eng}
}

// ServeHTTP handles WebSocket upgrade requests. Each text message is one
// serialized frame; malformed frames are logged and skipped, matching the
// engine's drop-don't-abort frame policy.
func (h *FrameIngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		f, err := ingest.DecodeFrame(data)
		if err != nil {
			log.Printf("frame ingest: %v", err)
			continue
		}
		h.engine.OnFrame(f)
	}
}
