// Package plugin provides plugin management and execution for the Kinetic
// intent engine: discovery of out-of-process action plugins, subprocess
// execution, and a dispatcher bridging lifecycle events to bound actions.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Position is a normalized 3D position carried in a plugin request.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Request represents a request sent to a plugin for execution. It carries
// the lifecycle event that triggered the bound action, so a plugin can
// react differently to start/update/end and to where the hand is.
type Request struct {
	Action     string          `json:"action"`
	IntentID   string          `json:"intent_id"`
	Phase      string          `json:"phase"`
	InstanceID string          `json:"instance_id"`
	Hand       string          `json:"hand,omitempty"`
	Position   Position        `json:"position"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
