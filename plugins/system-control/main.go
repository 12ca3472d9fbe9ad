// Package main provides a system control plugin for macOS.
// It handles volume, brightness, and media playback controls via
// AppleScript. The volume-set action maps the hand's height to a volume
// level, so binding it to an intent's update phase gives continuous
// control.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
)

// Position is the hand position carried in the request.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	IntentID   string          `json:"intent_id"`
	Phase      string          `json:"phase"`
	InstanceID string          `json:"instance_id"`
	Hand       string          `json:"hand"`
	Position   Position        `json:"position"`
	DurationMs int64           `json:"duration_ms"`
	Reason     string          `json:"reason"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(req *Request) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"volume-up":        fixed(volumeUp),
	"volume-down":      fixed(volumeDown),
	"volume-mute":      fixed(volumeMute),
	"volume-set":       volumeSet,
	"brightness-up":    fixed(brightnessUp),
	"brightness-down":  fixed(brightnessDown),
	"media-play-pause": fixed(mediaPlayPause),
	"media-next":       fixed(mediaNext),
	"media-prev":       fixed(mediaPrev),
}

// fixed adapts a handler that ignores the request payload.
func fixed(f func() error) actionHandler {
	return func(*Request) error { return f() }
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	// Look up the handler for the action
	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	// Execute the handler
	if err := handler(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	// Write success response
	writeSuccessResponse()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// volumeSet maps the hand's normalized height to a volume level: the top
// of the frame is full volume, the bottom is silent.
func volumeSet(req *Request) error {
	level := int(math.Round((1 - req.Position.Y) * 100))
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	script := fmt.Sprintf(`set volume output volume %d`, level)
	return runAppleScript(script)
}

// volumeUp increases the system volume by 10%.
func volumeUp() error {
	script := `set volume output volume ((output volume of (get volume settings)) + 10)`
	return runAppleScript(script)
}

// volumeDown decreases the system volume by 10%.
func volumeDown() error {
	script := `set volume output volume ((output volume of (get volume settings)) - 10)`
	return runAppleScript(script)
}

// volumeMute toggles the system mute state.
func volumeMute() error {
	script := `set volume output muted (not (output muted of (get volume settings)))`
	return runAppleScript(script)
}

// brightnessUp increases the screen brightness.
func brightnessUp() error {
	script := `tell application "System Events"
	key code 144
end tell`
	return runAppleScript(script)
}

// brightnessDown decreases the screen brightness.
func brightnessDown() error {
	script := `tell application "System Events"
	key code 145
end tell`
	return runAppleScript(script)
}

// mediaPlayPause toggles media play/pause using the F8/Play-Pause media key.
func mediaPlayPause() error {
	script := `tell application "System Events"
	key code 100
end tell`
	return runAppleScript(script)
}

// mediaNext skips to the next track using the F9/Next media key.
func mediaNext() error {
	script := `tell application "System Events"
	key code 101
end tell`
	return runAppleScript(script)
}

// mediaPrev skips to the previous track using the F7/Previous media key.
func mediaPrev() error {
	script := `tell application "System Events"
	key code 98
end tell`
	return runAppleScript(script)
}
