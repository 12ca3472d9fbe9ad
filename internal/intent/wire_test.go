package intent

import (
	"encoding/json"
	"testing"

	"github.com/ayusman/kinetic/internal/frame"
)

func TestWire_Start(t *testing.T) {
	ev := Event{
		Phase:      PhaseStart,
		IntentID:   "victory-hold",
		InstanceID: "instance-1",
		Timestamp:  1500,
		Hand:       frame.Right,
		HandIndex:  1,
		Position:   frame.Point3D{X: 0.5, Y: 0.25, Z: -0.1},
		Cells: []GridCell{
			{Col: 2, Row: 1, Resolution: "coarse"},
			{Col: 4, Row: 2, Resolution: "medium"},
		},
	}

	w := ev.Wire()

	if w.Type != "victory-hold:start" {
		t.Errorf("Type = %q, want victory-hold:start", w.Type)
	}
	if w.Velocity != nil {
		t.Error("start events carry no velocity")
	}
	if w.DurationMs != nil {
		t.Error("start events carry no duration")
	}
	if w.Reason != "" {
		t.Errorf("start events carry no reason, got %q", w.Reason)
	}
	if len(w.Cells) != 2 || w.Cells[0].Resolution != "coarse" {
		t.Errorf("cells = %+v", w.Cells)
	}

	// Wire form must be self-contained JSON with the contract's field names.
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"type", "instance_id", "intent_id", "timestamp", "hand", "hand_index", "position", "cells"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("wire JSON missing field %q", field)
		}
	}
	if _, ok := decoded["velocity"]; ok {
		t.Error("start wire JSON should omit velocity")
	}
}

func TestWire_Update(t *testing.T) {
	ev := Event{
		Phase:      PhaseUpdate,
		IntentID:   "g",
		InstanceID: "instance-2",
		Timestamp:  2000,
		Hand:       frame.Left,
		Velocity:   frame.Vec3{X: 1.5, Y: -0.5},
		DurationMs: 500,
	}

	w := ev.Wire()

	if w.Type != "g:update" {
		t.Errorf("Type = %q", w.Type)
	}
	if w.Velocity == nil || w.Velocity.X != 1.5 || w.Velocity.Y != -0.5 {
		t.Errorf("Velocity = %+v", w.Velocity)
	}
	if w.DurationMs == nil || *w.DurationMs != 500 {
		t.Errorf("DurationMs = %v", w.DurationMs)
	}
	if w.Reason != "" {
		t.Errorf("update events carry no reason, got %q", w.Reason)
	}
}

func TestWire_End(t *testing.T) {
	ev := Event{
		Phase:      PhaseEnd,
		IntentID:   "g",
		InstanceID: "instance-3",
		Timestamp:  3000,
		Hand:       frame.Right,
		DurationMs: 1200,
		Reason:     ReasonGapExceeded,
	}

	w := ev.Wire()

	if w.Type != "g:end" {
		t.Errorf("Type = %q", w.Type)
	}
	if w.Reason != "gap_exceeded" {
		t.Errorf("Reason = %q, want gap_exceeded", w.Reason)
	}
	if w.DurationMs == nil || *w.DurationMs != 1200 {
		t.Errorf("DurationMs = %v", w.DurationMs)
	}
	if w.Velocity != nil {
		t.Error("end events carry no velocity")
	}
}
