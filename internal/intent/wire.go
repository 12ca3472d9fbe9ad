package intent

// WirePosition is a position or velocity vector in an event's wire form.
type WirePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WireCell is a spatial grid cell in an event's wire form.
type WireCell struct {
	Col        int    `json:"col"`
	Row        int    `json:"row"`
	Resolution string `json:"resolution"`
}

// WireEvent is the self-contained record consumers receive: the WebSocket
// egress stream, the event log, and plugin requests all derive from it.
// Type is "<intent_id>:<phase>".
type WireEvent struct {
	Type       string        `json:"type"`
	InstanceID string        `json:"instance_id"`
	IntentID   string        `json:"intent_id"`
	Timestamp  int64         `json:"timestamp"`
	Hand       string        `json:"hand"`
	HandIndex  int           `json:"hand_index"`
	Position   WirePosition  `json:"position"`
	Cells      []WireCell    `json:"cells"`
	Velocity   *WirePosition `json:"velocity,omitempty"`
	DurationMs *int64        `json:"duration_ms,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// Wire converts the event to its wire form. Velocity travels only on
// updates; duration on updates and ends; reason only on ends.
func (e Event) Wire() WireEvent {
	w := WireEvent{
		Type:       e.IntentID + ":" + string(e.Phase),
		InstanceID: e.InstanceID,
		IntentID:   e.IntentID,
		Timestamp:  e.Timestamp,
		Hand:       string(e.Hand),
		HandIndex:  e.HandIndex,
		Position:   WirePosition{X: e.Position.X, Y: e.Position.Y, Z: e.Position.Z},
	}

	w.Cells = make([]WireCell, 0, len(e.Cells))
	for _, c := range e.Cells {
		w.Cells = append(w.Cells, WireCell{Col: c.Col, Row: c.Row, Resolution: c.Resolution})
	}

	switch e.Phase {
	case PhaseUpdate:
		v := WirePosition{X: e.Velocity.X, Y: e.Velocity.Y, Z: e.Velocity.Z}
		w.Velocity = &v
		d := e.DurationMs
		w.DurationMs = &d
	case PhaseEnd:
		d := e.DurationMs
		w.DurationMs = &d
		w.Reason = string(e.Reason)
	}

	return w
}
