// Package ingest supplies frames and declarative configuration to the
// engine from outside the per-frame path: a frame-source abstraction with
// JSONL replay and synthetic implementations, plus loaders that turn YAML
// files and store records into engine intent definitions.
package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/kinetic/internal/frame"
)

// Source supplies frames to the engine, standing in for the out-of-scope
// vision front-end. Next returns io.EOF when the source is exhausted.
type Source interface {
	Next() (frame.Frame, error)
	Close() error
}

// wireHand is the serialized form of one detected hand.
type wireHand struct {
	Index      int          `json:"index"`
	Handedness string       `json:"handedness"`
	Gesture    string       `json:"gesture"`
	Confidence float64      `json:"confidence"`
	Landmarks  [][3]float64 `json:"landmarks"`
}

// wireFrame is the serialized form of one frame, as produced by the vision
// front-end and the session replay files.
type wireFrame struct {
	Timestamp int64      `json:"timestamp"`
	Hands     []wireHand `json:"hands"`
}

// DecodeFrame parses one serialized frame.
func DecodeFrame(data []byte) (frame.Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return frame.Frame{}, fmt.Errorf("ingest: decode frame: %w", err)
	}

	f := frame.Frame{Timestamp: w.Timestamp, Hands: make([]frame.Hand, 0, len(w.Hands))}
	for _, wh := range w.Hands {
		if len(wh.Landmarks) != frame.NumLandmarks {
			return frame.Frame{}, fmt.Errorf("ingest: hand %d has %d landmarks, want %d", wh.Index, len(wh.Landmarks), frame.NumLandmarks)
		}
		h := frame.Hand{
			Index:      wh.Index,
			Handedness: frame.Handedness(wh.Handedness),
			Gesture:    wh.Gesture,
			Confidence: wh.Confidence,
		}
		for i, p := range wh.Landmarks {
			h.Landmarks[i] = frame.Point3D{X: p[0], Y: p[1], Z: p[2]}
		}
		f.Hands = append(f.Hands, h)
	}
	return f, nil
}

// EncodeFrame serializes a frame into the same form DecodeFrame reads.
func EncodeFrame(f frame.Frame) ([]byte, error) {
	w := wireFrame{Timestamp: f.Timestamp, Hands: make([]wireHand, 0, len(f.Hands))}
	for _, h := range f.Hands {
		wh := wireHand{
			Index:      h.Index,
			Handedness: string(h.Handedness),
			Gesture:    h.Gesture,
			Confidence: h.Confidence,
			Landmarks:  make([][3]float64, frame.NumLandmarks),
		}
		for i, p := range h.Landmarks {
			wh.Landmarks[i] = [3]float64{p.X, p.Y, p.Z}
		}
		w.Hands = append(w.Hands, wh)
	}
	return json.Marshal(w)
}
