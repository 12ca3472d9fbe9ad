// Package testdata provides deterministic hand and frame fixtures for
// engine, server, and end-to-end tests. Hands are synthesized directly as
// landmark sets; no vision model is involved.
package testdata

import (
	"github.com/ayusman/kinetic/internal/frame"
)

// spreadOffsets returns 21 landmark offsets forming an open hand: wrist at
// the bottom, fingers fanned upward, fingertips well apart so no pinch
// matches accidentally. The offsets are mean-centered, so a hand built
// from them has its landmark centroid exactly at the requested center.
func spreadOffsets() [frame.NumLandmarks]frame.Point3D {
	var offsets [frame.NumLandmarks]frame.Point3D

	// Wrist
	offsets[frame.Wrist] = frame.Point3D{X: 0, Y: 0.12, Z: 0}

	// Four joints per finger, fanned by finger index. Thumb leans far left
	// so thumb-tip-to-fingertip distances exceed every pinch threshold.
	fingers := []struct {
		base int
		dirX float64
	}{
		{frame.ThumbCMC, -0.10},
		{frame.IndexMCP, -0.04},
		{frame.MiddleMCP, 0.0},
		{frame.RingMCP, 0.04},
		{frame.PinkyMCP, 0.08},
	}
	for _, f := range fingers {
		for joint := 0; joint < 4; joint++ {
			reach := 0.03 * float64(joint+1)
			offsets[f.base+joint] = frame.Point3D{
				X: f.dirX * float64(joint+1) / 2,
				Y: 0.08 - reach,
				Z: -0.01 * float64(joint),
			}
		}
	}

	// Mean-center so the centroid lands exactly on the hand's center.
	var sum frame.Point3D
	for _, p := range offsets {
		sum.X += p.X
		sum.Y += p.Y
		sum.Z += p.Z
	}
	n := float64(frame.NumLandmarks)
	mean := frame.Point3D{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
	for i := range offsets {
		offsets[i].X -= mean.X
		offsets[i].Y -= mean.Y
		offsets[i].Z -= mean.Z
	}
	return offsets
}

// GestureHand builds a hand at center labeled with the given top-1 gesture.
// Its landmark centroid is exactly center, and no finger is pinching.
func GestureHand(index int, handedness frame.Handedness, gesture string, confidence float64, center frame.Point3D) frame.Hand {
	h := frame.Hand{
		Index:      index,
		Handedness: handedness,
		Gesture:    gesture,
		Confidence: confidence,
	}
	for i, off := range spreadOffsets() {
		h.Landmarks[i] = frame.Point3D{X: center.X + off.X, Y: center.Y + off.Y, Z: center.Z + off.Z}
	}
	return h
}

// VictoryHand builds a right-or-left hand showing Victory at center.
func VictoryHand(index int, handedness frame.Handedness, confidence float64, center frame.Point3D) frame.Hand {
	return GestureHand(index, handedness, "Victory", confidence, center)
}

// NeutralHand builds a hand with no recognized gesture and no pinch.
func NeutralHand(index int, handedness frame.Handedness, center frame.Point3D) frame.Hand {
	return GestureHand(index, handedness, "None", 0.9, center)
}

// PinchHand builds a hand whose given fingertip touches the thumb tip
// (distance 0.01, inside every calibrated threshold). Other fingertips
// stay spread. The reported gesture label is "None".
func PinchHand(index int, handedness frame.Handedness, fingerTip int, center frame.Point3D) frame.Hand {
	h := NeutralHand(index, handedness, center)
	thumb := h.Landmarks[frame.ThumbTip]
	h.Landmarks[fingerTip] = frame.Point3D{X: thumb.X + 0.01, Y: thumb.Y, Z: thumb.Z}
	return h
}

// FrameAt assembles a frame from hands at the given timestamp.
func FrameAt(timestamp int64, hands ...frame.Hand) frame.Frame {
	return frame.Frame{Timestamp: timestamp, Hands: hands}
}

// Center is the default hand center used by fixture-based tests.
var Center = frame.Point3D{X: 0.5, Y: 0.5, Z: 0}
