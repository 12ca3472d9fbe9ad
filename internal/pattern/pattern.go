// Package pattern evaluates compositional pattern expressions against a
// single frame, deciding match/no-match and extracting which concrete
// hand(s) a composite match selected.
package pattern

import "github.com/ayusman/kinetic/internal/frame"

// HandFilter restricts which handedness a leaf pattern may match.
type HandFilter string

const (
	AnyHand   HandFilter = "any"
	LeftHand  HandFilter = "left"
	RightHand HandFilter = "right"
)

func (f HandFilter) accepts(h frame.Handedness) bool {
	switch f {
	case LeftHand:
		return h == frame.Left
	case RightHand:
		return h == frame.Right
	default:
		return true
	}
}

// Finger identifies a fingertip landmark used by a Pinch leaf.
type Finger string

const (
	Index Finger = "index"
	Middle Finger = "middle"
	Ring   Finger = "ring"
	Pinky  Finger = "pinky"
)

// DefaultPinchThreshold returns the calibrated default distance threshold
// for the given finger's pinch.
func DefaultPinchThreshold(f Finger) float64 {
	switch f {
	case Index:
		return 0.06
	case Middle:
		return 0.055
	case Ring:
		return 0.09
	case Pinky:
		return 0.075
	default:
		return 0.06
	}
}

func (f Finger) tipIndex() int {
	switch f {
	case Index:
		return frame.IndexTip
	case Middle:
		return frame.MiddleTip
	case Ring:
		return frame.RingTip
	case Pinky:
		return frame.PinkyTip
	default:
		return frame.IndexTip
	}
}

// Kind discriminates the Expression sum type.
type Kind int

const (
	KindGesture Kind = iota
	KindPinch
	KindAnyOf
	KindAllOf
	KindBidirectional
)

// Expression is a discriminated union of pattern primitives and
// combinators. Only the fields relevant to Kind are populated.
type Expression struct {
	Kind Kind

	// Gesture leaf.
	GestureLabel  string
	HandFilter    HandFilter
	MinConfidence float64

	// Pinch leaf.
	Finger             Finger
	DistanceThreshold  float64 // 0 means "use DefaultPinchThreshold(Finger)"

	// AnyOf / AllOf combinators.
	Children []Expression

	// Bidirectional(A, B) — sugar, primary is B.
	A, B *Expression

	// Primary marks this sub-expression (within an AllOf) as the one
	// whose matched hand/position is reported to consumers.
	Primary bool
}

// Gesture builds a Gesture leaf expression.
func Gesture(label string, filter HandFilter, minConfidence float64) Expression {
	return Expression{Kind: KindGesture, GestureLabel: label, HandFilter: filter, MinConfidence: minConfidence}
}

// Pinch builds a Pinch leaf expression. A zero threshold uses the
// calibrated default for the finger.
func Pinch(finger Finger, filter HandFilter, threshold float64) Expression {
	return Expression{Kind: KindPinch, Finger: finger, HandFilter: filter, DistanceThreshold: threshold}
}

// AnyOf builds an ordered-alternative combinator; the first matching
// child short-circuits evaluation.
func AnyOf(children ...Expression) Expression {
	return Expression{Kind: KindAnyOf, Children: children}
}

// AllOf builds a conjunction combinator; every child must match on a
// distinct hand. Exactly one child should be marked Primary (see
// WithPrimary); if none is, the first child is treated as primary.
func AllOf(children ...Expression) Expression {
	return Expression{Kind: KindAllOf, Children: children}
}

// WithPrimary returns a copy of e flagged as the primary sub-expression
// of an enclosing AllOf.
func WithPrimary(e Expression) Expression {
	e.Primary = true
	return e
}

// Bidirectional builds the AnyOf(AllOf(a@left,b@right), AllOf(a@right,b@left))
// sugar, with b designated primary.
func Bidirectional(a, b Expression) Expression {
	aLeft, bRight := a, b
	aLeft.HandFilter = LeftHand
	bRight.HandFilter = RightHand
	bRight.Primary = true

	aRight, bLeft := a, b
	aRight.HandFilter = RightHand
	bLeft.HandFilter = LeftHand
	bLeft.Primary = true

	return Expression{
		Kind: KindBidirectional,
		A:    &a,
		B:    &b,
		Children: []Expression{
			AllOf(aLeft, bRight),
			AllOf(aRight, bLeft),
		},
	}
}

// Match is the outcome of a successful Evaluate: the primary hand and
// position the composite expression selected, plus every hand index the
// match consumed (for the distinct-hand constraint within AllOf).
type Match struct {
	PrimaryHandIndex int
	PrimaryHand      frame.Handedness
	PrimaryPosition  frame.Point3D
	Consumed         map[int]bool
}

// Evaluate decides match/no-match for expr against f, and on a match
// extracts the primary hand and its position.
func Evaluate(expr *Expression, f *frame.Frame) (Match, bool) {
	return evaluate(expr, f, map[int]bool{})
}

// EvaluateCandidates enumerates every distinct candidate match expr could
// produce against f this frame — one per instance_key the intent could
// assume. A leaf (Gesture/Pinch) with HandFilter == AnyHand produces one
// candidate per qualifying hand, since each is a distinct instance_key;
// every other leaf and every combinator produces at most the single
// match Evaluate would, since AnyOf/AllOf/Bidirectional already commit to
// one concrete hand assignment per the spec's short-circuit/greedy rules.
func EvaluateCandidates(expr *Expression, f *frame.Frame) []Match {
	if expr.Kind == KindGesture && expr.HandFilter == AnyHand {
		return allGestureMatches(expr, f)
	}
	if expr.Kind == KindPinch && expr.HandFilter == AnyHand {
		return allPinchMatches(expr, f)
	}
	if m, ok := Evaluate(expr, f); ok {
		return []Match{m}
	}
	return nil
}

func allGestureMatches(expr *Expression, f *frame.Frame) []Match {
	var out []Match
	for i := range f.Hands {
		h := &f.Hands[i]
		if h.Gesture != expr.GestureLabel || h.Confidence < expr.MinConfidence {
			continue
		}
		out = append(out, Match{
			PrimaryHandIndex: h.Index,
			PrimaryHand:      h.Handedness,
			PrimaryPosition:  h.Centroid(),
			Consumed:         map[int]bool{h.Index: true},
		})
	}
	return out
}

func allPinchMatches(expr *Expression, f *frame.Frame) []Match {
	threshold := expr.DistanceThreshold
	if threshold == 0 {
		threshold = DefaultPinchThreshold(expr.Finger)
	}
	tipIdx := expr.Finger.tipIndex()

	var out []Match
	for i := range f.Hands {
		h := &f.Hands[i]
		thumb := h.Landmarks[frame.ThumbTip]
		tip := h.Landmarks[tipIdx]
		if isNaNPoint(thumb) || isNaNPoint(tip) {
			continue
		}
		if frame.Distance3D(thumb, tip) < threshold {
			out = append(out, Match{
				PrimaryHandIndex: h.Index,
				PrimaryHand:      h.Handedness,
				PrimaryPosition:  frame.Midpoint(thumb, tip),
				Consumed:         map[int]bool{h.Index: true},
			})
		}
	}
	return out
}

func evaluate(expr *Expression, f *frame.Frame, excluded map[int]bool) (Match, bool) {
	switch expr.Kind {
	case KindGesture:
		return evaluateGesture(expr, f, excluded)
	case KindPinch:
		return evaluatePinch(expr, f, excluded)
	case KindAnyOf, KindBidirectional:
		for i := range expr.Children {
			if m, ok := evaluate(&expr.Children[i], f, excluded); ok {
				return m, true
			}
		}
		return Match{}, false
	case KindAllOf:
		return evaluateAllOf(expr, f, excluded)
	default:
		return Match{}, false
	}
}

func evaluateGesture(expr *Expression, f *frame.Frame, excluded map[int]bool) (Match, bool) {
	for i := range f.Hands {
		h := &f.Hands[i]
		if excluded[h.Index] {
			continue
		}
		if !expr.HandFilter.accepts(h.Handedness) {
			continue
		}
		if h.Gesture != expr.GestureLabel {
			continue
		}
		if h.Confidence < expr.MinConfidence {
			continue
		}
		return Match{
			PrimaryHandIndex: h.Index,
			PrimaryHand:      h.Handedness,
			PrimaryPosition:  h.Centroid(),
			Consumed:         map[int]bool{h.Index: true},
		}, true
	}
	return Match{}, false
}

func evaluatePinch(expr *Expression, f *frame.Frame, excluded map[int]bool) (Match, bool) {
	threshold := expr.DistanceThreshold
	if threshold == 0 {
		threshold = DefaultPinchThreshold(expr.Finger)
	}
	tipIdx := expr.Finger.tipIndex()

	for i := range f.Hands {
		h := &f.Hands[i]
		if excluded[h.Index] {
			continue
		}
		if !expr.HandFilter.accepts(h.Handedness) {
			continue
		}
		thumb := h.Landmarks[frame.ThumbTip]
		tip := h.Landmarks[tipIdx]
		if isNaNPoint(thumb) || isNaNPoint(tip) {
			continue
		}
		if frame.Distance3D(thumb, tip) < threshold {
			return Match{
				PrimaryHandIndex: h.Index,
				PrimaryHand:      h.Handedness,
				PrimaryPosition:  frame.Midpoint(thumb, tip),
				Consumed:         map[int]bool{h.Index: true},
			}, true
		}
	}
	return Match{}, false
}

func evaluateAllOf(expr *Expression, f *frame.Frame, excluded map[int]bool) (Match, bool) {
	localExcluded := make(map[int]bool, len(excluded))
	for k := range excluded {
		localExcluded[k] = true
	}

	consumed := map[int]bool{}
	var primary *Match
	havePrimary := false
	primaryIdx := -1
	for i := range expr.Children {
		if expr.Children[i].Primary {
			primaryIdx = i
			break
		}
	}

	for i := range expr.Children {
		m, ok := evaluate(&expr.Children[i], f, localExcluded)
		if !ok {
			return Match{}, false
		}
		for idx := range m.Consumed {
			consumed[idx] = true
			localExcluded[idx] = true
		}
		if i == primaryIdx || (primaryIdx == -1 && i == 0) {
			mc := m
			primary = &mc
			havePrimary = true
		}
	}

	if !havePrimary {
		return Match{}, false
	}

	return Match{
		PrimaryHandIndex: primary.PrimaryHandIndex,
		PrimaryHand:      primary.PrimaryHand,
		PrimaryPosition:  primary.PrimaryPosition,
		Consumed:         consumed,
	}, true
}

func isNaNPoint(p frame.Point3D) bool {
	return p.X != p.X || p.Y != p.Y || p.Z != p.Z
}
