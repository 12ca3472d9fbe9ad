// Package temporal applies minimum-duration and max-gap rules per
// candidate instance, translating raw pattern matches into promotion,
// continuation, and demotion decisions. It holds no state of its own —
// it reads the engine's active-instance map and the frame history.
package temporal

import (
	"github.com/ayusman/kinetic/internal/frame"
	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/pattern"
)

// Candidate is one instance-key's worth of evidence for this frame: a
// fresh match (Matched=true), or a previously-active instance for which
// no match was found this frame.
type Candidate struct {
	Key       intent.InstanceKey
	IntentID  string
	Hand      frame.Handedness
	HandIndex int
	Position  frame.Point3D
	Matched   bool // true if the pattern matched this frame
}

// Outcome buckets a frame's candidates into the three categories the
// lifecycle engine needs.
type Outcome struct {
	EligibleToStart    []Candidate
	EligibleToContinue []Candidate
	EligibleToEnd      []EndingInstance
}

// EndingInstance is an active instance the temporal filter has determined
// should end this frame, absent conflict-resolution superseding it first.
type EndingInstance struct {
	Instance intent.ActiveInstance
	Reason   intent.EndReason
}

// Evaluate runs the temporal filter for one intent definition against the
// current frame and history, given the engine's currently active
// instances for that intent (keyed by InstanceKey.Selector).
func Evaluate(def intent.Definition, f *frame.Frame, h *frame.History, active map[string]intent.ActiveInstance) Outcome {
	var out Outcome
	now := f.Timestamp

	matches := pattern.EvaluateCandidates(&def.Pattern, f)
	seenSelectors := map[string]bool{}

	for _, m := range matches {
		selector := intent.HandSelector{Hands: []frame.Handedness{m.PrimaryHand}}.Key()
		seenSelectors[selector] = true

		cand := Candidate{
			Key:       intent.InstanceKey{IntentID: def.ID, Selector: selector},
			IntentID:  def.ID,
			Hand:      m.PrimaryHand,
			HandIndex: m.PrimaryHandIndex,
			Position:  m.PrimaryPosition,
			Matched:   true,
		}

		if inst, isActive := active[selector]; isActive {
			// With zero tolerance any unmatched frame has already ended the
			// instance, so a match on an active instance always continues it.
			if def.Temporal.MaxGapMs == 0 || now-inst.LastMatchAt <= def.Temporal.MaxGapMs {
				out.EligibleToContinue = append(out.EligibleToContinue, cand)
				continue
			}
			// The gap outlived its tolerance before this match arrived:
			// the stale instance ends, and the match competes as a fresh
			// candidate through the usual hold gate below.
			out.EligibleToEnd = append(out.EligibleToEnd, EndingInstance{Instance: inst, Reason: gapReason(def)})
		}

		predicate := holdPredicate(&def.Pattern, selector)
		if h.HeldFor(predicate, def.Temporal.MinDurationMs) {
			out.EligibleToStart = append(out.EligibleToStart, cand)
		}
	}

	for selector, inst := range active {
		if seenSelectors[selector] {
			continue
		}
		gap := now - inst.LastMatchAt
		if gap <= def.Temporal.MaxGapMs {
			// Gap tolerated: instance survives without a fresh match this
			// frame, carried forward unchanged by the lifecycle engine.
			continue
		}
		out.EligibleToEnd = append(out.EligibleToEnd, EndingInstance{Instance: inst, Reason: gapReason(def)})
	}

	return out
}

// gapReason classifies the end of an instance that ran out of matches:
// with zero configured tolerance losing the match is an immediate loss of
// the pattern, not a timeout.
func gapReason(def intent.Definition) intent.EndReason {
	if def.Temporal.MaxGapMs == 0 {
		return intent.ReasonPatternLost
	}
	return intent.ReasonGapExceeded
}

// holdPredicate re-evaluates the pattern against a historical frame and
// checks whether it would have produced a candidate with the same
// selector — "the same matched hand(s) would have matched the pattern on
// that historical frame".
func holdPredicate(expr *pattern.Expression, selector string) func(frame.Frame) bool {
	return func(hf frame.Frame) bool {
		for _, m := range pattern.EvaluateCandidates(expr, &hf) {
			s := intent.HandSelector{Hands: []frame.Handedness{m.PrimaryHand}}.Key()
			if s == selector {
				return true
			}
		}
		return false
	}
}
