// Package lifecycle owns the set of active instances and produces
// start/update/end events by diffing the resolved active set against the
// prior frame's.
package lifecycle

import (
	"math"
	"strconv"

	"github.com/ayusman/kinetic/internal/frame"
	"github.com/ayusman/kinetic/internal/grid"
	"github.com/ayusman/kinetic/internal/intent"
)

// IDGenerator mints a fresh, stable instance id for a newly-started
// instance.
type IDGenerator func() string

// Engine owns the active-instance map and turns resolved per-frame
// decisions into Start/Update/End events.
type Engine struct {
	active      map[string]intent.ActiveInstance // keyed by InstanceKey.Selector namespaced by intent id
	gridRes     []grid.Resolution
	newInstance IDGenerator
}

// New creates a lifecycle Engine. idGen mints instance ids; if nil, a
// monotonic counter is used.
func New(gridRes []grid.Resolution, idGen IDGenerator) *Engine {
	if idGen == nil {
		var n int
		idGen = func() string {
			n++
			return "instance-" + strconv.Itoa(n)
		}
	}
	return &Engine{
		active:      map[string]intent.ActiveInstance{},
		gridRes:     gridRes,
		newInstance: idGen,
	}
}

func mapKey(intentID, selector string) string {
	return intentID + "\x00" + selector
}

// ActiveInstances returns a read-only snapshot of every currently active
// instance.
func (e *Engine) ActiveInstances() []intent.ActiveInstance {
	out := make([]intent.ActiveInstance, 0, len(e.active))
	for _, inst := range e.active {
		out = append(out, inst)
	}
	return out
}

// ActiveForIntent returns the subset of active instances for one intent,
// keyed by hand selector (InstanceKey.Selector).
func (e *Engine) ActiveForIntent(intentID string) map[string]intent.ActiveInstance {
	out := map[string]intent.ActiveInstance{}
	for _, inst := range e.active {
		if inst.IntentID == intentID {
			out[inst.Key.Selector] = inst
		}
	}
	return out
}

// StartDecision describes one instance the conflict resolver approved to
// begin this frame.
type StartDecision struct {
	Key       intent.InstanceKey
	Hand      frame.Handedness
	HandIndex int
	Position  frame.Point3D
	Priority  int
	Group     string
}

// ContinueDecision describes one already-active instance that matched
// again (or whose gap is still tolerated) this frame.
type ContinueDecision struct {
	Key      intent.InstanceKey
	Position frame.Point3D
	Matched  bool // false when the instance is coasting through a tolerated gap
}

// EndDecision describes one active instance ending this frame.
type EndDecision struct {
	Key    intent.InstanceKey
	Reason intent.EndReason
}

// Apply diffs the frame's resolved decisions against the current active
// set and returns the frame's events in the mandated Ends -> Starts ->
// Updates order.
func (e *Engine) Apply(now int64, starts []StartDecision, continues []ContinueDecision, ends []EndDecision) []intent.Event {
	var events []intent.Event

	for _, d := range ends {
		mk := mapKey(d.Key.IntentID, d.Key.Selector)
		inst, ok := e.active[mk]
		if !ok {
			continue
		}
		delete(e.active, mk)
		events = append(events, intent.Event{
			Phase:      intent.PhaseEnd,
			IntentID:   inst.IntentID,
			InstanceID: inst.InstanceID,
			Key:        inst.Key,
			Timestamp:  now,
			Hand:       inst.Hand,
			HandIndex:  inst.HandIndex,
			Position:   inst.LastPosition,
			Cells:      cells(inst.LastPosition, e.gridRes),
			DurationMs: now - inst.StartedAt,
			Reason:     d.Reason,
		})
	}

	for _, d := range starts {
		mk := mapKey(d.Key.IntentID, d.Key.Selector)
		inst := intent.ActiveInstance{
			InstanceID:   e.newInstance(),
			Key:          d.Key,
			IntentID:     d.Key.IntentID,
			Hand:         d.Hand,
			HandIndex:    d.HandIndex,
			StartedAt:    now,
			LastMatchAt:  now,
			LastPosition: d.Position,
			Priority:     d.Priority,
			Group:        d.Group,
		}
		e.active[mk] = inst
		events = append(events, intent.Event{
			Phase:      intent.PhaseStart,
			IntentID:   inst.IntentID,
			InstanceID: inst.InstanceID,
			Key:        inst.Key,
			Timestamp:  now,
			Hand:       inst.Hand,
			HandIndex:  inst.HandIndex,
			Position:   inst.LastPosition,
			Cells:      cells(inst.LastPosition, e.gridRes),
		})
	}

	for _, d := range continues {
		mk := mapKey(d.Key.IntentID, d.Key.Selector)
		inst, ok := e.active[mk]
		if !ok {
			continue
		}

		prevPosition := inst.LastPosition
		prevTimestamp := inst.LastMatchAt

		if d.Matched {
			inst.LastPosition = d.Position
			inst.LastMatchAt = now
		}
		e.active[mk] = inst

		events = append(events, intent.Event{
			Phase:      intent.PhaseUpdate,
			IntentID:   inst.IntentID,
			InstanceID: inst.InstanceID,
			Key:        inst.Key,
			Timestamp:  now,
			Hand:       inst.Hand,
			HandIndex:  inst.HandIndex,
			Position:   inst.LastPosition,
			Cells:      cells(inst.LastPosition, e.gridRes),
			Velocity:   velocity(prevPosition, inst.LastPosition, prevTimestamp, now),
			DurationMs: now - inst.StartedAt,
		})
	}

	return events
}

// Clear ends every active instance with reason "cleared" — used by
// reset() and by configure() for intents that disappeared or changed
// structurally.
func (e *Engine) Clear(now int64, predicate func(intent.ActiveInstance) bool) []intent.Event {
	var ends []EndDecision
	for _, inst := range e.active {
		if predicate == nil || predicate(inst) {
			ends = append(ends, EndDecision{Key: inst.Key, Reason: intent.ReasonCleared})
		}
	}
	return e.Apply(now, nil, nil, ends)
}

func velocity(prev, cur frame.Point3D, prevTs, curTs int64) frame.Vec3 {
	if curTs <= prevTs {
		return frame.Vec3{}
	}
	dtSeconds := float64(curTs-prevTs) / 1000.0
	v := frame.Vec3{
		X: (cur.X - prev.X) / dtSeconds,
		Y: (cur.Y - prev.Y) / dtSeconds,
		Z: (cur.Z - prev.Z) / dtSeconds,
	}
	if !finite(v.X) {
		v.X = 0
	}
	if !finite(v.Y) {
		v.Y = 0
	}
	if !finite(v.Z) {
		v.Z = 0
	}
	return v
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func cells(p frame.Point3D, resolutions []grid.Resolution) []intent.GridCell {
	out := make([]intent.GridCell, 0, len(resolutions))
	for _, r := range resolutions {
		col, row := grid.Cell(p.X, p.Y, r)
		out = append(out, intent.GridCell{Col: col, Row: row, Resolution: r.Name})
	}
	return out
}
