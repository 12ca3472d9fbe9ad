// Package engine wires frame history, pattern matching, temporal
// filtering, conflict resolution, and lifecycle diffing into the single
// synchronous entry point described by the rest of this module:
// on_frame/reset/configure/subscribe/active_actions/current_config.
package engine

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/ayusman/kinetic/internal/dispatch"
	"github.com/ayusman/kinetic/internal/frame"
	"github.com/ayusman/kinetic/internal/grid"
	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/lifecycle"
	"github.com/ayusman/kinetic/internal/resolver"
	"github.com/ayusman/kinetic/internal/temporal"
)

// Config bundles the tunables an Engine is constructed with.
type Config struct {
	HistoryCapacity int
	GridResolutions []grid.Resolution
	IDGenerator     lifecycle.IDGenerator
}

// DefaultConfig returns the spec's default tunables: 300-frame history and
// the three standard grid resolutions.
func DefaultConfig() Config {
	return Config{
		HistoryCapacity: frame.DefaultCapacity,
		GridResolutions: grid.Default(),
	}
}

// Engine is the single-threaded, synchronous intent engine. All exported
// methods are safe for use from one goroutine at a time; there is no
// internal concurrency and no suspension point inside on_frame.
type Engine struct {
	mu sync.Mutex

	history    *frame.History
	lifecycle  *lifecycle.Engine
	bus        *dispatch.Bus
	resolveCfg resolver.Config
	intents    map[string]intent.Definition
	order      []string // configure-time order, for deterministic iteration
	lastFrame  int64
	haveFrame  bool
}

// New creates an Engine with no registered intents and an unbounded
// resolver configuration.
func New(cfg Config) *Engine {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = frame.DefaultCapacity
	}
	if cfg.GridResolutions == nil {
		cfg.GridResolutions = grid.Default()
	}
	return &Engine{
		history:    frame.NewHistory(cfg.HistoryCapacity),
		lifecycle:  lifecycle.New(cfg.GridResolutions, cfg.IDGenerator),
		bus:        dispatch.New(),
		resolveCfg: resolver.DefaultConfig(),
		intents:    map[string]intent.Definition{},
	}
}

// OnFrame is the sole ingress point. Frames with a timestamp not strictly
// greater than the last ingested one are idempotent no-ops (duplicates)
// or rejections (stale); both are silently dropped, matching the frame
// history's own monotonicity rule. At most one round of events is
// dispatched synchronously before OnFrame returns.
func (e *Engine) OnFrame(f frame.Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.haveFrame && f.Timestamp <= e.lastFrame {
		return
	}

	e.history.Append(f)
	e.lastFrame = f.Timestamp
	e.haveFrame = true

	events := e.processFrame(&f)
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

// processFrame runs match -> filter -> resolve -> diff for the frame just
// appended to history, and returns the frame's events in their mandated
// order. Must be called with e.mu held.
func (e *Engine) processFrame(f *frame.Frame) []intent.Event {
	var allStarts []lifecycle.StartDecision
	var allContinues []lifecycle.ContinueDecision
	var allEnds []lifecycle.EndDecision

	type startCandidate struct {
		decision lifecycle.StartDecision
		group    string
		priority int
	}
	var startCandidates []startCandidate

	for _, id := range e.order {
		def := e.intents[id]
		active := e.lifecycle.ActiveForIntent(id)
		outcome := temporal.Evaluate(def, f, e.history, active)

		for _, c := range outcome.EligibleToContinue {
			allContinues = append(allContinues, lifecycle.ContinueDecision{
				Key:      c.Key,
				Position: c.Position,
				Matched:  true,
			})
		}

		for _, c := range outcome.EligibleToStart {
			startCandidates = append(startCandidates, startCandidate{
				decision: lifecycle.StartDecision{
					Key:       c.Key,
					Hand:      c.Hand,
					HandIndex: c.HandIndex,
					Position:  c.Position,
					Priority:  def.Resolution.Priority,
					Group:     def.Resolution.Group,
				},
				group:    def.Resolution.Group,
				priority: def.Resolution.Priority,
			})
		}

		for _, end := range outcome.EligibleToEnd {
			allEnds = append(allEnds, lifecycle.EndDecision{Key: end.Instance.Key, Reason: end.Reason})
		}
	}

	// For the tolerated gap: continuing instances are already reflected
	// via EligibleToContinue above; instances with no candidate at all
	// and within tolerance stay untouched (no decision needed).

	candidates := make([]resolver.Candidate, 0, len(e.lifecycle.ActiveInstances())+len(startCandidates))
	for _, inst := range e.lifecycle.ActiveInstances() {
		if endedThisFrame(allEnds, inst.Key) {
			continue
		}
		candidates = append(candidates, resolver.Candidate{
			InstanceKey:   inst.Key.IntentID + "\x00" + inst.Key.Selector,
			IntentID:      inst.IntentID,
			Group:         inst.Group,
			Priority:      inst.Priority,
			AlreadyActive: true,
			StartedAt:     inst.StartedAt,
		})
	}
	for _, sc := range startCandidates {
		candidates = append(candidates, resolver.Candidate{
			InstanceKey:   sc.decision.Key.IntentID + "\x00" + sc.decision.Key.Selector,
			IntentID:      sc.decision.Key.IntentID,
			Group:         sc.group,
			Priority:      sc.priority,
			AlreadyActive: false,
			StartedAt:     f.Timestamp,
		})
	}

	_, superseded := resolver.Resolve(e.resolveCfg, candidates)
	supersededKeys := map[string]bool{}
	for _, s := range superseded {
		supersededKeys[s.InstanceKey] = true
	}

	for _, sc := range startCandidates {
		ik := sc.decision.Key.IntentID + "\x00" + sc.decision.Key.Selector
		if supersededKeys[ik] {
			continue
		}
		allStarts = append(allStarts, sc.decision)
	}

	for _, inst := range e.lifecycle.ActiveInstances() {
		ik := inst.Key.IntentID + "\x00" + inst.Key.Selector
		if supersededKeys[ik] && !endedThisFrame(allEnds, inst.Key) {
			allEnds = append(allEnds, lifecycle.EndDecision{Key: inst.Key, Reason: intent.ReasonSuperseded})
			allContinues = removeContinuation(allContinues, inst.Key)
		}
	}

	return e.lifecycle.Apply(f.Timestamp, allStarts, allContinues, allEnds)
}

func endedThisFrame(ends []lifecycle.EndDecision, key intent.InstanceKey) bool {
	for _, e := range ends {
		if e.Key == key {
			return true
		}
	}
	return false
}

func removeContinuation(continues []lifecycle.ContinueDecision, key intent.InstanceKey) []lifecycle.ContinueDecision {
	out := continues[:0]
	for _, c := range continues {
		if c.Key != key {
			out = append(out, c)
		}
	}
	return out
}

// Reset drops all frame history and ends every active instance with
// reason "cleared".
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	events := e.lifecycle.Clear(e.lastFrame, nil)
	e.history.Reset()
	e.haveFrame = false
	e.lastFrame = 0
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

// Configure atomically replaces the intent set and, optionally, the
// conflict-resolution config. Intents whose id disappears or whose
// definition changed structurally are ended with reason "cleared"; new
// intents start cold. Validation errors fail the call atomically without
// mutating any engine state.
func (e *Engine) Configure(intents []intent.Definition, resolveCfg *resolver.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := map[string]intent.Definition{}
	order := make([]string, 0, len(intents))
	for _, def := range intents {
		if def.ID == "" {
			return fmt.Errorf("engine: configure: intent with empty id")
		}
		if _, dup := next[def.ID]; dup {
			return fmt.Errorf("engine: configure: duplicate intent id %q", def.ID)
		}
		if err := def.Pattern.Validate(); err != nil {
			return fmt.Errorf("engine: configure: intent %q: %w", def.ID, err)
		}
		next[def.ID] = def.WithDefaults()
		order = append(order, def.ID)
	}

	var toClear []string
	for id, prev := range e.intents {
		cur, stillPresent := next[id]
		if !stillPresent || structurallyChanged(prev, cur) {
			toClear = append(toClear, id)
		}
	}

	e.intents = next
	e.order = order
	if resolveCfg != nil {
		e.resolveCfg = *resolveCfg
	}

	if len(toClear) > 0 {
		clearSet := map[string]bool{}
		for _, id := range toClear {
			clearSet[id] = true
		}
		events := e.lifecycle.Clear(e.lastFrame, func(inst intent.ActiveInstance) bool {
			return clearSet[inst.IntentID]
		})
		for _, ev := range events {
			e.bus.Publish(ev)
		}
	}
	return nil
}

func structurallyChanged(a, b intent.Definition) bool {
	return !reflect.DeepEqual(a, b)
}

// Subscribe registers cb for events matching intentID and phase; an empty
// intentID or phase acts as a wildcard. Returns an unsubscribe handle.
func (e *Engine) Subscribe(intentID string, phase intent.Phase, cb dispatch.Callback) *dispatch.Subscription {
	return e.bus.Subscribe(intentID, phase, cb)
}

// ActiveActions returns a read-only snapshot of currently active
// instances.
func (e *Engine) ActiveActions() []intent.ActiveInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lifecycle.ActiveInstances()
}

// CurrentConfig returns a read-only snapshot of the resolver config
// currently in effect.
func (e *Engine) CurrentConfig() resolver.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolveCfg
}
