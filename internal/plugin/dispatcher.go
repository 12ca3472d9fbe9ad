package plugin

import (
	"fmt"
	"log"

	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/store"
)

// Dispatcher bridges engine lifecycle events to bound plugin actions. It
// is registered as a subscriber on the engine's event bus; each delivered
// event is matched against the store's (intent, phase) bindings and every
// enabled binding's plugin is executed.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	bindings *store.BindingRepository
}

// NewDispatcher creates a Dispatcher over the given manager, executor, and
// binding repository.
func NewDispatcher(m *Manager, e *Executor, b *store.BindingRepository) *Dispatcher {
	return &Dispatcher{
		manager:  m,
		executor: e,
		bindings: b,
	}
}

// HandleEvent executes every plugin action bound to the event's intent and
// phase. One failing plugin does not prevent the rest from running; only a
// binding lookup failure is surfaced to the bus.
func (d *Dispatcher) HandleEvent(ev intent.Event) error {
	bindings, err := d.bindings.GetByIntentPhase(ev.IntentID, string(ev.Phase))
	if err != nil {
		return fmt.Errorf("failed to look up bindings for %s/%s: %w", ev.IntentID, ev.Phase, err)
	}

	for _, b := range bindings {
		plug, err := d.manager.Get(b.PluginName)
		if err != nil {
			log.Printf("plugin: binding %s references unknown plugin %q", b.ID, b.PluginName)
			continue
		}

		req := requestFromEvent(b, ev)
		resp, err := d.executor.Execute(plug, req)
		if err != nil {
			log.Printf("plugin: %s action %s failed for %s/%s: %v", b.PluginName, b.ActionName, ev.IntentID, ev.Phase, err)
			continue
		}
		if !resp.Success {
			log.Printf("plugin: %s action %s reported failure for %s/%s: %s", b.PluginName, b.ActionName, ev.IntentID, ev.Phase, resp.Error)
		}
	}

	return nil
}

// requestFromEvent copies the event's payload into the plugin wire shape.
func requestFromEvent(b *store.Binding, ev intent.Event) *Request {
	return &Request{
		Action:     b.ActionName,
		IntentID:   ev.IntentID,
		Phase:      string(ev.Phase),
		InstanceID: ev.InstanceID,
		Hand:       string(ev.Hand),
		Position:   Position{X: ev.Position.X, Y: ev.Position.Y, Z: ev.Position.Z},
		DurationMs: ev.DurationMs,
		Reason:     string(ev.Reason),
		Config:     b.Config,
	}
}
