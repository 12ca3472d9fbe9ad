// Package recorder persists emitted lifecycle events to the store's
// diagnostic event log. It is an ordinary bus subscriber; the engine core
// never touches the store.
package recorder

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/kinetic/internal/intent"
	"github.com/ayusman/kinetic/internal/store"
)

// Recorder writes each delivered event's wire form to the event log.
type Recorder struct {
	events *store.EventRepository
}

// New creates a Recorder over the given event repository.
func New(events *store.EventRepository) *Recorder {
	return &Recorder{events: events}
}

// HandleEvent logs one event. Returned errors are reported by the bus's
// error hook and do not interrupt delivery to other subscribers.
func (r *Recorder) HandleEvent(ev intent.Event) error {
	payload, err := json.Marshal(ev.Wire())
	if err != nil {
		return fmt.Errorf("recorder: marshal event: %w", err)
	}

	rec := &store.EventRecord{
		IntentID:    ev.IntentID,
		InstanceID:  ev.InstanceID,
		Phase:       string(ev.Phase),
		TimestampMs: ev.Timestamp,
		Payload:     payload,
	}
	if err := r.events.Append(rec); err != nil {
		return fmt.Errorf("recorder: append event: %w", err)
	}
	return nil
}
