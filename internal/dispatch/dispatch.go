// Package dispatch delivers lifecycle events to subscribers, synchronously
// and in the order the engine produced them. A callback's error or panic is
// isolated to that callback and never interrupts delivery to the rest.
package dispatch

import (
	"log"
	"sort"
	"sync"

	"github.com/ayusman/kinetic/internal/intent"
)

// Callback receives one lifecycle event. A non-nil error is logged by the
// bus and does not prevent delivery to other subscribers.
type Callback func(intent.Event) error

// subscription key: an empty IntentID or empty Phase means "any".
type key struct {
	intentID string
	phase    intent.Phase
}

// Bus is a (intent_id, phase)-keyed subscription bus. All methods are safe
// for concurrent use; delivery itself runs synchronously on the caller's
// goroutine inside Publish.
type Bus struct {
	mu   sync.RWMutex
	subs map[key]map[int]Callback
	next int
}

// Subscription identifies a registered callback so it can be cancelled.
type Subscription struct {
	bus *Bus
	key key
	id  int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: map[key]map[int]Callback{}}
}

// Subscribe registers cb for events matching intentID and phase. An empty
// intentID matches every intent; an empty phase matches every phase.
func (b *Bus) Subscribe(intentID string, phase intent.Phase, cb Callback) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{intentID: intentID, phase: phase}
	if b.subs[k] == nil {
		b.subs[k] = map[int]Callback{}
	}
	b.next++
	id := b.next
	b.subs[k][id] = cb
	return &Subscription{bus: b, key: k, id: id}
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs[s.key], s.id)
}

// Publish delivers ev to every matching subscriber, in subscription order,
// catching both returned errors and panics so one broken subscriber cannot
// block the rest.
func (b *Bus) Publish(ev intent.Event) {
	b.mu.RLock()
	cbs := b.matching(ev.IntentID, ev.Phase)
	b.mu.RUnlock()

	for _, cb := range cbs {
		b.deliver(cb, ev)
	}
}

// matching must be called with at least a read lock held.
func (b *Bus) matching(intentID string, phase intent.Phase) []Callback {
	var ids []int
	byID := map[int]Callback{}
	candidates := []key{
		{intentID: intentID, phase: phase},
		{intentID: intentID, phase: ""},
		{intentID: "", phase: phase},
		{intentID: "", phase: ""},
	}
	seen := map[key]bool{}
	for _, k := range candidates {
		if seen[k] {
			continue
		}
		seen[k] = true
		for id, cb := range b.subs[k] {
			ids = append(ids, id)
			byID[id] = cb
		}
	}
	// Subscription ids increase monotonically, so id order is subscription order.
	sort.Ints(ids)
	out := make([]Callback, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

func (b *Bus) deliver(cb Callback, ev intent.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: subscriber panicked on %s/%s: %v", ev.IntentID, ev.Phase, r)
		}
	}()
	if err := cb(ev); err != nil {
		log.Printf("dispatch: subscriber error on %s/%s: %v", ev.IntentID, ev.Phase, err)
	}
}
