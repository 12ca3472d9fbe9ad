// Package resolver enforces global and per-group concurrency caps across a
// frame's candidate active instances, with deterministic priority +
// hysteresis ordering.
package resolver

import "sort"

// Strategy names a group limit's selection strategy. Only "top-k" is
// currently defined.
type Strategy string

const TopK Strategy = "top-k"

// GroupLimit caps the number of concurrently active instances in a group.
type GroupLimit struct {
	Max      int
	Strategy Strategy
}

// Config is the conflict-resolution configuration: a global cap plus
// per-group limits. MaxConcurrentIntents <= 0 means unbounded.
type Config struct {
	MaxConcurrentIntents int
	GroupLimits          map[string]GroupLimit
}

// DefaultConfig returns an unbounded configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrentIntents: 0, GroupLimits: map[string]GroupLimit{}}
}

// Candidate is one instance competing for a concurrency slot this frame.
type Candidate struct {
	InstanceKey string // opaque, stable identity for tie-breaking
	IntentID    string
	Group       string
	Priority    int
	AlreadyActive bool
	StartedAt   int64
}

// Resolve buckets candidates by group, applies each group's limit, then
// applies the global cap across survivors. Returns the kept candidates
// and the candidates to end with reason "superseded".
func Resolve(cfg Config, candidates []Candidate) (kept []Candidate, superseded []Candidate) {
	byGroup := map[string][]Candidate{}
	order := []string{}
	for _, c := range candidates {
		if _, ok := byGroup[c.Group]; !ok {
			order = append(order, c.Group)
		}
		byGroup[c.Group] = append(byGroup[c.Group], c)
	}

	var survivors []Candidate
	for _, g := range order {
		group := byGroup[g]
		limit, hasLimit := cfg.GroupLimits[g]
		if !hasLimit || limit.Max <= 0 || len(group) <= limit.Max {
			survivors = append(survivors, group...)
			continue
		}
		ranked := rank(group)
		survivors = append(survivors, ranked[:limit.Max]...)
		superseded = append(superseded, ranked[limit.Max:]...)
	}

	if cfg.MaxConcurrentIntents <= 0 || len(survivors) <= cfg.MaxConcurrentIntents {
		return survivors, superseded
	}

	ranked := rank(survivors)
	kept = ranked[:cfg.MaxConcurrentIntents]
	superseded = append(superseded, ranked[cfg.MaxConcurrentIntents:]...)
	return kept, superseded
}

// rank sorts candidates by (priority desc, already-active desc, started_at
// asc, intent_id asc) — priority wins, ties broken by hysteresis (an
// already-active instance beats a brand-new candidate), remaining ties
// broken by age then id for full determinism.
func rank(cs []Candidate) []Candidate {
	out := make([]Candidate, len(cs))
	copy(out, cs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.AlreadyActive != b.AlreadyActive {
			return a.AlreadyActive
		}
		if a.StartedAt != b.StartedAt {
			return a.StartedAt < b.StartedAt
		}
		return a.IntentID < b.IntentID
	})
	return out
}
