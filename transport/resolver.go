// Package transport implements the two-phase intent/commit protocol that
// arbitrates which item agents may advance each tick. Agents submit intents
// during tick-start and never mutate shared state; the resolver decides at
// commit, granting at most one intent per destination cell.
package transport

import (
	"sort"

	"beltline/grid"
)

// AgentID identifies an item agent. IDs increase monotonically over the run,
// which makes the lowest-ID-first tie-break stable and reproducible.
type AgentID uint32

// Intent is a one-tick-lived request to move from one cell to an adjacent
// cell. It is created at tick-start and consumed at commit, never persisted.
type Intent struct {
	Agent AgentID
	From  grid.Coord
	To    grid.Coord
	Dir   grid.Direction
}

// Decision is the resolver's verdict on one intent.
type Decision struct {
	Intent
	Granted bool
}

// Resolver collects the tick's intents and arbitrates them at commit.
type Resolver struct {
	pending []Intent
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Submit queues an intent for this tick's arbitration.
func (r *Resolver) Submit(in Intent) {
	r.pending = append(r.pending, in)
}

// Pending returns the number of intents queued this tick.
func (r *Resolver) Pending() int { return len(r.pending) }

// Arbitrate resolves all submitted intents and clears the queue. Intents are
// ordered by agent ID, lowest first, and at most one intent per destination
// cell is granted. The returned decisions keep that order. The tie-break is
// a documented property: given the same set of intents, the same agent wins.
func (r *Resolver) Arbitrate() []Decision {
	if len(r.pending) == 0 {
		return nil
	}

	intents := r.pending
	r.pending = nil
	sort.Slice(intents, func(i, j int) bool {
		return intents[i].Agent < intents[j].Agent
	})

	taken := make(map[grid.Coord]bool, len(intents))
	decisions := make([]Decision, 0, len(intents))
	for _, in := range intents {
		d := Decision{Intent: in}
		if !taken[in.To] {
			taken[in.To] = true
			d.Granted = true
		}
		decisions = append(decisions, d)
	}
	return decisions
}
