// Package machine defines the stationary stations of the grid: the hand-off
// contract every station implements, the registry mapping footprint cells to
// stations, and the concrete variants (processor, sink, generator, blocker).
package machine

import (
	"beltline/grid"
	"beltline/item"
)

// Machine is the capability contract for every stationary station.
//
// CanAcceptFrom is a pure predicate with no side effects. TryStartProcess is
// side-effecting: on success the machine takes sole ownership of the item and
// its visual handle; on failure the caller retains ownership and no shared
// state has changed.
type Machine interface {
	Name() string
	Footprint() []grid.Coord
	CanAcceptFrom(dir grid.Direction) bool
	TryStartProcess(it *item.Item) bool
}

// Stepper is implemented by machines that do per-tick work (processing
// timers, re-emission retries). Stepping happens during the commit phase.
type Stepper interface {
	Step(tick uint64)
}

// Emitter places a finished item back into the world. Implemented by the
// simulation: it first offers the item to a machine occupying the cell, then
// to a free transport cell, and reports false when both fail so the machine
// stalls and retries next tick.
type Emitter interface {
	EmitAt(c grid.Coord, approach grid.Direction, it *item.Item) bool
}

// Registry maps every occupied cell to the machine located there.
type Registry struct {
	byCell map[grid.Coord]Machine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCell: make(map[grid.Coord]Machine)}
}

// Register keys a machine under every cell of its footprint. Cells already
// claimed by another machine are skipped; the machine is still registered on
// its free cells. Registration is idempotent per cell.
func (r *Registry) Register(m Machine) {
	for _, c := range m.Footprint() {
		if _, taken := r.byCell[c]; taken {
			continue
		}
		r.byCell[c] = m
	}
}

// Unregister removes all footprint cells of a machine. Unknown machines are
// a soft no-op so destroying twice never halts the tick loop.
func (r *Registry) Unregister(m Machine) {
	for _, c := range m.Footprint() {
		if r.byCell[c] == m {
			delete(r.byCell, c)
		}
	}
}

// At returns the machine occupying a cell, if any.
func (r *Registry) At(c grid.Coord) (Machine, bool) {
	m, ok := r.byCell[c]
	return m, ok
}

// Len returns the number of registered footprint cells.
func (r *Registry) Len() int { return len(r.byCell) }

func typeAccepted(accepts []string, typ string) bool {
	if len(accepts) == 0 {
		return true
	}
	for _, t := range accepts {
		if t == typ {
			return true
		}
	}
	return false
}
