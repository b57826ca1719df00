package machine

import (
	"beltline/grid"
	"beltline/item"
)

// Blocker reserves the non-primary cells of a multi-cell machine so the
// grid's occupancy model stays uniform. It never accepts and never emits.
type Blocker struct {
	name  string
	cells []grid.Coord
}

// NewBlocker creates a blocker over the given cells.
func NewBlocker(name string, cells ...grid.Coord) *Blocker {
	return &Blocker{name: name, cells: cells}
}

// Name returns the machine's configured name.
func (b *Blocker) Name() string { return b.name }

// Footprint returns all reserved cells.
func (b *Blocker) Footprint() []grid.Coord { return b.cells }

// CanAcceptFrom always reports false.
func (b *Blocker) CanAcceptFrom(grid.Direction) bool { return false }

// TryStartProcess always fails; the caller keeps the item.
func (b *Blocker) TryStartProcess(*item.Item) bool { return false }
