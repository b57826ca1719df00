package machine

import (
	"beltline/grid"
	"beltline/item"
	"beltline/power"
)

// Generator is a pure power source. It never accepts items and occupies its
// footprint like any other machine.
type Generator struct {
	name       string
	cell       grid.Coord
	dayWatts   float64
	nightWatts float64
}

// NewGenerator creates a generator with per-phase output.
func NewGenerator(name string, cell grid.Coord, dayWatts, nightWatts float64) *Generator {
	return &Generator{name: name, cell: cell, dayWatts: dayWatts, nightWatts: nightWatts}
}

// Name returns the machine's configured name.
func (g *Generator) Name() string { return g.name }

// Footprint returns the single cell the generator occupies.
func (g *Generator) Footprint() []grid.Coord { return []grid.Coord{g.cell} }

// OutputWatts implements power.Source.
func (g *Generator) OutputWatts(phase power.Phase) float64 {
	if phase == power.PhaseNight {
		return g.nightWatts
	}
	return g.dayWatts
}

// CanAcceptFrom always reports false; generators take no items.
func (g *Generator) CanAcceptFrom(grid.Direction) bool { return false }

// TryStartProcess always fails; the caller keeps the item.
func (g *Generator) TryStartProcess(*item.Item) bool { return false }
