// Package grid holds the authoritative cell map for the simulation.
// All occupancy state changes go through Grid mutators; components must
// re-query before acting and never trust cached cell state.
package grid

import "math"

// Coord identifies a cell by integer grid coordinates.
type Coord struct {
	X, Y int
}

// Add returns the coordinate one step in the given direction.
func (c Coord) Add(d Direction) Coord {
	dx, dy := d.Delta()
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Terrain classifies what a cell is made of.
type Terrain uint8

const (
	TerrainEmpty Terrain = iota
	TerrainTransport
	TerrainJunction
	TerrainMachine
)

// String returns the string representation of a terrain kind.
func (t Terrain) String() string {
	switch t {
	case TerrainTransport:
		return "Transport"
	case TerrainJunction:
		return "Junction"
	case TerrainMachine:
		return "Machine"
	default:
		return "Empty"
	}
}

// CellState is the full state of one cell. It is returned by value; callers
// cannot mutate the grid through it.
type CellState struct {
	Terrain    Terrain
	Dir        Direction // transport direction, DirNone for non-transport cells
	HasItem    bool
	HasMachine bool
	Broken     bool // blueprint/broken cells neither transport nor accept
}

// Carries reports whether the cell can carry a moving item.
func (s CellState) Carries() bool {
	if s.Broken {
		return false
	}
	return s.Terrain == TerrainTransport || s.Terrain == TerrainJunction
}

// Grid is the authoritative map from cell coordinate to cell state.
type Grid struct {
	width, height int
	cellSize      float64
	cells         []CellState
}

// New creates a grid of width x height cells, each cellSize world units wide.
func New(width, height int, cellSize float64) *Grid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{
		width:    width,
		height:   height,
		cellSize: cellSize,
		cells:    make([]CellState, width*height),
	}
}

// Width returns the grid width in cells.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *Grid) Height() int { return g.height }

// CellSize returns the world-space cell edge length.
func (g *Grid) CellSize() float64 { return g.cellSize }

// InBounds reports whether the coordinate lies inside the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

// CellAt returns the state of a cell. Out-of-bounds coordinates fail softly
// with ok == false; no caller in the tick loop may treat that as fatal.
func (g *Grid) CellAt(c Coord) (CellState, bool) {
	if !g.InBounds(c) {
		return CellState{}, false
	}
	return g.cells[c.Y*g.width+c.X], true
}

// SetTerrain assigns terrain and transport direction to a cell.
// Returns false for out-of-bounds coordinates.
func (g *Grid) SetTerrain(c Coord, t Terrain, dir Direction) bool {
	if !g.InBounds(c) {
		return false
	}
	cell := &g.cells[c.Y*g.width+c.X]
	cell.Terrain = t
	cell.Dir = dir
	return true
}

// SetBroken marks a cell broken or repaired.
func (g *Grid) SetBroken(c Coord, broken bool) bool {
	if !g.InBounds(c) {
		return false
	}
	g.cells[c.Y*g.width+c.X].Broken = broken
	return true
}

// SetItem marks a cell as occupied by a mobile item. Returns false if the
// coordinate is out of bounds or the cell already holds an item.
func (g *Grid) SetItem(c Coord) bool {
	if !g.InBounds(c) {
		return false
	}
	cell := &g.cells[c.Y*g.width+c.X]
	if cell.HasItem {
		return false
	}
	cell.HasItem = true
	return true
}

// ClearItem clears the item occupancy flag of a cell.
func (g *Grid) ClearItem(c Coord) bool {
	if !g.InBounds(c) {
		return false
	}
	g.cells[c.Y*g.width+c.X].HasItem = false
	return true
}

// SetMachine marks a cell as reserved by a machine footprint.
func (g *Grid) SetMachine(c Coord) bool {
	if !g.InBounds(c) {
		return false
	}
	cell := &g.cells[c.Y*g.width+c.X]
	if cell.HasMachine {
		return false
	}
	cell.Terrain = TerrainMachine
	cell.HasMachine = true
	return true
}

// ClearMachine releases a machine footprint cell back to empty terrain.
func (g *Grid) ClearMachine(c Coord) bool {
	if !g.InBounds(c) {
		return false
	}
	cell := &g.cells[c.Y*g.width+c.X]
	cell.HasMachine = false
	if cell.Terrain == TerrainMachine {
		cell.Terrain = TerrainEmpty
	}
	return true
}

// CellCenter returns the world-space center of a cell.
func (g *Grid) CellCenter(c Coord) (x, y float64) {
	return (float64(c.X) + 0.5) * g.cellSize, (float64(c.Y) + 0.5) * g.cellSize
}

// Snap converts a world-space position to the containing cell coordinate.
func (g *Grid) Snap(wx, wy float64) Coord {
	return Coord{
		X: int(math.Floor(wx / g.cellSize)),
		Y: int(math.Floor(wy / g.cellSize)),
	}
}

// RouteFrom decides the outgoing direction for an item sitting on the cell at
// c that arrived travelling in incoming. Transport cells route by their fixed
// direction. Junctions prefer passing straight through; when the straight
// neighbor cannot carry, they fall back clockwise to the first neighbor that
// can. Returns DirNone when the item cannot move from here.
func (g *Grid) RouteFrom(c Coord, incoming Direction) Direction {
	cell, ok := g.CellAt(c)
	if !ok || cell.Broken {
		return DirNone
	}
	switch cell.Terrain {
	case TerrainTransport:
		return cell.Dir
	case TerrainJunction:
		start := incoming
		if start == DirNone {
			start = cell.Dir
		}
		if start == DirNone {
			start = DirNorth
		}
		dir := start
		for i := 0; i < 4; i++ {
			if dir != incoming.Opposite() {
				if next, ok := g.CellAt(c.Add(dir)); ok {
					if next.Carries() || next.HasMachine {
						return dir
					}
				}
			}
			dir = dir.Clockwise()
		}
		return DirNone
	default:
		return DirNone
	}
}
