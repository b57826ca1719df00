// Package components defines ECS components for item agents.
package components

import (
	"beltline/grid"
	"beltline/item"
	"beltline/transport"
)

// AgentPhase is the movement state machine of an item agent.
type AgentPhase uint8

const (
	AgentIdle AgentPhase = iota
	AgentAwaitingDecision
	AgentMoving
	AgentRetired
)

// String returns the string representation of an agent phase.
func (p AgentPhase) String() string {
	switch p {
	case AgentAwaitingDecision:
		return "AwaitingDecision"
	case AgentMoving:
		return "Moving"
	case AgentRetired:
		return "Retired"
	default:
		return "Idle"
	}
}

// Cargo carries the logical item payload. The agent owns the item (and its
// visual handle) until a machine hand-off transfers the pointer.
type Cargo struct {
	Item *item.Item
}

// CellPos tracks where the agent logically is. Current updates at commit;
// Prev is the cell the grant departed from, kept for visual interpolation.
type CellPos struct {
	Current grid.Coord
	Prev    grid.Coord
}

// Motion expresses movement duration in ticks per cell, not wall-clock time,
// so progress resumes exactly across pause/resume.
type Motion struct {
	TicksPerCell   int
	TicksRemaining int
}

// Progress returns interpolation progress in [0, 1] for the visual layer.
// Logical tick counts are never eased; easing is a visual-only concern.
func (m Motion) Progress() float64 {
	if m.TicksPerCell <= 0 || m.TicksRemaining <= 0 {
		return 1
	}
	return 1 - float64(m.TicksRemaining)/float64(m.TicksPerCell)
}

// AgentState bundles identity and the movement state machine.
type AgentState struct {
	ID        transport.AgentID
	Phase     AgentPhase
	LastDir   grid.Direction // last incoming direction, used by junctions
	WaitTicks int            // consecutive ticks denied, for telemetry
}
