package sim

import (
	"sort"

	"beltline/transport"
)

// Snapshot is the per-tick world view streamed to observers. Logical state
// only: positions are cell-centered with an interpolation progress so a
// client can ease movement without owning any simulation state.
type Snapshot struct {
	Tick     uint64            `json:"tick"`
	Phase    string            `json:"phase"`
	Items    []ItemSnapshot    `json:"items"`
	Machines []MachineSnapshot `json:"machines"`
	Power    PowerSnapshot     `json:"power"`
}

type ItemSnapshot struct {
	Agent    uint32  `json:"agent"`
	Type     string  `json:"type"`
	Cell     [2]int  `json:"cell"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Progress float64 `json:"progress"`
}

type MachineSnapshot struct {
	Name     string  `json:"name"`
	Cell     [2]int  `json:"cell"`
	Busy     bool    `json:"busy"`
	Progress float64 `json:"progress"`
	Charge   float64 `json:"charge"`
	Stalls   uint64  `json:"stalls"`
}

type PowerSnapshot struct {
	Phase     string  `json:"phase"`
	Available float64 `json:"available"`
	Granted   float64 `json:"granted"`
}

// Snapshot builds the current world view.
func (s *Sim) Snapshot() Snapshot {
	tick := s.clock.Tick()
	snap := Snapshot{
		Tick:  tick,
		Phase: s.phaseFor(tick).String(),
		Power: PowerSnapshot{
			Phase:     s.phaseFor(tick).String(),
			Available: s.alloc.AvailableWatts(),
			Granted:   s.alloc.GrantedWatts(),
		},
	}

	ids := make([]transport.AgentID, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		cargo, pos, motion, _ := s.agentMapper.Get(s.agents[id])
		progress := motion.Progress()
		px, py := s.grid.CellCenter(pos.Prev)
		cx, cy := s.grid.CellCenter(pos.Current)
		snap.Items = append(snap.Items, ItemSnapshot{
			Agent:    uint32(id),
			Type:     cargo.Item.Type,
			Cell:     [2]int{pos.Current.X, pos.Current.Y},
			X:        px + (cx-px)*progress,
			Y:        py + (cy-py)*progress,
			Progress: progress,
		})
	}

	for _, p := range s.processors {
		snap.Machines = append(snap.Machines, MachineSnapshot{
			Name:     p.Name(),
			Cell:     [2]int{p.Cell().X, p.Cell().Y},
			Busy:     p.Busy(),
			Progress: p.Progress(),
			Charge:   s.alloc.Charge(p),
			Stalls:   p.Stalls(),
		})
	}
	for _, sk := range s.sinks {
		snap.Machines = append(snap.Machines, MachineSnapshot{
			Name: sk.Name(),
			Cell: [2]int{sk.Cell().X, sk.Cell().Y},
		})
	}
	return snap
}
