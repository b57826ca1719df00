package sim

import (
	"github.com/mlange-42/ark/ecs"

	"beltline/components"
	"beltline/grid"
	"beltline/item"
	"beltline/transport"
)

// spawnAgent creates a new item agent on a free transport cell. The cell
// occupancy flag and the visual handle are claimed atomically with the
// entity: either all succeed or nothing changes.
func (s *Sim) spawnAgent(c grid.Coord, itemType string) bool {
	it := item.New(itemType)
	return s.placeAgent(c, grid.DirNone, it, true)
}

// placeAgent puts an item (fresh or re-emitted by a machine) onto a cell as
// a new agent. Fresh items still need a visual handle minted.
func (s *Sim) placeAgent(c grid.Coord, incoming grid.Direction, it *item.Item, mintHandle bool) bool {
	if !s.grid.SetItem(c) {
		return false
	}
	if mintHandle {
		s.nextHandle++
		if !it.Visual.Give(s.nextHandle) {
			s.grid.ClearItem(c)
			return false
		}
	}

	s.nextAgentID++
	id := s.nextAgentID
	entity := s.agentMapper.NewEntity(
		&components.Cargo{Item: it},
		&components.CellPos{Current: c, Prev: c},
		&components.Motion{TicksPerCell: s.cfg.Transport.TicksPerCell},
		&components.AgentState{ID: id, Phase: components.AgentIdle, LastDir: incoming},
	)
	s.agents[id] = entity
	return true
}

func (s *Sim) removeAgent(id transport.AgentID, entity ecs.Entity) {
	delete(s.agents, id)
	s.world.RemoveEntity(entity)
}

// EmitAt implements machine.Emitter. A machine re-emitting an item first
// offers it to a machine occupying the output cell, then to a free transport
// cell; when both refuse, the caller stalls and retries next tick.
func (s *Sim) EmitAt(c grid.Coord, approach grid.Direction, it *item.Item) bool {
	if m, ok := s.registry.At(c); ok {
		if m.CanAcceptFrom(approach) && m.TryStartProcess(it) {
			s.stats.RecordHandoff()
			return true
		}
		return false
	}
	cell, ok := s.grid.CellAt(c)
	if !ok || !cell.Carries() || cell.Broken || cell.HasItem {
		return false
	}
	return s.placeAgent(c, approach, it, false)
}

// agentAt finds the agent occupying a cell. Linear over live agents; used
// by snapshots and tests, never on the tick path.
func (s *Sim) agentAt(c grid.Coord) (transport.AgentID, ecs.Entity, bool) {
	for id, entity := range s.agents {
		_, pos, _, _ := s.agentMapper.Get(entity)
		if pos.Current == c {
			return id, entity, true
		}
	}
	return 0, ecs.Entity{}, false
}

// ItemTypeAt reports the item type sitting on a cell, if any.
func (s *Sim) ItemTypeAt(c grid.Coord) (string, bool) {
	_, entity, ok := s.agentAt(c)
	if !ok {
		return "", false
	}
	cargo, _, _, _ := s.agentMapper.Get(entity)
	return cargo.Item.Type, true
}
