package sim

import (
	"encoding/json"

	"github.com/mlange-42/ark/ecs"

	"beltline/components"
	"beltline/grid"
	"beltline/power"
	"beltline/replay"
	"beltline/transport"
)

// phaseFor converts a tick into the day/night phase. A zero-length night
// disables the cycle.
func (s *Sim) phaseFor(tick uint64) power.Phase {
	day := uint64(s.cfg.Power.DayTicks)
	night := uint64(s.cfg.Power.NightTicks)
	if day == 0 || night == 0 {
		return power.PhaseDay
	}
	if tick%(day+night) < day {
		return power.PhaseDay
	}
	return power.PhaseNight
}

// tickStart runs power allocation, advances in-flight motion, and submits
// movement intents for idle agents.
func (s *Sim) tickStart(tick uint64) {
	s.alloc.BeginTick(s.phaseFor(tick))
	s.stats.RecordPower(s.alloc.AvailableWatts(), s.alloc.GrantedWatts())

	gated := s.beltNet != nil && !s.alloc.IsPowered(s.beltNet)

	// Collect first, mutate after.
	var entities []ecs.Entity
	query := s.agentFilter.Query()
	for query.Next() {
		entities = append(entities, query.Entity())
	}

	for _, entity := range entities {
		_, pos, motion, state := s.agentMapper.Get(entity)

		if state.Phase == components.AgentMoving {
			motion.TicksRemaining--
			if motion.TicksRemaining <= 0 {
				motion.TicksRemaining = 0
				state.Phase = components.AgentIdle
			}
		}
		if state.Phase != components.AgentIdle || gated {
			continue
		}

		dir := s.grid.RouteFrom(pos.Current, state.LastDir)
		if dir == grid.DirNone { // dead end or broken cell
			continue
		}
		dest := pos.Current.Add(dir)

		if m, ok := s.registry.At(dest); ok {
			if !m.CanAcceptFrom(dir) {
				state.WaitTicks++
				continue
			}
		} else {
			cell, ok := s.grid.CellAt(dest)
			if !ok || !cell.Carries() || cell.Broken || cell.HasItem {
				state.WaitTicks++
				continue
			}
		}

		s.resolver.Submit(transport.Intent{
			Agent: state.ID,
			From:  pos.Current,
			To:    dest,
			Dir:   dir,
		})
		state.Phase = components.AgentAwaitingDecision
		s.stats.RecordIntent()
	}
}

// tickCommit arbitrates pending intents, applies the outcomes, and then
// steps the machines.
func (s *Sim) tickCommit(tick uint64) {
	for _, d := range s.resolver.Arbitrate() {
		entity, ok := s.agents[d.Agent]
		if !ok {
			continue
		}
		cargo, pos, motion, state := s.agentMapper.Get(entity)

		if !d.Granted {
			state.Phase = components.AgentIdle
			state.WaitTicks++
			s.stats.RecordDenial()
			s.record(replay.Event{
				Tick: tick, Kind: "deny", Agent: uint32(d.Agent),
				From: [2]int{d.From.X, d.From.Y}, To: [2]int{d.To.X, d.To.Y},
			})
			continue
		}

		if m, ok := s.registry.At(d.To); ok {
			// Hand-off: ownership of the item and its visual handle
			// transfers only when the machine says yes.
			itemType := cargo.Item.Type
			if m.TryStartProcess(cargo.Item) {
				s.grid.ClearItem(d.From)
				s.removeAgent(d.Agent, entity)
				s.stats.RecordHandoff()
				s.record(replay.Event{
					Tick: tick, Kind: "handoff", Agent: uint32(d.Agent),
					Item: itemType, To: [2]int{d.To.X, d.To.Y},
				})
			} else {
				state.Phase = components.AgentIdle
				state.WaitTicks++
				s.stats.RecordHandoffFailure()
			}
			continue
		}

		// Logical move commits instantly; the remaining ticks only gate
		// the next intent and drive visual interpolation.
		s.grid.ClearItem(d.From)
		s.grid.SetItem(d.To)
		pos.Prev = d.From
		pos.Current = d.To
		motion.TicksRemaining = motion.TicksPerCell
		state.Phase = components.AgentMoving
		state.LastDir = d.Dir
		s.stats.RecordGrant(state.WaitTicks)
		state.WaitTicks = 0
		s.record(replay.Event{
			Tick: tick, Kind: "grant", Agent: uint32(d.Agent),
			From: [2]int{d.From.X, d.From.Y}, To: [2]int{d.To.X, d.To.Y},
		})
	}

	for _, st := range s.steppers {
		st.Step(tick)
	}
	total := uint64(0)
	for _, p := range s.processors {
		total += p.Stalls()
	}
	for ; s.lastStalls < total; s.lastStalls++ {
		s.stats.RecordStall()
	}
}

// tickEnd runs spawners and flushes the per-window outputs.
func (s *Sim) tickEnd(tick uint64) {
	for _, sp := range s.spawners {
		if tick%uint64(sp.interval) != 0 {
			continue
		}
		cell, ok := s.grid.CellAt(sp.cell)
		if !ok || cell.HasItem {
			continue // occupied; skip this cycle rather than queue
		}
		if s.spawnAgent(sp.cell, sp.itemType) {
			s.stats.RecordSpawn()
			s.record(replay.Event{
				Tick: tick, Kind: "spawn", Item: sp.itemType,
				To: [2]int{sp.cell.X, sp.cell.Y},
			})
		}
	}

	if s.stats.ShouldFlush(tick) {
		ws := s.stats.Flush(tick, len(s.agents), s.busyProcessors())
		s.log.Info("stats", "window", ws)
		if s.output != nil {
			if err := s.output.AppendStats(ws); err != nil {
				s.log.Warn("stats append failed", "error", err)
			}
		}
		s.record(replay.Event{
			Tick: tick, Kind: "power",
			Available: s.alloc.AvailableWatts(), Granted: s.alloc.GrantedWatts(),
		})
	}

	if s.snapshotFn != nil {
		if b, err := json.Marshal(s.Snapshot()); err == nil {
			s.snapshotFn(b)
		}
	}
}

func (s *Sim) busyProcessors() int {
	n := 0
	for _, p := range s.processors {
		if p.Busy() {
			n++
		}
	}
	return n
}
