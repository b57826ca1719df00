// Package sim owns the world: it builds the grid and machines from config,
// drives the intent/commit transport cycle off the tick clock, and feeds
// telemetry, replay, and observer outputs.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"beltline/components"
	"beltline/config"
	"beltline/grid"
	"beltline/item"
	"beltline/machine"
	"beltline/power"
	"beltline/replay"
	"beltline/telemetry"
	"beltline/tick"
	"beltline/transport"
)

// DeliveryListener is notified whenever a sink consumes an item.
type DeliveryListener func(itemType string, total int)

type deliverySub struct {
	id uint64
	fn DeliveryListener
}

type spawner struct {
	cell     grid.Coord
	itemType string
	interval int
}

// beltNetwork is the transport grid's aggregate power draw. When gating is
// enabled it registers as the first consumer so belts get priority over
// machines, and no intents are submitted on ticks it goes unpowered.
type beltNetwork struct {
	watts float64
}

func (b *beltNetwork) ConsumptionWatts() float64 { return b.watts }

// Sim holds the complete simulation state.
type Sim struct {
	cfg *config.Config
	log *slog.Logger

	grid     *grid.Grid
	clock    *tick.Clock
	alloc    *power.Allocator
	resolver *transport.Resolver
	registry *machine.Registry
	stats    *telemetry.Collector

	world       *ecs.World
	agentMapper *ecs.Map4[
		components.Cargo,
		components.CellPos,
		components.Motion,
		components.AgentState,
	]
	agentFilter ecs.Filter4[
		components.Cargo,
		components.CellPos,
		components.Motion,
		components.AgentState,
	]

	agents      map[transport.AgentID]ecs.Entity
	nextAgentID transport.AgentID
	nextHandle  item.Handle

	// Machines in creation order; stepping order must not depend on map
	// iteration.
	steppers   []machine.Stepper
	processors []*machine.Processor
	sinks      []*machine.Sink
	byName     map[string]machine.Machine
	lastStalls uint64

	beltNet  *beltNetwork
	spawners []spawner

	// Optional outputs, all nil-safe.
	output     *telemetry.OutputManager
	replay     *replay.Writer
	snapshotFn func([]byte)

	deliverySubs  []deliverySub
	nextDelivSub  uint64
	subscriptions [3]tick.Subscription
}

// New builds the world described by cfg and subscribes it to a fresh clock.
func New(cfg *config.Config, logger *slog.Logger) (*Sim, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sim{
		cfg:      cfg,
		log:      logger,
		grid:     grid.New(cfg.Grid.Width, cfg.Grid.Height, cfg.Grid.CellSize),
		clock:    tick.NewClock(cfg.Sim.TicksPerSecond),
		alloc:    power.NewAllocator(cfg.Power.ChargeTicks, cfg.Power.ChargeDecay),
		resolver: transport.NewResolver(),
		registry: machine.NewRegistry(),
		stats:    telemetry.NewCollector(cfg.Derived.StatsWindowTicks, cfg.Derived.SecondsPerTick),
		world:    ecs.NewWorld(),
		agents:   make(map[transport.AgentID]ecs.Entity),
		byName:   make(map[string]machine.Machine),
	}
	s.agentMapper = ecs.NewMap4[
		components.Cargo,
		components.CellPos,
		components.Motion,
		components.AgentState,
	](s.world)
	s.agentFilter = *ecs.NewFilter4[
		components.Cargo,
		components.CellPos,
		components.Motion,
		components.AgentState,
	](s.world)

	// The belt network registers before any machine so that grants favor
	// transport under scarcity.
	if cfg.Transport.GateTransport {
		s.beltNet = &beltNetwork{watts: cfg.Transport.Watts}
		s.alloc.RegisterConsumer(s.beltNet)
	}

	if err := s.buildLayout(); err != nil {
		return nil, err
	}
	if err := s.buildMachines(); err != nil {
		return nil, err
	}
	if err := s.buildSpawners(); err != nil {
		return nil, err
	}

	s.subscriptions[0] = s.clock.SubscribeStart(s.tickStart)
	s.subscriptions[1] = s.clock.SubscribeCommit(s.tickCommit)
	s.subscriptions[2] = s.clock.SubscribeTick(s.tickEnd)

	logger.Info("world built",
		"grid", fmt.Sprintf("%dx%d", cfg.Grid.Width, cfg.Grid.Height),
		"machines", len(s.byName),
		"spawners", len(s.spawners),
		"tps", s.clock.TPS(),
	)
	return s, nil
}

func (s *Sim) buildLayout() error {
	for i, b := range s.cfg.Belts {
		dir, ok := grid.ParseDirection(b.Dir)
		if !ok || dir == grid.DirNone {
			return fmt.Errorf("belt %d: bad direction %q", i, b.Dir)
		}
		c := grid.Coord{X: b.Start[0], Y: b.Start[1]}
		for j := 0; j < b.Length; j++ {
			if !s.grid.SetTerrain(c, grid.TerrainTransport, dir) {
				return fmt.Errorf("belt %d: cell %v out of bounds", i, c)
			}
			c = c.Add(dir)
		}
	}
	for i, j := range s.cfg.Junctions {
		c := grid.Coord{X: j[0], Y: j[1]}
		if !s.grid.SetTerrain(c, grid.TerrainJunction, grid.DirNone) {
			return fmt.Errorf("junction %d: cell %v out of bounds", i, c)
		}
	}
	return nil
}

func (s *Sim) buildMachines() error {
	for i := range s.cfg.Machines {
		mc := &s.cfg.Machines[i]
		cell := grid.Coord{X: mc.Cell[0], Y: mc.Cell[1]}
		input, ok := grid.ParseDirection(mc.Input)
		if !ok {
			return fmt.Errorf("machine %q: bad input %q", mc.Name, mc.Input)
		}
		facing, ok := grid.ParseDirection(mc.Facing)
		if !ok {
			return fmt.Errorf("machine %q: bad facing %q", mc.Name, mc.Facing)
		}

		var m machine.Machine
		switch mc.Kind {
		case "processor":
			p := machine.NewProcessor(mc.Name, cell, input, facing,
				s.cfg.ProcessingTicks(mc), mc.Watts, mc.Accepts, mc.Output, s.alloc, s)
			s.alloc.RegisterConsumer(p, cell)
			s.steppers = append(s.steppers, p)
			s.processors = append(s.processors, p)
			m = p
		case "sink":
			sk := machine.NewSink(mc.Name, cell, input, mc.Accepts, s.notifyDelivery)
			s.sinks = append(s.sinks, sk)
			m = sk
		case "generator":
			g := machine.NewGenerator(mc.Name, cell, mc.DayWatts, mc.NightWatts)
			s.alloc.RegisterSource(g, cell)
			m = g
		case "blocker":
			cells := []grid.Coord{cell}
			for _, e := range mc.Extra {
				cells = append(cells, grid.Coord{X: e[0], Y: e[1]})
			}
			m = machine.NewBlocker(mc.Name, cells...)
		default:
			return fmt.Errorf("machine %q: unknown kind %q", mc.Name, mc.Kind)
		}

		for _, c := range m.Footprint() {
			if !s.grid.SetMachine(c) {
				return fmt.Errorf("machine %q: cell %v unavailable", mc.Name, c)
			}
		}
		s.registry.Register(m)
		s.byName[mc.Name] = m
	}
	return nil
}

func (s *Sim) buildSpawners() error {
	for i, sp := range s.cfg.Spawners {
		if sp.IntervalTicks < 1 {
			return fmt.Errorf("spawner %d: interval must be positive", i)
		}
		c := grid.Coord{X: sp.Cell[0], Y: sp.Cell[1]}
		cell, ok := s.grid.CellAt(c)
		if !ok || !cell.Carries() {
			return fmt.Errorf("spawner %d: cell %v is not a transport cell", i, c)
		}
		s.spawners = append(s.spawners, spawner{cell: c, itemType: sp.Item, interval: sp.IntervalTicks})
	}
	return nil
}

// Clock returns the tick clock driving this world.
func (s *Sim) Clock() *tick.Clock { return s.clock }

// Grid returns the world grid.
func (s *Sim) Grid() *grid.Grid { return s.grid }

// Power returns the power allocator.
func (s *Sim) Power() *power.Allocator { return s.alloc }

// Stats returns the telemetry collector.
func (s *Sim) Stats() *telemetry.Collector { return s.stats }

// MachineByName looks up a configured machine.
func (s *Sim) MachineByName(name string) (machine.Machine, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// AgentCount returns the number of items travelling on the grid.
func (s *Sim) AgentCount() int { return len(s.agents) }

// Step advances the world by one tick.
func (s *Sim) Step() { s.clock.Step() }

// SetOutput attaches a CSV output manager. Pass before the first flush.
func (s *Sim) SetOutput(om *telemetry.OutputManager) { s.output = om }

// SetReplayWriter attaches an event log.
func (s *Sim) SetReplayWriter(w *replay.Writer) { s.replay = w }

// SetSnapshotFunc attaches a per-tick consumer of JSON world snapshots.
func (s *Sim) SetSnapshotFunc(fn func([]byte)) { s.snapshotFn = fn }

// SubscribeDeliveries registers a listener for sink deliveries and returns
// a token for UnsubscribeDeliveries.
func (s *Sim) SubscribeDeliveries(fn DeliveryListener) uint64 {
	s.nextDelivSub++
	s.deliverySubs = append(s.deliverySubs, deliverySub{id: s.nextDelivSub, fn: fn})
	return s.nextDelivSub
}

// UnsubscribeDeliveries removes a listener. Unknown tokens are a no-op.
func (s *Sim) UnsubscribeDeliveries(id uint64) {
	for i, sub := range s.deliverySubs {
		if sub.id == id {
			s.deliverySubs = append(s.deliverySubs[:i], s.deliverySubs[i+1:]...)
			return
		}
	}
}

func (s *Sim) notifyDelivery(itemType string, total int) {
	s.stats.RecordDelivery(itemType)
	s.record(replay.Event{Tick: s.clock.Tick(), Kind: "delivery", Item: itemType})
	for _, sub := range s.deliverySubs {
		sub.fn(itemType, total)
	}
}

// SetBroken marks a grid cell broken or repaired. Items on a broken cell
// stay put until it is repaired.
func (s *Sim) SetBroken(c grid.Coord, broken bool) bool {
	return s.grid.SetBroken(c, broken)
}

func (s *Sim) record(ev replay.Event) {
	if s.replay == nil {
		return
	}
	if err := s.replay.Append(ev); err != nil {
		s.log.Warn("replay append failed", "error", err)
	}
}

// Close detaches the world from its clock and flushes attached outputs.
func (s *Sim) Close() error {
	for _, sub := range s.subscriptions {
		s.clock.Unsubscribe(sub)
	}
	var first error
	if s.output != nil {
		if err := s.output.Close(); err != nil {
			first = err
		}
	}
	if err := s.replay.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
