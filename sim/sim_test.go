package sim

import (
	"log/slog"
	"testing"

	"beltline/components"
	"beltline/config"
	"beltline/grid"
	"beltline/item"
	"beltline/machine"
	"beltline/power"
)

// testConfig starts from embedded defaults and strips the demo layout so
// each test lays out exactly the world it needs.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Belts = nil
	cfg.Junctions = nil
	cfg.Machines = nil
	cfg.Spawners = nil
	cfg.Transport.TicksPerCell = 1
	cfg.Transport.GateTransport = false
	cfg.Power.ChargeTicks = 1
	cfg.Power.ChargeDecay = 0
	return cfg
}

func newTestSim(t *testing.T, cfg *config.Config) *Sim {
	t.Helper()
	s, err := New(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func mustSpawn(t *testing.T, s *Sim, c grid.Coord, typ string) {
	t.Helper()
	if !s.spawnAgent(c, typ) {
		t.Fatalf("spawn at %v failed", c)
	}
}

func TestSingleItemAdvancesOneCellPerCommit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 3}}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 0, Y: 0}, "SugarBlock")

	s.Step()

	if _, ok := s.ItemTypeAt(grid.Coord{X: 1, Y: 0}); !ok {
		t.Fatal("item did not advance to (1,0)")
	}
	from, _ := s.grid.CellAt(grid.Coord{X: 0, Y: 0})
	if from.HasItem {
		t.Error("origin cell still occupied after commit")
	}
	to, _ := s.grid.CellAt(grid.Coord{X: 1, Y: 0})
	if !to.HasItem {
		t.Error("target cell not marked occupied")
	}
}

func TestContestedCellGoesToLowestAgent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{
		{Start: [2]int{0, 0}, Dir: "east", Length: 4},
		{Start: [2]int{2, 1}, Dir: "north", Length: 1},
	}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 1, Y: 0}, "A") // agent 1
	mustSpawn(t, s, grid.Coord{X: 2, Y: 1}, "B") // agent 2

	s.Step()

	if typ, ok := s.ItemTypeAt(grid.Coord{X: 2, Y: 0}); !ok || typ != "A" {
		t.Fatalf("contested cell holds %q, want A", typ)
	}
	// Loser stays put, settled back to idle rather than stuck awaiting.
	_, entity, ok := s.agentAt(grid.Coord{X: 2, Y: 1})
	if !ok {
		t.Fatal("losing agent left its cell")
	}
	_, _, _, state := s.agentMapper.Get(entity)
	if state.Phase != components.AgentIdle {
		t.Errorf("loser phase = %v, want Idle", state.Phase)
	}
	if state.WaitTicks == 0 {
		t.Error("loser wait counter not incremented")
	}
}

func TestDeniedAgentMovesOnceCellFrees(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{
		{Start: [2]int{0, 0}, Dir: "east", Length: 4},
		{Start: [2]int{2, 1}, Dir: "north", Length: 1},
	}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 1, Y: 0}, "A")
	mustSpawn(t, s, grid.Coord{X: 2, Y: 1}, "B")

	s.Step() // A takes (2,0); B denied
	s.Step() // A advances to (3,0); B's precheck still saw (2,0) occupied
	s.Step() // (2,0) free at tick start; B moves in

	if typ, ok := s.ItemTypeAt(grid.Coord{X: 2, Y: 0}); !ok || typ != "B" {
		t.Fatalf("cell (2,0) holds %q, want B", typ)
	}
}

func TestSinkDeliveryNotifiesAndRetiresAgent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 3}}
	cfg.Machines = []config.MachineConfig{{
		Name: "depot", Kind: "sink", Cell: [2]int{3, 0},
		Input: "east", Accepts: []string{"SugarBlock"},
	}}
	s := newTestSim(t, cfg)

	var gotType string
	var gotTotal int
	s.SubscribeDeliveries(func(typ string, total int) {
		gotType, gotTotal = typ, total
	})

	mustSpawn(t, s, grid.Coord{X: 2, Y: 0}, "SugarBlock")
	s.Step()

	if gotType != "SugarBlock" || gotTotal != 1 {
		t.Errorf("delivery notification = (%q, %d), want (SugarBlock, 1)", gotType, gotTotal)
	}
	if s.AgentCount() != 0 {
		t.Errorf("agent not retired after hand-off, count = %d", s.AgentCount())
	}
	m, _ := s.MachineByName("depot")
	if n := m.(*machine.Sink).Count("SugarBlock"); n != 1 {
		t.Errorf("sink count = %d, want 1", n)
	}
	cell, _ := s.grid.CellAt(grid.Coord{X: 2, Y: 0})
	if cell.HasItem {
		t.Error("origin cell still occupied after hand-off")
	}
}

func TestRejectedHandoffLeavesAgentInPlace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 3}}
	cfg.Machines = []config.MachineConfig{{
		Name: "depot", Kind: "sink", Cell: [2]int{3, 0},
		Input: "east", Accepts: []string{"Iron"},
	}}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 2, Y: 0}, "SugarBlock")

	s.Step()

	if _, ok := s.ItemTypeAt(grid.Coord{X: 2, Y: 0}); !ok {
		t.Fatal("agent vanished after rejected hand-off")
	}
	if s.AgentCount() != 1 {
		t.Errorf("agent count = %d, want 1", s.AgentCount())
	}
}

func TestProcessorStallsUntilOutputClears(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{2, 0}, Dir: "east", Length: 1}}
	cfg.Machines = []config.MachineConfig{
		{
			Name: "tinter", Kind: "processor", Cell: [2]int{1, 0},
			Input: "east", Facing: "east", ProcessingSeconds: 1.0, Watts: 20,
		},
		{
			Name: "solar", Kind: "generator", Cell: [2]int{5, 5},
			DayWatts: 100, NightWatts: 100,
		},
	}
	s := newTestSim(t, cfg)

	// Park a blocking item on the output cell; (2,0) dead-ends so it
	// never moves on its own.
	mustSpawn(t, s, grid.Coord{X: 2, Y: 0}, "Obstacle")

	p := mustProcessor(t, s, "tinter")
	it := item.New("SugarBlock")
	it.Visual.Give(999)
	if !p.TryStartProcess(it) {
		t.Fatal("processor refused item")
	}

	// processing_seconds 1.0 at 10 tps = 10 ticks of work, then every
	// further tick is a blocked re-emission attempt.
	for i := 0; i < 13; i++ {
		s.Step()
	}
	if !p.Busy() {
		t.Fatal("processor released item while output blocked")
	}
	if p.Progress() != 1 {
		t.Errorf("progress = %v, want 1 (finished, waiting on output)", p.Progress())
	}
	if p.Stalls() == 0 {
		t.Error("no stall recorded while blocked")
	}

	// Clear the blockage; the next step must re-emit.
	id, entity, ok := s.agentAt(grid.Coord{X: 2, Y: 0})
	if !ok {
		t.Fatal("obstacle missing")
	}
	s.removeAgent(id, entity)
	s.grid.ClearItem(grid.Coord{X: 2, Y: 0})

	s.Step()
	if p.Busy() {
		t.Error("processor still busy after output cleared")
	}
	if typ, ok := s.ItemTypeAt(grid.Coord{X: 2, Y: 0}); !ok || typ != "SugarBlock" {
		t.Errorf("output cell holds %q, want SugarBlock", typ)
	}
}

func TestUnderpoweredProcessorNeverAdvances(t *testing.T) {
	cfg := testConfig(t)
	cfg.Machines = []config.MachineConfig{
		{
			Name: "press", Kind: "processor", Cell: [2]int{1, 0},
			Input: "east", Facing: "east", ProcessingSeconds: 1.0, Watts: 50,
		},
		{
			Name: "solar", Kind: "generator", Cell: [2]int{5, 5},
			DayWatts: 30, NightWatts: 30,
		},
	}
	s := newTestSim(t, cfg)

	p := mustProcessor(t, s, "press")
	it := item.New("SugarBlock")
	it.Visual.Give(1)
	if !p.TryStartProcess(it) {
		t.Fatal("processor refused item")
	}

	for i := 0; i < 20; i++ {
		s.Step()
	}
	if s.alloc.HasPowerFor(50) {
		t.Error("allocator claims power for 50W with 30W available")
	}
	if p.Progress() != 0 {
		t.Errorf("progress = %v, want 0 while denied power", p.Progress())
	}
	if !p.Busy() {
		t.Error("processor dropped its item while unpowered")
	}
}

func TestGatedTransportHaltsWithoutPower(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 4}}
	cfg.Transport.GateTransport = true
	cfg.Transport.Watts = 10
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 0, Y: 0}, "SugarBlock")

	for i := 0; i < 5; i++ {
		s.Step()
	}
	if _, ok := s.ItemTypeAt(grid.Coord{X: 0, Y: 0}); !ok {
		t.Error("item moved with the belt network unpowered")
	}
}

func TestBeltNetworkOutranksMachinesUnderScarcity(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 4}}
	cfg.Transport.GateTransport = true
	cfg.Transport.Watts = 10
	cfg.Machines = []config.MachineConfig{
		{
			Name: "press", Kind: "processor", Cell: [2]int{5, 0},
			Input: "east", Facing: "east", ProcessingSeconds: 1.0, Watts: 20,
		},
		{Name: "solar", Kind: "generator", Cell: [2]int{6, 6}, DayWatts: 25, NightWatts: 25},
	}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 0, Y: 0}, "SugarBlock")

	p := mustProcessor(t, s, "press")
	it := item.New("Ore")
	it.Visual.Give(1)
	if !p.TryStartProcess(it) {
		t.Fatal("processor refused item")
	}

	// 25W covers the 10W belt draw but not the 20W processor on top;
	// the belt network registered first, so it wins the budget.
	s.Step()

	if !s.alloc.IsPowered(s.beltNet) {
		t.Error("belt network unpowered despite registering first")
	}
	if s.alloc.IsPowered(p) {
		t.Error("processor granted power past the remaining budget")
	}
	if _, ok := s.ItemTypeAt(grid.Coord{X: 1, Y: 0}); !ok {
		t.Error("item did not move with the belt network powered")
	}
	if p.Progress() != 0 {
		t.Errorf("processor progress = %v, want 0 while denied power", p.Progress())
	}
}

func TestSpawnerInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 8}}
	cfg.Spawners = []config.SpawnerConfig{{Cell: [2]int{0, 0}, Item: "SugarBlock", IntervalTicks: 2}}
	s := newTestSim(t, cfg)

	for i := 0; i < 6; i++ {
		s.Step()
	}
	if n := s.AgentCount(); n != 3 {
		t.Errorf("agent count = %d, want 3 (spawns at ticks 2, 4, 6)", n)
	}
}

func TestSpawnerSkipsOccupiedCell(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 8}}
	cfg.Spawners = []config.SpawnerConfig{{Cell: [2]int{0, 0}, Item: "SugarBlock", IntervalTicks: 1}}
	cfg.Transport.TicksPerCell = 2
	s := newTestSim(t, cfg)

	// Tick 1 spawns, tick 2 the agent hops off and a second spawns, tick 3
	// the second agent is still mid-step on (0,0) so the spawner skips.
	for i := 0; i < 3; i++ {
		s.Step()
	}
	if n := s.AgentCount(); n != 2 {
		t.Errorf("agent count = %d, want 2 (tick 3 spawn skipped on occupied cell)", n)
	}
}

func TestRingConservesItemsAndOccupancy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{
		{Start: [2]int{0, 0}, Dir: "east", Length: 4},
		{Start: [2]int{3, 0}, Dir: "south", Length: 4},
		{Start: [2]int{3, 3}, Dir: "west", Length: 4},
		{Start: [2]int{0, 3}, Dir: "north", Length: 3},
	}
	s := newTestSim(t, cfg)

	starts := []grid.Coord{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}, {X: 0, Y: 2}}
	for _, c := range starts {
		mustSpawn(t, s, c, "SugarBlock")
	}

	for i := 0; i < 200; i++ {
		s.Step()

		if n := s.AgentCount(); n != len(starts) {
			t.Fatalf("tick %d: agent count = %d, want %d", i+1, n, len(starts))
		}
		seen := make(map[grid.Coord]bool)
		for _, entity := range s.agents {
			_, pos, _, _ := s.agentMapper.Get(entity)
			if seen[pos.Current] {
				t.Fatalf("tick %d: two agents share cell %v", i+1, pos.Current)
			}
			seen[pos.Current] = true
			cell, ok := s.grid.CellAt(pos.Current)
			if !ok || !cell.HasItem {
				t.Fatalf("tick %d: grid flag missing under agent at %v", i+1, pos.Current)
			}
		}
	}
}

func TestBrokenCellHaltsAndRepairResumes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 4}}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 0, Y: 0}, "SugarBlock")

	if !s.SetBroken(grid.Coord{X: 0, Y: 0}, true) {
		t.Fatal("SetBroken failed")
	}
	for i := 0; i < 3; i++ {
		s.Step()
	}
	if _, ok := s.ItemTypeAt(grid.Coord{X: 0, Y: 0}); !ok {
		t.Fatal("item moved off a broken cell")
	}

	s.SetBroken(grid.Coord{X: 0, Y: 0}, false)
	s.Step()
	if _, ok := s.ItemTypeAt(grid.Coord{X: 1, Y: 0}); !ok {
		t.Error("item did not resume after repair")
	}
}

func TestUnsubscribedListenerReceivesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{{Start: [2]int{0, 0}, Dir: "east", Length: 3}}
	cfg.Machines = []config.MachineConfig{{
		Name: "depot", Kind: "sink", Cell: [2]int{3, 0}, Input: "east",
	}}
	cfg.Spawners = []config.SpawnerConfig{{Cell: [2]int{0, 0}, Item: "SugarBlock", IntervalTicks: 4}}
	s := newTestSim(t, cfg)

	var kept, retired int
	s.SubscribeDeliveries(func(string, int) { kept++ })
	token := s.SubscribeDeliveries(func(string, int) { retired++ })

	// First delivery reaches both listeners.
	for s.sinks[0].Count("SugarBlock") == 0 {
		s.Step()
	}
	if kept != 1 || retired != 1 {
		t.Fatalf("after first delivery: kept=%d retired=%d, want 1/1", kept, retired)
	}

	s.UnsubscribeDeliveries(token)
	for s.sinks[0].Count("SugarBlock") < 2 {
		s.Step()
	}
	if retired != 1 {
		t.Errorf("retired listener notified after unsubscribe (count %d)", retired)
	}
	if kept != 2 {
		t.Errorf("kept listener count = %d, want 2", kept)
	}
}

func TestProcessorTransformsAndForwardsToSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Belts = []config.BeltConfig{
		{Start: [2]int{0, 0}, Dir: "east", Length: 1},
		{Start: [2]int{2, 0}, Dir: "east", Length: 1},
	}
	cfg.Machines = []config.MachineConfig{
		{
			Name: "tinter", Kind: "processor", Cell: [2]int{1, 0},
			Input: "east", Facing: "east", ProcessingSeconds: 0.2, Watts: 20,
			Accepts: []string{"SugarBlock"}, Output: "RedSugarBlock",
		},
		{Name: "depot", Kind: "sink", Cell: [2]int{3, 0}, Input: "east"},
		{Name: "solar", Kind: "generator", Cell: [2]int{5, 5}, DayWatts: 100, NightWatts: 100},
	}
	s := newTestSim(t, cfg)
	mustSpawn(t, s, grid.Coord{X: 0, Y: 0}, "SugarBlock")

	depot, _ := s.MachineByName("depot")
	sink := depot.(*machine.Sink)
	for i := 0; i < 20 && sink.Count("RedSugarBlock") == 0; i++ {
		s.Step()
	}
	if sink.Count("RedSugarBlock") != 1 {
		t.Fatal("transformed item never reached the sink")
	}
	if s.AgentCount() != 0 {
		t.Errorf("agent count = %d after delivery, want 0", s.AgentCount())
	}
}

func TestDayNightPhase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Power.DayTicks = 10
	cfg.Power.NightTicks = 5
	s := newTestSim(t, cfg)

	tests := []struct {
		tick uint64
		want power.Phase
	}{
		{0, power.PhaseDay},
		{9, power.PhaseDay},
		{10, power.PhaseNight},
		{14, power.PhaseNight},
		{15, power.PhaseDay},
		{25, power.PhaseNight},
	}
	for _, tt := range tests {
		if got := s.phaseFor(tt.tick); got != tt.want {
			t.Errorf("phaseFor(%d) = %v, want %v", tt.tick, got, tt.want)
		}
	}
}

func TestDefaultWorldDeliversEndToEnd(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	s, err := New(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	depot, ok := s.MachineByName("depot")
	if !ok {
		t.Fatal("default layout has no depot")
	}
	sink := depot.(*machine.Sink)
	for i := 0; i < 200; i++ {
		s.Step()
	}
	if sink.Count("RedSugarBlock") == 0 {
		t.Error("no tinted block delivered after 200 ticks of the default layout")
	}
}

func mustProcessor(t *testing.T, s *Sim, name string) *machine.Processor {
	t.Helper()
	m, ok := s.MachineByName(name)
	if !ok {
		t.Fatalf("machine %q not found", name)
	}
	return m.(*machine.Processor)
}
