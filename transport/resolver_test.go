package transport

import (
	"testing"

	"beltline/grid"
)

func TestAtMostOneGrantPerDestination(t *testing.T) {
	r := NewResolver()
	dest := grid.Coord{X: 2, Y: 0}

	for i := 0; i < 5; i++ {
		r.Submit(Intent{
			Agent: AgentID(i + 1),
			From:  grid.Coord{X: i, Y: i},
			To:    dest,
			Dir:   grid.DirEast,
		})
	}

	decisions := r.Arbitrate()
	granted := 0
	for _, d := range decisions {
		if d.Granted {
			granted++
		}
	}
	if granted != 1 {
		t.Errorf("granted = %d intents for one destination, want exactly 1", granted)
	}
}

func TestTieBreakLowestAgentFirst(t *testing.T) {
	dest := grid.Coord{X: 3, Y: 3}

	// Submission order must not matter; only the agent ID does.
	orders := [][]AgentID{
		{7, 3, 5},
		{3, 5, 7},
		{5, 7, 3},
	}
	for _, order := range orders {
		r := NewResolver()
		for _, id := range order {
			r.Submit(Intent{Agent: id, To: dest, Dir: grid.DirEast})
		}
		for _, d := range r.Arbitrate() {
			if d.Granted && d.Agent != 3 {
				t.Errorf("submission order %v: winner = %d, want 3", order, d.Agent)
			}
		}
	}
}

func TestDistinctDestinationsAllGranted(t *testing.T) {
	r := NewResolver()
	for i := 0; i < 4; i++ {
		r.Submit(Intent{
			Agent: AgentID(i + 1),
			From:  grid.Coord{X: i, Y: 0},
			To:    grid.Coord{X: i, Y: 1},
			Dir:   grid.DirSouth,
		})
	}

	for _, d := range r.Arbitrate() {
		if !d.Granted {
			t.Errorf("agent %d denied with no contention", d.Agent)
		}
	}
}

func TestQueueClearedAfterArbitrate(t *testing.T) {
	r := NewResolver()
	r.Submit(Intent{Agent: 1, To: grid.Coord{X: 1, Y: 0}})

	if got := len(r.Arbitrate()); got != 1 {
		t.Fatalf("decisions = %d, want 1", got)
	}
	if r.Pending() != 0 {
		t.Error("pending queue should be empty after arbitration")
	}
	if r.Arbitrate() != nil {
		t.Error("second arbitration of the same tick should decide nothing")
	}
}
