// Package power tracks producers and consumers of the shared power budget
// and gates machine activity and item movement on per-tick wattage grants.
package power

import "beltline/grid"

// Phase is the global time-of-day phase fed by the external cycle provider.
type Phase uint8

const (
	PhaseDay Phase = iota
	PhaseNight
)

// String returns the string representation of a phase.
func (p Phase) String() string {
	if p == PhaseNight {
		return "Night"
	}
	return "Day"
}

// Source produces power. Output may depend on the time-of-day phase.
type Source interface {
	OutputWatts(phase Phase) float64
}

// Consumer draws a fixed wattage while running.
type Consumer interface {
	ConsumptionWatts() float64
}

type sourceEntry struct {
	src   Source
	cells []grid.Coord
}

type consumerEntry struct {
	c       Consumer
	cells   []grid.Coord
	charge  float64
	powered bool
}

// Allocator computes the available wattage each tick and grants consumer
// draws in registration order. Granted wattage never exceeds production.
type Allocator struct {
	chargeTicks int
	chargeDecay float64

	sources   []sourceEntry
	consumers []*consumerEntry
	byCons    map[Consumer]*consumerEntry

	available float64
	granted   float64
}

// NewAllocator creates an allocator. chargeTicks is the number of
// uninterrupted powered ticks before a consumer counts as fully charged;
// chargeDecay is the charge lost per unpowered tick.
func NewAllocator(chargeTicks int, chargeDecay float64) *Allocator {
	if chargeTicks < 1 {
		chargeTicks = 1
	}
	if chargeDecay < 0 {
		chargeDecay = 0
	}
	return &Allocator{
		chargeTicks: chargeTicks,
		chargeDecay: chargeDecay,
		byCons:      make(map[Consumer]*consumerEntry),
	}
}

// RegisterSource adds a producer, with the cells it occupies (for adjacency
// queries). Duplicate registration is a no-op.
func (a *Allocator) RegisterSource(s Source, cells ...grid.Coord) {
	for _, e := range a.sources {
		if e.src == s {
			return
		}
	}
	a.sources = append(a.sources, sourceEntry{src: s, cells: cells})
}

// UnregisterSource removes a producer. Unknown sources are a soft no-op.
func (a *Allocator) UnregisterSource(s Source) {
	for i, e := range a.sources {
		if e.src == s {
			a.sources = append(a.sources[:i], a.sources[i+1:]...)
			return
		}
	}
}

// RegisterConsumer adds a consumer, with the cells it occupies.
// Registration order is the grant order; it is deterministic and stable.
func (a *Allocator) RegisterConsumer(c Consumer, cells ...grid.Coord) {
	if _, ok := a.byCons[c]; ok {
		return
	}
	e := &consumerEntry{c: c, cells: cells}
	a.consumers = append(a.consumers, e)
	a.byCons[c] = e
}

// UnregisterConsumer removes a consumer. Unknown consumers are a soft no-op.
func (a *Allocator) UnregisterConsumer(c Consumer) {
	e, ok := a.byCons[c]
	if !ok {
		return
	}
	delete(a.byCons, c)
	for i := range a.consumers {
		if a.consumers[i] == e {
			a.consumers = append(a.consumers[:i], a.consumers[i+1:]...)
			return
		}
	}
}

// BeginTick recomputes the available budget for the tick and grants consumer
// draws in registration order. A consumer whose draw would exceed the
// remaining budget is denied for the whole tick and its charge decays.
func (a *Allocator) BeginTick(phase Phase) {
	a.available = 0
	for _, e := range a.sources {
		w := e.src.OutputWatts(phase)
		if w > 0 {
			a.available += w
		}
	}

	a.granted = 0
	for _, e := range a.consumers {
		w := e.c.ConsumptionWatts()
		if w <= 0 {
			e.powered = true
		} else if a.granted+w <= a.available {
			a.granted += w
			e.powered = true
		} else {
			e.powered = false
		}

		if e.powered {
			e.charge += 1 / float64(a.chargeTicks)
			if e.charge > 1 {
				e.charge = 1
			}
		} else {
			e.charge -= a.chargeDecay
			if e.charge < 0 {
				e.charge = 0
			}
		}
	}
}

// AvailableWatts returns this tick's total production.
func (a *Allocator) AvailableWatts() float64 { return a.available }

// GrantedWatts returns the sum of draws granted this tick.
func (a *Allocator) GrantedWatts() float64 { return a.granted }

// HasPowerFor reports whether the remaining budget covers an additional draw
// of the given wattage this tick.
func (a *Allocator) HasPowerFor(watts float64) bool {
	return a.granted+watts <= a.available
}

// IsPowered reports whether the consumer's draw was granted this tick.
// Unregistered consumers are unpowered.
func (a *Allocator) IsPowered(c Consumer) bool {
	e, ok := a.byCons[c]
	return ok && e.powered
}

// IsFullyCharged reports whether the consumer has been continuously powered
// long enough to run at full rate.
func (a *Allocator) IsFullyCharged(c Consumer) bool {
	e, ok := a.byCons[c]
	return ok && e.charge >= 1
}

// Charge returns the consumer's ramp-up level in [0, 1].
func (a *Allocator) Charge(c Consumer) float64 {
	e, ok := a.byCons[c]
	if !ok {
		return 0
	}
	return e.charge
}

// IsCellPoweredOrAdjacent reports whether the cell, or one of its four
// neighbors, is occupied by a producing source or a powered consumer.
func (a *Allocator) IsCellPoweredOrAdjacent(c grid.Coord) bool {
	match := func(cells []grid.Coord) bool {
		for _, pc := range cells {
			if pc == c {
				return true
			}
			for _, d := range grid.Cardinal {
				if pc == c.Add(d) {
					return true
				}
			}
		}
		return false
	}

	for _, e := range a.sources {
		if match(e.cells) {
			return true
		}
	}
	for _, e := range a.consumers {
		if e.powered && match(e.cells) {
			return true
		}
	}
	return false
}
