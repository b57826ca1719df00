// Package telemetry provides windowed counters and CSV output for the
// transport and power engine.
package telemetry

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowTicks     int
	secondsPerTick  float64
	windowStartTick uint64

	// Event counters for current window
	intents      int
	grants       int
	denials      int
	handoffs     int
	handoffFails int
	spawns       int
	stalledTicks int
	deliveries   map[string]int

	// Ticks each granted agent waited since its last denial streak began
	waitSamples []float64

	// Per-tick power accumulators
	powerTicks     int
	availableAccum float64
	grantedAccum   float64
}

// NewCollector creates a stats collector.
// windowTicks: ticks per stats window.
// secondsPerTick: tick-to-time conversion for reporting.
func NewCollector(windowTicks int, secondsPerTick float64) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{
		windowTicks:    windowTicks,
		secondsPerTick: secondsPerTick,
		deliveries:     make(map[string]int),
	}
}

// RecordIntent records one submitted movement intent.
func (c *Collector) RecordIntent() { c.intents++ }

// RecordGrant records a granted intent and the ticks the agent waited for it.
func (c *Collector) RecordGrant(waitTicks int) {
	c.grants++
	c.waitSamples = append(c.waitSamples, float64(waitTicks))
}

// RecordDenial records a denied intent.
func (c *Collector) RecordDenial() { c.denials++ }

// RecordHandoff records a successful machine hand-off.
func (c *Collector) RecordHandoff() { c.handoffs++ }

// RecordHandoffFailure records a hand-off rejected at commit.
func (c *Collector) RecordHandoffFailure() { c.handoffFails++ }

// RecordSpawn records a new item placed on the grid.
func (c *Collector) RecordSpawn() { c.spawns++ }

// RecordStall records one machine-tick spent retrying a blocked output.
func (c *Collector) RecordStall() { c.stalledTicks++ }

// RecordDelivery records a sink accepting an item of the given type.
func (c *Collector) RecordDelivery(itemType string) { c.deliveries[itemType]++ }

// RecordPower records one tick's power budget and grants.
func (c *Collector) RecordPower(available, granted float64) {
	c.powerTicks++
	c.availableAccum += available
	c.grantedAccum += granted
}

// ShouldFlush returns true once the current window is complete.
func (c *Collector) ShouldFlush(currentTick uint64) bool {
	return currentTick-c.windowStartTick >= uint64(c.windowTicks)
}

// Flush computes the finished window's stats and starts a new window.
// itemsOnGrid and busyMachines are sampled at the window boundary.
func (c *Collector) Flush(currentTick uint64, itemsOnGrid, busyMachines int) WindowStats {
	s := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.secondsPerTick,
		Intents:         c.intents,
		Grants:          c.grants,
		Denials:         c.denials,
		Handoffs:        c.handoffs,
		HandoffFailures: c.handoffFails,
		Spawns:          c.spawns,
		StalledTicks:    c.stalledTicks,
		ItemsOnGrid:     itemsOnGrid,
		BusyMachines:    busyMachines,
	}
	for _, n := range c.deliveries {
		s.Deliveries += n
	}

	s.GrantWaitMean, s.GrantWaitStd, s.GrantWaitP90 = ComputeWaitStats(c.waitSamples)

	if c.powerTicks > 0 {
		s.PowerAvailableMean = c.availableAccum / float64(c.powerTicks)
		s.PowerGrantedMean = c.grantedAccum / float64(c.powerTicks)
		if s.PowerAvailableMean > 0 {
			s.PowerUtilization = s.PowerGrantedMean / s.PowerAvailableMean
		}
	}

	c.reset(currentTick)
	return s
}

// DeliveredCount returns the running total for an item type in the current
// window.
func (c *Collector) DeliveredCount(itemType string) int { return c.deliveries[itemType] }

func (c *Collector) reset(tick uint64) {
	c.windowStartTick = tick
	c.intents = 0
	c.grants = 0
	c.denials = 0
	c.handoffs = 0
	c.handoffFails = 0
	c.spawns = 0
	c.stalledTicks = 0
	c.deliveries = make(map[string]int)
	c.waitSamples = c.waitSamples[:0]
	c.powerTicks = 0
	c.availableAccum = 0
	c.grantedAccum = 0
}
