// Package tick provides the fixed-rate simulation clock. Each tick is three
// ordered, synchronous notifications delivered on one goroutine: tick-start
// (agents submit intents), tick-commit (arbitration and state mutation), then
// a plain tick for per-tick counters that need no two-phase semantics.
package tick

import (
	"context"
	"sync"
	"time"
)

// MinTPS and MaxTPS bound the configurable tick rate.
const (
	MinTPS = 1
	MaxTPS = 1000
)

// Func is a tick notification callback receiving the current tick number.
type Func func(tick uint64)

type phase uint8

const (
	phaseStart phase = iota
	phaseCommit
	phasePlain
)

// Subscription identifies a registered callback for later removal.
type Subscription struct {
	id uint64
	ph phase
}

type entry struct {
	id uint64
	fn Func
}

// Clock drives the simulation at a fixed tick rate.
type Clock struct {
	mu     sync.Mutex
	tps    int
	tick   uint64
	paused bool

	nextID uint64
	start  []entry
	commit []entry
	plain  []entry
	dead   map[uint64]bool
}

// NewClock creates a clock at the given ticks-per-second, clamped to
// [MinTPS, MaxTPS].
func NewClock(tps int) *Clock {
	if tps < MinTPS {
		tps = MinTPS
	}
	if tps > MaxTPS {
		tps = MaxTPS
	}
	return &Clock{
		tps:  tps,
		dead: make(map[uint64]bool),
	}
}

// TPS returns the configured tick rate.
func (c *Clock) TPS() int { return c.tps }

// Tick returns the number of completed ticks.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// SubscribeStart registers a tick-start callback.
func (c *Clock) SubscribeStart(fn Func) Subscription {
	return c.subscribe(&c.start, phaseStart, fn)
}

// SubscribeCommit registers a tick-commit callback.
func (c *Clock) SubscribeCommit(fn Func) Subscription {
	return c.subscribe(&c.commit, phaseCommit, fn)
}

// SubscribeTick registers a plain per-tick callback, fired after commit.
func (c *Clock) SubscribeTick(fn Func) Subscription {
	return c.subscribe(&c.plain, phasePlain, fn)
}

func (c *Clock) subscribe(list *[]entry, ph phase, fn Func) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	*list = append(*list, entry{id: c.nextID, fn: fn})
	return Subscription{id: c.nextID, ph: ph}
}

// Unsubscribe removes a callback. The callback receives no further
// notifications, including later phases of a tick already in flight.
func (c *Clock) Unsubscribe(s Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.id == 0 {
		return
	}
	c.dead[s.id] = true
	switch s.ph {
	case phaseStart:
		c.start = prune(c.start, s.id)
	case phaseCommit:
		c.commit = prune(c.commit, s.id)
	case phasePlain:
		c.plain = prune(c.plain, s.id)
	}
}

func prune(list []entry, id uint64) []entry {
	for i, e := range list {
		if e.id == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Pause stops tick delivery. No ticks are batched; simulation time simply
// does not advance while paused.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume re-enables tick delivery.
func (c *Clock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Paused reports whether the clock is paused.
func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Step advances one tick, delivering tick-start, tick-commit, and tick in
// order on the caller's goroutine. A paused clock does nothing.
func (c *Clock) Step() {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return
	}
	// Dead marks exist to suppress delivery within the tick that removed
	// the subscriber; no earlier snapshot can reference them now.
	clear(c.dead)
	c.tick++
	n := c.tick
	c.mu.Unlock()

	c.deliver(n, phaseStart)
	c.deliver(n, phaseCommit)
	c.deliver(n, phasePlain)
}

// deliver fires one phase. It snapshots the subscriber list so callbacks may
// subscribe or unsubscribe freely, then re-checks liveness per entry so a
// subscriber removed mid-tick is never called again.
func (c *Clock) deliver(tick uint64, ph phase) {
	c.mu.Lock()
	var snapshot []entry
	switch ph {
	case phaseStart:
		snapshot = append(snapshot, c.start...)
	case phaseCommit:
		snapshot = append(snapshot, c.commit...)
	case phasePlain:
		snapshot = append(snapshot, c.plain...)
	}
	c.mu.Unlock()

	for _, e := range snapshot {
		c.mu.Lock()
		skip := c.dead[e.id]
		c.mu.Unlock()
		if skip {
			continue
		}
		e.fn(tick)
	}
}

// Run steps the clock from a wall-clock ticker until the context is done.
func (c *Clock) Run(ctx context.Context) {
	interval := time.Second / time.Duration(c.tps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Step()
		}
	}
}
