package machine

import (
	"beltline/grid"
	"beltline/item"
	"beltline/power"
)

// Processor accepts one item through its input side, processes it for a
// fixed number of ticks while powered, then re-emits it through its facing
// side. It holds exactly one item at a time: the busy flag set by acceptance
// clears only on successful re-emission.
type Processor struct {
	name            string
	cell            grid.Coord
	facing          grid.Direction // output side
	input           grid.Direction // approach direction items must arrive with
	processingTicks int
	watts           float64
	accepts         []string
	outputType      string // rename on completion, "" keeps the input type

	alloc   *power.Allocator
	emitter Emitter

	broken    bool
	busy      bool
	holding   *item.Item
	remaining int
	done      bool
	stalls    uint64
}

// NewProcessor creates a processor at cell, taking input from the input
// approach direction and emitting toward facing.
func NewProcessor(name string, cell grid.Coord, input, facing grid.Direction, processingTicks int, watts float64, accepts []string, outputType string, alloc *power.Allocator, emitter Emitter) *Processor {
	if processingTicks < 1 {
		processingTicks = 1
	}
	return &Processor{
		name:            name,
		cell:            cell,
		facing:          facing,
		input:           input,
		processingTicks: processingTicks,
		watts:           watts,
		accepts:         accepts,
		outputType:      outputType,
		alloc:           alloc,
		emitter:         emitter,
	}
}

// Name returns the machine's configured name.
func (p *Processor) Name() string { return p.name }

// Footprint returns the single cell the processor occupies.
func (p *Processor) Footprint() []grid.Coord { return []grid.Coord{p.cell} }

// ConsumptionWatts implements power.Consumer.
func (p *Processor) ConsumptionWatts() float64 { return p.watts }

// CanAcceptFrom reports whether an item approaching in dir may be handed in.
// Pure: not broken, not busy, and the approach matches the input side.
func (p *Processor) CanAcceptFrom(dir grid.Direction) bool {
	if p.broken || p.busy {
		return false
	}
	return p.input == grid.DirNone || dir == p.input
}

// TryStartProcess takes ownership of the item and starts the timer. On
// failure the caller keeps the item and nothing has changed.
func (p *Processor) TryStartProcess(it *item.Item) bool {
	if p.broken || p.busy || it == nil {
		return false
	}
	if !typeAccepted(p.accepts, it.Type) {
		return false
	}
	p.holding = it
	p.busy = true
	p.done = false
	p.remaining = p.processingTicks
	return true
}

// Step advances the processing timer and, once done, attempts re-emission.
// The timer only advances while the allocator grants the draw and the
// consumer is fully charged; a blocked output stalls the machine, which
// retries every tick until the blockage clears.
func (p *Processor) Step(tick uint64) {
	if !p.busy || p.holding == nil {
		return
	}

	if !p.done {
		if p.alloc != nil && !(p.alloc.IsPowered(p) && p.alloc.IsFullyCharged(p)) {
			return
		}
		p.remaining--
		if p.remaining > 0 {
			return
		}
		p.done = true
		if p.outputType != "" {
			p.holding.Type = p.outputType
		}
	}

	if p.emitter == nil {
		p.stalls++
		return
	}
	out := p.cell.Add(p.facing)
	if p.emitter.EmitAt(out, p.facing, p.holding) {
		p.holding = nil
		p.busy = false
		p.done = false
		return
	}
	p.stalls++
}

// Busy reports whether the processor holds an in-flight item.
func (p *Processor) Busy() bool { return p.busy }

// Holding returns the item currently owned by the processor, if any.
func (p *Processor) Holding() *item.Item { return p.holding }

// Progress returns processing progress in [0, 1] for observers.
func (p *Processor) Progress() float64 {
	if !p.busy {
		return 0
	}
	if p.done {
		return 1
	}
	return 1 - float64(p.remaining)/float64(p.processingTicks)
}

// Stalls returns the number of ticks spent retrying a blocked output.
func (p *Processor) Stalls() uint64 { return p.stalls }

// SetBroken toggles the broken flag; broken processors accept nothing.
func (p *Processor) SetBroken(b bool) { p.broken = b }

// Cell returns the processor's primary cell.
func (p *Processor) Cell() grid.Coord { return p.cell }

// Facing returns the output direction.
func (p *Processor) Facing() grid.Direction { return p.facing }
