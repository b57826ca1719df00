package machine

import (
	"beltline/grid"
	"beltline/item"
)

// DeliveryFunc is notified when a sink accepts an item: the item type and
// the sink's total count for that type so far.
type DeliveryFunc func(itemType string, total int)

// Sink consumes items and never re-emits. Accepted items release their
// visual handle; the delivered notification feeds the goal collaborator.
type Sink struct {
	name        string
	cell        grid.Coord
	input       grid.Direction // DirNone accepts from any side
	accepts     []string
	onDelivered DeliveryFunc

	broken bool
	counts map[string]int
}

// NewSink creates a sink at cell. An empty accepts list accepts any type.
func NewSink(name string, cell grid.Coord, input grid.Direction, accepts []string, onDelivered DeliveryFunc) *Sink {
	return &Sink{
		name:        name,
		cell:        cell,
		input:       input,
		accepts:     accepts,
		onDelivered: onDelivered,
		counts:      make(map[string]int),
	}
}

// Name returns the machine's configured name.
func (s *Sink) Name() string { return s.name }

// Footprint returns the single cell the sink occupies.
func (s *Sink) Footprint() []grid.Coord { return []grid.Coord{s.cell} }

// CanAcceptFrom reports whether an item approaching in dir may be handed in.
// A sink is never busy; it consumes immediately.
func (s *Sink) CanAcceptFrom(dir grid.Direction) bool {
	if s.broken {
		return false
	}
	return s.input == grid.DirNone || dir == s.input
}

// TryStartProcess consumes the item, releases its visual handle, and fires
// the delivered notification. Mismatched types are rejected and the caller
// keeps the item.
func (s *Sink) TryStartProcess(it *item.Item) bool {
	if s.broken || it == nil {
		return false
	}
	if !typeAccepted(s.accepts, it.Type) {
		return false
	}
	it.Visual.Take() // consumed items have no display; the handle is freed
	s.counts[it.Type]++
	if s.onDelivered != nil {
		s.onDelivered(it.Type, s.counts[it.Type])
	}
	return true
}

// Count returns the total items of a type delivered so far.
func (s *Sink) Count(typ string) int { return s.counts[typ] }

// SetBroken toggles the broken flag.
func (s *Sink) SetBroken(b bool) { s.broken = b }

// Cell returns the sink's cell.
func (s *Sink) Cell() grid.Coord { return s.cell }
