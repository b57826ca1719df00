// Package item defines the logical payloads moved across the grid and the
// single-owner visual handle that travels with them.
package item

// Handle is an opaque reference to an item's visual representation, owned by
// the rendering collaborator. The simulation only moves it around.
type Handle uint32

// VisualSlot holds at most one visual handle. Transfer between owners goes
// through Take and Give so a handle is moved, never duplicated.
type VisualSlot struct {
	handle Handle
	held   bool
}

// Give places a handle into the slot. Returns false if the slot already
// holds one; the caller then still owns the handle.
func (s *VisualSlot) Give(h Handle) bool {
	if s.held {
		return false
	}
	s.handle = h
	s.held = true
	return true
}

// Take removes and returns the handle. Returns ok == false when empty.
func (s *VisualSlot) Take() (Handle, bool) {
	if !s.held {
		return 0, false
	}
	h := s.handle
	s.handle = 0
	s.held = false
	return h, true
}

// Held reports whether the slot currently owns a handle.
func (s *VisualSlot) Held() bool { return s.held }

// Peek returns the handle without transferring ownership.
func (s *VisualSlot) Peek() (Handle, bool) {
	return s.handle, s.held
}

// Item is a logical payload with a type tag. Whoever holds the Item pointer
// owns it and the visual handle riding in its slot; hand-off passes the
// pointer and the recipient becomes the sole owner.
type Item struct {
	Type   string
	Visual VisualSlot
}

// New creates an item of the given type with an empty visual slot.
func New(typ string) *Item {
	return &Item{Type: typ}
}
