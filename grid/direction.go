package grid

// Direction is one of the four cardinal transport directions, or none.
type Direction uint8

const (
	DirNone Direction = iota
	DirNorth
	DirEast
	DirSouth
	DirWest
)

// String returns the string representation of a direction.
func (d Direction) String() string {
	switch d {
	case DirNorth:
		return "North"
	case DirEast:
		return "East"
	case DirSouth:
		return "South"
	case DirWest:
		return "West"
	default:
		return "None"
	}
}

// Delta returns the (dx, dy) offset for moving one cell in this direction.
// North decreases Y, South increases Y (screen coordinates).
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case DirNorth:
		return 0, -1
	case DirEast:
		return 1, 0
	case DirSouth:
		return 0, 1
	case DirWest:
		return -1, 0
	default:
		return 0, 0
	}
}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirNorth:
		return DirSouth
	case DirEast:
		return DirWest
	case DirSouth:
		return DirNorth
	case DirWest:
		return DirEast
	default:
		return DirNone
	}
}

// Clockwise returns the next direction rotating clockwise.
func (d Direction) Clockwise() Direction {
	switch d {
	case DirNorth:
		return DirEast
	case DirEast:
		return DirSouth
	case DirSouth:
		return DirWest
	case DirWest:
		return DirNorth
	default:
		return DirNone
	}
}

// FromDelta returns the direction matching a unit cell offset, or DirNone.
func FromDelta(dx, dy int) Direction {
	switch {
	case dx == 0 && dy == -1:
		return DirNorth
	case dx == 1 && dy == 0:
		return DirEast
	case dx == 0 && dy == 1:
		return DirSouth
	case dx == -1 && dy == 0:
		return DirWest
	default:
		return DirNone
	}
}

// ParseDirection maps a lowercase config token to a direction. The empty
// string parses to DirNone; anything else unrecognized reports false.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "":
		return DirNone, true
	case "north":
		return DirNorth, true
	case "east":
		return DirEast, true
	case "south":
		return DirSouth, true
	case "west":
		return DirWest, true
	default:
		return DirNone, false
	}
}

// Cardinal lists the four transport directions in clockwise order.
// The fixed order keeps neighbor scans deterministic.
var Cardinal = [4]Direction{DirNorth, DirEast, DirSouth, DirWest}
