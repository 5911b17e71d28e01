package tile

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord identifies a tile in a quadtree tiling scheme. It is used verbatim as a
// cache and request key: no range validation or wraparound is applied.
type Coord struct {
	X int
	Y int
	Z int
}

// ParseCoord parses the z/x/y form produced by String.
func ParseCoord(s string) (Coord, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Coord{}, fmt.Errorf("invalid tile coordinate %q: want z/x/y", s)
	}

	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Coord{}, fmt.Errorf("invalid tile coordinate %q: %w", s, err)
		}
		n[i] = v
	}
	return Coord{Z: n[0], X: n[1], Y: n[2]}, nil
}

// Ancestor returns the coordinate whose X and Y are floor-divided by 2^i.
// Z is kept as is.
func (c Coord) Ancestor(i int) Coord {
	return Coord{X: c.X >> i, Y: c.Y >> i, Z: c.Z}
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}
