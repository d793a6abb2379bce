package board

import (
	"errors"
	"fmt"
)

// Size is the number of files and ranks on the board.
const Size = 8

// ErrInvalidSquareNotation is returned for malformed algebraic squares.
var ErrInvalidSquareNotation = errors.New("invalid square notation")

// Coordinate addresses a square by zero-based file and rank.
type Coordinate struct {
	File int
	Rank int
}

// Coord is shorthand for Coordinate{File: file, Rank: rank}.
func Coord(file, rank int) Coordinate {
	return Coordinate{File: file, Rank: rank}
}

// InBounds reports whether the coordinate lies on the board.
func (c Coordinate) InBounds() bool {
	return c.File >= 0 && c.File < Size && c.Rank >= 0 && c.Rank < Size
}

// Offset returns the coordinate shifted by (df, dr). The boolean is false when
// the result falls off the board; callers treat that as the end of a ray.
func (c Coordinate) Offset(df, dr int) (Coordinate, bool) {
	next := Coordinate{File: c.File + df, Rank: c.Rank + dr}
	if !next.InBounds() {
		return Coordinate{}, false
	}
	return next, true
}

// Algebraic converts the coordinate to notation such as "e4".
func (c Coordinate) Algebraic() string {
	return fmt.Sprintf("%c%d", rune('a'+c.File), c.Rank+1)
}

func (c Coordinate) String() string {
	return c.Algebraic()
}

// IsLight reports whether the square is a light square.
func (c Coordinate) IsLight() bool {
	return (c.File+c.Rank)%2 == 1
}

// ParseAlgebraic converts notation such as "e4" to a coordinate.
func ParseAlgebraic(s string) (Coordinate, error) {
	if len(s) != 2 {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidSquareNotation, s)
	}
	file := int(s[0]) - 'a'
	rank := int(s[1]) - '1'
	c := Coordinate{File: file, Rank: rank}
	if !c.InBounds() {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidSquareNotation, s)
	}
	return c, nil
}

// MustParse is ParseAlgebraic for literals known to be valid.
func MustParse(s string) Coordinate {
	c, err := ParseAlgebraic(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Manhattan returns |df| + |dr| between two coordinates.
func Manhattan(a, b Coordinate) int {
	return abs(a.File-b.File) + abs(a.Rank-b.Rank)
}

// Chebyshev returns max(|df|, |dr|) between two coordinates.
func Chebyshev(a, b Coordinate) int {
	df, dr := abs(a.File-b.File), abs(a.Rank-b.Rank)
	if df > dr {
		return df
	}
	return dr
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
