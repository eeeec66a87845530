package grid

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/drakos74/free-som/internal/som"
)

// Topology defines how the grid edges behave.
type Topology string

// Shape defines the cell shape of the grid.
type Shape string

const (
	Planar Topology = "planar"
	Toroid Topology = "toroid"

	Rectangular Shape = "rectangular"
	Hexagonal   Shape = "hexagonal"
)

// distances within this tolerance of 1 count as immediate neighbours
const neighbourTolerance = 1e-9

var hexHeight = math.Sqrt(3) / 2

// ParseTopology parses the topology name.
func ParseTopology(s string) (Topology, error) {
	switch Topology(strings.ToLower(s)) {
	case Planar, "":
		return Planar, nil
	case Toroid, "toroidal":
		return Toroid, nil
	}
	return "", fmt.Errorf("unknown topology '%s': %w", s, som.InvalidConfigurationErr)
}

// ParseShape parses the cell shape name.
func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(s)) {
	case Rectangular, "":
		return Rectangular, nil
	case Hexagonal, "hex":
		return Hexagonal, nil
	}
	return "", fmt.Errorf("unknown shape '%s': %w", s, som.InvalidConfigurationErr)
}

// Coord is the position of a unit on the grid.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Grid is the immutable map lattice.
type Grid struct {
	rows, cols int
	topology   Topology
	shape      Shape
}

// New creates a new grid.
func New(rows, cols int, topology Topology, shape Shape) (*Grid, error) {
	if rows < 1 {
		return nil, fmt.Errorf("grid rows must be positive but was %d: %w", rows, som.InvalidConfigurationErr)
	}
	if cols < 1 {
		return nil, fmt.Errorf("grid columns must be positive but was %d: %w", cols, som.InvalidConfigurationErr)
	}
	if topology != Planar && topology != Toroid {
		return nil, fmt.Errorf("unknown topology '%s': %w", topology, som.InvalidConfigurationErr)
	}
	if shape != Rectangular && shape != Hexagonal {
		return nil, fmt.Errorf("unknown shape '%s': %w", shape, som.InvalidConfigurationErr)
	}
	// odd rows shift the wrapped row against the first one
	if topology == Toroid && shape == Hexagonal && rows%2 == 1 {
		return nil, fmt.Errorf("toroid hexagonal grid needs an even number of rows but got %d: %w", rows, som.InvalidConfigurationErr)
	}
	return &Grid{
		rows:     rows,
		cols:     cols,
		topology: topology,
		shape:    shape,
	}, nil
}

func (g *Grid) Rows() int {
	return g.rows
}

func (g *Grid) Cols() int {
	return g.cols
}

func (g *Grid) Topology() Topology {
	return g.topology
}

func (g *Grid) Shape() Shape {
	return g.shape
}

// Size returns the number of units.
func (g *Grid) Size() int {
	return g.rows * g.cols
}

// Contains checks if the coordinate lies on the grid.
func (g *Grid) Contains(c Coord) bool {
	return c.Row >= 0 && c.Row < g.rows && c.Col >= 0 && c.Col < g.cols
}

// Index returns the row-major index of the coordinate.
func (g *Grid) Index(c Coord) int {
	return c.Row*g.cols + c.Col
}

// Coord returns the coordinate for the row-major index.
func (g *Grid) Coord(i int) Coord {
	return Coord{Row: i / g.cols, Col: i % g.cols}
}

// Coords returns all coordinates in topology order.
func (g *Grid) Coords() []Coord {
	cc := make([]Coord, g.Size())
	for i := range cc {
		cc[i] = g.Coord(i)
	}
	return cc
}

// position returns the planar position of the (possibly out of range) coordinate.
func (g *Grid) position(row, col int) (float64, float64) {
	if g.shape == Hexagonal {
		shift := 0.0
		if ((row%2)+2)%2 == 1 {
			shift = 0.5
		}
		return float64(col) + shift, float64(row) * hexHeight
	}
	return float64(col), float64(row)
}

func (g *Grid) planar(a, b Coord) float64 {
	ax, ay := g.position(a.Row, a.Col)
	bx, by := g.position(b.Row, b.Col)
	return math.Hypot(ax-bx, ay-by)
}

// Distance returns the distance between the two units.
// For the toroid each axis wraps around, so the distance never exceeds the planar one.
func (g *Grid) Distance(a, b Coord) float64 {
	if g.topology == Planar {
		return g.planar(a, b)
	}
	if g.shape == Rectangular {
		dr := wrap(a.Row-b.Row, g.rows)
		dc := wrap(a.Col-b.Col, g.cols)
		return math.Hypot(float64(dr), float64(dc))
	}
	// hexagonal offsets depend on the row parity, so take the shifts on both sides
	d := g.planar(a, b)
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			if i == 0 && j == 0 {
				continue
			}
			ax, ay := g.position(a.Row, a.Col)
			bx, by := g.position(b.Row+i*g.rows, b.Col+j*g.cols)
			if s := math.Hypot(ax-bx, ay-by); s < d {
				d = s
			}
			ax, ay = g.position(a.Row+i*g.rows, a.Col+j*g.cols)
			bx, by = g.position(b.Row, b.Col)
			if s := math.Hypot(ax-bx, ay-by); s < d {
				d = s
			}
		}
	}
	return d
}

func wrap(d, n int) int {
	if d < 0 {
		d = -d
	}
	if n-d < d {
		return n - d
	}
	return d
}

// Neighbors returns the immediate neighbours of the unit in topology order.
// Immediate neighbours always lie within one row and one column of the unit.
func (g *Grid) Neighbors(c Coord) []Coord {
	seen := make(map[int]bool, 8)
	idx := make([]int, 0, 8)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			n := Coord{Row: c.Row + dr, Col: c.Col + dc}
			if g.topology == Toroid {
				n = Coord{Row: mod(n.Row, g.rows), Col: mod(n.Col, g.cols)}
			}
			if n == c || !g.Contains(n) {
				continue
			}
			i := g.Index(n)
			if seen[i] || g.Distance(c, n) > 1+neighbourTolerance {
				continue
			}
			seen[i] = true
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	nn := make([]Coord, len(idx))
	for k, i := range idx {
		nn[k] = g.Coord(i)
	}
	return nn
}

func mod(v, n int) int {
	return ((v % n) + n) % n
}

// NeighborsWithin returns all units within the given radius of the center, the center included.
func (g *Grid) NeighborsWithin(center Coord, radius float64) []Coord {
	nn := make([]Coord, 0)
	for i := 0; i < g.Size(); i++ {
		c := g.Coord(i)
		if g.Distance(center, c) <= radius {
			nn = append(nn, c)
		}
	}
	return nn
}
