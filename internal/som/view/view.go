package view

import (
	"fmt"
	"math"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/cluster"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/grid"
)

// Field is a rectangular scalar field over (part of) the map lattice.
// Values are kept row-major, Row0 and Col0 locate the field on the full lattice.
type Field struct {
	Name   string    `json:"name"`
	Row0   int       `json:"row0"`
	Col0   int       `json:"col0"`
	Rows   int       `json:"rows"`
	Cols   int       `json:"cols"`
	Values []float64 `json:"values"`
}

// At returns the value at the given field-local row and column.
func (f Field) At(row, col int) float64 {
	return f.Values[row*f.Cols+col]
}

// Min returns the smallest value of the field.
func (f Field) Min() float64 {
	m := math.Inf(1)
	for _, v := range f.Values {
		m = math.Min(m, v)
	}
	return m
}

// Max returns the largest value of the field.
func (f Field) Max() float64 {
	m := math.Inf(-1)
	for _, v := range f.Values {
		m = math.Max(m, v)
	}
	return m
}

// Reducer aggregates the distances of a unit to its neighbours.
type Reducer string

const (
	Mean Reducer = "mean"
	Max  Reducer = "max"
)

// UMatrix computes for each unit the mean (or max) distance of its prototype
// to the prototypes of its immediate neighbours.
func UMatrix(g *grid.Grid, cb *codebook.Codebook, r Reducer) Field {
	f := Field{
		Name:   "u-matrix",
		Rows:   g.Rows(),
		Cols:   g.Cols(),
		Values: make([]float64, g.Size()),
	}
	for i, c := range g.Coords() {
		nn := g.Neighbors(c)
		if len(nn) == 0 {
			continue
		}
		var v float64
		for _, n := range nn {
			d := cb.Distance(i, g.Index(n))
			if r == Max {
				v = math.Max(v, d)
			} else {
				v += d
			}
		}
		if r != Max {
			v /= float64(len(nn))
		}
		f.Values[i] = v
	}
	return f
}

// ExtendedUMatrix computes the (2R-1)x(2C-1) lattice interleaving units and the
// distances between row and column adjacent units.
func ExtendedUMatrix(g *grid.Grid, cb *codebook.Codebook) Field {
	rows, cols := 2*g.Rows()-1, 2*g.Cols()-1
	f := Field{
		Name:   "extended-u-matrix",
		Rows:   rows,
		Cols:   cols,
		Values: make([]float64, rows*cols),
	}
	unit := func(r, c int) int {
		return g.Index(grid.Coord{Row: r, Col: c})
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			ur, uc := r/2, c/2
			switch {
			case r%2 == 0 && c%2 == 1:
				f.Values[r*cols+c] = cb.Distance(unit(ur, uc), unit(ur, uc+1))
			case r%2 == 1 && c%2 == 0:
				f.Values[r*cols+c] = cb.Distance(unit(ur, uc), unit(ur+1, uc))
			case r%2 == 1 && c%2 == 1:
				d1 := cb.Distance(unit(ur, uc), unit(ur+1, uc+1))
				d2 := cb.Distance(unit(ur, uc+1), unit(ur+1, uc))
				f.Values[r*cols+c] = (d1 + d2) / 2
			}
		}
	}
	// unit cells take the mean of the edges around them
	for r := 0; r < rows; r += 2 {
		for c := 0; c < cols; c += 2 {
			var sum float64
			var n int
			for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				rr, cc := r+d[0], c+d[1]
				if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
					continue
				}
				sum += f.Values[rr*cols+cc]
				n++
			}
			if n > 0 {
				f.Values[r*cols+c] = sum / float64(n)
			}
		}
	}
	return f
}

// ComponentPlane returns the value of one prototype feature across the grid.
func ComponentPlane(g *grid.Grid, cb *codebook.Codebook, feature int) (Field, error) {
	if feature < 0 || feature >= cb.Dim() {
		return Field{}, fmt.Errorf("feature %d out of range [0,%d): %w", feature, cb.Dim(), som.InvalidConfigurationErr)
	}
	f := Field{
		Name:   fmt.Sprintf("f%d", feature),
		Rows:   g.Rows(),
		Cols:   g.Cols(),
		Values: make([]float64, g.Size()),
	}
	for i := range f.Values {
		f.Values[i] = cb.Row(i)[feature]
	}
	return f, nil
}

// ComponentPlanes returns one plane per feature, named after the given feature names.
func ComponentPlanes(g *grid.Grid, cb *codebook.Codebook, names []string) []Field {
	planes := make([]Field, cb.Dim())
	for j := range planes {
		// the feature index is always in range here
		planes[j], _ = ComponentPlane(g, cb, j)
		if j < len(names) && names[j] != "" {
			planes[j].Name = names[j]
		}
	}
	return planes
}

// Marker places a record on its best matching unit.
type Marker struct {
	grid.Coord
	Record int `json:"record"`
	// Class is the color index of the record, -1 if unknown.
	Class int `json:"class"`
}

// Markers creates one marker per record at its best matching unit.
// classes may be nil, in which case every marker gets class -1.
func Markers(g *grid.Grid, bmus []int, classes []int) []Marker {
	mm := make([]Marker, len(bmus))
	for i, u := range bmus {
		class := -1
		if i < len(classes) {
			class = classes[i]
		}
		mm[i] = Marker{
			Coord:  g.Coord(u),
			Record: i,
			Class:  class,
		}
	}
	return mm
}

// ClusterClasses colors each record by the cluster of its best matching unit.
func ClusterClasses(bmus []int, assignment cluster.Assignment) []int {
	classes := make([]int, len(bmus))
	for i, u := range bmus {
		classes[i] = assignment.Clusters[u]
	}
	return classes
}

// Region is a half-open window [RowFrom, RowTo) x [ColFrom, ColTo) of the lattice.
type Region struct {
	RowFrom int `yaml:"row_from" json:"row_from"`
	RowTo   int `yaml:"row_to" json:"row_to"`
	ColFrom int `yaml:"col_from" json:"col_from"`
	ColTo   int `yaml:"col_to" json:"col_to"`
}

func (r Region) String() string {
	return fmt.Sprintf("rows[%d,%d)cols[%d,%d)", r.RowFrom, r.RowTo, r.ColFrom, r.ColTo)
}

// Frame is a field together with the records placed on it.
type Frame struct {
	Field   Field
	Markers []Marker
	// Classes names the class indexes of the markers.
	Classes []string
	// Scale maps marker coordinates onto field cells, 2 for the extended u-matrix.
	Scale int
}

// NewFrame creates a frame for the field and markers.
func NewFrame(field Field, markers []Marker, classes []string) Frame {
	return Frame{
		Field:   field,
		Markers: markers,
		Classes: classes,
		Scale:   1,
	}
}

// cell returns the field cell position of the marker.
func (f Frame) cell(m Marker) (int, int) {
	s := f.Scale
	if s < 1 {
		s = 1
	}
	return m.Row * s, m.Col * s
}

// Position returns the field-local position of the marker.
func (f Frame) Position(m Marker) (int, int) {
	r, c := f.cell(m)
	return r - f.Field.Row0, c - f.Field.Col0
}

// Zoom restricts the frame to the region, given in field coordinates.
// Markers outside the region are dropped.
func (f Frame) Zoom(r Region) (Frame, error) {
	field := f.Field
	if r.RowFrom >= r.RowTo || r.ColFrom >= r.ColTo {
		return Frame{}, fmt.Errorf("empty zoom region %s: %w", r, som.InvalidConfigurationErr)
	}
	if r.RowFrom < field.Row0 || r.ColFrom < field.Col0 ||
		r.RowTo > field.Row0+field.Rows || r.ColTo > field.Col0+field.Cols {
		return Frame{}, fmt.Errorf("zoom region %s outside field rows[%d,%d)cols[%d,%d): %w",
			r, field.Row0, field.Row0+field.Rows, field.Col0, field.Col0+field.Cols, som.InvalidConfigurationErr)
	}
	zoomed := Field{
		Name:   field.Name,
		Row0:   r.RowFrom,
		Col0:   r.ColFrom,
		Rows:   r.RowTo - r.RowFrom,
		Cols:   r.ColTo - r.ColFrom,
		Values: make([]float64, 0, (r.RowTo-r.RowFrom)*(r.ColTo-r.ColFrom)),
	}
	for row := r.RowFrom; row < r.RowTo; row++ {
		for col := r.ColFrom; col < r.ColTo; col++ {
			zoomed.Values = append(zoomed.Values, field.At(row-field.Row0, col-field.Col0))
		}
	}
	markers := make([]Marker, 0, len(f.Markers))
	for _, m := range f.Markers {
		row, col := f.cell(m)
		if row >= r.RowFrom && row < r.RowTo && col >= r.ColFrom && col < r.ColTo {
			markers = append(markers, m)
		}
	}
	return Frame{
		Field:   zoomed,
		Markers: markers,
		Classes: f.Classes,
		Scale:   f.Scale,
	}, nil
}
