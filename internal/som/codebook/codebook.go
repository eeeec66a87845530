package codebook

import (
	"fmt"
	"math"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/grid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Codebook holds one prototype vector per grid unit, in topology order.
type Codebook struct {
	units int
	dim   int
	w     *mat.Dense
}

// New creates a codebook of zero prototypes for every unit of the grid.
func New(g *grid.Grid, dim int) (*Codebook, error) {
	if g == nil || g.Size() == 0 {
		return nil, fmt.Errorf("grid has no units: %w", som.InvalidConfigurationErr)
	}
	if dim < 1 {
		return nil, fmt.Errorf("prototype dimension must be positive but was %d: %w", dim, som.InvalidConfigurationErr)
	}
	return &Codebook{
		units: g.Size(),
		dim:   dim,
		w:     mat.NewDense(g.Size(), dim, nil),
	}, nil
}

// Units returns the number of prototypes.
func (cb *Codebook) Units() int {
	return cb.units
}

// Dim returns the dimension of the prototypes.
func (cb *Codebook) Dim() int {
	return cb.dim
}

// Row returns a view of the prototype of unit i.
// Changes to the returned slice change the codebook.
func (cb *Codebook) Row(i int) []float64 {
	return cb.w.RawRowView(i)
}

// Vector returns a copy of the prototype of unit i.
func (cb *Codebook) Vector(i int) []float64 {
	return mat.Row(nil, i, cb.w)
}

// Set replaces the prototype of unit i.
func (cb *Codebook) Set(i int, v []float64) error {
	if i < 0 || i >= cb.units {
		return fmt.Errorf("unit %d out of range [0,%d): %w", i, cb.units, som.InvalidConfigurationErr)
	}
	if len(v) != cb.dim {
		return fmt.Errorf("vector for unit %d has dimension %d instead of %d: %w", i, len(v), cb.dim, som.MalformedInputErr)
	}
	cb.w.SetRow(i, v)
	return nil
}

// Matrix exposes the prototypes as a read-only matrix.
func (cb *Codebook) Matrix() mat.Matrix {
	return cb.w
}

// Clone creates a deep copy of the codebook.
func (cb *Codebook) Clone() *Codebook {
	return &Codebook{
		units: cb.units,
		dim:   cb.dim,
		w:     mat.DenseCopyOf(cb.w),
	}
}

// Equal checks if the two codebooks hold exactly the same prototypes.
func (cb *Codebook) Equal(other *Codebook) bool {
	if other == nil || cb.units != other.units || cb.dim != other.dim {
		return false
	}
	return mat.Equal(cb.w, other.w)
}

// Finite checks that every prototype value is a finite number.
func (cb *Codebook) Finite() bool {
	for i := 0; i < cb.units; i++ {
		for _, v := range cb.w.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// BMU finds the best matching unit for the record.
// Ties resolve to the lowest unit index.
func (cb *Codebook) BMU(record []float64) (int, float64) {
	unit := 0
	best := math.MaxFloat64
	for i := 0; i < cb.units; i++ {
		if d := squaredDistance(cb.w.RawRowView(i), record); d < best {
			best = d
			unit = i
		}
	}
	return unit, math.Sqrt(best)
}

// BestMatches returns the best matching unit of every record of the dataset.
func (cb *Codebook) BestMatches(ds *som.Dataset) ([]int, error) {
	if ds.Dim() != cb.dim {
		return nil, fmt.Errorf("dataset dimension %d does not match codebook dimension %d: %w", ds.Dim(), cb.dim, som.MalformedInputErr)
	}
	bmus := make([]int, ds.Len())
	for i := range bmus {
		bmus[i], _ = cb.BMU(ds.Row(i))
	}
	return bmus, nil
}

// QuantizationError returns the mean distance of the records to their best matching unit.
func (cb *Codebook) QuantizationError(ds *som.Dataset) (float64, error) {
	if ds.Dim() != cb.dim {
		return 0, fmt.Errorf("dataset dimension %d does not match codebook dimension %d: %w", ds.Dim(), cb.dim, som.MalformedInputErr)
	}
	var sum float64
	for i := 0; i < ds.Len(); i++ {
		_, d := cb.BMU(ds.Row(i))
		sum += d
	}
	return sum / float64(ds.Len()), nil
}

// Distance returns the euclidean distance between the prototypes of units i and j.
func (cb *Codebook) Distance(i, j int) float64 {
	return floats.Distance(cb.w.RawRowView(i), cb.w.RawRowView(j), 2)
}

func squaredDistance(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += (a[i] - b[i]) * (a[i] - b[i])
	}
	return s
}
