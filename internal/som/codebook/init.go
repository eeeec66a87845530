package codebook

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mode is the codebook initialization mode.
type Mode string

const (
	RandomMode Mode = "random"
	PCAMode    Mode = "pca"
)

// eigenvalues below this fraction of the largest one count as missing dimensions
const rankTolerance = 1e-10

// ParseMode parses the initialization mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case RandomMode, "":
		return RandomMode, nil
	case PCAMode:
		return PCAMode, nil
	}
	return "", fmt.Errorf("unknown initialization '%s': %w", s, som.InvalidConfigurationErr)
}

// Options defines how the codebook is initialized.
type Options struct {
	Mode Mode
	Seed int64
	// FallbackRandom switches to random initialization if PCA is not possible for the data.
	FallbackRandom bool
}

// Initialize creates the initial codebook for the grid and dataset.
func Initialize(g *grid.Grid, ds *som.Dataset, opts Options) (*Codebook, error) {
	switch opts.Mode {
	case RandomMode, "":
		return Random(g, ds, rand.New(rand.NewSource(opts.Seed)))
	case PCAMode:
		cb, err := PCA(g, ds)
		if err != nil && opts.FallbackRandom && errors.Is(err, som.DimensionalityErr) {
			log.Warn().Err(err).
				Int("rows", g.Rows()).
				Int("cols", g.Cols()).
				Msg("falling back to random initialization")
			return Random(g, ds, rand.New(rand.NewSource(opts.Seed)))
		}
		return cb, err
	}
	return nil, fmt.Errorf("unknown initialization '%s': %w", opts.Mode, som.InvalidConfigurationErr)
}

// Random draws every prototype value uniformly from the range of the corresponding feature.
func Random(g *grid.Grid, ds *som.Dataset, rng *rand.Rand) (*Codebook, error) {
	cb, err := New(g, ds.Dim())
	if err != nil {
		return nil, err
	}
	summary := ds.Summary()
	for i := 0; i < cb.units; i++ {
		w := cb.w.RawRowView(i)
		for j, s := range summary {
			w[j] = s.Min() + rng.Float64()*s.Range()
		}
	}
	return cb, nil
}

// PCA lays the prototypes on a regular grid spanning the subspace of the first two
// eigenvectors of the feature correlation matrix.
// Rows follow the first component and columns the second, each scaled to one
// standard deviation of the data along the component.
func PCA(g *grid.Grid, ds *som.Dataset) (*Codebook, error) {
	if ds.Dim() < 2 {
		return nil, fmt.Errorf("pca needs at least 2 features but got %d: %w", ds.Dim(), som.DimensionalityErr)
	}
	if ds.Len() < 2 {
		return nil, fmt.Errorf("pca needs at least 2 records but got %d: %w", ds.Len(), som.DimensionalityErr)
	}
	cb, err := New(g, ds.Dim())
	if err != nil {
		return nil, err
	}

	n, dim := ds.Len(), ds.Dim()
	mean := make([]float64, dim)
	std := make([]float64, dim)
	z := mat.NewDense(n, dim, nil)
	for j := 0; j < dim; j++ {
		col := mat.Col(nil, j, ds.Matrix())
		mean[j], std[j] = stat.MeanStdDev(col, nil)
		for i, v := range col {
			if std[j] > 0 {
				z.Set(i, j, (v-mean[j])/std[j])
			}
		}
	}

	var corr mat.SymDense
	stat.CovarianceMatrix(&corr, z, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&corr, true); !ok {
		return nil, fmt.Errorf("could not factorize correlation matrix: %w", som.DimensionalityErr)
	}
	// eigenvalues come in ascending order
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	l1, l2 := values[dim-1], values[dim-2]
	if l1 <= 0 || l2 <= rankTolerance*l1 {
		return nil, fmt.Errorf("data has fewer than 2 linearly independent dimensions [λ1=%v,λ2=%v]: %w", l1, l2, som.DimensionalityErr)
	}
	v1 := mat.Col(nil, dim-1, &vectors)
	v2 := mat.Col(nil, dim-2, &vectors)
	s1, s2 := math.Sqrt(l1), math.Sqrt(l2)

	for i := 0; i < cb.units; i++ {
		c := g.Coord(i)
		a := span(c.Row, g.Rows())
		b := span(c.Col, g.Cols())
		w := cb.w.RawRowView(i)
		for j := 0; j < dim; j++ {
			w[j] = mean[j] + std[j]*(a*s1*v1[j]+b*s2*v2[j])
		}
	}
	return cb, nil
}

// span maps the index evenly on [-1, 1].
func span(i, n int) float64 {
	if n < 2 {
		return 0
	}
	return 2*float64(i)/float64(n-1) - 1
}
