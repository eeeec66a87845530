package cluster

import (
	"errors"
	"testing"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCodebook creates a codebook with one prototype per given vector.
func newCodebook(t *testing.T, rows, cols int, vv [][]float64) (*grid.Grid, *codebook.Codebook) {
	g, err := grid.New(rows, cols, grid.Planar, grid.Rectangular)
	require.NoError(t, err)
	cb, err := codebook.New(g, len(vv[0]))
	require.NoError(t, err)
	for i, v := range vv {
		require.NoError(t, cb.Set(i, v))
	}
	return g, cb
}

func twoGroups(t *testing.T) (*grid.Grid, *codebook.Codebook) {
	return newCodebook(t, 2, 3, [][]float64{
		{0, 0}, {0.1, 0.2}, {0.2, 0.1},
		{5, 5}, {5.1, 4.9}, {4.8, 5.2},
	})
}

func TestCluster_InvalidConfig(t *testing.T) {

	type test struct {
		cfg Config
		err error
	}

	tests := map[string]test{
		"negative-k": {
			cfg: Config{K: -1},
			err: som.InvalidConfigurationErr,
		},
		"negative-iterations": {
			cfg: Config{K: 2, Iterations: -3},
			err: som.InvalidConfigurationErr,
		},
		"more-clusters-than-units": {
			cfg: Config{K: 7},
			err: som.InsufficientDataErr,
		},
	}

	_, cb := twoGroups(t)
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for _, algo := range []Func{Cluster, Goml} {
				_, err := algo(cb, tt.cfg)
				assert.True(t, errors.Is(err, tt.err), "%v", err)
			}
		})
	}
}

func TestCluster_Groups(t *testing.T) {
	g, cb := twoGroups(t)
	a, err := Cluster(cb, Config{K: 2, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, a.K)
	assert.Equal(t, cb.Units(), len(a.Clusters))
	// the rows of the grid hold the two groups
	for col := 1; col < g.Cols(); col++ {
		assert.Equal(t, a.At(g, grid.Coord{Row: 0}), a.At(g, grid.Coord{Row: 0, Col: col}))
		assert.Equal(t, a.At(g, grid.Coord{Row: 1}), a.At(g, grid.Coord{Row: 1, Col: col}))
	}
	assert.NotEqual(t, a.At(g, grid.Coord{Row: 0}), a.At(g, grid.Coord{Row: 1}))
	assert.Equal(t, []int{3, 3}, a.Sizes())
}

func TestGoml(t *testing.T) {
	_, cb := twoGroups(t)
	a, err := Goml(cb, Config{K: 2, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, cb.Units(), len(a.Clusters))
	var total int
	for _, size := range a.Sizes() {
		total += size
	}
	assert.Equal(t, cb.Units(), total)
}

func TestCluster_Bijection(t *testing.T) {
	g, cb := newCodebook(t, 2, 2, [][]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}})
	a, err := Cluster(cb, Config{K: g.Size(), Seed: 11})
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, k := range a.Clusters {
		assert.True(t, k >= 0 && k < g.Size())
		seen[k] = true
	}
	assert.Equal(t, g.Size(), len(seen))
	assert.Equal(t, []int{1, 1, 1, 1}, a.Sizes())
}

func TestCluster_Deterministic(t *testing.T) {
	_, cb := newCodebook(t, 3, 3, [][]float64{
		{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}, {6, 6}, {7, 7}, {8, 8},
	})
	a, err := Cluster(cb, Config{K: 3, Seed: 5})
	require.NoError(t, err)
	b, err := Cluster(cb, Config{K: 3, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCluster_Defaults(t *testing.T) {
	cfg := Config{}.Normalize()
	assert.Equal(t, DefaultK, cfg.K)
	assert.Equal(t, DefaultIterations, cfg.Iterations)

	_, cb := twoGroups(t)
	// 8 clusters over 6 units
	_, err := Cluster(cb, Config{})
	assert.True(t, errors.Is(err, som.InsufficientDataErr))
}

func TestAlgorithm(t *testing.T) {
	for _, name := range []string{"", "kmeans", "goml"} {
		f, err := Algorithm(name)
		require.NoError(t, err)
		assert.NotNil(t, f)
	}
	_, err := Algorithm("dbscan")
	assert.True(t, errors.Is(err, som.InvalidConfigurationErr))
}
