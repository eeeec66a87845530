package train

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/drakos74/free-som/internal/som/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type observerFunc func(stats EpochStats)

func (f observerFunc) OnEpoch(stats EpochStats) {
	f(stats)
}

func blobs(t *testing.T, n int, seed int64) *som.Dataset {
	rng := rand.New(rand.NewSource(seed))
	records := make([][]float64, n)
	for i := range records {
		c := 0.0
		if i%2 == 1 {
			c = 5
		}
		records[i] = []float64{c + rng.NormFloat64()*0.5, c + rng.NormFloat64()*0.5}
	}
	ds, err := som.NewDataset(records, nil, nil)
	require.NoError(t, err)
	return ds
}

func twoClusters(t *testing.T) *som.Dataset {
	ds, err := som.NewDataset([][]float64{
		{0.1, 0, 0.2},
		{0, 0.2, 0.1},
		{0.2, 0.1, 0},
		{10, 10.1, 9.9},
		{9.9, 10, 10.2},
		{10.1, 9.8, 10},
	}, []string{"a", "a", "a", "b", "b", "b"}, nil)
	require.NoError(t, err)
	return ds
}

func setup(t *testing.T, rows, cols int, topology grid.Topology, ds *som.Dataset) (*grid.Grid, *codebook.Codebook) {
	g, err := grid.New(rows, cols, topology, grid.Rectangular)
	require.NoError(t, err)
	cb, err := codebook.Random(g, ds, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return g, cb
}

func TestTrain_InvalidConfiguration(t *testing.T) {
	ds := blobs(t, 20, 1)
	g, cb := setup(t, 3, 3, grid.Planar, ds)

	type test struct {
		modify func(cfg Config) Config
		msg    string
	}

	tests := map[string]test{
		"zero-epochs": {
			modify: func(cfg Config) Config {
				cfg.Epochs = 0
				return cfg
			},
			msg: "epochs",
		},
		"negative-epochs": {
			modify: func(cfg Config) Config {
				cfg.Epochs = -3
				return cfg
			},
			msg: "epochs",
		},
		"zero-radius": {
			modify: func(cfg Config) Config {
				cfg.Radius.Start = 0
				return cfg
			},
			msg: "radius",
		},
		"growing-rate": {
			modify: func(cfg Config) Config {
				cfg.LearningRate.End = 0.5
				return cfg
			},
			msg: "learning rate",
		},
		"rate-above-one": {
			modify: func(cfg Config) Config {
				cfg.LearningRate.Start = 2
				cfg.LearningRate.End = 1
				return cfg
			},
			msg: "learning rate",
		},
		"unknown-kernel": {
			modify: func(cfg Config) Config {
				cfg.Kernel = "mexican-hat"
				return cfg
			},
			msg: "kernel",
		},
		"unknown-mode": {
			modify: func(cfg Config) Config {
				cfg.Mode = "distributed"
				return cfg
			},
			msg: "mode",
		},
		"empty-batch": {
			modify: func(cfg Config) Config {
				cfg.Mode = Batched
				cfg.BatchSize = 0
				return cfg
			},
			msg: "batch size",
		},
		"unknown-cooling": {
			modify: func(cfg Config) Config {
				cfg.Radius.Cooling = "step"
				return cfg
			},
			msg: "cooling",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			before := cb.Clone()
			report, err := Train(context.Background(), cb, ds, g, tt.modify(Default(g)))
			assert.Nil(t, report)
			assert.True(t, errors.Is(err, som.InvalidConfigurationErr))
			assert.Contains(t, err.Error(), tt.msg)
			assert.True(t, before.Equal(cb), "codebook changed on failure")
		})
	}
}

func TestTrain_InvalidInput(t *testing.T) {
	ds := blobs(t, 20, 1)
	g, cb := setup(t, 2, 2, grid.Planar, ds)

	other, err := grid.New(3, 3, grid.Planar, grid.Rectangular)
	require.NoError(t, err)
	_, err = Train(context.Background(), cb, ds, other, Default(other))
	assert.True(t, errors.Is(err, som.InvalidConfigurationErr))

	wide, err := som.NewDataset([][]float64{{1, 2, 3}}, nil, nil)
	require.NoError(t, err)
	before := cb.Clone()
	_, err = Train(context.Background(), cb, wide, g, Default(g))
	assert.True(t, errors.Is(err, som.MalformedInputErr))
	assert.True(t, before.Equal(cb))
}

func TestSchedule_At(t *testing.T) {

	type test struct {
		schedule Schedule
		epochs   int
		first    float64
		last     float64
	}

	tests := map[string]test{
		"linear": {
			schedule: Schedule{Start: 10, End: 1, Cooling: Linear},
			epochs:   10,
			first:    10,
			last:     1,
		},
		"exponential": {
			schedule: Schedule{Start: 1, End: 0.01, Cooling: Exponential},
			epochs:   5,
			first:    1,
			last:     0.01,
		},
		"single-epoch": {
			schedule: Schedule{Start: 3, End: 1, Cooling: Linear},
			epochs:   1,
			first:    3,
			last:     3,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.InDelta(t, tt.first, tt.schedule.At(0, tt.epochs), 1e-12)
			assert.InDelta(t, tt.last, tt.schedule.At(tt.epochs-1, tt.epochs), 1e-12)
			for e := 1; e < tt.epochs; e++ {
				assert.True(t, tt.schedule.At(e, tt.epochs) < tt.schedule.At(e-1, tt.epochs))
			}
		})
	}
}

func TestConfig_Normalize(t *testing.T) {
	g, err := grid.New(20, 10, grid.Toroid, grid.Hexagonal)
	require.NoError(t, err)

	cfg := Config{Epochs: 3, Mode: Batched}.Normalize(g)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, Batched, cfg.Mode)
	assert.Equal(t, 5.0, cfg.Radius.Start)
	assert.Equal(t, 1.0, cfg.Radius.End)
	assert.Equal(t, Gaussian, cfg.Kernel)
	assert.Equal(t, Online, cfg.Rule)
	assert.True(t, cfg.Workers > 0)
}

func TestConfig_UnmarshalYAML(t *testing.T) {

	type test struct {
		doc    string
		epochs int
		err    bool
	}

	tests := map[string]test{
		"omitted": {
			doc:    "mode: batched\n",
			epochs: 10,
		},
		"explicit": {
			doc:    "epochs: 4\n",
			epochs: 4,
		},
		"zero": {
			doc: "epochs: 0\n",
			err: true,
		},
		"negative": {
			doc: "epochs: -2\n",
			err: true,
		},
	}

	g, err := grid.New(4, 4, grid.Planar, grid.Rectangular)
	require.NoError(t, err)
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var cfg Config
			err := yaml.Unmarshal([]byte(tt.doc), &cfg)
			if tt.err {
				assert.True(t, errors.Is(err, som.InvalidConfigurationErr), "%v", err)
				return
			}
			require.NoError(t, err)
			cfg = cfg.Normalize(g)
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.epochs, cfg.Epochs)
		})
	}
}

func TestTrain_Convergence(t *testing.T) {
	ds := blobs(t, 60, 3)
	g, cb := setup(t, 3, 3, grid.Planar, ds)

	cfg := Default(g)
	cfg.Epochs = 20
	cfg.Order = Shuffled
	cfg.Seed = 11
	cfg.Radius = Schedule{Start: 1, End: 1, Cooling: Linear}
	cfg.LearningRate = Schedule{Start: 0.5, End: 0.001, Cooling: Exponential}

	epochs := 0
	report, err := Train(context.Background(), cb, ds, g, cfg, observerFunc(func(stats EpochStats) {
		assert.Equal(t, epochs, stats.Epoch)
		assert.Equal(t, 60, stats.Records)
		epochs++
	}))
	require.NoError(t, err)
	require.Equal(t, 20, len(report.Epochs))
	assert.Equal(t, 20, epochs)

	first := report.Epochs[1].Movement
	last := report.Epochs[19].Movement
	assert.True(t, last < first, "no convergence: first=%v last=%v", first, last)

	stats, ok := report.Last()
	require.True(t, ok)
	assert.InDelta(t, 0.001, stats.LearningRate, 1e-12)
	assert.True(t, cb.Finite())
}

func TestTrain_Deterministic(t *testing.T) {
	ds := blobs(t, 50, 5)
	for _, rule := range []Rule{Online, Batch} {
		t.Run(string(rule), func(t *testing.T) {
			g, a := setup(t, 4, 3, grid.Toroid, ds)
			_, b := setup(t, 4, 3, grid.Toroid, ds)

			cfg := Default(g)
			cfg.Order = Shuffled
			cfg.Rule = rule
			cfg.Seed = 9

			_, err := Train(context.Background(), a, ds, g, cfg)
			require.NoError(t, err)
			_, err = Train(context.Background(), b, ds, g, cfg)
			require.NoError(t, err)
			assert.True(t, a.Equal(b))
		})
	}
}

func TestTrain_Batched(t *testing.T) {
	ds := blobs(t, 200, 7)
	for _, rule := range []Rule{Online, Batch} {
		t.Run(string(rule), func(t *testing.T) {
			g, cb := setup(t, 4, 4, grid.Planar, ds)
			initial, err := cb.QuantizationError(ds)
			require.NoError(t, err)

			cfg := Default(g)
			cfg.Mode = Batched
			cfg.Rule = rule
			cfg.BatchSize = 16
			cfg.Workers = 4
			cfg.Epochs = 5

			report, err := Train(context.Background(), cb, ds, g, cfg)
			require.NoError(t, err)
			assert.Equal(t, 5, len(report.Epochs))
			assert.True(t, cb.Finite())
			assert.Equal(t, g.Size(), cb.Units())

			trained, err := cb.QuantizationError(ds)
			require.NoError(t, err)
			assert.True(t, trained < initial, "quantization error did not improve: %v -> %v", initial, trained)
		})
	}
}

func TestTrain_BatchRule(t *testing.T) {
	ds := twoClusters(t)
	g, err := grid.New(1, 2, grid.Planar, grid.Rectangular)
	require.NoError(t, err)

	for _, mode := range []Mode{Sequential, Batched} {
		t.Run(string(mode), func(t *testing.T) {
			cb, err := codebook.New(g, 3)
			require.NoError(t, err)
			require.NoError(t, cb.Set(0, []float64{1, 1, 1}))
			require.NoError(t, cb.Set(1, []float64{9, 9, 9}))

			cfg := Default(g)
			cfg.Epochs = 1
			cfg.Rule = Batch
			cfg.Mode = mode
			cfg.Kernel = Bubble
			cfg.Radius = Schedule{Start: 0.5, End: 0.5, Cooling: Linear}

			_, err = Train(context.Background(), cb, ds, g, cfg)
			require.NoError(t, err)

			assert.InDeltaSlice(t, []float64{0.1, 0.1, 0.1}, cb.Vector(0), 1e-9)
			assert.InDeltaSlice(t, []float64{10, 9.966666666666667, 10.033333333333333}, cb.Vector(1), 1e-9)
		})
	}
}

func TestTrain_Cancel(t *testing.T) {
	ds := blobs(t, 40, 2)
	g, cb := setup(t, 3, 3, grid.Toroid, ds)

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Default(g)
	cfg.Epochs = 10
	report, err := Train(ctx, cb, ds, g, cfg, observerFunc(func(stats EpochStats) {
		if stats.Epoch == 1 {
			cancel()
		}
	}))
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, report)
	assert.Equal(t, 2, len(report.Epochs))
	assert.True(t, cb.Finite())
	assert.Equal(t, g.Size(), cb.Units())

	// a cancelled context stops before any update
	before := cb.Clone()
	for _, mode := range []Mode{Sequential, Batched} {
		cfg.Mode = mode
		_, err = Train(ctx, cb, ds, g, cfg)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.True(t, before.Equal(cb))
	}
}

func TestTrain_TwoClusters(t *testing.T) {
	ds := twoClusters(t)
	g, err := grid.New(2, 2, grid.Planar, grid.Rectangular)
	require.NoError(t, err)
	cb, err := codebook.PCA(g, ds)
	require.NoError(t, err)

	cfg := Default(g)
	cfg.Epochs = 100
	cfg.Support = Compact
	cfg.Radius = Schedule{Start: 0.9, End: 0.1, Cooling: Linear}
	cfg.LearningRate = Schedule{Start: 0.5, End: 0.01, Cooling: Linear}

	_, err = Train(context.Background(), cb, ds, g, cfg)
	require.NoError(t, err)

	for _, center := range [][]float64{{0.1, 0.1, 0.1}, {10, 9.97, 10.03}} {
		_, d := cb.BMU(center)
		assert.True(t, d < 1.0, "no prototype near %v: %v", center, d)
	}

	u := view.UMatrix(g, cb, view.Mean)
	for _, v := range u.Values {
		assert.True(t, v >= 0)
	}
	extended := view.ExtendedUMatrix(g, cb)
	assert.True(t, extended.Max()-extended.Min() > 10, "no boundary detected [%v,%v]", extended.Min(), extended.Max())
	// on a 2x2 grid every unit borders the other cluster
	assert.True(t, u.Min() > 5)
}
