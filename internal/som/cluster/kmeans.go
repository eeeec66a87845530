package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultK          = 8
	DefaultIterations = 300
)

// Config defines the k-means run over the codebook prototypes.
type Config struct {
	K          int   `yaml:"k" json:"k"`
	Iterations int   `yaml:"iterations" json:"iterations"`
	Seed       int64 `yaml:"seed" json:"seed"`
}

// Normalize fills in the defaults for the zero values.
func (c Config) Normalize() Config {
	if c.K == 0 {
		c.K = DefaultK
	}
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	return c
}

// Assignment holds the cluster id of every unit in topology order.
type Assignment struct {
	K        int   `json:"k"`
	Clusters []int `json:"clusters"`
}

// At returns the cluster of the unit at the given coordinate.
func (a Assignment) At(g *grid.Grid, c grid.Coord) int {
	return a.Clusters[g.Index(c)]
}

// Sizes returns the number of units per cluster.
func (a Assignment) Sizes() []int {
	sizes := make([]int, a.K)
	for _, k := range a.Clusters {
		sizes[k]++
	}
	return sizes
}

func validate(cb *codebook.Codebook, cfg Config) error {
	if cfg.K < 1 {
		return fmt.Errorf("cluster count must be positive but was %d: %w", cfg.K, som.InvalidConfigurationErr)
	}
	if cfg.Iterations < 1 {
		return fmt.Errorf("iterations must be positive but was %d: %w", cfg.Iterations, som.InvalidConfigurationErr)
	}
	if cb.Units() < cfg.K {
		return fmt.Errorf("cannot form %d clusters out of %d units: %w", cfg.K, cb.Units(), som.InsufficientDataErr)
	}
	return nil
}

// Cluster partitions the codebook prototypes into k clusters.
// Centroids are seeded with k-means++ and refined with Lloyd iterations until the assignment is stable.
func Cluster(cb *codebook.Codebook, cfg Config) (Assignment, error) {
	cfg = cfg.Normalize()
	if err := validate(cb, cfg); err != nil {
		return Assignment{}, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := seed(cb, cfg.K, rng)

	assignment := Assignment{
		K:        cfg.K,
		Clusters: make([]int, cb.Units()),
	}
	for i := range assignment.Clusters {
		assignment.Clusters[i] = -1
	}
	for it := 0; it < cfg.Iterations; it++ {
		changed := 0
		for i := 0; i < cb.Units(); i++ {
			k := nearest(centroids, cb.Row(i))
			if k != assignment.Clusters[i] {
				assignment.Clusters[i] = k
				changed++
			}
		}
		if changed == 0 {
			log.Debug().Int("iterations", it).Int("k", cfg.K).Msg("k-means converged")
			break
		}
		update(cb, assignment, centroids)
	}
	return assignment, nil
}

// seed picks the initial centroids with the k-means++ rule.
func seed(cb *codebook.Codebook, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cb.Vector(rng.Intn(cb.Units())))
	weights := make([]float64, cb.Units())
	for len(centroids) < k {
		var total float64
		for i := range weights {
			d := floats.Distance(cb.Row(i), centroids[nearest(centroids, cb.Row(i))], 2)
			weights[i] = d * d
			total += weights[i]
		}
		next := 0
		if total == 0 {
			// all remaining prototypes coincide with a centroid
			next = rng.Intn(cb.Units())
		} else {
			target := rng.Float64() * total
			for i, w := range weights {
				if w == 0 {
					continue
				}
				next = i
				target -= w
				if target <= 0 {
					break
				}
			}
		}
		centroids = append(centroids, cb.Vector(next))
	}
	return centroids
}

// nearest returns the closest centroid, ties resolving to the lowest index.
func nearest(centroids [][]float64, v []float64) int {
	best := 0
	dist := math.Inf(1)
	for k, c := range centroids {
		if d := floats.Distance(c, v, 2); d < dist {
			dist = d
			best = k
		}
	}
	return best
}

// update moves every centroid to the mean of its units, empty clusters keep their centroid.
func update(cb *codebook.Codebook, a Assignment, centroids [][]float64) {
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for k := range sums {
		sums[k] = make([]float64, cb.Dim())
	}
	for i, k := range a.Clusters {
		floats.Add(sums[k], cb.Row(i))
		counts[k]++
	}
	for k := range centroids {
		if counts[k] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[k]), sums[k])
		centroids[k] = sums[k]
	}
}
