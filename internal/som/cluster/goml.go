package cluster

import (
	"fmt"
	"math/rand"

	goml "github.com/cdipaolo/goml/cluster"
	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/rs/zerolog/log"
)

// Goml clusters the codebook with the goml k-means implementation.
// goml draws its initial centroids from the global random source, which is seeded with the config seed.
func Goml(cb *codebook.Codebook, cfg Config) (Assignment, error) {
	cfg = cfg.Normalize()
	if err := validate(cb, cfg); err != nil {
		return Assignment{}, err
	}
	data := make([][]float64, cb.Units())
	for i := range data {
		data[i] = cb.Vector(i)
	}
	rand.Seed(cfg.Seed)
	model := goml.NewKMeans(cfg.K, cfg.Iterations, data)
	if err := model.Learn(); err != nil {
		log.Error().
			Err(err).
			Int("k", cfg.K).
			Int("units", cb.Units()).
			Msg("could not train k-means")
		return Assignment{}, fmt.Errorf("could not train: %w", err)
	}
	guesses := model.Guesses()
	if len(guesses) != cb.Units() {
		return Assignment{}, fmt.Errorf("could not align guesses with units [ %d | %d ]", len(guesses), cb.Units())
	}
	return Assignment{
		K:        cfg.K,
		Clusters: guesses,
	}, nil
}

// Func is a clustering algorithm over the codebook.
type Func func(cb *codebook.Codebook, cfg Config) (Assignment, error)

// Algorithm returns the clustering algorithm for the given name, defaulting to the local k-means.
func Algorithm(name string) (Func, error) {
	switch name {
	case "", "kmeans":
		return Cluster, nil
	case "goml":
		return Goml, nil
	}
	return nil, fmt.Errorf("unknown clustering algorithm '%s': %w", name, som.InvalidConfigurationErr)
}
