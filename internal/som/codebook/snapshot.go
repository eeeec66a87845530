package codebook

import (
	"fmt"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/drakos74/free-som/internal/storage"
)

// Unit is a single exported prototype.
type Unit struct {
	Coord  grid.Coord `json:"coord"`
	Vector []float64  `json:"vector"`
}

// Snapshot is the flat export format of a codebook and its grid.
type Snapshot struct {
	Rows     int           `json:"rows"`
	Cols     int           `json:"cols"`
	Topology grid.Topology `json:"topology"`
	Shape    grid.Shape    `json:"shape"`
	Dim      int           `json:"dim"`
	Units    []Unit        `json:"units"`
}

// Export exports the codebook as a list of (coordinate, vector) pairs in topology order.
func Export(g *grid.Grid, cb *Codebook) Snapshot {
	units := make([]Unit, cb.units)
	for i := range units {
		units[i] = Unit{
			Coord:  g.Coord(i),
			Vector: cb.Vector(i),
		}
	}
	return Snapshot{
		Rows:     g.Rows(),
		Cols:     g.Cols(),
		Topology: g.Topology(),
		Shape:    g.Shape(),
		Dim:      cb.dim,
		Units:    units,
	}
}

// Import rebuilds the grid and codebook from a snapshot.
// Every grid coordinate must appear exactly once.
func Import(s Snapshot) (*grid.Grid, *Codebook, error) {
	g, err := grid.New(s.Rows, s.Cols, s.Topology, s.Shape)
	if err != nil {
		return nil, nil, err
	}
	cb, err := New(g, s.Dim)
	if err != nil {
		return nil, nil, err
	}
	if len(s.Units) != g.Size() {
		return nil, nil, fmt.Errorf("snapshot has %d units but grid has %d: %w", len(s.Units), g.Size(), som.MalformedInputErr)
	}
	seen := make(map[grid.Coord]struct{}, g.Size())
	for i, u := range s.Units {
		if !g.Contains(u.Coord) {
			return nil, nil, fmt.Errorf("unit %d has coordinate %v outside the grid: %w", i, u.Coord, som.MalformedInputErr)
		}
		if _, ok := seen[u.Coord]; ok {
			return nil, nil, fmt.Errorf("unit %d duplicates coordinate %v: %w", i, u.Coord, som.MalformedInputErr)
		}
		seen[u.Coord] = struct{}{}
		if err := cb.Set(g.Index(u.Coord), u.Vector); err != nil {
			return nil, nil, fmt.Errorf("unit %d: %w", i, err)
		}
	}
	if !cb.Finite() {
		return nil, nil, fmt.Errorf("snapshot contains non finite values: %w", som.MalformedInputErr)
	}
	return g, cb, nil
}

// Store persists the codebook snapshot under the given key.
func Store(p storage.Persistence, k storage.Key, g *grid.Grid, cb *Codebook) error {
	if err := p.Store(k, Export(g, cb)); err != nil {
		return fmt.Errorf("could not store codebook '%s': %w", k.Path(), err)
	}
	return nil
}

// Load loads a codebook snapshot stored under the given key.
func Load(p storage.Persistence, k storage.Key) (*grid.Grid, *Codebook, error) {
	var s Snapshot
	if err := p.Load(k, &s); err != nil {
		return nil, nil, fmt.Errorf("could not load codebook '%s': %w", k.Path(), err)
	}
	return Import(s)
}
