package experiment

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/drakos74/free-som/internal/metrics"
	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/cluster"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/data"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/drakos74/free-som/internal/som/train"
	"github.com/drakos74/free-som/internal/som/view"
	"github.com/drakos74/free-som/internal/som/view/render"
	"github.com/drakos74/free-som/internal/storage"
	"github.com/drakos74/free-som/internal/storage/file/json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const codebookTable = "codebook"

// Result is the outcome of a single experiment.
type Result struct {
	Name              string
	Grid              *grid.Grid
	Codebook          *codebook.Codebook
	Report            *train.Report
	QuantizationError float64
	Assignment        *cluster.Assignment
	Files             []string
	Key               storage.Key
}

// Pipeline runs the configured experiments.
// Every run gets its own id, which also shards the stored codebooks.
// Trained codebooks are also kept in memory for the lifetime of the pipeline.
type Pipeline struct {
	ID      uuid.UUID
	cfg     Config
	store   storage.Persistence
	trained storage.Persistence
	metrics *metrics.Training
}

// NewPipeline creates a new pipeline for the config.
// An empty storage directory disables persistence.
func NewPipeline(cfg Config) (*Pipeline, error) {
	shard := storage.VoidShard()
	if cfg.Storage != "" {
		shard = json.BlobShard(cfg.Storage, codebookTable)
	}
	return NewPipelineWithShard(cfg, shard)
}

// NewPipelineWithShard creates a new pipeline storing the codebooks in the run shard.
func NewPipelineWithShard(cfg Config, shard storage.Shard) (*Pipeline, error) {
	id := uuid.New()
	store, err := shard(id.String())
	if err != nil {
		return nil, fmt.Errorf("could not create storage for run '%s': %w", id, err)
	}
	trained, err := json.LocalShard()(id.String())
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		ID:      id,
		cfg:     cfg,
		store:   store,
		trained: trained,
	}, nil
}

// WithMetrics records the training progress of every experiment.
func (p *Pipeline) WithMetrics(m *metrics.Training) *Pipeline {
	p.metrics = m
	return p
}

// Run loads the configured input and runs all experiments on it.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	ds, err := data.ReadFile(p.cfg.Input.Path, p.cfg.Input.Features, p.cfg.Input.Label)
	if err != nil {
		return nil, err
	}
	return p.RunDataset(ctx, ds)
}

// RunDataset runs all experiments on the given dataset in order.
func (p *Pipeline) RunDataset(ctx context.Context, ds *som.Dataset) ([]Result, error) {
	for j, st := range ds.Summary() {
		log.Debug().
			Str("run", p.ID.String()).
			Str("feature", ds.Names()[j]).
			Float64("min", st.Min()).
			Float64("max", st.Max()).
			Float64("mean", st.Avg()).
			Float64("stdev", st.StDev()).
			Msg("feature summary")
	}
	results := make([]Result, 0, len(p.cfg.Experiments))
	for _, e := range p.cfg.Experiments {
		r, err := p.experiment(ctx, ds, e)
		if err != nil {
			return results, fmt.Errorf("experiment '%s' failed: %w", e.Name, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (p *Pipeline) experiment(ctx context.Context, ds *som.Dataset, e Experiment) (Result, error) {
	g, err := grid.New(e.Grid.Rows, e.Grid.Cols, e.Grid.Topology, e.Grid.Shape)
	if err != nil {
		return Result{}, err
	}
	cb, err := codebook.Initialize(g, ds, codebook.Options{
		Mode:           e.Init.Mode,
		Seed:           e.Init.Seed,
		FallbackRandom: e.Init.Fallback,
	})
	if err != nil {
		return Result{}, fmt.Errorf("could not initialize codebook: %w", err)
	}

	cfg := e.Train.Normalize(g)
	log.Info().
		Str("run", p.ID.String()).
		Str("experiment", e.Name).
		Int("rows", g.Rows()).
		Int("cols", g.Cols()).
		Str("topology", string(g.Topology())).
		Str("init", string(e.Init.Mode)).
		Int("epochs", cfg.Epochs).
		Str("mode", string(cfg.Mode)).
		Msg("training map")
	var observers []train.Observer
	if p.metrics != nil {
		observers = append(observers, p.metrics.Observer(e.Name))
	}
	report, err := train.Train(ctx, cb, ds, g, cfg, observers...)
	if err != nil {
		return Result{}, err
	}
	qe, err := cb.QuantizationError(ds)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		Name:              e.Name,
		Grid:              g,
		Codebook:          cb,
		Report:            report,
		QuantizationError: qe,
		Key:               codebookKey(e.Name),
	}

	if e.Cluster != nil {
		algo, err := cluster.Algorithm(e.Cluster.Algorithm)
		if err != nil {
			return Result{}, err
		}
		a, err := algo(cb, e.Cluster.Config)
		if err != nil {
			return Result{}, fmt.Errorf("could not cluster codebook: %w", err)
		}
		result.Assignment = &a
		log.Info().
			Str("run", p.ID.String()).
			Str("experiment", e.Name).
			Int("k", a.K).
			Ints("sizes", a.Sizes()).
			Msg("clustered codebook")
	}

	files, err := p.render(ds, e, result)
	if err != nil {
		return Result{}, err
	}
	result.Files = files

	if err := codebook.Store(p.trained, result.Key, g, cb); err != nil {
		return Result{}, err
	}
	if err := codebook.Store(p.store, result.Key, g, cb); err != nil {
		return Result{}, fmt.Errorf("could not store codebook: %w", err)
	}
	log.Info().
		Str("run", p.ID.String()).
		Str("experiment", e.Name).
		Float64("qe", qe).
		Int("files", len(files)).
		Msg("experiment done")
	return result, nil
}

// render draws the configured views of the trained map.
func (p *Pipeline) render(ds *som.Dataset, e Experiment, r Result) ([]string, error) {
	bmus, err := r.Codebook.BestMatches(ds)
	if err != nil {
		return nil, err
	}
	classNames, labelClasses := ds.Classes()

	files := make([]string, 0, len(e.Views))
	for _, v := range e.Views {
		var markers []view.Marker
		var names []string
		if v.BestMatches {
			var classes []int
			classes, names = markerClasses(v, classNames, labelClasses, bmus, r.Assignment)
			markers = view.Markers(r.Grid, bmus, classes)
		}

		var frames []view.Frame
		switch v.Kind {
		case ComponentsView:
			for _, plane := range view.ComponentPlanes(r.Grid, r.Codebook, ds.Names()) {
				frames = append(frames, view.NewFrame(plane, markers, names))
			}
		case ExtendedView:
			frame := view.NewFrame(view.ExtendedUMatrix(r.Grid, r.Codebook), markers, names)
			frame.Scale = 2
			frames = append(frames, frame)
		default:
			frames = append(frames, view.NewFrame(view.UMatrix(r.Grid, r.Codebook, view.Mean), markers, names))
		}

		for i, frame := range frames {
			if v.Zoom != nil {
				frame, err = frame.Zoom(*v.Zoom)
				if err != nil {
					return nil, fmt.Errorf("view '%s': %w", v.Name, err)
				}
			}
			name := v.Name
			if len(frames) > 1 {
				name = fmt.Sprintf("%s_%s", v.Name, frame.Field.Name)
			}
			frame.Field.Name = fmt.Sprintf("%s %s", e.Name, frame.Field.Name)
			path := filepath.Join(p.cfg.Output, fmt.Sprintf("%s.png", name))
			if err := render.PNG(frame, path, e.Render); err != nil {
				return nil, fmt.Errorf("view '%s' [%d]: %w", v.Name, i, err)
			}
			files = append(files, path)
		}
	}
	return files, nil
}

// markerClasses picks the marker colors the view asks for.
// Both results are nil when the view asks for none or the source is missing.
func markerClasses(v View, labelNames []string, labels []int, bmus []int, a *cluster.Assignment) ([]int, []string) {
	switch {
	case v.Labels && labels != nil:
		return labels, labelNames
	case v.Clusters && a != nil:
		return view.ClusterClasses(bmus, *a), clusterNames(a.K)
	}
	return nil, nil
}

func clusterNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("cluster %d", i)
	}
	return names
}

func codebookKey(experiment string) storage.Key {
	return storage.Key{
		Experiment: experiment,
		Label:      codebookTable,
	}
}

// Codebook returns the map trained by the experiment in this run.
func (p *Pipeline) Codebook(experiment string) (*grid.Grid, *codebook.Codebook, error) {
	return codebook.Load(p.trained, codebookKey(experiment))
}

// LoadCodebook loads a codebook stored by a previous run.
func LoadCodebook(dir string, run uuid.UUID, experiment string) (*grid.Grid, *codebook.Codebook, error) {
	store, err := json.BlobShard(dir, codebookTable)(run.String())
	if err != nil {
		return nil, nil, err
	}
	return codebook.Load(store, codebookKey(experiment))
}
