package train

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// records processed between two cancellation checks in sequential mode
const checkEvery = 16

// EpochStats summarises a single training epoch.
type EpochStats struct {
	Epoch        int     `json:"epoch"`
	Radius       float64 `json:"radius"`
	LearningRate float64 `json:"learning_rate"`
	// Movement is the mean squared change of the prototypes across the epoch.
	Movement float64 `json:"movement"`
	// QuantizationError is the mean distance of the records to their best matching unit,
	// measured when each record was searched.
	QuantizationError float64       `json:"quantization_error"`
	Records           int           `json:"records"`
	Duration          time.Duration `json:"duration"`
}

// Report collects the stats of all completed epochs.
type Report struct {
	Epochs []EpochStats `json:"epochs"`
}

// Last returns the stats of the last completed epoch.
func (r *Report) Last() (EpochStats, bool) {
	if r == nil || len(r.Epochs) == 0 {
		return EpochStats{}, false
	}
	return r.Epochs[len(r.Epochs)-1], true
}

// Observer is notified at the end of every epoch.
type Observer interface {
	OnEpoch(stats EpochStats)
}

type match struct {
	record   int
	unit     int
	distance float64
}

type trainer struct {
	cfg    Config
	g      *grid.Grid
	cb     *codebook.Codebook
	ds     *som.Dataset
	coords []grid.Coord
	rng    *rand.Rand
	order  []int
}

// Train trains the codebook in place on the dataset.
// The configuration and inputs are validated before the codebook is touched.
// If the context is cancelled, training stops between records and the codebook
// keeps the updates done so far, every unit still holding one prototype.
func Train(ctx context.Context, cb *codebook.Codebook, ds *som.Dataset, g *grid.Grid, cfg Config, observers ...Observer) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if g == nil || g.Size() == 0 {
		return nil, fmt.Errorf("grid has no units: %w", som.InvalidConfigurationErr)
	}
	if cb == nil || cb.Units() != g.Size() {
		return nil, fmt.Errorf("codebook does not cover the %dx%d grid: %w", g.Rows(), g.Cols(), som.InvalidConfigurationErr)
	}
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("no records to train on: %w", som.MalformedInputErr)
	}
	if ds.Dim() != cb.Dim() {
		return nil, fmt.Errorf("records have %d features but prototypes %d: %w", ds.Dim(), cb.Dim(), som.MalformedInputErr)
	}

	t := &trainer{
		cfg:    cfg,
		g:      g,
		cb:     cb,
		ds:     ds,
		coords: g.Coords(),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		order:  make([]int, ds.Len()),
	}
	for i := range t.order {
		t.order[i] = i
	}

	report := &Report{Epochs: make([]EpochStats, 0, cfg.Epochs)}
	for e := 0; e < cfg.Epochs; e++ {
		stats, err := t.epoch(ctx, e)
		if err != nil {
			return report, fmt.Errorf("training interrupted at epoch %d: %w", e, err)
		}
		report.Epochs = append(report.Epochs, stats)
		log.Debug().
			Int("epoch", e).
			Float64("radius", stats.Radius).
			Float64("rate", stats.LearningRate).
			Float64("movement", stats.Movement).
			Float64("qe", stats.QuantizationError).
			Dur("duration", stats.Duration).
			Msg("epoch completed")
		for _, o := range observers {
			o.OnEpoch(stats)
		}
	}
	return report, nil
}

func (t *trainer) epoch(ctx context.Context, e int) (EpochStats, error) {
	start := time.Now()
	stats := EpochStats{
		Epoch:        e,
		Radius:       t.cfg.Radius.At(e, t.cfg.Epochs),
		LearningRate: t.cfg.LearningRate.At(e, t.cfg.Epochs),
	}
	if t.cfg.Order == Shuffled {
		t.rng.Shuffle(len(t.order), func(i, j int) {
			t.order[i], t.order[j] = t.order[j], t.order[i]
		})
	}
	before := t.cb.Clone()

	var qe float64
	var err error
	switch t.cfg.Rule {
	case Batch:
		qe, err = t.batch(ctx, stats.Radius)
	default:
		qe, err = t.online(ctx, stats.Radius, stats.LearningRate)
	}
	if err != nil {
		return stats, err
	}

	stats.Records = len(t.order)
	stats.QuantizationError = qe / float64(len(t.order))
	stats.Movement = movement(before, t.cb)
	stats.Duration = time.Since(start)
	return stats, nil
}

// online applies the incremental update rule for every record.
func (t *trainer) online(ctx context.Context, radius, alpha float64) (float64, error) {
	var qe float64
	if t.cfg.Mode == Batched {
		for _, batch := range t.batches() {
			if err := ctx.Err(); err != nil {
				return qe, err
			}
			for _, m := range t.search(batch) {
				qe += m.distance
				t.update(m.unit, t.ds.Row(m.record), radius, alpha)
			}
		}
		return qe, nil
	}
	for n, i := range t.order {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return qe, err
			}
		}
		x := t.ds.Row(i)
		unit, d := t.cb.BMU(x)
		qe += d
		t.update(unit, x, radius, alpha)
	}
	return qe, nil
}

// update moves every prototype in the neighbourhood of the unit towards the record.
func (t *trainer) update(unit int, x []float64, radius, alpha float64) {
	center := t.coords[unit]
	for j, c := range t.coords {
		h := t.cfg.weight(t.g.Distance(center, c), radius)
		if h == 0 {
			continue
		}
		f := alpha * h
		w := t.cb.Row(j)
		floats.Scale(1-f, w)
		floats.AddScaled(w, f, x)
	}
}

// batch replaces every prototype by the kernel weighted mean of the records.
// Units outside every neighbourhood keep their prototype.
func (t *trainer) batch(ctx context.Context, radius float64) (float64, error) {
	units, dim := t.cb.Units(), t.cb.Dim()
	num := mat.NewDense(units, dim, nil)
	den := make([]float64, units)

	var qe float64
	accumulate := func(m match) {
		qe += m.distance
		x := t.ds.Row(m.record)
		center := t.coords[m.unit]
		for j, c := range t.coords {
			h := t.cfg.weight(t.g.Distance(center, c), radius)
			if h == 0 {
				continue
			}
			floats.AddScaled(num.RawRowView(j), h, x)
			den[j] += h
		}
	}

	if t.cfg.Mode == Batched {
		for _, batch := range t.batches() {
			if err := ctx.Err(); err != nil {
				return qe, err
			}
			for _, m := range t.search(batch) {
				accumulate(m)
			}
		}
	} else {
		for n, i := range t.order {
			if n%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return qe, err
				}
			}
			unit, d := t.cb.BMU(t.ds.Row(i))
			accumulate(match{record: i, unit: unit, distance: d})
		}
	}

	for j := 0; j < units; j++ {
		if den[j] == 0 {
			continue
		}
		w := t.cb.Row(j)
		copy(w, num.RawRowView(j))
		floats.Scale(1/den[j], w)
	}
	return qe, nil
}

func (t *trainer) batches() [][]int {
	size := t.cfg.BatchSize
	bb := make([][]int, 0, len(t.order)/size+1)
	for i := 0; i < len(t.order); i += size {
		j := i + size
		if j > len(t.order) {
			j = len(t.order)
		}
		bb = append(bb, t.order[i:j])
	}
	return bb
}

// search finds the best matching units of the batch in parallel.
// The codebook is only read while the workers run.
// Matches are returned in the order they were delivered.
func (t *trainer) search(batch []int) []match {
	workers := t.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	jobs := make(chan int)
	out := make(chan match, len(batch))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				unit, d := t.cb.BMU(t.ds.Row(i))
				out <- match{record: i, unit: unit, distance: d}
			}
		}()
	}
	go func() {
		for _, i := range batch {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
		close(out)
	}()

	matches := make([]match, 0, len(batch))
	for m := range out {
		matches = append(matches, m)
	}
	return matches
}

func movement(before, after *codebook.Codebook) float64 {
	var sum float64
	for i := 0; i < after.Units(); i++ {
		d := floats.Distance(before.Row(i), after.Row(i), 2)
		sum += d * d
	}
	return sum / float64(after.Units())
}
