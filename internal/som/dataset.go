package som

import (
	"fmt"
	"math"
	"sort"

	"github.com/drakos74/free-som/internal/buffer"
	"gonum.org/v1/gonum/mat"
)

// Dataset is the immutable input of a map: a feature matrix with one row per record,
// an optional parallel label vector and the names of the feature columns.
// Labels are only used for display and never consulted by training.
type Dataset struct {
	features *mat.Dense
	labels   []string
	names    []string
}

// NewDataset creates a new dataset by copying the given records.
// labels may be nil, names may be nil in which case features are named by position.
func NewDataset(records [][]float64, labels []string, names []string) (*Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records: %w", MalformedInputErr)
	}
	dim := len(records[0])
	if dim == 0 {
		return nil, fmt.Errorf("record 0 has no features: %w", MalformedInputErr)
	}
	if labels != nil && len(labels) != len(records) {
		return nil, fmt.Errorf("labels [%d] do not match records [%d]: %w", len(labels), len(records), MalformedInputErr)
	}
	if names != nil && len(names) != dim {
		return nil, fmt.Errorf("feature names [%d] do not match dimension [%d]: %w", len(names), dim, MalformedInputErr)
	}

	features := mat.NewDense(len(records), dim, nil)
	for i, record := range records {
		if len(record) != dim {
			return nil, fmt.Errorf("record %d has %d features instead of %d: %w", i, len(record), dim, MalformedInputErr)
		}
		for j, v := range record {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("record %d column %s is not a finite number '%v': %w", i, featureName(names, j), v, MalformedInputErr)
			}
		}
		features.SetRow(i, record)
	}

	ds := &Dataset{
		features: features,
		names:    make([]string, dim),
	}
	for j := 0; j < dim; j++ {
		ds.names[j] = featureName(names, j)
	}
	if labels != nil {
		ds.labels = append([]string{}, labels...)
	}
	return ds, nil
}

func featureName(names []string, j int) string {
	if j < len(names) && names[j] != "" {
		return names[j]
	}
	return fmt.Sprintf("f%d", j)
}

// Len returns the number of records.
func (ds *Dataset) Len() int {
	r, _ := ds.features.Dims()
	return r
}

// Dim returns the number of features per record.
func (ds *Dataset) Dim() int {
	_, c := ds.features.Dims()
	return c
}

// Row returns a read-only view of record i.
// The returned slice must not be modified.
func (ds *Dataset) Row(i int) []float64 {
	return ds.features.RawRowView(i)
}

// Record returns a copy of record i.
func (ds *Dataset) Record(i int) []float64 {
	return mat.Row(nil, i, ds.features)
}

// Matrix exposes the features as a read-only matrix.
func (ds *Dataset) Matrix() mat.Matrix {
	return ds.features
}

// Names returns the feature names.
func (ds *Dataset) Names() []string {
	return append([]string{}, ds.names...)
}

// Labels returns the label vector, nil if the dataset is unlabelled.
func (ds *Dataset) Labels() []string {
	if ds.labels == nil {
		return nil
	}
	return append([]string{}, ds.labels...)
}

// Classes returns the sorted distinct labels and the class index of each record.
// Both are nil for an unlabelled dataset.
func (ds *Dataset) Classes() ([]string, []int) {
	if ds.labels == nil {
		return nil, nil
	}
	seen := make(map[string]struct{})
	for _, l := range ds.labels {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for l := range seen {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	ids := make([]int, len(ds.labels))
	for i, l := range ds.labels {
		ids[i] = index[l]
	}
	return classes, ids
}

// Summary returns the per-feature statistics of the dataset.
func (ds *Dataset) Summary() []buffer.Stats {
	collector := buffer.NewStatsCollector(ds.Dim())
	for i := 0; i < ds.Len(); i++ {
		collector.Push(ds.Row(i)...)
	}
	return collector.Stats()
}
