package data

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/drakos74/free-som/internal/som"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/rs/zerolog/log"
)

// LoadCSV reads a comma separated table with a header row.
// The given feature columns become the dataset features, in the given order.
// An empty label leaves the dataset unlabeled.
func LoadCSV(r io.Reader, features []string, label string) (*som.Dataset, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(','),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("could not parse table: %v: %w", df.Err, som.MalformedInputErr)
	}
	columns := make(map[string]bool)
	for _, name := range df.Names() {
		columns[name] = true
	}
	if len(features) == 0 {
		// all columns but the label
		for _, name := range df.Names() {
			if name != label {
				features = append(features, name)
			}
		}
	}
	for _, name := range features {
		if !columns[name] {
			return nil, fmt.Errorf("missing feature column '%s': %w", name, som.MalformedInputErr)
		}
	}
	if label != "" && !columns[label] {
		return nil, fmt.Errorf("missing label column '%s': %w", label, som.MalformedInputErr)
	}

	records := make([][]float64, df.Nrow())
	for i := range records {
		records[i] = make([]float64, len(features))
	}
	for j, name := range features {
		for i, value := range df.Col(name).Records() {
			v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("record %d column '%s' has non-numeric value '%s': %w", i, name, value, som.MalformedInputErr)
			}
			records[i][j] = v
		}
	}
	var labels []string
	if label != "" {
		labels = df.Col(label).Records()
		for i := range labels {
			labels[i] = strings.TrimSpace(labels[i])
		}
	}
	return som.NewDataset(records, labels, features)
}

// ReadFile loads the dataset from the file at the given path.
func ReadFile(path string, features []string, label string) (*som.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open '%s': %w", path, err)
	}
	defer f.Close()
	ds, err := LoadCSV(f, features, label)
	if err != nil {
		return nil, fmt.Errorf("could not load '%s': %w", path, err)
	}
	log.Info().
		Str("path", path).
		Int("records", ds.Len()).
		Int("features", ds.Dim()).
		Msg("loaded dataset")
	return ds, nil
}
