package experiment

import (
	"fmt"
	"io/ioutil"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/cluster"
	"github.com/drakos74/free-som/internal/som/codebook"
	"github.com/drakos74/free-som/internal/som/grid"
	"github.com/drakos74/free-som/internal/som/train"
	"github.com/drakos74/free-som/internal/som/view"
	"github.com/drakos74/free-som/internal/som/view/render"
	"github.com/drakos74/free-som/internal/storage"
	"gopkg.in/yaml.v3"
)

// ViewKind is the field a view renders.
type ViewKind string

const (
	UMatrixView    ViewKind = "umatrix"
	ExtendedView   ViewKind = "extended"
	ComponentsView ViewKind = "components"
)

// Input defines the dataset to load.
type Input struct {
	Path     string   `yaml:"path"`
	Features []string `yaml:"features"`
	Label    string   `yaml:"label"`
}

// Grid defines the map lattice.
type Grid struct {
	Rows     int           `yaml:"rows"`
	Cols     int           `yaml:"cols"`
	Topology grid.Topology `yaml:"topology"`
	Shape    grid.Shape    `yaml:"shape"`
}

// Init defines the codebook initialization.
type Init struct {
	Mode     codebook.Mode `yaml:"mode"`
	Seed     int64         `yaml:"seed"`
	Fallback bool          `yaml:"fallback"`
}

// Clustering defines the post-processing of the trained codebook.
type Clustering struct {
	Algorithm      string `yaml:"algorithm"`
	cluster.Config `yaml:",inline"`
}

// View defines one image rendered for the trained map.
type View struct {
	Name string   `yaml:"name"`
	Kind ViewKind `yaml:"kind"`
	// BestMatches places the records on their best matching units.
	BestMatches bool `yaml:"best_matches"`
	// Labels colors the markers by record label.
	Labels bool `yaml:"labels"`
	// Clusters colors the markers by the cluster of their unit.
	Clusters bool         `yaml:"clusters"`
	Zoom     *view.Region `yaml:"zoom"`
}

// Experiment is a single map trained and rendered from the input.
type Experiment struct {
	Name    string         `yaml:"name"`
	Grid    Grid           `yaml:"grid"`
	Init    Init           `yaml:"init"`
	Train   train.Config   `yaml:"train"`
	Cluster *Clustering    `yaml:"cluster"`
	Views   []View         `yaml:"views"`
	Render  render.Options `yaml:"render"`
}

// Config is the full experiment run.
type Config struct {
	Input       Input        `yaml:"input"`
	Output      string       `yaml:"output"`
	Storage     string       `yaml:"storage"`
	MetricsPort int          `yaml:"metrics_port"`
	LogLevel    string       `yaml:"log_level"`
	Experiments []Experiment `yaml:"experiments"`
}

// Features of the wine dataset.
var Features = []string{
	"Alcohol", "Malic_Acid", "Ash", "Ash_Alcanity", "Magnesium", "Total_Phenols", "Flavanoids",
	"Nonflavanoid_Phenols", "Proanthocyanins", "Color_Intensity", "Hue", "OD280", "Proline",
}

// Default returns the wine dataset run:
// a planar and a toroid map with random initialization
// and a toroid map with pca initialization which is clustered after training.
func Default() Config {
	const rows, cols = 200, 200
	labelled := func(name string) View {
		return View{Name: name, Kind: UMatrixView, BestMatches: true, Labels: true}
	}
	plain := func(name string) View {
		return View{Name: name, Kind: UMatrixView, BestMatches: true}
	}
	zoom := labelled("planar_map__umatrix_zoom")
	zoom.Zoom = &view.Region{RowFrom: 50, RowTo: rows, ColFrom: 100, ColTo: cols}
	return Config{
		Input: Input{
			Path:     "input/Wine.txt",
			Features: Features,
			Label:    "Customer_Segment",
		},
		Output:   "output_som_d2",
		Storage:  storage.DefaultDir,
		LogLevel: "info",
		Experiments: []Experiment{
			{
				Name: "planar_map",
				Grid: Grid{Rows: rows, Cols: cols, Topology: grid.Planar, Shape: grid.Rectangular},
				Init: Init{Mode: codebook.RandomMode},
				Views: []View{
					{Name: "planar_map__components", Kind: ComponentsView},
					labelled("planar_map__umatrix"),
					zoom,
				},
			},
			{
				Name: "toroid_map",
				Grid: Grid{Rows: rows, Cols: cols, Topology: grid.Toroid, Shape: grid.Rectangular},
				Init: Init{Mode: codebook.RandomMode},
				Views: []View{
					plain("toroid_map__umatrix"),
				},
			},
			{
				Name: "toroid_map_pca",
				Grid: Grid{Rows: rows, Cols: cols, Topology: grid.Toroid, Shape: grid.Rectangular},
				Init: Init{Mode: codebook.PCAMode},
				Cluster: &Clustering{
					Config: cluster.Config{K: cluster.DefaultK},
				},
				Views: []View{
					plain("toroid_map_pca__umatrix"),
					{Name: "toroid_map_pca__umatrix_clusters", Kind: UMatrixView, BestMatches: true, Clusters: true},
				},
			},
		},
	}
}

// Parse decodes the yaml configuration and fills in the defaults.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %v: %w", err, som.InvalidConfigurationErr)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the yaml configuration file.
func Load(path string) (Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config '%s': %w", path, err)
	}
	return Parse(b)
}

// Normalize fills in the defaults for the zero values.
func (c Config) Normalize() Config {
	if c.Output == "" {
		c.Output = "output"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	experiments := make([]Experiment, len(c.Experiments))
	for i, e := range c.Experiments {
		if e.Name == "" {
			e.Name = fmt.Sprintf("experiment_%d", i)
		}
		// unknown names are kept for Validate to report
		if t, err := grid.ParseTopology(string(e.Grid.Topology)); err == nil {
			e.Grid.Topology = t
		}
		if s, err := grid.ParseShape(string(e.Grid.Shape)); err == nil {
			e.Grid.Shape = s
		}
		if m, err := codebook.ParseMode(string(e.Init.Mode)); err == nil {
			e.Init.Mode = m
		}
		if e.Cluster != nil {
			clustering := *e.Cluster
			clustering.Config = clustering.Config.Normalize()
			e.Cluster = &clustering
		}
		views := make([]View, len(e.Views))
		for j, v := range e.Views {
			if v.Kind == "" {
				v.Kind = UMatrixView
			}
			if v.Name == "" {
				v.Name = fmt.Sprintf("%s__%s_%d", e.Name, v.Kind, j)
			}
			views[j] = v
		}
		e.Views = views
		experiments[i] = e
	}
	c.Experiments = experiments
	return c
}

// Validate checks the experiment definitions.
// Training parameters are checked against the grid when the map is built.
func (c Config) Validate() error {
	if len(c.Experiments) == 0 {
		return fmt.Errorf("no experiments defined: %w", som.InvalidConfigurationErr)
	}
	names := make(map[string]bool)
	for _, e := range c.Experiments {
		if names[e.Name] {
			return fmt.Errorf("duplicate experiment '%s': %w", e.Name, som.InvalidConfigurationErr)
		}
		names[e.Name] = true
		if _, err := grid.ParseTopology(string(e.Grid.Topology)); err != nil {
			return fmt.Errorf("experiment '%s': %w", e.Name, err)
		}
		if _, err := grid.ParseShape(string(e.Grid.Shape)); err != nil {
			return fmt.Errorf("experiment '%s': %w", e.Name, err)
		}
		if _, err := codebook.ParseMode(string(e.Init.Mode)); err != nil {
			return fmt.Errorf("experiment '%s': %w", e.Name, err)
		}
		if e.Cluster != nil {
			if _, err := cluster.Algorithm(e.Cluster.Algorithm); err != nil {
				return fmt.Errorf("experiment '%s': %w", e.Name, err)
			}
		}
		for _, v := range e.Views {
			switch v.Kind {
			case UMatrixView, ExtendedView, ComponentsView:
			default:
				return fmt.Errorf("experiment '%s': unknown view kind '%s': %w", e.Name, v.Kind, som.InvalidConfigurationErr)
			}
			if v.Clusters && e.Cluster == nil {
				return fmt.Errorf("experiment '%s': view '%s' colors by cluster but the map is not clustered: %w", e.Name, v.Name, som.InvalidConfigurationErr)
			}
		}
	}
	return nil
}
