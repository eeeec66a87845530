package train

import (
	"fmt"
	"math"
	"runtime"

	"github.com/drakos74/free-som/internal/som"
	"github.com/drakos74/free-som/internal/som/grid"
	"gopkg.in/yaml.v3"
)

// Cooling defines how a schedule decays across epochs.
type Cooling string

const (
	Linear      Cooling = "linear"
	Exponential Cooling = "exponential"
)

// Kernel is the neighbourhood function shape.
type Kernel string

const (
	Gaussian Kernel = "gaussian"
	Bubble   Kernel = "bubble"
)

// Support defines which units the neighbourhood function is evaluated on.
type Support string

const (
	// Full evaluates the kernel on every unit.
	Full Support = "full"
	// Compact ignores units further than the radius from the best matching unit.
	Compact Support = "compact"
)

// Order defines how records are visited within an epoch.
type Order string

const (
	InputOrder Order = "sequential"
	Shuffled   Order = "shuffled"
)

// Mode defines how the best matching unit search is executed.
type Mode string

const (
	// Sequential searches and updates record by record. It is fully deterministic.
	Sequential Mode = "sequential"
	// Batched searches all records of a batch in parallel against the unchanged codebook
	// and applies the updates in the order the workers deliver them.
	// That order is not controlled, so results vary from run to run.
	Batched Mode = "batched"
)

// Rule is the prototype update rule.
type Rule string

const (
	// Online moves the prototypes after every record.
	Online Rule = "online"
	// Batch replaces every prototype by the kernel weighted mean of the records once per epoch.
	Batch Rule = "batch"
)

// Schedule decays a parameter from Start to End over the epochs.
type Schedule struct {
	Start   float64 `yaml:"start" json:"start"`
	End     float64 `yaml:"end" json:"end"`
	Cooling Cooling `yaml:"cooling" json:"cooling"`
}

// At returns the value of the schedule for the given epoch.
func (s Schedule) At(epoch, epochs int) float64 {
	if epochs < 2 {
		return s.Start
	}
	t := float64(epoch) / float64(epochs-1)
	switch s.Cooling {
	case Exponential:
		return s.Start * math.Pow(s.End/s.Start, t)
	default:
		return s.Start + (s.End-s.Start)*t
	}
}

func (s Schedule) validate(name string) error {
	if !(s.Start > 0) || math.IsInf(s.Start, 0) {
		return fmt.Errorf("%s start must be positive but was %v: %w", name, s.Start, som.InvalidConfigurationErr)
	}
	if !(s.End > 0) || s.End > s.Start {
		return fmt.Errorf("%s end must be positive and not above start %v but was %v: %w", name, s.Start, s.End, som.InvalidConfigurationErr)
	}
	switch s.Cooling {
	case Linear, Exponential:
	default:
		return fmt.Errorf("unknown %s cooling '%s': %w", name, s.Cooling, som.InvalidConfigurationErr)
	}
	return nil
}

// Config defines the training run.
// An omitted epoch count falls back to the default, an explicit one must be positive.
type Config struct {
	Epochs       int      `yaml:"epochs" json:"epochs"`
	Radius       Schedule `yaml:"radius" json:"radius"`
	LearningRate Schedule `yaml:"learning_rate" json:"learning_rate"`
	Kernel       Kernel   `yaml:"kernel" json:"kernel"`
	Support      Support  `yaml:"support" json:"support"`
	Order        Order    `yaml:"order" json:"order"`
	Mode         Mode     `yaml:"mode" json:"mode"`
	Rule         Rule     `yaml:"rule" json:"rule"`
	// BatchSize is the number of records searched together in Batched mode.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// Workers is the number of goroutines searching in parallel, defaults to the number of CPUs.
	Workers int   `yaml:"workers" json:"workers"`
	Seed    int64 `yaml:"seed" json:"seed"`
}

// UnmarshalYAML rejects an explicit non positive epoch count,
// which would otherwise be indistinguishable from an omitted one.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "epochs" && p.Epochs <= 0 {
			return fmt.Errorf("epochs must be positive but was %d: %w", p.Epochs, som.InvalidConfigurationErr)
		}
	}
	*c = Config(p)
	return nil
}

// Default returns the default configuration for the grid.
// The radius starts at half the smaller grid side and cools linearly to 1,
// the learning rate cools linearly from 0.1 to 0.01 over 10 epochs.
func Default(g *grid.Grid) Config {
	r := g.Rows()
	if g.Cols() < r {
		r = g.Cols()
	}
	start := float64(r) / 2
	if start < 1 {
		start = 1
	}
	return Config{
		Epochs: 10,
		Radius: Schedule{
			Start:   start,
			End:     1,
			Cooling: Linear,
		},
		LearningRate: Schedule{
			Start:   0.1,
			End:     0.01,
			Cooling: Linear,
		},
		Kernel:    Gaussian,
		Support:   Full,
		Order:     InputOrder,
		Mode:      Sequential,
		Rule:      Online,
		BatchSize: 64,
		Workers:   runtime.NumCPU(),
	}
}

// Normalize fills the zero value fields with the defaults for the grid.
func (c Config) Normalize(g *grid.Grid) Config {
	d := Default(g)
	if c.Epochs == 0 {
		c.Epochs = d.Epochs
	}
	if c.Radius == (Schedule{}) {
		c.Radius = d.Radius
	}
	if c.Radius.Cooling == "" {
		c.Radius.Cooling = Linear
	}
	if c.LearningRate == (Schedule{}) {
		c.LearningRate = d.LearningRate
	}
	if c.LearningRate.Cooling == "" {
		c.LearningRate.Cooling = Linear
	}
	if c.Kernel == "" {
		c.Kernel = d.Kernel
	}
	if c.Support == "" {
		c.Support = d.Support
	}
	if c.Order == "" {
		c.Order = d.Order
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Rule == "" {
		c.Rule = d.Rule
	}
	if c.BatchSize == 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	return c
}

// Validate checks the configuration without touching any state.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive but was %d: %w", c.Epochs, som.InvalidConfigurationErr)
	}
	if err := c.Radius.validate("radius"); err != nil {
		return err
	}
	if err := c.LearningRate.validate("learning rate"); err != nil {
		return err
	}
	if c.LearningRate.Start > 1 {
		return fmt.Errorf("learning rate start must not exceed 1 but was %v: %w", c.LearningRate.Start, som.InvalidConfigurationErr)
	}
	switch c.Kernel {
	case Gaussian, Bubble:
	default:
		return fmt.Errorf("unknown kernel '%s': %w", c.Kernel, som.InvalidConfigurationErr)
	}
	switch c.Support {
	case Full, Compact:
	default:
		return fmt.Errorf("unknown support '%s': %w", c.Support, som.InvalidConfigurationErr)
	}
	switch c.Order {
	case InputOrder, Shuffled:
	default:
		return fmt.Errorf("unknown order '%s': %w", c.Order, som.InvalidConfigurationErr)
	}
	switch c.Rule {
	case Online, Batch:
	default:
		return fmt.Errorf("unknown rule '%s': %w", c.Rule, som.InvalidConfigurationErr)
	}
	switch c.Mode {
	case Sequential:
	case Batched:
		if c.BatchSize < 1 {
			return fmt.Errorf("batch size must be positive but was %d: %w", c.BatchSize, som.InvalidConfigurationErr)
		}
		if c.Workers < 1 {
			return fmt.Errorf("workers must be positive but was %d: %w", c.Workers, som.InvalidConfigurationErr)
		}
	default:
		return fmt.Errorf("unknown mode '%s': %w", c.Mode, som.InvalidConfigurationErr)
	}
	return nil
}
