package metrics

import (
	"fmt"

	"github.com/drakos74/free-som/internal/som/train"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "som"

// Training holds the collectors tracking the training progress of the maps.
type Training struct {
	Epochs            *prometheus.CounterVec
	Records           *prometheus.CounterVec
	QuantizationError *prometheus.GaugeVec
	Movement          *prometheus.GaugeVec
	Radius            *prometheus.GaugeVec
	LearningRate      *prometheus.GaugeVec
	Duration          *prometheus.HistogramVec
}

// NewTraining creates and registers the training collectors.
func NewTraining(reg prometheus.Registerer) (*Training, error) {
	labels := []string{"experiment"}
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      name,
			Help:      help,
		}, labels)
	}
	t := &Training{
		Epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "epochs_total",
			Help:      "completed training epochs",
		}, labels),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "records_total",
			Help:      "records presented to the map",
		}, labels),
		QuantizationError: gauge("quantization_error", "mean distance of the records to their best matching unit"),
		Movement:          gauge("movement", "mean squared prototype change of the last epoch"),
		Radius:            gauge("radius", "neighbourhood radius of the last epoch"),
		LearningRate:      gauge("learning_rate", "learning rate of the last epoch"),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "train",
			Name:      "epoch_duration_seconds",
			Help:      "duration of a training epoch",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, labels),
	}
	for _, c := range []prometheus.Collector{t.Epochs, t.Records, t.QuantizationError, t.Movement, t.Radius, t.LearningRate, t.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register training metrics: %w", err)
		}
	}
	return t, nil
}

// Observer returns the training observer recording the epochs of the given experiment.
func (t *Training) Observer(experiment string) train.Observer {
	return &observer{
		experiment: experiment,
		metrics:    t,
	}
}

type observer struct {
	experiment string
	metrics    *Training
}

func (o *observer) OnEpoch(stats train.EpochStats) {
	m := o.metrics
	m.Epochs.WithLabelValues(o.experiment).Inc()
	m.Records.WithLabelValues(o.experiment).Add(float64(stats.Records))
	m.QuantizationError.WithLabelValues(o.experiment).Set(stats.QuantizationError)
	m.Movement.WithLabelValues(o.experiment).Set(stats.Movement)
	m.Radius.WithLabelValues(o.experiment).Set(stats.Radius)
	m.LearningRate.WithLabelValues(o.experiment).Set(stats.LearningRate)
	m.Duration.WithLabelValues(o.experiment).Observe(stats.Duration.Seconds())
}
