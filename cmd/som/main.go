package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/drakos74/free-som/internal/experiment"
	"github.com/drakos74/free-som/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// usage: som [config.yaml]
// Without a config file the wine dataset experiments run with their defaults.
func main() {
	cfg := experiment.Default().Normalize()
	if len(os.Args) > 1 {
		c, err := experiment.Load(os.Args[1])
		if err != nil {
			log.Fatal().Err(err).Str("config", os.Args[1]).Msg("could not load config")
		}
		cfg = c
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	training, err := metrics.NewTraining(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("could not register metrics")
	}
	if srv := metrics.Serve(cfg.MetricsPort, prometheus.DefaultGatherer); srv != nil {
		defer srv.Close()
	}

	pipeline, err := experiment.NewPipeline(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create pipeline")
	}
	results, err := pipeline.WithMetrics(training).Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("run", pipeline.ID.String()).Msg("run failed")
	}
	for _, r := range results {
		log.Info().
			Str("run", pipeline.ID.String()).
			Str("experiment", r.Name).
			Float64("qe", r.QuantizationError).
			Strs("files", r.Files).
			Msg("result")
	}
}
