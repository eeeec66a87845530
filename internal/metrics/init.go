package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Handler exposes the metrics of the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes the metrics of the given gatherer on the port in the background.
// A non positive port disables the endpoint.
func Serve(port int, g prometheus.Gatherer) *http.Server {
	if port <= 0 {
		return nil
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Handler(g),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Int("port", port).Msg("metrics server stopped")
		}
	}()
	log.Info().Int("port", port).Msg("serving metrics")
	return srv
}
