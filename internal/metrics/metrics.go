// Package metrics exposes Prometheus counters for the bot's main activities
// and an optional HTTP endpoint to scrape them.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CommandInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolebot_command_invocations_total",
		Help: "Slash command invocations by command name.",
	}, []string{"command"})

	AssignmentOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolebot_assignment_outcomes_total",
		Help: "Per-user batch assignment outcomes.",
	}, []string{"outcome"})

	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rolebot_sweep_runs_total",
		Help: "Expiry sweep passes completed.",
	})

	SweepCompacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rolebot_sweep_compacted_total",
		Help: "Operations compacted out of the log by the expiry sweep.",
	})

	SweepRetained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rolebot_sweep_retained_total",
		Help: "Expired operations retained for retry after a sweep pass.",
	})

	SyncMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rolebot_sync_mutations_total",
		Help: "Role sync grants and removals by kind.",
	}, []string{"kind"})
)

// Serve exposes /metrics on addr in the background. An empty addr disables
// the endpoint.
func Serve(addr string, log zerolog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics endpoint failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
}
