package worker

import (
	"errors"
	"net/http"

	"github.com/jmehdipour/car-rating/internal/config"
	"github.com/jmehdipour/car-rating/internal/logger"
	"github.com/jmehdipour/car-rating/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewWorkerCmd returns the parent "worker" command. cfg is called after the root
// command has loaded the configuration.
func NewWorkerCmd(cfg func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	cmd.PersistentFlags().String("metrics-addr", "", "serve /metrics on this address (empty = off)")

	// attach subcommands
	cmd.AddCommand(newOutboxRelayCmd(cfg))
	cmd.AddCommand(newProjectorCmd(cfg))

	return cmd
}

// serveMetrics registers collectors and, when an address is given, exposes them in the background.
func serveMetrics(cmd *cobra.Command) {
	metrics.MustRegister(prometheus.DefaultRegisterer)

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("metrics listener stopped", zap.Error(err))
		}
	}()
}
