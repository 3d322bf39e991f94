package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-stepio/internal/logger"
	stepioprom "github.com/robert-malhotra/go-stepio/metrics/prometheus"
	"github.com/robert-malhotra/go-stepio/stepio"
)

var (
	watchTimeout time.Duration
	watchLatest  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dataset>",
	Short: "Follow a dataset as writers produce steps",
	Long: `watch prints one line per step as steps become visible and exits at the
end of the stream. With --timeout it gives up when no step arrives in time.

When metrics are enabled in the configuration, the reader's metrics are
served on :<metrics.port>/metrics while watching.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		name := args[0]

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		opts, err := engineOptions(ctx, cat)
		if err != nil {
			return err
		}
		if cfg.Metrics.Enabled {
			reg := prometheus.NewRegistry()
			opts = append(opts, stepio.WithMetrics(stepioprom.New(reg)))
			shutdown := serveMetrics(reg, cfg.Metrics.Port)
			defer shutdown()
		}

		s := stepio.NewSession(opts...)
		defer s.Close(context.Background())
		r, err := s.Open(ctx, name, stepio.ModeRead)
		if err != nil {
			return err
		}

		mode := stepio.StepNext
		if watchLatest {
			mode = stepio.StepLatest
		}
		timeout := time.Duration(-1)
		if watchTimeout > 0 {
			timeout = watchTimeout
		}

		out := cmd.OutOrStdout()
		for {
			st, err := r.BeginStep(ctx, mode, timeout)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
			switch st {
			case stepio.StepEndOfStream:
				fmt.Fprintln(out, "end of stream")
				return nil
			case stepio.StepNotReady:
				return fmt.Errorf("no step of %q within %s", name, watchTimeout)
			}

			step, err := r.CurrentStep()
			if err != nil {
				return err
			}
			blocks, err := cat.Step(ctx, name, step)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "step %d: %d blocks, %d steps visible\n", step, len(blocks), r.Steps())
			if err := r.EndStep(ctx); err != nil {
				return err
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 0, "Give up after waiting this long for a step (default wait forever)")
	watchCmd.Flags().BoolVar(&watchLatest, "latest", false, "Skip to the newest step instead of reading every step")
}

// serveMetrics exposes reg on port and returns a function that stops the
// server.
func serveMetrics(reg *prometheus.Registry, port int) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", logger.Err(err))
		}
	}()
	logger.Info("serving metrics", "port", port)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
