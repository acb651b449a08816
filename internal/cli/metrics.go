package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/managedfiles"
	"github.com/jvs-project/managedfiles/pkg/metrics"
)

func newMetricsCmd(opts *globalOptions) *cobra.Command {
	var (
		addr          string
		sweepInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics, optionally sweeping on an interval",
		Long: `Serve a Prometheus /metrics endpoint for this home.

Exposed metrics:
  - managedfiles_acquisitions_total{kind}
  - managedfiles_releases_total{kind}
  - managedfiles_tracked_files
  - managedfiles_sweep_runs_total
  - managedfiles_sweep_deleted_total
  - managedfiles_sweep_duration_seconds

With --sweep-interval the process also runs a sweep on every tick.
The server runs in the foreground until interrupted.

Examples:
  mfiles metrics
  mfiles metrics --addr :9090 --sweep-interval 5m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, cfg, err := opts.openManager()
			if err != nil {
				return err
			}
			defer m.Close()
			if addr == "" {
				addr = cfg.Metrics.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if sweepInterval > 0 {
				go sweepLoop(ctx, m, sweepInterval)
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Default().Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Metrics available at http://%s/metrics\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "address to listen on (default: config metrics.addr)")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 0, "run a sweep this often (0 disables)")
	return cmd
}

func sweepLoop(ctx context.Context, m *managedfiles.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RemoveOldFiles(); err != nil {
				logging.ErrorErr("periodic sweep failed", err)
			}
		}
	}
}
