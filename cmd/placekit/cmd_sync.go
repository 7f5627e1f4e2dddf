package main

import (
	"context"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"placekit/internal/core"
	"placekit/internal/local"
	"placekit/internal/server"
)

func (a *app) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Merge the remote snapshot into the local collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.RemoteEnabled() {
				return errRemoteDisabled
			}
			// Enabling the remote already runs a pull.
			s, err := a.openWritable(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			st := s.finish(cmd.Context())
			if st.State == core.SyncFailed {
				return fmt.Errorf("pull failed: %s", st.Reason)
			}
			_, _ = fmt.Fprintf(a.out, "%d objects after pull\n", s.store.Len())
			return nil
		},
	}
}

func (a *app) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload every local object to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.RemoteEnabled() {
				return errRemoteDisabled
			}
			s, err := a.openWritable(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			n := s.store.PushAll()
			st := s.finish(cmd.Context())
			if st.State == core.SyncFailed {
				return fmt.Errorf("push failed: %s", st.Reason)
			}
			_, _ = fmt.Fprintf(a.out, "pushed %d objects\n", n)
			return nil
		},
	}
}

func (a *app) syncCmd() *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Keep the local collection reconciled with the remote until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.RemoteEnabled() {
				return errRemoteDisabled
			}
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runSync(ctx, interval, metricsAddr)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Pull interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /debug/vars on this address")
	return cmd
}

func (a *app) runSync(ctx context.Context, interval time.Duration, metricsAddr string) error {
	reg := prometheus.NewRegistry()
	prom, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return err
	}
	gauge, err := core.NewSyncStateGauge(reg)
	if err != nil {
		return err
	}
	registerProcessCollectors(reg)
	vars := core.NewExpvarMetricsRecorder("")

	opts := []core.Option{
		core.WithMetricsRecorder(core.MultiMetricsRecorder{prom, vars}),
		core.WithSharedLocal(true),
	}
	lock, err := a.localLock()
	if err != nil {
		return err
	}
	if lock != nil {
		opts = append(opts, core.WithLocalLock(lock))
	}
	// Other commands keep running against the same blob; only pulls take the lock.
	s, err := writable(a.openStore(ctx, true, opts...))
	if err != nil {
		return err
	}
	defer s.close()
	gauge.Set(s.store.Status())
	defer s.store.Subscribe(gauge.Set)()
	defer s.store.Subscribe(func(st core.SyncStatus) {
		if st.State == core.SyncFailed {
			a.logger.Warn("remote sync failed", zap.String("op", st.Op), zap.String("reason", st.Reason))
		}
	})()

	g, gctx := errgroup.WithContext(ctx)
	if metricsAddr != "" {
		ln, err := net.Listen("tcp", metricsAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", metricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		mux.Handle("/debug/vars", expvar.Handler())
		a.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
		g.Go(func() error { return server.Serve(gctx, ln, mux) })
	}
	if path, ok := a.localBlobPath(); ok {
		g.Go(func() error {
			err := local.WatchFile(gctx, path, local.DefaultDebounce, func() {
				changed, err := s.store.ReloadLocal(gctx)
				if err != nil || !changed {
					return
				}
				a.logger.Info("local collection changed on disk", zap.String("path", path))
				s.store.Pull()
			})
			if err != nil {
				a.logger.Warn("local blob watch stopped; relying on interval pulls", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if !s.store.Pull() {
					a.logger.Warn("pull not scheduled")
				}
			}
		}
	})
	a.logger.Info("sync running", zap.Duration("interval", interval), zap.Int("objects", s.store.Len()))
	return g.Wait()
}

// registerProcessCollectors adds Go runtime and process metrics to reg.
func registerProcessCollectors(reg *prometheus.Registry) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
