package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"placekit/internal/logging"
	"placekit/internal/remote"
	"placekit/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record API over the configured server store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc := a.cfg.ServerStore()
			sc.Logger = logging.NewAdapter(a.logger).Named("records")
			records, closer, err := remote.Open(ctx, sc)
			if err != nil {
				return fmt.Errorf("open server store: %w", err)
			}
			defer func() { _ = closer.Close() }()

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			reg := prometheus.NewRegistry()
			registerProcessCollectors(reg)
			handler := server.NewHandler(records, logging.NewAdapter(a.logger).Named("api"))
			a.logger.Info("record api listening",
				zap.String("addr", ln.Addr().String()),
				zap.String("driver", string(records.Driver())))
			return server.Serve(ctx, ln, server.NewMux(handler, reg))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}
