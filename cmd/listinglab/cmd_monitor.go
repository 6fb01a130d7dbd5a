package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/listinglab/internal/application/monitor"
)

type monitorOptions struct {
	once        bool
	table       bool
	simulate    bool
	metricsAddr string
}

func newMonitorCmd(g *globalOptions) *cobra.Command {
	var o monitorOptions

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Periodically collect, evaluate and close running experiments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, g, o)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.once, "once", false, "run one cycle and exit")
	f.BoolVar(&o.table, "table", false, "print a full table per cycle (default: compact 1-line)")
	f.BoolVar(&o.simulate, "simulate", false, "substitute synthetic counters when a fetch fails (non-production)")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func runMonitor(cmd *cobra.Command, g *globalOptions, o monitorOptions) error {
	a, err := openApp(g, cmd.OutOrStdout(), appOptions{simulate: o.simulate, table: o.table})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if o.metricsAddr != "" {
		srv := serveMetrics(o.metricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	m := monitor.New(monitor.Config{
		Interval: a.cfg.MonitorInterval(),
		Workers:  a.cfg.Monitor.Workers,
		Once:     o.once,
	}, a.engine, a.store, a.console)

	if err := m.Run(ctx); err != nil {
		return err
	}
	slog.Info("listinglab monitor stopped cleanly")
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	return srv
}
