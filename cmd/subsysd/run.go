package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	subsys "github.com/axondata/go-subsys"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hosted subsystems until interrupted",
	RunE:  runHost,
}

func runHost(cmd *cobra.Command, _ []string) error {
	cfg, err := subsys.LoadHostConfig(cfgFile)
	if err != nil {
		return err
	}

	logger, err := subsys.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logs := subsys.NewLogServer(logger)
	dir := subsys.NewDirectory()
	if err := dir.Bind(subsys.LogServerName, logs); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	host := subsys.NewHost(dir, cfg.Properties(),
		subsys.WithLog(logs.Named("host")),
		subsys.WithStopTimeout(cfg.StopTimeout),
		subsys.WithRegisterer(reg),
	)
	for _, s := range subsystems() {
		if err := host.Register(s); err != nil {
			return fmt.Errorf("registering %s: %w", s.Name(), err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var servers []*http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, serve(logger, "metrics", cfg.Metrics.Addr, mux))
	}
	if cfg.Health.Enabled {
		health := healthcheck.NewMetricsHandler(reg, "subsysd")
		health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(1000))
		health.AddReadinessCheck("subsystems", host.Healthy)
		servers = append(servers, serve(logger, "health", cfg.Health.Addr, health))
	}

	runErr := host.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}

	if runErr != nil {
		logger.Error("host stopped with errors", zap.Error(runErr))
	}
	return runErr
}

// serve starts an HTTP listener in the background
func serve(logger *zap.Logger, name, addr string, handler http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("listener", name), zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listener failed", zap.String("listener", name), zap.Error(err))
		}
	}()

	return srv
}
