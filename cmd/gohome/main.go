package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/config"
	"github.com/joshp123/gohome-tfiac/internal/core"
	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
	"github.com/joshp123/gohome-tfiac/internal/plugins"
	"github.com/joshp123/gohome-tfiac/internal/router"
	"github.com/joshp123/gohome-tfiac/internal/server"
	"github.com/joshp123/gohome-tfiac/internal/statestream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", envOrDefault("GOHOME_CONFIG", config.DefaultPath), "path to config.yaml")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gohome: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	active := plugins.Compiled(cfg, logger)
	if err := core.ValidatePlugins(active); err != nil {
		return fmt.Errorf("validate plugins: %w", err)
	}
	if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
		return err
	}

	store, err := entries.OpenSQLite(config.EntriesDBPath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []entries.Option{entries.WithLogger(logger)}
	if cfg.Backup != nil {
		mirror, err := entries.NewS3Store(cfg.Backup)
		if err != nil {
			return fmt.Errorf("entry mirror: %w", err)
		}
		opts = append(opts, entries.WithMirror(mirror))
	}

	registry := climate.NewRegistry(logger)
	entryManager := entries.NewManager(store, registry, opts...)
	flowManager := flow.NewManager(entryManager, logger)
	for _, p := range active {
		if in, ok := p.(entries.Integration); ok {
			if err := entryManager.Register(in); err != nil {
				return err
			}
		}
		if f, ok := p.(flow.Factory); ok {
			if err := flowManager.Register(f); err != nil {
				return err
			}
		}
	}

	if err := entryManager.Load(ctx); err != nil {
		return fmt.Errorf("load config entries: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		entryManager.Close(closeCtx)
	}()

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr, logger)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	router.Register(grpcServer.Server, router.Services{
		Plugins: active,
		Entries: entryManager,
		Flows:   flowManager,
		Climate: registry,
	})

	metricsRegistry := core.MetricsRegistry(active)
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gohome_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))
	metricsRegistry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gohome_config_entries",
		Help: "Number of config entries",
	}, func() float64 { return float64(len(entryManager.Entries(""))) }))

	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.NewMux(active, metricsRegistry))

	var stream *statestream.Stream
	if cfg.MQTT != nil {
		broker, err := statestream.Dial(cfg.MQTT)
		if err != nil {
			return err
		}
		defer broker.Close()
		stream = statestream.New(broker, registry, cfg.MQTT.TopicPrefix, logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		climate.NewPoller(registry, cfg.Core.ScanInterval, logger).Run(gctx)
		return nil
	})
	if stream != nil {
		g.Go(func() error { return stream.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Core.HTTPAddr)
		return httpServer.ListenAndServe()
	})
	g.Go(func() error {
		logger.Info("grpc listening", "addr", grpcServer.Listener.Addr().String())
		return grpcServer.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.Server.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
