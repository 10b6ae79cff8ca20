package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/cardpet/internal/catalog"
	"github.com/danielpatrickdp/cardpet/internal/config"
	"github.com/danielpatrickdp/cardpet/internal/evolution"
	"github.com/danielpatrickdp/cardpet/internal/growth"
	"github.com/danielpatrickdp/cardpet/internal/logging"
	"github.com/danielpatrickdp/cardpet/internal/metrics"
	"github.com/danielpatrickdp/cardpet/internal/rpc"
	"github.com/danielpatrickdp/cardpet/internal/store"
)

// #region main
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cardpet server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ladder, err := cfg.Ladder()
	if err != nil {
		return fmt.Errorf("ladder: %w", err)
	}
	cat, err := loadCatalog(cfg.CatalogPath, ladder)
	if err != nil {
		return err
	}

	// Initialize card store
	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	grower, err := growth.NewGrower(growth.Config{Ladder: ladder}, cat, cfg.RandomSource(), logger.Named("growth"), rec)
	if err != nil {
		return fmt.Errorf("grower: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	gs := rpc.NewGRPCServer(rpc.NewServer(st, grower, logger.Named("rpc"), rec))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- gs.Serve(lis)
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "off" && cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	logger.Info("Cardpet server ready",
		zap.String("db", cfg.DBPath),
		zap.String("grpc_addr", cfg.GRPCAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Ints("thresholds", ladder.Thresholds()),
		zap.Int("lineages", len(cat.Lineages())),
	)

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err = <-errCh:
		logger.Error("Server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	stopGRPC(shutdownCtx, gs.GracefulStop, gs.Stop)
	return err
}

// #endregion main

// #region helpers
func loadCatalog(path string, ladder evolution.Ladder) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path, ladder)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// stopGRPC drains in-flight calls, forcing a stop when ctx expires first.
func stopGRPC(ctx context.Context, graceful, force func()) {
	done := make(chan struct{})
	go func() {
		graceful()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		force()
		<-done
	}
}

// #endregion helpers
