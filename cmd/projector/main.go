package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/config"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/projector"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.ServiceName+"-projector", cfg.AppEnv)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, log)

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	svc := &projector.Service{
		Cache:   &redisx.StatusCache{RDB: rdb},
		Dedup:   &redisx.Dedup{RDB: rdb, Service: "projector"},
		Metrics: metrics.New(reg),
	}

	// metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	msrv := &http.Server{Addr: cfg.ProjectorMetrics, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server", zap.Error(err))
		}
	}()

	// Consumer
	cons := kafkax.NewConsumer(cfg.Brokers(), cfg.ProjectorGroup, orders.AllTopics, cfg.ProjectorWorkers, log.Named("consumer"))
	log.Info("projector consumer started",
		zap.String("group", cfg.ProjectorGroup),
		zap.Strings("topics", orders.AllTopics),
		zap.Int("workers", cfg.ProjectorWorkers))
	err = cons.Start(ctx, svc.HandleEvent)

	log.Info("shutting down consumer...")
	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = msrv.Shutdown(ctx2)
	if err != nil {
		return fmt.Errorf("consumer exit: %w", err)
	}
	return nil
}
