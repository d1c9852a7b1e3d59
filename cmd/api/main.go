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

	"github.com/ariefcatur/go-shop-checkout/internal/auth"
	"github.com/ariefcatur/go-shop-checkout/internal/config"
	"github.com/ariefcatur/go-shop-checkout/internal/gateway"
	"github.com/ariefcatur/go-shop-checkout/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-checkout/internal/kafka"
	"github.com/ariefcatur/go-shop-checkout/internal/logging"
	"github.com/ariefcatur/go-shop-checkout/internal/memory"
	"github.com/ariefcatur/go-shop-checkout/internal/metrics"
	"github.com/ariefcatur/go-shop-checkout/internal/migrations"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
	"github.com/ariefcatur/go-shop-checkout/internal/postgres"
	"github.com/ariefcatur/go-shop-checkout/internal/redisx"
	"github.com/ariefcatur/go-shop-checkout/internal/seed"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:   "shop-api",
		Usage:  "checkout, payment invoices and payment webhooks",
		Action: serve,
		Flags:  serveFlags,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API", Flags: serveFlags, Action: serve},
			{
				Name:  "migrate",
				Usage: "apply or revert the database schema",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateUp},
					{
						Name:   "down",
						Usage:  "revert migrations",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to revert, 0 for all"}},
						Action: migrateDown,
					},
				},
			},
			{Name: "seed", Usage: "insert the demo users and products", Action: seedDB},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveFlags = []cli.Flag{
	&cli.BoolFlag{Name: "migrate", Usage: "apply migrations before serving (postgres driver)"},
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logging.NewLogger(cfg.ServiceName, cfg.AppEnv)
	if err != nil {
		return config.Config{}, nil, err
	}
	zap.ReplaceGlobals(log)
	return cfg, log, nil
}

func migrateUp(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := migrations.Up(cfg.PostgresDSN); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func migrateDown(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := migrations.Down(cfg.PostgresDSN, c.Int("steps")); err != nil {
		return err
	}
	log.Info("migrations reverted", zap.Int("steps", c.Int("steps")))
	return nil
}

func seedDB(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	ctx := logging.ContextWithLogger(c.Context, log)

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()
	return seed.Run(ctx, &postgres.Store{DB: db, LockTimeout: cfg.DBLockTimeout}, bcrypt.DefaultCost)
}

// stores is what both drivers provide.
type stores interface {
	orders.Store
	auth.UserRepository
}

func serve(c *cli.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, log)

	// DB
	var st stores
	switch cfg.StoreDriver {
	case "memory":
		mem := memory.New()
		if err := seed.Run(ctx, mem, bcrypt.DefaultCost); err != nil {
			return err
		}
		st = mem
		log.Warn("using in-memory store, data is lost on exit")
	default:
		if c.Bool("migrate") {
			if err := migrations.Up(cfg.PostgresDSN); err != nil {
				return err
			}
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		st = &postgres.Store{DB: db, LockTimeout: cfg.DBLockTimeout}
	}

	// Redis: revocation + status cache. Kosong = mode lokal tanpa Redis.
	var (
		revocations auth.Revocations = memory.NewRevocations()
		status      httpx.StatusCache
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			return err
		}
		revocations = &redisx.Revocations{RDB: rdb}
		status = &redisx.StatusCache{RDB: rdb}
	} else {
		log.Warn("REDIS_ADDR empty, token revocations kept in memory and status cache disabled")
	}

	// Kafka producer
	var (
		events orders.EventSink = orders.NopSink{}
		prod   *kafkax.Producer
	)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		prod = kafkax.NewProducer(brokers, 1024, log.Named("kafka"))
		prod.Start(ctx)
		events = kafkax.NewEventSink(prod)
	} else {
		log.Warn("KAFKA_BROKERS empty, domain events are not published")
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var gw payments.Gateway = gateway.NewClient(gateway.Config{
		BaseURL:   cfg.XenditBaseURL,
		SecretKey: cfg.XenditSecretKey,
		Currency:  cfg.PaymentCurrency,
		Timeout:   cfg.XenditTimeout,
	}, m)
	if cfg.GatewayMock {
		gw = &gateway.Mock{BaseURL: cfg.AppBaseURL}
		log.Warn("using mock payment gateway")
	}

	authSvc := &auth.Service{
		Users:       st,
		Tokens:      auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		Revocations: revocations,
		BcryptCost:  bcrypt.DefaultCost,
	}
	limiter := httpx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Close()

	router := httpx.NewRouter(httpx.Deps{
		Logger:        log,
		Metrics:       m,
		Gatherer:      reg,
		Limiter:       limiter,
		AccessKey:     cfg.APIAccessKey,
		SecretKey:     cfg.APISecretKey,
		CallbackToken: cfg.XenditCallbackToken,
		Auth:          authSvc,
		Users:         &httpx.AuthHandler{Service: authSvc},
		Products:      &httpx.ProductsHandler{Store: st},
		Orders: &httpx.OrdersHandler{
			Store:    st,
			Checkout: &orders.Checkout{Store: st, Events: events, Metrics: m, Producer: cfg.ServiceName},
			Status:   status,
			BaseURL:  cfg.AppBaseURL,
		},
		Payments: &httpx.PaymentsHandler{Invoices: &payments.Invoices{
			Store:      st,
			Gateway:    gw,
			Metrics:    m,
			SuccessURL: cfg.AppBaseURL + "/payments/success",
			FailureURL: cfg.AppBaseURL + "/payments/failed",
		}},
		Webhooks: &httpx.WebhookHandler{
			Reconciler: &payments.Reconciler{Store: st, Events: events, Metrics: m, Producer: cfg.ServiceName},
			Status:     status,
		},
	})

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// wait signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	return nil
}
