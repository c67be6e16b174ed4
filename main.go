package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	addressControllers "github.com/Sammyalade/Jumia-backend/controllers/address"
	cartControllers "github.com/Sammyalade/Jumia-backend/controllers/cart"
	itemControllers "github.com/Sammyalade/Jumia-backend/controllers/item"
	orderControllers "github.com/Sammyalade/Jumia-backend/controllers/order"
	paymentControllers "github.com/Sammyalade/Jumia-backend/controllers/payment"

	"github.com/Sammyalade/Jumia-backend/cache"
	"github.com/Sammyalade/Jumia-backend/catalog"
	"github.com/Sammyalade/Jumia-backend/config"
	"github.com/Sammyalade/Jumia-backend/database"
	"github.com/Sammyalade/Jumia-backend/middleware"
	"github.com/Sammyalade/Jumia-backend/outbox"
	"github.com/Sammyalade/Jumia-backend/routes"
	"github.com/Sammyalade/Jumia-backend/telemetry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const serviceName = "jumia"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Init DB
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Warn("database close failed", "error", err)
		}
	}()
	if err := database.Migrate(db); err != nil {
		return err
	}

	var (
		store  cache.Cache
		locker cache.Locker
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, caching degraded", "addr", cfg.RedisAddr, "error", err)
		}
		rc := cache.NewRedisCache(client, serviceName)
		store, locker = rc, rc
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	hub := orderControllers.NewHub()
	products := catalog.NewStore(db, store, cfg.CatalogCacheTTL)
	reconciler := paymentControllers.NewReconciler(db, paymentControllers.NewPayPalClient(ctx, cfg.Payment), paymentControllers.Options{
		Locker:     locker,
		Notifier:   hub,
		Metrics:    metrics,
		Timeout:    cfg.Payment.Timeout,
		RetryLimit: cfg.Payment.RetryLimit,
		Currency:   cfg.Payment.Currency,
	})

	// Gin setup
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.Tracing(serviceName),
		middleware.RequestLogger(),
		cors.New(cors.Config{
			AllowOrigins:  []string{"*"},
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY", middleware.IdempotencyHeader},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}),
	)

	routes.SetupRoutes(r, routes.Deps{
		Config:         cfg,
		DB:             db,
		Cache:          store,
		Metrics:        metrics,
		Workflow:       orderControllers.NewWorkflow(db, reconciler, hub, metrics),
		Reconciler:     reconciler,
		Hub:            hub,
		Carts:          cartControllers.NewService(db, products),
		Ledger:         itemControllers.NewLedger(db, products),
		Addresses:      addressControllers.NewService(db),
		IdempotencyTTL: 24 * time.Hour,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		outbox.NewRelay(db, publisher, cfg.OutboxPollInterval, cfg.OutboxBatchSize, metrics).Run(gctx)
		return nil
	})
	g.Go(func() error {
		n, err := reconciler.ResumePending(gctx)
		if err != nil {
			slog.ErrorContext(gctx, "resume pending payments failed", "error", err)
			return nil
		}
		slog.InfoContext(gctx, "resumed pending payments", "count", n)
		return nil
	})
	g.Go(func() error {
		slog.Info("server running", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newPublisher(cfg *config.Config) (outbox.Publisher, error) {
	switch cfg.Broker {
	case "kafka":
		return outbox.NewKafkaPublisher(cfg.KafkaBrokers), nil
	case "rabbitmq":
		return outbox.NewRabbitPublisher(cfg.RabbitMQURL)
	default:
		return outbox.LogPublisher{}, nil
	}
}
