package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bazaarhub/bazaar-backend/api/routes"
	"github.com/bazaarhub/bazaar-backend/internal/checkout"
	"github.com/bazaarhub/bazaar-backend/internal/orders"
	"github.com/bazaarhub/bazaar-backend/internal/products"
	"github.com/bazaarhub/bazaar-backend/internal/sellers"
	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
	"github.com/bazaarhub/bazaar-backend/pkg/migrate"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox"
	"github.com/bazaarhub/bazaar-backend/pkg/redis"
	"github.com/bazaarhub/bazaar-backend/pkg/shipping"
	"github.com/bazaarhub/bazaar-backend/pkg/square"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.FromConfig("api", cfg.App)

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create square client", err)
		os.Exit(1)
	}

	shippingClient, err := shipping.NewClient(cfg.Shipping)
	if err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "shipping aggregator disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewQueue(outbox.NewRepository(dbClient.DB()), logg)

	ordersParams := orders.ServiceParams{
		Repo:            ordersRepo,
		Tx:              dbClient,
		Outbox:          outboxService,
		Gateway:         squareClient,
		Logger:          logg,
		Currency:        cfg.Checkout.Currency,
		MinRefundAmount: cfg.Checkout.MinRefundAmount,
	}
	if shippingClient != nil {
		ordersParams.Shipping = shippingClient
	}
	ordersService, err := orders.NewService(ordersParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Catalog: products.NewRepository(dbClient.DB()),
		Sellers: sellers.NewRepository(dbClient.DB()),
		Orders:  ordersRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Gateway: squareClient,
		Metrics: checkoutMetrics,
		Logger:  logg,
		Config:  cfg.Checkout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"square_env":     squareClient.Environment(),
		"shipping_ready": shippingClient != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, checkoutService, ordersService, shippingClient),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}
