package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
	"github.com/bazaarhub/bazaar-backend/pkg/migrate"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox/registry"
	"github.com/bazaarhub/bazaar-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceName})
	bootCtx := context.Background()

	if err := godotenv.Load(); err != nil {
		boot.Warn(bootCtx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	fatal(bootCtx, boot, "load config", err)
	cfg.Service.Kind = serviceName

	logg := logger.FromConfig(serviceName, cfg.App)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatal(ctx, logg, "connect database", err)
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	fatal(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	ps, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	fatal(ctx, logg, "connect pubsub", err)
	defer closeQuietly(ctx, logg, "pubsub", ps.Close)
	fatal(ctx, logg, "pubsub readiness", ps.Ping(ctx))

	events, err := registry.New(cfg.PubSub)
	fatal(ctx, logg, "event registry", err)

	relay, err := NewRelay(RelayParams{
		Outbox:     cfg.Outbox,
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
		DeadLetter: outbox.NewDeadLetters(dbClient.DB()),
		Resolver:   events,
		Publisher:  pubsubTopics{client: ps},
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	fatal(ctx, logg, "build relay", err)

	logg.Info(logg.WithField(ctx, "topics", events.Topics()), "outbox.relay_started")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(ctx, logg, "relay", err)
	}
	logg.Info(ctx, "outbox.relay_stopped")
}

// pubsubTopics adapts the shared client to topicPublisher.
type pubsubTopics struct {
	client *pubsub.Client
}

func (t pubsubTopics) Publish(ctx context.Context, topic string, msg *gcppubsub.Message) publishResult {
	p := t.client.Publisher(topic)
	if p == nil {
		return nil
	}
	return p.Publish(ctx, msg)
}

func fatal(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", step), "outbox.fatal", err)
	os.Exit(1)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "outbox.close_failed", err)
	}
}
