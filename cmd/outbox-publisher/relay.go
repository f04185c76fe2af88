package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	maxIdleBackoff = 10 * time.Second
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	ParkTx(tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, attempts int, at time.Time) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// topicPublisher hands back a pending result so a whole batch can be in
// flight before any acknowledgement is awaited.
type topicPublisher interface {
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// RelayParams wire the outbox relay.
type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxStore
	DeadLetter deadLetterStore
	Resolver   eventResolver
	Publisher  topicPublisher
	Metrics    *metrics.OutboxMetrics
}

// Relay moves committed outbox rows onto Pub/Sub. Rows are locked for the
// duration of a batch so concurrent relays never publish the same row.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxStore
	dlq         deadLetterStore
	resolver    eventResolver
	publisher   topicPublisher
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetter == nil:
		return nil, errors.New("dead letter repository is required")
	case p.Resolver == nil:
		return nil, errors.New("event resolver is required")
	case p.Publisher == nil:
		return nil, errors.New("publisher is required")
	}
	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		repo:        p.Repository,
		dlq:         p.DeadLetter,
		resolver:    p.Resolver,
		publisher:   p.Publisher,
		metrics:     p.Metrics,
		batchSize:   positiveOr(p.Outbox.BatchSize, 50),
		maxAttempts: positiveOr(p.Outbox.MaxAttempts, 10),
		poll:        time.Duration(positiveOr(p.Outbox.PollIntervalMS, 500)) * time.Millisecond,
		now:         time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run relays until ctx is canceled. A full batch is followed immediately by
// the next one. An empty batch waits one poll interval, and a failed batch
// backs off exponentially up to maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	wait := r.poll
	for {
		n, err := r.relayBatch(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxIdleBackoff)
		case n >= r.batchSize:
			wait = r.poll
			if ctx.Err() == nil {
				continue
			}
		default:
			wait = r.poll
		}
		if err := sleepCtx(ctx, wait+jitter(wait)); err != nil {
			return err
		}
	}
}

// outcome is what happened to one row. A row that is neither published nor
// dead-lettered is retried on a later batch.
type outcome struct {
	event     models.OutboxEvent
	topic     string
	published bool
	dead      enums.DeadLetterReason
	err       error
}

type inFlight struct {
	event  models.OutboxEvent
	topic  string
	result publishResult
}

// relayBatch returns the number of rows it locked.
func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	var locked int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		locked = len(events)
		if locked == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		outcomes, pending := r.dispatch(publishCtx, events)
		outcomes = append(outcomes, r.settle(publishCtx, pending)...)
		for _, o := range outcomes {
			if err := r.record(ctx, tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	return locked, err
}

func (r *Relay) dispatch(ctx context.Context, events []models.OutboxEvent) ([]outcome, []inFlight) {
	var done []outcome
	pending := make([]inFlight, 0, len(events))
	for _, event := range events {
		resolved, err := r.resolver.Resolve(event)
		if err != nil {
			done = append(done, outcome{event: event, dead: enums.DeadLetterNonRetryable, err: err})
			continue
		}
		topic := resolved.Route.Topic
		result := r.publisher.Publish(ctx, topic, &gcppubsub.Message{
			Data:       event.Payload,
			Attributes: messageAttributes(event, resolved.Envelope.EventID),
		})
		if result == nil {
			done = append(done, outcome{
				event: event,
				topic: topic,
				dead:  enums.DeadLetterNonRetryable,
				err:   fmt.Errorf("no publisher for topic %q", topic),
			})
			continue
		}
		pending = append(pending, inFlight{event: event, topic: topic, result: result})
	}
	return done, pending
}

func (r *Relay) settle(ctx context.Context, pending []inFlight) []outcome {
	out := make([]outcome, 0, len(pending))
	for _, p := range pending {
		o := outcome{event: p.event, topic: p.topic}
		if _, err := p.result.Get(ctx); err != nil {
			o.err = err
			switch {
			case errors.Is(err, registry.ErrUndeliverable):
				o.dead = enums.DeadLetterNonRetryable
			case p.event.AttemptCount+1 >= r.maxAttempts:
				o.dead = enums.DeadLetterMaxAttempts
			}
		} else {
			o.published = true
		}
		out = append(out, o)
	}
	return out
}

func (r *Relay) record(ctx context.Context, tx *gorm.DB, o outcome) error {
	eventType := string(o.event.EventType)
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     o.event.ID.String(),
		"event_type":    eventType,
		"aggregate_id":  o.event.AggregateID.String(),
		"attempt_count": o.event.AttemptCount,
		"topic":         o.topic,
	})

	switch {
	case o.published:
		if err := r.repo.MarkPublishedTx(tx, o.event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", o.event.ID, err)
		}
		r.metrics.IncPublished(eventType)
		r.logg.Debug(logCtx, "outbox.published")
	case o.dead != "":
		if err := r.deadLetter(tx, o); err != nil {
			return err
		}
		r.metrics.IncDeadLetter(eventType, string(o.dead))
		r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{"reason": o.dead, "error": o.err.Error()}), "outbox.dead_lettered")
	default:
		if err := r.repo.MarkFailedTx(tx, o.event.ID, o.err); err != nil {
			return fmt.Errorf("mark failed %s: %w", o.event.ID, err)
		}
		r.metrics.IncFailed(eventType)
		r.logg.Warn(r.logg.WithField(logCtx, "error", o.err.Error()), "outbox.publish_retry")
	}
	return nil
}

func (r *Relay) deadLetter(tx *gorm.DB, o outcome) error {
	if err := r.dlq.ParkTx(tx, o.event, o.dead, o.err, o.event.AttemptCount+1, r.now().UTC()); err != nil {
		return fmt.Errorf("park %s: %w", o.event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, o.event.ID, o.err, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", o.event.ID, err)
	}
	return nil
}

// messageAttributes let subscribers filter on event type without decoding
// the envelope.
func messageAttributes(event models.OutboxEvent, envelopeID string) map[string]string {
	attrs := map[string]string{
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"outbox_id":      event.ID.String(),
	}
	if envelopeID != "" {
		attrs["event_id"] = envelopeID
	}
	if !event.CreatedAt.IsZero() {
		attrs["created_at"] = event.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return attrs
}

func jitter(d time.Duration) time.Duration {
	if spread := d / 4; spread > 0 {
		return rand.N(spread)
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
