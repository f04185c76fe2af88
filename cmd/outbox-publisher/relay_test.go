package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox/registry"
)

func TestRelayBatchPublishesAndRetries(t *testing.T) {
	first := outboxRow(t, enums.EventOrderCreated, enums.AggregateOrder, 0)
	second := outboxRow(t, enums.EventOrderCreated, enums.AggregateOrder, 0)
	store := &fakeStore{events: []models.OutboxEvent{first, second}}
	pub := &fakeTopics{results: map[uuid.UUID]error{first.ID: errors.New("unavailable")}}
	relay := newTestRelay(t, store, pub, &fakeResolver{}, &fakeDeadLetters{}, 10)

	n, err := relay.relayBatch(context.Background())
	if err != nil {
		t.Fatalf("relayBatch: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows locked, got %d", n)
	}
	if len(store.failed) != 1 || store.failed[0] != first.ID {
		t.Fatalf("expected first row scheduled for retry, got %v", store.failed)
	}
	if len(store.published) != 1 || store.published[0] != second.ID {
		t.Fatalf("expected second row published, got %v", store.published)
	}
}

func TestRelayBatchPublishesEveryRowBeforeAwaitingAcks(t *testing.T) {
	store := &fakeStore{events: []models.OutboxEvent{
		outboxRow(t, enums.EventOrderCreated, enums.AggregateOrder, 0),
		outboxRow(t, enums.EventPaymentConfirmed, enums.AggregatePayment, 0),
		outboxRow(t, enums.EventRefundIssued, enums.AggregateOrderItem, 0),
	}}
	pub := &fakeTopics{}
	relay := newTestRelay(t, store, pub, &fakeResolver{}, &fakeDeadLetters{}, 10)

	if _, err := relay.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch: %v", err)
	}
	want := []string{"publish", "publish", "publish", "get", "get", "get"}
	if len(pub.calls) != len(want) {
		t.Fatalf("unexpected call sequence %v", pub.calls)
	}
	for i := range want {
		if pub.calls[i] != want[i] {
			t.Fatalf("unexpected call sequence %v", pub.calls)
		}
	}
}

func TestRelayBatchSetsMessageAttributes(t *testing.T) {
	event := outboxRow(t, enums.EventRefundIssued, enums.AggregateOrderItem, 0)
	store := &fakeStore{events: []models.OutboxEvent{event}}
	pub := &fakeTopics{}
	reg := prometheus.NewRegistry()
	relay := newTestRelay(t, store, pub, &fakeResolver{}, &fakeDeadLetters{}, 10)
	relay.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := relay.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch: %v", err)
	}
	if len(pub.messages) != 1 || pub.topics[0] != "orders-topic" {
		t.Fatalf("expected one message on orders-topic, got %v", pub.topics)
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_type"] != string(enums.EventRefundIssued) ||
		attrs["aggregate_id"] != event.AggregateID.String() ||
		attrs["event_id"] != event.ID.String() {
		t.Fatalf("unexpected attributes %v", attrs)
	}
	if !bytes.Equal(pub.messages[0].Data, event.Payload) {
		t.Fatal("message data should be the stored envelope")
	}
	if got := counterSum(t, reg, "bazaar_outbox_published_total"); got != 1 {
		t.Fatalf("expected one published count, got %v", got)
	}
}

func TestRelayBatchDeadLettersUnresolvableRows(t *testing.T) {
	event := outboxRow(t, enums.EventOrderCreated, enums.AggregateOrder, 0)
	store := &fakeStore{events: []models.OutboxEvent{event}}
	dlq := &fakeDeadLetters{}
	resolver := &fakeResolver{err: fmt.Errorf("%w: payload does not decode", registry.ErrUndeliverable)}
	pub := &fakeTopics{}
	relay := newTestRelay(t, store, pub, resolver, dlq, 10)

	if _, err := relay.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch: %v", err)
	}
	if len(pub.messages) != 0 {
		t.Fatal("unresolvable rows must not be published")
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dlq.entries))
	}
	entry := dlq.entries[0]
	if entry.EventID != event.ID || entry.Reason != enums.DeadLetterNonRetryable {
		t.Fatalf("unexpected dead letter %+v", entry)
	}
	if !bytes.Equal(entry.Payload, event.Payload) {
		t.Fatal("dead letter should keep the original payload")
	}
	if len(store.terminal) != 1 || store.terminal[0] != event.ID {
		t.Fatalf("expected row marked terminal, got %v", store.terminal)
	}
}

func TestRelayBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := outboxRow(t, enums.EventPaymentOrphaned, enums.AggregatePayment, 1)
	store := &fakeStore{events: []models.OutboxEvent{event}}
	dlq := &fakeDeadLetters{}
	pub := &fakeTopics{results: map[uuid.UUID]error{event.ID: errors.New("deadline exceeded")}}
	relay := newTestRelay(t, store, pub, &fakeResolver{}, dlq, 2)

	if _, err := relay.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].Reason != enums.DeadLetterMaxAttempts {
		t.Fatalf("expected max attempts dead letter, got %+v", dlq.entries)
	}
	if dlq.entries[0].Attempts != 2 {
		t.Fatalf("expected final attempt recorded, got %d", dlq.entries[0].Attempts)
	}
	if len(store.failed) != 0 {
		t.Fatal("terminal rows must not be scheduled for retry")
	}
}

func TestRelayBatchDeadLettersWhenTopicHasNoPublisher(t *testing.T) {
	event := outboxRow(t, enums.EventOrderCreated, enums.AggregateOrder, 0)
	store := &fakeStore{events: []models.OutboxEvent{event}}
	dlq := &fakeDeadLetters{}
	relay := newTestRelay(t, store, &fakeTopics{missing: true}, &fakeResolver{}, dlq, 10)

	if _, err := relay.relayBatch(context.Background()); err != nil {
		t.Fatalf("relayBatch: %v", err)
	}
	if len(dlq.entries) != 1 {
		t.Fatalf("expected dead letter for missing publisher, got %d", len(dlq.entries))
	}
}

func TestNewRelayRequiresDependencies(t *testing.T) {
	if _, err := NewRelay(RelayParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func newTestRelay(t *testing.T, store outboxStore, pub topicPublisher, resolver eventResolver, dlq deadLetterStore, maxAttempts int) *Relay {
	t.Helper()
	relay, err := NewRelay(RelayParams{
		Outbox:     config.OutboxConfig{BatchSize: 10, PollIntervalMS: 10, MaxAttempts: maxAttempts},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard}),
		DB:         fakeDB{},
		Repository: store,
		DeadLetter: dlq,
		Resolver:   resolver,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	return relay
}

func outboxRow(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.Envelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		AttemptCount:  attempts,
	}
}

func counterSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeStore struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeStore) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeStore) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeStore) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeStore) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDeadLetters struct {
	entries []models.DeadLetter
}

func (f *fakeDeadLetters) ParkTx(_ *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error, attempts int, at time.Time) error {
	f.entries = append(f.entries, models.DeadLetter{
		EventID:   event.ID,
		Payload:   event.Payload,
		Reason:    reason,
		LastError: cause.Error(),
		Attempts:  attempts,
		DeadAt:    at,
	})
	return nil
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(event models.OutboxEvent) (*registry.Resolved, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &registry.Resolved{
		Route:    registry.Route{EventType: event.EventType, AggregateType: event.AggregateType, Topic: "orders-topic"},
		Envelope: outbox.Envelope{EventID: event.ID.String()},
	}, nil
}

// fakeTopics fails the publish of any row listed in results.
type fakeTopics struct {
	results  map[uuid.UUID]error
	missing  bool
	calls    []string
	topics   []string
	messages []*gcppubsub.Message
}

func (f *fakeTopics) Publish(_ context.Context, topic string, msg *gcppubsub.Message) publishResult {
	if f.missing {
		return nil
	}
	f.calls = append(f.calls, "publish")
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, msg)
	id, _ := uuid.Parse(msg.Attributes["outbox_id"])
	return &fakeResult{owner: f, err: f.results[id]}
}

type fakeResult struct {
	owner *fakeTopics
	err   error
}

func (r *fakeResult) Get(context.Context) (string, error) {
	r.owner.calls = append(r.owner.calls, "get")
	if r.err != nil {
		return "", r.err
	}
	return "msg-1", nil
}
