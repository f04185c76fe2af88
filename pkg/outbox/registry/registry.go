// Package registry maps outbox rows to their pubsub topic and typed payload.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhub/bazaar-backend/pkg/validation"
)

// ErrUndeliverable marks a row that no retry can fix.
var ErrUndeliverable = errors.New("undeliverable outbox row")

func undeliverable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUndeliverable, fmt.Sprintf(format, args...))
}

// Route is where one event type is published and how its data decodes.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) Route {
	return Route{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		decode: func(data json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, err
			}
			if err := validation.Struct(payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// Resolved is a decoded outbox row ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.Envelope
	Payload  any
}

// Registry holds one Route per event type.
type Registry struct {
	routes map[enums.OutboxEventType]Route
}

// New routes every order engine event to the orders topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	topic := cfg.OrdersTopic
	if topic == "" {
		return nil, errors.New("orders topic is required")
	}
	return build(
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, topic),
		route[payloads.OrderItemStatusChangedEvent](enums.EventOrderItemStatusChanged, enums.AggregateOrderItem, topic),
		route[payloads.RefundIssuedEvent](enums.EventRefundIssued, enums.AggregateOrderItem, topic),
		route[payloads.PaymentConfirmedEvent](enums.EventPaymentConfirmed, enums.AggregatePayment, topic),
		route[payloads.PaymentOrphanedEvent](enums.EventPaymentOrphaned, enums.AggregatePayment, topic),
	)
}

func build(routes ...Route) (*Registry, error) {
	r := &Registry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, rt := range routes {
		if _, dup := r.routes[rt.EventType]; dup {
			return nil, fmt.Errorf("event type %s routed twice", rt.EventType)
		}
		r.routes[rt.EventType] = rt
	}
	return r, nil
}

// Topics lists the distinct topics the registry publishes to.
func (r *Registry) Topics() []string {
	seen := map[string]struct{}{}
	var topics []string
	for _, rt := range r.routes {
		if _, ok := seen[rt.Topic]; ok {
			continue
		}
		seen[rt.Topic] = struct{}{}
		topics = append(topics, rt.Topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its route and decodes the envelope data.
// Every error it returns wraps ErrUndeliverable.
func (r *Registry) Resolve(event models.OutboxEvent) (*Resolved, error) {
	rt, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, undeliverable("no route for event type %q", event.EventType)
	case rt.AggregateType != event.AggregateType:
		return nil, undeliverable("%s belongs to %s aggregates, row says %s", event.EventType, rt.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, undeliverable("%s row has no aggregate id", event.EventType)
	}

	var env outbox.Envelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return nil, undeliverable("decode envelope: %v", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, undeliverable("%s envelope carries no data", event.EventType)
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, undeliverable("decode %s data: %v", event.EventType, err)
	}
	return &Resolved{Route: rt, Envelope: env, Payload: payload}, nil
}
