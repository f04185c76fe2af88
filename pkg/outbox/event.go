package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

const envelopeVersion = 1

// Actor identifies who caused an event. Sweeps run by the cron worker leave
// it nil.
type Actor struct {
	UserID   uuid.UUID      `json:"userId"`
	SellerID *uuid.UUID     `json:"sellerId,omitempty"`
	Role     enums.UserRole `json:"role,omitempty"`
}

// Envelope is the document stored in outbox_events.payload and published to
// subscribers unchanged.
type Envelope struct {
	EventID    string          `json:"eventId"`
	Version    int             `json:"version"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is a state change queued in the same transaction as the write
// that caused it.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Data          any
	Version       int
	OccurredAt    time.Time
}

func (e DomainEvent) envelope(now time.Time) (Envelope, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s data: %w", e.EventType, err)
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		Version:    e.Version,
		OccurredAt: e.OccurredAt,
		Actor:      e.Actor,
		Data:       data,
	}
	if env.Version <= 0 {
		env.Version = envelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	return env, nil
}
