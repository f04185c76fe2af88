package enums

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateOrderItem OutboxAggregateType = "order_item"
	AggregatePayment   OutboxAggregateType = "payment"
)

// OutboxEventType is the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order_created"
	EventOrderItemStatusChanged OutboxEventType = "order_item_status_changed"
	EventRefundIssued           OutboxEventType = "refund_issued"
	EventPaymentConfirmed       OutboxEventType = "payment_confirmed"
	EventPaymentOrphaned        OutboxEventType = "payment_orphaned"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderItemStatusChanged,
	EventRefundIssued,
	EventPaymentConfirmed,
	EventPaymentOrphaned,
}

func (e OutboxEventType) IsValid() bool { return known(e, outboxEventTypes) }

// DeadLetterReason records why the relay parked a row in outbox_dead_letters.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)
