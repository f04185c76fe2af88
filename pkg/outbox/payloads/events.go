package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per seller order written by checkout.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID       `json:"order_id" validate:"required"`
	SellerID     uuid.UUID       `json:"seller_id" validate:"required"`
	UserID       uuid.UUID       `json:"user_id" validate:"required"`
	PaymentRefID string          `json:"payment_ref_id" validate:"required"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ItemCount    int             `json:"item_count"`
}

// OrderItemStatusChangedEvent records a single transition of an order item.
type OrderItemStatusChangedEvent struct {
	OrderID     uuid.UUID             `json:"order_id" validate:"required"`
	OrderItemID uuid.UUID             `json:"order_item_id" validate:"required"`
	SellerID    uuid.UUID             `json:"seller_id" validate:"required"`
	From        enums.OrderItemStatus `json:"from" validate:"required"`
	To          enums.OrderItemStatus `json:"to" validate:"required"`
	ChangedAt   time.Time             `json:"changed_at"`
}

// RefundIssuedEvent describes a refund recorded against a cancelled item.
type RefundIssuedEvent struct {
	RefundID         uuid.UUID          `json:"refund_id" validate:"required"`
	OrderID          uuid.UUID          `json:"order_id" validate:"required"`
	OrderItemID      uuid.UUID          `json:"order_item_id" validate:"required"`
	GatewayPaymentID string             `json:"gateway_payment_id,omitempty"`
	GatewayRefundID  string             `json:"gateway_refund_id,omitempty"`
	Amount           decimal.Decimal    `json:"amount"`
	Status           enums.RefundStatus `json:"status" validate:"required"`
}

// PaymentConfirmedEvent is emitted when a combined payment is verified.
type PaymentConfirmedEvent struct {
	PaymentID        uuid.UUID       `json:"payment_id" validate:"required"`
	GatewayOrderID   string          `json:"gateway_order_id" validate:"required"`
	GatewayPaymentID string          `json:"gateway_payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	OrderIDs         []uuid.UUID     `json:"order_ids"`
}

// PaymentOrphanedEvent flags a combined payment with no seller orders behind it.
type PaymentOrphanedEvent struct {
	PaymentID      uuid.UUID       `json:"payment_id" validate:"required"`
	GatewayOrderID string          `json:"gateway_order_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
