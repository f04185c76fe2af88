package orders

import (
	"github.com/bazaarhub/bazaar-backend/pkg/auth"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdateItemStatusInput moves one order item through its state machine.
type UpdateItemStatusInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Status  enums.OrderItemStatus
	User    auth.AuthenticatedUser
}

// CancelItemInput cancels one order item and refunds it when paid.
// A nil Amount refunds the item's full paid total.
type CancelItemInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Amount  *decimal.Decimal
	Speed   enums.RefundSpeed
	Reason  string
	User    auth.AuthenticatedUser
}

// CancelItemResult reports what the cancellation did besides the status change.
type CancelItemResult struct {
	Item              *models.OrderItem
	Refund            *models.Refund
	ShipmentCancelled bool
}

// ConfirmPaymentInput verifies a gateway payment against a combined order.
type ConfirmPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	User             auth.AuthenticatedUser
}
