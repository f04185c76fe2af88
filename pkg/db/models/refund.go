package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// Refund is a refund issued (or recorded for manual handling) against one order item.
type Refund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID      uuid.UUID          `gorm:"column:order_item_id;type:uuid;not null"`
	GatewayPaymentID *string            `gorm:"column:gateway_payment_id;type:text"`
	GatewayRefundID  *string            `gorm:"column:gateway_refund_id;type:text"`
	Amount           decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountMinor      int64              `gorm:"column:amount_minor;not null"`
	Speed            enums.RefundSpeed  `gorm:"column:speed;type:text;not null;default:'normal'"`
	Status           enums.RefundStatus `gorm:"column:status;type:text;not null"`
	Reason           *string            `gorm:"column:reason;type:text"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
