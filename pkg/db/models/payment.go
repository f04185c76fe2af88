package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// Payment records the single gateway order that funds every sibling order of a checkout.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	GatewayOrderID   string              `gorm:"column:gateway_order_id;type:text;not null;uniqueIndex"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id;type:text"`
	Receipt          string              `gorm:"column:receipt;type:text;not null"`
	Amount           decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountMinor      int64               `gorm:"column:amount_minor;not null"`
	Currency         string              `gorm:"column:currency;type:text;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
