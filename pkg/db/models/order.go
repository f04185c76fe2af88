package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// Order is the per-seller order produced by a combined checkout. Sibling orders
// share PaymentRefID/OrderRefID, the id of the single gateway order.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	ShippingAddressID uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	ItemsAmount       decimal.Decimal     `gorm:"column:items_amount;type:numeric(12,2);not null"`
	ShippingAmount    decimal.Decimal     `gorm:"column:shipping_amount;type:numeric(12,2);not null;default:0"`
	TotalAmount       decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency          string              `gorm:"column:currency;type:text;not null;default:'INR'"`
	OrderStatus       enums.OrderStatus   `gorm:"column:order_status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentRefID      string              `gorm:"column:payment_ref_id;type:text;not null"`
	OrderRefID        string              `gorm:"column:order_ref_id;type:text;not null"`
	Receipt           string              `gorm:"column:receipt;type:text;not null"`
	Items             []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
