package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// OrderItem snapshots the priced cart line at purchase time.
type OrderItem struct {
	ID                       uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                  uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	ProductVariantID         uuid.UUID             `gorm:"column:product_variant_id;type:uuid;not null"`
	SellerID                 uuid.UUID             `gorm:"column:seller_id;type:uuid;not null"`
	Quantity                 int                   `gorm:"column:quantity;not null"`
	PriceAtPurchase          decimal.Decimal       `gorm:"column:price_at_purchase;type:numeric(12,2);not null"`
	GSTAmountAtPurchase      decimal.Decimal       `gorm:"column:gst_amount_at_purchase;type:numeric(12,2);not null;default:0"`
	DiscountAmountAtPurchase decimal.Decimal       `gorm:"column:discount_amount_at_purchase;type:numeric(12,2);not null;default:0"`
	LineTotal                decimal.Decimal       `gorm:"column:line_total;type:numeric(12,2);not null"`
	CourierServiceID         *string               `gorm:"column:courier_service_id;type:text"`
	ShippingCharge           decimal.Decimal       `gorm:"column:shipping_charge;type:numeric(12,2);not null;default:0"`
	Status                   enums.OrderItemStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	DraftShipmentID          *uuid.UUID            `gorm:"column:draft_shipment_id;type:uuid"`
	DraftShipment            *DraftShipment        `gorm:"foreignKey:DraftShipmentID"`
	CreatedAt                time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// PaidAmount is what the customer paid for the line, excluding shipping.
func (i OrderItem) PaidAmount() decimal.Decimal {
	return i.LineTotal
}
