package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// Product is the catalog parent of one or more sellable variants.
type Product struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID   uuid.UUID  `gorm:"column:seller_id;type:uuid;not null"`
	Title      string     `gorm:"column:title;type:text;not null"`
	DiscountID *uuid.UUID `gorm:"column:discount_id;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductVariant carries the live price used to reprice cart lines at checkout.
type ProductVariant struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID     uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	SKU           string              `gorm:"column:sku;type:text;not null"`
	Price         decimal.NullDecimal `gorm:"column:price;type:numeric(12,2)"`
	GSTPercentage decimal.NullDecimal `gorm:"column:gst_percentage;type:numeric(5,2)"`
	DiscountID    *uuid.UUID          `gorm:"column:discount_id;type:uuid"`
	Product       *Product            `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectiveDiscountID returns the variant discount, falling back to the product's.
func (v ProductVariant) EffectiveDiscountID() *uuid.UUID {
	if v.DiscountID != nil {
		return v.DiscountID
	}
	if v.Product != nil {
		return v.Product.DiscountID
	}
	return nil
}

// ProductDiscount is a time-boxed discount attachable to a product or variant.
type ProductDiscount struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	StartDate     time.Time          `gorm:"column:start_date;not null"`
	EndDate       time.Time          `gorm:"column:end_date;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
