package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

// DraftShipment is the pre-booking shipment record for a single order item.
type DraftShipment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PickupLocationID string               `gorm:"column:pickup_location_id;type:text;not null"`
	CourierServiceID string               `gorm:"column:courier_service_id;type:text;not null"`
	ShippingCharge   decimal.Decimal      `gorm:"column:shipping_charge;type:numeric(12,2);not null;default:0"`
	ShipmentStatus   enums.ShipmentStatus `gorm:"column:shipment_status;type:text;not null;default:'draft'"`
	AWB              string               `gorm:"column:awb;type:text;not null;default:''"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
