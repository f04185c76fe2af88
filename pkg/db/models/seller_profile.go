package models

import (
	"time"

	"github.com/google/uuid"
)

// SellerProfile is the storefront identity a seller fulfils orders under.
type SellerProfile struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	DisplayName      string    `gorm:"column:display_name;type:text;not null"`
	PickupLocationID string    `gorm:"column:pickup_location_id;type:text;not null;default:''"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
