package checkout

import (
	"strings"

	"github.com/bazaarhub/bazaar-backend/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the multi-seller checkout payload.
type CreateOrderRequest struct {
	ShippingAddressID    uuid.UUID         `json:"shipping_address_id" validate:"required"`
	TotalShippingCharges *decimal.Decimal  `json:"total_shipping_charges,omitempty" validate:"omitempty,gte=0"`
	Lines                []CartLineRequest `json:"lines" validate:"required,min=1,max=100,dive"`
	IdempotencyKey       string            `json:"-"`
}

// CartLineRequest is one cart line. The unit price is re-read from the catalog;
// PriceAtPurchase is what the client displayed.
type CartLineRequest struct {
	ProductVariantID uuid.UUID             `json:"product_variant_id" validate:"required"`
	SellerID         uuid.UUID             `json:"seller_id" validate:"required"`
	Quantity         int                   `json:"quantity" validate:"required,gt=0,lte=1000"`
	PriceAtPurchase  decimal.Decimal       `json:"price_at_purchase" validate:"gte=0"`
	GSTPercentage    decimal.Decimal       `json:"gst_percentage" validate:"gte=0,lte=100"`
	DiscountID       *uuid.UUID            `json:"discount_id,omitempty"`
	CourierServiceID string                `json:"courier_service_id" validate:"required,max=64"`
	ShippingCharge   decimal.Decimal       `json:"shipping_charge" validate:"gte=0"`
	DraftShipment    *DraftShipmentRequest `json:"draft_shipment,omitempty"`
}

// DraftShipmentRequest carries the shipment intent captured at checkout.
// Empty fields fall back to the line and the seller profile.
type DraftShipmentRequest struct {
	PickupLocationID string           `json:"pickup_location_id" validate:"max=64"`
	CourierServiceID string           `json:"courier_service_id" validate:"max=64"`
	ShippingCharge   *decimal.Decimal `json:"shipping_charge,omitempty" validate:"omitempty,gte=0"`
}

// Validate returns a VALIDATION_ERROR with a field-keyed details map.
func (r CreateOrderRequest) Validate() error {
	return validation.Struct(r)
}

// CreateOrderResult is returned once every seller order is persisted.
type CreateOrderResult struct {
	Orders                 []SellerOrderSummary `json:"orders"`
	Summary                Summary              `json:"summary"`
	CombinedPaymentOrderID string               `json:"combined_payment_order_id"`
	CombinedPayment        CombinedPayment      `json:"combined_payment"`
	AllOrderIDs            []uuid.UUID          `json:"all_order_ids"`
	FreeDeliveryApplied    bool                 `json:"free_delivery_applied"`
	Reconciled             bool                 `json:"reconciled"`
}

// SellerOrderSummary describes one persisted seller order.
type SellerOrderSummary struct {
	OrderID       uuid.UUID       `json:"order_id"`
	SellerID      uuid.UUID       `json:"seller_id"`
	SellerName    string          `json:"seller_name"`
	ItemCount     int             `json:"item_count"`
	ItemsAmount   decimal.Decimal `json:"items_amount"`
	ShippingShare decimal.Decimal `json:"shipping_share"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentRefID  string          `json:"payment_ref_id"`
}

// Summary aggregates the checkout.
type Summary struct {
	TotalOrders      int             `json:"total_orders"`
	TotalSellers     int             `json:"total_sellers"`
	GrandTotalAmount decimal.Decimal `json:"grand_total_amount"`
	TotalItems       int             `json:"total_items"`
}

// CombinedPayment is the single gateway order the customer pays.
type CombinedPayment struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Receipt        string          `json:"receipt"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
}

func (l CartLineRequest) pickupLocation(fallback string) string {
	if l.DraftShipment != nil {
		if id := strings.TrimSpace(l.DraftShipment.PickupLocationID); id != "" {
			return id
		}
	}
	return fallback
}

func (l CartLineRequest) shipmentCourier() string {
	if l.DraftShipment != nil {
		if id := strings.TrimSpace(l.DraftShipment.CourierServiceID); id != "" {
			return id
		}
	}
	return strings.TrimSpace(l.CourierServiceID)
}
