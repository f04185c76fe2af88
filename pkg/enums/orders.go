package enums

// OrderStatus tracks one seller order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItemStatus is the per-item fulfillment state. The cancel-requested
// spelling matches rows already written by the storefront.
type OrderItemStatus string

const (
	OrderItemStatusPending         OrderItemStatus = "pending"
	OrderItemStatusShipped         OrderItemStatus = "shipped"
	OrderItemStatusDelivered       OrderItemStatus = "delivered"
	OrderItemStatusCancelRequested OrderItemStatus = "cancellRequested"
	OrderItemStatusCancelled       OrderItemStatus = "cancelled"
)

var orderItemStatuses = []OrderItemStatus{
	OrderItemStatusPending,
	OrderItemStatusShipped,
	OrderItemStatusDelivered,
	OrderItemStatusCancelRequested,
	OrderItemStatusCancelled,
}

func (o OrderItemStatus) IsValid() bool { return known(o, orderItemStatuses) }

// PaymentStatus is shared by a combined payment and every sibling order
// created from it.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusOrphaned marks a combined payment with no seller orders.
	PaymentStatusOrphaned PaymentStatus = "orphaned"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
	// RefundStatusManual is used when the gateway cannot refund and an
	// operator has to settle the amount.
	RefundStatusManual RefundStatus = "manual"
)

// RefundSpeed is the settlement speed requested for an item refund.
type RefundSpeed string

const (
	RefundSpeedNormal  RefundSpeed = "normal"
	RefundSpeedOptimum RefundSpeed = "optimum"
)

func (r RefundSpeed) IsValid() bool {
	return r == RefundSpeedNormal || r == RefundSpeedOptimum
}

// ShipmentStatus tracks a draft shipment through courier booking.
type ShipmentStatus string

const (
	ShipmentStatusDraft     ShipmentStatus = "draft"
	ShipmentStatusBooked    ShipmentStatus = "booked"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)
