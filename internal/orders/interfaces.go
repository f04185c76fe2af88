package orders

import (
	"context"
	"errors"
	"time"

	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStatusChanged is returned by guarded status updates when the row no longer
// holds the expected status.
var ErrStatusChanged = errors.New("status changed concurrently")

// ErrDuplicatePayment is returned when a gateway order id is recorded twice.
var ErrDuplicatePayment = errors.New("payment already recorded for gateway order")

// Repository defines persistence operations for payment, order and refund tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
	MarkPaymentStatus(ctx context.Context, paymentID uuid.UUID, from, to enums.PaymentStatus) error
	ListPendingPaymentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)

	CreateDraftShipment(ctx context.Context, shipment *models.DraftShipment) (*models.DraftShipment, error)
	UpdateDraftShipmentStatus(ctx context.Context, shipmentID uuid.UUID, status enums.ShipmentStatus) error

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrdersByPaymentRef(ctx context.Context, paymentRefID string) ([]models.Order, error)
	CountOrdersByPaymentRef(ctx context.Context, paymentRefID string) (int64, error)
	UpdateOrdersPaymentStatus(ctx context.Context, paymentRefID string, paymentStatus enums.PaymentStatus, orderStatus enums.OrderStatus) error

	FindOrderItem(ctx context.Context, itemID uuid.UUID) (*models.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, itemID uuid.UUID, from, to enums.OrderItemStatus) error

	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	FindRefundByOrderItem(ctx context.Context, itemID uuid.UUID) (*models.Refund, error)
}
