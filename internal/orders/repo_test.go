package orders

import (
	"context"
	"testing"
	"time"

	"github.com/bazaarhub/bazaar-backend/pkg/db/dbtest"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	payment  *models.Payment
	order    *models.Order
	shipment *models.DraftShipment
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// seedCheckout writes one paid-or-pending payment and a two-item order for a single seller.
func seedCheckout(t *testing.T, db *gorm.DB, userID, sellerID uuid.UUID, paymentStatus enums.PaymentStatus) fixture {
	t.Helper()
	ctx := context.Background()
	repo := NewRepository(db)

	gatewayOrderID := "sq_ord_" + uuid.NewString()[:8]
	gatewayPaymentID := "sq_pay_" + uuid.NewString()[:8]
	payment, err := repo.CreatePayment(ctx, &models.Payment{
		UserID:           userID,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: &gatewayPaymentID,
		Receipt:          "rcpt_test",
		Amount:           dec("482.22"),
		AmountMinor:      48222,
		Currency:         "INR",
		Status:           paymentStatus,
	})
	require.NoError(t, err)

	shipment, err := repo.CreateDraftShipment(ctx, &models.DraftShipment{
		PickupLocationID: "WH-1",
		CourierServiceID: "17",
		ShippingCharge:   dec("40"),
		ShipmentStatus:   enums.ShipmentStatusDraft,
		AWB:              "AWB123",
	})
	require.NoError(t, err)

	courier := "17"
	order, err := repo.CreateOrder(ctx, &models.Order{
		UserID:            userID,
		SellerID:          sellerID,
		ShippingAddressID: uuid.New(),
		ItemsAmount:       dec("424.80"),
		ShippingAmount:    dec("57.42"),
		TotalAmount:       dec("482.22"),
		Currency:          "INR",
		OrderStatus:       enums.OrderStatusPending,
		PaymentStatus:     paymentStatus,
		PaymentRefID:      gatewayOrderID,
		OrderRefID:        gatewayOrderID,
		Receipt:           "rcpt_test",
		Items: []models.OrderItem{
			{
				ProductVariantID:         uuid.New(),
				SellerID:                 sellerID,
				Quantity:                 2,
				PriceAtPurchase:          dec("180"),
				GSTAmountAtPurchase:      dec("64.80"),
				DiscountAmountAtPurchase: dec("40"),
				LineTotal:                dec("424.80"),
				CourierServiceID:         &courier,
				ShippingCharge:           dec("40"),
				Status:                   enums.OrderItemStatusPending,
				DraftShipmentID:          &shipment.ID,
			},
			{
				ProductVariantID: uuid.New(),
				SellerID:         sellerID,
				Quantity:         1,
				PriceAtPurchase:  dec("0.50"),
				LineTotal:        dec("0.50"),
				Status:           enums.OrderItemStatusPending,
			},
		},
	})
	require.NoError(t, err)

	return fixture{payment: payment, order: order, shipment: shipment}
}

func TestCreateOrderPersistsItemsAndLinksShipment(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)

	loaded, err := repo.FindOrder(ctx, fx.order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.True(t, loaded.TotalAmount.Equal(dec("482.22")))
	assert.Equal(t, fx.payment.GatewayOrderID, loaded.PaymentRefID)

	var linked *models.OrderItem
	for i := range loaded.Items {
		if loaded.Items[i].DraftShipmentID != nil {
			linked = &loaded.Items[i]
		}
	}
	require.NotNil(t, linked)
	require.NotNil(t, linked.DraftShipment)
	assert.Equal(t, "AWB123", linked.DraftShipment.AWB)
	assert.Equal(t, enums.ShipmentStatusDraft, linked.DraftShipment.ShipmentStatus)
}

func TestFindOrdersByPaymentRefAndCount(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)
	sibling := &models.Order{
		UserID:            fx.order.UserID,
		SellerID:          uuid.New(),
		ShippingAddressID: fx.order.ShippingAddressID,
		ItemsAmount:       dec("315"),
		ShippingAmount:    dec("42.58"),
		TotalAmount:       dec("357.58"),
		Currency:          "INR",
		PaymentRefID:      fx.payment.GatewayOrderID,
		OrderRefID:        fx.payment.GatewayOrderID,
		Receipt:           "rcpt_test",
	}
	_, err := repo.CreateOrder(ctx, sibling)
	require.NoError(t, err)

	orders, err := repo.FindOrdersByPaymentRef(ctx, fx.payment.GatewayOrderID)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	count, err := repo.CountOrdersByPaymentRef(ctx, fx.payment.GatewayOrderID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	none, err := repo.CountOrdersByPaymentRef(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestUpdateOrderItemStatusIsGuarded(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)
	itemID := fx.order.Items[0].ID

	require.NoError(t, repo.UpdateOrderItemStatus(ctx, itemID, enums.OrderItemStatusPending, enums.OrderItemStatusShipped))
	err := repo.UpdateOrderItemStatus(ctx, itemID, enums.OrderItemStatusPending, enums.OrderItemStatusCancelled)
	require.ErrorIs(t, err, ErrStatusChanged)

	item, err := repo.FindOrderItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderItemStatusShipped, item.Status)
}

func TestPaymentStatusUpdates(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)

	require.NoError(t, repo.MarkPaymentStatus(ctx, fx.payment.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid))
	require.ErrorIs(t, repo.MarkPaymentStatus(ctx, fx.payment.ID, enums.PaymentStatusPending, enums.PaymentStatusOrphaned), ErrStatusChanged)

	require.NoError(t, repo.UpdateOrdersPaymentStatus(ctx, fx.payment.GatewayOrderID, enums.PaymentStatusPaid, enums.OrderStatusConfirmed))
	order, err := repo.FindOrder(ctx, fx.order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, order.OrderStatus)

	payment, err := repo.FindPaymentByGatewayOrderID(ctx, fx.payment.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, payment.Status)

	_, err = repo.FindPaymentByGatewayOrderID(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListPendingPaymentsBefore(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", old.payment.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)
	seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)
	paid := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPaid)
	require.NoError(t, db.Model(&models.Payment{}).Where("id = ?", paid.payment.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	stale, err := repo.ListPendingPaymentsBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.payment.ID, stale[0].ID)
}

func TestRefundOnePerItem(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPaid)
	itemID := fx.order.Items[0].ID

	_, err := repo.CreateRefund(ctx, &models.Refund{
		OrderID:     fx.order.ID,
		OrderItemID: itemID,
		Amount:      dec("424.80"),
		AmountMinor: 42480,
		Speed:       enums.RefundSpeedOptimum,
		Status:      enums.RefundStatusPending,
	})
	require.NoError(t, err)

	_, err = repo.CreateRefund(ctx, &models.Refund{
		OrderID:     fx.order.ID,
		OrderItemID: itemID,
		Amount:      dec("1"),
		AmountMinor: 100,
		Status:      enums.RefundStatusPending,
	})
	require.Error(t, err)

	refund, err := repo.FindRefundByOrderItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefundSpeedOptimum, refund.Speed)
}

func TestUpdateDraftShipmentStatus(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)
	require.NoError(t, repo.UpdateDraftShipmentStatus(ctx, fx.shipment.ID, enums.ShipmentStatusCancelled))

	var shipment models.DraftShipment
	require.NoError(t, db.Where("id = ?", fx.shipment.ID).First(&shipment).Error)
	assert.Equal(t, enums.ShipmentStatusCancelled, shipment.ShipmentStatus)
}

func TestCreatePaymentRejectsDuplicateGatewayOrder(t *testing.T) {
	db := dbtest.New(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fx := seedCheckout(t, db, uuid.New(), uuid.New(), enums.PaymentStatusPending)

	_, err := repo.CreatePayment(ctx, &models.Payment{
		UserID:         fx.payment.UserID,
		GatewayOrderID: fx.payment.GatewayOrderID,
		Receipt:        "rcpt_retry",
		Amount:         dec("482.22"),
		AmountMinor:    48222,
		Currency:       "INR",
		Status:         enums.PaymentStatusPending,
	})
	require.ErrorIs(t, err, ErrDuplicatePayment)
}
