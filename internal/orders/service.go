package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaarhub/bazaar-backend/pkg/auth"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/money"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhub/bazaar-backend/pkg/square"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	RefundPayment(ctx context.Context, params square.RefundParams) (*sq.PaymentRefund, error)
}

type shipmentCanceller interface {
	CancelShipments(ctx context.Context, awbs []string) error
}

// Service defines the post-checkout order operations.
type Service interface {
	ListByPaymentRef(ctx context.Context, user auth.AuthenticatedUser, paymentRefID string) ([]models.Order, error)
	UpdateItemStatus(ctx context.Context, input UpdateItemStatusInput) (*models.OrderItem, error)
	CancelItem(ctx context.Context, input CancelItemInput) (*CancelItemResult, error)
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Payment, error)
	SettlePayment(ctx context.Context, payment *models.Payment, gatewayPaymentID string, actor *outbox.Actor) error
}

// ServiceParams carries the order service dependencies.
type ServiceParams struct {
	Repo            Repository
	Tx              txRunner
	Outbox          outboxPublisher
	Gateway         paymentGateway
	Shipping        shipmentCanceller
	Logger          *logger.Logger
	Currency        string
	MinRefundAmount decimal.Decimal
	Now             func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	gateway   paymentGateway
	shipping  shipmentCanceller
	logg      *logger.Logger
	currency  string
	minRefund decimal.Decimal
	now       func() time.Time
}

// NewService builds the order service with the required dependencies.
// Shipping is optional; without it booked shipments are left for manual cancellation.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		gateway:   params.Gateway,
		shipping:  params.Shipping,
		logg:      params.Logger,
		currency:  params.Currency,
		minRefund: params.MinRefundAmount,
		now:       now,
	}, nil
}

func (s *service) ListByPaymentRef(ctx context.Context, user auth.AuthenticatedUser, paymentRefID string) ([]models.Order, error) {
	paymentRefID = strings.TrimSpace(paymentRefID)
	if paymentRefID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment order id required")
	}
	if user.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	orders, err := s.repo.FindOrdersByPaymentRef(ctx, paymentRefID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	if len(orders) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no orders for payment order")
	}

	switch {
	case user.IsAdmin():
		return orders, nil
	case user.Role == enums.UserRoleSeller:
		visible := make([]models.Order, 0, len(orders))
		for _, order := range orders {
			if user.OwnsSeller(order.SellerID) {
				visible = append(visible, order)
			}
		}
		if len(visible) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "orders do not belong to seller")
		}
		return visible, nil
	default:
		if orders[0].UserID != user.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "orders do not belong to user")
		}
		return orders, nil
	}
}

func (s *service) UpdateItemStatus(ctx context.Context, input UpdateItemStatusInput) (*models.OrderItem, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order item status")
	}
	if input.Status == enums.OrderItemStatusCancelled {
		result, err := s.CancelItem(ctx, CancelItemInput{
			OrderID: input.OrderID,
			ItemID:  input.ItemID,
			Speed:   enums.RefundSpeedNormal,
			User:    input.User,
		})
		if err != nil {
			return nil, err
		}
		return result.Item, nil
	}

	order, item, err := s.loadItem(ctx, input.OrderID, input.ItemID, input.User)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(input.User, order, item, input.Status); err != nil {
		return nil, err
	}
	if item.Status == input.Status {
		return item, nil
	}
	if !CanTransition(item.Status, input.Status) {
		return nil, transitionConflict(item.Status, input.Status)
	}

	from := item.Status
	changedAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateOrderItemStatus(ctx, item.ID, from, input.Status); err != nil {
			return mapStatusUpdateError(err)
		}
		return s.outbox.Emit(ctx, tx, statusChangedEvent(order, item, from, input.Status, changedAt, input.User))
	})
	if err != nil {
		return nil, err
	}

	item.Status = input.Status
	return item, nil
}

func (s *service) CancelItem(ctx context.Context, input CancelItemInput) (*CancelItemResult, error) {
	speed := input.Speed
	if speed == "" {
		speed = enums.RefundSpeedNormal
	}
	if !speed.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid refund speed")
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	order, item, err := s.loadItem(ctx, input.OrderID, input.ItemID, input.User)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(input.User, order, item, enums.OrderItemStatusCancelled); err != nil {
		return nil, err
	}
	if item.Status == enums.OrderItemStatusCancelled {
		// a retried cancel returns the refund already recorded for the item
		existing, err := s.repo.FindRefundByOrderItem(ctx, item.ID)
		switch {
		case err == nil:
			return &CancelItemResult{Item: item, Refund: existing}, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund")
		}
	}
	if !CanTransition(item.Status, enums.OrderItemStatusCancelled) {
		return nil, transitionConflict(item.Status, enums.OrderItemStatusCancelled)
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":      order.ID.String(),
		"order_item_id": item.ID.String(),
	})

	payment, err := s.repo.FindPaymentByGatewayOrderID(ctx, order.PaymentRefID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	var refund *models.Refund
	if payment != nil && payment.Status == enums.PaymentStatusPaid {
		refund, err = s.issueRefund(ctx, order, item, payment, input.Amount, speed, input.Reason)
		if err != nil {
			return nil, err
		}
	}

	from := item.Status
	changedAt := s.now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateOrderItemStatus(ctx, item.ID, from, enums.OrderItemStatusCancelled); err != nil {
			return mapStatusUpdateError(err)
		}
		if err := s.outbox.Emit(ctx, tx, statusChangedEvent(order, item, from, enums.OrderItemStatusCancelled, changedAt, input.User)); err != nil {
			return err
		}
		if refund == nil {
			return nil
		}
		if _, err := repo.CreateRefund(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundIssued,
			AggregateType: enums.AggregateOrderItem,
			AggregateID:   item.ID,
			Actor:         actorFor(input.User),
			Data: payloads.RefundIssuedEvent{
				RefundID:         refund.ID,
				OrderID:          order.ID,
				OrderItemID:      item.ID,
				GatewayPaymentID: stringValue(refund.GatewayPaymentID),
				GatewayRefundID:  stringValue(refund.GatewayRefundID),
				Amount:           refund.Amount,
				Status:           refund.Status,
			},
		})
	})
	if err != nil {
		if refund != nil && refund.GatewayRefundID != nil {
			s.logg.Error(s.logg.WithField(ctx, "gateway_refund_id", *refund.GatewayRefundID), "refund issued but cancellation not recorded", err)
		}
		return nil, err
	}

	item.Status = enums.OrderItemStatusCancelled
	result := &CancelItemResult{Item: item, Refund: refund}
	result.ShipmentCancelled = s.cancelShipment(ctx, item)
	return result, nil
}

// issueRefund builds the refund row for a paid item, calling the gateway only
// when the amount clears the minimum.
func (s *service) issueRefund(
	ctx context.Context,
	order *models.Order,
	item *models.OrderItem,
	payment *models.Payment,
	requested *decimal.Decimal,
	speed enums.RefundSpeed,
	reason string,
) (*models.Refund, error) {
	paid := item.PaidAmount()
	amount := paid
	if requested != nil {
		amount = money.Min(*requested, paid)
	}
	amount = money.Round2(amount)

	refund := &models.Refund{
		ID:          uuid.New(),
		OrderID:     order.ID,
		OrderItemID: item.ID,
		Speed:       speed,
	}
	if trimmed := strings.TrimSpace(reason); trimmed != "" {
		refund.Reason = &trimmed
	}

	if amount.LessThan(s.minRefund) {
		note := fmt.Sprintf("refund amount %s below minimum %s", money.Format(amount), money.Format(s.minRefund))
		refund.Amount = decimal.Zero
		refund.AmountMinor = 0
		refund.Status = enums.RefundStatusManual
		refund.Reason = &note
		s.logg.Warn(ctx, note)
		return refund, nil
	}

	refund.Amount = amount
	refund.AmountMinor = money.ToMinorUnits(amount)
	gatewayPaymentID := stringValue(payment.GatewayPaymentID)
	if gatewayPaymentID == "" {
		note := "gateway payment id missing; refund requires manual processing"
		refund.Status = enums.RefundStatusManual
		refund.Reason = &note
		s.logg.Warn(ctx, note)
		return refund, nil
	}

	gatewayRefund, err := s.gateway.RefundPayment(ctx, square.RefundParams{
		PaymentID:      gatewayPaymentID,
		AmountMinor:    refund.AmountMinor,
		Currency:       payment.Currency,
		Reason:         reason,
		IdempotencyKey: "refund-" + item.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	refundID := gatewayRefund.GetID()
	refund.GatewayPaymentID = &gatewayPaymentID
	refund.GatewayRefundID = &refundID
	refund.Status = refundStatusFromGateway(stringValue(gatewayRefund.GetStatus()))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"gateway_refund_id": refundID,
		"amount":            money.Format(amount),
		"speed":             string(speed),
	}), "refund issued")
	return refund, nil
}

func (s *service) cancelShipment(ctx context.Context, item *models.OrderItem) bool {
	if s.shipping == nil || item.DraftShipment == nil {
		return false
	}
	awb := strings.TrimSpace(item.DraftShipment.AWB)
	if awb == "" {
		return false
	}
	if err := s.shipping.CancelShipments(ctx, []string{awb}); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "awb", awb), "cancel shipment", err)
		return false
	}
	if err := s.repo.UpdateDraftShipmentStatus(ctx, item.DraftShipment.ID, enums.ShipmentStatusCancelled); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "awb", awb), "mark shipment cancelled", err)
	}
	item.DraftShipment.ShipmentStatus = enums.ShipmentStatusCancelled
	return true
}

func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Payment, error) {
	gatewayOrderID := strings.TrimSpace(input.GatewayOrderID)
	gatewayPaymentID := strings.TrimSpace(input.GatewayPaymentID)
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment order id and payment id required")
	}

	payment, err := s.repo.FindPaymentByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if !input.User.IsAdmin() && payment.UserID != input.User.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to user")
	}

	switch payment.Status {
	case enums.PaymentStatusPaid:
		if stringValue(payment.GatewayPaymentID) == gatewayPaymentID {
			return payment, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment order already settled by another payment")
	case enums.PaymentStatusPending:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment is %s", payment.Status))
	}

	gatewayPayment, err := s.gateway.GetPayment(ctx, gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if !square.PaymentMatchesOrder(gatewayPayment, gatewayOrderID, payment.AmountMinor) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not settle this order").WithDetails(map[string]any{
			"gateway_order_id":   gatewayOrderID,
			"gateway_payment_id": gatewayPaymentID,
			"expected_amount":    money.Format(money.FromMinorUnits(payment.AmountMinor)),
		})
	}

	if err := s.SettlePayment(ctx, payment, gatewayPaymentID, actorFor(input.User)); err != nil {
		return nil, err
	}
	return payment, nil
}

// SettlePayment marks a pending payment and every sibling order as paid and
// emits payment_confirmed. The payment is updated in place.
func (s *service) SettlePayment(ctx context.Context, payment *models.Payment, gatewayPaymentID string, actor *outbox.Actor) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment required")
	}
	paidAt := s.now().UTC()

	var orderIDs []uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkPaymentStatus(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusPaid); err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment is no longer pending")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}
		updates := map[string]any{"paid_at": paidAt}
		if gatewayPaymentID != "" {
			updates["gateway_payment_id"] = gatewayPaymentID
		}
		if err := repo.UpdatePayment(ctx, payment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		if err := repo.UpdateOrdersPaymentStatus(ctx, payment.GatewayOrderID, enums.PaymentStatusPaid, enums.OrderStatusConfirmed); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark orders paid")
		}
		orders, err := repo.FindOrdersByPaymentRef(ctx, payment.GatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload orders")
		}
		orderIDs = make([]uuid.UUID, 0, len(orders))
		for _, order := range orders {
			orderIDs = append(orderIDs, order.ID)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor,
			Data: payloads.PaymentConfirmedEvent{
				PaymentID:        payment.ID,
				GatewayOrderID:   payment.GatewayOrderID,
				GatewayPaymentID: gatewayPaymentID,
				Amount:           payment.Amount,
				OrderIDs:         orderIDs,
			},
		})
	})
	if err != nil {
		return err
	}

	payment.Status = enums.PaymentStatusPaid
	payment.PaidAt = &paidAt
	if gatewayPaymentID != "" {
		payment.GatewayPaymentID = &gatewayPaymentID
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_id":       payment.ID.String(),
		"gateway_order_id": payment.GatewayOrderID,
		"order_count":      len(orderIDs),
	}), "payment confirmed")
	return nil
}

func (s *service) loadItem(ctx context.Context, orderID, itemID uuid.UUID, user auth.AuthenticatedUser) (*models.Order, *models.OrderItem, error) {
	if orderID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if itemID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order item id required")
	}
	if user.UserID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	item, err := s.repo.FindOrderItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
	}
	if item.OrderID != order.ID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
	}
	return order, item, nil
}

func statusChangedEvent(order *models.Order, item *models.OrderItem, from, to enums.OrderItemStatus, changedAt time.Time, user auth.AuthenticatedUser) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventOrderItemStatusChanged,
		AggregateType: enums.AggregateOrderItem,
		AggregateID:   item.ID,
		Actor:         actorFor(user),
		OccurredAt:    changedAt,
		Data: payloads.OrderItemStatusChangedEvent{
			OrderID:     order.ID,
			OrderItemID: item.ID,
			SellerID:    item.SellerID,
			From:        from,
			To:          to,
			ChangedAt:   changedAt,
		},
	}
}

func transitionConflict(from, to enums.OrderItemStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order item cannot move to requested status").WithDetails(map[string]any{
		"from": string(from),
		"to":   string(to),
	})
}

func mapStatusUpdateError(err error) error {
	if errors.Is(err, ErrStatusChanged) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order item status changed concurrently")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order item status")
}

func refundStatusFromGateway(status string) enums.RefundStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return enums.RefundStatusProcessed
	case "FAILED", "REJECTED":
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}

func actorFor(user auth.AuthenticatedUser) *outbox.Actor {
	if user.UserID == uuid.Nil {
		return nil
	}
	return &outbox.Actor{
		UserID:   user.UserID,
		SellerID: user.SellerID,
		Role:     user.Role,
	}
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
