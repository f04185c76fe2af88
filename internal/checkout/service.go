package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazaarhub/bazaar-backend/internal/checkout/helpers"
	"github.com/bazaarhub/bazaar-backend/internal/orders"
	"github.com/bazaarhub/bazaar-backend/internal/pricing"
	"github.com/bazaarhub/bazaar-backend/pkg/auth"
	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
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

type catalogReader interface {
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductVariant, error)
	FindDiscountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProductDiscount, error)
}

type sellerDirectory interface {
	FindProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.SellerProfile, error)
}

type paymentGateway interface {
	CreateOrder(ctx context.Context, params square.OrderCreateParams) (*sq.Order, error)
}

// Service executes the multi-seller checkout.
type Service interface {
	CreateMultiSellerOrder(ctx context.Context, user auth.AuthenticatedUser, req CreateOrderRequest) (*CreateOrderResult, error)
}

// ServiceParams carries the checkout dependencies.
type ServiceParams struct {
	Catalog    catalogReader
	Sellers    sellerDirectory
	Orders     orders.Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Gateway    paymentGateway
	Calculator *pricing.Calculator
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
	Config     config.CheckoutConfig
	Now        func() time.Time
}

type service struct {
	catalog    catalogReader
	sellers    sellerDirectory
	orders     orders.Repository
	tx         txRunner
	outbox     outboxPublisher
	gateway    paymentGateway
	calculator *pricing.Calculator
	metrics    *metrics.CheckoutMetrics
	logg       *logger.Logger
	cfg        config.CheckoutConfig
	now        func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Sellers == nil {
		return nil, fmt.Errorf("seller directory required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
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
	calc := params.Calculator
	if calc == nil {
		loc, err := params.Config.Location()
		if err != nil {
			return nil, err
		}
		calc = pricing.NewCalculator(pricing.Options{
			FreeDeliveryThreshold: params.Config.FreeDeliveryThreshold,
			Location:              loc,
			Now:                   params.Now,
		})
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "INR"
	}
	return &service{
		catalog:    params.Catalog,
		sellers:    params.Sellers,
		orders:     params.Orders,
		tx:         params.Tx,
		outbox:     params.Outbox,
		gateway:    params.Gateway,
		calculator: calc,
		metrics:    params.Metrics,
		logg:       params.Logger,
		cfg:        cfg,
		now:        now,
	}, nil
}

// quote is the fully priced cart before anything is written.
type quote struct {
	items        []pricing.Item
	groups       []helpers.SellerGroup
	profiles     map[uuid.UUID]*models.SellerProfile
	grandTotal   decimal.Decimal
	freeDelivery bool
}

// CreateMultiSellerOrder prices the cart, opens one gateway order for the
// combined total and persists one order per seller against it.
func (s *service) CreateMultiSellerOrder(ctx context.Context, user auth.AuthenticatedUser, req CreateOrderRequest) (*CreateOrderResult, error) {
	if user.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	ctx = s.logg.WithActor(ctx, logger.Actor{UserID: user.UserID.String(), Role: string(user.Role)})

	q, err := s.price(ctx, req)
	if err != nil {
		s.metrics.IncFailure(metrics.StagePricing)
		return nil, err
	}

	receipt := helpers.NewReceipt(s.now())
	gatewayOrderID, err := s.createGatewayOrder(ctx, req, q, receipt)
	if err != nil {
		s.metrics.IncFailure(metrics.StagePaymentOrder)
		return nil, err
	}
	ctx = s.logg.WithField(ctx, "gateway_order_id", gatewayOrderID)

	payment := &models.Payment{
		ID:             uuid.New(),
		UserID:         user.UserID,
		GatewayOrderID: gatewayOrderID,
		Receipt:        receipt,
		Amount:         q.grandTotal,
		AmountMinor:    money.ToMinorUnits(q.grandTotal),
		Currency:       s.cfg.Currency,
		Status:         enums.PaymentStatusPending,
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.orders.WithTx(tx).CreatePayment(ctx, payment)
		return err
	}); err != nil {
		s.metrics.IncFailure(metrics.StagePayment)
		s.logg.Error(ctx, "record combined payment", err)
		if errors.Is(err, orders.ErrDuplicatePayment) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "combined payment already recorded").WithDetails(map[string]any{
				"combined_payment_order_id": gatewayOrderID,
			})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeSellerOrderPersistence, err, "failed to record combined payment").WithDetails(map[string]any{
			"combined_payment_order_id": gatewayOrderID,
			"succeeded_sellers":         []uuid.UUID{},
			"rolled_back":               true,
		})
	}

	meta := orderMeta{
		user:              user,
		shippingAddressID: req.ShippingAddressID,
		gatewayOrderID:    gatewayOrderID,
		receipt:           receipt,
	}
	created, err := s.persistSellerOrders(ctx, req, q, meta)
	if err != nil {
		s.metrics.IncFailure(metrics.StageSellerOrders)
		return nil, err
	}

	reconciled := s.reconcile(ctx, gatewayOrderID, q.grandTotal)
	s.metrics.ObserveCompleted(s.cfg.Currency, len(q.groups))

	result := buildResult(q, created, payment)
	result.Reconciled = reconciled
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_count": len(created),
		"grand_total": money.Format(q.grandTotal),
	}), "multi-seller checkout completed")
	return result, nil
}

// price resolves every line against the catalog and computes the seller split.
// Nothing is written and no external call is made here.
func (s *service) price(ctx context.Context, req CreateOrderRequest) (*quote, error) {
	variantIDs := make([]uuid.UUID, 0, len(req.Lines))
	discountIDs := make([]uuid.UUID, 0)
	sellerIDs := make([]uuid.UUID, 0)
	for _, line := range req.Lines {
		variantIDs = append(variantIDs, line.ProductVariantID)
		sellerIDs = append(sellerIDs, line.SellerID)
		if line.DiscountID != nil {
			discountIDs = append(discountIDs, *line.DiscountID)
		}
	}

	variants, err := s.catalog.FindVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	discounts, err := s.catalog.FindDiscountsByIDs(ctx, discountIDs)
	if err != nil {
		return nil, err
	}
	profiles, err := s.sellers.FindProfilesByIDs(ctx, sellerIDs)
	if err != nil {
		return nil, err
	}

	items := make([]pricing.Item, 0, len(req.Lines))
	for i, line := range req.Lines {
		variant := variants[line.ProductVariantID]
		if err := helpers.ValidateVariant(i, line.ProductVariantID, line.SellerID, variant); err != nil {
			return nil, err
		}

		var discount *pricing.Discount
		if line.DiscountID != nil {
			record := discounts[*line.DiscountID]
			if err := helpers.ValidateDiscountAttachment(i, *line.DiscountID, variant, record); err != nil {
				return nil, err
			}
			discount = &pricing.Discount{
				ID:        record.ID,
				Type:      record.DiscountType,
				Value:     record.DiscountValue,
				StartDate: record.StartDate,
				EndDate:   record.EndDate,
			}
		}

		item, err := s.calculator.ComputeLine(pricing.Line{
			Index:            i,
			ProductVariantID: line.ProductVariantID,
			SellerID:         line.SellerID,
			Quantity:         line.Quantity,
			UnitPrice:        variant.Price.Decimal,
			GSTPercentage:    helpers.ResolveGST(variant, line.GSTPercentage),
			CourierServiceID: strings.TrimSpace(line.CourierServiceID),
			ShippingCharge:   line.ShippingCharge,
			DiscountID:       line.DiscountID,
		}, discount)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	freeDelivery := s.calculator.ApplyFreeDelivery(items)
	totalShipping := pricing.ShippingTotal(items)
	if !freeDelivery && req.TotalShippingCharges != nil {
		totalShipping = *req.TotalShippingCharges
	}

	mode := helpers.AllocationIndependent
	if s.cfg.ExactShippingAllocation {
		mode = helpers.AllocationExact
	}
	groups := helpers.GroupAndAllocate(items, totalShipping, mode)

	return &quote{
		items:        items,
		groups:       groups,
		profiles:     profiles,
		grandTotal:   helpers.GrandTotal(groups),
		freeDelivery: freeDelivery,
	}, nil
}

func (s *service) createGatewayOrder(ctx context.Context, req CreateOrderRequest, q *quote, receipt string) (string, error) {
	details := map[string]any{
		"receipt":     receipt,
		"grand_total": money.Format(q.grandTotal),
	}
	if !q.grandTotal.IsPositive() {
		return "", pkgerrors.New(pkgerrors.CodePaymentOrderCreation, "order total must be positive").WithDetails(details)
	}

	lines := make([]square.OrderLine, 0, len(q.groups))
	for _, group := range q.groups {
		lines = append(lines, square.OrderLine{
			Name:        sellerName(q.profiles, group.SellerID),
			AmountMinor: money.ToMinorUnits(group.Total),
		})
	}
	params := square.OrderCreateParams{
		ReferenceID: receipt,
		Currency:    s.cfg.Currency,
		Lines:       lines,
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.IdempotencyKey = "checkout-" + key
	}

	order, err := s.gateway.CreateOrder(ctx, params)
	if err != nil {
		s.logg.Error(ctx, "create combined payment order", err)
		return "", pkgerrors.Wrap(pkgerrors.CodePaymentOrderCreation, err, "failed to create payment order").WithDetails(details)
	}
	id := square.OrderID(order)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodePaymentOrderCreation, "payment order has no id").WithDetails(details)
	}
	return id, nil
}

type orderMeta struct {
	user              auth.AuthenticatedUser
	shippingAddressID uuid.UUID
	gatewayOrderID    string
	receipt           string
}

// persistSellerOrders writes seller orders in seller order. With atomic writes
// every seller shares one transaction; otherwise each seller commits on its own
// and the first failure stops the loop.
func (s *service) persistSellerOrders(ctx context.Context, req CreateOrderRequest, q *quote, meta orderMeta) ([]*models.Order, error) {
	created := make([]*models.Order, 0, len(q.groups))

	if s.cfg.AtomicSellerWrites {
		var failed *helpers.SellerGroup
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			for i := range q.groups {
				order, err := s.writeSellerOrder(ctx, tx, req, q, q.groups[i], meta)
				if err != nil {
					failed = &q.groups[i]
					return err
				}
				created = append(created, order)
			}
			return nil
		})
		if err != nil {
			return nil, s.persistenceError(ctx, err, meta, failed, nil, true)
		}
		return created, nil
	}

	for i := range q.groups {
		group := q.groups[i]
		var order *models.Order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			order, err = s.writeSellerOrder(ctx, tx, req, q, group, meta)
			return err
		})
		if err != nil {
			return nil, s.persistenceError(ctx, err, meta, &group, created, false)
		}
		created = append(created, order)
	}
	return created, nil
}

func (s *service) writeSellerOrder(ctx context.Context, tx *gorm.DB, req CreateOrderRequest, q *quote, group helpers.SellerGroup, meta orderMeta) (*models.Order, error) {
	repo := s.orders.WithTx(tx)
	pickup := ""
	if profile := q.profiles[group.SellerID]; profile != nil {
		pickup = profile.PickupLocationID
	}

	items := make([]models.OrderItem, 0, len(group.Items))
	for _, priced := range group.Items {
		line := req.Lines[priced.Line.Index]
		item := models.OrderItem{
			ID:                       uuid.New(),
			ProductVariantID:         priced.Line.ProductVariantID,
			SellerID:                 group.SellerID,
			Quantity:                 priced.Line.Quantity,
			PriceAtPurchase:          money.Round2(priced.DiscountedUnitPrice),
			GSTAmountAtPurchase:      money.Round2(priced.GSTTotal),
			DiscountAmountAtPurchase: money.Round2(priced.DiscountTotal),
			LineTotal:                money.Round2(priced.FinalTotal),
			ShippingCharge:           money.Round2(priced.ShippingCharge),
			Status:                   enums.OrderItemStatusPending,
		}
		if courier := priced.Line.CourierServiceID; courier != "" {
			item.CourierServiceID = &courier
		}

		if line.DraftShipment != nil {
			charge := priced.ShippingCharge
			if line.DraftShipment.ShippingCharge != nil && !q.freeDelivery {
				charge = *line.DraftShipment.ShippingCharge
			}
			shipment, err := repo.CreateDraftShipment(ctx, &models.DraftShipment{
				ID:               uuid.New(),
				PickupLocationID: line.pickupLocation(pickup),
				CourierServiceID: line.shipmentCourier(),
				ShippingCharge:   money.Round2(charge),
				ShipmentStatus:   enums.ShipmentStatusDraft,
				AWB:              "",
			})
			if err != nil {
				return nil, err
			}
			item.DraftShipmentID = &shipment.ID
		}
		items = append(items, item)
	}

	order := &models.Order{
		ID:                uuid.New(),
		UserID:            meta.user.UserID,
		SellerID:          group.SellerID,
		ShippingAddressID: meta.shippingAddressID,
		ItemsAmount:       money.Round2(group.ItemValue),
		ShippingAmount:    money.Round2(group.ShippingShare),
		TotalAmount:       group.Total,
		Currency:          s.cfg.Currency,
		OrderStatus:       enums.OrderStatusPending,
		PaymentStatus:     enums.PaymentStatusPending,
		PaymentRefID:      meta.gatewayOrderID,
		OrderRefID:        meta.gatewayOrderID,
		Receipt:           meta.receipt,
		Items:             items,
	}
	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorFor(meta.user),
		Data: payloads.OrderCreatedEvent{
			OrderID:      order.ID,
			SellerID:     order.SellerID,
			UserID:       order.UserID,
			PaymentRefID: order.PaymentRefID,
			TotalAmount:  order.TotalAmount,
			ItemCount:    len(order.Items),
		},
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) persistenceError(ctx context.Context, err error, meta orderMeta, failed *helpers.SellerGroup, created []*models.Order, rolledBack bool) error {
	succeeded := make([]uuid.UUID, 0, len(created))
	orderIDs := make([]uuid.UUID, 0, len(created))
	for _, order := range created {
		succeeded = append(succeeded, order.SellerID)
		orderIDs = append(orderIDs, order.ID)
	}
	details := map[string]any{
		"combined_payment_order_id": meta.gatewayOrderID,
		"succeeded_sellers":         succeeded,
		"created_order_ids":         orderIDs,
		"rolled_back":               rolledBack,
	}
	if failed != nil {
		details["failed_seller_id"] = failed.SellerID.String()
		details["attempted_amount"] = money.Format(failed.Total)
	}
	s.logg.Error(s.logg.WithFields(ctx, details), "seller order persistence failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeSellerOrderPersistence, err, "failed to persist seller orders").WithDetails(details)
}

// reconcile reloads the sibling orders and compares their sum with the amount
// charged. A mismatch is reported, never fatal.
func (s *service) reconcile(ctx context.Context, gatewayOrderID string, grandTotal decimal.Decimal) bool {
	persisted, err := s.orders.FindOrdersByPaymentRef(ctx, gatewayOrderID)
	if err != nil {
		s.logg.Error(ctx, "reload orders for reconciliation", err)
		return false
	}
	totals := make([]decimal.Decimal, 0, len(persisted))
	for _, order := range persisted {
		totals = append(totals, order.TotalAmount)
	}
	sum := money.Sum(totals...)
	if sum.Equal(money.Round2(grandTotal)) {
		return true
	}
	s.metrics.IncReconciliationMismatch()
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"persisted_total": money.Format(sum),
		"grand_total":     money.Format(grandTotal),
		"order_count":     len(persisted),
	}), "checkout reconciliation mismatch")
	return false
}

func buildResult(q *quote, created []*models.Order, payment *models.Payment) *CreateOrderResult {
	result := &CreateOrderResult{
		Orders:                 make([]SellerOrderSummary, 0, len(created)),
		CombinedPaymentOrderID: payment.GatewayOrderID,
		CombinedPayment: CombinedPayment{
			PaymentID:      payment.ID,
			GatewayOrderID: payment.GatewayOrderID,
			Receipt:        payment.Receipt,
			Amount:         money.Round2(payment.Amount),
			AmountMinor:    payment.AmountMinor,
			Currency:       payment.Currency,
		},
		AllOrderIDs:         make([]uuid.UUID, 0, len(created)),
		FreeDeliveryApplied: q.freeDelivery,
	}
	for _, order := range created {
		result.Orders = append(result.Orders, SellerOrderSummary{
			OrderID:       order.ID,
			SellerID:      order.SellerID,
			SellerName:    sellerName(q.profiles, order.SellerID),
			ItemCount:     len(order.Items),
			ItemsAmount:   order.ItemsAmount,
			ShippingShare: order.ShippingAmount,
			TotalAmount:   order.TotalAmount,
			PaymentRefID:  order.PaymentRefID,
		})
		result.AllOrderIDs = append(result.AllOrderIDs, order.ID)
	}
	result.Summary = Summary{
		TotalOrders:      len(created),
		TotalSellers:     len(q.groups),
		GrandTotalAmount: money.Round2(q.grandTotal),
		TotalItems:       len(q.items),
	}
	return result
}

func sellerName(profiles map[uuid.UUID]*models.SellerProfile, sellerID uuid.UUID) string {
	if profile := profiles[sellerID]; profile != nil && strings.TrimSpace(profile.DisplayName) != "" {
		return profile.DisplayName
	}
	return "Seller " + sellerID.String()[:8]
}

func actorFor(user auth.AuthenticatedUser) *outbox.Actor {
	return &outbox.Actor{
		UserID:   user.UserID,
		SellerID: user.SellerID,
		Role:     user.Role,
	}
}
