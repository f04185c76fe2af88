package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/api/middleware"
	"github.com/bazaarhub/bazaar-backend/api/responses"
	"github.com/bazaarhub/bazaar-backend/api/validators"
	internalorders "github.com/bazaarhub/bazaar-backend/internal/orders"
	"github.com/bazaarhub/bazaar-backend/pkg/auth"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
)

// ListByPaymentRef returns the sibling seller orders created by one checkout.
func ListByPaymentRef(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireCaller(w, r, svc, logg)
		if !ok {
			return
		}

		paymentRefID := strings.TrimSpace(chi.URLParam(r, "paymentRefId"))
		if paymentRefID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required"))
			return
		}

		orders, err := svc.ListByPaymentRef(r.Context(), user, paymentRefID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}

type updateItemStatusRequest struct {
	Status enums.OrderItemStatus `json:"status" validate:"required"`
}

// UpdateItemStatus moves one order item through its fulfillment states.
func UpdateItemStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireCaller(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, itemID, err := parseItemPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown item status").
				WithDetails(map[string]any{"status": string(payload.Status)}))
			return
		}

		item, err := svc.UpdateItemStatus(r.Context(), internalorders.UpdateItemStatusInput{
			OrderID: orderID,
			ItemID:  itemID,
			Status:  payload.Status,
			User:    user,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newItemResponse(item))
	}
}

type cancelItemRequest struct {
	Amount *decimal.Decimal  `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Speed  enums.RefundSpeed `json:"speed,omitempty"`
	Reason string            `json:"reason,omitempty" validate:"max=500"`
}

// CancelItem cancels one order item, refunding it when the order was paid.
func CancelItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireCaller(w, r, svc, logg)
		if !ok {
			return
		}
		orderID, itemID, err := parseItemPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelItemRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		speed := payload.Speed
		if speed == "" {
			speed = enums.RefundSpeedNormal
		}
		if !speed.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown refund speed").
				WithDetails(map[string]any{"speed": string(speed)}))
			return
		}

		result, err := svc.CancelItem(r.Context(), internalorders.CancelItemInput{
			OrderID: orderID,
			ItemID:  itemID,
			Amount:  payload.Amount,
			Speed:   speed,
			Reason:  strings.TrimSpace(payload.Reason),
			User:    user,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := cancelItemResponse{
			Item:              newItemResponse(result.Item),
			ShipmentCancelled: result.ShipmentCancelled,
		}
		if result.Refund != nil {
			out.Refund = &refundResponse{
				ID:              result.Refund.ID,
				Amount:          result.Refund.Amount,
				Status:          string(result.Refund.Status),
				Speed:           string(result.Refund.Speed),
				GatewayRefundID: result.Refund.GatewayRefundID,
			}
		}
		responses.WriteSuccess(w, out)
	}
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" validate:"required,max=128"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,max=128"`
}

// VerifyPayment confirms a gateway payment against the combined order and
// marks every sibling order paid.
func VerifyPayment(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireCaller(w, r, svc, logg)
		if !ok {
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.ConfirmPayment(r.Context(), internalorders.ConfirmPaymentInput{
			GatewayOrderID:   payload.GatewayOrderID,
			GatewayPaymentID: payload.GatewayPaymentID,
			User:             user,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, paymentResponse{
			PaymentID:        payment.ID,
			GatewayOrderID:   payment.GatewayOrderID,
			GatewayPaymentID: payment.GatewayPaymentID,
			Amount:           payment.Amount,
			Currency:         payment.Currency,
			Status:           string(payment.Status),
			PaidAt:           payment.PaidAt,
		})
	}
}

func requireCaller(w http.ResponseWriter, r *http.Request, svc internalorders.Service, logg *logger.Logger) (auth.AuthenticatedUser, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
		return auth.AuthenticatedUser{}, false
	}
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return auth.AuthenticatedUser{}, false
	}
	return user, true
}

func parseItemPath(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	itemID, err := validators.ParseUUIDParam(r, "itemId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orderID, itemID, nil
}

type orderResponse struct {
	ID             uuid.UUID       `json:"id"`
	SellerID       uuid.UUID       `json:"seller_id"`
	ItemsAmount    decimal.Decimal `json:"items_amount"`
	ShippingAmount decimal.Decimal `json:"shipping_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency"`
	OrderStatus    string          `json:"order_status"`
	PaymentStatus  string          `json:"payment_status"`
	PaymentRefID   string          `json:"payment_ref_id"`
	Receipt        string          `json:"receipt"`
	Items          []itemResponse  `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
}

type itemResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductVariantID uuid.UUID       `json:"product_variant_id"`
	Quantity         int             `json:"quantity"`
	PriceAtPurchase  decimal.Decimal `json:"price_at_purchase"`
	GSTAmount        decimal.Decimal `json:"gst_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	LineTotal        decimal.Decimal `json:"line_total"`
	ShippingCharge   decimal.Decimal `json:"shipping_charge"`
	CourierServiceID *string         `json:"courier_service_id,omitempty"`
	Status           string          `json:"status"`
	DraftShipmentID  *uuid.UUID      `json:"draft_shipment_id,omitempty"`
}

type refundResponse struct {
	ID              uuid.UUID       `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	Speed           string          `json:"speed"`
	GatewayRefundID *string         `json:"gateway_refund_id,omitempty"`
}

type cancelItemResponse struct {
	Item              itemResponse    `json:"item"`
	Refund            *refundResponse `json:"refund,omitempty"`
	ShipmentCancelled bool            `json:"shipment_cancelled"`
}

type paymentResponse struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	GatewayOrderID   string          `json:"gateway_order_id"`
	GatewayPaymentID *string         `json:"gateway_payment_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	out := orderResponse{
		ID:             order.ID,
		SellerID:       order.SellerID,
		ItemsAmount:    order.ItemsAmount,
		ShippingAmount: order.ShippingAmount,
		TotalAmount:    order.TotalAmount,
		Currency:       order.Currency,
		OrderStatus:    string(order.OrderStatus),
		PaymentStatus:  string(order.PaymentStatus),
		PaymentRefID:   order.PaymentRefID,
		Receipt:        order.Receipt,
		Items:          make([]itemResponse, 0, len(order.Items)),
		CreatedAt:      order.CreatedAt,
	}
	for i := range order.Items {
		out.Items = append(out.Items, newItemResponse(&order.Items[i]))
	}
	return out
}

func newItemResponse(item *models.OrderItem) itemResponse {
	if item == nil {
		return itemResponse{}
	}
	return itemResponse{
		ID:               item.ID,
		ProductVariantID: item.ProductVariantID,
		Quantity:         item.Quantity,
		PriceAtPurchase:  item.PriceAtPurchase,
		GSTAmount:        item.GSTAmountAtPurchase,
		DiscountAmount:   item.DiscountAmountAtPurchase,
		LineTotal:        item.LineTotal,
		ShippingCharge:   item.ShippingCharge,
		CourierServiceID: item.CourierServiceID,
		Status:           string(item.Status),
		DraftShipmentID:  item.DraftShipmentID,
	}
}
