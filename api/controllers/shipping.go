package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/api/responses"
	"github.com/bazaarhub/bazaar-backend/api/validators"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/shipping"
)

type serviceabilityChecker interface {
	CheckServiceability(ctx context.Context, req shipping.ServiceabilityRequest) ([]shipping.CourierQuote, error)
}

type courierQuoteResponse struct {
	CourierServiceID  string          `json:"courier_service_id"`
	CourierName       string          `json:"courier_name"`
	Rate              decimal.Decimal `json:"rate"`
	EstimatedDelivery string          `json:"estimated_delivery,omitempty"`
}

// ShippingServiceability quotes couriers for a parcel so the cart can pick a
// courier_service_id and shipping_charge before checkout.
func ShippingServiceability(checker serviceabilityChecker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "shipping provider unavailable"))
			return
		}

		pickup, err := validators.RequireQuery(r, "pickup_postcode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		delivery, err := validators.RequireQuery(r, "delivery_postcode")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		weight, err := validators.ParseQueryDecimal(r, "weight", decimal.RequireFromString("0.5"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		declared, err := validators.ParseQueryDecimal(r, "declared_value", decimal.Zero)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cod, err := validators.ParseQueryBool(r, "cod")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quotes, err := checker.CheckServiceability(r.Context(), shipping.ServiceabilityRequest{
			PickupPostcode:   pickup,
			DeliveryPostcode: delivery,
			WeightKg:         weight,
			DeclaredValue:    declared,
			CashOnDelivery:   cod,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]courierQuoteResponse, 0, len(quotes))
		for _, q := range quotes {
			out = append(out, courierQuoteResponse{
				CourierServiceID:  q.CourierServiceID,
				CourierName:       q.CourierName,
				Rate:              q.Rate,
				EstimatedDelivery: q.EstimatedDelivery,
			})
		}
		payload := map[string]any{"couriers": out}
		if best, ok := shipping.Cheapest(quotes); ok {
			payload["recommended_courier_service_id"] = best.CourierServiceID
		}
		responses.WriteSuccess(w, payload)
	}
}
