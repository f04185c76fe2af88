package controllers

import (
	"net/http"
	"strings"

	"github.com/bazaarhub/bazaar-backend/api/middleware"
	"github.com/bazaarhub/bazaar-backend/api/responses"
	"github.com/bazaarhub/bazaar-backend/api/validators"
	checkoutsvc "github.com/bazaarhub/bazaar-backend/internal/checkout"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
)

// Checkout prices the cart, opens one combined gateway order and persists one
// order per seller. Field validation happens in the service so the details map
// is keyed by line index.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		user, ok := middleware.UserFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload checkoutsvc.CreateOrderRequest
		if err := validators.DecodeJSON(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.IdempotencyKey = strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))

		result, err := svc.CreateMultiSellerOrder(r.Context(), user, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
