package helpers

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
)

// ValidateVariant ensures a cart line references a priced variant owned by the
// seller named on the line.
func ValidateVariant(index int, variantID, sellerID uuid.UUID, variant *models.ProductVariant) error {
	details := map[string]any{"line": index, "product_variant_id": variantID.String()}
	if variant == nil {
		return pkgerrors.New(pkgerrors.CodeInvalidLine, "product variant not found").WithDetails(details)
	}
	if !variant.Price.Valid {
		return pkgerrors.New(pkgerrors.CodeInvalidLine, "product variant has no price").WithDetails(details)
	}
	if variant.Price.Decimal.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeInvalidLine, "product variant price is negative").WithDetails(details)
	}
	if variant.SellerID != sellerID {
		details["seller_id"] = sellerID.String()
		return pkgerrors.New(pkgerrors.CodeInvalidLine, "product variant does not belong to seller").WithDetails(details)
	}
	return nil
}

// ValidateDiscountAttachment ensures a requested discount is the one attached to
// the variant or, failing that, to its parent product.
func ValidateDiscountAttachment(index int, requested uuid.UUID, variant *models.ProductVariant, discount *models.ProductDiscount) error {
	details := map[string]any{"line": index, "discount_id": requested.String()}
	if discount == nil {
		return pkgerrors.New(pkgerrors.CodeInvalidDiscount, "discount not found").WithDetails(details)
	}
	attached := variant.EffectiveDiscountID()
	if attached == nil || *attached != requested {
		return pkgerrors.New(pkgerrors.CodeInvalidDiscount, "discount does not apply to product variant").WithDetails(details)
	}
	return nil
}

// ResolveGST prefers the catalog rate and falls back to the rate sent with the line.
func ResolveGST(variant *models.ProductVariant, requested decimal.Decimal) decimal.Decimal {
	if variant != nil && variant.GSTPercentage.Valid {
		return variant.GSTPercentage.Decimal
	}
	return requested
}
