package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
)

var (
	hundred  = decimal.NewFromInt(100)
	endOfDay = 24*time.Hour - time.Millisecond
)

// Line is a cart line after the live variant price and GST rate have been resolved.
type Line struct {
	Index            int
	ProductVariantID uuid.UUID
	SellerID         uuid.UUID
	Quantity         int
	UnitPrice        decimal.Decimal
	GSTPercentage    decimal.Decimal
	CourierServiceID string
	ShippingCharge   decimal.Decimal
	DiscountID       *uuid.UUID
}

// Discount is the resolved discount record applied to a line.
type Discount struct {
	ID        uuid.UUID
	Type      enums.DiscountType
	Value     decimal.Decimal
	StartDate time.Time
	EndDate   time.Time
}

// Item is a fully priced line. Amounts are unrounded.
type Item struct {
	Line Line

	BasePriceTotal      decimal.Decimal
	DiscountPerUnit     decimal.Decimal
	DiscountTotal       decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	GSTPerUnit          decimal.Decimal
	GSTTotal            decimal.Decimal
	FinalTotal          decimal.Decimal
	ShippingCharge      decimal.Decimal
	DiscountApplied     bool
}

// Options configures a Calculator.
type Options struct {
	FreeDeliveryThreshold decimal.Decimal
	Location              *time.Location
	Now                   func() time.Time
}

// Calculator prices cart lines: discount first, then GST on the discounted price.
type Calculator struct {
	freeDeliveryThreshold decimal.Decimal
	loc                   *time.Location
	now                   func() time.Time
}

func NewCalculator(opts Options) *Calculator {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Calculator{
		freeDeliveryThreshold: opts.FreeDeliveryThreshold,
		loc:                   loc,
		now:                   now,
	}
}

// ComputeLine prices a single line. A nil or out-of-window discount prices at base.
func (c *Calculator) ComputeLine(line Line, discount *Discount) (Item, error) {
	if err := validateLine(line); err != nil {
		return Item{}, err
	}

	qty := decimal.NewFromInt(int64(line.Quantity))
	discountPerUnit := decimal.Zero
	applied := false
	if discount != nil {
		amount, err := discountAmount(line.UnitPrice, *discount)
		if err != nil {
			return Item{}, err
		}
		if c.DiscountActive(*discount) {
			discountPerUnit = amount
			applied = amount.IsPositive()
		}
	}

	discounted := line.UnitPrice.Sub(discountPerUnit)
	gstPerUnit := discounted.Mul(line.GSTPercentage).Div(hundred)
	gstTotal := gstPerUnit.Mul(qty)

	return Item{
		Line:                line,
		BasePriceTotal:      line.UnitPrice.Mul(qty),
		DiscountPerUnit:     discountPerUnit,
		DiscountTotal:       discountPerUnit.Mul(qty),
		DiscountedUnitPrice: discounted,
		GSTPerUnit:          gstPerUnit,
		GSTTotal:            gstTotal,
		FinalTotal:          discounted.Mul(qty).Add(gstTotal),
		ShippingCharge:      line.ShippingCharge,
		DiscountApplied:     applied,
	}, nil
}

// DiscountActive reports whether today falls in [start, end] by calendar date,
// with the end date inclusive through its last millisecond.
func (c *Calculator) DiscountActive(d Discount) bool {
	now := c.now().In(c.loc)
	start := startOfDay(d.StartDate.In(c.loc))
	end := startOfDay(d.EndDate.In(c.loc)).Add(endOfDay)
	return !now.Before(start) && !now.After(end)
}

// ApplyFreeDelivery zeroes every line's shipping charge when the cart value reaches
// the configured threshold, and reports whether it did.
func (c *Calculator) ApplyFreeDelivery(items []Item) bool {
	if c.freeDeliveryThreshold.IsZero() || len(items) == 0 {
		return false
	}
	if CartValue(items).LessThan(c.freeDeliveryThreshold) {
		return false
	}
	for i := range items {
		items[i].ShippingCharge = decimal.Zero
	}
	return true
}

// CartValue sums the final totals of the given items.
func CartValue(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.FinalTotal)
	}
	return total
}

// ShippingTotal sums the per-line shipping quotes.
func ShippingTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.ShippingCharge)
	}
	return total
}

func discountAmount(unitPrice decimal.Decimal, d Discount) (decimal.Decimal, error) {
	if !d.Value.IsPositive() {
		return decimal.Zero, invalidDiscount(d, "discount value must be positive")
	}

	var amount decimal.Decimal
	switch d.Type {
	case enums.DiscountTypePercentage:
		amount = unitPrice.Mul(d.Value).Div(hundred)
	case enums.DiscountTypeAmount:
		amount = d.Value
	default:
		return decimal.Zero, invalidDiscount(d, fmt.Sprintf("unsupported discount type %q", d.Type))
	}

	// never discount below zero
	if amount.GreaterThan(unitPrice) {
		amount = unitPrice
	}
	return amount, nil
}

func validateLine(line Line) error {
	switch {
	case line.Quantity <= 0:
		return invalidLine(line, "quantity must be positive")
	case line.UnitPrice.IsNegative():
		return invalidLine(line, "unit price must not be negative")
	case line.GSTPercentage.IsNegative() || line.GSTPercentage.GreaterThan(hundred):
		return invalidLine(line, "gst percentage must be between 0 and 100")
	case line.ShippingCharge.IsNegative():
		return invalidLine(line, "shipping charge must not be negative")
	}
	return nil
}

func invalidLine(line Line, reason string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidLine, reason).WithDetails(map[string]any{
		"line":               line.Index,
		"product_variant_id": line.ProductVariantID.String(),
	})
}

func invalidDiscount(d Discount, reason string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidDiscount, reason).WithDetails(map[string]any{
		"discount_id":   d.ID.String(),
		"discount_type": string(d.Type),
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
