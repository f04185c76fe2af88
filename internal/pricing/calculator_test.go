package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func fixedNow(ts string) func() time.Time {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return parsed }
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestCalculator(now string) *Calculator {
	return NewCalculator(Options{
		FreeDeliveryThreshold: dec("5000"),
		Location:              time.UTC,
		Now:                   fixedNow(now),
	})
}

func baseLine(price, gst string, qty int) Line {
	return Line{
		ProductVariantID: uuid.New(),
		SellerID:         uuid.New(),
		Quantity:         qty,
		UnitPrice:        dec(price),
		GSTPercentage:    dec(gst),
		ShippingCharge:   dec("0"),
	}
}

func assertDec(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got)
	}
}

func TestComputeLinePercentageDiscountThenGST(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	discount := &Discount{
		ID:        uuid.New(),
		Type:      enums.DiscountTypePercentage,
		Value:     dec("10"),
		StartDate: date(2026, 3, 1),
		EndDate:   date(2026, 3, 31),
	}

	item, err := calc.ComputeLine(baseLine("200", "18", 2), discount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertDec(t, "base total", item.BasePriceTotal, "400")
	assertDec(t, "discount per unit", item.DiscountPerUnit, "20")
	assertDec(t, "discount total", item.DiscountTotal, "40")
	assertDec(t, "discounted unit", item.DiscountedUnitPrice, "180")
	assertDec(t, "gst per unit", item.GSTPerUnit, "32.4")
	assertDec(t, "gst total", item.GSTTotal, "64.8")
	assertDec(t, "final total", item.FinalTotal, "424.8")
	if !item.DiscountApplied {
		t.Fatal("expected discount to be applied")
	}
}

func TestComputeLineTaxesTheDiscountedPrice(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	discount := &Discount{
		ID:        uuid.New(),
		Type:      enums.DiscountTypePercentage,
		Value:     dec("10"),
		StartDate: date(2026, 3, 1),
		EndDate:   date(2026, 3, 31),
	}

	item, err := calc.ComputeLine(baseLine("100", "18", 1), discount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDec(t, "discounted unit", item.DiscountedUnitPrice, "90")
	assertDec(t, "gst per unit", item.GSTPerUnit, "16.2")
	assertDec(t, "final total", item.FinalTotal, "106.2")

	// tax first: 18 GST on 100, then 10 off, gives 108
	taxFirstGST := dec("100").Mul(dec("18")).Div(dec("100"))
	taxFirstTotal := dec("100").Add(taxFirstGST).Sub(dec("10"))
	if item.GSTPerUnit.Equal(taxFirstGST) || item.FinalTotal.Equal(taxFirstTotal) {
		t.Fatalf("gst computed on the pre-discount price: gst %s final %s", item.GSTPerUnit, item.FinalTotal)
	}
	if item.FinalTotal.Equal(dec("118")) {
		t.Fatal("discount was not applied before tax")
	}
}

func TestComputeLineWithoutDiscount(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	item, err := calc.ComputeLine(baseLine("150", "5", 2), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDec(t, "final total", item.FinalTotal, "315")
	assertDec(t, "discount total", item.DiscountTotal, "0")
	if item.DiscountApplied {
		t.Fatal("did not expect discount")
	}
}

func TestComputeLineAmountDiscountClampsAtZero(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	discount := &Discount{
		ID:        uuid.New(),
		Type:      enums.DiscountTypeAmount,
		Value:     dec("60"),
		StartDate: date(2026, 3, 1),
		EndDate:   date(2026, 3, 31),
	}

	item, err := calc.ComputeLine(baseLine("50", "18", 1), discount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDec(t, "discount per unit", item.DiscountPerUnit, "50")
	assertDec(t, "discounted unit", item.DiscountedUnitPrice, "0")
	assertDec(t, "gst total", item.GSTTotal, "0")
	assertDec(t, "final total", item.FinalTotal, "0")
}

func TestComputeLineExpiredDiscountIgnored(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	discount := &Discount{
		ID:        uuid.New(),
		Type:      enums.DiscountTypePercentage,
		Value:     dec("10"),
		StartDate: date(2026, 2, 1),
		EndDate:   date(2026, 3, 14),
	}

	item, err := calc.ComputeLine(baseLine("200", "18", 2), discount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertDec(t, "discount total", item.DiscountTotal, "0")
	assertDec(t, "final total", item.FinalTotal, "472")
}

func TestDiscountActiveBoundaries(t *testing.T) {
	t.Parallel()

	discount := Discount{
		Type:      enums.DiscountTypeAmount,
		Value:     dec("1"),
		StartDate: date(2026, 3, 10),
		EndDate:   date(2026, 3, 14),
	}

	tests := []struct {
		name   string
		now    string
		active bool
	}{
		{name: "start of first day", now: "2026-03-10T00:00:00Z", active: true},
		{name: "last millisecond of end day", now: "2026-03-14T23:59:59.999Z", active: true},
		{name: "day after end", now: "2026-03-15T00:00:00Z", active: false},
		{name: "day before start", now: "2026-03-09T23:59:59Z", active: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			calc := newTestCalculator(tt.now)
			if got := calc.DiscountActive(discount); got != tt.active {
				t.Fatalf("expected active=%v, got %v", tt.active, got)
			}
		})
	}
}

func TestDiscountActiveUsesLocation(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*3600+1800)
	calc := NewCalculator(Options{
		Location: ist,
		// 2026-03-15 01:00 IST, still the 14th in UTC
		Now: fixedNow("2026-03-14T19:30:00Z"),
	})
	discount := Discount{
		Type:      enums.DiscountTypeAmount,
		Value:     dec("1"),
		StartDate: time.Date(2026, 3, 10, 0, 0, 0, 0, ist),
		EndDate:   time.Date(2026, 3, 14, 0, 0, 0, 0, ist),
	}
	if calc.DiscountActive(discount) {
		t.Fatal("expected discount to have ended in local time")
	}
}

func TestComputeLineRejectsInvalidDiscounts(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	tests := map[string]Discount{
		"unknown type":       {Type: enums.DiscountType("bogo"), Value: dec("10")},
		"zero amount":        {Type: enums.DiscountTypeAmount, Value: dec("0")},
		"zero percentage":    {Type: enums.DiscountTypePercentage, Value: dec("0")},
		"negative amount":    {Type: enums.DiscountTypeAmount, Value: dec("-5")},
		"expired zero value": {Type: enums.DiscountTypeAmount, Value: dec("0"), StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 2)},
	}
	for name, discount := range tests {
		discount.ID = uuid.New()
		if discount.StartDate.IsZero() {
			discount.StartDate = date(2026, 3, 1)
			discount.EndDate = date(2026, 3, 31)
		}
		item, err := calc.ComputeLine(baseLine("100", "18", 1), &discount)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidDiscount {
			t.Fatalf("%s: expected invalid discount error, got %v (final %s)", name, err, item.FinalTotal)
		}
	}
}

func TestComputeLineRejectsInvalidLines(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	tests := map[string]Line{
		"zero quantity":     baseLine("100", "18", 0),
		"negative price":    baseLine("-1", "18", 1),
		"gst above hundred": baseLine("100", "101", 1),
	}
	for name, line := range tests {
		_, err := calc.ComputeLine(line, nil)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidLine {
			t.Fatalf("%s: expected invalid line error, got %v", name, err)
		}
	}
}

func TestComputeLineGSTMonotonicInDiscount(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")
	undiscounted, err := calc.ComputeLine(baseLine("99.99", "12", 3), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	previous := undiscounted.GSTTotal
	for _, pct := range []string{"5", "25", "50", "100"} {
		discount := &Discount{
			Type:      enums.DiscountTypePercentage,
			Value:     dec(pct),
			StartDate: date(2026, 3, 1),
			EndDate:   date(2026, 3, 31),
		}
		item, err := calc.ComputeLine(baseLine("99.99", "12", 3), discount)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if item.GSTTotal.GreaterThan(previous) {
			t.Fatalf("gst increased as discount grew: %s > %s", item.GSTTotal, previous)
		}
		previous = item.GSTTotal
	}
}

func TestApplyFreeDelivery(t *testing.T) {
	t.Parallel()

	calc := newTestCalculator("2026-03-15T10:00:00Z")

	tests := []struct {
		name  string
		items []Item
		free  bool
	}{
		{
			name:  "just below threshold",
			items: []Item{{FinalTotal: dec("4999.99"), ShippingCharge: dec("80")}},
			free:  false,
		},
		{
			name: "exactly at threshold",
			items: []Item{
				{FinalTotal: dec("3000"), ShippingCharge: dec("80")},
				{FinalTotal: dec("2000"), ShippingCharge: dec("60")},
			},
			free: true,
		},
		{
			name: "above threshold",
			items: []Item{
				{FinalTotal: dec("4000"), ShippingCharge: dec("80")},
				{FinalTotal: dec("1001"), ShippingCharge: dec("60")},
			},
			free: true,
		},
	}

	for _, tt := range tests {
		applied := calc.ApplyFreeDelivery(tt.items)
		if applied != tt.free {
			t.Fatalf("%s: expected free delivery %v, got %v", tt.name, tt.free, applied)
		}
		if tt.free && !ShippingTotal(tt.items).IsZero() {
			t.Fatalf("%s: expected zero shipping total, got %s", tt.name, ShippingTotal(tt.items))
		}
		if !tt.free {
			assertDec(t, tt.name+" shipping kept", tt.items[0].ShippingCharge, "80")
		}
	}
}
