package validation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
)

type testLine struct {
	VariantID uuid.UUID       `json:"product_variant_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Price     decimal.Decimal `json:"price_at_purchase" validate:"gte=0"`
}

type testRequest struct {
	AddressID uuid.UUID  `json:"shipping_address_id" validate:"required"`
	Lines     []testLine `json:"lines" validate:"required,min=1,dive"`
}

func TestStructReportsNestedFieldPaths(t *testing.T) {
	req := testRequest{
		Lines: []testLine{
			{VariantID: uuid.New(), Quantity: 1, Price: decimal.NewFromInt(10)},
			{Quantity: 0, Price: decimal.NewFromInt(-1)},
		},
	}

	err := Struct(req)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", typed.Details())
	}

	want := map[string]string{
		"shipping_address_id":         "is required",
		"lines[1].product_variant_id": "is required",
		"lines[1].quantity":           "must be greater than 0",
		"lines[1].price_at_purchase":  "must be greater than or equal to 0",
	}
	for field, msg := range want {
		if details[field] != msg {
			t.Fatalf("field %s: expected %q, got %q (all=%v)", field, msg, details[field], details)
		}
	}
	if _, ok := details["lines[0].quantity"]; ok {
		t.Fatalf("valid line should not be reported")
	}
}

func TestStructAcceptsValidRequest(t *testing.T) {
	req := testRequest{
		AddressID: uuid.New(),
		Lines:     []testLine{{VariantID: uuid.New(), Quantity: 2, Price: decimal.RequireFromString("0")}},
	}
	if err := Struct(req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructRequiresLines(t *testing.T) {
	err := Struct(testRequest{AddressID: uuid.New()})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected validation error")
	}
	details := typed.Details().(map[string]string)
	if details["lines"] != "is required" {
		t.Fatalf("expected lines required, got %v", details)
	}
}
