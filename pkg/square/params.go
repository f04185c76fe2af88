package square

import (
	"errors"
	"strings"

	sq "github.com/square/square-go-sdk"
)

// maxReferenceIDLength is the longest order reference_id Square accepts.
const maxReferenceIDLength = 40

// OrderLine is one priced line of a combined gateway order.
type OrderLine struct {
	Name        string
	AmountMinor int64
}

// OrderCreateParams describes the combined order charged once for a multi-seller checkout.
type OrderCreateParams struct {
	LocationID     string
	ReferenceID    string
	Currency       string
	Lines          []OrderLine
	IdempotencyKey string
}

// TotalMinor returns the order amount in minor units.
func (p OrderCreateParams) TotalMinor() int64 {
	var total int64
	for _, line := range p.Lines {
		total += line.AmountMinor
	}
	return total
}

func (p OrderCreateParams) validate() error {
	if strings.TrimSpace(p.LocationID) == "" {
		return errLocationRequired
	}
	if len(p.ReferenceID) > maxReferenceIDLength {
		return errors.New("reference id exceeds 40 characters")
	}
	if len(p.Lines) == 0 {
		return errors.New("order requires at least one line")
	}
	for _, line := range p.Lines {
		if line.AmountMinor < 0 {
			return errors.New("order line amount must not be negative")
		}
	}
	if p.TotalMinor() <= 0 {
		return errors.New("order amount must be positive")
	}
	return nil
}

func (p OrderCreateParams) toSquareRequest(idempotencyKey string) *sq.CreateOrderRequest {
	lines := make([]*sq.OrderLineItem, 0, len(p.Lines))
	for _, line := range p.Lines {
		lines = append(lines, &sq.OrderLineItem{
			Name:           ptrString(line.Name),
			Quantity:       "1",
			BasePriceMoney: moneyPtr(line.AmountMinor, p.Currency),
		})
	}
	return &sq.CreateOrderRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		Order: &sq.Order{
			LocationID:  p.LocationID,
			ReferenceID: ptrString(p.ReferenceID),
			LineItems:   lines,
		},
	}
}

// RefundParams encapsulates a partial refund against a captured payment.
type RefundParams struct {
	PaymentID      string
	AmountMinor    int64
	Currency       string
	Reason         string
	IdempotencyKey string
}

func (p RefundParams) validate() error {
	if strings.TrimSpace(p.PaymentID) == "" {
		return errors.New("payment id is required")
	}
	if p.AmountMinor <= 0 {
		return errors.New("refund amount must be positive")
	}
	return nil
}

func (p RefundParams) toSquareRequest(idempotencyKey string) *sq.RefundPaymentRequest {
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: idempotencyKey,
		AmountMoney:    moneyPtr(p.AmountMinor, p.Currency),
		PaymentID:      ptrString(p.PaymentID),
	}
	if trimmed := strings.TrimSpace(p.Reason); trimmed != "" {
		req.Reason = ptrString(trimmed)
	}
	return req
}

// PaymentMatchesOrder reports whether a completed payment settles the given
// gateway order for the expected amount.
func PaymentMatchesOrder(payment *sq.Payment, orderID string, amountMinor int64) bool {
	if payment == nil {
		return false
	}
	if stringValue(payment.GetOrderID()) != orderID {
		return false
	}
	if !strings.EqualFold(stringValue(payment.GetStatus()), "COMPLETED") {
		return false
	}
	money := payment.GetAmountMoney()
	if money == nil || money.GetAmount() == nil {
		return false
	}
	return *money.GetAmount() == amountMinor
}

// OrderCompleted reports whether the gateway considers the order paid.
func OrderCompleted(order *sq.Order) bool {
	if order == nil || order.GetState() == nil {
		return false
	}
	return *order.GetState() == sq.OrderStateCompleted
}

// OrderCanceled reports whether the gateway order was canceled.
func OrderCanceled(order *sq.Order) bool {
	if order == nil || order.GetState() == nil {
		return false
	}
	return *order.GetState() == sq.OrderStateCanceled
}

// OrderID returns the gateway id of an order.
func OrderID(order *sq.Order) string {
	if order == nil {
		return ""
	}
	return stringValue(order.GetID())
}

// OrderPaymentID returns the payment id of the first tender on the order.
func OrderPaymentID(order *sq.Order) string {
	if order == nil {
		return ""
	}
	for _, tender := range order.GetTenders() {
		if tender == nil {
			continue
		}
		if id := stringValue(tender.GetPaymentID()); id != "" {
			return id
		}
	}
	return ""
}

// OrderTotalMinor returns the order total in minor units, or -1 when absent.
func OrderTotalMinor(order *sq.Order) int64 {
	if order == nil || order.GetTotalMoney() == nil || order.GetTotalMoney().GetAmount() == nil {
		return -1
	}
	return *order.GetTotalMoney().GetAmount()
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		trimmed = "INR"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
