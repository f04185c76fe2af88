// Package shipping talks to the courier aggregator that quotes per-line shipping
// charges before checkout and cancels booked shipments afterwards.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errTokenRequired = errors.New("shipping api token is required")

// Client wraps the aggregator HTTP API behind a circuit breaker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured aggregator base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the aggregator client from configuration.
func NewClient(cfg config.ShippingConfig, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, errTokenRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      token,
		breaker:    newBreaker("shipping-aggregator", cfg),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if strings.TrimSpace(client.baseURL) == "" {
		return nil, errors.New("shipping base url is required")
	}
	return client, nil
}

func newBreaker(name string, cfg config.ShippingConfig) *gobreaker.CircuitBreaker[[]byte] {
	minCalls := cfg.BreakerMinCalls
	if minCalls == 0 {
		minCalls = 3
	}
	ratio := cfg.BreakerFailRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	var st gobreaker.Settings
	st.Name = name
	st.Timeout = cfg.BreakerOpenFor
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= minCalls && failureRatio >= ratio
	}
	// client errors are the caller's fault and must not open the circuit
	st.IsSuccessful = func(err error) bool {
		return err == nil || pkgerrors.IsCode(err, pkgerrors.CodeValidation)
	}
	return gobreaker.NewCircuitBreaker[[]byte](st)
}

// ServiceabilityRequest asks which couriers can move a parcel between two pincodes.
type ServiceabilityRequest struct {
	PickupPostcode   string
	DeliveryPostcode string
	WeightKg         decimal.Decimal
	DeclaredValue    decimal.Decimal
	CashOnDelivery   bool
}

// CourierQuote is one courier's offer for a parcel.
type CourierQuote struct {
	CourierServiceID  string
	CourierName       string
	Rate              decimal.Decimal
	EstimatedDelivery string
}

// CheckServiceability returns the courier quotes for a parcel, cheapest first.
func (c *Client) CheckServiceability(ctx context.Context, req ServiceabilityRequest) ([]CourierQuote, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping client not configured")
	}
	if strings.TrimSpace(req.PickupPostcode) == "" || strings.TrimSpace(req.DeliveryPostcode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and delivery postcodes are required")
	}
	if !req.WeightKg.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parcel weight must be positive")
	}

	query := url.Values{}
	query.Set("pickup_postcode", strings.TrimSpace(req.PickupPostcode))
	query.Set("delivery_postcode", strings.TrimSpace(req.DeliveryPostcode))
	query.Set("weight", req.WeightKg.String())
	query.Set("declared_value", req.DeclaredValue.StringFixed(2))
	if req.CashOnDelivery {
		query.Set("cod", "1")
	} else {
		query.Set("cod", "0")
	}

	body, err := c.do(ctx, http.MethodGet, c.buildURL("courier/serviceability")+"?"+query.Encode(), nil, "serviceability")
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Data struct {
			Couriers []struct {
				ID   int             `json:"courier_company_id"`
				Name string          `json:"courier_name"`
				Rate decimal.Decimal `json:"rate"`
				ETD  string          `json:"etd"`
			} `json:"available_courier_companies"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode serviceability response")
	}

	quotes := make([]CourierQuote, 0, len(apiResp.Data.Couriers))
	for _, courier := range apiResp.Data.Couriers {
		quotes = append(quotes, CourierQuote{
			CourierServiceID:  strconv.Itoa(courier.ID),
			CourierName:       courier.Name,
			Rate:              courier.Rate,
			EstimatedDelivery: courier.ETD,
		})
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Rate.LessThan(quotes[j].Rate)
	})
	return quotes, nil
}

// Cheapest returns the lowest-rate quote, or false when there is none.
func Cheapest(quotes []CourierQuote) (CourierQuote, bool) {
	if len(quotes) == 0 {
		return CourierQuote{}, false
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.Rate.LessThan(best.Rate) {
			best = q
		}
	}
	return best, true
}

// CancelShipments cancels booked shipments by airway bill number.
func (c *Client) CancelShipments(ctx context.Context, awbs []string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "shipping client not configured")
	}
	cleaned := make([]string, 0, len(awbs))
	for _, awb := range awbs {
		if trimmed := strings.TrimSpace(awb); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one awb is required")
	}

	payload, err := json.Marshal(map[string][]string{"awbs": cleaned})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal cancel shipment request")
	}
	_, err = c.do(ctx, http.MethodPost, c.buildURL("orders/cancel/shipment/awbs"), payload, "cancel shipment")
	return err
}

// State reports the circuit breaker state, for readiness reporting.
func (c *Client) State() string {
	if c == nil || c.breaker == nil {
		return ""
	}
	return c.breaker.State().String()
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte, op string) ([]byte, error) {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("build %s request", op))
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute %s request", op))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
			code := pkgerrors.CodeDependency
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				code = pkgerrors.CodeValidation
			}
			return nil, pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), fmt.Sprintf("%s request failed", op))
		}
		return io.ReadAll(resp.Body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shipping aggregator unavailable")
	}
	return body, err
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
