// Package prediction wraps the external price-prediction HTTP service.
package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrCommodityUnsupported is returned without a network call once the
// service has answered 400 for a commodity and the breaker is still warm.
var ErrCommodityUnsupported = errors.New("commodity unsupported by prediction service")

// ServiceError is a non-2xx answer from the predictor, body included for
// diagnosis.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("prediction service returned HTTP %d: %s", e.Status, body)
}

// Request is one prediction call for a single price type. Commodity and
// Market must already be in the predictor's vocabulary.
type Request struct {
	Date               string  `json:"date"`
	Admin1             string  `json:"admin1"`
	Market             string  `json:"market"`
	Commodity          string  `json:"commodity"`
	PriceType          string  `json:"pricetype"` // "retail" | "wholesale"
	PreviousMonthPrice float64 `json:"previous_month_price"`
}

const defaultBreakerTTL = 6 * time.Hour

type Client struct {
	baseURL string
	http    *resty.Client

	// breaker state: commodity token -> expiry of the unsupported mark
	mu      sync.Mutex
	blocked map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Client)

// WithBreakerTTL overrides how long a 400-flagged commodity stays blocked.
func WithBreakerTTL(d time.Duration) Option {
	return func(c *Client) { c.ttl = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	httpClient := resty.New()
	httpClient.SetTimeout(30 * time.Second)

	c := &Client{
		baseURL: baseURL,
		http:    httpClient,
		blocked: make(map[string]time.Time),
		ttl:     defaultBreakerTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// priceFields is the documented priority order for extracting the
// predicted unit price from a response body.
func priceFields(priceType string) []string {
	return []string{"prediction_per_kg", "predicted_price", priceType, "price"}
}

// Predict issues one call. The bool reports whether a usable price was
// present: a well-formed response without one is not an error, the caller
// decides what an empty side means.
func (c *Client) Predict(ctx context.Context, req Request) (float64, bool, error) {
	if c.isBlocked(req.Commodity) {
		return 0, false, ErrCommodityUnsupported
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.baseURL + "/predict")
	if err != nil {
		return 0, false, fmt.Errorf("prediction request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		if resp.StatusCode() == http.StatusBadRequest {
			c.block(req.Commodity)
		}
		return 0, false, &ServiceError{Status: resp.StatusCode(), Body: string(resp.Body())}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return 0, false, fmt.Errorf("invalid prediction response: %w", err)
	}
	for _, field := range priceFields(req.PriceType) {
		if v, ok := payload[field]; ok {
			if px, ok := asUsablePrice(v); ok {
				return px, true, nil
			}
		}
	}
	return 0, false, nil
}

// asUsablePrice accepts finite positive numbers, including ones encoded
// as strings by some predictor builds.
func asUsablePrice(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	if !ok {
		s, isStr := v.(string)
		if !isStr {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

func (c *Client) isBlocked(commodity string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.blocked[commodity]
	if !ok {
		return false
	}
	if c.now().After(until) {
		delete(c.blocked, commodity)
		return false
	}
	return true
}

func (c *Client) block(commodity string) {
	c.mu.Lock()
	c.blocked[commodity] = c.now().Add(c.ttl)
	c.mu.Unlock()
}
