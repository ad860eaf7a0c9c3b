package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/food-checkout/internal/billing"
	"github.com/noah-isme/food-checkout/internal/common"
	"github.com/noah-isme/food-checkout/internal/coupon"
	"github.com/noah-isme/food-checkout/internal/resilience"
)

const maxResponseBytes = 4 << 20

var (
	// ErrUnavailable wraps transport failures, open breakers and 5xx responses.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("backend: resource not found")
	// ErrMalformed is returned when a response cannot be decoded or validated.
	ErrMalformed = errors.New("backend: malformed response")
)

// RejectedError is a response the backend answered with success=false or a
// 4xx status.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request (%d)", e.StatusCode)
	}
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
}

// Config configures the client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Breaker     *resilience.Breaker
	Transport   http.RoundTripper
	Logger      zerolog.Logger
}

// Client talks to the food backend's REST API.
type Client struct {
	base   *url.URL
	http   resilience.HTTPClient
	logger zerolog.Logger
}

// New constructs a client. Outbound requests are traced with otelhttp.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base: base,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(transport)},
			Breaker:     cfg.Breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		logger: cfg.Logger,
	}, nil
}

// GetDeliverySettings fetches the current charge parameters.
func (c *Client) GetDeliverySettings(ctx context.Context) (DeliverySettings, error) {
	var out DeliverySettings
	if err := c.do(ctx, http.MethodGet, "/delivery-settings", nil, &out); err != nil {
		return DeliverySettings{}, err
	}
	if err := common.Validator().Struct(out); err != nil {
		c.logger.Warn().Err(err).Msg("delivery settings failed validation; applying defaults")
	}
	return out.normalize(), nil
}

// ListCoupons fetches every published coupon. Entries that fail validation
// are dropped.
func (c *Client) ListCoupons(ctx context.Context) ([]coupon.Coupon, error) {
	var raw []coupon.Coupon
	if err := c.do(ctx, http.MethodGet, "/coupons", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]coupon.Coupon, 0, len(raw))
	for _, cp := range raw {
		if err := common.Validator().Struct(cp); err != nil {
			c.logger.Warn().Err(err).Str("coupon_id", cp.ID).Msg("dropping invalid coupon")
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

// GetRestaurant fetches one restaurant.
func (c *Client) GetRestaurant(ctx context.Context, id string) (Restaurant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Restaurant{}, ErrNotFound
	}
	var out Restaurant
	if err := c.do(ctx, http.MethodGet, "/restaurants/"+url.PathEscape(id), nil, &out); err != nil {
		return Restaurant{}, err
	}
	if err := common.Validator().Struct(out); err != nil {
		return Restaurant{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// CreateBilling posts a billing payload. The request is attempted once.
func (c *Client) CreateBilling(ctx context.Context, p billing.Payload) (billing.Order, error) {
	var out billing.Order
	if err := c.do(ctx, http.MethodPost, "/billing", p, &out); err != nil {
		return billing.Order{}, err
	}
	return out, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetDeliverySettings(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= http.StatusBadRequest {
				return c.statusError(resp.StatusCode, "")
			}
			return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return c.statusError(resp.StatusCode, env.Message)
	}
	if !env.Success {
		return &RejectedError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if dst == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return nil
}

func (c *Client) statusError(status int, message string) error {
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	}
	return &RejectedError{StatusCode: status, Message: message}
}
