package billing

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/pricing"
)

// Order is the record the backend persists for an accepted billing.
type Order struct {
	ID            string       `json:"_id"`
	OrderID       string       `json:"orderId,omitempty"`
	Status        string       `json:"status,omitempty"`
	PaymentStatus string       `json:"paymentStatus,omitempty"`
	TotalAmount   money.Amount `json:"totalAmount"`
}

// Gateway posts a billing payload to the backend.
type Gateway interface {
	CreateBilling(ctx context.Context, p Payload) (Order, error)
}

// Result is a successful submission.
type Result struct {
	Order   Order           `json:"order"`
	Payload Payload         `json:"payload"`
	Summary pricing.Summary `json:"summary"`
}

// Submitter validates, assembles and posts a billing. Validation failures
// return before the gateway is touched; the post itself is attempted once.
type Submitter struct {
	Gateway Gateway
	Now     func() time.Time
}

// Submit bills in and returns the backend's order.
func (s Submitter) Submit(ctx context.Context, in Input) (Result, error) {
	if in.Now.IsZero() {
		in.Now = s.now()
	}
	payload, summary, err := BuildPayload(in)
	if err != nil {
		return Result{}, err
	}
	if s.Gateway == nil {
		return Result{}, errors.New("billing: gateway not configured")
	}
	order, err := s.Gateway.CreateBilling(ctx, payload)
	if err != nil {
		return Result{}, err
	}
	return Result{Order: order, Payload: payload, Summary: summary}, nil
}

func (s Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IsValidation reports whether err is a local validation failure rather than
// a backend error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingUser) ||
		errors.Is(err, ErrMissingAddress) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrMissingRestaurant) ||
		errors.Is(err, ErrCouponNotEligible)
}
