package coupon

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/money"
)

var (
	// ErrNotFound is returned when no coupon matches the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrMinimumOrderUnmet indicates the item subtotal is below the coupon minimum.
	ErrMinimumOrderUnmet = errors.New("coupon minimum order amount not met")
	// ErrCouponExpired is returned when the coupon expiry has passed.
	ErrCouponExpired = errors.New("coupon expired")
)

// DiscountPercentage marks a coupon whose value is a percentage of the subtotal.
// Any other discount type is treated as a flat amount.
const DiscountPercentage = "percentage"

// Coupon is a discount published by the backend.
type Coupon struct {
	ID              string       `json:"_id"`
	Code            string       `json:"code" validate:"required"`
	Description     string       `json:"description,omitempty"`
	DiscountType    string       `json:"discountType,omitempty"`
	DiscountValue   money.Amount `json:"discountValue"`
	MinOrderAmount  money.Amount `json:"minOrderAmount"`
	Expiry          Date         `json:"expiry"`
	DiscountDisplay string       `json:"discountDisplay,omitempty"`
}

// IsPercentage reports whether the discount is a percentage of the subtotal.
func (c Coupon) IsPercentage() bool {
	return strings.EqualFold(strings.TrimSpace(c.DiscountType), DiscountPercentage)
}

// Validate checks the coupon against the live item subtotal at the provided instant.
func (c Coupon) Validate(now time.Time, subtotal decimal.Decimal) error {
	if subtotal.LessThan(c.MinOrderAmount.OrZero()) {
		return ErrMinimumOrderUnmet
	}
	if !c.Expiry.IsZero() && now.After(c.Expiry.Time) {
		return ErrCouponExpired
	}
	return nil
}

// EligibleDiscount returns the discount a coupon grants for subtotal. It is
// zero for a nil coupon or when subtotal is below the minimum order amount.
func EligibleDiscount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	if subtotal.LessThan(c.MinOrderAmount.OrZero()) {
		return decimal.Zero
	}
	value := c.DiscountValue.OrZero()
	if value.Sign() <= 0 {
		return decimal.Zero
	}
	if c.IsPercentage() {
		return money.Round(subtotal.Mul(value).Div(decimal.NewFromInt(100)))
	}
	return value
}

// FindByCode looks up a coupon by code, ignoring case and surrounding space.
func FindByCode(coupons []Coupon, code string) (Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Coupon{}, ErrNotFound
	}
	for _, c := range coupons {
		if strings.EqualFold(strings.TrimSpace(c.Code), code) {
			return c, nil
		}
	}
	return Coupon{}, ErrNotFound
}

// Date decodes RFC 3339 timestamps or plain YYYY-MM-DD dates. A plain date
// is valid until the end of that day (UTC). Unparseable values decode as zero.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	d.Time = time.Time{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		d.Time = t
		return nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		d.Time = t.Add(24*time.Hour - time.Nanosecond)
	}
	return nil
}

// MarshalJSON encodes the date as RFC 3339 with nanoseconds, or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Format(time.RFC3339Nano))
}
