package coupon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/money"
)

func TestEligibleDiscountPercentGating(t *testing.T) {
	c := &Coupon{Code: "TEN", DiscountType: "percentage", DiscountValue: money.FromInt(10), MinOrderAmount: money.FromInt(500)}
	if got := EligibleDiscount(c, decimal.NewFromInt(400)); !got.IsZero() {
		t.Fatalf("expected no discount below minimum, got %s", got)
	}
	if got := EligibleDiscount(c, decimal.NewFromInt(600)); !got.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60 discount, got %s", got)
	}
	if got := EligibleDiscount(c, decimal.NewFromInt(500)); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected minimum to be inclusive, got %s", got)
	}
}

func TestEligibleDiscountFlat(t *testing.T) {
	c := &Coupon{Code: "FLAT75", DiscountValue: money.FromInt(75)}
	if got := EligibleDiscount(c, decimal.NewFromInt(100)); !got.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected flat 75, got %s", got)
	}
}

func TestEligibleDiscountNilCoupon(t *testing.T) {
	if got := EligibleDiscount(nil, decimal.NewFromInt(1000)); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c := Coupon{Code: "X", MinOrderAmount: money.FromInt(300)}
	if err := c.Validate(now, decimal.NewFromInt(200)); err != ErrMinimumOrderUnmet {
		t.Fatalf("expected ErrMinimumOrderUnmet, got %v", err)
	}
	c.Expiry = Date{Time: now.Add(-time.Hour)}
	if err := c.Validate(now, decimal.NewFromInt(400)); err != ErrCouponExpired {
		t.Fatalf("expected ErrCouponExpired, got %v", err)
	}
	c.Expiry = Date{Time: now.Add(time.Hour)}
	if err := c.Validate(now, decimal.NewFromInt(400)); err != nil {
		t.Fatalf("expected valid coupon, got %v", err)
	}
}

func TestDateDecoding(t *testing.T) {
	var payload struct {
		A Date `json:"a"`
		B Date `json:"b"`
		C Date `json:"c"`
	}
	raw := `{"a":"2025-03-10","b":"2025-03-10T08:00:00Z","c":"soon"}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	endOfDay := time.Date(2025, 3, 10, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !payload.A.Equal(endOfDay) {
		t.Fatalf("expected end of day, got %v", payload.A)
	}
	if payload.B.Hour() != 8 {
		t.Fatalf("unexpected timestamp %v", payload.B)
	}
	if !payload.C.IsZero() {
		t.Fatalf("expected zero date for garbage, got %v", payload.C)
	}
}

func TestFindByCode(t *testing.T) {
	list := []Coupon{{Code: "WELCOME50"}, {Code: "FEAST"}}
	c, err := FindByCode(list, " feast ")
	if err != nil || c.Code != "FEAST" {
		t.Fatalf("expected FEAST, got %+v %v", c, err)
	}
	if _, err := FindByCode(list, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
