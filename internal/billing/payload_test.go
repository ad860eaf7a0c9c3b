package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/food-checkout/internal/cart"
	"github.com/noah-isme/food-checkout/internal/coupon"
	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/pricing"
	"github.com/noah-isme/food-checkout/internal/user"
)

type countingGateway struct{ calls int }

func (g *countingGateway) CreateBilling(context.Context, Payload) (Order, error) {
	g.calls++
	return Order{ID: "o-1"}, nil
}

func sampleInput() Input {
	st := cart.Reduce(cart.State{}, cart.AddToCart(cart.LineItem{
		ID: "f1", Name: "Dosa", Quantity: 2,
		PriceInfo: pricing.PriceInfo{StaticPrice: money.FromInt(300)},
	}))
	return Input{
		UserID:       "u-1",
		RestaurantID: "r-1",
		Address:      &user.Address{ID: "a-1", Name: "Asha", MobileNumber: "98765"},
		Experience:   ExperienceDelivery,
		Items:        st.Items,
		Rates:        pricing.Rates{DeliveryFee: decimal.NewFromInt(30)},
		Now:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSubmitWithoutAddressMakesNoCall(t *testing.T) {
	gw := &countingGateway{}
	in := sampleInput()
	in.Address = nil

	_, err := Submitter{Gateway: gw}.Submit(context.Background(), in)
	require.ErrorIs(t, err, ErrMissingAddress)
	require.Zero(t, gw.calls)
}

func TestCheckReportsMissingIdentity(t *testing.T) {
	in := sampleInput()
	in.UserID = " "
	require.ErrorIs(t, in.Check(), ErrMissingUser)

	in = sampleInput()
	in.Items = nil
	require.ErrorIs(t, in.Check(), ErrEmptyCart)

	in = sampleInput()
	in.RestaurantID = ""
	require.ErrorIs(t, in.Check(), ErrMissingRestaurant)
}

func TestPercentageCouponUsesLiveSubtotal(t *testing.T) {
	in := sampleInput()
	in.Coupon = &coupon.Coupon{Code: "TEN", DiscountType: "percentage", DiscountValue: money.FromInt(10), MinOrderAmount: money.FromInt(500)}

	p, summary, err := BuildPayload(in)
	require.NoError(t, err)
	require.Equal(t, "TEN", p.CouponCode)
	require.True(t, decimal.NewFromInt(60).Equal(summary.Discount))
	require.Equal(t, 570.0, p.TotalAmount)

	in.Items = cart.Reduce(cart.State{Items: in.Items}, cart.UpdateQuantity("f1", 1)).Items
	_, _, err = BuildPayload(in)
	require.True(t, errors.Is(err, ErrCouponNotEligible))
	require.True(t, errors.Is(err, coupon.ErrMinimumOrderUnmet))
}

func TestExpiredCouponRejected(t *testing.T) {
	in := sampleInput()
	in.Coupon = &coupon.Coupon{Code: "OLD", DiscountValue: money.FromInt(10), Expiry: coupon.Date{Time: in.Now.Add(-time.Hour)}}
	_, _, err := BuildPayload(in)
	require.ErrorIs(t, err, coupon.ErrCouponExpired)
	require.True(t, IsValidation(err))
}

func TestParseExperience(t *testing.T) {
	require.Equal(t, ExperienceTakeaway, ParseExperience(" Takeaway "))
	require.Equal(t, ExperienceDineIn, ParseExperience("dinein"))
	require.Equal(t, ExperienceDelivery, ParseExperience("drone"))
}
