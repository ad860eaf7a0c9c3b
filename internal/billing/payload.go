package billing

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/cart"
	"github.com/noah-isme/food-checkout/internal/coupon"
	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/pricing"
	"github.com/noah-isme/food-checkout/internal/user"
)

var (
	// ErrMissingUser is returned when no user id is supplied.
	ErrMissingUser = errors.New("billing: user id is required")
	// ErrMissingAddress is returned when no delivery address is selected.
	ErrMissingAddress = errors.New("billing: address is required")
	// ErrEmptyCart is returned when there are no cart items to bill.
	ErrEmptyCart = errors.New("billing: cart is empty")
	// ErrMissingRestaurant is returned when the restaurant id is absent.
	ErrMissingRestaurant = errors.New("billing: restaurant id is required")
	// ErrCouponNotEligible wraps coupon validation failures at submission.
	ErrCouponNotEligible = errors.New("billing: coupon not eligible")
)

// Cash on delivery is the only payment method.
const (
	PaymentMethodCOD     = "COD"
	PaymentStatusPending = "Pending"
)

// ExperienceType is how the customer receives the order.
type ExperienceType string

const (
	ExperienceDelivery ExperienceType = "delivery"
	ExperienceTakeaway ExperienceType = "takeaway"
	ExperienceDineIn   ExperienceType = "dinein"
)

// ParseExperience normalizes raw; anything unknown is delivery.
func ParseExperience(raw string) ExperienceType {
	switch ExperienceType(strings.ToLower(strings.TrimSpace(raw))) {
	case ExperienceTakeaway:
		return ExperienceTakeaway
	case ExperienceDineIn:
		return ExperienceDineIn
	default:
		return ExperienceDelivery
	}
}

// AddOnDetail is an add-on as sent to the backend.
type AddOnDetail struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
	Type     string  `json:"type,omitempty"`
	Quantity int     `json:"quantity"`
}

// FoodDetail is one billed line.
type FoodDetail struct {
	FoodID    string        `json:"foodId"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	Variant   string        `json:"variant,omitempty"`
	UnitPrice float64       `json:"unitPrice"`
	HalfPrice *float64      `json:"halfPrice,omitempty"`
	FullPrice *float64      `json:"fullPrice,omitempty"`
	AddOns    []AddOnDetail `json:"addOns"`
	Price     float64       `json:"price"`
	Note      string        `json:"note,omitempty"`
}

// Payload is the body of the backend's create-billing call.
type Payload struct {
	UserID             string         `json:"userId"`
	RestaurantID       string         `json:"restaurantId"`
	AddressID          string         `json:"addressId"`
	BillingName        string         `json:"billingName"`
	BillingMobile      string         `json:"billingMobile"`
	ExperienceType     ExperienceType `json:"experienceType"`
	FoodDetails        []FoodDetail   `json:"foodDetails"`
	DeliveryCharges    float64        `json:"deliveryCharges"`
	PackingCharges     float64        `json:"packingCharges"`
	Cgst               float64        `json:"cgst"`
	Sgst               float64        `json:"sgst"`
	ConvenienceCharges float64        `json:"convenienceCharges"`
	CouponCode         string         `json:"couponCode,omitempty"`
	Discount           float64        `json:"discount"`
	GrossAmount        float64        `json:"grossAmount"`
	TotalAmount        float64        `json:"totalAmount"`
	PaymentMethod      string         `json:"paymentMethod"`
	PaymentStatus      string         `json:"paymentStatus"`
}

// Input is everything needed to bill one checkout.
type Input struct {
	UserID       string
	RestaurantID string
	Address      *user.Address
	Experience   ExperienceType
	Items        []cart.LineItem
	Rates        pricing.Rates
	PackingFee   decimal.Decimal
	Coupon       *coupon.Coupon
	Now          time.Time
}

// Check reports the first missing identity field.
func (in Input) Check() error {
	switch {
	case strings.TrimSpace(in.UserID) == "":
		return ErrMissingUser
	case in.Address == nil || strings.TrimSpace(in.Address.ID) == "":
		return ErrMissingAddress
	case len(in.Items) == 0:
		return ErrEmptyCart
	case strings.TrimSpace(in.RestaurantID) == "":
		return ErrMissingRestaurant
	}
	return nil
}

// Quote prices the input without requiring identity. The coupon discount is
// evaluated against the live subtotal.
func Quote(in Input) pricing.Summary {
	lines := make([]pricing.Line, 0, len(in.Items))
	for _, item := range in.Items {
		lines = append(lines, item.Pricing())
	}
	subtotal := pricing.Subtotal(lines)
	return pricing.Compute(pricing.Input{
		Lines:      lines,
		Rates:      in.Rates,
		PackingFee: in.PackingFee,
		Discount:   coupon.EligibleDiscount(in.Coupon, subtotal),
		Delivery:   ParseExperience(string(in.Experience)) == ExperienceDelivery,
	})
}

// BuildPayload validates identity, re-validates the coupon against the live
// subtotal and assembles the outbound payload.
func BuildPayload(in Input) (Payload, pricing.Summary, error) {
	if err := in.Check(); err != nil {
		return Payload{}, pricing.Summary{}, err
	}
	summary := Quote(in)
	if in.Coupon != nil {
		now := in.Now
		if now.IsZero() {
			now = time.Now()
		}
		if err := in.Coupon.Validate(now, summary.Subtotal); err != nil {
			return Payload{}, pricing.Summary{}, errors.Join(ErrCouponNotEligible, err)
		}
	}
	p := Payload{
		UserID:             in.UserID,
		RestaurantID:       in.RestaurantID,
		AddressID:          in.Address.ID,
		BillingName:        in.Address.Name,
		BillingMobile:      in.Address.MobileNumber,
		ExperienceType:     ParseExperience(string(in.Experience)),
		FoodDetails:        make([]FoodDetail, 0, len(in.Items)),
		DeliveryCharges:    summary.Delivery.InexactFloat64(),
		PackingCharges:     summary.Packing.InexactFloat64(),
		Cgst:               summary.Cgst.InexactFloat64(),
		Sgst:               summary.Sgst.InexactFloat64(),
		ConvenienceCharges: summary.Convenience.InexactFloat64(),
		Discount:           summary.Discount.InexactFloat64(),
		GrossAmount:        summary.Gross.InexactFloat64(),
		TotalAmount:        summary.Total.InexactFloat64(),
		PaymentMethod:      PaymentMethodCOD,
		PaymentStatus:      PaymentStatusPending,
	}
	if in.Coupon != nil {
		p.CouponCode = in.Coupon.Code
	}
	for _, item := range in.Items {
		p.FoodDetails = append(p.FoodDetails, foodDetail(item))
	}
	return p, summary, nil
}

func foodDetail(item cart.LineItem) FoodDetail {
	line := item.Pricing()
	unit := item.UnitPrice
	if !item.PriceInfo.Empty() {
		unit = pricing.UnitPrice(item.PriceInfo, item.SelectedOption)
	}
	fd := FoodDetail{
		FoodID:    item.ID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		UnitPrice: unit.InexactFloat64(),
		HalfPrice: optionalFloat(item.PriceInfo.HalfPrice),
		FullPrice: optionalFloat(item.PriceInfo.FullPrice),
		AddOns:    make([]AddOnDetail, 0, len(item.SelectedAddOns)),
		Price:     pricing.LineItemTotal(line).InexactFloat64(),
		Note:      item.Note,
	}
	if item.HasVariation {
		fd.Variant = string(item.SelectedOption.Normalize())
	}
	for _, addOn := range item.SelectedAddOns {
		qty := 1
		if addOn.Quantity != nil && *addOn.Quantity > 0 {
			qty = *addOn.Quantity
		}
		fd.AddOns = append(fd.AddOns, AddOnDetail{
			Name:     addOn.Name,
			Price:    addOn.Price.OrZero().InexactFloat64(),
			Image:    addOn.Image,
			Type:     addOn.Type,
			Quantity: qty,
		})
	}
	return fd
}

func optionalFloat(a money.Amount) *float64 {
	if !a.Valid {
		return nil
	}
	v := a.Value.InexactFloat64()
	return &v
}
