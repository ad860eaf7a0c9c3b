package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/money"
)

// Option selects one of the two price points of a variation product.
type Option string

const (
	// OptionHalf selects the half portion price.
	OptionHalf Option = "half"
	// OptionFull selects the full portion price.
	OptionFull Option = "full"
)

// Normalize lowercases the option; unknown values are kept so they still
// participate in line identity.
func (o Option) Normalize() Option {
	return Option(strings.ToLower(strings.TrimSpace(string(o))))
}

// PriceInfo is a food's price model: either a static price or a half/full
// variation pair.
type PriceInfo struct {
	StaticPrice money.Amount `json:"staticPrice"`
	HalfPrice   money.Amount `json:"halfPrice"`
	FullPrice   money.Amount `json:"fullPrice"`
}

// Empty reports whether no price field is present.
func (p PriceInfo) Empty() bool {
	return !p.StaticPrice.Valid && !p.HalfPrice.Valid && !p.FullPrice.Valid
}

// AddOn is an extra selected for a line item.
type AddOn struct {
	Name     string       `json:"name"`
	Price    money.Amount `json:"price"`
	Image    string       `json:"image,omitempty"`
	Type     string       `json:"type,omitempty"`
	Quantity *int         `json:"quantity,omitempty"`
}

func (a AddOn) qty() int64 {
	if a.Quantity == nil || *a.Quantity <= 0 {
		return 1
	}
	return int64(*a.Quantity)
}

// Line carries the inputs needed to price one cart line.
type Line struct {
	PriceInfo PriceInfo
	UnitPrice decimal.Decimal
	Option    Option
	AddOns    []AddOn
	Quantity  int
}

// UnitPrice resolves the per-unit price of a food. A static price wins over
// the variation pair; otherwise half selects HalfPrice and anything else
// FullPrice. Missing fields count as zero.
func UnitPrice(info PriceInfo, option Option) decimal.Decimal {
	if info.StaticPrice.Valid {
		return info.StaticPrice.Value
	}
	if option.Normalize() == OptionHalf {
		return info.HalfPrice.OrZero()
	}
	return info.FullPrice.OrZero()
}

// AddOnsTotal sums add-on prices times their quantity (default 1).
func AddOnsTotal(addOns []AddOn) decimal.Decimal {
	total := decimal.Zero
	for _, addOn := range addOns {
		total = total.Add(addOn.Price.OrZero().Mul(decimal.NewFromInt(addOn.qty())))
	}
	return total
}

// LineItemTotal is what one cart line costs:
// (unit price + add-ons) * quantity. When the line carries no price model the
// stored unit price is used instead.
func LineItemTotal(line Line) decimal.Decimal {
	base := line.UnitPrice
	if !line.PriceInfo.Empty() {
		base = UnitPrice(line.PriceInfo, line.Option)
	}
	qty := line.Quantity
	if qty < 0 {
		qty = 0
	}
	return base.Add(AddOnsTotal(line.AddOns)).Mul(decimal.NewFromInt(int64(qty)))
}

// Subtotal sums LineItemTotal across lines.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineItemTotal(line))
	}
	return total
}
