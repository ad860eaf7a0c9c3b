package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/money"
)

// ConvenienceType tells how the convenience charge is derived.
type ConvenienceType string

const (
	// ConveniencePercentage charges a percentage of the item subtotal.
	ConveniencePercentage ConvenienceType = "percentage"
	// ConvenienceFlat charges a fixed amount.
	ConvenienceFlat ConvenienceType = "flat"
)

var hundred = decimal.NewFromInt(100)

// Rates are the charge parameters published by the backend.
type Rates struct {
	DeliveryFee      decimal.Decimal
	CgstPercent      decimal.Decimal
	SgstPercent      decimal.Decimal
	ConvenienceType  ConvenienceType
	ConvenienceValue decimal.Decimal
}

// Input describes everything needed to price a checkout.
type Input struct {
	Lines      []Line
	Rates      Rates
	PackingFee decimal.Decimal
	Discount   decimal.Decimal
	// Delivery is false for takeaway orders, which carry no delivery fee.
	Delivery bool
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	Delivery    decimal.Decimal `json:"delivery"`
	Packing     decimal.Decimal `json:"packing"`
	Cgst        decimal.Decimal `json:"cgst"`
	Sgst        decimal.Decimal `json:"sgst"`
	Convenience decimal.Decimal `json:"convenience"`
	Discount    decimal.Decimal `json:"discount"`
	Gross       decimal.Decimal `json:"gross"`
	Total       decimal.Decimal `json:"total"`
}

// Percent returns amount * percent / 100 rounded to paise.
func Percent(amount, percent decimal.Decimal) decimal.Decimal {
	if amount.Sign() <= 0 || percent.Sign() <= 0 {
		return decimal.Zero
	}
	return money.Round(amount.Mul(percent).Div(hundred))
}

// ConvenienceAmount is value percent of the subtotal for percentage charges,
// otherwise the flat value.
func ConvenienceAmount(subtotal decimal.Decimal, kind ConvenienceType, value decimal.Decimal) decimal.Decimal {
	if ConvenienceType(strings.ToLower(strings.TrimSpace(string(kind)))) == ConveniencePercentage {
		return Percent(subtotal, value)
	}
	return nonNegative(value)
}

// ComputeGrandTotal sums the item subtotal and every charge, then subtracts
// the discount. The result never drops below zero.
func ComputeGrandTotal(subtotal, delivery, packing, cgst, sgst, convenience, discount decimal.Decimal) decimal.Decimal {
	gross := grossOf(subtotal, delivery, packing, cgst, sgst, convenience)
	total := gross.Sub(nonNegative(discount))
	if total.Sign() < 0 {
		return decimal.Zero
	}
	return total
}

// Compute calculates the full bill. Taxes and the percentage convenience
// charge are taken on the pre-discount item subtotal.
func Compute(in Input) Summary {
	subtotal := Subtotal(in.Lines)
	delivery := decimal.Zero
	if in.Delivery {
		delivery = nonNegative(in.Rates.DeliveryFee)
	}
	packing := nonNegative(in.PackingFee)
	cgst := Percent(subtotal, in.Rates.CgstPercent)
	sgst := Percent(subtotal, in.Rates.SgstPercent)
	convenience := ConvenienceAmount(subtotal, in.Rates.ConvenienceType, in.Rates.ConvenienceValue)
	discount := nonNegative(in.Discount)
	return Summary{
		Subtotal:    subtotal,
		Delivery:    delivery,
		Packing:     packing,
		Cgst:        cgst,
		Sgst:        sgst,
		Convenience: convenience,
		Discount:    discount,
		Gross:       grossOf(subtotal, delivery, packing, cgst, sgst, convenience),
		Total:       ComputeGrandTotal(subtotal, delivery, packing, cgst, sgst, convenience, discount),
	}
}

func grossOf(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(nonNegative(amount))
	}
	return total
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.Sign() < 0 {
		return decimal.Zero
	}
	return d
}
