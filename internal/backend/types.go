package backend

import (
	"encoding/json"
	"strings"

	"github.com/noah-isme/food-checkout/internal/money"
	"github.com/noah-isme/food-checkout/internal/pricing"
)

// envelope is the backend's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DeliverySettings are the charge parameters published by the backend.
type DeliverySettings struct {
	DeliveryChargesValue    money.Amount `json:"delivery_charges_value"`
	Cgst                    money.Amount `json:"Cgst"`
	Sgst                    money.Amount `json:"Sgst"`
	ConvenienceChargesType  string       `json:"convenience_charges_type" validate:"omitempty,oneof=percentage flat"`
	ConvenienceChargesValue money.Amount `json:"convenience_charges_value"`
	MinimumDistance         money.Amount `json:"minimum_distance"`
}

// normalize applies fallbacks: negative amounts are dropped and an unknown
// convenience type is treated as flat.
func (d DeliverySettings) normalize() DeliverySettings {
	for _, a := range []*money.Amount{&d.DeliveryChargesValue, &d.Cgst, &d.Sgst, &d.ConvenienceChargesValue, &d.MinimumDistance} {
		if a.Valid && a.Value.Sign() < 0 {
			*a = money.Amount{}
		}
	}
	d.ConvenienceChargesType = strings.ToLower(strings.TrimSpace(d.ConvenienceChargesType))
	if d.ConvenienceChargesType != string(pricing.ConveniencePercentage) {
		d.ConvenienceChargesType = string(pricing.ConvenienceFlat)
	}
	return d
}

// Rates converts the settings into pricing rates.
func (d DeliverySettings) Rates() pricing.Rates {
	return pricing.Rates{
		DeliveryFee:      d.DeliveryChargesValue.OrZero(),
		CgstPercent:      d.Cgst.OrZero(),
		SgstPercent:      d.Sgst.OrZero(),
		ConvenienceType:  pricing.ConvenienceType(d.ConvenienceChargesType),
		ConvenienceValue: d.ConvenienceChargesValue.OrZero(),
	}
}

// Restaurant is the subset of restaurant data checkout needs.
type Restaurant struct {
	ID             string       `json:"_id" validate:"required"`
	Name           string       `json:"name"`
	PackingCharges money.Amount `json:"packing_charges"`
}
