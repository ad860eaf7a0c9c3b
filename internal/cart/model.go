package cart

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/food-checkout/internal/pricing"
)

// MaxQuantity caps the quantity of a single line.
const MaxQuantity = 99

var lineNamespace = uuid.MustParse("6f1c3a4e-6b1d-4c61-9f3e-2f0d8a7b5c10")

// LineItem is one distinct entry in the cart.
type LineItem struct {
	ID             string            `json:"id"`
	LineID         string            `json:"lineId"`
	Name           string            `json:"name"`
	Image          string            `json:"image,omitempty"`
	Quantity       int               `json:"quantity"`
	SelectedOption pricing.Option    `json:"selectedOption,omitempty"`
	HasVariation   bool              `json:"hasVariation"`
	PriceInfo      pricing.PriceInfo `json:"priceInfo"`
	UnitPrice      decimal.Decimal   `json:"unitPrice"`
	SelectedAddOns []pricing.AddOn   `json:"selectedAddOns"`
	Note           string            `json:"note,omitempty"`
	TotalPrice     decimal.Decimal   `json:"totalPrice"`
}

// Pricing returns the inputs pricing needs for this line.
func (li LineItem) Pricing() pricing.Line {
	return pricing.Line{
		PriceInfo: li.PriceInfo,
		UnitPrice: li.UnitPrice,
		Option:    li.SelectedOption,
		AddOns:    li.SelectedAddOns,
		Quantity:  li.Quantity,
	}
}

// Matches reports whether ref addresses this line, either by product id or
// by line id.
func (li LineItem) Matches(ref string) bool {
	ref = strings.TrimSpace(ref)
	return ref != "" && (li.ID == ref || li.LineID == ref)
}

// MergeKey identifies lines that collapse into one on add: same product,
// same option and the same serialized add-on sequence.
func MergeKey(id string, option pricing.Option, addOns []pricing.AddOn) string {
	serialized := []byte("[]")
	if len(addOns) > 0 {
		if b, err := json.Marshal(addOns); err == nil {
			serialized = b
		}
	}
	return id + "\x1f" + string(option.Normalize()) + "\x1f" + string(serialized)
}

// LineIDFor derives the stable line id of a merge key.
func LineIDFor(key string) string {
	return uuid.NewSHA1(lineNamespace, []byte(key)).String()
}

// normalize fills the derived fields of an item about to enter the cart.
func normalize(item LineItem) LineItem {
	item.ID = strings.TrimSpace(item.ID)
	item.SelectedOption = item.SelectedOption.Normalize()
	item.Quantity = clampQuantity(item.Quantity)
	if !item.PriceInfo.Empty() {
		item.UnitPrice = pricing.UnitPrice(item.PriceInfo, item.SelectedOption)
	}
	if len(item.SelectedAddOns) > 0 {
		item.SelectedAddOns = append([]pricing.AddOn(nil), item.SelectedAddOns...)
	} else {
		item.SelectedAddOns = []pricing.AddOn{}
	}
	item.LineID = LineIDFor(MergeKey(item.ID, item.SelectedOption, item.SelectedAddOns))
	item.TotalPrice = pricing.LineItemTotal(item.Pricing())
	return item
}

func clampQuantity(q int) int {
	switch {
	case q < 1:
		return 1
	case q > MaxQuantity:
		return MaxQuantity
	}
	return q
}

func (li LineItem) reprice() LineItem {
	li.TotalPrice = pricing.LineItemTotal(li.Pricing())
	return li
}
