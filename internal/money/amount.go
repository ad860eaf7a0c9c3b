package money

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an optional decimal decoded leniently from JSON. Numbers and
// numeric strings are accepted; null, empty strings and anything non-numeric
// decode as an absent amount rather than an error.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// Of returns a present amount.
func Of(d decimal.Decimal) Amount {
	return Amount{Value: d, Valid: true}
}

// FromInt returns a present amount for a whole number of currency units.
func FromInt(v int64) Amount {
	return Of(decimal.NewFromInt(v))
}

// FromFloat returns a present amount for the provided float.
func FromFloat(v float64) Amount {
	return Of(decimal.NewFromFloat(v))
}

// OrZero returns the value or zero when absent.
func (a Amount) OrZero() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		// decode from the literal to avoid float rounding
		if d, err := decimal.NewFromString(string(trimmed)); err == nil {
			*a = Of(d)
			return nil
		}
		*a = Of(decimal.NewFromFloat(v))
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			*a = Of(d)
		}
	}
	return nil
}

// MarshalJSON encodes the amount as a JSON number, or null when absent.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

// Round rounds to the two decimal places used for paise.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
