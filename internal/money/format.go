package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// DefaultCurrency is the ISO code used when none is configured.
	DefaultCurrency = "INR"
	// DefaultLocale is the BCP 47 tag used when none is configured.
	DefaultLocale = "en-IN"
	fallbackSymbol = "₹"
)

// Formatter renders amounts as localized currency strings.
type Formatter struct {
	Currency string
	Locale   string
}

// DefaultFormatter formats rupee amounts for the Indian English locale.
var DefaultFormatter = Formatter{Currency: DefaultCurrency, Locale: DefaultLocale}

// FormatCurrency renders amount with the default formatter.
func FormatCurrency(amount decimal.Decimal) string {
	return DefaultFormatter.Format(amount)
}

// Format renders amount as a localized currency string. It never panics: if
// the locale or currency cannot be resolved, or formatting fails, the result
// is the fallback symbol followed by the amount fixed to two decimals.
func (f Formatter) Format(amount decimal.Decimal) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fallback(amount)
		}
	}()
	tag, err := language.Parse(valueOr(f.Locale, DefaultLocale))
	if err != nil {
		return fallback(amount)
	}
	unit, err := currency.ParseISO(valueOr(f.Currency, DefaultCurrency))
	if err != nil {
		return fallback(amount)
	}
	value, _ := amount.Round(2).Float64()
	p := message.NewPrinter(tag)
	formatted := strings.TrimSpace(p.Sprint(currency.Symbol(unit.Amount(value))))
	if formatted == "" {
		return fallback(amount)
	}
	return formatted
}

func fallback(amount decimal.Decimal) string {
	return fallbackSymbol + amount.StringFixed(2)
}

func valueOr(value, def string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return def
}
