package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/food-checkout/internal/money"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got.String())
}

func intPtr(v int) *int { return &v }

func TestUnitPriceStaticWinsOverOption(t *testing.T) {
	info := PriceInfo{StaticPrice: money.FromInt(100)}
	requireDecimal(t, "100", UnitPrice(info, OptionHalf))
	requireDecimal(t, "100", UnitPrice(info, OptionFull))
	requireDecimal(t, "100", UnitPrice(info, ""))
}

func TestUnitPriceVariation(t *testing.T) {
	info := PriceInfo{HalfPrice: money.FromInt(80), FullPrice: money.FromInt(150)}
	requireDecimal(t, "80", UnitPrice(info, OptionHalf))
	requireDecimal(t, "80", UnitPrice(info, "HALF"))
	requireDecimal(t, "150", UnitPrice(info, OptionFull))
}

func TestUnitPriceMissingFieldsAreZero(t *testing.T) {
	requireDecimal(t, "0", UnitPrice(PriceInfo{}, OptionHalf))
	requireDecimal(t, "0", UnitPrice(PriceInfo{FullPrice: money.FromInt(150)}, OptionHalf))
}

func TestLineItemTotalWithAddOns(t *testing.T) {
	line := Line{
		UnitPrice: dec("100"),
		Quantity:  2,
		AddOns: []AddOn{
			{Name: "cheese", Price: money.FromInt(20)},
			{Name: "dip", Price: money.FromInt(10)},
		},
	}
	requireDecimal(t, "260", LineItemTotal(line))
}

func TestLineItemTotalUsesPriceInfoAndAddOnQuantity(t *testing.T) {
	line := Line{
		PriceInfo: PriceInfo{HalfPrice: money.FromInt(80), FullPrice: money.FromInt(150)},
		UnitPrice: dec("999"),
		Option:    OptionHalf,
		Quantity:  3,
		AddOns:    []AddOn{{Name: "raita", Price: money.FromInt(15), Quantity: intPtr(2)}},
	}
	// (80 + 15*2) * 3
	requireDecimal(t, "330", LineItemTotal(line))
}

func TestComputeGrandTotal(t *testing.T) {
	got := ComputeGrandTotal(dec("1000"), dec("40"), dec("20"), dec("25"), dec("25"), dec("10"), dec("60"))
	requireDecimal(t, "1060", got)
}

func TestComputeGrandTotalFlooredAtZero(t *testing.T) {
	got := ComputeGrandTotal(dec("100"), decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, dec("500"))
	requireDecimal(t, "0", got)
}

func TestConvenienceAmount(t *testing.T) {
	requireDecimal(t, "20", ConvenienceAmount(dec("1000"), ConveniencePercentage, dec("2")))
	requireDecimal(t, "15", ConvenienceAmount(dec("1000"), ConvenienceFlat, dec("15")))
	requireDecimal(t, "15", ConvenienceAmount(dec("1000"), "", dec("15")))
}

func TestComputeSummary(t *testing.T) {
	in := Input{
		Lines: []Line{
			{UnitPrice: dec("250"), Quantity: 2},
			{PriceInfo: PriceInfo{StaticPrice: money.FromInt(500)}, Quantity: 1},
		},
		Rates: Rates{
			DeliveryFee:      dec("40"),
			CgstPercent:      dec("2.5"),
			SgstPercent:      dec("2.5"),
			ConvenienceType:  ConveniencePercentage,
			ConvenienceValue: dec("1"),
		},
		PackingFee: dec("20"),
		Discount:   dec("60"),
		Delivery:   true,
	}
	s := Compute(in)
	requireDecimal(t, "1000", s.Subtotal)
	requireDecimal(t, "40", s.Delivery)
	requireDecimal(t, "20", s.Packing)
	requireDecimal(t, "25", s.Cgst)
	requireDecimal(t, "25", s.Sgst)
	requireDecimal(t, "10", s.Convenience)
	requireDecimal(t, "1120", s.Gross)
	requireDecimal(t, "1060", s.Total)

	in.Delivery = false
	s = Compute(in)
	requireDecimal(t, "0", s.Delivery)
	requireDecimal(t, "1020", s.Total)
}

func TestPercentRoundsToPaise(t *testing.T) {
	requireDecimal(t, "2.47", Percent(dec("98.75"), dec("2.5")))
}
