package exchange

import (
	"github.com/shopspring/decimal"
)

const maxPlaces = 12

// decimalPlaces returns the number of significant decimals in a step such
// as "0.10" (1) or "0.001" (3).
func decimalPlaces(step string) (int, error) {
	d, err := decimal.NewFromString(step)
	if err != nil {
		return 0, err
	}
	for p := int32(0); p < maxPlaces; p++ {
		if d.Round(p).Equal(d) {
			return int(p), nil
		}
	}
	return maxPlaces, nil
}

// formatQty truncates so the order never exceeds the requested size.
func formatQty(qty float64, places int) string {
	return decimal.NewFromFloat(qty).Truncate(int32(places)).StringFixed(int32(places))
}

func formatPrice(price float64, places int) string {
	return decimal.NewFromFloat(price).StringFixed(int32(places))
}

func parseDecimal(s string) float64 {
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
