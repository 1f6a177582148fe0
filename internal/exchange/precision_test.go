package exchange

import "testing"

func TestDecimalPlaces(t *testing.T) {
	tests := map[string]int{
		"1":      0,
		"0.10":   1,
		"0.01":   2,
		"0.001":  3,
		"0.0005": 4,
	}
	for step, want := range tests {
		got, err := decimalPlaces(step)
		if err != nil {
			t.Fatalf("decimalPlaces(%q): %v", step, err)
		}
		if got != want {
			t.Errorf("decimalPlaces(%q): expected %d, got %d", step, want, got)
		}
	}

	if _, err := decimalPlaces("abc"); err == nil {
		t.Error("Expected error for invalid step")
	}
}

func TestFormatQtyTruncates(t *testing.T) {
	if got := formatQty(0.0199, 3); got != "0.019" {
		t.Errorf("Expected 0.019, got %s", got)
	}
	if got := formatQty(2, 3); got != "2.000" {
		t.Errorf("Expected 2.000, got %s", got)
	}
}

func TestFormatPriceRounds(t *testing.T) {
	if got := formatPrice(52510.56, 1); got != "52510.6" {
		t.Errorf("Expected 52510.6, got %s", got)
	}
}

func TestVenueSymbol(t *testing.T) {
	for in, want := range map[string]string{
		"BTC/USDT":      "BTCUSDT",
		"eth/usdt":      "ETHUSDT",
		"BTC/USDT:USDT": "BTCUSDT",
		"SOLUSDT":       "SOLUSDT",
	} {
		if got := venueSymbol(in); got != want {
			t.Errorf("venueSymbol(%q): expected %s, got %s", in, want, got)
		}
	}
}
