package ta

import (
	"math"
	"testing"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEMAWarmupAndConstantSeries(t *testing.T) {
	vals := []float64{5, 5, 5, 5, 5}
	got := EMA(vals, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("Expected NaN warm-up, got %v", got[:2])
	}
	for i := 2; i < len(got); i++ {
		if !almost(got[i], 5) {
			t.Errorf("Expected EMA 5 at %d, got %f", i, got[i])
		}
	}
}

func TestEMARecursion(t *testing.T) {
	got := EMA([]float64{1, 2, 3}, 1)
	// n=1 means alpha=1, EMA equals the input
	for i, want := range []float64{1, 2, 3} {
		if !almost(got[i], want) {
			t.Errorf("Expected %f at %d, got %f", want, i, got[i])
		}
	}

	got = EMA([]float64{0, 10}, 3)
	if !math.IsNaN(got[1]) {
		t.Errorf("Expected NaN before n values, got %f", got[1])
	}
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	got := RSI(up, 3)
	if !almost(got[5], 100) {
		t.Errorf("Expected RSI 100 on a rising series, got %f", got[5])
	}
	if !math.IsNaN(got[2]) {
		t.Errorf("Expected NaN before period, got %f", got[2])
	}

	down := []float64{6, 5, 4, 3, 2, 1}
	got = RSI(down, 3)
	if !almost(got[5], 0) {
		t.Errorf("Expected RSI 0 on a falling series, got %f", got[5])
	}
}

func TestRSIBalanced(t *testing.T) {
	got := RSI([]float64{1, 2, 1, 2, 1, 2, 1, 2}, 2)
	v := got[len(got)-1]
	if v <= 30 || v >= 100 {
		t.Errorf("Expected mid-range RSI, got %f", v)
	}
}

func TestATR(t *testing.T) {
	highs := []float64{11, 12, 13, 14}
	lows := []float64{9, 10, 11, 12}
	closes := []float64{10, 11, 12, 13}
	got := ATR(highs, lows, closes, 2)

	if !math.IsNaN(got[0]) {
		t.Errorf("Expected NaN warm-up, got %f", got[0])
	}
	// TR = 2 every bar
	for i := 1; i < 4; i++ {
		if !almost(got[i], 2) {
			t.Errorf("Expected ATR 2 at %d, got %f", i, got[i])
		}
	}

	if got := ATR(highs[:2], lows, closes, 2); !math.IsNaN(got[0]) {
		t.Error("Expected NaN series for mismatched inputs")
	}
}

func TestMACDConstantIsZero(t *testing.T) {
	vals := make([]float64, 60)
	for i := range vals {
		vals[i] = 100
	}
	macd, sig := MACD(vals, 12, 26, 9)
	if !math.IsNaN(macd[24]) || math.IsNaN(macd[25]) {
		t.Errorf("Expected MACD to start at index 25")
	}
	if !math.IsNaN(sig[32]) || math.IsNaN(sig[33]) {
		t.Errorf("Expected signal to start at index 33")
	}
	if !almost(macd[59], 0) || !almost(sig[59], 0) {
		t.Errorf("Expected zero MACD on constant series, got %f / %f", macd[59], sig[59])
	}
}

func TestMACDTrend(t *testing.T) {
	vals := make([]float64, 80)
	for i := range vals {
		vals[i] = float64(i)
	}
	macd, _ := MACD(vals, 12, 26, 9)
	if macd[79] <= 0 {
		t.Errorf("Expected positive MACD on uptrend, got %f", macd[79])
	}
}

func TestBollinger(t *testing.T) {
	mid, up, low := Bollinger([]float64{1, 2, 3}, 3, 2)
	if !math.IsNaN(mid[1]) {
		t.Error("Expected NaN warm-up")
	}
	sd := math.Sqrt(2.0 / 3.0)
	if !almost(mid[2], 2) || !almost(up[2], 2+2*sd) || !almost(low[2], 2-2*sd) {
		t.Errorf("Unexpected bands %f %f %f", mid[2], up[2], low[2])
	}
}
