// Package ta computes indicator series aligned with their input. Warm-up
// positions hold NaN.
package ta

import "math"

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// EMA is the recursive exponential average with alpha = 2/(n+1), seeded
// with the first value. The first n-1 positions are NaN.
func EMA(vals []float64, n int) []float64 {
	out := nanSeries(len(vals))
	if n <= 0 || len(vals) < n {
		return out
	}
	alpha := 2.0 / float64(n+1)
	ema := vals[0]
	for i, v := range vals {
		if i > 0 {
			ema = alpha*v + (1-alpha)*ema
		}
		if i >= n-1 {
			out[i] = ema
		}
	}
	return out
}

// emaValid runs EMA over the non-NaN tail of vals.
func emaValid(vals []float64, n int) []float64 {
	start := 0
	for start < len(vals) && math.IsNaN(vals[start]) {
		start++
	}
	out := nanSeries(len(vals))
	copy(out[start:], EMA(vals[start:], n))
	return out
}

// RSI uses Wilder smoothing (alpha = 1/period) of gains and losses.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	alpha := 1.0 / float64(period)
	var avgUp, avgDown float64
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		up, down := math.Max(d, 0), math.Max(-d, 0)
		if i == 1 {
			avgUp, avgDown = up, down
		} else {
			avgUp = alpha*up + (1-alpha)*avgUp
			avgDown = alpha*down + (1-alpha)*avgDown
		}
		if i >= period {
			if avgDown == 0 {
				out[i] = 100
			} else {
				out[i] = 100 - 100/(1+avgUp/avgDown)
			}
		}
	}
	return out
}

// ATR seeds with the mean true range of the first period bars and then
// applies Wilder smoothing.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSeries(n)
	if len(highs) != n || len(lows) != n || period <= 0 || n < period {
		return out
	}
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		tr[i] = highs[i] - lows[i]
		if i > 0 {
			tr[i] = math.Max(tr[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		}
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)
	out[period-1] = atr
	for i := period; i < n; i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// MACD returns the fast-slow EMA difference and its signal EMA.
func MACD(closes []float64, fast, slow, signal int) (macd, sig []float64) {
	f := EMA(closes, fast)
	s := EMA(closes, slow)
	macd = nanSeries(len(closes))
	for i := range closes {
		if !math.IsNaN(f[i]) && !math.IsNaN(s[i]) {
			macd[i] = f[i] - s[i]
		}
	}
	return macd, emaValid(macd, signal)
}

// Bollinger returns the n-period SMA and the bands k population standard
// deviations away.
func Bollinger(closes []float64, n int, k float64) (mid, up, low []float64) {
	mid, up, low = nanSeries(len(closes)), nanSeries(len(closes)), nanSeries(len(closes))
	if n <= 0 {
		return
	}
	for i := n - 1; i < len(closes); i++ {
		window := closes[i-n+1 : i+1]
		m := 0.0
		for _, v := range window {
			m += v
		}
		m /= float64(n)
		ss := 0.0
		for _, v := range window {
			ss += (v - m) * (v - m)
		}
		sd := math.Sqrt(ss / float64(n))
		mid[i], up[i], low[i] = m, m+k*sd, m-k*sd
	}
	return
}
