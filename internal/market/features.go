package market

import (
	"math"
	"time"

	"futuresbot/internal/ta"
	"futuresbot/internal/types"
)

const (
	emaFast   = 12
	emaSlow   = 26
	rsiPeriod = 14
	atrPeriod = 14
	macdSig   = 9
	bbPeriod  = 20
	bbWidth   = 2.0
)

// indicatorRows turns a candle series into rows carrying the single
// timeframe indicators. Warm-up values are NaN.
func indicatorRows(candles []types.Candle) []types.FeatureRow {
	n := len(candles)
	opens, highs, lows, closes := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, c := range candles {
		opens[i], highs[i], lows[i], closes[i] = c.Open, c.High, c.Low, c.Close
	}

	fast := ta.EMA(closes, emaFast)
	slow := ta.EMA(closes, emaSlow)
	rsi := ta.RSI(closes, rsiPeriod)
	atr := ta.ATR(highs, lows, closes, atrPeriod)
	macd, sig := ta.MACD(closes, emaFast, emaSlow, macdSig)
	_, bbUp, bbLow := ta.Bollinger(closes, bbPeriod, bbWidth)

	rows := make([]types.FeatureRow, n)
	for i, c := range candles {
		rows[i] = types.FeatureRow{
			Time:    time.UnixMilli(c.Ts).UTC(),
			Open:    c.Open,
			High:    c.High,
			Low:     c.Low,
			Close:   c.Close,
			Volume:  c.Vol,
			EMAFast: fast[i],
			EMASlow: slow[i],
			RSI:     rsi[i],
			ATR:     atr[i],
			MACD:    macd[i],
			MACDSig: sig[i],
			BBLow:   bbLow[i],
			BBHigh:  bbUp[i],
		}
	}
	return rows
}

// asOf returns, for each base time, the index of the latest higher
// timeframe row opened at or before it, or -1.
func asOf(base, higher []types.FeatureRow) []int {
	idx := make([]int, len(base))
	j := -1
	for i, r := range base {
		for j+1 < len(higher) && !higher[j+1].Time.After(r.Time) {
			j++
		}
		idx[i] = j
	}
	return idx
}

// mergeFrames forward-fills the 1h RSI and 4h EMAs onto the base rows, sets
// Target from the next close and drops rows with any missing feature.
func mergeFrames(base, h1, h4 []types.FeatureRow) []types.FeatureRow {
	merged := make([]types.FeatureRow, len(base))
	copy(merged, base)

	i1, i4 := asOf(merged, h1), asOf(merged, h4)
	for i := range merged {
		merged[i].RSI1h, merged[i].EMAFast4h, merged[i].EMASlow4h = math.NaN(), math.NaN(), math.NaN()
		if k := i1[i]; k >= 0 {
			merged[i].RSI1h = h1[k].RSI
		}
		if k := i4[i]; k >= 0 {
			merged[i].EMAFast4h = h4[k].EMAFast
			merged[i].EMASlow4h = h4[k].EMASlow
		}
		if i+1 < len(merged) && merged[i+1].Close > merged[i].Close {
			merged[i].Target = 1
		}
	}

	out := merged[:0]
	for _, r := range merged {
		if complete(r) {
			out = append(out, r)
		}
	}
	return out
}

func complete(r types.FeatureRow) bool {
	for _, v := range []float64{
		r.EMAFast, r.EMASlow, r.RSI, r.ATR, r.MACD, r.MACDSig,
		r.BBLow, r.BBHigh, r.RSI1h, r.EMAFast4h, r.EMASlow4h,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
