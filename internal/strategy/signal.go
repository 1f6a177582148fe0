// Package strategy combines indicator rules with the model probability into
// entry and exit flags.
//
// Each exit condition shares its MACD comparison with the opposite side's
// entry rule: ExitL fires on MACD < MACDSig like RuleShort, and ExitS on
// MACD > MACDSig like RuleLong. A row that qualifies for one side therefore
// also flags an exit of the other side. Callers that act on exits while
// holding will see that whipsaw; it is left as is.
package strategy

import "futuresbot/internal/types"

// Thresholds are probability cut-offs, conventionally Short < Sell < Buy.
type Thresholds struct {
	Buy   float64
	Sell  float64
	Short float64
}

// Enrich returns a copy of rows with the rule and signal flags set. The
// input slice is not modified.
func Enrich(rows []types.FeatureRow, th Thresholds) []types.FeatureRow {
	out := make([]types.FeatureRow, len(rows))
	for i, r := range rows {
		out[i] = evaluate(r, th)
	}
	return out
}

func evaluate(r types.FeatureRow, th Thresholds) types.FeatureRow {
	r.RuleLong = r.EMAFast > r.EMASlow && r.RSI < 40 && r.MACD > r.MACDSig
	r.RuleShort = r.EMAFast < r.EMASlow && r.RSI > 60 && r.MACD < r.MACDSig

	r.Long = r.RuleLong && r.ProbUp > th.Buy
	r.Short = r.RuleShort && r.ProbUp < th.Short

	r.ExitL = r.ProbUp < th.Sell || r.RSI > 70 || r.MACD < r.MACDSig
	r.ExitS = r.ProbUp > th.Buy || r.RSI < 30 || r.MACD > r.MACDSig
	return r
}
