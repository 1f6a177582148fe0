package strategy

import (
	"math/rand"
	"testing"

	"futuresbot/internal/types"
)

var th = Thresholds{Buy: 0.65, Sell: 0.40, Short: 0.35}

func TestEnrichLongEntry(t *testing.T) {
	rows := []types.FeatureRow{{EMAFast: 101, EMASlow: 100, RSI: 35, MACD: 1.2, MACDSig: 1.0, ProbUp: 0.7}}
	got := Enrich(rows, th)[0]

	if !got.RuleLong || !got.Long {
		t.Fatalf("Expected long signal, got %+v", got)
	}
	if got.RuleShort || got.Short {
		t.Error("Expected no short signal")
	}
	// MACD above signal also satisfies the short-exit rule
	if !got.ExitS {
		t.Error("Expected ExitS from MACD > signal")
	}
	if got.ExitL {
		t.Error("Expected no ExitL")
	}
}

func TestEnrichShortEntry(t *testing.T) {
	rows := []types.FeatureRow{{EMAFast: 99, EMASlow: 100, RSI: 65, MACD: -1, MACDSig: -0.5, ProbUp: 0.2}}
	got := Enrich(rows, th)[0]

	if !got.RuleShort || !got.Short {
		t.Fatalf("Expected short signal, got %+v", got)
	}
	if !got.ExitL {
		t.Error("Expected ExitL from low probability")
	}
}

func TestEnrichRuleWithoutProbability(t *testing.T) {
	rows := []types.FeatureRow{{EMAFast: 101, EMASlow: 100, RSI: 35, MACD: 1.2, MACDSig: 1.0, ProbUp: 0.5}}
	got := Enrich(rows, th)[0]
	if !got.RuleLong {
		t.Error("Expected RuleLong")
	}
	if got.Long {
		t.Error("Expected no Long when probability is below the buy threshold")
	}
}

func TestEnrichExitByRSI(t *testing.T) {
	rows := []types.FeatureRow{
		{RSI: 75, MACD: 1, MACDSig: 0, ProbUp: 0.5},
		{RSI: 25, MACD: -1, MACDSig: 0, ProbUp: 0.5},
	}
	got := Enrich(rows, th)
	if !got[0].ExitL {
		t.Error("Expected ExitL when RSI > 70")
	}
	if !got[1].ExitS {
		t.Error("Expected ExitS when RSI < 30")
	}
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	rows := []types.FeatureRow{{EMAFast: 101, EMASlow: 100, RSI: 35, MACD: 1.2, MACDSig: 1.0, ProbUp: 0.7}}
	out := Enrich(rows, th)
	if rows[0].Long || rows[0].RuleLong {
		t.Error("Expected input row to stay untouched")
	}
	out[0].Close = 42
	if rows[0].Close == 42 {
		t.Error("Expected output to be a copy")
	}
}

func TestEnrichSignalImpliesRule(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rows := make([]types.FeatureRow, 2000)
	for i := range rows {
		rows[i] = types.FeatureRow{
			EMAFast: 100 + rng.Float64()*2 - 1,
			EMASlow: 100,
			RSI:     rng.Float64() * 100,
			MACD:    rng.Float64()*2 - 1,
			MACDSig: rng.Float64()*2 - 1,
			ProbUp:  rng.Float64(),
		}
	}
	for i, r := range Enrich(rows, th) {
		if r.Long && !(r.RuleLong && r.ProbUp > th.Buy) {
			t.Fatalf("row %d: Long without RuleLong and probability: %+v", i, r)
		}
		if r.Short && !(r.RuleShort && r.ProbUp < th.Short) {
			t.Fatalf("row %d: Short without RuleShort and probability: %+v", i, r)
		}
		if r.Long && r.Short {
			t.Fatalf("row %d: both Long and Short", i)
		}
	}
}
