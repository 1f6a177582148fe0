package bot

import (
	"math"

	"futuresbot/internal/types"
)

const minDivisor = 1e-6

// Sizing chooses between margin mode and ATR risk mode.
type Sizing struct {
	PosSize        float64
	MarginPerTrade float64
	Leverage       int
	MaxQty         float64
}

// Qty is margin*leverage/close when a margin is configured, otherwise
// PosSize/ATR, capped at MaxQty.
func (s Sizing) Qty(row types.FeatureRow) float64 {
	var qty float64
	if s.MarginPerTrade > 0 {
		qty = s.MarginPerTrade * float64(s.Leverage) / math.Max(row.Close, minDivisor)
	} else {
		qty = s.PosSize / math.Max(row.ATR, minDivisor)
	}
	if s.MaxQty > 0 {
		qty = math.Min(qty, s.MaxQty)
	}
	return qty
}
