package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"futuresbot/internal/types"
)

// computePnL is the realised result of closing pos at exit.
//
//	delta*qty*leverage - |exit*qty|*fee - |entry*qty|*funding
//
// where delta is exit-entry for longs and entry-exit for shorts.
func computePnL(pos types.Position, exit float64, leverage int, fee, funding float64) float64 {
	delta := exit - pos.Entry
	if pos.Side == types.Short {
		delta = pos.Entry - exit
	}
	return delta*pos.Qty*float64(leverage) -
		math.Abs(exit*pos.Qty)*fee -
		math.Abs(pos.Entry*pos.Qty)*funding
}

// entryFill estimates a market entry fill, worse for the trader by slip.
func entryFill(price float64, side types.Side, slip float64) float64 {
	if side == types.Long {
		return price * (1 + slip)
	}
	return price * (1 - slip)
}

// exitFill estimates a market exit fill, worse for the trader by slip.
func exitFill(price float64, side types.Side, slip float64) float64 {
	if side == types.Long {
		return price * (1 - slip)
	}
	return price * (1 + slip)
}

// roundPrice rounds p to precision decimal places.
func roundPrice(p float64, precision int) float64 {
	return decimal.NewFromFloat(p).Round(int32(precision)).InexactFloat64()
}
