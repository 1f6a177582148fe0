package engine

import (
	"context"
	"errors"
	"fmt"

	"futuresbot/internal/logger"
	"futuresbot/internal/metrics"
	"futuresbot/internal/types"
)

// stopManager owns take-profit and stop-loss levels.
type stopManager struct {
	tpPct float64
	slPct float64
}

func newStopManager(tpPct, slPct float64) *stopManager {
	return &stopManager{tpPct: tpPct, slPct: slPct}
}

// levels computes TP and SL for an entry.
//
//   - long:  TP = entry*(1+tp), SL = entry*(1-sl)
//   - short: TP = entry*(1-tp), SL = entry*(1+sl)
func (sm *stopManager) levels(entry float64, side types.Side) (tp, sl float64) {
	if side == types.Long {
		return entry * (1 + sm.tpPct), entry * (1 - sm.slPct)
	}
	return entry * (1 - sm.tpPct), entry * (1 + sm.slPct)
}

// crossed reports which protective level price has reached, if any.
func (sm *stopManager) crossed(pos *types.Position, price float64) (reason string, hit bool) {
	switch pos.Side {
	case types.Long:
		if price >= pos.TakeProfit {
			return "take_profit", true
		}
		if price <= pos.StopLoss {
			return "stop_loss", true
		}
	case types.Short:
		if price <= pos.TakeProfit {
			return "take_profit", true
		}
		if price >= pos.StopLoss {
			return "stop_loss", true
		}
	}
	return "", false
}

// attachProtection places reduce-only TP and SL orders for a live position,
// rounding both to the venue's price precision. Paper positions keep the
// levels on the position for PollClosed. Must be called with e.mu held.
func (e *Engine) attachProtection(ctx context.Context, pos *types.Position) error {
	if e.p.Mode != types.Live {
		return nil
	}

	prec, err := e.ex.PricePrecision(ctx, e.p.Symbol)
	if err != nil {
		return e.protectionFailed(ctx, pos, fmt.Errorf("price precision: %w", err))
	}
	pos.TakeProfit = roundPrice(pos.TakeProfit, prec)
	pos.StopLoss = roundPrice(pos.StopLoss, prec)

	exitSide := pos.Side.Opposite()
	var errs []error
	if _, err := e.ex.CreateExitOrder(ctx, types.ExitOrderReq{
		Symbol:       e.p.Symbol,
		Side:         exitSide,
		Qty:          pos.Qty,
		TriggerPrice: pos.TakeProfit,
		TakeProfit:   true,
		ClientID:     e.newID(),
	}); err != nil {
		errs = append(errs, fmt.Errorf("take profit: %w", err))
	}
	if _, err := e.ex.CreateExitOrder(ctx, types.ExitOrderReq{
		Symbol:       e.p.Symbol,
		Side:         exitSide,
		Qty:          pos.Qty,
		TriggerPrice: pos.StopLoss,
		ClientID:     e.newID(),
	}); err != nil {
		errs = append(errs, fmt.Errorf("stop loss: %w", err))
	}
	if len(errs) > 0 {
		return e.protectionFailed(ctx, pos, errors.Join(errs...))
	}

	logger.Info(ctx, "Protective orders attached",
		"symbol", e.p.Symbol,
		"side", pos.Side,
		"take_profit", pos.TakeProfit,
		"stop_loss", pos.StopLoss,
		"precision", prec,
	)
	return nil
}

func (e *Engine) protectionFailed(ctx context.Context, pos *types.Position, err error) error {
	metrics.ProtectionFailures.Inc()
	logger.ErrorWithErr(ctx, "Position open without protective orders", err,
		"symbol", e.p.Symbol,
		"side", pos.Side,
		"entry", pos.Entry,
		"qty", pos.Qty,
	)
	e.notify(ctx, fmt.Sprintf("⚠️ TP/SL attach failed for %s %s: %v", pos.Side, e.p.Symbol, err))
	return fmt.Errorf("%w: %w", types.ErrProtectionFailed, err)
}
