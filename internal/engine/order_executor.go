package engine

import (
	"context"
	"fmt"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/types"
)

// orderExecutor turns engine intents into venue market orders.
type orderExecutor struct {
	ex     interfaces.Exchange
	symbol string
	slip   float64
}

func newOrderExecutor(ex interfaces.Exchange, symbol string, slip float64) *orderExecutor {
	return &orderExecutor{ex: ex, symbol: symbol, slip: slip}
}

// enter places the opening market order for side.
//
// Returns:
//   - price: the venue's average fill, or the slippage estimate when the
//     venue reports none
//   - filled: the executed quantity, or qty when the venue reports none
//   - orderID: venue order id, falling back to clientID
func (oe *orderExecutor) enter(ctx context.Context, side types.Side, qty, mark float64, clientID string) (price, filled float64, orderID string, err error) {
	fill, err := oe.ex.CreateMarketOrder(ctx, types.OrderReq{
		Symbol:   oe.symbol,
		Side:     side.Entry(),
		Qty:      qty,
		ClientID: clientID,
	})
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: %s %s: %w", types.ErrOrderFailed, side.Entry(), oe.symbol, err)
	}
	price, filled, orderID = oe.resolve(fill, entryFill(mark, side, oe.slip), qty, clientID)
	return price, filled, orderID, nil
}

// exit closes the position with a reduce-only market order and only then
// cancels the resting protective orders. A rejected close leaves TP/SL in
// place.
func (oe *orderExecutor) exit(ctx context.Context, pos types.Position, mark float64, clientID string) (price float64, orderID string, err error) {
	fill, err := oe.ex.CreateMarketOrder(ctx, types.OrderReq{
		Symbol:     oe.symbol,
		Side:       pos.Side.Opposite(),
		Qty:        pos.Qty,
		ReduceOnly: true,
		ClientID:   clientID,
	})
	if err != nil {
		return 0, "", fmt.Errorf("%w: close %s %s: %w", types.ErrOrderFailed, pos.Side, oe.symbol, err)
	}

	if err := oe.ex.CancelOpenOrders(ctx, oe.symbol); err != nil {
		logger.Warn(ctx, "Failed to cancel protective orders after close",
			"symbol", oe.symbol,
			"error", err,
		)
	}
	price, _, orderID = oe.resolve(fill, exitFill(mark, pos.Side, oe.slip), pos.Qty, clientID)
	return price, orderID, nil
}

func (oe *orderExecutor) resolve(fill types.Fill, estimate, qty float64, clientID string) (price, filled float64, orderID string) {
	price = estimate
	if fill.Price > 0 {
		price = fill.Price
	}
	filled = qty
	if fill.Qty > 0 {
		filled = fill.Qty
	}
	orderID = fill.OrderID
	if orderID == "" {
		orderID = clientID
	}
	return price, filled, orderID
}
