package interfaces

import (
	"context"

	"futuresbot/internal/types"
)

// Exchange is the capability set the bot needs from a derivatives venue.
// Symbols are in the unified form, e.g. "BTC/USDT".
type Exchange interface {
	Name() string
	FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs int64, limit int) ([]types.Candle, error)
	CreateMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error)
	CreateExitOrder(ctx context.Context, req types.ExitOrderReq) (types.OrderAck, error)
	CancelOpenOrders(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int, isolated bool) error
	// FetchFundingRate returns 0 when the rate is unavailable.
	FetchFundingRate(ctx context.Context, symbol string) float64
	PricePrecision(ctx context.Context, symbol string) (int, error)
	// FetchPosition returns nil when the venue holds no position.
	FetchPosition(ctx context.Context, symbol string) (*types.ExchangePosition, error)
}
