package exchangeobs

import (
	"context"
	"time"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/metrics"
	"futuresbot/internal/trace"
	"futuresbot/internal/types"
)

// observableExchange wraps an Exchange with tracing, logging and latency metrics
type observableExchange struct {
	ex interfaces.Exchange
}

// Compile-time interface check
var _ interfaces.Exchange = (*observableExchange)(nil)

// Wrap wraps an exchange with observability middleware
func Wrap(ex interfaces.Exchange) interfaces.Exchange {
	return &observableExchange{ex: ex}
}

func (oe *observableExchange) Name() string { return oe.ex.Name() }

func (oe *observableExchange) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ExchangeLatency.WithLabelValues(oe.ex.Name(), op, outcome).Observe(time.Since(start).Seconds())
}

// FetchOHLCV fetches candles with observability
func (oe *observableExchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs int64, limit int) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.FetchOHLCV")
	defer span.End()

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Fetching candles", "symbol", symbol, "timeframe", timeframe, "since", sinceMs, "limit", limit)

	candles, err := oe.ex.FetchOHLCV(ctx, symbol, timeframe, sinceMs, limit)
	oe.observe("fetch_ohlcv", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err, "symbol", symbol, "timeframe", timeframe)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Candles fetched", "symbol", symbol, "timeframe", timeframe, "count", len(candles))
	return candles, nil
}

// CreateMarketOrder places a market order with observability
func (oe *observableExchange) CreateMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.CreateMarketOrder")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Placing market order",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"reduce_only", req.ReduceOnly,
		"client_id", req.ClientID,
	)

	fill, err := oe.ex.CreateMarketOrder(ctx, req)
	oe.observe("market_order", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place market order", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty,
		)
		return types.Fill{}, err
	}

	logger.InfoSkip(ctx, 1, "Market order placed",
		"symbol", req.Symbol,
		"order_id", fill.OrderID,
		"avg_price", fill.Price,
	)
	return fill, nil
}

// CreateExitOrder places a reduce-only TP/SL order with observability
func (oe *observableExchange) CreateExitOrder(ctx context.Context, req types.ExitOrderReq) (types.OrderAck, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.CreateExitOrder")
	defer span.End()

	start := time.Now()
	kind := "stop_loss"
	if req.TakeProfit {
		kind = "take_profit"
	}
	logger.InfoSkip(ctx, 1, "Placing exit order",
		"symbol", req.Symbol,
		"kind", kind,
		"side", req.Side,
		"qty", req.Qty,
		"trigger", req.TriggerPrice,
	)

	ack, err := oe.ex.CreateExitOrder(ctx, req)
	oe.observe("exit_order", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place exit order", err, "symbol", req.Symbol, "kind", kind)
		return types.OrderAck{}, err
	}
	return ack, nil
}

func (oe *observableExchange) CancelOpenOrders(ctx context.Context, symbol string) error {
	ctx, span := trace.StartSpan(ctx, "exchange.CancelOpenOrders")
	defer span.End()

	start := time.Now()
	err := oe.ex.CancelOpenOrders(ctx, symbol)
	oe.observe("cancel_all", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel open orders", err, "symbol", symbol)
	}
	return err
}

func (oe *observableExchange) SetLeverage(ctx context.Context, symbol string, leverage int, isolated bool) error {
	ctx, span := trace.StartSpan(ctx, "exchange.SetLeverage")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Setting leverage", "symbol", symbol, "leverage", leverage, "isolated", isolated)

	err := oe.ex.SetLeverage(ctx, symbol, leverage, isolated)
	oe.observe("set_leverage", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to set leverage", err, "symbol", symbol, "leverage", leverage)
		return err
	}
	return nil
}

func (oe *observableExchange) FetchFundingRate(ctx context.Context, symbol string) float64 {
	ctx, span := trace.StartSpan(ctx, "exchange.FetchFundingRate")
	defer span.End()

	start := time.Now()
	rate := oe.ex.FetchFundingRate(ctx, symbol)
	oe.observe("funding_rate", start, nil)
	logger.DebugSkip(ctx, 1, "Funding rate", "symbol", symbol, "rate", rate)
	return rate
}

func (oe *observableExchange) PricePrecision(ctx context.Context, symbol string) (int, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.PricePrecision")
	defer span.End()

	start := time.Now()
	p, err := oe.ex.PricePrecision(ctx, symbol)
	oe.observe("price_precision", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to load price precision", err, "symbol", symbol)
	}
	return p, err
}

func (oe *observableExchange) FetchPosition(ctx context.Context, symbol string) (*types.ExchangePosition, error) {
	ctx, span := trace.StartSpan(ctx, "exchange.FetchPosition")
	defer span.End()

	start := time.Now()
	pos, err := oe.ex.FetchPosition(ctx, symbol)
	oe.observe("fetch_position", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch position", err, "symbol", symbol)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Position fetched", "symbol", symbol, "open", pos != nil)
	return pos, nil
}
