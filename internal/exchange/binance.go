package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/types"
)

// Binance is the USD-M futures venue.
type Binance struct {
	client *futures.Client

	mu      sync.Mutex
	filters map[string]symbolFilters
}

type symbolFilters struct {
	pricePlaces int
	qtyPlaces   int
}

var _ interfaces.Exchange = (*Binance)(nil)

func NewBinance(apiKey, secret string, testnet bool) *Binance {
	futures.UseTestnet = testnet
	return newBinance(binance.NewFuturesClient(apiKey, secret))
}

func newBinance(client *futures.Client) *Binance {
	return &Binance{client: client, filters: make(map[string]symbolFilters)}
}

func (b *Binance) Name() string { return "binance" }

func (b *Binance) FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs int64, limit int) ([]types.Candle, error) {
	svc := b.client.NewKlinesService().
		Symbol(venueSymbol(symbol)).
		Interval(timeframe).
		Limit(limit)
	if sinceMs > 0 {
		svc = svc.StartTime(sinceMs)
	}

	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, binanceErr("klines", err)
	}

	out := make([]types.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, types.Candle{
			Ts:    k.OpenTime,
			Open:  parseDecimal(k.Open),
			High:  parseDecimal(k.High),
			Low:   parseDecimal(k.Low),
			Close: parseDecimal(k.Close),
			Vol:   parseDecimal(k.Volume),
		})
	}
	return out, nil
}

func (b *Binance) CreateMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	f, err := b.symbolFilters(ctx, req.Symbol)
	if err != nil {
		return types.Fill{}, err
	}

	qty := formatQty(req.Qty, f.qtyPlaces)
	svc := b.client.NewCreateOrderService().
		Symbol(venueSymbol(req.Symbol)).
		Side(binanceSide(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return types.Fill{}, binanceErr("market order", err)
	}
	executed := parseDecimal(res.ExecutedQuantity)
	if executed <= 0 {
		executed = parseDecimal(qty)
	}
	return types.Fill{
		OrderID: strconv.FormatInt(res.OrderID, 10),
		Price:   parseDecimal(res.AvgPrice),
		Qty:     executed,
	}, nil
}

func (b *Binance) CreateExitOrder(ctx context.Context, req types.ExitOrderReq) (types.OrderAck, error) {
	f, err := b.symbolFilters(ctx, req.Symbol)
	if err != nil {
		return types.OrderAck{}, err
	}

	orderType := futures.OrderTypeStopMarket
	if req.TakeProfit {
		orderType = futures.OrderTypeTakeProfitMarket
	}

	svc := b.client.NewCreateOrderService().
		Symbol(venueSymbol(req.Symbol)).
		Side(binanceSide(req.Side)).
		Type(orderType).
		StopPrice(formatPrice(req.TriggerPrice, f.pricePlaces)).
		Quantity(formatQty(req.Qty, f.qtyPlaces)).
		WorkingType(futures.WorkingTypeMarkPrice).
		ReduceOnly(true)
	if req.ClientID != "" {
		svc = svc.NewClientOrderID(req.ClientID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return types.OrderAck{}, binanceErr("exit order", err)
	}
	return types.OrderAck{OrderID: strconv.FormatInt(res.OrderID, 10), Status: string(res.Status)}, nil
}

func (b *Binance) CancelOpenOrders(ctx context.Context, symbol string) error {
	if err := b.client.NewCancelAllOpenOrdersService().Symbol(venueSymbol(symbol)).Do(ctx); err != nil {
		return binanceErr("cancel all", err)
	}
	return nil
}

func (b *Binance) SetLeverage(ctx context.Context, symbol string, leverage int, isolated bool) error {
	vs := venueSymbol(symbol)
	marginType := futures.MarginTypeCrossed
	if isolated {
		marginType = futures.MarginTypeIsolated
	}

	err := b.client.NewChangeMarginTypeService().Symbol(vs).MarginType(marginType).Do(ctx)
	if err != nil && !marginUnchanged(err) {
		return binanceErr("margin type", err)
	}

	if _, err := b.client.NewChangeLeverageService().Symbol(vs).Leverage(leverage).Do(ctx); err != nil {
		return binanceErr("leverage", err)
	}
	return nil
}

func (b *Binance) FetchFundingRate(ctx context.Context, symbol string) float64 {
	idx, err := b.client.NewPremiumIndexService().Symbol(venueSymbol(symbol)).Do(ctx)
	if err != nil || len(idx) == 0 {
		return 0
	}
	return parseDecimal(idx[0].LastFundingRate)
}

func (b *Binance) PricePrecision(ctx context.Context, symbol string) (int, error) {
	f, err := b.symbolFilters(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return f.pricePlaces, nil
}

func (b *Binance) FetchPosition(ctx context.Context, symbol string) (*types.ExchangePosition, error) {
	vs := venueSymbol(symbol)
	risks, err := b.client.NewGetPositionRiskService().Symbol(vs).Do(ctx)
	if err != nil {
		return nil, binanceErr("position risk", err)
	}

	for _, r := range risks {
		if r.Symbol != vs {
			continue
		}
		amt := parseDecimal(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := types.Long
		if amt < 0 {
			side = types.Short
			amt = -amt
		}
		return &types.ExchangePosition{
			Symbol:    symbol,
			Side:      side,
			Contracts: amt,
			Entry:     parseDecimal(r.EntryPrice),
		}, nil
	}
	return nil, nil
}

// symbolFilters loads price and quantity precision once per symbol.
func (b *Binance) symbolFilters(ctx context.Context, symbol string) (symbolFilters, error) {
	vs := venueSymbol(symbol)

	b.mu.Lock()
	f, ok := b.filters[vs]
	b.mu.Unlock()
	if ok {
		return f, nil
	}

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return symbolFilters{}, binanceErr("exchange info", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol == vs {
			f = symbolFilters{pricePlaces: s.PricePrecision, qtyPlaces: s.QuantityPrecision}
			b.mu.Lock()
			b.filters[vs] = f
			b.mu.Unlock()
			return f, nil
		}
	}
	return symbolFilters{}, fmt.Errorf("binance: %w: unknown symbol %s", types.ErrRejected, vs)
}

func binanceSide(s types.OrderSide) futures.SideType {
	if s == types.Buy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

// binanceErr separates API rejections from transport failures.
func binanceErr(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("binance %s: %w: %w", op, types.ErrRejected, err)
	}
	return fmt.Errorf("binance %s: %w: %w", op, types.ErrConnectivity, err)
}

func marginUnchanged(err error) bool {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == -4046 {
		return true
	}
	return strings.Contains(err.Error(), "No need to change margin type")
}
