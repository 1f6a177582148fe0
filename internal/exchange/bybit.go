package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/types"
)

const (
	bybitMainnet    = "https://api.bybit.com"
	bybitTestnet    = "https://api-testnet.bybit.com"
	bybitCategory   = "linear"
	bybitRecvWindow = "5000"

	// retCodes that mean the requested setting is already in place
	bybitLeverageNotModified = 110043
	bybitMarginNotModified   = 110026
)

var bybitIntervals = map[string]string{
	"1m": "1", "5m": "5", "15m": "15", "30m": "30",
	"1h": "60", "2h": "120", "4h": "240", "1d": "D",
}

// Bybit is the v5 linear perpetual venue over REST.
type Bybit struct {
	http   *resty.Client
	key    string
	secret string
	now    func() time.Time

	mu          sync.Mutex
	instruments map[string]bybitInstrument
}

type bybitInstrument struct {
	pricePlaces int
	qtyPlaces   int
}

// BybitAPIError is a non-zero retCode answer.
type BybitAPIError struct {
	Path string
	Code int
	Msg  string
}

func (e *BybitAPIError) Error() string {
	return fmt.Sprintf("bybit %s: retCode=%d %s", e.Path, e.Code, e.Msg)
}

func (e *BybitAPIError) Unwrap() error { return types.ErrRejected }

var _ interfaces.Exchange = (*Bybit)(nil)

func NewBybit(apiKey, secret string, testnet bool) *Bybit {
	base := bybitMainnet
	if testnet {
		base = bybitTestnet
	}
	return newBybit(base, apiKey, secret)
}

func newBybit(baseURL, apiKey, secret string) *Bybit {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Bybit{
		http:        c,
		key:         apiKey,
		secret:      secret,
		now:         time.Now,
		instruments: make(map[string]bybitInstrument),
	}
}

func (b *Bybit) Name() string { return "bybit" }

type bybitEnvelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type bybitList[T any] struct {
	List []T `json:"list"`
}

func (b *Bybit) FetchOHLCV(ctx context.Context, symbol, timeframe string, sinceMs int64, limit int) ([]types.Candle, error) {
	interval, ok := bybitIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("bybit: unsupported timeframe %q", timeframe)
	}
	q := url.Values{}
	q.Set("category", bybitCategory)
	q.Set("symbol", venueSymbol(symbol))
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if sinceMs > 0 {
		q.Set("start", strconv.FormatInt(sinceMs, 10))
	}

	var res bybitList[[]string]
	if err := b.get(ctx, "/v5/market/kline", q, false, &res); err != nil {
		return nil, err
	}

	out := make([]types.Candle, 0, len(res.List))
	for _, row := range res.List {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, types.Candle{
			Ts:    ts,
			Open:  parseDecimal(row[1]),
			High:  parseDecimal(row[2]),
			Low:   parseDecimal(row[3]),
			Close: parseDecimal(row[4]),
			Vol:   parseDecimal(row[5]),
		})
	}
	// newest first on the wire
	sort.Slice(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out, nil
}

type bybitOrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// CreateMarketOrder returns a fill without price: the create endpoint only
// acknowledges, so the engine falls back to its estimate. Qty is the amount
// sent after truncation to the lot step.
func (b *Bybit) CreateMarketOrder(ctx context.Context, req types.OrderReq) (types.Fill, error) {
	inst, err := b.instrument(ctx, req.Symbol)
	if err != nil {
		return types.Fill{}, err
	}

	qty := formatQty(req.Qty, inst.qtyPlaces)
	body := map[string]any{
		"category":    bybitCategory,
		"symbol":      venueSymbol(req.Symbol),
		"side":        bybitSide(req.Side),
		"orderType":   "Market",
		"qty":         qty,
		"reduceOnly":  req.ReduceOnly,
		"orderLinkId": req.ClientID,
	}
	var res bybitOrderResult
	if err := b.post(ctx, "/v5/order/create", body, &res); err != nil {
		return types.Fill{}, err
	}
	return types.Fill{OrderID: res.OrderID, Qty: parseDecimal(qty)}, nil
}

func (b *Bybit) CreateExitOrder(ctx context.Context, req types.ExitOrderReq) (types.OrderAck, error) {
	inst, err := b.instrument(ctx, req.Symbol)
	if err != nil {
		return types.OrderAck{}, err
	}

	body := map[string]any{
		"category":         bybitCategory,
		"symbol":           venueSymbol(req.Symbol),
		"side":             bybitSide(req.Side),
		"orderType":        "Market",
		"qty":              formatQty(req.Qty, inst.qtyPlaces),
		"triggerPrice":     formatPrice(req.TriggerPrice, inst.pricePlaces),
		"triggerDirection": triggerDirection(req.Side, req.TakeProfit),
		"triggerBy":        "MarkPrice",
		"reduceOnly":       true,
		"orderLinkId":      req.ClientID,
	}
	var res bybitOrderResult
	if err := b.post(ctx, "/v5/order/create", body, &res); err != nil {
		return types.OrderAck{}, err
	}
	return types.OrderAck{OrderID: res.OrderID, Status: "New"}, nil
}

// triggerDirection is 1 (rise) for a sell take-profit or a buy stop, and
// 2 (fall) for a buy take-profit or a sell stop.
func triggerDirection(side types.OrderSide, takeProfit bool) int {
	sell := side == types.Sell
	if (takeProfit && sell) || (!takeProfit && !sell) {
		return 1
	}
	return 2
}

func (b *Bybit) CancelOpenOrders(ctx context.Context, symbol string) error {
	return b.post(ctx, "/v5/order/cancel-all", map[string]any{
		"category": bybitCategory,
		"symbol":   venueSymbol(symbol),
	}, nil)
}

func (b *Bybit) SetLeverage(ctx context.Context, symbol string, leverage int, isolated bool) error {
	lev := strconv.Itoa(leverage)
	vs := venueSymbol(symbol)

	if isolated {
		err := b.post(ctx, "/v5/position/switch-isolated", map[string]any{
			"category":     bybitCategory,
			"symbol":       vs,
			"tradeMode":    1,
			"buyLeverage":  lev,
			"sellLeverage": lev,
		}, nil)
		if err != nil && !hasRetCode(err, bybitMarginNotModified) {
			return err
		}
	}

	err := b.post(ctx, "/v5/position/set-leverage", map[string]any{
		"category":     bybitCategory,
		"symbol":       vs,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}, nil)
	if err != nil && !hasRetCode(err, bybitLeverageNotModified) {
		return err
	}
	return nil
}

func (b *Bybit) FetchFundingRate(ctx context.Context, symbol string) float64 {
	q := url.Values{}
	q.Set("category", bybitCategory)
	q.Set("symbol", venueSymbol(symbol))

	var res bybitList[struct {
		FundingRate string `json:"fundingRate"`
	}]
	if err := b.get(ctx, "/v5/market/tickers", q, false, &res); err != nil || len(res.List) == 0 {
		return 0
	}
	return parseDecimal(res.List[0].FundingRate)
}

func (b *Bybit) PricePrecision(ctx context.Context, symbol string) (int, error) {
	inst, err := b.instrument(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return inst.pricePlaces, nil
}

func (b *Bybit) FetchPosition(ctx context.Context, symbol string) (*types.ExchangePosition, error) {
	vs := venueSymbol(symbol)
	q := url.Values{}
	q.Set("category", bybitCategory)
	q.Set("symbol", vs)

	var res bybitList[struct {
		Symbol   string `json:"symbol"`
		Side     string `json:"side"`
		Size     string `json:"size"`
		AvgPrice string `json:"avgPrice"`
	}]
	if err := b.get(ctx, "/v5/position/list", q, true, &res); err != nil {
		return nil, err
	}

	for _, p := range res.List {
		size := parseDecimal(p.Size)
		if p.Symbol != vs || size <= 0 {
			continue
		}
		side := types.Long
		if p.Side == "Sell" {
			side = types.Short
		}
		return &types.ExchangePosition{
			Symbol:    symbol,
			Side:      side,
			Contracts: size,
			Entry:     parseDecimal(p.AvgPrice),
		}, nil
	}
	return nil, nil
}

func (b *Bybit) instrument(ctx context.Context, symbol string) (bybitInstrument, error) {
	vs := venueSymbol(symbol)

	b.mu.Lock()
	inst, ok := b.instruments[vs]
	b.mu.Unlock()
	if ok {
		return inst, nil
	}

	q := url.Values{}
	q.Set("category", bybitCategory)
	q.Set("symbol", vs)

	var res bybitList[struct {
		Symbol      string `json:"symbol"`
		PriceFilter struct {
			TickSize string `json:"tickSize"`
		} `json:"priceFilter"`
		LotSizeFilter struct {
			QtyStep string `json:"qtyStep"`
		} `json:"lotSizeFilter"`
	}]
	if err := b.get(ctx, "/v5/market/instruments-info", q, false, &res); err != nil {
		return bybitInstrument{}, err
	}
	if len(res.List) == 0 {
		return bybitInstrument{}, fmt.Errorf("bybit: %w: unknown symbol %s", types.ErrRejected, vs)
	}

	pp, err := decimalPlaces(res.List[0].PriceFilter.TickSize)
	if err != nil {
		return bybitInstrument{}, fmt.Errorf("bybit tick size for %s: %w", vs, err)
	}
	qp, err := decimalPlaces(res.List[0].LotSizeFilter.QtyStep)
	if err != nil {
		return bybitInstrument{}, fmt.Errorf("bybit qty step for %s: %w", vs, err)
	}

	inst = bybitInstrument{pricePlaces: pp, qtyPlaces: qp}
	b.mu.Lock()
	b.instruments[vs] = inst
	b.mu.Unlock()
	return inst, nil
}

func (b *Bybit) get(ctx context.Context, path string, q url.Values, signed bool, out any) error {
	qs := q.Encode()
	req := b.http.R().SetContext(ctx).SetQueryString(qs)
	if signed {
		b.sign(req, qs)
	}
	resp, err := req.Get(path)
	return decodeBybit(path, resp, err, out)
}

func (b *Bybit) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req := b.http.R().SetContext(ctx).SetBody(payload)
	b.sign(req, string(payload))
	resp, err := req.Post(path)
	return decodeBybit(path, resp, err, out)
}

// sign applies v5 HMAC headers over timestamp+key+recvWindow+payload.
func (b *Bybit) sign(req *resty.Request, payload string) {
	ts := strconv.FormatInt(b.now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(b.secret))
	mac.Write([]byte(ts + b.key + bybitRecvWindow + payload))

	req.SetHeader("X-BAPI-API-KEY", b.key).
		SetHeader("X-BAPI-TIMESTAMP", ts).
		SetHeader("X-BAPI-RECV-WINDOW", bybitRecvWindow).
		SetHeader("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

func decodeBybit(path string, resp *resty.Response, err error, out any) error {
	if err != nil {
		return fmt.Errorf("bybit %s: %w: %w", path, types.ErrConnectivity, err)
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("bybit %s: %w: status %d", path, types.ErrConnectivity, resp.StatusCode())
	}

	var env bybitEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("bybit %s: %w: status %d: %s", path, types.ErrRejected, resp.StatusCode(), resp.String())
	}
	if env.RetCode != 0 {
		return &BybitAPIError{Path: path, Code: env.RetCode, Msg: env.RetMsg}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("bybit %s: decode result: %w", path, err)
		}
	}
	return nil
}

func hasRetCode(err error, code int) bool {
	var apiErr *BybitAPIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func bybitSide(s types.OrderSide) string {
	if s == types.Buy {
		return "Buy"
	}
	return "Sell"
}
