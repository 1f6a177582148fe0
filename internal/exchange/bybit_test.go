package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"futuresbot/internal/types"
)

type bybitStub struct {
	mu     sync.Mutex
	bodies map[string][]map[string]any
	routes map[string]string
}

func newBybitStub(t *testing.T, routes map[string]string) (*Bybit, *bybitStub) {
	t.Helper()
	stub := &bybitStub{bodies: make(map[string][]map[string]any), routes: routes}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			raw, _ := io.ReadAll(r.Body)
			var body map[string]any
			_ = json.Unmarshal(raw, &body)
			stub.mu.Lock()
			stub.bodies[r.URL.Path] = append(stub.bodies[r.URL.Path], body)
			stub.mu.Unlock()
		}
		resp, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)

	b := newBybit(srv.URL, "key", "secret")
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return b, stub
}

func (s *bybitStub) posted(path string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

const bybitInstrumentsOK = `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","priceFilter":{"tickSize":"0.10"},"lotSizeFilter":{"qtyStep":"0.001"}}]}}`

func TestBybitFetchOHLCVSortsAscending(t *testing.T) {
	b, _ := newBybitStub(t, map[string]string{
		"/v5/market/kline": `{"retCode":0,"retMsg":"OK","result":{"list":[
			["1700000900000","105","108","101","102","8","0"],
			["1700000000000","100","110","95","105","12.5","0"]
		]}}`,
	})

	candles, err := b.FetchOHLCV(context.Background(), "BTC/USDT", "15m", 0, 2)
	if err != nil {
		t.Fatalf("Expected candles, got %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	if candles[0].Ts != 1700000000000 || candles[1].Ts != 1700000900000 {
		t.Errorf("Expected ascending timestamps, got %d, %d", candles[0].Ts, candles[1].Ts)
	}
	if candles[0].Close != 105 || candles[0].Vol != 12.5 {
		t.Errorf("Unexpected first candle %+v", candles[0])
	}

	if _, err := b.FetchOHLCV(context.Background(), "BTC/USDT", "7m", 0, 2); err == nil {
		t.Error("Expected unsupported timeframe error")
	}
}

func TestBybitRetCodeIsRejection(t *testing.T) {
	b, _ := newBybitStub(t, map[string]string{
		"/v5/market/instruments-info": bybitInstrumentsOK,
		"/v5/order/create":            `{"retCode":110007,"retMsg":"ab not enough for new order","result":{}}`,
	})

	_, err := b.CreateMarketOrder(context.Background(), types.OrderReq{Symbol: "BTC/USDT", Side: types.Buy, Qty: 0.01})
	if !errors.Is(err, types.ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}
	var apiErr *BybitAPIError
	if !errors.As(err, &apiErr) || apiErr.Code != 110007 {
		t.Errorf("Expected BybitAPIError 110007, got %v", err)
	}
}

func TestBybitConnectivityError(t *testing.T) {
	b := newBybit("http://127.0.0.1:1", "key", "secret")
	_, err := b.FetchPosition(context.Background(), "BTC/USDT")
	if !errors.Is(err, types.ErrConnectivity) {
		t.Errorf("Expected ErrConnectivity, got %v", err)
	}
}

func TestBybitMarketOrderBody(t *testing.T) {
	b, stub := newBybitStub(t, map[string]string{
		"/v5/market/instruments-info": bybitInstrumentsOK,
		"/v5/order/create":            `{"retCode":0,"retMsg":"OK","result":{"orderId":"abc","orderLinkId":"cid"}}`,
	})

	fill, err := b.CreateMarketOrder(context.Background(), types.OrderReq{
		Symbol: "BTC/USDT", Side: types.Sell, Qty: 0.0159, ReduceOnly: true, ClientID: "cid",
	})
	if err != nil {
		t.Fatal(err)
	}
	if fill.OrderID != "abc" || fill.Price != 0 {
		t.Errorf("Expected ack without price, got %+v", fill)
	}
	if fill.Qty != 0.015 {
		t.Errorf("Expected fill qty truncated to 0.015, got %v", fill.Qty)
	}

	body := stub.posted("/v5/order/create")[0]
	if body["side"] != "Sell" || body["orderType"] != "Market" || body["qty"] != "0.015" {
		t.Errorf("Unexpected order body %v", body)
	}
	if body["reduceOnly"] != true || body["category"] != "linear" || body["symbol"] != "BTCUSDT" {
		t.Errorf("Unexpected order body %v", body)
	}
}

func TestBybitExitOrderTriggerDirection(t *testing.T) {
	b, stub := newBybitStub(t, map[string]string{
		"/v5/market/instruments-info": bybitInstrumentsOK,
		"/v5/order/create":            `{"retCode":0,"retMsg":"OK","result":{"orderId":"tp"}}`,
	})
	ctx := context.Background()

	// closing a long: TP rises, SL falls
	_, _ = b.CreateExitOrder(ctx, types.ExitOrderReq{Symbol: "BTC/USDT", Side: types.Sell, Qty: 0.01, TriggerPrice: 52500.04, TakeProfit: true})
	_, _ = b.CreateExitOrder(ctx, types.ExitOrderReq{Symbol: "BTC/USDT", Side: types.Sell, Qty: 0.01, TriggerPrice: 49000})

	bodies := stub.posted("/v5/order/create")
	if len(bodies) != 2 {
		t.Fatalf("Expected 2 orders, got %d", len(bodies))
	}
	if bodies[0]["triggerDirection"] != float64(1) || bodies[0]["triggerPrice"] != "52500.0" {
		t.Errorf("Unexpected TP body %v", bodies[0])
	}
	if bodies[1]["triggerDirection"] != float64(2) || bodies[1]["reduceOnly"] != true {
		t.Errorf("Unexpected SL body %v", bodies[1])
	}
}

func TestTriggerDirection(t *testing.T) {
	tests := []struct {
		side types.OrderSide
		tp   bool
		want int
	}{
		{types.Sell, true, 1},
		{types.Buy, false, 1},
		{types.Buy, true, 2},
		{types.Sell, false, 2},
	}
	for _, tt := range tests {
		if got := triggerDirection(tt.side, tt.tp); got != tt.want {
			t.Errorf("triggerDirection(%s, %v): expected %d, got %d", tt.side, tt.tp, tt.want, got)
		}
	}
}

func TestBybitSetLeverageToleratesUnchanged(t *testing.T) {
	b, stub := newBybitStub(t, map[string]string{
		"/v5/position/switch-isolated": `{"retCode":110026,"retMsg":"Cross/isolated margin mode is not modified","result":{}}`,
		"/v5/position/set-leverage":    `{"retCode":110043,"retMsg":"Set leverage not modified","result":{}}`,
	})
	if err := b.SetLeverage(context.Background(), "BTC/USDT", 3, true); err != nil {
		t.Fatalf("Expected unchanged settings to be tolerated, got %v", err)
	}
	if got := stub.posted("/v5/position/set-leverage")[0]["buyLeverage"]; got != "3" {
		t.Errorf("Expected buyLeverage 3, got %v", got)
	}
}

func TestBybitFundingAndPosition(t *testing.T) {
	b, _ := newBybitStub(t, map[string]string{
		"/v5/market/tickers":          `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","fundingRate":"0.0001"}]}}`,
		"/v5/position/list":           `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","side":"Sell","size":"0.020","avgPrice":"50100.5"}]}}`,
		"/v5/market/instruments-info": bybitInstrumentsOK,
	})
	ctx := context.Background()

	if got := b.FetchFundingRate(ctx, "BTC/USDT"); got != 0.0001 {
		t.Errorf("Expected funding 0.0001, got %f", got)
	}
	pos, err := b.FetchPosition(ctx, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if pos == nil || pos.Side != types.Short || pos.Contracts != 0.02 || pos.Entry != 50100.5 {
		t.Errorf("Unexpected position %+v", pos)
	}
	prec, err := b.PricePrecision(ctx, "BTC/USDT")
	if err != nil || prec != 1 {
		t.Errorf("Expected precision 1, got %d (%v)", prec, err)
	}
}

func TestBybitFlatPositionIsNil(t *testing.T) {
	b, _ := newBybitStub(t, map[string]string{
		"/v5/position/list": `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"BTCUSDT","side":"","size":"0","avgPrice":"0"}]}}`,
	})
	pos, err := b.FetchPosition(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if pos != nil {
		t.Errorf("Expected nil position, got %+v", pos)
	}
}

func TestBybitSignature(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[]}}`))
	}))
	defer srv.Close()

	b := newBybit(srv.URL, "key", "secret")
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	if _, err := b.FetchPosition(context.Background(), "BTC/USDT"); err != nil {
		t.Fatal(err)
	}

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("1700000000000" + "key" + "5000" + "category=linear&symbol=BTCUSDT"))
	want := hex.EncodeToString(mac.Sum(nil))

	if got.Get("X-BAPI-SIGN") != want {
		t.Errorf("Expected signature %s, got %s", want, got.Get("X-BAPI-SIGN"))
	}
	if got.Get("X-BAPI-API-KEY") != "key" || got.Get("X-BAPI-TIMESTAMP") != "1700000000000" {
		t.Errorf("Unexpected auth headers %v", got)
	}
}
