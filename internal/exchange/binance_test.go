package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adshao/go-binance/v2/futures"

	"futuresbot/internal/types"
)

func newTestBinance(t *testing.T, h http.HandlerFunc) *Binance {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := futures.NewClient("key", "secret")
	c.BaseURL = srv.URL
	return newBinance(c)
}

func TestBinanceFetchOHLCV(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/klines" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("Expected symbol BTCUSDT, got %s", got)
		}
		if got := r.URL.Query().Get("interval"); got != "15m" {
			t.Errorf("Expected interval 15m, got %s", got)
		}
		w.Write([]byte(`[
			[1700000000000,"100.0","110.0","95.0","105.0","12.5",1700000899999,"0",10,"0","0","0"],
			[1700000900000,"105.0","108.0","101.0","102.0","8.0",1700001799999,"0",10,"0","0","0"]
		]`))
	})

	candles, err := b.FetchOHLCV(context.Background(), "BTC/USDT", "15m", 0, 2)
	if err != nil {
		t.Fatalf("Expected candles, got %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("Expected 2 candles, got %d", len(candles))
	}
	if candles[0].Ts != 1700000000000 || candles[0].Close != 105 || candles[1].Low != 101 {
		t.Errorf("Unexpected candles %+v", candles)
	}
}

func TestBinanceRejectedVsConnectivity(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
	_, err := b.FetchOHLCV(context.Background(), "NOPE/USDT", "15m", 0, 2)
	if !errors.Is(err, types.ErrRejected) {
		t.Errorf("Expected ErrRejected, got %v", err)
	}

	c := futures.NewClient("key", "secret")
	c.BaseURL = "http://127.0.0.1:1"
	_, err = newBinance(c).FetchOHLCV(context.Background(), "BTC/USDT", "15m", 0, 2)
	if !errors.Is(err, types.ErrConnectivity) {
		t.Errorf("Expected ErrConnectivity, got %v", err)
	}
}

func TestBinanceFundingRateFallsBackToZero(t *testing.T) {
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if got := b.FetchFundingRate(context.Background(), "BTC/USDT"); got != 0 {
		t.Errorf("Expected 0 funding on failure, got %f", got)
	}
}

func TestBinancePrecisionAndMarketOrder(t *testing.T) {
	infoCalls := 0
	b := newTestBinance(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/exchangeInfo":
			infoCalls++
			w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT","pricePrecision":1,"quantityPrecision":3}]}`))
		case "/fapi/v1/order":
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if got := r.Form.Get("quantity"); got != "0.019" {
				t.Errorf("Expected quantity 0.019, got %s", got)
			}
			if got := r.Form.Get("side"); got != "BUY" {
				t.Errorf("Expected BUY, got %s", got)
			}
			w.Write([]byte(`{"orderId":42,"avgPrice":"50010.5","executedQty":"0.019","status":"FILLED"}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	prec, err := b.PricePrecision(ctx, "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if prec != 1 {
		t.Errorf("Expected price precision 1, got %d", prec)
	}

	fill, err := b.CreateMarketOrder(ctx, types.OrderReq{Symbol: "BTC/USDT", Side: types.Buy, Qty: 0.0199})
	if err != nil {
		t.Fatalf("Expected order to succeed, got %v", err)
	}
	if fill.OrderID != "42" || fill.Price != 50010.5 {
		t.Errorf("Unexpected fill %+v", fill)
	}
	if infoCalls != 1 {
		t.Errorf("Expected exchange info cached, got %d calls", infoCalls)
	}
}
