// Package exchange holds the derivatives venue adapters. Both speak the
// unified "BASE/QUOTE" symbol form and translate to the venue's own.
package exchange

import (
	"fmt"
	"strings"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/store"
)

// New returns the venue adapter selected by cfg.Exchange.
func New(cfg *store.Config) (interfaces.Exchange, error) {
	switch cfg.Exchange {
	case "BINANCE":
		return NewBinance(cfg.APIKey, cfg.APISecret, cfg.Testnet), nil
	case "BYBIT":
		return NewBybit(cfg.APIKey, cfg.APISecret, cfg.Testnet), nil
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange)
	}
}

// venueSymbol maps "BTC/USDT" or "BTC/USDT:USDT" to "BTCUSDT".
func venueSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, ':'); i >= 0 {
		symbol = symbol[:i]
	}
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
