package types

import "time"

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Opposite returns the order side that closes a position of this side.
func (s Side) Opposite() OrderSide {
	if s == Long {
		return Sell
	}
	return Buy
}

// Entry returns the order side that opens a position of this side.
func (s Side) Entry() OrderSide {
	if s == Long {
		return Buy
	}
	return Sell
}

// Tag is the ledger label for an entry on this side (LONG / SHORT).
func (s Side) Tag() string {
	if s == Long {
		return "LONG"
	}
	return "SHORT"
}

// CloseTag is the ledger label for an exit of this side.
func (s Side) CloseTag() string {
	return "CLOSE_" + s.Tag()
}

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

type Mode string

const (
	Paper Mode = "paper"
	Live  Mode = "live"
)

// Position is the single open position held by the execution engine.
type Position struct {
	Side       Side      `json:"side"`
	Entry      float64   `json:"entry"`
	Qty        float64   `json:"qty"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
	OpenedAt   time.Time `json:"opened_at"`
}

// Trade is one immutable ledger entry. PnL is set on closes only.
type Trade struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Symbol  string    `json:"symbol"`
	Side    string    `json:"side"`
	Price   float64   `json:"price"`
	Qty     float64   `json:"qty"`
	Balance float64   `json:"balance"`
	PnL     *float64  `json:"pnl,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// RiskState is the consecutive-loss breaker. PauseUntil is zero when unset.
type RiskState struct {
	LossStreak int       `json:"loss_streak"`
	PauseUntil time.Time `json:"pause_until"`
}

// EngineState is a point-in-time copy of the execution engine for readers.
type EngineState struct {
	Mode     Mode      `json:"mode"`
	Symbol   string    `json:"symbol"`
	Balance  float64   `json:"balance"`
	Position *Position `json:"position,omitempty"`
	Risk     RiskState `json:"risk"`
	Trades   []Trade   `json:"trades"`
}

type Candle struct {
	Ts    int64   `json:"ts"` // open time, unix ms
	Open  float64 `json:"o"`
	High  float64 `json:"h"`
	Low   float64 `json:"l"`
	Close float64 `json:"c"`
	Vol   float64 `json:"v"`
}

// FeatureRow is one time step of the merged multi-timeframe table. Signal
// flags are zero until the row has passed through strategy.Enrich.
type FeatureRow struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	EMAFast float64 `json:"ema_fast"`
	EMASlow float64 `json:"ema_slow"`
	RSI     float64 `json:"rsi"`
	ATR     float64 `json:"atr"`
	MACD    float64 `json:"macd"`
	MACDSig float64 `json:"macd_sig"`
	BBLow   float64 `json:"bb_low"`
	BBHigh  float64 `json:"bb_high"`

	RSI1h     float64 `json:"rsi_1h"`
	EMAFast4h float64 `json:"ema_fast_4h"`
	EMASlow4h float64 `json:"ema_slow_4h"`

	Target int     `json:"target"`
	ProbUp float64 `json:"prob_up"`

	RuleLong  bool `json:"rule_long"`
	RuleShort bool `json:"rule_short"`
	Long      bool `json:"long"`
	Short     bool `json:"short"`
	ExitL     bool `json:"exit_l"`
	ExitS     bool `json:"exit_s"`
}

type OrderReq struct {
	Symbol     string
	Side       OrderSide
	Qty        float64
	ReduceOnly bool
	ClientID   string
}

// ExitOrderReq is a reduce-only conditional order. TakeProfit selects the
// take-profit flavour, otherwise it is a stop.
type ExitOrderReq struct {
	Symbol       string
	Side         OrderSide
	Qty          float64
	TriggerPrice float64
	TakeProfit   bool
	ClientID     string
}

// Fill is the outcome of a market order. Price is 0 when the venue did not
// report an average fill price.
type Fill struct {
	OrderID string
	Price   float64
	Qty     float64
}

type OrderAck struct {
	OrderID string
	Status  string
}

// ExchangePosition is the venue's view of the open position.
type ExchangePosition struct {
	Symbol    string
	Side      Side
	Contracts float64
	Entry     float64
}
