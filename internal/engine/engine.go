// Package engine owns the single position, the account balance, the trade
// ledger and the consecutive-loss breaker, and executes them either against
// a venue (live) or in simulation (paper).
//
// Every exported method takes the engine mutex for its whole duration,
// venue calls included. A slow venue therefore also delays IsPaused and
// State readers.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/metrics"
	"futuresbot/internal/types"
)

// Params are the execution and risk settings the engine needs.
type Params struct {
	Symbol      string
	Mode        types.Mode
	Leverage    int
	Isolated    bool
	InitBalance float64

	SlippagePct   float64
	TradeFee      float64
	TakeProfitPct float64
	StopLossPct   float64

	MaxConsecutiveLosses int
	Pause                time.Duration
}

type Engine struct {
	mu sync.Mutex

	p        Params
	ex       interfaces.Exchange
	journal  interfaces.TradeJournal
	notifier interfaces.Notifier
	now      func() time.Time
	newID    func() string

	positions *positionManager
	risk      *riskManager
	stops     *stopManager
	orders    *orderExecutor

	balance float64
	ledger  []types.Trade
}

var (
	_ interfaces.Executor    = (*Engine)(nil)
	_ interfaces.StateReader = (*Engine)(nil)
)

type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithJournal(j interfaces.TradeJournal) Option {
	return func(e *Engine) { e.journal = j }
}

func WithNotifier(n interfaces.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New builds an engine. In live mode it configures leverage and margin
// mode on the venue and fails if that is rejected. Paper mode never calls
// the venue, so ex may be nil.
func New(ctx context.Context, p Params, ex interfaces.Exchange, opts ...Option) (*Engine, error) {
	if p.Mode == types.Live && ex == nil {
		return nil, fmt.Errorf("live mode requires an exchange")
	}
	if p.Leverage < 1 {
		p.Leverage = 1
	}

	e := &Engine{
		p:         p,
		ex:        ex,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		positions: newPositionManager(),
		risk:      newRiskManager(p.MaxConsecutiveLosses, p.Pause),
		stops:     newStopManager(p.TakeProfitPct, p.StopLossPct),
		orders:    newOrderExecutor(ex, p.Symbol, p.SlippagePct),
		balance:   p.InitBalance,
	}
	for _, opt := range opts {
		opt(e)
	}

	if p.Mode == types.Live {
		if err := ex.SetLeverage(ctx, p.Symbol, p.Leverage, p.Isolated); err != nil {
			return nil, fmt.Errorf("configure leverage %dx on %s: %w", p.Leverage, p.Symbol, err)
		}
	}

	metrics.Balance.Set(e.balance)
	metrics.PositionOpen.Set(0)
	logger.Info(ctx, "Execution engine ready",
		"symbol", p.Symbol,
		"mode", p.Mode,
		"leverage", p.Leverage,
		"isolated", p.Isolated,
		"balance", e.balance,
	)
	return e, nil
}

// Open enters a position of side at price for qty. It is a no-op while a
// position exists.
//
// Returns:
//   - an ErrOrderFailed error if the entry order failed; state is unchanged
//   - an ErrProtectionFailed error if the position opened but TP/SL could
//     not be attached; the position is kept
func (e *Engine) Open(ctx context.Context, price, qty float64, side types.Side) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.positions.has() {
		logger.Debug(ctx, "Position already open, skipping entry", "symbol", e.p.Symbol, "side", side)
		return nil
	}
	if price <= 0 || qty <= 0 {
		return fmt.Errorf("%w: invalid price %g or qty %g", types.ErrOrderFailed, price, qty)
	}

	clientID := e.newID()
	fill := entryFill(price, side, e.p.SlippagePct)
	orderID := clientID
	if e.p.Mode == types.Live {
		var filled float64
		var err error
		fill, filled, orderID, err = e.orders.enter(ctx, side, qty, price, clientID)
		if err != nil {
			logger.ErrorWithErr(ctx, "Entry order failed", err,
				"symbol", e.p.Symbol,
				"side", side,
				"qty", qty,
				"price", price,
			)
			e.notify(ctx, fmt.Sprintf("❌ %s entry on %s failed: %v", side.Tag(), e.p.Symbol, err))
			return err
		}
		if filled != qty {
			logger.Info(ctx, "Entry filled at venue lot size", "symbol", e.p.Symbol, "requested", qty, "filled", filled)
		}
		qty = filled
	}

	tp, sl := e.stops.levels(fill, side)
	pos := e.positions.open(types.Position{
		Side:       side,
		Entry:      fill,
		Qty:        qty,
		TakeProfit: tp,
		StopLoss:   sl,
		OpenedAt:   e.now(),
	})

	e.record(ctx, types.Trade{Side: side.Tag(), Price: fill, Qty: qty, Reason: "signal"})
	metrics.OrdersTotal.WithLabelValues(string(e.p.Mode), string(side)).Inc()
	metrics.PositionOpen.Set(sideGauge(side))
	logger.Trade(ctx, e.p.Symbol, side.Tag(), qty, fill, orderID, "mode", e.p.Mode)
	e.notify(ctx, fmt.Sprintf("📈 %s %s qty=%g @ %.2f", side.Tag(), e.p.Symbol, qty, fill))

	return e.attachProtection(ctx, pos)
}

// Close exits the open position at price on a signal. In live mode a
// reduce-only market order is sent and resting protective orders are
// cancelled once it is accepted; on rejection the position and its TP/SL
// stay as they were. It is a no-op when flat.
func (e *Engine) Close(ctx context.Context, price float64, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.positions.get()
	if pos == nil {
		return nil
	}

	exit := exitFill(price, pos.Side, e.p.SlippagePct)
	if e.p.Mode == types.Live {
		var err error
		exit, _, err = e.orders.exit(ctx, *pos, price, e.newID())
		if err != nil {
			logger.ErrorWithErr(ctx, "Close order failed", err, "symbol", e.p.Symbol, "side", pos.Side)
			e.notify(ctx, fmt.Sprintf("❌ close %s on %s failed: %v", pos.Side, e.p.Symbol, err))
			return err
		}
	}

	e.settle(ctx, exit, reason)
	return nil
}

// PollClosed checks a paper position against its TP/SL levels at price and
// settles it if either was reached. Live positions are closed by the venue
// and reconciled by Sync instead.
func (e *Engine) PollClosed(ctx context.Context, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p.Mode != types.Paper {
		return
	}
	pos := e.positions.get()
	if pos == nil {
		return
	}
	if reason, hit := e.stops.crossed(pos, price); hit {
		e.settle(ctx, price, reason)
	}
}

// Sync drops the internal live position when the venue reports none. It
// never creates a position from venue state.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.p.Mode != types.Live || !e.positions.has() {
		return nil
	}

	ep, err := e.ex.FetchPosition(ctx, e.p.Symbol)
	if err != nil {
		return fmt.Errorf("sync position %s: %w", e.p.Symbol, err)
	}
	if ep != nil && ep.Contracts > 0 {
		return nil
	}

	pos := e.positions.get()
	logger.Info(ctx, "Position closed on exchange", "symbol", e.p.Symbol, "side", pos.Side, "entry", pos.Entry)
	metrics.ExitReasons.WithLabelValues("exchange", string(pos.Side)).Inc()
	metrics.PositionOpen.Set(0)
	e.positions.close()
	e.notify(ctx, fmt.Sprintf("ℹ️ %s position on %s closed by exchange", pos.Side, e.p.Symbol))
	return nil
}

// IsPaused reports whether the loss breaker is active. The first call after
// the window elapses clears it and resets the loss streak.
func (e *Engine) IsPaused(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	paused, resumed := e.risk.check(e.now())
	metrics.Paused.Set(metrics.BoolGauge(paused))
	if resumed {
		logger.Risk(ctx, e.p.Symbol, "TRADING_RESUMED")
		metrics.LossStreak.Set(0)
		e.notify(ctx, fmt.Sprintf("▶️ trading resumed on %s", e.p.Symbol))
	}
	return paused
}

// Position returns a copy of the open position.
func (e *Engine) Position() (types.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.snapshot()
}

func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// Trades returns a copy of the ledger.
func (e *Engine) Trades() []types.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyTrades(e.ledger)
}

func (e *Engine) Risk() types.RiskState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.risk.state()
}

func (e *Engine) State() types.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := types.EngineState{
		Mode:    e.p.Mode,
		Symbol:  e.p.Symbol,
		Balance: e.balance,
		Risk:    e.risk.state(),
		Trades:  copyTrades(e.ledger),
	}
	if pos, ok := e.positions.snapshot(); ok {
		st.Position = &pos
	}
	return st
}

// settle realises the open position at exit. Must be called with e.mu held.
func (e *Engine) settle(ctx context.Context, exit float64, reason string) {
	pos := *e.positions.get()

	funding := 0.0
	if e.p.Mode == types.Live {
		funding = e.ex.FetchFundingRate(ctx, e.p.Symbol)
	}
	pnl := computePnL(pos, exit, e.p.Leverage, e.p.TradeFee, funding)
	e.balance += pnl

	e.record(ctx, types.Trade{
		Side:   pos.Side.CloseTag(),
		Price:  exit,
		Qty:    pos.Qty,
		PnL:    &pnl,
		Reason: reason,
	})
	e.positions.close()

	result := "win"
	if pnl < 0 {
		result = "loss"
	}
	metrics.TradesTotal.WithLabelValues(result).Inc()
	metrics.ExitReasons.WithLabelValues(reason, string(pos.Side)).Inc()
	metrics.Balance.Set(e.balance)
	metrics.PositionOpen.Set(0)

	logger.Trade(ctx, e.p.Symbol, pos.Side.CloseTag(), pos.Qty, exit, "",
		"reason", reason,
		"pnl", pnl,
		"balance", e.balance,
	)
	e.notify(ctx, fmt.Sprintf("✅ %s %s @ %.2f pnl=%.4f balance=%.2f", pos.Side.CloseTag(), e.p.Symbol, exit, pnl, e.balance))

	now := e.now()
	tripped := e.risk.recordClose(pnl, now)
	metrics.LossStreak.Set(float64(e.risk.lossStreak))
	if tripped {
		st := e.risk.state()
		metrics.Paused.Set(1)
		logger.Risk(ctx, e.p.Symbol, "LOSS_STREAK_PAUSE",
			"loss_streak", st.LossStreak,
			"pause_until", st.PauseUntil,
		)
		e.notify(ctx, fmt.Sprintf("⏸ %d losses in a row on %s, paused until %s",
			st.LossStreak, e.p.Symbol, st.PauseUntil.UTC().Format(time.RFC3339)))
	}
}

// record stamps and appends t to the ledger and the journal.
func (e *Engine) record(ctx context.Context, t types.Trade) {
	t.ID = e.newID()
	t.Time = e.now()
	t.Symbol = e.p.Symbol
	t.Balance = e.balance
	e.ledger = append(e.ledger, t)

	if e.journal != nil {
		if err := e.journal.Append(t); err != nil {
			logger.Warn(ctx, "Failed to journal trade", "trade_id", t.ID, "error", err)
		}
	}
}

func (e *Engine) notify(ctx context.Context, msg string) {
	if e.notifier != nil {
		e.notifier.Notify(ctx, msg)
	}
}

// copyTrades detaches the ledger from readers, PnL pointers included.
func copyTrades(ledger []types.Trade) []types.Trade {
	out := make([]types.Trade, len(ledger))
	for i, t := range ledger {
		if t.PnL != nil {
			pnl := *t.PnL
			t.PnL = &pnl
		}
		out[i] = t
	}
	return out
}

func sideGauge(s types.Side) float64 {
	if s == types.Long {
		return 1
	}
	return -1
}
