// Package bot runs the trading loop: market data, model, signals and the
// execution engine, once per cycle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/metrics"
	"futuresbot/internal/store"
	"futuresbot/internal/strategy"
	"futuresbot/internal/trace"
	"futuresbot/internal/types"
)

type Params struct {
	Symbol       string
	Thresholds   strategy.Thresholds
	Sizing       Sizing
	Sleep        time.Duration
	ErrorBackoff time.Duration
	Retrain      time.Duration
	ExitOnSignal bool
}

func ParamsFromConfig(cfg *store.Config) Params {
	return Params{
		Symbol:     cfg.Symbol,
		Thresholds: strategy.Thresholds(cfg.Thresholds),
		Sizing: Sizing{
			PosSize:        cfg.PosSize,
			MarginPerTrade: cfg.MarginPerTrade,
			Leverage:       cfg.Leverage,
			MaxQty:         cfg.MaxQty,
		},
		Sleep:        cfg.Sleep(),
		ErrorBackoff: cfg.ErrorBackoff(),
		Retrain:      cfg.RetrainInterval(),
		ExitOnSignal: cfg.Loop.ExitOnSignal,
	}
}

type Bot struct {
	p        Params
	data     interfaces.DataSource
	model    interfaces.Model
	exec     interfaces.Executor
	snap     *Snapshot
	notifier interfaces.Notifier
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) bool
}

type Option func(*Bot)

func WithNotifier(n interfaces.Notifier) Option {
	return func(b *Bot) { b.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// WithSleep replaces the context-aware wait between cycles. The function
// reports false when the wait was cut short by cancellation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(b *Bot) { b.sleep = sleep }
}

func New(p Params, data interfaces.DataSource, model interfaces.Model, exec interfaces.Executor, snap *Snapshot, opts ...Option) *Bot {
	b := &Bot{
		p:     p,
		data:  data,
		model: model,
		exec:  exec,
		snap:  snap,
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bot) Snapshot() *Snapshot { return b.snap }

// Run repeats Cycle until ctx is cancelled. Cycle errors are reported and
// followed by the error backoff; they never stop the loop.
func (b *Bot) Run(ctx context.Context) error {
	logger.Info(ctx, "Trading loop started",
		"symbol", b.p.Symbol,
		"sleep", b.p.Sleep.String(),
		"retrain", b.p.Retrain.String(),
		"exit_on_signal", b.p.ExitOnSignal,
	)
	for {
		wait := b.p.Sleep
		if err := b.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			metrics.CycleErrors.WithLabelValues(errorKind(err)).Inc()
			logger.ErrorWithErr(ctx, "Loop error", err, "backoff", b.p.ErrorBackoff.String())
			b.notify(ctx, fmt.Sprintf("Loop error: %v", err))
			wait = b.p.ErrorBackoff
		}
		if !b.sleep(ctx, wait) {
			break
		}
	}
	logger.Info(ctx, "Trading loop stopped", "symbol", b.p.Symbol)
	return ctx.Err()
}

// Cycle runs a single pass. A paused engine skips the pass without error.
func (b *Bot) Cycle(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "bot.Cycle")
	defer span.End()

	if b.exec.IsPaused(ctx) {
		logger.Debug(ctx, "Trading paused, skipping cycle", "symbol", b.p.Symbol)
		return nil
	}

	rows, err := b.data.Merged(ctx)
	if err != nil {
		return fmt.Errorf("load market data: %w", err)
	}

	if b.needsTraining() {
		if err := b.model.Train(ctx, rows); err != nil {
			metrics.CycleErrors.WithLabelValues("train").Inc()
			logger.ErrorWithErr(ctx, "Model training failed, keeping current model", err, "loaded", b.model.Loaded())
		}
	}

	rows = strategy.Enrich(b.model.AddProb(rows), b.p.Thresholds)
	b.snap.Publish(rows, b.now())
	if len(rows) == 0 {
		return fmt.Errorf("%w: empty feature table", types.ErrInsufficientData)
	}

	if err := b.act(ctx, rows[len(rows)-1]); err != nil {
		return err
	}
	metrics.CyclesTotal.Inc()
	return nil
}

func (b *Bot) needsTraining() bool {
	if !b.model.Loaded() {
		return true
	}
	return b.now().Sub(b.model.LastTrained()) > b.p.Retrain
}

// act drives the engine from the newest row.
func (b *Bot) act(ctx context.Context, last types.FeatureRow) error {
	pos, holding := b.exec.Position()
	if !holding {
		if !last.Long && !last.Short {
			return nil
		}
		side := types.Long
		if !last.Long {
			side = types.Short
		}
		qty := b.p.Sizing.Qty(last)
		logger.Info(ctx, "Entry signal",
			"symbol", b.p.Symbol,
			"side", side,
			"close", last.Close,
			"prob_up", last.ProbUp,
			"qty", qty,
		)
		return b.exec.Open(ctx, last.Close, qty, side)
	}

	// A rejected close still reconciles: the venue may already be flat.
	var closeErr error
	if b.p.ExitOnSignal && exitFlag(last, pos.Side) {
		closeErr = b.exec.Close(ctx, last.Close, "signal")
	}

	syncErr := b.exec.Sync(ctx)
	b.exec.PollClosed(ctx, last.Close)
	if syncErr != nil {
		syncErr = fmt.Errorf("sync position: %w", syncErr)
	}
	return errors.Join(closeErr, syncErr)
}

func exitFlag(r types.FeatureRow, side types.Side) bool {
	if side == types.Long {
		return r.ExitL
	}
	return r.ExitS
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, types.ErrInsufficientData):
		return "data"
	case errors.Is(err, types.ErrProtectionFailed):
		return "protection"
	case errors.Is(err, types.ErrOrderFailed):
		return "order"
	case errors.Is(err, types.ErrConnectivity):
		return "connectivity"
	default:
		return "other"
	}
}

func (b *Bot) notify(ctx context.Context, msg string) {
	if b.notifier != nil {
		b.notifier.Notify(ctx, msg)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
