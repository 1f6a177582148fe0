package engineobs

import (
	"context"
	"errors"
	"time"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/trace"
	"futuresbot/internal/types"
)

type observableEngine struct {
	engine interfaces.Executor
}

var _ interfaces.Executor = (*observableEngine)(nil)

func Wrap(eng interfaces.Executor) interfaces.Executor {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) IsPaused(ctx context.Context) bool {
	return oe.engine.IsPaused(ctx)
}

func (oe *observableEngine) Position() (types.Position, bool) {
	return oe.engine.Position()
}

func (oe *observableEngine) Open(ctx context.Context, price, qty float64, side types.Side) error {
	ctx, span := trace.StartSpan(ctx, "engine.Open")
	defer span.End()

	start := time.Now()
	logger.DebugSkip(ctx, 1, "Opening position", "side", side, "price", price, "qty", qty)

	err := oe.engine.Open(ctx, price, qty, side)
	switch {
	case errors.Is(err, types.ErrProtectionFailed):
		logger.ErrorWithErrSkip(ctx, 1, "Position opened without protection", err,
			"side", side,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	case err != nil:
		logger.ErrorWithErrSkip(ctx, 1, "Open failed", err,
			"side", side,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	default:
		logger.DebugSkip(ctx, 1, "Open completed", "side", side, "duration_ms", time.Since(start).Milliseconds())
	}
	return err
}

func (oe *observableEngine) Close(ctx context.Context, price float64, reason string) error {
	ctx, span := trace.StartSpan(ctx, "engine.Close")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position on signal", "price", price, "reason", reason)

	err := oe.engine.Close(ctx, price, reason)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Close failed", err, "reason", reason)
	}
	return err
}

func (oe *observableEngine) PollClosed(ctx context.Context, price float64) {
	ctx, span := trace.StartSpan(ctx, "engine.PollClosed")
	defer span.End()

	oe.engine.PollClosed(ctx, price)
}

func (oe *observableEngine) Sync(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "engine.Sync")
	defer span.End()

	err := oe.engine.Sync(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Position sync failed", err)
	}
	return err
}
