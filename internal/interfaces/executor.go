package interfaces

import (
	"context"

	"futuresbot/internal/types"
)

// Executor is what the orchestration loop drives each cycle.
type Executor interface {
	IsPaused(ctx context.Context) bool
	Position() (types.Position, bool)
	Open(ctx context.Context, price, qty float64, side types.Side) error
	Close(ctx context.Context, price float64, reason string) error
	PollClosed(ctx context.Context, price float64)
	Sync(ctx context.Context) error
}

// StateReader is the read side of the engine used by dashboards.
type StateReader interface {
	State() types.EngineState
}
