package engine

import (
	"context"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/store"
)

// ParamsFromConfig maps the bot configuration onto engine parameters.
func ParamsFromConfig(cfg *store.Config) Params {
	return Params{
		Symbol:               cfg.Symbol,
		Mode:                 cfg.Mode(),
		Leverage:             cfg.Leverage,
		Isolated:             cfg.Isolated,
		InitBalance:          cfg.InitBalance,
		SlippagePct:          cfg.Costs.SlippagePct,
		TradeFee:             cfg.Costs.TradeFee,
		TakeProfitPct:        cfg.Risk.TakeProfitPct,
		StopLossPct:          cfg.Risk.StopLossPct,
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		Pause:                cfg.PauseDuration(),
	}
}

func NewFromConfig(ctx context.Context, cfg *store.Config, ex interfaces.Exchange, opts ...Option) (*Engine, error) {
	return New(ctx, ParamsFromConfig(cfg), ex, opts...)
}
