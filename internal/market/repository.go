// Package market fetches multi-timeframe candles, keeps them cached on disk
// and builds the merged feature table the strategy runs on.
package market

import (
	"context"
	"fmt"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/store"
	"futuresbot/internal/trace"
	"futuresbot/internal/types"
)

// Timeframes in merge order: base, RSI source, EMA source.
const (
	BaseTimeframe = "15m"
	RSITimeframe  = "1h"
	EMATimeframe  = "4h"
)

// maxCachedFactor bounds the on-disk history to a multiple of the fetch limit.
const maxCachedFactor = 10

// Repository implements interfaces.DataSource.
type Repository struct {
	ex     interfaces.Exchange
	cache  *candleCache
	symbol string
	limit  int
}

var _ interfaces.DataSource = (*Repository)(nil)

func NewRepository(ex interfaces.Exchange, dataDir, symbol string, limit int) *Repository {
	if limit <= 0 {
		limit = 500
	}
	return &Repository{
		ex:     ex,
		cache:  newCandleCache(dataDir),
		symbol: symbol,
		limit:  limit,
	}
}

// NewFromConfig builds a repository for the configured symbol.
func NewFromConfig(cfg *store.Config, ex interfaces.Exchange) *Repository {
	return NewRepository(ex, cfg.Data.DataDir, cfg.Symbol, cfg.Data.CandleLimit)
}

// Candles returns the latest limit candles for timeframe. New candles are
// fetched from just before the last cached bar so the still-forming bar is
// refreshed. A fetch failure falls back to whatever is cached.
func (r *Repository) Candles(ctx context.Context, timeframe string) ([]types.Candle, error) {
	safe := store.SafeSymbol(r.symbol)

	cached, err := r.cache.load(safe, timeframe)
	if err != nil {
		logger.Warn(ctx, "Ignoring unreadable candle cache", "timeframe", timeframe, "error", err.Error())
		cached = nil
	}

	var since int64
	if len(cached) > 2 {
		since = cached[len(cached)-2].Ts
	}

	fresh, err := r.ex.FetchOHLCV(ctx, r.symbol, timeframe, since, r.limit)
	if err != nil {
		if len(cached) == 0 {
			return nil, fmt.Errorf("fetch %s candles: %w", timeframe, err)
		}
		logger.Warn(ctx, "Candle fetch failed, using cache",
			"timeframe", timeframe,
			"cached", len(cached),
			"error", err.Error(),
		)
		return tail(cached, r.limit), nil
	}

	all := tail(mergeCandles(cached, fresh), r.limit*maxCachedFactor)
	if err := r.cache.save(safe, timeframe, all); err != nil {
		logger.Warn(ctx, "Failed to write candle cache", "timeframe", timeframe, "error", err.Error())
	}
	return tail(all, r.limit), nil
}

// Merged builds the 15m feature table with 1h RSI and 4h EMAs attached.
func (r *Repository) Merged(ctx context.Context) ([]types.FeatureRow, error) {
	ctx, span := trace.StartSpan(ctx, "market.Merged")
	defer span.End()

	frames := make(map[string][]types.FeatureRow, 3)
	for _, tf := range []string{BaseTimeframe, RSITimeframe, EMATimeframe} {
		candles, err := r.Candles(ctx, tf)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", types.ErrInsufficientData, tf, err)
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("%w: no %s candles for %s", types.ErrInsufficientData, tf, r.symbol)
		}
		frames[tf] = indicatorRows(candles)
	}

	rows := mergeFrames(frames[BaseTimeframe], frames[RSITimeframe], frames[EMATimeframe])
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no complete rows for %s", types.ErrInsufficientData, r.symbol)
	}

	logger.Debug(ctx, "Merged feature table", "symbol", r.symbol, "rows", len(rows))
	return rows, nil
}
