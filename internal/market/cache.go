package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"futuresbot/internal/types"
)

// candleCache keeps one JSON file of candles per symbol and timeframe.
type candleCache struct {
	dir string
	mu  sync.RWMutex
}

func newCandleCache(dir string) *candleCache {
	return &candleCache{dir: dir}
}

func (c *candleCache) path(safeSymbol, timeframe string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", safeSymbol, timeframe))
}

// load returns the cached series, or nil when nothing has been cached yet.
func (c *candleCache) load(safeSymbol, timeframe string) ([]types.Candle, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(safeSymbol, timeframe))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var candles []types.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("decode candle cache: %w", err)
	}
	return candles, nil
}

func (c *candleCache) save(safeSymbol, timeframe string, candles []types.Candle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(candles)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	// write-then-rename so a crash never leaves a truncated cache
	tmp := c.path(safeSymbol, timeframe) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(safeSymbol, timeframe))
}

// mergeCandles combines two series ordered by open time. On duplicate
// timestamps the candle from fresh wins.
func mergeCandles(cached, fresh []types.Candle) []types.Candle {
	byTs := make(map[int64]types.Candle, len(cached)+len(fresh))
	for _, c := range cached {
		byTs[c.Ts] = c
	}
	for _, c := range fresh {
		byTs[c.Ts] = c
	}

	out := make([]types.Candle, 0, len(byTs))
	for _, c := range byTs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out
}

func tail[T any](s []T, n int) []T {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
