// Package eod writes a per-day CSV summary of the trade journal.
package eod

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"futuresbot/internal/tradelog"
	"futuresbot/internal/types"
)

const dayLayout = "2006-01-02"

var headers = []string{"side", "entries", "closes", "wins", "losses", "realized_pnl", "closing_balance"}

type eodSummarizer struct {
	journalDir string
}

// CSVPath is where the summary for the UTC day of t is written.
func CSVPath(journalDir string, t time.Time) string {
	return filepath.Join(journalDir, "eod", t.UTC().Format(dayLayout)+".csv")
}

// sideOf maps LONG/CLOSE_LONG to LONG and SHORT/CLOSE_SHORT to SHORT.
func sideOf(tradeSide string) (side string, closing bool) {
	if s, ok := strings.CutPrefix(tradeSide, "CLOSE_"); ok {
		return s, true
	}
	return tradeSide, false
}

func aggregate(trades []types.Trade) (long, short, total *aggRow) {
	long, short = &aggRow{Side: "LONG"}, &aggRow{Side: "SHORT"}
	total = &aggRow{Side: "TOTAL"}
	for _, t := range trades {
		side, closing := sideOf(t.Side)
		row := long
		switch side {
		case "LONG":
		case "SHORT":
			row = short
		default:
			continue
		}
		for _, r := range []*aggRow{row, total} {
			r.Balance = t.Balance
			if !closing {
				r.Entries++
				continue
			}
			r.Closes++
			var pnl float64
			if t.PnL != nil {
				pnl = *t.PnL
			}
			r.RealizedPnL += pnl
			if pnl < 0 {
				r.Losses++
			} else {
				r.Wins++
			}
		}
	}
	return long, short, total
}

func record(r *aggRow) []string {
	return []string{
		r.Side,
		strconv.Itoa(r.Entries),
		strconv.Itoa(r.Closes),
		strconv.Itoa(r.Wins),
		strconv.Itoa(r.Losses),
		fmt.Sprintf("%.2f", r.RealizedPnL),
		fmt.Sprintf("%.2f", r.Balance),
	}
}

// SummarizeDay writes the CSV for the UTC day of t. It returns an empty
// path and no error when the day has no journaled trades.
func (s *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	trades, err := tradelog.ReadDay(s.journalDir, t)
	if err != nil {
		return "", fmt.Errorf("read journal: %w", err)
	}
	if len(trades) == 0 {
		return "", nil
	}

	outPath := CSVPath(s.journalDir, t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	long, short, total := aggregate(trades)
	w := csv.NewWriter(out)
	for _, rec := range [][]string{headers, record(long), record(short), record(total)} {
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

// ShouldRunNow reports whether the previous UTC day has a journal but no
// summary yet.
func (s *eodSummarizer) ShouldRunNow(now time.Time) (bool, time.Time) {
	y, m, d := now.UTC().Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	if _, err := os.Stat(tradelog.DayFile(s.journalDir, day)); err != nil {
		return false, day
	}
	if _, err := os.Stat(CSVPath(s.journalDir, day)); errors.Is(err, os.ErrNotExist) {
		return true, day
	}
	return false, day
}
