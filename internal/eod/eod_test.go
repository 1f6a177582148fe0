package eod

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"futuresbot/internal/tradelog"
	"futuresbot/internal/types"
)

func pnl(v float64) *float64 { return &v }

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func journalDay(t *testing.T, dir string) {
	t.Helper()
	j := tradelog.New(dir)
	defer j.Close()

	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }
	trades := []types.Trade{
		{ID: "1", Time: at(1), Side: "LONG", Price: 50025, Qty: 0.1, Balance: 1000},
		{ID: "2", Time: at(2), Side: "CLOSE_LONG", Price: 52500, Qty: 0.1, Balance: 1240, PnL: pnl(240)},
		{ID: "3", Time: at(3), Side: "SHORT", Price: 52000, Qty: 0.1, Balance: 1240},
		{ID: "4", Time: at(4), Side: "CLOSE_SHORT", Price: 53000, Qty: 0.1, Balance: 1140, PnL: pnl(-100)},
		{ID: "5", Time: at(5), Side: "LONG", Price: 53000, Qty: 0.1, Balance: 1140},
		{ID: "6", Time: at(6), Side: "CLOSE_LONG", Price: 53000, Qty: 0.1, Balance: 1136.8, PnL: pnl(-3.2)},
	}
	for _, tr := range trades {
		if err := j.Append(tr); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSummarizeDay(t *testing.T) {
	dir := t.TempDir()
	journalDay(t, dir)

	s := NewSummarizer(dir)
	path, err := s.SummarizeDay(day.Add(12 * time.Hour))
	if err != nil {
		t.Fatalf("Expected summary, got %v", err)
	}
	if path != CSVPath(dir, day) {
		t.Errorf("Expected %s, got %s", CSVPath(dir, day), path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	want := [][]string{
		{"side", "entries", "closes", "wins", "losses", "realized_pnl", "closing_balance"},
		{"LONG", "2", "2", "1", "1", "236.80", "1136.80"},
		{"SHORT", "1", "1", "0", "1", "-100.00", "1140.00"},
		{"TOTAL", "3", "3", "1", "2", "136.80", "1136.80"},
	}
	if len(recs) != len(want) {
		t.Fatalf("Expected %d records, got %d: %v", len(want), len(recs), recs)
	}
	for i := range want {
		for k := range want[i] {
			if recs[i][k] != want[i][k] {
				t.Errorf("Record %d col %d: expected %s, got %s", i, k, want[i][k], recs[i][k])
			}
		}
	}
}

func TestSummarizeDayWithoutTrades(t *testing.T) {
	s := NewSummarizer(t.TempDir())
	path, err := s.SummarizeDay(day)
	if err != nil || path != "" {
		t.Errorf("Expected no report, got %q (%v)", path, err)
	}
}

func TestShouldRunNow(t *testing.T) {
	dir := t.TempDir()
	s := NewSummarizer(dir)
	next := day.AddDate(0, 0, 1).Add(10 * time.Minute)

	if ok, d := s.ShouldRunNow(next); ok || !d.Equal(day) {
		t.Errorf("Expected no run without a journal for %v, got %v %v", day, ok, d)
	}

	journalDay(t, dir)
	ok, d := s.ShouldRunNow(next)
	if !ok || !d.Equal(day) {
		t.Fatalf("Expected run for %v, got %v %v", day, ok, d)
	}

	if _, err := s.SummarizeDay(d); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.ShouldRunNow(next); ok {
		t.Error("Expected no run once the report exists")
	}
}
