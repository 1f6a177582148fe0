// Package tradelog keeps an append-only journal of ledger entries, one JSON
// object per line, in one file per UTC day.
package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/types"
)

const (
	dayLayout = "2006-01-02"
	ext       = ".jsonl"
)

// DayFile is the journal path for the UTC day containing t.
func DayFile(dir string, t time.Time) string {
	return filepath.Join(dir, t.UTC().Format(dayLayout)+ext)
}

// dailyFile is a zapcore.WriteSyncer whose target is switched per day.
type dailyFile struct {
	dir string
	day string
	f   *os.File
}

func (d *dailyFile) rotate(day string) error {
	if d.f != nil && d.day == day {
		return nil
	}
	if d.f != nil {
		_ = d.f.Close()
		d.f = nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(d.dir, day+ext), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	d.f, d.day = f, day
	return nil
}

func (d *dailyFile) Write(p []byte) (int, error) {
	if d.f == nil {
		return 0, errors.New("journal file not open")
	}
	return d.f.Write(p)
}

func (d *dailyFile) Sync() error {
	if d.f == nil {
		return nil
	}
	return d.f.Sync()
}

func (d *dailyFile) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// Journal implements interfaces.TradeJournal.
type Journal struct {
	mu   sync.Mutex
	out  *dailyFile
	core zapcore.Core
}

var _ interfaces.TradeJournal = (*Journal)(nil)

func New(dir string) *Journal {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "time",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
	})
	out := &dailyFile{dir: dir}
	return &Journal{
		out:  out,
		core: zapcore.NewCore(enc, out, zapcore.InfoLevel),
	}
}

// Append writes t to the file of its own UTC day.
func (j *Journal) Append(t types.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.out.rotate(t.Time.UTC().Format(dayLayout)); err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	fields := []zap.Field{
		zap.String("id", t.ID),
		zap.String("symbol", t.Symbol),
		zap.String("side", t.Side),
		zap.Float64("price", t.Price),
		zap.Float64("qty", t.Qty),
		zap.Float64("balance", t.Balance),
	}
	if t.PnL != nil {
		fields = append(fields, zap.Float64("pnl", *t.PnL))
	}
	if t.Reason != "" {
		fields = append(fields, zap.String("reason", t.Reason))
	}

	entry := zapcore.Entry{Level: zapcore.InfoLevel, Time: t.Time.UTC()}
	if err := j.core.Write(entry, fields); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return j.core.Sync()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Close()
}

// ReadDay loads the journal of a UTC day. A missing file yields no trades;
// malformed lines are skipped.
func ReadDay(dir string, day time.Time) ([]types.Trade, error) {
	f, err := os.Open(DayFile(dir, day))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var trades []types.Trade
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var t types.Trade
		if err := json.Unmarshal(sc.Bytes(), &t); err != nil {
			continue
		}
		trades = append(trades, t)
	}
	return trades, sc.Err()
}

// CompressOlder gzips journal files last modified more than retentionDays
// ago and removes the originals.
func CompressOlder(dir string, retentionDays int, now time.Time) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		return gzipFile(p, gz)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	_, copyErr := io.Copy(gw, in)
	closeErr := errors.Join(gw.Close(), out.Close())
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(dst)
		return errors.Join(copyErr, closeErr)
	}
	return os.Remove(src)
}
