// Package model estimates the probability that the next close is higher.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/metrics"
	"futuresbot/internal/trace"
	"futuresbot/internal/types"
)

// Features is the input column order of the classifier.
var Features = []string{
	"close", "ema_fast", "ema_slow", "rsi",
	"rsi_1h", "ema_fast_4h", "ema_slow_4h",
	"atr", "macd", "macd_sig",
}

func featureVector(r types.FeatureRow) []float64 {
	return []float64{
		r.Close, r.EMAFast, r.EMASlow, r.RSI,
		r.RSI1h, r.EMAFast4h, r.EMASlow4h,
		r.ATR, r.MACD, r.MACDSig,
	}
}

// MinTrainRows is the smallest table Train accepts.
const MinTrainRows = 50

const trainSplit = 0.8

type persisted struct {
	Features  []string  `json:"features"`
	TrainedAt time.Time `json:"trained_at"`
	Logit     logit     `json:"logit"`
}

// Model implements interfaces.Model and persists itself as JSON after
// every successful training.
type Model struct {
	mu        sync.RWMutex
	path      string
	lr        *logit
	trainedAt time.Time
	now       func() time.Time
	rng       *rand.Rand
	fit       fitOptions
	notifier  interfaces.Notifier
}

var _ interfaces.Model = (*Model)(nil)

type Option func(*Model)

func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func WithNotifier(n interfaces.Notifier) Option {
	return func(m *Model) { m.notifier = n }
}

// New loads the model stored at path when present. A missing file yields
// an untrained model; a corrupt one is an error.
func New(path string, opts ...Option) (*Model, error) {
	m := &Model{
		path: path,
		now:  time.Now,
		rng:  rand.New(rand.NewSource(42)),
		fit:  defaultFit,
	}
	for _, o := range opts {
		o(m)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if len(p.Logit.W) != len(Features) || len(p.Logit.Mean) != len(Features) || len(p.Logit.Std) != len(Features) {
		logger.Warn(context.Background(), "Ignoring model with mismatched features", "path", path, "features", len(p.Logit.W))
		return m, nil
	}
	m.lr = &p.Logit
	m.trainedAt = p.TrainedAt
	return m, nil
}

func (m *Model) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lr != nil
}

func (m *Model) LastTrained() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trainedAt
}

// Train fits on the first 80% of rows and early-stops on the rest. An
// existing model is used as the starting point.
func (m *Model) Train(ctx context.Context, rows []types.FeatureRow) (err error) {
	ctx, span := trace.StartSpan(ctx, "model.Train")
	defer span.End()
	op := logger.StartOperation(ctx, "model_train", "rows", len(rows))
	defer func() {
		if err != nil {
			metrics.ModelTrainings.WithLabelValues("error").Inc()
			op.EndWithError(err)
			return
		}
		metrics.ModelTrainings.WithLabelValues("ok").Inc()
	}()

	if len(rows) < MinTrainRows {
		return fmt.Errorf("%w: %d rows to train on, need %d", types.ErrInsufficientData, len(rows), MinTrainRows)
	}

	xs := make([][]float64, len(rows))
	ys := make([]float64, len(rows))
	for i, r := range rows {
		xs[i] = featureVector(r)
		ys[i] = float64(r.Target)
	}
	split := int(float64(len(rows)) * trainSplit)

	m.mu.Lock()
	defer m.mu.Unlock()

	next := &logit{W: make([]float64, len(Features))}
	if m.lr != nil {
		copy(next.W, m.lr.W)
		next.B = m.lr.B
	}
	next.Mean, next.Std = fitMoments(xs[:split], len(Features))

	scaled := make([][]float64, len(xs))
	for i, x := range xs {
		scaled[i] = next.scale(x)
	}
	next.fit(scaled[:split], ys[:split], scaled[split:], ys[split:], m.fit, m.rng)

	trainedAt := m.now().UTC()
	if err := save(m.path, persisted{Features: Features, TrainedAt: trainedAt, Logit: *next}); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	m.lr = next
	m.trainedAt = trainedAt

	acc := accuracy(next, scaled[split:], ys[split:])
	op.End("validation_accuracy", acc, "path", m.path)
	if m.notifier != nil {
		m.notifier.Notify(ctx, fmt.Sprintf("Model retrained on %d rows (validation accuracy %.3f)", len(rows), acc))
	}
	return nil
}

// AddProb returns a copy of rows with ProbUp filled in.
func (m *Model) AddProb(rows []types.FeatureRow) []types.FeatureRow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.FeatureRow, len(rows))
	copy(out, rows)
	for i := range out {
		if m.lr == nil {
			out[i].ProbUp = 0.5
			continue
		}
		out[i].ProbUp = m.lr.predict(featureVector(out[i]))
	}
	if len(out) > 0 {
		metrics.ProbUp.Set(out[len(out)-1].ProbUp)
	}
	return out
}

func accuracy(lr *logit, zs [][]float64, ys []float64) float64 {
	if len(zs) == 0 {
		return 0
	}
	hits := 0
	for i, z := range zs {
		pred := 0.0
		if lr.raw(z) > 0.5 {
			pred = 1
		}
		if pred == ys[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(zs))
}

func save(path string, p persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
