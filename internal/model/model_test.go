package model

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"futuresbot/internal/types"
)

// separableRows labels a row up when RSI is above 50.
func separableRows(n int) []types.FeatureRow {
	rng := rand.New(rand.NewSource(7))
	rows := make([]types.FeatureRow, n)
	for i := range rows {
		rsi := rng.Float64() * 100
		px := 50000 + rng.NormFloat64()*100
		rows[i] = types.FeatureRow{
			Close: px, EMAFast: px, EMASlow: px, RSI: rsi,
			RSI1h: 50, EMAFast4h: px, EMASlow4h: px,
			ATR: 100, MACD: rng.NormFloat64(), MACDSig: rng.NormFloat64(),
		}
		if rsi > 50 {
			rows[i].Target = 1
		}
	}
	return rows
}

func TestUntrainedModelIsNeutral(t *testing.T) {
	m, err := New(filepath.Join(t.TempDir(), "model.json"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Loaded() {
		t.Error("Expected no model loaded")
	}
	if !m.LastTrained().IsZero() {
		t.Errorf("Expected zero train time, got %v", m.LastTrained())
	}

	rows := []types.FeatureRow{{Close: 1}, {Close: 2}}
	out := m.AddProb(rows)
	for i, r := range out {
		if r.ProbUp != 0.5 {
			t.Errorf("Row %d: expected 0.5, got %f", i, r.ProbUp)
		}
	}
	if rows[0].ProbUp != 0 {
		t.Error("Expected input rows untouched")
	}
}

func TestTrainLearnsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "model_BTC_USDT_fut.json")
	trainedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := New(path, WithClock(func() time.Time { return trainedAt }))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Train(context.Background(), separableRows(400)); err != nil {
		t.Fatalf("Expected training to succeed, got %v", err)
	}
	if !m.Loaded() || !m.LastTrained().Equal(trainedAt) {
		t.Fatalf("Expected trained model at %v, got loaded=%v at %v", trainedAt, m.Loaded(), m.LastTrained())
	}

	probe := separableRows(1)[0]
	high, low := probe, probe
	high.RSI, low.RSI = 90, 10
	out := m.AddProb([]types.FeatureRow{high, low})
	if out[0].ProbUp <= 0.5 || out[1].ProbUp >= 0.5 {
		t.Errorf("Expected high RSI above 0.5 and low below, got %f / %f", out[0].ProbUp, out[1].ProbUp)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("Expected reload, got %v", err)
	}
	if !reloaded.Loaded() || !reloaded.LastTrained().Equal(trainedAt) {
		t.Errorf("Expected persisted train time %v, got %v", trainedAt, reloaded.LastTrained())
	}
	again := reloaded.AddProb([]types.FeatureRow{high})
	if again[0].ProbUp != out[0].ProbUp {
		t.Errorf("Expected identical prediction after reload, got %f vs %f", again[0].ProbUp, out[0].ProbUp)
	}
}

func TestTrainRejectsShortTable(t *testing.T) {
	m, _ := New(filepath.Join(t.TempDir(), "model.json"))
	err := m.Train(context.Background(), separableRows(MinTrainRows-1))
	if !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
	if m.Loaded() {
		t.Error("Expected model to stay untrained")
	}
}

func TestCorruptModelFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path); err == nil {
		t.Error("Expected decode error")
	}
}

func TestMismatchedModelIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(`{"features":["close"],"logit":{"w":[1],"b":0,"mean":[0],"std":[1]}}`), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Loaded() {
		t.Error("Expected mismatched model not to load")
	}
}

func TestClassWeights(t *testing.T) {
	w0, w1 := classWeights([]float64{1, 0, 0, 0})
	if w0 != 4.0/6.0 || w1 != 2 {
		t.Errorf("Expected 0.667/2, got %f/%f", w0, w1)
	}
	if w0, w1 := classWeights([]float64{1, 1}); w0 != 1 || w1 != 1 {
		t.Errorf("Expected unit weights for one class, got %f/%f", w0, w1)
	}
}

func TestFitMomentsConstantFeature(t *testing.T) {
	mean, std := fitMoments([][]float64{{1, 5}, {3, 5}}, 2)
	if mean[0] != 2 || std[0] != 1 {
		t.Errorf("Expected mean 2 std 1, got %f %f", mean[0], std[0])
	}
	if std[1] != 1 {
		t.Errorf("Expected constant feature std 1, got %f", std[1])
	}
}
