package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"futuresbot/internal/types"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults to load, got %v", err)
	}

	if cfg.Symbol != "BTC/USDT" {
		t.Errorf("Expected symbol BTC/USDT, got %s", cfg.Symbol)
	}
	if cfg.Leverage != 3 {
		t.Errorf("Expected leverage 3, got %d", cfg.Leverage)
	}
	if cfg.Thresholds.Buy != 0.65 || cfg.Thresholds.Sell != 0.40 || cfg.Thresholds.Short != 0.35 {
		t.Errorf("Unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Mode() != types.Paper {
		t.Errorf("Expected paper mode, got %s", cfg.Mode())
	}
	if cfg.RetrainInterval() != 24*time.Hour {
		t.Errorf("Expected 24h retrain interval, got %v", cfg.RetrainInterval())
	}
	if cfg.Loop.SnapshotRows != 500 {
		t.Errorf("Expected 500 snapshot rows, got %d", cfg.Loop.SnapshotRows)
	}
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
exchange: bybit
leverage: 5
isolated: false
thresholds:
  buy: 0.7
risk:
  pause_hours: 2
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROB_SELL_TH", "0.45")
	t.Setenv("POSITION_MARGIN", "50")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if cfg.Exchange != "BYBIT" {
		t.Errorf("Expected BYBIT, got %s", cfg.Exchange)
	}
	if cfg.Leverage != 5 || cfg.Isolated {
		t.Errorf("Expected leverage 5 cross margin, got %d isolated=%v", cfg.Leverage, cfg.Isolated)
	}
	if cfg.Thresholds.Buy != 0.7 {
		t.Errorf("Expected buy threshold 0.7, got %g", cfg.Thresholds.Buy)
	}
	// untouched keys keep their defaults
	if cfg.Thresholds.Short != 0.35 {
		t.Errorf("Expected default short threshold, got %g", cfg.Thresholds.Short)
	}
	if cfg.Thresholds.Sell != 0.45 {
		t.Errorf("Expected env sell threshold 0.45, got %g", cfg.Thresholds.Sell)
	}
	if cfg.MarginPerTrade != 50 {
		t.Errorf("Expected margin 50, got %g", cfg.MarginPerTrade)
	}
	if cfg.PauseDuration() != 2*time.Hour {
		t.Errorf("Expected 2h pause, got %v", cfg.PauseDuration())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"no sizing", func(c *Config) { c.PosSize = 0; c.MarginPerTrade = 0 }, "position_size"},
		{"leverage", func(c *Config) { c.Leverage = 0 }, "leverage"},
		{"exchange", func(c *Config) { c.Exchange = "KRAKEN" }, "invalid exchange"},
		{"live without keys", func(c *Config) { c.TestMode = false }, "requires"},
		{"threshold", func(c *Config) { c.Thresholds.Buy = 1.2 }, "thresholds.buy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Expected defaults to be valid, got %v", err)
	}
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("LEVERAGE", "three")
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for non-numeric LEVERAGE")
	}
}

func TestModelPath(t *testing.T) {
	c := Default()
	got := c.ModelPath()
	want := filepath.Join("models", "model_BTC_USDT_fut.json")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
