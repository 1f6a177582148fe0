package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"futuresbot/internal/types"
)

type Config struct {
	Exchange string `yaml:"exchange"`
	Symbol   string `yaml:"symbol"`
	Testnet  bool   `yaml:"testnet"`
	// TestMode selects paper execution.
	TestMode bool `yaml:"test_mode"`

	Leverage       int     `yaml:"leverage"`
	Isolated       bool    `yaml:"isolated"`
	PosSize        float64 `yaml:"position_size"`
	MarginPerTrade float64 `yaml:"position_margin"`
	MaxQty         float64 `yaml:"max_position_limit"`
	InitBalance    float64 `yaml:"init_balance"`

	Thresholds struct {
		Buy   float64 `yaml:"buy"`
		Sell  float64 `yaml:"sell"`
		Short float64 `yaml:"short"`
	} `yaml:"thresholds"`

	Risk struct {
		StopLossPct          float64 `yaml:"stop_loss_pct"`
		TakeProfitPct        float64 `yaml:"take_profit_pct"`
		MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
		PauseHours           float64 `yaml:"pause_hours"`
	} `yaml:"risk"`

	Costs struct {
		SlippagePct float64 `yaml:"slippage_pct"`
		TradeFee    float64 `yaml:"trade_fee"`
	} `yaml:"costs"`

	Loop struct {
		SleepSec        int     `yaml:"sleep_sec"`
		ErrorBackoffSec int     `yaml:"error_backoff_sec"`
		RetrainHours    float64 `yaml:"retrain_hours"`
		ExitOnSignal    bool    `yaml:"exit_on_signal"`
		SnapshotRows    int     `yaml:"snapshot_rows"`
	} `yaml:"loop"`

	Data struct {
		DataDir     string `yaml:"data_dir"`
		ModelDir    string `yaml:"model_dir"`
		CandleLimit int    `yaml:"candle_limit"`
	} `yaml:"data"`

	Dashboard struct {
		Addr        string `yaml:"addr"`
		PushSeconds int    `yaml:"push_seconds"`
	} `yaml:"dashboard"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	JournalDir string `yaml:"journal_dir"`
	// JournalRetentionDays gzips journals older than this; 0 keeps them as is.
	JournalRetentionDays int `yaml:"journal_retention_days"`

	// Venue credentials come from the environment only.
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// Default returns the configuration used when neither the YAML file nor
// the environment set a value.
func Default() *Config {
	c := &Config{
		Exchange:    "BINANCE",
		Symbol:      "BTC/USDT",
		TestMode:    true,
		Leverage:    3,
		Isolated:    true,
		PosSize:     0.001,
		MaxQty:      0.02,
		InitBalance: 10000,
		JournalDir:  "logs",
	}
	c.Thresholds.Buy = 0.65
	c.Thresholds.Sell = 0.40
	c.Thresholds.Short = 0.35
	c.Risk.StopLossPct = 0.02
	c.Risk.TakeProfitPct = 0.05
	c.Risk.MaxConsecutiveLosses = 3
	c.Risk.PauseHours = 1
	c.Costs.SlippagePct = 0.0005
	c.Costs.TradeFee = 0.0006
	c.Loop.SleepSec = 60
	c.Loop.ErrorBackoffSec = 30
	c.Loop.RetrainHours = 24
	c.Loop.SnapshotRows = 500
	c.Data.DataDir = "data"
	c.Data.ModelDir = "models"
	c.Data.CandleLimit = 500
	c.Dashboard.Addr = ":8080"
	c.Dashboard.PushSeconds = 5
	return c
}

func (c *Config) Validate() error {
	if c.Exchange != "BINANCE" && c.Exchange != "BYBIT" {
		return fmt.Errorf("invalid exchange '%s': must be 'BINANCE' or 'BYBIT'", c.Exchange)
	}
	if c.Symbol == "" {
		return errors.New("symbol cannot be empty")
	}
	if c.PosSize <= 0 && c.MarginPerTrade <= 0 {
		return errors.New("position_size or position_margin must be > 0")
	}
	if c.Leverage < 1 {
		return fmt.Errorf("leverage must be >= 1, got %d", c.Leverage)
	}
	if c.MaxQty <= 0 {
		return fmt.Errorf("max_position_limit must be > 0, got %g", c.MaxQty)
	}
	for name, v := range map[string]float64{
		"thresholds.buy":   c.Thresholds.Buy,
		"thresholds.sell":  c.Thresholds.Sell,
		"thresholds.short": c.Thresholds.Short,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be within (0,1), got %g", name, v)
		}
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.TakeProfitPct <= 0 {
		return errors.New("risk.stop_loss_pct and risk.take_profit_pct must be > 0")
	}
	if c.Risk.MaxConsecutiveLosses < 1 {
		return fmt.Errorf("risk.max_consecutive_losses must be >= 1, got %d", c.Risk.MaxConsecutiveLosses)
	}
	if c.Loop.SleepSec <= 0 {
		return fmt.Errorf("loop.sleep_sec must be > 0, got %d", c.Loop.SleepSec)
	}
	if !c.TestMode && (c.APIKey == "" || c.APISecret == "") {
		return fmt.Errorf("live mode on %s requires %s_API_KEY and %s_API_SECRET", c.Exchange, c.Exchange, c.Exchange)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return errors.New("telegram enabled but bot token or chat id missing")
	}
	return nil
}

// LoadConfig reads path (optional), applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.Exchange = strings.ToUpper(c.Exchange)
	c.APIKey = os.Getenv(c.Exchange + "_API_KEY")
	c.APISecret = os.Getenv(c.Exchange + "_API_SECRET")

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("EXCHANGE", &c.Exchange)
	str("SYMBOL", &c.Symbol)
	boolean("TESTNET", &c.Testnet)
	boolean("TEST_MODE", &c.TestMode)
	integer("LEVERAGE", &c.Leverage)
	boolean("ISOLATED", &c.Isolated)
	num("POSITION_SIZE", &c.PosSize)
	num("POSITION_MARGIN", &c.MarginPerTrade)
	num("MAX_POSITION_LIMIT", &c.MaxQty)
	num("INIT_BALANCE", &c.InitBalance)
	num("PROB_BUY_TH", &c.Thresholds.Buy)
	num("PROB_SELL_TH", &c.Thresholds.Sell)
	num("PROB_SHORT_TH", &c.Thresholds.Short)
	num("STOP_LOSS_PCT", &c.Risk.StopLossPct)
	num("TP_PCT", &c.Risk.TakeProfitPct)
	integer("MAX_CONSECUTIVE_LOSSES", &c.Risk.MaxConsecutiveLosses)
	num("PAUSE_HR", &c.Risk.PauseHours)
	num("SLIPPAGE_PCT", &c.Costs.SlippagePct)
	num("TRADE_FEE", &c.Costs.TradeFee)
	integer("SLEEP_SEC", &c.Loop.SleepSec)
	integer("ERROR_BACKOFF_SEC", &c.Loop.ErrorBackoffSec)
	num("TRAIN_HR", &c.Loop.RetrainHours)
	boolean("EXIT_ON_SIGNAL", &c.Loop.ExitOnSignal)
	str("DATA_DIR", &c.Data.DataDir)
	str("MODEL_DIR", &c.Data.ModelDir)
	str("DASHBOARD_ADDR", &c.Dashboard.Addr)
	str("TRADER_LOG_DIR", &c.JournalDir)
	integer("TRADER_LOG_RETENTION_DAYS", &c.JournalRetentionDays)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)
	if c.Telegram.BotToken != "" && c.Telegram.ChatID != "" && os.Getenv("TELEGRAM_ENABLED") == "" {
		c.Telegram.Enabled = true
	}
	boolean("TELEGRAM_ENABLED", &c.Telegram.Enabled)

	return errors.Join(errs...)
}

// EnsureDirs creates the data, model and journal directories.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.Data.DataDir, c.Data.ModelDir, c.JournalDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Mode() types.Mode {
	if c.TestMode {
		return types.Paper
	}
	return types.Live
}

// ModelPath is where the trained classifier for the configured symbol lives.
func (c *Config) ModelPath() string {
	return filepath.Join(c.Data.ModelDir, "model_"+SafeSymbol(c.Symbol)+"_fut.json")
}

func (c *Config) Sleep() time.Duration {
	return time.Duration(c.Loop.SleepSec) * time.Second
}

func (c *Config) ErrorBackoff() time.Duration {
	if c.Loop.ErrorBackoffSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Loop.ErrorBackoffSec) * time.Second
}

func (c *Config) RetrainInterval() time.Duration {
	return hours(c.Loop.RetrainHours)
}

func (c *Config) PauseDuration() time.Duration {
	return hours(c.Risk.PauseHours)
}

// SafeSymbol turns "BTC/USDT" into "BTC_USDT" for file names.
func SafeSymbol(symbol string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(symbol)
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
