package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"futuresbot/internal/bot"
	"futuresbot/internal/dashboard"
	"futuresbot/internal/engine"
	"futuresbot/internal/engine/engineobs"
	"futuresbot/internal/eod"
	"futuresbot/internal/eod/eodobs"
	"futuresbot/internal/exchange"
	"futuresbot/internal/exchange/exchangeobs"
	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/market"
	"futuresbot/internal/model"
	"futuresbot/internal/notify"
	"futuresbot/internal/store"
	"futuresbot/internal/trace"
	"futuresbot/internal/tradelog"
)

const eodCheckInterval = time.Minute

// initializeSystem loads .env and sets up logging and tracing
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs gzips journals past the configured retention
func compressOldLogs(ctx context.Context, cfg *store.Config) {
	if cfg.JournalRetentionDays <= 0 {
		return
	}
	if err := tradelog.CompressOlder(cfg.JournalDir, cfg.JournalRetentionDays, time.Now()); err != nil {
		logger.Warn(ctx, "Failed to compress old journals", "error", err.Error())
	}
}

// initializeExchange builds the configured venue with observability
func initializeExchange(ctx context.Context, cfg *store.Config) (interfaces.Exchange, error) {
	ex, err := exchange.New(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Exchange ready",
		"exchange", ex.Name(),
		"testnet", cfg.Testnet,
		"mode", cfg.Mode(),
	)
	if cfg.TestMode {
		logger.Warn(ctx, "Running in paper mode - orders are simulated")
	}
	return exchangeobs.Wrap(ex), nil
}

// initializeEngine returns the engine (read side for the dashboard) and
// its observable executor (driven by the loop)
func initializeEngine(ctx context.Context, cfg *store.Config, ex interfaces.Exchange, journal interfaces.TradeJournal, n interfaces.Notifier) (*engine.Engine, interfaces.Executor, error) {
	eng, err := engine.NewFromConfig(ctx, cfg, ex,
		engine.WithJournal(journal),
		engine.WithNotifier(n),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize engine: %w", err)
	}
	return eng, engineobs.Wrap(eng), nil
}

func initializeEOD(cfg *store.Config) interfaces.EodSummarizer {
	return eod.NewSummarizer(cfg.JournalDir)
}

// runEODScheduler writes the previous UTC day's summary once it is complete
func runEODScheduler(ctx context.Context, summarizer interfaces.EodSummarizer) {
	ticker := time.NewTicker(eodCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if ok, day := summarizer.ShouldRunNow(now); ok {
				_, _ = summarizer.SummarizeDay(day)
			}
		}
	}
}

func runBot(ctx context.Context, cfgPath string) error {
	if err := initializeSystem(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	compressOldLogs(ctx, cfg)

	notifier := notify.FromConfig(cfg)
	journal := tradelog.New(cfg.JournalDir)
	defer journal.Close()

	ex, err := initializeExchange(ctx, cfg)
	if err != nil {
		return err
	}
	eng, exec, err := initializeEngine(ctx, cfg, ex, journal, notifier)
	if err != nil {
		return err
	}

	mdl, err := model.New(cfg.ModelPath(), model.WithNotifier(notifier))
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	logger.Info(ctx, "Model state", "path", cfg.ModelPath(), "loaded", mdl.Loaded(), "trained_at", mdl.LastTrained())

	snap := bot.NewSnapshot(cfg.Loop.SnapshotRows)
	b := bot.New(bot.ParamsFromConfig(cfg), market.NewFromConfig(cfg, ex), mdl, exec, snap,
		bot.WithNotifier(notifier),
	)

	if cfg.Dashboard.Addr != "" {
		dash := dashboard.New(cfg.Dashboard.Addr, snap, eng, time.Duration(cfg.Dashboard.PushSeconds)*time.Second)
		if err := dash.Start(ctx); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
	}

	go runEODScheduler(ctx, eodobs.Wrap(initializeEOD(cfg)))

	notifier.Notify(ctx, fmt.Sprintf("Bot started: %s %s on %s", cfg.Symbol, cfg.Mode(), ex.Name()))
	err = b.Run(ctx)
	logger.Info(ctx, "Shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
