package eodobs

import (
	"context"
	"time"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(t time.Time) (string, error) {
	ctx := context.Background()
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeDay")
	defer span.End()

	date := t.UTC().Format("2006-01-02")
	logger.InfoSkip(ctx, 1, "Starting daily summary", "date", date)

	csvPath, err := oes.summarizer.SummarizeDay(t)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Daily summary failed", err, "date", date)
		return "", err
	}

	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades journaled for day", "date", date)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "Daily summary written", "date", date, "csv_path", csvPath)
	return csvPath, nil
}

func (oes *observableEodSummarizer) ShouldRunNow(now time.Time) (bool, time.Time) {
	ctx := context.Background()
	ctx, span := trace.StartSpan(ctx, "eod.ShouldRunNow")
	defer span.End()

	shouldRun, day := oes.summarizer.ShouldRunNow(now)

	logger.DebugSkip(ctx, 1, "Daily summary check",
		"should_run", shouldRun,
		"day", day.Format("2006-01-02"),
	)
	return shouldRun, day
}
