package interfaces

import "time"

type EodSummarizer interface {
	SummarizeDay(t time.Time) (csvPath string, err error)
	ShouldRunNow(now time.Time) (shouldRun bool, day time.Time)
}
