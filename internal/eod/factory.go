package eod

import (
	"futuresbot/internal/interfaces"
)

// NewSummarizer reads journals from and writes reports under journalDir.
func NewSummarizer(journalDir string) interfaces.EodSummarizer {
	return &eodSummarizer{journalDir: journalDir}
}
