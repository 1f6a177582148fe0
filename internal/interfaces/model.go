package interfaces

import (
	"context"
	"time"

	"futuresbot/internal/types"
)

type Model interface {
	Train(ctx context.Context, rows []types.FeatureRow) error
	// AddProb returns a copy of rows with ProbUp set; 0.5 when untrained.
	AddProb(rows []types.FeatureRow) []types.FeatureRow
	Loaded() bool
	LastTrained() time.Time
}
