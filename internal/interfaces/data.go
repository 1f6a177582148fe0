package interfaces

import (
	"context"

	"futuresbot/internal/types"
)

type DataSource interface {
	Merged(ctx context.Context) ([]types.FeatureRow, error)
}
