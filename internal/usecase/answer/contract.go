package answer

import (
	"context"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/domain/salary"
)

// Searcher runs a Top-K similarity search for a query vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]domain.SearchHit, error)
}

// Aggregator computes exact statistics over the whole collection.
type Aggregator interface {
	Compute(ctx context.Context) (salary.Summary, error)
}
