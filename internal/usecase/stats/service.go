// Package stats serves exact aggregate statistics from a full
// collection scan.
package stats

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/warehouse-ai/ragcore/internal/domain"
	"github.com/warehouse-ai/ragcore/internal/domain/salary"
)

// Scroller pages through every stored point.
type Scroller interface {
	ScrollAll(ctx context.Context, batchSize int) ([]domain.ScrollPoint, error)
	PointsCount(ctx context.Context) (int64, error)
}

// DefaultBatchSize is the scroll page size.
const DefaultBatchSize = 200

// Service computes salary statistics over the whole collection.
type Service struct {
	store     Scroller
	batchSize int
	logger    *zap.Logger
}

// New creates a stats service.
func New(store Scroller, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, batchSize: DefaultBatchSize, logger: logger}
}

// Compute scans all points and aggregates salary figures. Always a full
// scan; Top-K retrieval must never feed arithmetic.
func (s *Service) Compute(ctx context.Context) (salary.Summary, error) {
	points, err := s.store.ScrollAll(ctx, s.batchSize)
	if err != nil {
		return salary.Summary{}, fmt.Errorf("scroll points: %w", err)
	}

	summary := salary.Compute(points)

	count, err := s.store.PointsCount(ctx)
	if err != nil {
		return salary.Summary{}, fmt.Errorf("points count: %w", err)
	}
	summary.CollectionCount = count

	s.logger.Debug("computed salary stats",
		zap.Int("points_scanned", summary.PointsScanned),
		zap.Int("employees", summary.EmployeeCount),
	)
	return summary, nil
}
