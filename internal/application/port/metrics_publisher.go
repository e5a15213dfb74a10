package port

import (
	"context"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
)

// MetricsPublisher defines the interface for publishing run results to external observability platforms.
type MetricsPublisher interface {
	// PublishSummary publishes the aggregated statistics and verdict of one analysis run.
	// Implementations should handle batching constraints (e.g., CloudWatch's 1000 metrics/request limit).
	PublishSummary(ctx context.Context, run *entity.AnalysisRun) error

	// Flush forces immediate publication of any buffered metrics.
	Flush(ctx context.Context) error
}
