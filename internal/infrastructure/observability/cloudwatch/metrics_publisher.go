package cloudwatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"golang.org/x/time/rate"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/infrastructure/awsclient"
)

// CloudWatch limit
const maxMetricsPerRequest = 1000

// MetricsPublisherConfig holds configuration for CloudWatch metrics publishing.
type MetricsPublisherConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "LatencyValidator")
	Region            string            // AWS region (e.g., "us-east-1")
	Endpoint          string            // Optional endpoint override (for LocalStack)
	AccessKeyID       string            // AWS access key
	SecretAccessKey   string            // AWS secret key
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
	RequestsPerSecond float64           // PutMetricData pacing, 0 disables it
}

type putMetricDataAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsPublisher publishes analysis run summaries to AWS CloudWatch.
type MetricsPublisher struct {
	client            putMetricDataAPI
	namespace         string
	defaultDimensions map[string]string
	storageResolution int32
	limiter           *rate.Limiter

	buffer []types.MetricDatum
	mu     sync.Mutex
}

var _ port.MetricsPublisher = (*MetricsPublisher)(nil)

// NewMetricsPublisher creates a new CloudWatch metrics publisher.
func NewMetricsPublisher(ctx context.Context, cfg MetricsPublisherConfig) (*MetricsPublisher, error) {
	if err := validateMetricsConfig(&cfg); err != nil {
		return nil, err
	}

	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build AWS config: %w", err)
	}

	return newMetricsPublisher(cloudwatch.NewFromConfig(awsCfg), cfg), nil
}

func newMetricsPublisher(client putMetricDataAPI, cfg MetricsPublisherConfig) *MetricsPublisher {
	return &MetricsPublisher{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: cfg.DefaultDimensions,
		storageResolution: cfg.StorageResolution,
		limiter:           newRequestLimiter(cfg.RequestsPerSecond),
	}
}

func validateMetricsConfig(cfg *MetricsPublisherConfig) error {
	if cfg.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("region is required")
	}
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60
	}
	return nil
}

// PublishSummary buffers the datums describing one run. Call Flush to send them.
func (p *MetricsPublisher) PublishSummary(ctx context.Context, run *entity.AnalysisRun) error {
	if run == nil || run.Summary() == nil || run.Outcome() == nil {
		return fmt.Errorf("run summary is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, p.summaryToData(run)...)
	return nil
}

// Flush forces immediate publication of all buffered metrics.
func (p *MetricsPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) == 0 {
		return nil
	}

	for i := 0; i < len(p.buffer); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(p.buffer) {
			end = len(p.buffer)
		}

		chunk := p.buffer[i:end]
		err := withRetry(ctx, p.limiter, func() error {
			_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
				Namespace:  aws.String(p.namespace),
				MetricData: chunk,
			})
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to publish chunk: %w", err)
		}
	}

	p.buffer = p.buffer[:0]
	return nil
}

// summaryToData maps a run to CloudWatch datums, all stamped with the run time.
func (p *MetricsPublisher) summaryToData(run *entity.AnalysisRun) []types.MetricDatum {
	summary := run.Summary()
	outcome := run.Outcome()

	passed := 0.0
	if outcome.Passed() {
		passed = 1
	}

	values := []struct {
		name  string
		value float64
		unit  types.StandardUnit
	}{
		{"P50Average", summary.P50.Average, types.StandardUnitMilliseconds},
		{"P95Average", summary.P95.Average, types.StandardUnitMilliseconds},
		{"P95Max", summary.P95.Max, types.StandardUnitMilliseconds},
		{"P99Average", summary.P99.Average, types.StandardUnitMilliseconds},
		{"P99Max", summary.P99.Max, types.StandardUnitMilliseconds},
		{"TotalSamples", float64(summary.TotalSamples), types.StandardUnitCount},
		{"FailingWindows", float64(summary.FailingWindows), types.StandardUnitCount},
		{"WarningCount", float64(len(outcome.Warnings())), types.StandardUnitCount},
		{"DroppedBlocks", float64(run.DroppedCount()), types.StandardUnitCount},
		{"SessionDuration", summary.Duration.Seconds(), types.StandardUnitSeconds},
		{"ValidationPassed", passed, types.StandardUnitNone},
	}

	dimensions := p.dimensions(run.SourceFile())
	data := make([]types.MetricDatum, 0, len(values))
	for _, v := range values {
		datum := types.MetricDatum{
			MetricName: aws.String(v.name),
			Value:      aws.Float64(v.value),
			Unit:       v.unit,
			Timestamp:  aws.Time(run.AnalyzedAt()),
			Dimensions: dimensions,
		}
		if p.storageResolution > 0 {
			datum.StorageResolution = aws.Int32(p.storageResolution)
		}
		data = append(data, datum)
	}

	return data
}

func (p *MetricsPublisher) dimensions(sourceFile string) []types.Dimension {
	dimensions := make([]types.Dimension, 0, len(p.defaultDimensions)+1)
	for key, value := range p.defaultDimensions {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(value),
		})
	}

	return append(dimensions, types.Dimension{
		Name:  aws.String("SourceFile"),
		Value: aws.String(sourceFile),
	})
}
