package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dreschagin/latency-validator/internal/application/dto"
	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

// ValidationCompletedSubject тема NATS для событий о завершенной валидации
const ValidationCompletedSubject = "latency.validation.completed"

var sourceKeySanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Названия приемников результата
const (
	SinkPostgres   = "postgres"
	SinkS3         = "s3"
	SinkDynamoDB   = "dynamodb"
	SinkCloudWatch = "cloudwatch"
	SinkNATS       = "nats"
	SinkTextfile   = "textfile"
)

type PublishAnalysisCommand struct {
	Run    *entity.AnalysisRun
	Report string
}

// SinkError ошибка одного приемника
type SinkError struct {
	Sink string
	Err  error
}

func (e SinkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Sink, e.Err)
}

func (e SinkError) Unwrap() error {
	return e.Err
}

type PublishAnalysisResult struct {
	Delivered []string
	Failed    []SinkError
	Artifacts []port.ReportMetadata
}

type PublishAnalysisConfig struct {
	KeyPrefix         string
	Subject           string
	TextfilePath      string
	ArtifactRetention time.Duration
}

// PublishAnalysisUseCase передает результат прогона во все настроенные приемники.
// Отсутствующие приемники пропускаются, ошибки не прерывают остальные.
type PublishAnalysisUseCase struct {
	repository repository.AnalysisRepository
	storage    port.ReportStorage
	metadata   port.ReportMetadataRepository
	metrics    port.MetricsPublisher
	events     port.EventPublisher
	textfile   port.MetricsTextfile
	exporter   port.SampleExporter
	config     PublishAnalysisConfig
	logger     *logger.Logger
}

// PublishAnalysisSinks набор приемников; любое поле может быть nil
type PublishAnalysisSinks struct {
	Repository repository.AnalysisRepository
	Storage    port.ReportStorage
	Metadata   port.ReportMetadataRepository
	Metrics    port.MetricsPublisher
	Events     port.EventPublisher
	Textfile   port.MetricsTextfile
}

func NewPublishAnalysisUseCase(
	sinks PublishAnalysisSinks,
	exporter port.SampleExporter,
	config PublishAnalysisConfig,
	log *logger.Logger,
) *PublishAnalysisUseCase {
	if config.Subject == "" {
		config.Subject = ValidationCompletedSubject
	}

	return &PublishAnalysisUseCase{
		repository: sinks.Repository,
		storage:    sinks.Storage,
		metadata:   sinks.Metadata,
		metrics:    sinks.Metrics,
		events:     sinks.Events,
		textfile:   sinks.Textfile,
		exporter:   exporter,
		config:     config,
		logger:     log,
	}
}

// Execute публикует прогон в порядке: Postgres, S3 и DynamoDB, CloudWatch, NATS, textfile
func (uc *PublishAnalysisUseCase) Execute(
	ctx context.Context,
	cmd PublishAnalysisCommand,
) (*PublishAnalysisResult, error) {
	if cmd.Run == nil {
		return nil, fmt.Errorf("analysis run is required")
	}

	run := cmd.Run
	result := &PublishAnalysisResult{}

	if uc.repository != nil {
		uc.record(result, SinkPostgres, uc.repository.SaveRun(ctx, run))
	}

	if uc.storage != nil {
		artifacts, err := uc.archive(ctx, run, cmd.Report)
		uc.record(result, SinkS3, err)
		result.Artifacts = artifacts

		if uc.metadata != nil && len(artifacts) > 0 {
			uc.record(result, SinkDynamoDB, uc.metadata.PutBatch(ctx, artifacts))
		}
	}

	if uc.metrics != nil {
		err := uc.metrics.PublishSummary(ctx, run)
		if err == nil {
			err = uc.metrics.Flush(ctx)
		}
		uc.record(result, SinkCloudWatch, err)
	}

	if uc.events != nil {
		uc.record(result, SinkNATS, uc.events.PublishEvent(ctx, uc.config.Subject, dto.FromAnalysisRun(run, false)))
	}

	if uc.textfile != nil && uc.config.TextfilePath != "" {
		err := uc.textfile.Observe(run)
		if err == nil {
			err = uc.textfile.WriteTextfile(uc.config.TextfilePath)
		}
		uc.record(result, SinkTextfile, err)
	}

	return result, nil
}

func (uc *PublishAnalysisUseCase) record(result *PublishAnalysisResult, sink string, err error) {
	if err != nil {
		uc.logger.Error("Failed to publish analysis", err, "sink", sink)
		result.Failed = append(result.Failed, SinkError{Sink: sink, Err: err})
		return
	}

	uc.logger.Debug("Analysis published", "sink", sink)
	result.Delivered = append(result.Delivered, sink)
}

// archive загружает текст отчета и CSV сэмплов
func (uc *PublishAnalysisUseCase) archive(
	ctx context.Context,
	run *entity.AnalysisRun,
	reportText string,
) ([]port.ReportMetadata, error) {
	type artifact struct {
		kind        string
		ext         string
		contentType string
		body        []byte
	}

	artifacts := []artifact{
		{kind: "report", ext: "txt", contentType: "text/plain; charset=utf-8", body: []byte(reportText)},
	}

	if uc.exporter != nil {
		body, err := uc.exporter.Encode(run.Samples())
		if err != nil {
			return nil, fmt.Errorf("failed to encode samples: %w", err)
		}
		artifacts = append(artifacts, artifact{kind: "samples", ext: "csv", contentType: "text/csv", body: body})
	}

	analyzedAt := run.AnalyzedAt().UTC()
	summary := run.Summary()
	passed := run.Outcome().Passed()
	labels := map[string]string{
		"run-id":       run.ID(),
		"source-file":  sourceKeySanitizer.ReplaceAllString(filepath.Base(run.SourceFile()), "_"),
		"content-hash": run.ContentHash(),
		"verdict":      verdictLabel(passed),
	}

	items := make([]port.ReportMetadata, 0, len(artifacts))
	for _, a := range artifacts {
		key := uc.buildS3Key(run, a.kind, a.ext)

		url, err := uc.storage.PutObject(ctx, port.ArchiveObject{
			Key:         key,
			ContentType: a.contentType,
			Body:        a.body,
			Labels:      labels,
		})
		if err != nil {
			return items, fmt.Errorf("failed to upload %s: %w", a.kind, err)
		}

		item := port.ReportMetadata{
			SourceFile:     run.SourceFile(),
			RunID:          run.ID(),
			ContentHash:    run.ContentHash(),
			ArtifactType:   a.kind,
			S3Key:          key,
			URL:            url,
			ContentType:    a.contentType,
			SizeBytes:      int64(len(a.body)),
			Passed:         passed,
			TotalSamples:   summary.TotalSamples,
			FailingWindows: summary.FailingWindows,
			P95MaxMs:       summary.P95.Max,
			AnalyzedAt:     analyzedAt,
		}
		if uc.config.ArtifactRetention > 0 {
			item.ExpiresAt = analyzedAt.Add(uc.config.ArtifactRetention)
		}
		items = append(items, item)
	}

	return items, nil
}

func verdictLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

func (uc *PublishAnalysisUseCase) buildS3Key(run *entity.AnalysisRun, kind, ext string) string {
	prefix := strings.Trim(uc.config.KeyPrefix, "/")
	if prefix == "" {
		prefix = "latency-reports"
	}

	source := sourceKeySanitizer.ReplaceAllString(filepath.Base(run.SourceFile()), "_")
	analyzedAt := run.AnalyzedAt().UTC()
	timestamp := analyzedAt.Format("20060102T150405Z")
	datePrefix := analyzedAt.Format("2006/01/02")

	runID := run.ID()
	if len(runID) > 8 {
		runID = runID[:8]
	}

	return fmt.Sprintf("%s/%s/%s/%s_%s_%s.%s", prefix, source, datePrefix, timestamp, runID, kind, ext)
}
