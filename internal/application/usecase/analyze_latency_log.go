package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/dreschagin/latency-validator/internal/application/dto"
	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/service"
	"github.com/dreschagin/latency-validator/internal/infrastructure/cache/redis"
	"github.com/dreschagin/latency-validator/internal/infrastructure/export/csv"
	"github.com/dreschagin/latency-validator/internal/interfaces/report"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

var (
	// ErrFileNotFound входной файл не существует
	ErrFileNotFound = errors.New("log file not found")
	// ErrNoSamplesFound в логе нет ни одного блока статистики
	ErrNoSamplesFound = errors.New("no latency statistics found in log file")
)

// AnalyzeLatencyLogCommand параметры одного прогона
type AnalyzeLatencyLogCommand struct {
	Path     string
	Detailed bool
	// CSVPath путь для выгрузки сэмплов, пустой отключает выгрузку
	CSVPath string
	// FromCSV входной файл является ранее выгруженным CSV, а не логом
	FromCSV bool
}

// AnalyzeLatencyLogResult результат прогона
type AnalyzeLatencyLogResult struct {
	Run             *entity.AnalysisRun
	Report          string
	CandidateBlocks int
	CacheHit        bool
	ExportedSamples int
	// ExportErr ошибка выгрузки CSV; на итог валидации не влияет
	ExportErr error
}

// AnalyzeLatencyLogUseCase извлекает, агрегирует и валидирует статистику задержек из лога
type AnalyzeLatencyLogUseCase struct {
	extractor  port.SampleExtractor
	aggregator *service.LatencyAggregator
	validator  *service.LatencyValidator
	renderer   *report.TextRenderer
	exporter   port.SampleExporter
	cache      port.Cache
	logger     *logger.Logger
}

// NewAnalyzeLatencyLogUseCase создает новый use case. cache может быть nil
func NewAnalyzeLatencyLogUseCase(
	extractor port.SampleExtractor,
	aggregator *service.LatencyAggregator,
	validator *service.LatencyValidator,
	renderer *report.TextRenderer,
	exporter port.SampleExporter,
	cache port.Cache,
	logger *logger.Logger,
) *AnalyzeLatencyLogUseCase {
	return &AnalyzeLatencyLogUseCase{
		extractor:  extractor,
		aggregator: aggregator,
		validator:  validator,
		renderer:   renderer,
		exporter:   exporter,
		cache:      cache,
		logger:     logger,
	}
}

// Execute выполняет анализ файла
func (uc *AnalyzeLatencyLogUseCase) Execute(
	ctx context.Context,
	cmd AnalyzeLatencyLogCommand,
) (*AnalyzeLatencyLogResult, error) {
	path := strings.TrimSpace(cmd.Path)
	if path == "" {
		return nil, fmt.Errorf("log file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])
	cacheKey := redis.GenerateCacheKey(contentHash, uc.fingerprint(cmd.FromCSV))

	run, cacheHit := uc.loadCached(ctx, cacheKey, path)
	if !cacheHit {
		run, err = uc.analyze(path, contentHash, data, cmd.FromCSV)
		if err != nil {
			return nil, err
		}
		uc.storeCached(ctx, cacheKey, run)
	}

	summary := run.Summary()
	result := &AnalyzeLatencyLogResult{
		Run:             run,
		CandidateBlocks: summary.Entries + run.DroppedCount(),
		CacheHit:        cacheHit,
	}

	result.Report = uc.renderer.Render(report.ReportInput{
		SourceFile:      path,
		Samples:         run.Samples(),
		Summary:         summary,
		Outcome:         run.Outcome(),
		Rules:           uc.validator.Rules(),
		CandidateBlocks: result.CandidateBlocks,
		DroppedBlocks:   run.DroppedCount(),
		Detailed:        cmd.Detailed,
	})

	if cmd.CSVPath != "" {
		if err := uc.exporter.ExportFile(cmd.CSVPath, run.Samples()); err != nil {
			uc.logger.Error("Failed to export samples", err, "path", cmd.CSVPath)
			result.ExportErr = fmt.Errorf("failed to export samples to %s: %w", cmd.CSVPath, err)
		} else {
			result.ExportedSamples = summary.Entries
		}
	}

	uc.logger.Info("Latency log analyzed",
		"run_id", run.ID(),
		"file", path,
		"entries", summary.Entries,
		"total_samples", summary.TotalSamples,
		"passed", run.Outcome().Passed(),
		"warnings", len(run.Outcome().Warnings()),
		"cache_hit", cacheHit,
	)

	return result, nil
}

func (uc *AnalyzeLatencyLogUseCase) analyze(
	path, contentHash string,
	data []byte,
	fromCSV bool,
) (*entity.AnalysisRun, error) {
	var extraction port.ExtractionResult
	if fromCSV {
		samples, err := uc.exporter.Import(bytes.NewReader(data))
		if errors.Is(err, csv.ErrNothingToExport) {
			return nil, ErrNoSamplesFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read samples csv: %w", err)
		}
		extraction = port.ExtractionResult{Samples: samples, CandidateBlocks: len(samples)}
	} else {
		extraction = uc.extractor.Extract(string(data))
	}

	if len(extraction.Samples) == 0 {
		return nil, ErrNoSamplesFound
	}

	summary, err := uc.aggregator.Aggregate(extraction.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate samples: %w", err)
	}

	outcome := uc.validator.Validate(summary, extraction.Samples)

	return entity.NewAnalysisRun(path, contentHash, extraction.Samples, summary, outcome, extraction.Dropped), nil
}

// fingerprint различает результаты при смене порогов, настроек длительности или формата входа
func (uc *AnalyzeLatencyLogUseCase) fingerprint(fromCSV bool) string {
	mode := "log"
	if fromCSV {
		mode = "csv"
	}
	return uc.validator.Rules().Fingerprint() + "|" + uc.aggregator.Config().Fingerprint() + "|" + mode
}

// loadCached возвращает прогон из кеша с новым идентификатором
func (uc *AnalyzeLatencyLogUseCase) loadCached(ctx context.Context, key, path string) (*entity.AnalysisRun, bool) {
	if uc.cache == nil {
		return nil, false
	}

	var cached dto.AnalysisDTO
	if err := uc.cache.Get(ctx, key, &cached); err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			uc.logger.Warn("Failed to read analysis from cache", "error", err.Error())
		}
		return nil, false
	}

	uc.logger.Debug("Cache hit for latency analysis", "key", key, "entries", cached.Entries)

	run := entity.NewAnalysisRun(
		path,
		cached.ContentHash,
		cached.ToSamples(),
		cached.ToSummary(),
		cached.ToOutcome(),
		cached.DroppedBlocks,
	)
	return run, true
}

func (uc *AnalyzeLatencyLogUseCase) storeCached(ctx context.Context, key string, run *entity.AnalysisRun) {
	if uc.cache == nil {
		return
	}

	if err := uc.cache.Set(ctx, key, dto.FromAnalysisRun(run, true)); err != nil {
		uc.logger.Warn("Failed to cache analysis", "error", err.Error())
	}
}
