package postgres

import (
	"database/sql"
	"time"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
)

// RunDBModel представляет прогон анализа в БД
type RunDBModel struct {
	ID              string
	SourceFile      string
	ContentHash     string
	Entries         int
	TotalSamples    int
	FailingWindows  int
	DroppedBlocks   int
	DurationSeconds float64
	DurationSource  string
	P50Average      float64
	P95Average      float64
	P95Max          float64
	P99Max          float64
	Passed          bool
	WarningCount    int
	AnalyzedAt      time.Time
}

// SampleDBModel представляет один блок статистики в БД
type SampleDBModel struct {
	RunID            string
	Seq              int
	LogTimestamp     string
	SampleCount      int
	TotalSamples     int
	P50              float64
	P95              float64
	P99              float64
	MeetsRequirement bool
}

// ToRunDBModel конвертирует AnalysisRun в DB Model
func ToRunDBModel(run *entity.AnalysisRun) *RunDBModel {
	summary := run.Summary()

	return &RunDBModel{
		ID:              run.ID(),
		SourceFile:      run.SourceFile(),
		ContentHash:     run.ContentHash(),
		Entries:         summary.Entries,
		TotalSamples:    summary.TotalSamples,
		FailingWindows:  summary.FailingWindows,
		DroppedBlocks:   run.DroppedCount(),
		DurationSeconds: summary.Duration.Seconds(),
		DurationSource:  string(summary.DurationSource),
		P50Average:      summary.P50.Average,
		P95Average:      summary.P95.Average,
		P95Max:          summary.P95.Max,
		P99Max:          summary.P99.Max,
		Passed:          run.Outcome().Passed(),
		WarningCount:    len(run.Outcome().Warnings()),
		AnalyzedAt:      run.AnalyzedAt(),
	}
}

// ToSampleDBModels конвертирует сэмплы прогона, сохраняя порядок в логе
func ToSampleDBModels(run *entity.AnalysisRun) []SampleDBModel {
	samples := run.Samples()
	models := make([]SampleDBModel, len(samples))
	for i, s := range samples {
		models[i] = SampleDBModel{
			RunID:            run.ID(),
			Seq:              i,
			LogTimestamp:     s.Timestamp().String(),
			SampleCount:      s.SampleCount(),
			TotalSamples:     s.TotalSamples(),
			P50:              s.P50(),
			P95:              s.P95(),
			P99:              s.P99(),
			MeetsRequirement: s.MeetsRequirement(),
		}
	}
	return models
}

// ToRunRecord конвертирует DB Model в запись истории
func ToRunRecord(model *RunDBModel) repository.RunRecord {
	return repository.RunRecord{
		ID:             model.ID,
		SourceFile:     model.SourceFile,
		ContentHash:    model.ContentHash,
		Entries:        model.Entries,
		TotalSamples:   model.TotalSamples,
		FailingWindows: model.FailingWindows,
		P95Average:     model.P95Average,
		P95Max:         model.P95Max,
		Passed:         model.Passed,
		WarningCount:   model.WarningCount,
		AnalyzedAt:     model.AnalyzedAt.UTC(),
	}
}

// ScanRunRow сканирует строку истории прогонов
func ScanRunRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*RunDBModel, error) {
	var model RunDBModel
	var contentHash sql.NullString

	err := scanner.Scan(
		&model.ID,
		&model.SourceFile,
		&contentHash,
		&model.Entries,
		&model.TotalSamples,
		&model.FailingWindows,
		&model.P95Average,
		&model.P95Max,
		&model.Passed,
		&model.WarningCount,
		&model.AnalyzedAt,
	)
	if err != nil {
		return nil, err
	}

	if contentHash.Valid {
		model.ContentHash = contentHash.String
	}

	return &model, nil
}
