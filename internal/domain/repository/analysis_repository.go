package repository

import (
	"context"
	"time"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
)

// RunRecord представляет сохраненный прогон анализа (без сэмплов)
type RunRecord struct {
	ID             string
	SourceFile     string
	ContentHash    string
	Entries        int
	TotalSamples   int
	FailingWindows int
	P95Average     float64
	P95Max         float64
	Passed         bool
	WarningCount   int
	AnalyzedAt     time.Time
}

// AnalysisRepository определяет интерфейс для хранения истории прогонов (Port)
// Реализация будет в Infrastructure слое
type AnalysisRepository interface {
	// SaveRun сохраняет прогон вместе с сэмплами одной транзакцией
	SaveRun(ctx context.Context, run *entity.AnalysisRun) error

	// FindRecent возвращает последние прогоны для указанного файла
	FindRecent(ctx context.Context, sourceFile string, limit int) ([]RunRecord, error)
}
