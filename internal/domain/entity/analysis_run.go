package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRun представляет один прогон анализа лога (Aggregate Root)
// Объединяет исходные сэмплы, агрегаты и результат валидации
type AnalysisRun struct {
	id           string
	sourceFile   string
	contentHash  string
	samples      []LatencySample
	summary      *LatencySummary
	outcome      *ValidationOutcome
	droppedCount int
	analyzedAt   time.Time
}

// NewAnalysisRun создает новый прогон анализа (Factory Method)
func NewAnalysisRun(
	sourceFile, contentHash string,
	samples []LatencySample,
	summary *LatencySummary,
	outcome *ValidationOutcome,
	droppedCount int,
) *AnalysisRun {
	return &AnalysisRun{
		id:           uuid.New().String(),
		sourceFile:   sourceFile,
		contentHash:  contentHash,
		samples:      append([]LatencySample(nil), samples...),
		summary:      summary,
		outcome:      outcome,
		droppedCount: droppedCount,
		analyzedAt:   time.Now().UTC(),
	}
}

// ID возвращает идентификатор прогона
func (r *AnalysisRun) ID() string {
	return r.id
}

// SourceFile возвращает путь к проанализированному логу
func (r *AnalysisRun) SourceFile() string {
	return r.sourceFile
}

// ContentHash возвращает SHA-256 содержимого лога
func (r *AnalysisRun) ContentHash() string {
	return r.contentHash
}

// Samples возвращает копию сэмплов в порядке их появления в логе
func (r *AnalysisRun) Samples() []LatencySample {
	return append([]LatencySample(nil), r.samples...)
}

// Summary возвращает агрегированные метрики
func (r *AnalysisRun) Summary() *LatencySummary {
	return r.summary
}

// Outcome возвращает результат валидации
func (r *AnalysisRun) Outcome() *ValidationOutcome {
	return r.outcome
}

// DroppedCount возвращает количество отброшенных блоков
func (r *AnalysisRun) DroppedCount() int {
	return r.droppedCount
}

// AnalyzedAt возвращает время прогона
func (r *AnalysisRun) AnalyzedAt() time.Time {
	return r.analyzedAt
}
