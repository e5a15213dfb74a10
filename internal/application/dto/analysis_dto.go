package dto

import (
	"time"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

// PercentileStatsDTO содержит статистику одного перцентиля
type PercentileStatsDTO struct {
	Average float64 `json:"average_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
}

// RuleResultDTO содержит результат одного правила
type RuleResultDTO struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// WarningDTO содержит предупреждение валидации
type WarningDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalysisDTO представляет результат прогона анализа
// Используется для --json вывода, кеша и событий NATS
type AnalysisDTO struct {
	RunID       string    `json:"run_id"`
	SourceFile  string    `json:"source_file"`
	ContentHash string    `json:"content_hash,omitempty"`
	AnalyzedAt  time.Time `json:"analyzed_at"`

	Entries         int     `json:"entries"`
	TotalSamples    int     `json:"total_samples"`
	FailingWindows  int     `json:"failing_windows"`
	DurationSeconds float64 `json:"duration_seconds"`
	DurationSource  string  `json:"duration_source"`
	SampleRateHz    float64 `json:"sample_rate_hz"`
	FirstTimestamp  string  `json:"first_timestamp"`
	LastTimestamp   string  `json:"last_timestamp"`
	DroppedBlocks   int     `json:"dropped_blocks"`

	P50 PercentileStatsDTO `json:"p50"`
	P95 PercentileStatsDTO `json:"p95"`
	P99 PercentileStatsDTO `json:"p99"`

	Passed   bool            `json:"passed"`
	Rules    []RuleResultDTO `json:"rules"`
	Warnings []WarningDTO    `json:"warnings"`

	Samples []SampleDTO `json:"samples,omitempty"`
}

// FromAnalysisRun конвертирует AnalysisRun в DTO.
// Сэмплы включаются только при includeSamples.
func FromAnalysisRun(run *entity.AnalysisRun, includeSamples bool) *AnalysisDTO {
	summary := run.Summary()
	outcome := run.Outcome()

	d := &AnalysisDTO{
		RunID:           run.ID(),
		SourceFile:      run.SourceFile(),
		ContentHash:     run.ContentHash(),
		AnalyzedAt:      run.AnalyzedAt(),
		Entries:         summary.Entries,
		TotalSamples:    summary.TotalSamples,
		FailingWindows:  summary.FailingWindows,
		DurationSeconds: summary.Duration.Seconds(),
		DurationSource:  string(summary.DurationSource),
		SampleRateHz:    summary.SampleRateHz,
		FirstTimestamp:  summary.FirstTimestamp.String(),
		LastTimestamp:   summary.LastTimestamp.String(),
		DroppedBlocks:   run.DroppedCount(),
		P50:             fromStats(summary.P50),
		P95:             fromStats(summary.P95),
		P99:             fromStats(summary.P99),
		Passed:          outcome.Passed(),
		Rules:           make([]RuleResultDTO, 0, len(outcome.Rules())),
		Warnings:        make([]WarningDTO, 0, len(outcome.Warnings())),
	}

	for _, r := range outcome.Rules() {
		d.Rules = append(d.Rules, RuleResultDTO{Name: string(r.Name), Passed: r.Passed})
	}
	for _, w := range outcome.Warnings() {
		d.Warnings = append(d.Warnings, WarningDTO{Code: string(w.Code), Message: w.Message})
	}

	if includeSamples {
		d.Samples = ToSampleDTOs(run.Samples())
	}

	return d
}

// ToSummary восстанавливает агрегаты из DTO (например, после чтения из кеша)
func (d *AnalysisDTO) ToSummary() *entity.LatencySummary {
	return &entity.LatencySummary{
		Entries:        d.Entries,
		TotalSamples:   d.TotalSamples,
		FailingWindows: d.FailingWindows,
		P50:            d.P50.toStats(),
		P95:            d.P95.toStats(),
		P99:            d.P99.toStats(),
		Duration:       time.Duration(d.DurationSeconds * float64(time.Second)),
		DurationSource: entity.DurationSource(d.DurationSource),
		SampleRateHz:   d.SampleRateHz,
		FirstTimestamp: valueobject.NewLogTimestamp(d.FirstTimestamp),
		LastTimestamp:  valueobject.NewLogTimestamp(d.LastTimestamp),
	}
}

// ToOutcome восстанавливает результат валидации из DTO
func (d *AnalysisDTO) ToOutcome() *entity.ValidationOutcome {
	rules := make([]entity.RuleResult, len(d.Rules))
	for i, r := range d.Rules {
		rules[i] = entity.RuleResult{Name: entity.RuleName(r.Name), Passed: r.Passed}
	}

	warnings := make([]entity.Warning, len(d.Warnings))
	for i, w := range d.Warnings {
		warnings[i] = entity.Warning{Code: entity.WarningCode(w.Code), Message: w.Message}
	}

	return entity.NewValidationOutcome(rules, warnings)
}

// ToSamples восстанавливает сэмплы из DTO
func (d *AnalysisDTO) ToSamples() []entity.LatencySample {
	samples := make([]entity.LatencySample, len(d.Samples))
	for i, s := range d.Samples {
		samples[i] = s.ToEntity()
	}
	return samples
}

func fromStats(s entity.PercentileStats) PercentileStatsDTO {
	return PercentileStatsDTO{Average: s.Average, Min: s.Min, Max: s.Max}
}

func (d PercentileStatsDTO) toStats() entity.PercentileStats {
	return entity.PercentileStats{Average: d.Average, Min: d.Min, Max: d.Max}
}
