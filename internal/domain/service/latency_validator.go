package service

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

// ValidationRules содержит пороги правил валидации.
// Значения по умолчанию соответствуют требованию P95 < 100ms на 30-минутной сессии при 2 Гц.
type ValidationRules struct {
	P95ThresholdMs     float64 `yaml:"p95_threshold_ms"`
	P95SoftThresholdMs float64 `yaml:"p95_soft_threshold_ms"`
	AverageP95WarnMs   float64 `yaml:"average_p95_warn_ms"`
	P99OutlierMs       float64 `yaml:"p99_outlier_ms"`
	MinTotalSamples    int     `yaml:"min_total_samples"`
	MinDurationMinutes float64 `yaml:"min_duration_minutes"`
	TrendFactor        float64 `yaml:"trend_factor"`
	TrendMinEntries    int     `yaml:"trend_min_entries"`
}

// DefaultValidationRules возвращает пороги по умолчанию
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		P95ThresholdMs:     100.0,
		P95SoftThresholdMs: 90.0,
		AverageP95WarnMs:   80.0,
		P99OutlierMs:       150.0,
		MinTotalSamples:    3600,
		MinDurationMinutes: 30,
		TrendFactor:        1.2,
		TrendMinEntries:    5,
	}
}

// Fingerprint возвращает стабильное строковое представление порогов (для ключей кеша)
func (r ValidationRules) Fingerprint() string {
	return fmt.Sprintf("%g:%g:%g:%g:%d:%g:%g:%d",
		r.P95ThresholdMs, r.P95SoftThresholdMs, r.AverageP95WarnMs, r.P99OutlierMs,
		r.MinTotalSamples, r.MinDurationMinutes, r.TrendFactor, r.TrendMinEntries)
}

// LatencyValidator применяет правила валидации к агрегатам (Domain Service)
type LatencyValidator struct {
	rules ValidationRules
}

// NewLatencyValidator создает новый LatencyValidator
func NewLatencyValidator(rules ValidationRules) *LatencyValidator {
	return &LatencyValidator{rules: rules}
}

// Rules возвращает используемые пороги
func (v *LatencyValidator) Rules() ValidationRules {
	return v.rules
}

// Validate выполняет все правила и формирует предупреждения.
// Итог проходит только если проходят все четыре правила.
func (v *LatencyValidator) Validate(summary *entity.LatencySummary, samples []entity.LatencySample) *entity.ValidationOutcome {
	rules := []entity.RuleResult{
		{Name: entity.RuleNoFailingWindows, Passed: summary.FailingWindows == 0},
		{Name: entity.RulePeakP95, Passed: summary.P95.Max < v.rules.P95ThresholdMs},
		{Name: entity.RuleAverageP95, Passed: summary.P95.Average < v.rules.P95ThresholdMs},
		{Name: entity.RuleSufficientVolume, Passed: summary.TotalSamples >= v.rules.MinTotalSamples},
	}

	return entity.NewValidationOutcome(rules, v.warnings(summary, samples))
}

func (v *LatencyValidator) warnings(summary *entity.LatencySummary, samples []entity.LatencySample) []entity.Warning {
	var warnings []entity.Warning

	if summary.P95.Max > v.rules.P95ThresholdMs {
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningP95Exceeded,
			Message: fmt.Sprintf("P95 exceeded %gms (max: %.2fms)", v.rules.P95ThresholdMs, summary.P95.Max),
		})
	} else if summary.P95.Max > v.rules.P95SoftThresholdMs {
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningP95NearThreshold,
			Message: fmt.Sprintf("P95 close to threshold (max: %.2fms)", summary.P95.Max),
		})
	}

	if summary.P95.Average > v.rules.AverageP95WarnMs {
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningAverageP95High,
			Message: fmt.Sprintf("Average P95 high (%.2fms)", summary.P95.Average),
		})
	}

	if summary.P99.Max > v.rules.P99OutlierMs {
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningP99Outliers,
			Message: fmt.Sprintf("P99 shows outliers (max: %.2fms)", summary.P99.Max),
		})
	}

	if summary.TotalSamples < v.rules.MinTotalSamples {
		message := fmt.Sprintf("Insufficient samples (%s < %s)",
			humanize.Comma(int64(summary.TotalSamples)), humanize.Comma(int64(v.rules.MinTotalSamples)))
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningInsufficientSample,
			Message: message,
		})
	}

	if summary.DurationMinutes() < v.rules.MinDurationMinutes {
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningShortSession,
			Message: fmt.Sprintf("Session too short (%.1f < %g minutes)", summary.DurationMinutes(), v.rules.MinDurationMinutes),
		})
	}

	if early, late, ok := v.Trend(samples); ok && late > early*v.rules.TrendFactor {
		warnings = append(warnings, entity.Warning{
			Code:    entity.WarningIncreasingTrend,
			Message: fmt.Sprintf("P95 increasing over time (%.1fms → %.1fms)", early, late),
		})
	}

	return warnings
}

// Trend сравнивает среднее P95 первой и последней трети последовательности.
// Размер трети n/3 с отбрасыванием остатка, средняя треть не участвует.
// ok == false, если сэмплов меньше TrendMinEntries.
func (v *LatencyValidator) Trend(samples []entity.LatencySample) (early, late float64, ok bool) {
	n := len(samples)
	third := n / 3
	if n < v.rules.TrendMinEntries || third == 0 {
		return 0, 0, false
	}

	series := PercentileSeries(samples, valueobject.P95)
	early = mean(series[:third])
	late = mean(series[n-third:])

	return early, late, true
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
