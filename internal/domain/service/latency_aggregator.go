package service

import (
	"errors"
	"time"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

// DefaultCadence интервал между блоками статистики в логе
const DefaultCadence = 30 * time.Second

// ErrNoSamples возвращается при агрегации пустой последовательности
var ErrNoSamples = errors.New("no samples to aggregate")

// AggregationConfig настраивает оценку длительности сессии
type AggregationConfig struct {
	Cadence        time.Duration
	DurationSource entity.DurationSource
}

// DefaultAggregationConfig возвращает конфигурацию, совпадающую с форматом LatencyService
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		Cadence:        DefaultCadence,
		DurationSource: entity.DurationFromCadence,
	}
}

// Fingerprint возвращает стабильное строковое представление конфигурации
func (c AggregationConfig) Fingerprint() string {
	return c.Cadence.String() + ":" + string(c.DurationSource)
}

// LatencyAggregator сводит последовательность сэмплов в агрегаты (Domain Service)
type LatencyAggregator struct {
	cfg AggregationConfig
}

// NewLatencyAggregator создает новый LatencyAggregator
func NewLatencyAggregator(cfg AggregationConfig) *LatencyAggregator {
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	if cfg.DurationSource == "" {
		cfg.DurationSource = entity.DurationFromCadence
	}
	return &LatencyAggregator{cfg: cfg}
}

// Config возвращает конфигурацию после применения значений по умолчанию
func (a *LatencyAggregator) Config() AggregationConfig {
	return a.cfg
}

// Aggregate вычисляет агрегаты по непустой последовательности сэмплов
func (a *LatencyAggregator) Aggregate(samples []entity.LatencySample) (*entity.LatencySummary, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	last := samples[len(samples)-1]
	summary := &entity.LatencySummary{
		Entries:        len(samples),
		TotalSamples:   last.TotalSamples(),
		FirstTimestamp: samples[0].Timestamp(),
		LastTimestamp:  last.Timestamp(),
	}

	for _, s := range samples {
		if s.IsFailingWindow() {
			summary.FailingWindows++
		}
	}

	var err error
	if summary.P50, err = a.percentileStats(samples, valueobject.P50); err != nil {
		return nil, err
	}
	if summary.P95, err = a.percentileStats(samples, valueobject.P95); err != nil {
		return nil, err
	}
	if summary.P99, err = a.percentileStats(samples, valueobject.P99); err != nil {
		return nil, err
	}

	summary.Duration, summary.DurationSource = a.EstimateDuration(samples)

	minutes := summary.Duration.Minutes()
	if minutes > 0 {
		summary.SampleRateHz = float64(summary.TotalSamples) / (minutes * 60)
	}

	return summary, nil
}

// EstimateDuration оценивает длительность сессии.
// Режим timestamps откатывается на cadence, если метки времени не разбираются.
func (a *LatencyAggregator) EstimateDuration(samples []entity.LatencySample) (time.Duration, entity.DurationSource) {
	byCadence := time.Duration(len(samples)) * a.cfg.Cadence

	if a.cfg.DurationSource != entity.DurationFromTimestamps || len(samples) == 0 {
		return byCadence, entity.DurationFromCadence
	}

	span, err := valueobject.NewTimeRangeFromLog(samples[0].Timestamp(), samples[len(samples)-1].Timestamp())
	if err != nil {
		return byCadence, entity.DurationFromCadence
	}

	// Каждый блок описывает окно длиной cadence, поэтому добавляем одно окно к промежутку
	return span.Duration() + a.cfg.Cadence, entity.DurationFromTimestamps
}

func (a *LatencyAggregator) percentileStats(samples []entity.LatencySample, p valueobject.Percentile) (entity.PercentileStats, error) {
	values := PercentileSeries(samples, p)

	avg, err := a.CalculateAverage(values)
	if err != nil {
		return entity.PercentileStats{}, err
	}
	min, err := a.CalculateMin(values)
	if err != nil {
		return entity.PercentileStats{}, err
	}
	max, err := a.CalculateMax(values)
	if err != nil {
		return entity.PercentileStats{}, err
	}

	return entity.PercentileStats{Min: min, Max: max, Average: avg}, nil
}

// PercentileSeries извлекает значения перцентиля в порядке сэмплов
func PercentileSeries(samples []entity.LatencySample, p valueobject.Percentile) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Percentile(p)
	}
	return values
}

// CalculateAverage вычисляет среднее значение
func (a *LatencyAggregator) CalculateAverage(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values)), nil
}

// CalculateMin находит минимальное значение
func (a *LatencyAggregator) CalculateMin(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}

	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}

	return min, nil
}

// CalculateMax находит максимальное значение
func (a *LatencyAggregator) CalculateMax(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoSamples
	}

	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}

	return max, nil
}
