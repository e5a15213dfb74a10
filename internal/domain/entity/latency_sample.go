package entity

import "github.com/dreschagin/latency-validator/internal/domain/valueobject"

// LatencySample представляет один блок статистики задержек из лога (Value Object)
// Иммутабельный объект: создается экстрактором и больше не меняется
type LatencySample struct {
	timestamp        valueobject.LogTimestamp
	sampleCount      int
	totalSamples     int
	p50              float64
	p95              float64
	p99              float64
	meetsRequirement bool
}

// NewLatencySample создает новый LatencySample
// Порядок p50 <= p95 <= p99 не проверяется: данные из лога передаются как есть
func NewLatencySample(
	timestamp valueobject.LogTimestamp,
	sampleCount, totalSamples int,
	p50, p95, p99 float64,
	meetsRequirement bool,
) LatencySample {
	return LatencySample{
		timestamp:        timestamp,
		sampleCount:      sampleCount,
		totalSamples:     totalSamples,
		p50:              p50,
		p95:              p95,
		p99:              p99,
		meetsRequirement: meetsRequirement,
	}
}

// Timestamp возвращает исходную метку времени из лога
func (s LatencySample) Timestamp() valueobject.LogTimestamp {
	return s.timestamp
}

// SampleCount возвращает количество измерений в окне
func (s LatencySample) SampleCount() int {
	return s.sampleCount
}

// TotalSamples возвращает накопительный счетчик измерений с начала сессии
func (s LatencySample) TotalSamples() int {
	return s.totalSamples
}

// P50 возвращает медиану задержки в миллисекундах
func (s LatencySample) P50() float64 {
	return s.p50
}

// P95 возвращает 95-й перцентиль задержки в миллисекундах
func (s LatencySample) P95() float64 {
	return s.p95
}

// P99 возвращает 99-й перцентиль задержки в миллисекундах
func (s LatencySample) P99() float64 {
	return s.p99
}

// Percentile возвращает значение указанного перцентиля
func (s LatencySample) Percentile(p valueobject.Percentile) float64 {
	switch p {
	case valueobject.P50:
		return s.p50
	case valueobject.P95:
		return s.p95
	case valueobject.P99:
		return s.p99
	default:
		return 0
	}
}

// MeetsRequirement возвращает true, если блок был помечен как успешный
func (s LatencySample) MeetsRequirement() bool {
	return s.meetsRequirement
}

// Domain Methods (бизнес-логика)

// IsFailingWindow проверяет, является ли окно проваленным
func (s LatencySample) IsFailingWindow() bool {
	return !s.meetsRequirement
}

// ExceedsThreshold проверяет, превышает ли P95 указанный порог
func (s LatencySample) ExceedsThreshold(thresholdMs float64) bool {
	return s.p95 > thresholdMs
}
