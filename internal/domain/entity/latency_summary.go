package entity

import (
	"time"

	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

// DurationSource описывает, как была оценена длительность сессии
type DurationSource string

const (
	// DurationFromCadence: количество блоков, умноженное на интервал логирования
	DurationFromCadence DurationSource = "cadence"
	// DurationFromTimestamps: разница между первой и последней меткой времени
	DurationFromTimestamps DurationSource = "timestamps"
)

// PercentileStats содержит минимум, максимум и среднее по одному перцентилю
type PercentileStats struct {
	Min     float64
	Max     float64
	Average float64
}

// LatencySummary содержит агрегированные метрики по всей сессии
type LatencySummary struct {
	Entries        int
	TotalSamples   int
	FailingWindows int
	P50            PercentileStats
	P95            PercentileStats
	P99            PercentileStats
	Duration       time.Duration
	DurationSource DurationSource
	SampleRateHz   float64
	FirstTimestamp valueobject.LogTimestamp
	LastTimestamp  valueobject.LogTimestamp
}

// DurationMinutes возвращает оценку длительности сессии в минутах
func (s *LatencySummary) DurationMinutes() float64 {
	return s.Duration.Minutes()
}

// Stats возвращает статистику по указанному перцентилю
func (s *LatencySummary) Stats(p valueobject.Percentile) PercentileStats {
	switch p {
	case valueobject.P50:
		return s.P50
	case valueobject.P95:
		return s.P95
	case valueobject.P99:
		return s.P99
	default:
		return PercentileStats{}
	}
}
