package dto

import (
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

// SampleDTO представляет блок статистики для передачи между слоями
type SampleDTO struct {
	Timestamp        string  `json:"timestamp"`
	SampleCount      int     `json:"sample_count"`
	TotalSamples     int     `json:"total_samples"`
	P50              float64 `json:"p50_ms"`
	P95              float64 `json:"p95_ms"`
	P99              float64 `json:"p99_ms"`
	MeetsRequirement bool    `json:"meets_requirement"`
}

// FromSample конвертирует LatencySample в DTO
func FromSample(s entity.LatencySample) SampleDTO {
	return SampleDTO{
		Timestamp:        s.Timestamp().String(),
		SampleCount:      s.SampleCount(),
		TotalSamples:     s.TotalSamples(),
		P50:              s.P50(),
		P95:              s.P95(),
		P99:              s.P99(),
		MeetsRequirement: s.MeetsRequirement(),
	}
}

// ToEntity восстанавливает LatencySample из DTO
func (d SampleDTO) ToEntity() entity.LatencySample {
	return entity.NewLatencySample(
		valueobject.NewLogTimestamp(d.Timestamp),
		d.SampleCount,
		d.TotalSamples,
		d.P50,
		d.P95,
		d.P99,
		d.MeetsRequirement,
	)
}

// ToSampleDTOs конвертирует слайс сэмплов в слайс DTO
func ToSampleDTOs(samples []entity.LatencySample) []SampleDTO {
	dtos := make([]SampleDTO, len(samples))
	for i, s := range samples {
		dtos[i] = FromSample(s)
	}
	return dtos
}
