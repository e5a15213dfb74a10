package port

import "github.com/dreschagin/latency-validator/internal/domain/entity"

// ExtractionResult содержит сэмплы, извлеченные из лога, и диагностику разбора
type ExtractionResult struct {
	Samples []entity.LatencySample
	// CandidateBlocks количество заголовков секции статистики в логе
	CandidateBlocks int
	// Dropped количество заголовков, для которых не удалось извлечь блок
	Dropped int
}

// SampleExtractor извлекает блоки статистики задержек из текста лога (Port)
type SampleExtractor interface {
	Extract(content string) ExtractionResult
}
