package port

import (
	"context"
	"time"
)

// ReportMetadata описывает заархивированный артефакт прогона вместе с его вердиктом.
type ReportMetadata struct {
	SourceFile   string
	RunID        string
	ContentHash  string
	ArtifactType string
	S3Key        string
	URL          string
	ContentType  string
	SizeBytes    int64

	Passed         bool
	TotalSamples   int
	FailingWindows int
	P95MaxMs       float64

	AnalyzedAt time.Time
	ExpiresAt  time.Time
}

// ReportListQuery определяет параметры выборки артефактов одного лога.
type ReportListQuery struct {
	SourceFile   string
	Limit        int
	Cursor       string
	ArtifactType string
	// OnlyFailed оставляет только артефакты непрошедших прогонов
	OnlyFailed bool
	From       time.Time
	To         time.Time
}

// ReportListPage содержит результат выборки и курсор следующей страницы.
type ReportListPage struct {
	Items      []ReportMetadata
	NextCursor string
}

// ReportMetadataRepository индекс артефактов по исходному логу.
type ReportMetadataRepository interface {
	PutBatch(ctx context.Context, records []ReportMetadata) error
	ListBySource(ctx context.Context, query ReportListQuery) (ReportListPage, error)
}
