package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

// ErrHistoryUnavailable возвращается, когда не настроено ни одно хранилище истории
var ErrHistoryUnavailable = errors.New("no history storage configured")

type ListAnalysisHistoryCommand struct {
	SourceFile   string
	Limit        int
	Cursor       string
	ArtifactType string
	// OnlyFailed оставляет только непрошедшие прогоны
	OnlyFailed bool
	From       time.Time
	To         time.Time
}

type ListAnalysisHistoryResult struct {
	Runs       []repository.RunRecord
	Artifacts  []port.ReportMetadata
	NextCursor string
}

type ListAnalysisHistoryConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// ListAnalysisHistoryUseCase читает прошлые прогоны из PostgreSQL и индекс архива из DynamoDB
type ListAnalysisHistoryUseCase struct {
	repository repository.AnalysisRepository
	metadata   port.ReportMetadataRepository
	config     ListAnalysisHistoryConfig
	logger     *logger.Logger
}

func NewListAnalysisHistoryUseCase(
	repo repository.AnalysisRepository,
	metadata port.ReportMetadataRepository,
	config ListAnalysisHistoryConfig,
	log *logger.Logger,
) *ListAnalysisHistoryUseCase {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = 10
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = 100
	}
	return &ListAnalysisHistoryUseCase{
		repository: repo,
		metadata:   metadata,
		config:     config,
		logger:     log,
	}
}

func (uc *ListAnalysisHistoryUseCase) Execute(
	ctx context.Context,
	cmd ListAnalysisHistoryCommand,
) (*ListAnalysisHistoryResult, error) {
	if uc.repository == nil && uc.metadata == nil {
		return nil, ErrHistoryUnavailable
	}

	sourceFile := strings.TrimSpace(cmd.SourceFile)
	if sourceFile == "" {
		return nil, fmt.Errorf("source file is required")
	}

	limit := cmd.Limit
	if limit <= 0 {
		limit = uc.config.DefaultLimit
	}
	if limit > uc.config.MaxLimit {
		limit = uc.config.MaxLimit
	}

	if !cmd.From.IsZero() && !cmd.To.IsZero() && cmd.From.After(cmd.To) {
		return nil, fmt.Errorf("from must be less than or equal to to")
	}

	result := &ListAnalysisHistoryResult{}

	if uc.repository != nil {
		runs, err := uc.repository.FindRecent(ctx, sourceFile, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		result.Runs = runs
		if cmd.OnlyFailed {
			result.Runs = failedRuns(runs)
		}
	}

	if uc.metadata != nil {
		page, err := uc.metadata.ListBySource(ctx, port.ReportListQuery{
			SourceFile:   sourceFile,
			Limit:        limit,
			Cursor:       strings.TrimSpace(cmd.Cursor),
			ArtifactType: strings.TrimSpace(cmd.ArtifactType),
			OnlyFailed:   cmd.OnlyFailed,
			From:         cmd.From.UTC(),
			To:           cmd.To.UTC(),
		})
		if err != nil {
			// Индекс архива вторичен: без него история прогонов остается полезной
			if uc.repository == nil {
				return nil, fmt.Errorf("failed to list archived reports: %w", err)
			}
			uc.logger.Warn("Report index is unavailable",
				"source_file", sourceFile,
				"error", err.Error(),
			)
		} else {
			result.Artifacts = page.Items
			result.NextCursor = page.NextCursor
		}
	}

	uc.logger.Debug("History listed",
		"source_file", sourceFile,
		"runs", len(result.Runs),
		"artifacts", len(result.Artifacts),
	)

	return result, nil
}

// failedRuns фильтрует уже выбранную страницу, поэтому прогонов может быть меньше limit
func failedRuns(runs []repository.RunRecord) []repository.RunRecord {
	failed := make([]repository.RunRecord, 0, len(runs))
	for _, r := range runs {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
