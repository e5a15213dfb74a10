package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

type historyMockRepository struct {
	runs       []repository.RunRecord
	err        error
	lastSource string
	lastLimit  int
}

func (m *historyMockRepository) SaveRun(_ context.Context, _ *entity.AnalysisRun) error {
	return nil
}

func (m *historyMockRepository) FindRecent(_ context.Context, sourceFile string, limit int) ([]repository.RunRecord, error) {
	m.lastSource = sourceFile
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.runs, nil
}

type historyMockMetadata struct {
	page      port.ReportListPage
	err       error
	lastQuery port.ReportListQuery
}

func (m *historyMockMetadata) PutBatch(_ context.Context, _ []port.ReportMetadata) error {
	return nil
}

func (m *historyMockMetadata) ListBySource(_ context.Context, query port.ReportListQuery) (port.ReportListPage, error) {
	m.lastQuery = query
	if m.err != nil {
		return port.ReportListPage{}, m.err
	}
	return m.page, nil
}

func TestListAnalysisHistoryUseCase_Success(t *testing.T) {
	analyzedAt := time.Date(2026, 1, 13, 14, 30, 0, 0, time.UTC)
	repo := &historyMockRepository{
		runs: []repository.RunRecord{
			{ID: "run-2", SourceFile: "logs/device.log", Passed: false, AnalyzedAt: analyzedAt},
			{ID: "run-1", SourceFile: "logs/device.log", Passed: true, AnalyzedAt: analyzedAt.Add(-time.Hour)},
		},
	}
	metadata := &historyMockMetadata{
		page: port.ReportListPage{
			Items: []port.ReportMetadata{
				{RunID: "run-2", ArtifactType: "report", S3Key: "latency-reports/device.log/x_report.txt"},
			},
			NextCursor: "next",
		},
	}

	uc := NewListAnalysisHistoryUseCase(repo, metadata, ListAnalysisHistoryConfig{}, logger.New("error"))

	result, err := uc.Execute(context.Background(), ListAnalysisHistoryCommand{
		SourceFile:   "  logs/device.log ",
		ArtifactType: "report",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(result.Runs) != 2 || result.Runs[0].ID != "run-2" {
		t.Fatalf("unexpected runs: %+v", result.Runs)
	}
	if len(result.Artifacts) != 1 || result.NextCursor != "next" {
		t.Fatalf("unexpected artifacts: %+v cursor=%q", result.Artifacts, result.NextCursor)
	}
	if repo.lastSource != "logs/device.log" || repo.lastLimit != 10 {
		t.Fatalf("unexpected repository query: source=%q limit=%d", repo.lastSource, repo.lastLimit)
	}
	if metadata.lastQuery.ArtifactType != "report" || metadata.lastQuery.Limit != 10 {
		t.Fatalf("unexpected metadata query: %+v", metadata.lastQuery)
	}
}

func TestListAnalysisHistoryUseCase_OnlyFailed(t *testing.T) {
	repo := &historyMockRepository{
		runs: []repository.RunRecord{
			{ID: "run-3", Passed: true},
			{ID: "run-2", Passed: false},
			{ID: "run-1", Passed: true},
		},
	}
	metadata := &historyMockMetadata{}

	uc := NewListAnalysisHistoryUseCase(repo, metadata, ListAnalysisHistoryConfig{}, logger.New("error"))

	result, err := uc.Execute(context.Background(), ListAnalysisHistoryCommand{SourceFile: "a.log", OnlyFailed: true})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(result.Runs) != 1 || result.Runs[0].ID != "run-2" {
		t.Fatalf("runs = %+v, want only run-2", result.Runs)
	}
	if !metadata.lastQuery.OnlyFailed {
		t.Error("OnlyFailed was not passed to the report index")
	}
}

func TestListAnalysisHistoryUseCase_ClampsLimit(t *testing.T) {
	repo := &historyMockRepository{}
	uc := NewListAnalysisHistoryUseCase(repo, nil, ListAnalysisHistoryConfig{DefaultLimit: 5, MaxLimit: 20}, logger.New("error"))

	if _, err := uc.Execute(context.Background(), ListAnalysisHistoryCommand{SourceFile: "a.log", Limit: 500}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if repo.lastLimit != 20 {
		t.Fatalf("expected limit clamped to 20, got %d", repo.lastLimit)
	}
}

func TestListAnalysisHistoryUseCase_Errors(t *testing.T) {
	tests := []struct {
		name     string
		repo     repository.AnalysisRepository
		metadata port.ReportMetadataRepository
		cmd      ListAnalysisHistoryCommand
		wantErr  error
	}{
		{
			name:    "no storage configured",
			cmd:     ListAnalysisHistoryCommand{SourceFile: "a.log"},
			wantErr: ErrHistoryUnavailable,
		},
		{
			name: "blank source",
			repo: &historyMockRepository{},
			cmd:  ListAnalysisHistoryCommand{SourceFile: "   "},
		},
		{
			name: "inverted range",
			repo: &historyMockRepository{},
			cmd: ListAnalysisHistoryCommand{
				SourceFile: "a.log",
				From:       time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				To:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "repository failure",
			repo: &historyMockRepository{err: errors.New("connection refused")},
			cmd:  ListAnalysisHistoryCommand{SourceFile: "a.log"},
		},
		{
			name:     "index failure without repository",
			metadata: &historyMockMetadata{err: errors.New("throttled")},
			cmd:      ListAnalysisHistoryCommand{SourceFile: "a.log"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := NewListAnalysisHistoryUseCase(tt.repo, tt.metadata, ListAnalysisHistoryConfig{}, logger.New("error"))

			_, err := uc.Execute(context.Background(), tt.cmd)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListAnalysisHistoryUseCase_IndexFailureKeepsRuns(t *testing.T) {
	repo := &historyMockRepository{runs: []repository.RunRecord{{ID: "run-1"}}}
	metadata := &historyMockMetadata{err: errors.New("throttled")}

	uc := NewListAnalysisHistoryUseCase(repo, metadata, ListAnalysisHistoryConfig{}, logger.New("error"))

	result, err := uc.Execute(context.Background(), ListAnalysisHistoryCommand{SourceFile: "a.log"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Runs) != 1 || len(result.Artifacts) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
