package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS latency_runs (
	id               UUID PRIMARY KEY,
	source_file      TEXT NOT NULL,
	content_hash     TEXT,
	entries          INTEGER NOT NULL,
	total_samples    INTEGER NOT NULL,
	failing_windows  INTEGER NOT NULL,
	dropped_blocks   INTEGER NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL,
	duration_source  TEXT NOT NULL,
	p50_avg_ms       DOUBLE PRECISION NOT NULL,
	p95_avg_ms       DOUBLE PRECISION NOT NULL,
	p95_max_ms       DOUBLE PRECISION NOT NULL,
	p99_max_ms       DOUBLE PRECISION NOT NULL,
	passed           BOOLEAN NOT NULL,
	warning_count    INTEGER NOT NULL,
	analyzed_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_latency_runs_source_analyzed
	ON latency_runs (source_file, analyzed_at DESC);

CREATE TABLE IF NOT EXISTS latency_samples (
	run_id            UUID NOT NULL REFERENCES latency_runs (id) ON DELETE CASCADE,
	seq               INTEGER NOT NULL,
	log_timestamp     TEXT NOT NULL,
	sample_count      INTEGER NOT NULL,
	total_samples     INTEGER NOT NULL,
	p50_ms            DOUBLE PRECISION NOT NULL,
	p95_ms            DOUBLE PRECISION NOT NULL,
	p99_ms            DOUBLE PRECISION NOT NULL,
	meets_requirement BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// PostgresAnalysisRepository реализует repository.AnalysisRepository для PostgreSQL
type PostgresAnalysisRepository struct {
	db *sql.DB
}

var _ repository.AnalysisRepository = (*PostgresAnalysisRepository)(nil)

// NewPostgresAnalysisRepository создает новый PostgreSQL repository
func NewPostgresAnalysisRepository(db *sql.DB) *PostgresAnalysisRepository {
	return &PostgresAnalysisRepository{
		db: db,
	}
}

// EnsureSchema создает таблицы истории, если их нет
func (r *PostgresAnalysisRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveRun сохраняет прогон и его сэмплы одной транзакцией
func (r *PostgresAnalysisRepository) SaveRun(ctx context.Context, run *entity.AnalysisRun) error {
	model := ToRunDBModel(run)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO latency_runs (
			id, source_file, content_hash, entries, total_samples, failing_windows, dropped_blocks,
			duration_seconds, duration_source, p50_avg_ms, p95_avg_ms, p95_max_ms, p99_max_ms,
			passed, warning_count, analyzed_at
		)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		model.ID,
		model.SourceFile,
		model.ContentHash,
		model.Entries,
		model.TotalSamples,
		model.FailingWindows,
		model.DroppedBlocks,
		model.DurationSeconds,
		model.DurationSource,
		model.P50Average,
		model.P95Average,
		model.P95Max,
		model.P99Max,
		model.Passed,
		model.WarningCount,
		model.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO latency_samples (
			run_id, seq, log_timestamp, sample_count, total_samples, p50_ms, p95_ms, p99_ms, meets_requirement
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sample := range ToSampleDBModels(run) {
		_, err = stmt.ExecContext(ctx,
			sample.RunID,
			sample.Seq,
			sample.LogTimestamp,
			sample.SampleCount,
			sample.TotalSamples,
			sample.P50,
			sample.P95,
			sample.P99,
			sample.MeetsRequirement,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sample %d: %w", sample.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindRecent возвращает последние прогоны для файла, новые первыми
func (r *PostgresAnalysisRepository) FindRecent(
	ctx context.Context,
	sourceFile string,
	limit int,
) ([]repository.RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, source_file, content_hash, entries, total_samples, failing_windows,
			p95_avg_ms, p95_max_ms, passed, warning_count, analyzed_at
		FROM latency_runs
		WHERE source_file = $1
		ORDER BY analyzed_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, sourceFile, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	records := make([]repository.RunRecord, 0, limit)
	for rows.Next() {
		model, err := ScanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, ToRunRecord(model))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
