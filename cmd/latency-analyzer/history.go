package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/application/usecase"
	"github.com/dreschagin/latency-validator/internal/domain/repository"
	"github.com/dreschagin/latency-validator/pkg/config"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

type historyOptions struct {
	limit        int
	cursor       string
	artifactType string
	since        time.Duration
	onlyFailed   bool
	jsonOutput   bool
}

func newHistoryCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history [flags] <log_file>",
		Short: "List previous validation runs and archived reports for a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := runHistory(cmd.Context(), args[0], opts, stdout, stderr); code != exitPass {
				return &exitError{code: code}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.limit, "limit", 10, "maximum number of runs and artifacts to list")
	flags.StringVar(&opts.cursor, "cursor", "", "continue a previous artifact listing")
	flags.StringVar(&opts.artifactType, "type", "", "only list artifacts of this type (report or samples)")
	flags.DurationVar(&opts.since, "since", 0, "only list artifacts newer than this age, e.g. 72h")
	flags.BoolVar(&opts.onlyFailed, "failed", false, "only list runs that failed validation")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the listing as JSON")

	return cmd
}

func runHistory(parent context.Context, path string, opts *historyOptions, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}

	log := logger.NewWithWriter(cfg.LogLevel, stderr)

	var (
		repo     repository.AnalysisRepository
		metadata port.ReportMetadataRepository
	)

	if cfg.Database.Enabled {
		pgRepo, db, err := openPostgres(ctx, cfg.Database)
		if err != nil {
			log.Warn("PostgreSQL history disabled", "error", err.Error())
		} else {
			defer db.Close()
			repo = pgRepo
		}
	}

	if cfg.DynamoDB.Enabled {
		index, err := openReportIndex(ctx, cfg)
		if err != nil {
			log.Warn("DynamoDB report index disabled", "error", err.Error())
		} else {
			metadata = index
		}
	}

	cmd := usecase.ListAnalysisHistoryCommand{
		SourceFile:   path,
		Limit:        opts.limit,
		Cursor:       opts.cursor,
		ArtifactType: opts.artifactType,
		OnlyFailed:   opts.onlyFailed,
	}
	if opts.since > 0 {
		cmd.From = time.Now().Add(-opts.since)
	}

	result, err := usecase.NewListAnalysisHistoryUseCase(repo, metadata, usecase.ListAnalysisHistoryConfig{}, log).
		Execute(ctx, cmd)
	if errors.Is(err, usecase.ErrHistoryUnavailable) {
		fmt.Fprintln(stderr, "Error: history requires DB_ENABLED=true or DYNAMODB_ENABLED=true")
		return exitUsage
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	if opts.jsonOutput {
		data, err := json.MarshalIndent(toHistoryView(result), "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to encode history: %v\n", err)
			return exitFail
		}
		fmt.Fprintln(stdout, string(data))
		return exitPass
	}

	writeHistory(stdout, path, result)
	return exitPass
}

type historyRunView struct {
	RunID          string    `json:"run_id"`
	Passed         bool      `json:"passed"`
	Entries        int       `json:"entries"`
	TotalSamples   int       `json:"total_samples"`
	FailingWindows int       `json:"failing_windows"`
	P95AverageMs   float64   `json:"p95_average_ms"`
	P95MaxMs       float64   `json:"p95_max_ms"`
	Warnings       int       `json:"warnings"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

type historyArtifactView struct {
	RunID          string    `json:"run_id"`
	Type           string    `json:"type"`
	S3Key          string    `json:"s3_key"`
	URL            string    `json:"url,omitempty"`
	SizeBytes      int64     `json:"size_bytes"`
	ContentHash    string    `json:"content_hash,omitempty"`
	Passed         bool      `json:"passed"`
	TotalSamples   int       `json:"total_samples"`
	FailingWindows int       `json:"failing_windows"`
	P95MaxMs       float64   `json:"p95_max_ms"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

type historyView struct {
	Runs       []historyRunView      `json:"runs"`
	Artifacts  []historyArtifactView `json:"artifacts"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

func toHistoryView(result *usecase.ListAnalysisHistoryResult) historyView {
	view := historyView{
		Runs:       make([]historyRunView, 0, len(result.Runs)),
		Artifacts:  make([]historyArtifactView, 0, len(result.Artifacts)),
		NextCursor: result.NextCursor,
	}
	for _, r := range result.Runs {
		view.Runs = append(view.Runs, historyRunView{
			RunID:          r.ID,
			Passed:         r.Passed,
			Entries:        r.Entries,
			TotalSamples:   r.TotalSamples,
			FailingWindows: r.FailingWindows,
			P95AverageMs:   r.P95Average,
			P95MaxMs:       r.P95Max,
			Warnings:       r.WarningCount,
			AnalyzedAt:     r.AnalyzedAt,
		})
	}
	for _, a := range result.Artifacts {
		view.Artifacts = append(view.Artifacts, historyArtifactView{
			RunID:          a.RunID,
			Type:           a.ArtifactType,
			S3Key:          a.S3Key,
			URL:            a.URL,
			SizeBytes:      a.SizeBytes,
			ContentHash:    a.ContentHash,
			Passed:         a.Passed,
			TotalSamples:   a.TotalSamples,
			FailingWindows: a.FailingWindows,
			P95MaxMs:       a.P95MaxMs,
			AnalyzedAt:     a.AnalyzedAt,
		})
	}
	return view
}

func writeHistory(w io.Writer, path string, result *usecase.ListAnalysisHistoryResult) {
	fmt.Fprintf(w, "History for %s\n\n", path)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if len(result.Runs) > 0 {
		fmt.Fprintln(tw, "RUN\tANALYZED\tRESULT\tENTRIES\tSAMPLES\tP95 AVG\tP95 MAX\tWARNINGS")
		for _, r := range result.Runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2fms\t%.2fms\t%d\n",
				shortID(r.ID), humanize.Time(r.AnalyzedAt), label(r.Passed), r.Entries,
				humanize.Comma(int64(r.TotalSamples)), r.P95Average, r.P95Max, r.WarningCount)
		}
		fmt.Fprintln(tw)
	}

	if len(result.Artifacts) > 0 {
		fmt.Fprintln(tw, "RUN\tRESULT\tTYPE\tSAMPLES\tSIZE\tKEY")
		for _, a := range result.Artifacts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(a.RunID), label(a.Passed), a.ArtifactType, humanize.Comma(int64(a.TotalSamples)),
				humanize.Bytes(uint64(a.SizeBytes)), a.S3Key)
		}
	}

	tw.Flush()

	if len(result.Runs) == 0 && len(result.Artifacts) == 0 {
		fmt.Fprintln(w, "No previous runs recorded.")
	}
	if result.NextCursor != "" {
		fmt.Fprintf(w, "\nMore artifacts available: --cursor %s\n", result.NextCursor)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func label(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}
