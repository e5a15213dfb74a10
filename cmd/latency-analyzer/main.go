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
	"time"

	"github.com/spf13/cobra"

	// Application
	"github.com/dreschagin/latency-validator/internal/application/dto"
	"github.com/dreschagin/latency-validator/internal/application/usecase"

	// Domain
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/service"

	// Infrastructure
	"github.com/dreschagin/latency-validator/internal/infrastructure/export/csv"
	"github.com/dreschagin/latency-validator/internal/infrastructure/logparser"

	// Interfaces
	"github.com/dreschagin/latency-validator/internal/interfaces/report"

	// Shared
	"github.com/dreschagin/latency-validator/pkg/config"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

const (
	exitPass  = 0
	exitFail  = 1
	exitUsage = 2

	publishTimeout = 30 * time.Second
)

// exitError carries the process exit code out of cobra's RunE.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type options struct {
	detailed    bool
	csvPath     string
	jsonOutput  bool
	fromCSV     bool
	rulesFile   string
	metricsFile string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCommand(stdout, stderr)
	rootCmd.SetArgs(args)

	cmd, err := rootCmd.ExecuteContextC(context.Background())
	if err == nil {
		return exitPass
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
	return exitUsage
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "latency-analyzer [flags] <log_file>",
		Short: "Validate P95 latency statistics captured in a device log",
		Long: "Extracts the periodic [LatencyService] statistics blocks from a captured log,\n" +
			"aggregates them and checks the session against the latency requirements.\n" +
			"Exits 0 when every validation rule passes and 1 otherwise.",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := run(cmd.Context(), args[0], opts, stdout, stderr)
			if code != exitPass {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.AddCommand(newHistoryCommand(stdout, stderr))

	flags := cmd.Flags()
	flags.BoolVar(&opts.detailed, "detailed", false, "include the per-entry breakdown table")
	flags.StringVar(&opts.csvPath, "csv", "", "also export parsed samples to this CSV file "+
		"(booleans written as true/false and floats in shortest form, e.g. 50 not 50.0; "+
		"--from-csv also reads the True/False form)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print the analysis as JSON instead of the text report")
	flags.BoolVar(&opts.fromCSV, "from-csv", false, "treat the input as a CSV file previously written by --csv")
	flags.StringVar(&opts.rulesFile, "rules", "", "YAML file overriding validation thresholds (default $LATENCY_RULES_FILE)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path (default $PROMETHEUS_TEXTFILE)")

	return cmd
}

func run(parent context.Context, path string, opts *options, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitUsage
	}

	rulesFile := cfg.RulesFile
	if opts.rulesFile != "" {
		rulesFile = opts.rulesFile
	}
	if rulesFile != "" {
		cfg.Validation, err = config.LoadRulesFile(rulesFile, cfg.Validation)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load rules: %v\n", err)
			return exitUsage
		}
	}
	if opts.metricsFile != "" {
		cfg.Prometheus.TextfilePath = opts.metricsFile
	}

	// 2. Инициализируем logger (stderr, чтобы отчет в stdout оставался чистым)
	log := logger.NewWithWriter(cfg.LogLevel, stderr)

	// 3. Приемники результата
	sinks := buildSinks(ctx, cfg, log)
	defer sinks.close()

	// 4. Domain Services
	aggregator := service.NewLatencyAggregator(service.AggregationConfig{
		Cadence:        cfg.Aggregation.Cadence,
		DurationSource: entity.DurationSource(cfg.Aggregation.DurationSource),
	})
	validator := service.NewLatencyValidator(toValidationRules(cfg.Validation))
	exporter := csv.NewExporter()

	analyze := usecase.NewAnalyzeLatencyLogUseCase(
		logparser.NewExtractor(log),
		aggregator,
		validator,
		report.NewTextRenderer(),
		exporter,
		sinks.cache,
		log,
	)

	// 5. Анализ
	result, err := analyze.Execute(ctx, usecase.AnalyzeLatencyLogCommand{
		Path:     path,
		Detailed: opts.detailed,
		CSVPath:  opts.csvPath,
		FromCSV:  opts.fromCSV,
	})
	switch {
	case errors.Is(err, usecase.ErrFileNotFound):
		fmt.Fprintf(stderr, "Error: Log file '%s' not found\n", path)
		return exitFail
	case errors.Is(err, usecase.ErrNoSamplesFound):
		fmt.Fprintln(stderr, "No latency statistics found in log file.")
		fmt.Fprintln(stderr, "Make sure the log contains LatencyService output.")
		return exitFail
	case err != nil:
		log.Error("Analysis failed", err, "file", path)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	// 6. Вывод
	if opts.jsonOutput {
		data, err := json.MarshalIndent(dto.FromAnalysisRun(result.Run, opts.detailed), "", "  ")
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to encode analysis: %v\n", err)
			return exitFail
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintln(stdout, result.Report)
	}

	if opts.csvPath != "" {
		if result.ExportErr != nil {
			fmt.Fprintf(stderr, "Error: %v\n", result.ExportErr)
		} else if !opts.jsonOutput {
			fmt.Fprintf(stdout, "\nExported %d samples to %s\n", result.ExportedSamples, opts.csvPath)
		}
	}

	// 7. Публикация (ошибки приемников на код выхода не влияют)
	if publish := sinks.publishUseCase(cfg, exporter, log); publish != nil {
		publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		res, err := publish.Execute(publishCtx, usecase.PublishAnalysisCommand{
			Run:    result.Run,
			Report: result.Report,
		})
		cancel()
		if err != nil {
			log.Error("Failed to publish analysis", err)
		} else if len(res.Failed) > 0 {
			log.Warn("Some result sinks failed", "failed", len(res.Failed), "delivered", len(res.Delivered))
		}
	}

	if result.Run.Outcome().Passed() {
		return exitPass
	}
	return exitFail
}

func toValidationRules(v config.ValidationConfig) service.ValidationRules {
	return service.ValidationRules{
		P95ThresholdMs:     v.P95ThresholdMs,
		P95SoftThresholdMs: v.P95SoftThresholdMs,
		AverageP95WarnMs:   v.AverageP95WarnMs,
		P99OutlierMs:       v.P99OutlierMs,
		MinTotalSamples:    v.MinTotalSamples,
		MinDurationMinutes: v.MinDurationMinutes,
		TrendFactor:        v.TrendFactor,
		TrendMinEntries:    v.TrendMinEntries,
	}
}
