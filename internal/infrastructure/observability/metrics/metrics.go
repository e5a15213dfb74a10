package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
)

// Metrics bundles prometheus gauges describing the last analysis run.
type Metrics struct {
	registry *prometheus.Registry

	PercentileMs     *prometheus.GaugeVec
	TotalSamples     *prometheus.GaugeVec
	FailingWindows   *prometheus.GaugeVec
	DroppedBlocks    *prometheus.GaugeVec
	Warnings         *prometheus.GaugeVec
	SessionSeconds   *prometheus.GaugeVec
	ValidationPassed *prometheus.GaugeVec
	LastRunTimestamp *prometheus.GaugeVec
}

func New(registry *prometheus.Registry) *Metrics {
	source := []string{"source_file"}

	m := &Metrics{
		registry: registry,
		PercentileMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_percentile_milliseconds",
			Help: "Latency percentile statistics of the analyzed session in milliseconds.",
		}, []string{"source_file", "percentile", "stat"}),
		TotalSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_total_samples",
			Help: "Cumulative number of latency samples reported by the last block.",
		}, source),
		FailingWindows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_failing_windows",
			Help: "Number of statistics blocks marked as failing.",
		}, source),
		DroppedBlocks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_dropped_blocks",
			Help: "Number of malformed statistics blocks skipped by the extractor.",
		}, source),
		Warnings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_validation_warnings",
			Help: "Number of advisory warnings raised by validation.",
		}, source),
		SessionSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_session_duration_seconds",
			Help: "Estimated session duration in seconds.",
		}, source),
		ValidationPassed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_validation_passed",
			Help: "1 if all validation rules passed, 0 otherwise.",
		}, source),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "latency_last_run_timestamp_seconds",
			Help: "Unix time of the last analysis run.",
		}, source),
	}

	registry.MustRegister(
		m.PercentileMs,
		m.TotalSamples,
		m.FailingWindows,
		m.DroppedBlocks,
		m.Warnings,
		m.SessionSeconds,
		m.ValidationPassed,
		m.LastRunTimestamp,
	)

	return m
}

// Observe sets every gauge from the run.
func (m *Metrics) Observe(run *entity.AnalysisRun) error {
	if run == nil || run.Summary() == nil || run.Outcome() == nil {
		return fmt.Errorf("run summary is required")
	}

	summary := run.Summary()
	source := run.SourceFile()

	for _, p := range []struct {
		name  string
		stats entity.PercentileStats
	}{
		{"p50", summary.P50},
		{"p95", summary.P95},
		{"p99", summary.P99},
	} {
		m.PercentileMs.WithLabelValues(source, p.name, "min").Set(p.stats.Min)
		m.PercentileMs.WithLabelValues(source, p.name, "max").Set(p.stats.Max)
		m.PercentileMs.WithLabelValues(source, p.name, "avg").Set(p.stats.Average)
	}

	passed := 0.0
	if run.Outcome().Passed() {
		passed = 1
	}

	m.TotalSamples.WithLabelValues(source).Set(float64(summary.TotalSamples))
	m.FailingWindows.WithLabelValues(source).Set(float64(summary.FailingWindows))
	m.DroppedBlocks.WithLabelValues(source).Set(float64(run.DroppedCount()))
	m.Warnings.WithLabelValues(source).Set(float64(len(run.Outcome().Warnings())))
	m.SessionSeconds.WithLabelValues(source).Set(summary.Duration.Seconds())
	m.ValidationPassed.WithLabelValues(source).Set(passed)
	m.LastRunTimestamp.WithLabelValues(source).Set(float64(run.AnalyzedAt().Unix()))

	return nil
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
