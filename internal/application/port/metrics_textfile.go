package port

import "github.com/dreschagin/latency-validator/internal/domain/entity"

// MetricsTextfile exposes run results as a Prometheus textfile for node_exporter.
type MetricsTextfile interface {
	Observe(run *entity.AnalysisRun) error
	WriteTextfile(path string) error
}
