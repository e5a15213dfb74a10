package port

import (
	"io"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
)

// SampleExporter сохраняет сэмплы в CSV и читает их обратно (Port)
type SampleExporter interface {
	ExportFile(path string, samples []entity.LatencySample) error
	Encode(samples []entity.LatencySample) ([]byte, error)
	Import(r io.Reader) ([]entity.LatencySample, error)
}
