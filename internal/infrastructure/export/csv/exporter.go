package csv

import (
	"bytes"
	encodingcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

// ErrNothingToExport is returned when there are no samples to write.
var ErrNothingToExport = errors.New("no samples to export")

// Header is the fixed column layout of exported files.
var Header = []string{
	"timestamp",
	"sample_count",
	"total_samples",
	"p50_ms",
	"p95_ms",
	"p99_ms",
	"meets_requirement",
}

// Exporter writes LatencySample sequences as CSV.
type Exporter struct{}

var _ port.SampleExporter = (*Exporter)(nil)

// NewExporter creates a new CSV exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportFile writes samples to path, replacing any existing file.
func (e *Exporter) ExportFile(path string, samples []entity.LatencySample) error {
	if len(samples) == 0 {
		return ErrNothingToExport
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}

	if err := WriteSamples(f, samples); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close csv file: %w", err)
	}

	return nil
}

// Encode renders samples as an in-memory CSV document.
func (e *Exporter) Encode(samples []entity.LatencySample) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrNothingToExport
	}

	var buf bytes.Buffer
	if err := WriteSamples(&buf, samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Import parses samples previously written by ExportFile.
func (e *Exporter) Import(r io.Reader) ([]entity.LatencySample, error) {
	return ReadSamples(r)
}

// WriteSamples writes the header and one row per sample in sequence order.
func WriteSamples(w io.Writer, samples []entity.LatencySample) error {
	if len(samples) == 0 {
		return ErrNothingToExport
	}

	cw := encodingcsv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, s := range samples {
		if err := cw.Write(toRecord(s)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	return nil
}

// ReadSamples parses a file produced by WriteSamples.
func ReadSamples(r io.Reader) ([]entity.LatencySample, error) {
	cr := encodingcsv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNothingToExport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, name := range Header {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected csv column %d: got %q, want %q", i+1, header[i], name)
		}
	}

	var samples []entity.LatencySample
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}

		sample, err := fromRecord(record)
		if err != nil {
			return nil, fmt.Errorf("invalid csv row %d: %w", line, err)
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

// ReadFile parses a CSV file produced by ExportFile.
func ReadFile(path string) ([]entity.LatencySample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	return ReadSamples(f)
}

func toRecord(s entity.LatencySample) []string {
	return []string{
		s.Timestamp().String(),
		strconv.Itoa(s.SampleCount()),
		strconv.Itoa(s.TotalSamples()),
		formatFloat(s.P50()),
		formatFloat(s.P95()),
		formatFloat(s.P99()),
		strconv.FormatBool(s.MeetsRequirement()),
	}
}

func fromRecord(record []string) (entity.LatencySample, error) {
	sampleCount, err := strconv.Atoi(record[1])
	if err != nil {
		return entity.LatencySample{}, fmt.Errorf("invalid sample_count: %w", err)
	}
	totalSamples, err := strconv.Atoi(record[2])
	if err != nil {
		return entity.LatencySample{}, fmt.Errorf("invalid total_samples: %w", err)
	}

	var percentiles [3]float64
	for i, raw := range record[3:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return entity.LatencySample{}, fmt.Errorf("invalid %s: %w", Header[3+i], err)
		}
		percentiles[i] = v
	}

	meets, err := strconv.ParseBool(record[6])
	if err != nil {
		return entity.LatencySample{}, fmt.Errorf("invalid meets_requirement: %w", err)
	}

	return entity.NewLatencySample(
		valueobject.NewLogTimestamp(record[0]),
		sampleCount,
		totalSamples,
		percentiles[0],
		percentiles[1],
		percentiles[2],
		meets,
	), nil
}

// formatFloat uses the shortest representation that parses back to the same value.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
