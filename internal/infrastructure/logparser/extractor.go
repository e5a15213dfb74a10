package logparser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dreschagin/latency-validator/internal/application/port"
	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
	"github.com/dreschagin/latency-validator/pkg/logger"
)

// SectionHeader marks the start of a LatencyService statistics block.
const SectionHeader = "[LatencyService] Latency Statistics:"

// passGlyph is the only status token that marks a window as meeting the requirement.
const passGlyph = "✓"

var (
	// timestampPattern matches the logcat `MM-DD HH:MM:SS.fff` token.
	timestampPattern = regexp.MustCompile(`\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}\.\d+`)

	// bodyPattern captures window samples, total samples, P50, P95, P99 and the
	// first status token from the text between one section header and the next.
	// (?s) lets .*? skip interleaved noise lines.
	bodyPattern = regexp.MustCompile(
		`(?s)\A[ \t\r]*\n` +
			`.*?Samples:\s*(\d+)\s*\(Total:\s*(\d+)\)\s*\n` +
			`.*?P50:\s*([\d.]+)\s*ms\s*\n` +
			`.*?P95:\s*([\d.]+)\s*ms\s*\n` +
			`.*?P99:\s*([\d.]+)\s*ms\s*\n` +
			`.*?(✓|⚠️|WARNING)`,
	)
)

// Extractor pulls LatencySample values out of raw log text.
type Extractor struct {
	logger *logger.Logger
}

var _ port.SampleExtractor = (*Extractor)(nil)

// NewExtractor creates a new extractor. log may be nil.
func NewExtractor(log *logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Extract returns every well-formed block in order of appearance.
// Blocks whose numeric fields fail to parse are dropped; the count of
// section headers that did not yield a sample is reported as Dropped.
func (e *Extractor) Extract(content string) port.ExtractionResult {
	headers := headerOffsets(content)

	samples := make([]entity.LatencySample, 0, len(headers))
	for i, start := range headers {
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1]
		}

		sample, ok := e.parseBlock(content, start, end)
		if !ok {
			continue
		}
		samples = append(samples, sample)
	}

	candidates := len(headers)
	dropped := candidates - len(samples)

	if dropped > 0 && e.logger != nil {
		e.logger.Warn("Some latency blocks could not be parsed",
			"candidates", candidates,
			"extracted", len(samples),
			"dropped", dropped)
	}

	return port.ExtractionResult{
		Samples:         samples,
		CandidateBlocks: candidates,
		Dropped:         dropped,
	}
}

// headerOffsets returns the byte offset of every section header in content.
func headerOffsets(content string) []int {
	var offsets []int
	for pos := 0; ; {
		i := strings.Index(content[pos:], SectionHeader)
		if i < 0 {
			return offsets
		}
		offsets = append(offsets, pos+i)
		pos += i + len(SectionHeader)
	}
}

// headerTimestamp returns the last timestamp on the header's own line.
func headerTimestamp(content string, header int) (string, bool) {
	lineStart := strings.LastIndexByte(content[:header], '\n') + 1
	found := timestampPattern.FindAllString(content[lineStart:header], -1)
	if len(found) == 0 {
		return "", false
	}
	return found[len(found)-1], true
}

// parseBlock reads the block whose header starts at start. The block body
// ends at end, so a truncated block never borrows fields from the next one.
func (e *Extractor) parseBlock(content string, start, end int) (entity.LatencySample, bool) {
	ts, ok := headerTimestamp(content, start)
	if !ok {
		e.debugDrop("", "timestamp", "", nil)
		return entity.LatencySample{}, false
	}

	m := bodyPattern.FindStringSubmatch(content[start+len(SectionHeader) : end])
	if m == nil {
		e.debugDrop(ts, "block", "incomplete", nil)
		return entity.LatencySample{}, false
	}

	sampleCount, err := strconv.Atoi(m[1])
	if err != nil {
		e.debugDrop(ts, "samples", m[1], err)
		return entity.LatencySample{}, false
	}
	totalSamples, err := strconv.Atoi(m[2])
	if err != nil {
		e.debugDrop(ts, "total", m[2], err)
		return entity.LatencySample{}, false
	}

	var percentiles [3]float64
	for i, raw := range m[3:6] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			e.debugDrop(ts, "percentile", raw, err)
			return entity.LatencySample{}, false
		}
		percentiles[i] = v
	}

	return entity.NewLatencySample(
		valueobject.NewLogTimestamp(ts),
		sampleCount,
		totalSamples,
		percentiles[0],
		percentiles[1],
		percentiles[2],
		m[6] == passGlyph,
	), true
}

func (e *Extractor) debugDrop(timestamp, field, raw string, err error) {
	if e.logger == nil {
		return
	}
	kv := []interface{}{"timestamp", timestamp, "field", field, "value", raw}
	if err != nil {
		kv = append(kv, "error", err.Error())
	}
	e.logger.Debug("Dropping latency block", kv...)
}
