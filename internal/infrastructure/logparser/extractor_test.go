package logparser

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

func block(ts string, samples, total int, p50, p95, p99, status string) string {
	prefix := ts + " I/Heartbeat: "
	return strings.Join([]string{
		prefix + "[LatencyService] Latency Statistics:",
		prefix + fmt.Sprintf("  Samples: %d (Total: %d)", samples, total),
		prefix + "  P50: " + p50 + " ms",
		prefix + "  P95: " + p95 + " ms",
		prefix + "  P99: " + p99 + " ms",
		prefix + "  " + status,
	}, "\n") + "\n"
}

func TestExtract_WellFormedBlocks(t *testing.T) {
	content := "--------- beginning of main\n" +
		block("01-13 14:30:00.123", 456, 1234, "45.23", "78.91", "92.45", "✓ P95 latency meets <100ms requirement") +
		"01-13 14:30:10.000 D/Sensor: tick\n" +
		block("01-13 14:30:30.456", 60, 1294, "50.1", "120.5", "180", "⚠️ WARNING: P95 latency exceeds 100ms")

	result := NewExtractor(nil).Extract(content)

	require.Len(t, result.Samples, 2)
	require.Equal(t, 2, result.CandidateBlocks)
	require.Zero(t, result.Dropped)

	first := result.Samples[0]
	require.Equal(t, "01-13 14:30:00.123", first.Timestamp().String())
	require.Equal(t, 456, first.SampleCount())
	require.Equal(t, 1234, first.TotalSamples())
	require.InDelta(t, 45.23, first.P50(), 1e-9)
	require.InDelta(t, 78.91, first.P95(), 1e-9)
	require.InDelta(t, 92.45, first.P99(), 1e-9)
	require.True(t, first.MeetsRequirement())

	second := result.Samples[1]
	require.Equal(t, "01-13 14:30:30.456", second.Timestamp().String())
	require.InDelta(t, 120.5, second.P95(), 1e-9)
	require.False(t, second.MeetsRequirement())
}

func TestExtract_StatusTokens(t *testing.T) {
	tests := []struct {
		name   string
		status string
		meets  bool
	}{
		{"check mark", "✓ P95 latency meets <100ms requirement", true},
		{"warning emoji", "⚠️ P95 latency above requirement", false},
		{"warning word", "WARNING: P95 latency above requirement", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewExtractor(nil).Extract(block("01-13 14:30:00.123", 1, 1, "1", "2", "3", tt.status))
			require.Len(t, result.Samples, 1)
			require.Equal(t, tt.meets, result.Samples[0].MeetsRequirement())
		})
	}
}

func TestExtract_NoBlocks(t *testing.T) {
	result := NewExtractor(nil).Extract("01-13 14:30:00.123 I/App: started\n01-13 14:30:01.000 I/App: idle\n")

	require.Empty(t, result.Samples)
	require.Zero(t, result.CandidateBlocks)
	require.Zero(t, result.Dropped)
}

func TestExtract_DropsMalformedBlocks(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "percentile with two dots",
			content: block("01-13 14:30:00.123", 60, 60, "45.2", "1.2.3", "92.4", "✓ ok") +
				block("01-13 14:30:30.123", 60, 120, "45.2", "78.9", "92.4", "✓ ok"),
		},
		{
			name: "sample counter overflow",
			content: block("01-13 14:30:00.123", 60, 60, "45.2", "78.9", "92.4", "✓ ok") +
				strings.Replace(block("01-13 14:30:30.123", 60, 120, "45.2", "78.9", "92.4", "✓ ok"),
					"Total: 120", "Total: 99999999999999999999999", 1),
		},
		{
			name: "truncated final block",
			content: block("01-13 14:30:00.123", 60, 60, "45.2", "78.9", "92.4", "✓ ok") +
				"01-13 14:30:30.123 I/Heartbeat: [LatencyService] Latency Statistics:\n" +
				"01-13 14:30:30.123 I/Heartbeat:   Samples: 60 (Total: 120)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewExtractor(nil).Extract(tt.content)

			require.Len(t, result.Samples, 1)
			require.Equal(t, 2, result.CandidateBlocks)
			require.Equal(t, 1, result.Dropped)
		})
	}
}

func TestExtract_ExtraSpacesAndCRLF(t *testing.T) {
	content := strings.ReplaceAll(
		block("01-13   14:30:00.123", 10, 20, "1.5", "2.5", "3.5", "✓ ok"),
		"\n", "\r\n",
	)

	result := NewExtractor(nil).Extract(content)

	require.Len(t, result.Samples, 1)
	require.Equal(t, "01-13   14:30:00.123", result.Samples[0].Timestamp().String())
	require.InDelta(t, 2.5, result.Samples[0].P95(), 1e-9)
}

func TestExtract_TimestampComesFromHeaderLine(t *testing.T) {
	content := "01-13 09:00:00.000 I/App: application started\n" +
		"01-13 09:00:01.000 D/Sensor: warmup\n" +
		block("01-13 14:30:00.123", 60, 60, "45.2", "78.9", "92.4", "✓ ok") +
		"01-13 14:30:10.000 D/Sensor: tick\n" +
		"01-13 14:30:20.000 D/Sensor: tick\n" +
		block("01-13 14:30:30.456", 60, 120, "45.2", "78.9", "92.4", "✓ ok")

	result := NewExtractor(nil).Extract(content)

	require.Len(t, result.Samples, 2)
	require.Equal(t, "01-13 14:30:00.123", result.Samples[0].Timestamp().String())
	require.Equal(t, "01-13 14:30:30.456", result.Samples[1].Timestamp().String())

	span, err := valueobject.NewTimeRangeFromLog(result.Samples[0].Timestamp(), result.Samples[1].Timestamp())
	require.NoError(t, err)
	require.Less(t, span.Duration(), time.Minute)
}

func TestExtract_HeaderWithoutTimestampIsDropped(t *testing.T) {
	content := "01-13 14:29:59.000 I/App: started\n" +
		strings.Replace(block("01-13 14:30:00.123", 60, 60, "45.2", "78.9", "92.4", "✓ ok"),
			"01-13 14:30:00.123 I/Heartbeat: [LatencyService]", "I/Heartbeat: [LatencyService]", 1)

	result := NewExtractor(nil).Extract(content)

	require.Empty(t, result.Samples)
	require.Equal(t, 1, result.CandidateBlocks)
	require.Equal(t, 1, result.Dropped)
}

func TestExtract_TruncatedBlockDoesNotBorrowFromNext(t *testing.T) {
	truncated := "01-13 14:30:00.123 I/Heartbeat: [LatencyService] Latency Statistics:\n" +
		"01-13 14:30:00.123 I/Heartbeat:   Samples: 60 (Total: 60)\n" +
		"01-13 14:30:00.123 I/Heartbeat:   P50: 11.1 ms\n"
	content := truncated +
		block("01-13 14:30:30.456", 70, 130, "45.2", "78.9", "92.4", "✓ ok")

	result := NewExtractor(nil).Extract(content)

	require.Len(t, result.Samples, 1)
	require.Equal(t, 2, result.CandidateBlocks)
	require.Equal(t, 1, result.Dropped)

	s := result.Samples[0]
	require.Equal(t, "01-13 14:30:30.456", s.Timestamp().String())
	require.Equal(t, 70, s.SampleCount())
	require.Equal(t, 130, s.TotalSamples())
	require.InDelta(t, 45.2, s.P50(), 1e-9)
}
