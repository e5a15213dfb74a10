package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/service"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

const (
	passLabel  = "✓ PASS"
	failLabel  = "❌ FAIL"
	passGlyph  = "✓"
	failGlyph  = "❌"
	bannerRule = 60
	tableRule  = 70
)

// ReportInput collects everything the renderer needs for one run.
type ReportInput struct {
	SourceFile      string
	Samples         []entity.LatencySample
	Summary         *entity.LatencySummary
	Outcome         *entity.ValidationOutcome
	Rules           service.ValidationRules
	CandidateBlocks int
	DroppedBlocks   int
	Detailed        bool
}

// TextRenderer formats a validation run as a plain-text report.
type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

// Render produces the full report. It has no side effects.
func (r *TextRenderer) Render(in ReportInput) string {
	var b strings.Builder

	banner(&b, "LATENCY VALIDATION REPORT")
	r.writeSession(&b, in)

	for _, p := range []valueobject.Percentile{valueobject.P95, valueobject.P50, valueobject.P99} {
		stats := in.Summary.Stats(p)
		fmt.Fprintf(&b, "Latency Statistics (%s):\n", p.Label())
		fmt.Fprintf(&b, "  Average: %.2f ms\n", stats.Average)
		fmt.Fprintf(&b, "  Minimum: %.2f ms\n", stats.Min)
		fmt.Fprintf(&b, "  Maximum: %.2f ms\n", stats.Max)
		b.WriteString("\n")
	}

	r.writeValidation(&b, in)

	if warnings := in.Outcome.Warnings(); len(warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "  ⚠️  %s\n", w.Message)
		}
		b.WriteString("\n")
	}

	if in.DroppedBlocks > 0 {
		b.WriteString("Extraction Diagnostics:\n")
		fmt.Fprintf(&b, "  Dropped Blocks: %d of %d (malformed fields)\n", in.DroppedBlocks, in.CandidateBlocks)
		b.WriteString("\n")
	}

	if in.Detailed && len(in.Samples) > 0 {
		r.writeDetails(&b, in.Samples)
	}

	b.WriteString(strings.Repeat("=", bannerRule))

	return b.String()
}

func (r *TextRenderer) writeSession(b *strings.Builder, in ReportInput) {
	s := in.Summary

	b.WriteString("Session Information:\n")
	fmt.Fprintf(b, "  Log File: %s\n", filepath.Base(in.SourceFile))
	fmt.Fprintf(b, "  Log Entries: %d\n", s.Entries)
	fmt.Fprintf(b, "  Estimated Duration: %.1f minutes (%s)\n", s.DurationMinutes(), durationSourceLabel(s.DurationSource))
	fmt.Fprintf(b, "  Total Samples: %s\n", humanize.Comma(int64(s.TotalSamples)))
	fmt.Fprintf(b, "  Sample Rate: %.2f Hz\n", s.SampleRateHz)
	b.WriteString("\n")
}

func (r *TextRenderer) writeValidation(b *strings.Builder, in ReportInput) {
	s := in.Summary

	b.WriteString("Validation Results:\n")
	for _, rule := range in.Outcome.Rules() {
		verdict := label(rule.Passed)

		switch rule.Name {
		case entity.RuleNoFailingWindows:
			fmt.Fprintf(b, "  Failing Windows: %s (%d / %d)\n", verdict, s.FailingWindows, s.Entries)
		case entity.RulePeakP95:
			fmt.Fprintf(b, "  P95 < %gms Requirement: %s\n", in.Rules.P95ThresholdMs, verdict)
		case entity.RuleAverageP95:
			fmt.Fprintf(b, "  Average P95 < %gms: %s\n", in.Rules.P95ThresholdMs, verdict)
		case entity.RuleSufficientVolume:
			fmt.Fprintf(b, "  Minimum Sample Count: %s (%s / %s)\n", verdict,
				humanize.Comma(int64(s.TotalSamples)), humanize.Comma(int64(in.Rules.MinTotalSamples)))
		default:
			fmt.Fprintf(b, "  %s: %s\n", rule.Name, verdict)
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(b, "Overall Validation: %s\n", label(in.Outcome.Passed()))
	b.WriteString("\n")
}

func (r *TextRenderer) writeDetails(b *strings.Builder, samples []entity.LatencySample) {
	banner(b, "DETAILED BREAKDOWN")

	fmt.Fprintf(b, "%-20s %8s %8s %8s %8s %6s\n", "Timestamp", "Samples", "P50", "P95", "P99", "Status")
	b.WriteString(strings.Repeat("-", tableRule))
	b.WriteString("\n")

	for _, s := range samples {
		glyph := passGlyph
		if !s.MeetsRequirement() {
			glyph = failGlyph
		}
		fmt.Fprintf(b, "%-20s %8d %7.2fms %7.2fms %7.2fms %6s\n",
			s.Timestamp().String(), s.SampleCount(), s.P50(), s.P95(), s.P99(), glyph)
	}
	b.WriteString("\n")
}

func banner(b *strings.Builder, title string) {
	rule := strings.Repeat("=", bannerRule)
	b.WriteString(rule + "\n")
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n")
	b.WriteString("\n")
}

func label(passed bool) string {
	if passed {
		return passLabel
	}
	return failLabel
}

func durationSourceLabel(source entity.DurationSource) string {
	if source == entity.DurationFromTimestamps {
		return "from timestamps"
	}
	return "from log cadence"
}
