package service

import (
	"strings"
	"testing"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
)

func validate(t *testing.T, samples []entity.LatencySample) *entity.ValidationOutcome {
	t.Helper()

	summary, err := NewLatencyAggregator(DefaultAggregationConfig()).Aggregate(samples)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	return NewLatencyValidator(DefaultValidationRules()).Validate(summary, samples)
}

func TestValidate_HealthyShortLog(t *testing.T) {
	samples := []entity.LatencySample{
		newSample("01-13 14:30:00.000", 1200, 1200, 30, 50, 70, true),
		newSample("01-13 14:30:30.000", 1200, 2400, 35, 60, 80, true),
		newSample("01-13 14:31:00.000", 1200, 3600, 40, 70, 90, true),
	}

	outcome := validate(t, samples)

	if !outcome.Passed() {
		t.Fatalf("Passed() = false, want true; rules = %+v", outcome.Rules())
	}

	for _, code := range []entity.WarningCode{
		entity.WarningP95Exceeded,
		entity.WarningP95NearThreshold,
		entity.WarningAverageP95High,
		entity.WarningP99Outliers,
		entity.WarningInsufficientSample,
		entity.WarningIncreasingTrend,
	} {
		if outcome.HasWarning(code) {
			t.Errorf("unexpected warning %q", code)
		}
	}

	// Три блока по 30 секунд это 1.5 минуты
	if !outcome.HasWarning(entity.WarningShortSession) {
		t.Error("expected short session warning for a 1.5 minute log")
	}
}

func TestValidate_SingleFailingBlock(t *testing.T) {
	samples := []entity.LatencySample{
		newSample("01-13 14:30:00.000", 100, 100, 60, 120, 140, false),
	}

	outcome := validate(t, samples)

	if outcome.Passed() {
		t.Fatal("Passed() = true, want false")
	}

	wantFailed := []entity.RuleName{
		entity.RuleNoFailingWindows,
		entity.RulePeakP95,
		entity.RuleAverageP95,
		entity.RuleSufficientVolume,
	}
	for _, name := range wantFailed {
		rule, ok := outcome.Rule(name)
		if !ok {
			t.Fatalf("rule %q missing", name)
		}
		if rule.Passed {
			t.Errorf("rule %q passed, want fail", name)
		}
	}

	if !outcome.HasWarning(entity.WarningP95Exceeded) {
		t.Error("expected p95 exceeded warning")
	}
	if !outcome.HasWarning(entity.WarningInsufficientSample) {
		t.Error("expected insufficient samples warning")
	}
	if outcome.HasWarning(entity.WarningP95NearThreshold) {
		t.Error("near-threshold warning must not accompany exceeded warning")
	}
}

func TestValidate_WarningMessages(t *testing.T) {
	samples := []entity.LatencySample{
		newSample("01-13 14:30:00.000", 100, 100, 60, 95, 200, true),
	}

	outcome := validate(t, samples)

	var messages []string
	for _, w := range outcome.Warnings() {
		messages = append(messages, w.String())
	}
	joined := strings.Join(messages, "\n")

	for _, want := range []string{
		"P95 close to threshold (max: 95.00ms)",
		"Average P95 high (95.00ms)",
		"P99 shows outliers (max: 200.00ms)",
		"Insufficient samples (100 < 3,600)",
		"Session too short (0.5 < 30 minutes)",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("warnings missing %q, got:\n%s", want, joined)
		}
	}
}

func TestValidate_ThresholdIsStrict(t *testing.T) {
	samples := []entity.LatencySample{
		newSample("01-13 14:30:00.000", 3600, 3600, 50, 100, 120, true),
	}

	outcome := validate(t, samples)

	rule, _ := outcome.Rule(entity.RulePeakP95)
	if rule.Passed {
		t.Error("peak P95 of exactly 100ms must fail")
	}
	if outcome.HasWarning(entity.WarningP95Exceeded) {
		t.Error("exceeded warning fires only above the threshold")
	}
	if !outcome.HasWarning(entity.WarningP95NearThreshold) {
		t.Error("expected near-threshold warning at 100ms")
	}
}

func TestValidate_CustomRules(t *testing.T) {
	samples := []entity.LatencySample{
		newSample("01-13 14:30:00.000", 500, 500, 100, 150, 180, true),
	}
	summary, err := NewLatencyAggregator(DefaultAggregationConfig()).Aggregate(samples)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	rules := DefaultValidationRules()
	rules.P95ThresholdMs = 200
	rules.P95SoftThresholdMs = 190
	rules.AverageP95WarnMs = 190
	rules.P99OutlierMs = 250
	rules.MinTotalSamples = 500
	rules.MinDurationMinutes = 0.5

	outcome := NewLatencyValidator(rules).Validate(summary, samples)
	if !outcome.Passed() {
		t.Fatalf("Passed() = false with relaxed rules; rules = %+v", outcome.Rules())
	}
	if len(outcome.Warnings()) != 0 {
		t.Fatalf("Warnings() = %v, want none", outcome.Warnings())
	}
}

func TestTrend(t *testing.T) {
	validator := NewLatencyValidator(DefaultValidationRules())

	tests := []struct {
		name      string
		values    []float64
		wantOK    bool
		wantEarly float64
		wantLate  float64
	}{
		{
			name:   "too few entries",
			values: []float64{10, 20, 30, 40},
			wantOK: false,
		},
		{
			name:      "five entries use one-element thirds",
			values:    []float64{10, 50, 50, 50, 20},
			wantOK:    true,
			wantEarly: 10,
			wantLate:  20,
		},
		{
			name:      "seven entries drop remainder into middle",
			values:    []float64{10, 20, 99, 99, 99, 30, 40},
			wantOK:    true,
			wantEarly: 15,
			wantLate:  35,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			early, late, ok := validator.Trend(p95Samples(3600, true, tt.values...))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if early != tt.wantEarly || late != tt.wantLate {
				t.Fatalf("trend = %v → %v, want %v → %v", early, late, tt.wantEarly, tt.wantLate)
			}
		})
	}
}

func TestValidate_IncreasingTrendWarning(t *testing.T) {
	outcome := validate(t, p95Samples(3600, true, 40, 42, 45, 50, 60, 70))

	if !outcome.HasWarning(entity.WarningIncreasingTrend) {
		t.Fatalf("expected increasing trend warning, got %v", outcome.Warnings())
	}

	flat := validate(t, p95Samples(3600, true, 40, 42, 45, 44, 43, 41))
	if flat.HasWarning(entity.WarningIncreasingTrend) {
		t.Fatalf("unexpected trend warning for flat series: %v", flat.Warnings())
	}
}
