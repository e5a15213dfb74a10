package service

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
)

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	return parameters
}

// Итог PASS тогда и только тогда, когда проходят все четыре правила
func TestProperty_OverallPassIsConjunctionOfRules(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("overall pass equals conjunction of rule results", prop.ForAll(
		func(p95 []float64, failing []bool, total int) bool {
			n := len(p95)
			if len(failing) < n {
				n = len(failing)
			}
			if n == 0 {
				return true
			}

			samples := make([]entity.LatencySample, n)
			for i := 0; i < n; i++ {
				samples[i] = newSample("01-13 14:30:00.000", 60, total, p95[i]/2, p95[i], p95[i]+5, !failing[i])
			}

			summary, err := NewLatencyAggregator(DefaultAggregationConfig()).Aggregate(samples)
			if err != nil {
				return false
			}
			outcome := NewLatencyValidator(DefaultValidationRules()).Validate(summary, samples)

			expected := summary.FailingWindows == 0 &&
				summary.P95.Max < 100 &&
				summary.P95.Average < 100 &&
				summary.TotalSamples >= 3600

			all := true
			for _, r := range outcome.Rules() {
				all = all && r.Passed
			}

			return outcome.Passed() == expected && outcome.Passed() == all && len(outcome.Rules()) == 4
		},
		gen.SliceOf(gen.Float64Range(0, 200)),
		gen.SliceOf(gen.Bool()),
		gen.IntRange(0, 10000),
	))

	properties.TestingRun(t)
}

// Предупреждение о тренде появляется только при n >= 5 и росте больше чем в 1.2 раза
func TestProperty_TrendWarning(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("trend warning iff enough entries and late third exceeds early third", prop.ForAll(
		func(values []float64) bool {
			if len(values) == 0 {
				return true
			}

			samples := p95Samples(3600, true, values...)
			summary, err := NewLatencyAggregator(DefaultAggregationConfig()).Aggregate(samples)
			if err != nil {
				return false
			}
			outcome := NewLatencyValidator(DefaultValidationRules()).Validate(summary, samples)

			n := len(values)
			third := n / 3
			expected := false
			if n >= 5 {
				early := mean(values[:third])
				late := mean(values[n-third:])
				expected = late > early*1.2
			}

			return outcome.HasWarning(entity.WarningIncreasingTrend) == expected
		},
		gen.SliceOf(gen.Float64Range(1, 150)),
	))

	properties.TestingRun(t)
}

// Предупреждения никогда не меняют итог
func TestProperty_WarningsDoNotAffectOutcome(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("warnings are advisory", prop.ForAll(
		func(p95 float64, p99 float64) bool {
			samples := []entity.LatencySample{
				newSample("01-13 14:30:00.000", 3600, 3600, p95/2, p95, p99, true),
			}
			summary, err := NewLatencyAggregator(DefaultAggregationConfig()).Aggregate(samples)
			if err != nil {
				return false
			}
			outcome := NewLatencyValidator(DefaultValidationRules()).Validate(summary, samples)

			return outcome.Passed() == (p95 < 100)
		},
		gen.Float64Range(0, 99.99),
		gen.Float64Range(0, 500),
	))

	properties.TestingRun(t)
}
