package entity

// RuleName идентифицирует правило валидации
type RuleName string

const (
	RuleNoFailingWindows RuleName = "no_failing_windows"
	RulePeakP95          RuleName = "peak_p95_under_threshold"
	RuleAverageP95       RuleName = "average_p95_under_threshold"
	RuleSufficientVolume RuleName = "sufficient_volume"
)

// WarningCode идентифицирует тип предупреждения
type WarningCode string

const (
	WarningP95Exceeded        WarningCode = "p95_exceeded"
	WarningP95NearThreshold   WarningCode = "p95_near_threshold"
	WarningAverageP95High     WarningCode = "average_p95_high"
	WarningP99Outliers        WarningCode = "p99_outliers"
	WarningInsufficientSample WarningCode = "insufficient_samples"
	WarningShortSession       WarningCode = "short_session"
	WarningIncreasingTrend    WarningCode = "increasing_trend"
)

// RuleResult содержит результат проверки одного правила
type RuleResult struct {
	Name   RuleName
	Passed bool
}

// Warning представляет рекомендательное предупреждение (не влияет на итог)
type Warning struct {
	Code    WarningCode
	Message string
}

// String возвращает текст предупреждения
func (w Warning) String() string {
	return w.Message
}

// ValidationOutcome содержит результат одного прогона валидации
// Создается заново на каждый прогон и не изменяется после построения
type ValidationOutcome struct {
	passed   bool
	rules    []RuleResult
	warnings []Warning
}

// NewValidationOutcome создает ValidationOutcome.
// Итог проходит только если проходят все правила.
func NewValidationOutcome(rules []RuleResult, warnings []Warning) *ValidationOutcome {
	passed := len(rules) > 0
	for _, rule := range rules {
		if !rule.Passed {
			passed = false
		}
	}

	return &ValidationOutcome{
		passed:   passed,
		rules:    append([]RuleResult(nil), rules...),
		warnings: append([]Warning(nil), warnings...),
	}
}

// Passed возвращает итоговый результат валидации
func (o *ValidationOutcome) Passed() bool {
	return o.passed
}

// Rules возвращает копию результатов по правилам в порядке проверки
func (o *ValidationOutcome) Rules() []RuleResult {
	return append([]RuleResult(nil), o.rules...)
}

// Rule возвращает результат конкретного правила
func (o *ValidationOutcome) Rule(name RuleName) (RuleResult, bool) {
	for _, rule := range o.rules {
		if rule.Name == name {
			return rule, true
		}
	}
	return RuleResult{}, false
}

// Warnings возвращает копию предупреждений в порядке генерации
func (o *ValidationOutcome) Warnings() []Warning {
	return append([]Warning(nil), o.warnings...)
}

// HasWarning проверяет наличие предупреждения с указанным кодом
func (o *ValidationOutcome) HasWarning(code WarningCode) bool {
	for _, w := range o.warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
