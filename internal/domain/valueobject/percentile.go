package valueobject

import "errors"

// Percentile представляет перцентиль задержки (Value Object)
type Percentile string

const (
	P50 Percentile = "p50"
	P95 Percentile = "p95"
	P99 Percentile = "p99"
)

// Validate проверяет валидность перцентиля
func (p Percentile) Validate() error {
	switch p {
	case P50, P95, P99:
		return nil
	default:
		return errors.New("invalid percentile")
	}
}

// String возвращает строковое представление перцентиля
func (p Percentile) String() string {
	return string(p)
}

// Label возвращает подпись для отчета (P50, P95, P99)
func (p Percentile) Label() string {
	switch p {
	case P50:
		return "P50"
	case P95:
		return "P95"
	case P99:
		return "P99"
	default:
		return string(p)
	}
}

// AllPercentiles возвращает список всех отслеживаемых перцентилей
func AllPercentiles() []Percentile {
	return []Percentile{P50, P95, P99}
}
