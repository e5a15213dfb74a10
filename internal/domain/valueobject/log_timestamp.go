package valueobject

import (
	"errors"
	"strings"
	"time"
)

// logTimestampLayout соответствует формату "MM-DD HH:MM:SS.fff" без года.
// Дробная часть секунд разбирается автоматически.
const logTimestampLayout = "01-02 15:04:05"

// LogTimestamp представляет метку времени из лога (Value Object)
// Хранится в исходном виде и используется только для упорядочивания и вывода
type LogTimestamp struct {
	raw string
}

// NewLogTimestamp создает LogTimestamp из исходной строки лога
func NewLogTimestamp(raw string) LogTimestamp {
	return LogTimestamp{raw: strings.TrimSpace(raw)}
}

// String возвращает метку времени как она записана в логе
func (t LogTimestamp) String() string {
	return t.raw
}

// IsZero проверяет, пустая ли метка времени
func (t LogTimestamp) IsZero() bool {
	return t.raw == ""
}

// Parse пытается разобрать метку времени в time.Time.
// Год в логе отсутствует, поэтому результат пригоден только для вычисления разницы.
func (t LogTimestamp) Parse() (time.Time, error) {
	if t.raw == "" {
		return time.Time{}, errors.New("empty log timestamp")
	}

	// Между датой и временем может быть несколько пробелов
	normalized := strings.Join(strings.Fields(t.raw), " ")

	parsed, err := time.Parse(logTimestampLayout, normalized)
	if err != nil {
		return time.Time{}, err
	}

	return parsed, nil
}

// Equals сравнивает две метки времени по исходной строке
func (t LogTimestamp) Equals(other LogTimestamp) bool {
	return t.raw == other.raw
}
