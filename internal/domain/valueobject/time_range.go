package valueobject

import (
	"errors"
	"time"
)

// TimeRange представляет временной диапазон сессии (Value Object)
// Иммутабельный объект
type TimeRange struct {
	start time.Time
	end   time.Time
}

// NewTimeRange создает новый TimeRange с валидацией
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.After(end) {
		return TimeRange{}, errors.New("start time must be before end time")
	}

	return TimeRange{
		start: start,
		end:   end,
	}, nil
}

// NewTimeRangeFromLog строит диапазон между первой и последней меткой времени лога.
// Если последняя метка раньше первой, считается, что сессия пересекла границу года.
func NewTimeRangeFromLog(first, last LogTimestamp) (TimeRange, error) {
	start, err := first.Parse()
	if err != nil {
		return TimeRange{}, err
	}

	end, err := last.Parse()
	if err != nil {
		return TimeRange{}, err
	}

	if end.Before(start) {
		end = end.AddDate(1, 0, 0)
	}

	return NewTimeRange(start, end)
}

// Start возвращает начальное время
func (tr TimeRange) Start() time.Time {
	return tr.start
}

// End возвращает конечное время
func (tr TimeRange) End() time.Time {
	return tr.end
}

// Duration возвращает длительность диапазона
func (tr TimeRange) Duration() time.Duration {
	return tr.end.Sub(tr.start)
}
