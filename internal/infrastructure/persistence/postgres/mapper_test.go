package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/dreschagin/latency-validator/internal/domain/entity"
	"github.com/dreschagin/latency-validator/internal/domain/valueobject"
)

func testRun() *entity.AnalysisRun {
	samples := []entity.LatencySample{
		entity.NewLatencySample(valueobject.NewLogTimestamp("01-13 14:30:00.123"), 60, 60, 40, 80, 120, true),
		entity.NewLatencySample(valueobject.NewLogTimestamp("01-13 14:30:30.123"), 60, 120, 45, 95, 160, false),
	}
	summary := &entity.LatencySummary{
		Entries:        2,
		TotalSamples:   120,
		FailingWindows: 1,
		P50:            entity.PercentileStats{Min: 40, Max: 45, Average: 42.5},
		P95:            entity.PercentileStats{Min: 80, Max: 95, Average: 87.5},
		P99:            entity.PercentileStats{Min: 120, Max: 160, Average: 140},
		Duration:       time.Minute,
		DurationSource: entity.DurationFromCadence,
	}
	outcome := entity.NewValidationOutcome(
		[]entity.RuleResult{{Name: entity.RuleNoFailingWindows, Passed: false}},
		[]entity.Warning{{Code: entity.WarningP99Outliers}, {Code: entity.WarningShortSession}},
	)
	return entity.NewAnalysisRun("app.log", "cafe", samples, summary, outcome, 3)
}

func TestToRunDBModel(t *testing.T) {
	run := testRun()
	model := ToRunDBModel(run)

	if model.ID != run.ID() || model.SourceFile != "app.log" || model.ContentHash != "cafe" {
		t.Errorf("identity fields = %+v", model)
	}
	if model.DroppedBlocks != 3 || model.WarningCount != 2 || model.Passed {
		t.Errorf("outcome fields = %+v", model)
	}
	if model.DurationSeconds != 60 || model.DurationSource != "cadence" {
		t.Errorf("duration fields = %+v", model)
	}
	if model.P95Max != 95 || model.P99Max != 160 || model.P50Average != 42.5 {
		t.Errorf("percentile fields = %+v", model)
	}

	record := ToRunRecord(model)
	if record.ID != run.ID() || record.P95Average != 87.5 || record.WarningCount != 2 {
		t.Errorf("ToRunRecord() = %+v", record)
	}
}

func TestToSampleDBModels_PreservesOrder(t *testing.T) {
	run := testRun()
	models := ToSampleDBModels(run)

	if len(models) != 2 {
		t.Fatalf("len = %d, want 2", len(models))
	}
	for i, m := range models {
		if m.Seq != i || m.RunID != run.ID() {
			t.Errorf("model %d = %+v", i, m)
		}
	}
	if models[1].LogTimestamp != "01-13 14:30:30.123" || models[1].MeetsRequirement {
		t.Errorf("second sample = %+v", models[1])
	}
}

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *int:
			*p = r.values[i].(int)
		case *float64:
			*p = r.values[i].(float64)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			if err := d.(interface{ Scan(interface{}) error }).Scan(r.values[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestScanRunRow(t *testing.T) {
	analyzedAt := time.Date(2026, 1, 13, 14, 30, 0, 0, time.UTC)
	row := fakeRow{values: []interface{}{
		"id-1", "app.log", nil, 10, 3600, 0, 55.5, 70.0, true, 1, analyzedAt,
	}}

	model, err := ScanRunRow(row)
	if err != nil {
		t.Fatalf("ScanRunRow() error = %v", err)
	}
	if model.ContentHash != "" || model.TotalSamples != 3600 || !model.Passed || !model.AnalyzedAt.Equal(analyzedAt) {
		t.Errorf("ScanRunRow() = %+v", model)
	}

	if _, err := ScanRunRow(fakeRow{err: errors.New("boom")}); err == nil {
		t.Error("expected scan error")
	}
}
