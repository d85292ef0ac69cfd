package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

func TestClampTake(t *testing.T) {
	tests := []struct {
		name   string
		period core.Period
		take   int
		want   int
	}{
		{"zero falls back to month default", core.PeriodMonth, 0, 36},
		{"negative falls back to quarter default", core.PeriodQuarter, -5, 16},
		{"zero falls back to half-year default", core.PeriodHalfYear, 0, 12},
		{"zero falls back to year default", core.PeriodYear, 0, 10},
		{"explicit value kept", core.PeriodMonth, 24, 24},
		{"capped at 200", core.PeriodMonth, 5000, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampTake(tt.period, tt.take); got != tt.want {
				t.Fatalf("clampTake(%s, %d) = %d, want %d", tt.period, tt.take, got, tt.want)
			}
		})
	}
}

func TestSeriesFloor(t *testing.T) {
	now := time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

	if got := seriesFloor(now, 0); !got.IsZero() {
		t.Fatalf("no floor expected, got %v", got)
	}
	if got := seriesFloor(now, 3); !got.Equal(month(2021, time.June)) {
		t.Fatalf("3-year floor = %v, want 2021-06-01", got)
	}
	if got := seriesFloor(now, 50); !got.Equal(month(2014, time.June)) {
		t.Fatalf("capped floor = %v, want 2014-06-01 (10 years)", got)
	}
}

func TestEntitySeriesNotOwned(t *testing.T) {
	store := &fakeStore{rows: []core.Aggregate{
		monthAgg(1, core.KindBank, 1, month(2024, time.January), 10),
	}}
	dir := singleOwnerDir(1, core.KindBank, core.EntityInfo{ID: 1, Name: "Checking"})
	svc := newTestService(store, &fakeLedger{}, dir, month(2024, time.June))

	points, err := svc.EntitySeries(context.Background(), core.SeriesQuery{
		OwnerID: 2, Kind: core.KindBank, EntityID: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if points != nil {
		t.Fatalf("foreign entity yielded points: %v", points)
	}
}

func TestEntitySeriesWindow(t *testing.T) {
	store := &fakeStore{}
	start := month(2020, time.January)
	for i := 0; i < 60; i++ {
		store.rows = append(store.rows,
			monthAgg(1, core.KindBank, 1, start.AddDate(0, i, 0), int64(i)+1))
	}
	dir := singleOwnerDir(1, core.KindBank, core.EntityInfo{ID: 1, Name: "Checking"})
	svc := newTestService(store, &fakeLedger{}, dir, month(2024, time.December))

	points, err := svc.EntitySeries(context.Background(), core.SeriesQuery{
		OwnerID: 1, Kind: core.KindBank, EntityID: 1,
		Period: core.PeriodMonth, Take: 12,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 12 {
		t.Fatalf("expected 12 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if !points[i-1].PeriodStart.Before(points[i].PeriodStart) {
			t.Fatalf("series not ascending at %d: %v", i, points)
		}
	}
	last := points[len(points)-1]
	if !last.PeriodStart.Equal(start.AddDate(0, 59, 0)) || !last.Amount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("last point = %+v", last)
	}
}

func TestKindSeriesSumsEntities(t *testing.T) {
	jan := month(2024, time.January)
	store := &fakeStore{rows: []core.Aggregate{
		monthAgg(1, core.KindBank, 1, jan, 100),
		monthAgg(1, core.KindBank, 2, jan, 25),
		monthAgg(1, core.KindBank, 1, month(2024, time.February), 10),
	}}
	dir := singleOwnerDir(1, core.KindBank,
		core.EntityInfo{ID: 1, Name: "Checking"},
		core.EntityInfo{ID: 2, Name: "Savings"})
	svc := newTestService(store, &fakeLedger{}, dir, month(2024, time.June))

	points, err := svc.KindSeries(context.Background(), core.SeriesQuery{
		OwnerID: 1, Kind: core.KindBank, Period: core.PeriodMonth, Take: 12,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if !points[0].Amount.Equal(decimal.NewFromInt(125)) {
		t.Fatalf("January sum = %s, want 125", points[0].Amount)
	}
	if !points[1].Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("February sum = %s, want 10", points[1].Amount)
	}
}
