package reports

import (
	"context"
	"fmt"
	"time"

	"soldi/internal/core"
)

const (
	takeMin      = 1
	takeMax      = 200
	yearsBackMin = 1
	yearsBackMax = 10
)

// clampTake bounds take to [1,200], substituting the period default for
// non-positive values.
func clampTake(period core.Period, take int) int {
	if take <= 0 {
		take = period.DefaultTake()
	}
	if take < takeMin {
		take = takeMin
	}
	if take > takeMax {
		take = takeMax
	}
	return take
}

// seriesFloor returns the month-aligned lower bound implied by maxYearsBack,
// clamped to [1,10] years. Zero or negative means no floor.
func seriesFloor(now time.Time, maxYearsBack int) time.Time {
	if maxYearsBack <= 0 {
		return time.Time{}
	}
	if maxYearsBack < yearsBackMin {
		maxYearsBack = yearsBackMin
	}
	if maxYearsBack > yearsBackMax {
		maxYearsBack = yearsBackMax
	}
	return core.MonthStart(now.AddDate(-maxYearsBack, 0, 0))
}

// EntitySeries returns one entity's aggregate series, most recent take
// periods ascending. An entity the owner does not own yields (nil, nil):
// ownership here is the sole caller-visible check, not an error.
func (s *Service) EntitySeries(ctx context.Context, q core.SeriesQuery) ([]core.SeriesPoint, error) {
	q = normalizeSeriesQuery(q)

	owned, err := s.dir.IsOwned(ctx, q.OwnerID, q.Kind, q.EntityID)
	if err != nil {
		return nil, fmt.Errorf("check entity ownership: %w", err)
	}
	if !owned {
		return nil, nil
	}

	take := clampTake(q.Period, q.Take)
	floor := seriesFloor(s.now(), q.MaxYearsBack)

	points, err := s.store.EntitySeries(ctx, q.OwnerID, q.Kind, q.EntityID, q.Period, q.DateKind, floor, take)
	if err != nil {
		return nil, fmt.Errorf("read entity series: %w", err)
	}
	return points, nil
}

// KindSeries sums the series across every owned entity of the kind. The
// per-period sums are windowed with the same clamping rules as EntitySeries.
func (s *Service) KindSeries(ctx context.Context, q core.SeriesQuery) ([]core.SeriesPoint, error) {
	q = normalizeSeriesQuery(q)

	take := clampTake(q.Period, q.Take)
	floor := seriesFloor(s.now(), q.MaxYearsBack)

	points, err := s.store.KindSeries(ctx, q.OwnerID, q.Kind, q.Period, q.DateKind, floor, take)
	if err != nil {
		return nil, fmt.Errorf("read kind series: %w", err)
	}
	return points, nil
}

func normalizeSeriesQuery(q core.SeriesQuery) core.SeriesQuery {
	if !q.Period.Valid() {
		q.Period = core.PeriodMonth
	}
	if !q.DateKind.Valid() {
		q.DateKind = core.DateKindBooking
	}
	return q
}
