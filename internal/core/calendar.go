package core

import (
	"errors"
	"time"
)

// Period is the bucket width of an aggregate.
type Period string

const (
	PeriodMonth    Period = "month"
	PeriodQuarter  Period = "quarter"
	PeriodHalfYear Period = "half_year"
	PeriodYear     Period = "year"
)

// AllHistoryStart anchors the single collapsed point of an all-history
// report. No real posting can predate it.
var AllHistoryStart = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

// AllPeriods returns the four granularities in canonical order.
func AllPeriods() []Period {
	return []Period{PeriodMonth, PeriodQuarter, PeriodHalfYear, PeriodYear}
}

func (p Period) Valid() bool {
	switch p {
	case PeriodMonth, PeriodQuarter, PeriodHalfYear, PeriodYear:
		return true
	}
	return false
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", errors.New("unknown period: " + s)
	}
	return p, nil
}

// DefaultTake is the series window used when the caller passes a
// non-positive take.
func (p Period) DefaultTake() int {
	switch p {
	case PeriodQuarter:
		return 16
	case PeriodHalfYear:
		return 12
	case PeriodYear:
		return 10
	default:
		return 36
	}
}

// Start truncates a date to the first calendar day of its period.
func (p Period) Start(t time.Time) time.Time {
	y, m, _ := t.Date()
	switch p {
	case PeriodQuarter:
		m = time.Month((int(m)-1)/3*3 + 1)
	case PeriodHalfYear:
		if m < time.July {
			m = time.January
		} else {
			m = time.July
		}
	case PeriodYear:
		m = time.January
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Prev returns the start of the period immediately before the period
// containing t.
func (p Period) Prev(t time.Time) time.Time {
	start := p.Start(t)
	switch p {
	case PeriodQuarter:
		return start.AddDate(0, -3, 0)
	case PeriodHalfYear:
		return start.AddDate(0, -6, 0)
	case PeriodYear:
		return start.AddDate(-1, 0, 0)
	default:
		return start.AddDate(0, -1, 0)
	}
}

// MonthStart truncates a date to the first day of its month.
func MonthStart(t time.Time) time.Time {
	return PeriodMonth.Start(t)
}

// Interval is the presentation granularity of a report. The four native
// intervals map 1:1 onto aggregate periods; Ytd and AllHistory read monthly
// aggregates and collapse them afterwards.
type Interval string

const (
	IntervalMonth      Interval = "month"
	IntervalQuarter    Interval = "quarter"
	IntervalHalfYear   Interval = "half_year"
	IntervalYear       Interval = "year"
	IntervalYtd        Interval = "ytd"
	IntervalAllHistory Interval = "all_history"
)

func (iv Interval) Valid() bool {
	switch iv {
	case IntervalMonth, IntervalQuarter, IntervalHalfYear, IntervalYear, IntervalYtd, IntervalAllHistory:
		return true
	}
	return false
}

func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !iv.Valid() {
		return "", errors.New("unknown interval: " + s)
	}
	return iv, nil
}

// SourcePeriod maps the interval to the aggregate granularity it reads.
func (iv Interval) SourcePeriod() Period {
	switch iv {
	case IntervalQuarter:
		return PeriodQuarter
	case IntervalHalfYear:
		return PeriodHalfYear
	case IntervalYear:
		return PeriodYear
	default:
		return PeriodMonth
	}
}

// LatestStart returns the most recent period start implied by the interval
// and the analysis date. AllHistory has no latest period and returns the
// sentinel.
func (iv Interval) LatestStart(analysis time.Time) time.Time {
	switch iv {
	case IntervalQuarter:
		return PeriodQuarter.Start(analysis)
	case IntervalHalfYear:
		return PeriodHalfYear.Start(analysis)
	case IntervalYear, IntervalYtd:
		return PeriodYear.Start(analysis)
	case IntervalAllHistory:
		return AllHistoryStart
	default:
		return MonthStart(analysis)
	}
}

// PrevStart returns the period start immediately preceding start under the
// interval's native semantics. Ytd compares against the previous calendar
// year; AllHistory has no predecessor and returns the zero time.
func (iv Interval) PrevStart(start time.Time) time.Time {
	switch iv {
	case IntervalQuarter:
		return PeriodQuarter.Prev(start)
	case IntervalHalfYear:
		return PeriodHalfYear.Prev(start)
	case IntervalYear, IntervalYtd:
		return PeriodYear.Prev(start)
	case IntervalAllHistory:
		return time.Time{}
	default:
		return PeriodMonth.Prev(start)
	}
}
