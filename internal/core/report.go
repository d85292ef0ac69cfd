package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportPoint is one value in a report series. Points are immutable once
// emitted; derived points are produced through the With* copy constructors.
type ReportPoint struct {
	PeriodStart  time.Time
	Key          GroupKey
	Name         string
	CategoryName string // empty when the entity has no category or categories were not requested
	Amount       decimal.Decimal
	ParentKey    *GroupKey
	Previous     *decimal.Decimal
	YearAgo      *decimal.Decimal
}

// WithAmount returns a copy of the point with a different amount.
func (p ReportPoint) WithAmount(a decimal.Decimal) ReportPoint {
	p.Amount = a
	return p
}

// WithPeriodStart returns a copy of the point anchored at a different period.
func (p ReportPoint) WithPeriodStart(t time.Time) ReportPoint {
	p.PeriodStart = t
	return p
}

// WithComparisons returns a copy of the point carrying comparison values.
func (p ReportPoint) WithComparisons(previous, yearAgo *decimal.Decimal) ReportPoint {
	p.Previous = previous
	p.YearAgo = yearAgo
	return p
}

// KindFilter is a per-dimension allow-list. When IncludeCategories is set on
// the query and CategoryIDs is non-empty, category filtering takes
// precedence over EntityIDs.
type KindFilter struct {
	EntityIDs   []int64
	CategoryIDs []int64
}

// ReportFilter restricts which rows enter the report pipeline.
type ReportFilter struct {
	ByKind                 map[Kind]KindFilter
	SubTypes               []SecuritySubType
	IncludeDividendRelated bool
}

// HasSubType reports whether the sub-type allow-list names t.
func (f ReportFilter) HasSubType(t SecuritySubType) bool {
	for _, s := range f.SubTypes {
		if s == t {
			return true
		}
	}
	return false
}

// ReportQuery describes one multi-dimensional report request. OwnerID is
// explicit on every query; there is no ambient identity.
type ReportQuery struct {
	OwnerID           int64
	Kinds             []Kind
	Interval          Interval
	DateKind          DateKind
	IncludeCategories bool
	ComparePrevious   bool
	CompareYearAgo    bool
	Take              int
	AnalysisDate      time.Time
	Filter            ReportFilter
}

// Normalize fills defaults: all kinds when none are given, booking dates,
// month interval, and the current month start as the analysis anchor.
// Duplicate kinds are collapsed so single-kind semantics stay single-kind.
func (q ReportQuery) Normalize(now time.Time) ReportQuery {
	if len(q.Kinds) == 0 {
		q.Kinds = AllKinds()
	} else {
		seen := make(map[Kind]bool, len(q.Kinds))
		kinds := q.Kinds[:0:0]
		for _, k := range q.Kinds {
			if k.Valid() && !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
		q.Kinds = kinds
	}
	if !q.Interval.Valid() {
		q.Interval = IntervalMonth
	}
	if !q.DateKind.Valid() {
		q.DateKind = DateKindBooking
	}
	if q.AnalysisDate.IsZero() {
		q.AnalysisDate = MonthStart(now)
	}
	return q
}

// SeriesQuery describes a single-entity or cross-entity time-series request.
type SeriesQuery struct {
	OwnerID      int64
	Kind         Kind
	EntityID     int64
	Period       Period
	DateKind     DateKind
	Take         int
	MaxYearsBack int
}

// SeriesPoint is one value of a time series.
type SeriesPoint struct {
	PeriodStart time.Time
	Amount      decimal.Decimal
}
