package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

// finishPipeline applies the interval transform, latest-period backfill,
// comparisons, windowing, pruning and final ordering. Both the aggregate
// path and the dividend net-leg path funnel through here, so their results
// line up point for point.
func finishPipeline(q core.ReportQuery, points []core.ReportPoint) []core.ReportPoint {
	switch q.Interval {
	case core.IntervalYtd:
		points = transformYtd(points, q.AnalysisDate)
	case core.IntervalAllHistory:
		points = transformAllHistory(points)
	}

	latest := q.Interval.LatestStart(q.AnalysisDate)
	if q.Interval != core.IntervalAllHistory {
		points = backfillLatest(points, latest)
	}

	if q.ComparePrevious || q.CompareYearAgo {
		points = attachComparisons(points, q)
	}

	points = applyWindow(points, q.Take, latest)

	if q.Interval != core.IntervalAllHistory && (q.ComparePrevious || q.CompareYearAgo) {
		points = pruneStaleGroups(points, latest)
	}

	sortPoints(points)
	if points == nil {
		points = []core.ReportPoint{}
	}
	return points
}

// transformYtd collapses monthly points into one cumulative point per
// (group, year), summing only the months at or before the analysis month,
// anchored at January 1 of each year.
func transformYtd(points []core.ReportPoint, analysis time.Time) []core.ReportPoint {
	cutoffMonth := analysis.Month()
	cutoffYear := analysis.Year()

	type yearBucket struct {
		key  core.GroupKey
		year int
	}
	sums := make(map[yearBucket]core.ReportPoint)
	var order []yearBucket
	for _, p := range points {
		year := p.PeriodStart.Year()
		if year > cutoffYear || p.PeriodStart.Month() > cutoffMonth {
			continue
		}
		b := yearBucket{key: p.Key, year: year}
		yp, ok := sums[b]
		if !ok {
			yp = p.WithPeriodStart(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)).
				WithAmount(decimal.Zero)
			order = append(order, b)
		}
		yp.Amount = yp.Amount.Add(p.Amount)
		sums[b] = yp
	}

	out := make([]core.ReportPoint, 0, len(order))
	for _, b := range order {
		out = append(out, sums[b])
	}
	return out
}

// transformAllHistory collapses each group into a single point at the
// sentinel date, then derives kind totals from the collapsed entity points
// so totals exist even in single-kind mode.
func transformAllHistory(points []core.ReportPoint) []core.ReportPoint {
	sums := make(map[core.GroupKey]core.ReportPoint)
	var order []core.GroupKey
	for _, p := range points {
		cp, ok := sums[p.Key]
		if !ok {
			cp = p.WithPeriodStart(core.AllHistoryStart).WithAmount(decimal.Zero)
			order = append(order, p.Key)
		}
		cp.Amount = cp.Amount.Add(p.Amount)
		sums[p.Key] = cp
	}

	out := make([]core.ReportPoint, 0, len(order))
	haveKindTotal := make(map[core.Kind]bool)
	for _, key := range order {
		out = append(out, sums[key])
		if key.Tag == core.KeyKind {
			haveKindTotal[key.Kind] = true
		}
	}

	// Kind totals derived from entity points, for kinds lacking one. Keys
	// without a valid kind stay out of the roll-up.
	kindSums := make(map[core.Kind]decimal.Decimal)
	var kindOrder []core.Kind
	for _, key := range order {
		if key.Tag != core.KeyEntity || !key.Kind.Valid() || haveKindTotal[key.Kind] {
			continue
		}
		if _, ok := kindSums[key.Kind]; !ok {
			kindOrder = append(kindOrder, key.Kind)
		}
		kindSums[key.Kind] = kindSums[key.Kind].Add(sums[key].Amount)
	}
	for _, kind := range kindOrder {
		out = append(out, core.ReportPoint{
			PeriodStart: core.AllHistoryStart,
			Key:         core.KindKey(kind),
			Name:        kind.DisplayName(),
			Amount:      kindSums[kind],
		})
	}
	return out
}

// backfillLatest drops stray future-dated points and guarantees every group
// ends with a point exactly at the latest period, synthesizing a zero row
// when needed. Running it twice adds nothing the second time.
func backfillLatest(points []core.ReportPoint, latest time.Time) []core.ReportPoint {
	kept := points[:0]
	for _, p := range points {
		if p.PeriodStart.After(latest) {
			continue
		}
		kept = append(kept, p)
	}

	type groupState struct {
		last     core.ReportPoint
		atLatest bool
	}
	groups := make(map[core.GroupKey]groupState)
	var order []core.GroupKey
	for _, p := range kept {
		st, ok := groups[p.Key]
		if !ok {
			order = append(order, p.Key)
			st.last = p
		}
		if p.PeriodStart.After(st.last.PeriodStart) {
			st.last = p
		}
		if p.PeriodStart.Equal(latest) {
			st.atLatest = true
		}
		groups[p.Key] = st
	}

	for _, key := range order {
		st := groups[key]
		if st.atLatest {
			continue
		}
		kept = append(kept, st.last.WithPeriodStart(latest).WithAmount(decimal.Zero))
	}
	return kept
}

// attachComparisons looks up, per point, the group's value one native period
// back and one year back, and attaches whichever exist.
func attachComparisons(points []core.ReportPoint, q core.ReportQuery) []core.ReportPoint {
	index := make(map[core.GroupKey]map[time.Time]decimal.Decimal, len(points))
	for _, p := range points {
		byStart, ok := index[p.Key]
		if !ok {
			byStart = make(map[time.Time]decimal.Decimal)
			index[p.Key] = byStart
		}
		byStart[p.PeriodStart] = p.Amount
	}

	out := make([]core.ReportPoint, len(points))
	for i, p := range points {
		var previous, yearAgo *decimal.Decimal
		if q.ComparePrevious {
			prevStart := q.Interval.PrevStart(p.PeriodStart)
			if !prevStart.IsZero() {
				if v, ok := index[p.Key][prevStart]; ok {
					previous = &v
				}
			}
		}
		if q.CompareYearAgo {
			if v, ok := index[p.Key][p.PeriodStart.AddDate(-1, 0, 0)]; ok {
				yearAgo = &v
			}
		}
		out[i] = p.WithComparisons(previous, yearAgo)
	}
	return out
}

// applyWindow keeps only the most recent take distinct periods at or before
// the latest period. A non-positive take disables windowing.
func applyWindow(points []core.ReportPoint, take int, latest time.Time) []core.ReportPoint {
	if take <= 0 {
		return points
	}

	seen := make(map[time.Time]bool)
	var starts []time.Time
	for _, p := range points {
		if p.PeriodStart.After(latest) || seen[p.PeriodStart] {
			continue
		}
		seen[p.PeriodStart] = true
		starts = append(starts, p.PeriodStart)
	}
	if len(starts) <= take {
		return points
	}

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	window := make(map[time.Time]bool, take)
	for _, start := range starts[len(starts)-take:] {
		window[start] = true
	}

	kept := points[:0]
	for _, p := range points {
		if window[p.PeriodStart] {
			kept = append(kept, p)
		}
	}
	return kept
}

// pruneStaleGroups removes whole groups whose latest-period point is zero
// with nothing to compare against: flat zero lines with no history worth
// charting.
func pruneStaleGroups(points []core.ReportPoint, latest time.Time) []core.ReportPoint {
	stale := make(map[core.GroupKey]bool)
	for _, p := range points {
		if !p.PeriodStart.Equal(latest) {
			continue
		}
		if p.Amount.IsZero() && isNilOrZero(p.Previous) && isNilOrZero(p.YearAgo) {
			stale[p.Key] = true
		}
	}
	if len(stale) == 0 {
		return points
	}

	kept := points[:0]
	for _, p := range points {
		if !stale[p.Key] {
			kept = append(kept, p)
		}
	}
	return kept
}

func isNilOrZero(d *decimal.Decimal) bool {
	return d == nil || d.IsZero()
}

// sortPoints orders ascending by period start, category roll-ups before
// other points, then by display name, with the key as final tie-breaker.
func sortPoints(points []core.ReportPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if !a.PeriodStart.Equal(b.PeriodStart) {
			return a.PeriodStart.Before(b.PeriodStart)
		}
		if a.Key.IsCategory() != b.Key.IsCategory() {
			return a.Key.IsCategory()
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key.Less(b.Key)
	})
}
