package reports

import (
	"context"
	"sort"
	"time"

	"soldi/internal/core"
)

// fakeStore serves canned aggregate rows and records replacements.
type fakeStore struct {
	rows     []core.Aggregate
	replaced map[int64][]core.Aggregate
}

func (f *fakeStore) OwnerAggregates(_ context.Context, ownerID int64, kinds []core.Kind, period core.Period, dateKind core.DateKind) ([]core.Aggregate, error) {
	want := make(map[core.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []core.Aggregate
	for _, r := range f.rows {
		if r.OwnerID == ownerID && want[r.Kind] && r.Period == period && r.DateKind == dateKind {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) EntitySeries(_ context.Context, ownerID int64, kind core.Kind, entityID int64, period core.Period, dateKind core.DateKind, floor time.Time, take int) ([]core.SeriesPoint, error) {
	var out []core.SeriesPoint
	for _, r := range f.rows {
		if r.OwnerID != ownerID || r.Kind != kind || r.EntityID != entityID || r.Period != period || r.DateKind != dateKind {
			continue
		}
		if !floor.IsZero() && r.PeriodStart.Before(floor) {
			continue
		}
		out = append(out, core.SeriesPoint{PeriodStart: r.PeriodStart, Amount: r.Amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	if len(out) > take {
		out = out[len(out)-take:]
	}
	return out, nil
}

func (f *fakeStore) KindSeries(_ context.Context, ownerID int64, kind core.Kind, period core.Period, dateKind core.DateKind, floor time.Time, take int) ([]core.SeriesPoint, error) {
	sums := make(map[time.Time]core.SeriesPoint)
	for _, r := range f.rows {
		if r.OwnerID != ownerID || r.Kind != kind || r.Period != period || r.DateKind != dateKind {
			continue
		}
		if !floor.IsZero() && r.PeriodStart.Before(floor) {
			continue
		}
		p := sums[r.PeriodStart]
		p.PeriodStart = r.PeriodStart
		p.Amount = p.Amount.Add(r.Amount)
		sums[r.PeriodStart] = p
	}
	out := make([]core.SeriesPoint, 0, len(sums))
	for _, p := range sums {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	if len(out) > take {
		out = out[len(out)-take:]
	}
	return out, nil
}

func (f *fakeStore) ReplaceOwnerAggregates(_ context.Context, ownerID int64, rows []core.Aggregate) error {
	if f.replaced == nil {
		f.replaced = make(map[int64][]core.Aggregate)
	}
	f.replaced[ownerID] = rows
	return nil
}

// fakeLedger serves canned postings.
type fakeLedger struct {
	postings []core.Posting
}

func (f *fakeLedger) OwnerPostings(_ context.Context, ownerID int64) ([]core.Posting, error) {
	var out []core.Posting
	for _, p := range f.postings {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeLedger) SecurityGroupPostings(_ context.Context, ownerID int64, from, to time.Time) ([]core.Posting, error) {
	var out []core.Posting
	for _, p := range f.postings {
		if p.OwnerID != ownerID || p.Kind != core.KindSecurity || p.SubType == "" {
			continue
		}
		if p.BookingDate.Before(from) || !p.BookingDate.Before(to) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// fakeDir maps owner -> kind -> entity id -> info.
type fakeDir struct {
	owners map[int64]map[core.Kind]map[int64]core.EntityInfo
}

func (f *fakeDir) OwnedEntities(_ context.Context, ownerID int64, kind core.Kind) (map[int64]core.EntityInfo, error) {
	out := make(map[int64]core.EntityInfo)
	for id, info := range f.owners[ownerID][kind] {
		out[id] = info
	}
	return out, nil
}

func (f *fakeDir) IsOwned(_ context.Context, ownerID int64, kind core.Kind, entityID int64) (bool, error) {
	_, ok := f.owners[ownerID][kind][entityID]
	return ok, nil
}

func newTestService(store *fakeStore, ledger *fakeLedger, dir *fakeDir, now time.Time) *Service {
	s := New(store, ledger, dir)
	s.now = func() time.Time { return now }
	return s
}

func singleOwnerDir(ownerID int64, kind core.Kind, entities ...core.EntityInfo) *fakeDir {
	byID := make(map[int64]core.EntityInfo, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}
	return &fakeDir{owners: map[int64]map[core.Kind]map[int64]core.EntityInfo{
		ownerID: {kind: byID},
	}}
}
