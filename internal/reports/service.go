package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"soldi/internal/core"
)

// Service answers time-series and report queries against the aggregate
// store, the ledger and the entity directory.
type Service struct {
	store  AggregateStore
	ledger Ledger
	dir    Directory
	now    func() time.Time
}

func New(store AggregateStore, ledger Ledger, dir Directory) *Service {
	return &Service{store: store, ledger: ledger, dir: dir, now: time.Now}
}

// Report runs the full aggregation pipeline for one query and returns the
// final, ordered point set. An empty result is a valid empty slice, never
// nil-with-error.
func (s *Service) Report(ctx context.Context, q core.ReportQuery) ([]core.ReportPoint, error) {
	q = q.Normalize(s.now())

	// Dividend-style security reports bypass the aggregate store entirely.
	// Both historical triggers are preserved: the explicit flag, and the
	// YTD+dividend-filter combination. See DESIGN.md for the policy note.
	if dividendShortCircuit(q) {
		return s.dividendReport(ctx, q)
	}

	rows, err := s.store.OwnerAggregates(ctx, q.OwnerID, q.Kinds, q.Interval.SourcePeriod(), q.DateKind)
	if err != nil {
		return nil, fmt.Errorf("read owner aggregates: %w", err)
	}
	if len(rows) == 0 {
		return []core.ReportPoint{}, nil
	}

	dirs, err := s.loadDirectories(ctx, q.OwnerID, q.Kinds)
	if err != nil {
		return nil, err
	}

	// Ownership is a hard filter: rows referencing entities outside the
	// owner's directory are dropped, never surfaced.
	owned := rows[:0]
	for _, row := range rows {
		if _, ok := dirs[row.Kind][row.EntityID]; ok {
			owned = append(owned, row)
		}
	}

	filtered := applyFilters(q, owned, dirs)
	points := buildHierarchy(q, filtered, dirs)
	return finishPipeline(q, points), nil
}

// loadDirectories resolves the owned-entity maps for every requested kind
// concurrently.
func (s *Service) loadDirectories(ctx context.Context, ownerID int64, kinds []core.Kind) (map[core.Kind]map[int64]core.EntityInfo, error) {
	dirs := make(map[core.Kind]map[int64]core.EntityInfo, len(kinds))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			entities, err := s.dir.OwnedEntities(gctx, ownerID, kind)
			if err != nil {
				return fmt.Errorf("load %s directory: %w", kind, err)
			}
			mu.Lock()
			dirs[kind] = entities
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dirs, nil
}

// applyFilters applies the caller's allow-lists. Category filtering wins
// over entity-id filtering when both are present for a kind. The sub-type
// allow-list applies to security rows only; rows without a sub-type are
// dropped while a sub-type filter is active.
func applyFilters(q core.ReportQuery, rows []core.Aggregate, dirs map[core.Kind]map[int64]core.EntityInfo) []core.Aggregate {
	subTypeActive := len(q.Filter.SubTypes) > 0 && containsKind(q.Kinds, core.KindSecurity)
	allowedSubTypes := make(map[core.SecuritySubType]bool, len(q.Filter.SubTypes))
	for _, st := range q.Filter.SubTypes {
		allowedSubTypes[st] = true
	}

	kept := rows[:0]
	for _, row := range rows {
		if !rowAllowed(q, row, dirs) {
			continue
		}
		if row.Kind == core.KindSecurity && subTypeActive {
			if row.SubType == "" || !allowedSubTypes[row.SubType] {
				continue
			}
		}
		kept = append(kept, row)
	}
	return kept
}

func rowAllowed(q core.ReportQuery, row core.Aggregate, dirs map[core.Kind]map[int64]core.EntityInfo) bool {
	f, ok := q.Filter.ByKind[row.Kind]
	if !ok {
		return true
	}
	if q.IncludeCategories && len(f.CategoryIDs) > 0 {
		info := dirs[row.Kind][row.EntityID]
		return containsID(f.CategoryIDs, info.CategoryID)
	}
	if len(f.EntityIDs) > 0 {
		return containsID(f.EntityIDs, row.EntityID)
	}
	return true
}

// buildHierarchy turns filtered aggregate rows into the three-level point
// tree: entity points, optional category roll-ups, and kind totals in
// multi-kind mode.
func buildHierarchy(q core.ReportQuery, rows []core.Aggregate, dirs map[core.Kind]map[int64]core.EntityInfo) []core.ReportPoint {
	multiKind := len(q.Kinds) > 1

	type entityBucket struct {
		kind        core.Kind
		entityID    int64
		periodStart time.Time
	}
	entitySums := make(map[entityBucket]core.Aggregate)
	var entityOrder []entityBucket
	for _, row := range rows {
		b := entityBucket{kind: row.Kind, entityID: row.EntityID, periodStart: row.PeriodStart}
		agg, ok := entitySums[b]
		if !ok {
			agg = row
			agg.SubType = ""
			entityOrder = append(entityOrder, b)
		} else {
			agg.Amount = agg.Amount.Add(row.Amount)
		}
		entitySums[b] = agg
	}

	var points []core.ReportPoint
	for _, b := range entityOrder {
		agg := entitySums[b]
		info := dirs[b.kind][b.entityID]
		p := core.ReportPoint{
			PeriodStart: agg.PeriodStart,
			Key:         core.EntityKey(b.kind, b.entityID),
			Name:        info.Name,
			Amount:      agg.Amount,
		}
		if q.IncludeCategories && info.CategoryName != "" {
			p.CategoryName = info.CategoryName
		}
		p.ParentKey = entityParent(q, b.kind, info, multiKind)
		points = append(points, p)
	}

	if q.IncludeCategories {
		points = append(points, categoryRollups(q, points, multiKind)...)
	}
	if multiKind {
		points = append(points, kindRollups(q, points)...)
	}
	return points
}

func entityParent(q core.ReportQuery, kind core.Kind, info core.EntityInfo, multiKind bool) *core.GroupKey {
	switch {
	case multiKind && q.IncludeCategories:
		k := core.CategoryKey(kind, info.CategoryID)
		return &k
	case multiKind:
		k := core.KindKey(kind)
		return &k
	case q.IncludeCategories:
		k := core.CategoryKey(kind, info.CategoryID)
		return &k
	}
	return nil
}

// categoryRollups emits one point per (kind, category, period) summing its
// member entity points. Entities without a category land in the
// "Uncategorized" bucket (category id 0).
func categoryRollups(q core.ReportQuery, entityPoints []core.ReportPoint, multiKind bool) []core.ReportPoint {
	type catBucket struct {
		key         core.GroupKey
		periodStart time.Time
	}
	sums := make(map[catBucket]core.ReportPoint)
	var order []catBucket
	for _, p := range entityPoints {
		if p.Key.Tag != core.KeyEntity {
			continue
		}
		var catID int64
		name := "Uncategorized"
		if p.CategoryName != "" && p.ParentKey != nil && p.ParentKey.IsCategory() {
			catID = p.ParentKey.CategoryID
			name = p.CategoryName
		}
		b := catBucket{key: core.CategoryKey(p.Key.Kind, catID), periodStart: p.PeriodStart}
		cp, ok := sums[b]
		if !ok {
			cp = core.ReportPoint{
				PeriodStart:  p.PeriodStart,
				Key:          b.key,
				Name:         name,
				CategoryName: name,
			}
			if multiKind {
				parent := core.KindKey(p.Key.Kind)
				cp.ParentKey = &parent
			}
			order = append(order, b)
		}
		cp.Amount = cp.Amount.Add(p.Amount)
		sums[b] = cp
	}

	points := make([]core.ReportPoint, 0, len(order))
	for _, b := range order {
		points = append(points, sums[b])
	}
	return points
}

// kindRollups emits one total point per (kind, period). When categories were
// built for a kind the total sums its category points, otherwise its entity
// points; either way every period ends with exactly one kind total.
func kindRollups(q core.ReportQuery, points []core.ReportPoint) []core.ReportPoint {
	wantTag := core.KeyEntity
	if q.IncludeCategories {
		wantTag = core.KeyCategory
	}

	type kindBucket struct {
		kind        core.Kind
		periodStart time.Time
	}
	sums := make(map[kindBucket]core.ReportPoint)
	var order []kindBucket
	for _, p := range points {
		if p.Key.Tag != wantTag {
			continue
		}
		if !p.Key.Kind.Valid() {
			// Rows with an unmapped kind are excluded from roll-ups.
			continue
		}
		b := kindBucket{kind: p.Key.Kind, periodStart: p.PeriodStart}
		kp, ok := sums[b]
		if !ok {
			kp = core.ReportPoint{
				PeriodStart: p.PeriodStart,
				Key:         core.KindKey(b.kind),
				Name:        b.kind.DisplayName(),
			}
			order = append(order, b)
		}
		kp.Amount = kp.Amount.Add(p.Amount)
		sums[b] = kp
	}

	rollups := make([]core.ReportPoint, 0, len(order))
	for _, b := range order {
		rollups = append(rollups, sums[b])
	}
	return rollups
}

func containsKind(kinds []core.Kind, k core.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
