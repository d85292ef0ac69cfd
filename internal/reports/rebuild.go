package reports

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"soldi/internal/core"
)

// ProgressFunc receives coarse rebuild progress. It is advisory only: the
// rebuild keeps running regardless of what the callback does, and
// cancellation is the caller's context.
type ProgressFunc func(step, total int)

// progressBatch is how many postings are folded between progress callbacks.
const progressBatch = 100

// Rebuilder recomputes an owner's aggregates from the raw ledger.
type Rebuilder struct {
	ledger Ledger
	store  AggregateStore
}

func NewRebuilder(ledger Ledger, store AggregateStore) *Rebuilder {
	return &Rebuilder{ledger: ledger, store: store}
}

// aggregateKey is the full tuple an aggregate row is unique under.
type aggregateKey struct {
	kind        core.Kind
	entityID    int64
	period      core.Period
	periodStart time.Time
	dateKind    core.DateKind
	subType     core.SecuritySubType
}

// Rebuild discards and recomputes every aggregate of the owner across all
// four period granularities and both date kinds. Sums are accumulated into a
// local map keyed by the full tuple and flushed once, so the store swap is a
// single transaction. A posting violating the one-entity-reference rule
// aborts the rebuild; zero amounts are skipped. Re-running produces
// identical rows.
func (r *Rebuilder) Rebuild(ctx context.Context, ownerID int64, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int, int) {}
	}

	postings, err := r.ledger.OwnerPostings(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load owner postings: %w", err)
	}

	total := len(postings)
	progress(0, total)

	sums := make(map[aggregateKey]core.Aggregate)
	for i, p := range postings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Amount.IsZero() {
			continue
		}
		entityID, err := p.EntityRef()
		if err != nil {
			return fmt.Errorf("posting %d: %w", p.ID, err)
		}
		for _, dk := range []core.DateKind{core.DateKindBooking, core.DateKindValuta} {
			d := p.DateFor(dk)
			for _, period := range core.AllPeriods() {
				key := aggregateKey{
					kind:        p.Kind,
					entityID:    entityID,
					period:      period,
					periodStart: period.Start(d),
					dateKind:    dk,
					subType:     p.SubType,
				}
				agg, ok := sums[key]
				if !ok {
					agg = core.Aggregate{
						OwnerID:     ownerID,
						Kind:        key.kind,
						EntityID:    key.entityID,
						Period:      key.period,
						PeriodStart: key.periodStart,
						DateKind:    key.dateKind,
						SubType:     key.subType,
					}
				}
				agg.Amount = agg.Amount.Add(p.Amount)
				sums[key] = agg
			}
		}
		if (i+1)%progressBatch == 0 {
			progress(i+1, total)
		}
	}

	rows := make([]core.Aggregate, 0, len(sums))
	for _, agg := range sums {
		rows = append(rows, agg)
	}
	// Deterministic insert order keeps consecutive rebuilds byte-identical.
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if !a.PeriodStart.Equal(b.PeriodStart) {
			return a.PeriodStart.Before(b.PeriodStart)
		}
		if a.DateKind != b.DateKind {
			return a.DateKind < b.DateKind
		}
		return a.SubType < b.SubType
	})

	if err := r.store.ReplaceOwnerAggregates(ctx, ownerID, rows); err != nil {
		return fmt.Errorf("replace owner aggregates: %w", err)
	}

	slog.InfoContext(ctx, "Aggregate rebuild completed",
		"owner_id", ownerID,
		"postings", total,
		"aggregates", len(rows))

	progress(total, total)
	return nil
}
