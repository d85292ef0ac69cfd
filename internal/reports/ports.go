// Package reports implements the financial report aggregation engine: the
// aggregate rebuild, the time-series queries and the multi-stage report
// pipeline, including the dividend net-leg path.
package reports

import (
	"context"
	"time"

	"soldi/internal/core"
)

// AggregateStore is the precomputed-sum store the engine reads from and the
// rebuild replaces.
type AggregateStore interface {
	// OwnerAggregates returns every aggregate row of the owner for the
	// requested kinds at one period granularity and date kind.
	OwnerAggregates(ctx context.Context, ownerID int64, kinds []core.Kind, period core.Period, dateKind core.DateKind) ([]core.Aggregate, error)

	// EntitySeries returns the most recent take sums of one entity at or
	// after floor (zero floor means unbounded), ascending by period start.
	EntitySeries(ctx context.Context, ownerID int64, kind core.Kind, entityID int64, period core.Period, dateKind core.DateKind, floor time.Time, take int) ([]core.SeriesPoint, error)

	// KindSeries sums across all owned entities of one kind, grouped by
	// period start, with the same window semantics as EntitySeries.
	KindSeries(ctx context.Context, ownerID int64, kind core.Kind, period core.Period, dateKind core.DateKind, floor time.Time, take int) ([]core.SeriesPoint, error)

	// ReplaceOwnerAggregates deletes every aggregate of the owner and
	// inserts rows in its place, atomically: concurrent readers see either
	// the old or the new state, never a mix.
	ReplaceOwnerAggregates(ctx context.Context, ownerID int64, rows []core.Aggregate) error
}

// Ledger is the read-only raw posting source.
type Ledger interface {
	// OwnerPostings returns every posting of the owner.
	OwnerPostings(ctx context.Context, ownerID int64) ([]core.Posting, error)

	// SecurityGroupPostings returns the owner's security postings with a
	// sub-type set whose booking date falls in [from, to).
	SecurityGroupPostings(ctx context.Context, ownerID int64, from, to time.Time) ([]core.Posting, error)
}

// Directory resolves entity ownership, names and category membership for the
// four dimension kinds.
type Directory interface {
	// OwnedEntities returns the owner's entities of one kind, keyed by id.
	OwnedEntities(ctx context.Context, ownerID int64, kind core.Kind) (map[int64]core.EntityInfo, error)

	// IsOwned reports whether the entity belongs to the owner.
	IsOwned(ctx context.Context, ownerID int64, kind core.Kind, entityID int64) (bool, error)
}
