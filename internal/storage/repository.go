package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"soldi/internal/core"

	_ "modernc.org/sqlite"
)

// dateLayout is the canonical TEXT form of every date column. Lexicographic
// order equals chronological order, so range scans work on plain comparisons.
const dateLayout = "2006-01-02"

// SQLiteRepository backs the aggregate store, the ledger and the entity
// directory with a single SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateCategory registers a category for one owner and kind.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, ownerID int64, kind core.Kind, name string) (int64, error) {
	c, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		OwnerID: ownerID,
		Kind:    string(kind),
		Name:    name,
	})
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return c.ID, nil
}

// CreateEntity registers an entity for one owner and kind. A zero categoryID
// leaves the entity uncategorized.
func (r *SQLiteRepository) CreateEntity(ctx context.Context, ownerID int64, kind core.Kind, name string, categoryID int64) (int64, error) {
	var cat sql.NullInt64
	if categoryID != 0 {
		cat = sql.NullInt64{Int64: categoryID, Valid: true}
	}
	e, err := r.queries.CreateEntity(ctx, CreateEntityParams{
		OwnerID:    ownerID,
		Kind:       string(kind),
		Name:       name,
		CategoryID: cat,
	})
	if err != nil {
		return 0, fmt.Errorf("create entity: %w", err)
	}
	return e.ID, nil
}

// AddPosting appends one ledger entry. The entity reference is validated
// before the row is written.
func (r *SQLiteRepository) AddPosting(ctx context.Context, p core.Posting) (int64, error) {
	if _, err := p.EntityRef(); err != nil {
		return 0, fmt.Errorf("validate posting: %w", err)
	}

	arg := CreatePostingParams{
		OwnerID:       p.OwnerID,
		Kind:          string(p.Kind),
		AccountID:     nullID(p.AccountID),
		ContactID:     nullID(p.ContactID),
		SavingsPlanID: nullID(p.SavingsPlanID),
		SecurityID:    nullID(p.SecurityID),
		BookingDate:   p.BookingDate.Format(dateLayout),
		Amount:        p.Amount.String(),
		SubType:       string(p.SubType),
	}
	if !p.ValutaDate.IsZero() {
		arg.ValutaDate = sql.NullString{String: p.ValutaDate.Format(dateLayout), Valid: true}
	}
	if p.GroupID.Valid {
		arg.GroupID = sql.NullString{String: p.GroupID.UUID.String(), Valid: true}
	}
	if p.Quantity.Valid {
		arg.Quantity = sql.NullString{String: p.Quantity.Decimal.String(), Valid: true}
	}

	id, err := r.queries.CreatePosting(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("create posting: %w", err)
	}
	return id, nil
}

// OwnerPostings implements reports.Ledger.
func (r *SQLiteRepository) OwnerPostings(ctx context.Context, ownerID int64) ([]core.Posting, error) {
	rows, err := r.queries.GetPostingsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get postings by owner: %w", err)
	}
	return decodePostings(rows)
}

// SecurityGroupPostings implements reports.Ledger.
func (r *SQLiteRepository) SecurityGroupPostings(ctx context.Context, ownerID int64, from, to time.Time) ([]core.Posting, error) {
	rows, err := r.queries.GetSecurityGroupPostings(ctx, GetSecurityGroupPostingsParams{
		OwnerID: ownerID,
		From:    from.Format(dateLayout),
		To:      to.Format(dateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("get security group postings: %w", err)
	}
	return decodePostings(rows)
}

// OwnedEntities implements reports.Directory.
func (r *SQLiteRepository) OwnedEntities(ctx context.Context, ownerID int64, kind core.Kind) (map[int64]core.EntityInfo, error) {
	rows, err := r.queries.GetEntitiesByOwnerAndKind(ctx, GetEntitiesByOwnerAndKindParams{
		OwnerID: ownerID,
		Kind:    string(kind),
	})
	if err != nil {
		return nil, fmt.Errorf("get entities by owner and kind: %w", err)
	}

	out := make(map[int64]core.EntityInfo, len(rows))
	for _, row := range rows {
		info := core.EntityInfo{ID: row.ID, Name: row.Name}
		if row.CategoryID.Valid {
			info.CategoryID = row.CategoryID.Int64
			info.CategoryName = row.CategoryName.String
		}
		out[row.ID] = info
	}
	return out, nil
}

// IsOwned implements reports.Directory.
func (r *SQLiteRepository) IsOwned(ctx context.Context, ownerID int64, kind core.Kind, entityID int64) (bool, error) {
	count, err := r.queries.CountEntityOwnership(ctx, CountEntityOwnershipParams{
		OwnerID: ownerID,
		Kind:    string(kind),
		ID:      entityID,
	})
	if err != nil {
		return false, fmt.Errorf("count entity ownership: %w", err)
	}
	return count > 0, nil
}

// OwnerAggregates implements reports.AggregateStore.
func (r *SQLiteRepository) OwnerAggregates(ctx context.Context, ownerID int64, kinds []core.Kind, period core.Period, dateKind core.DateKind) ([]core.Aggregate, error) {
	rows, err := r.queries.GetAggregatesByOwner(ctx, GetAggregatesByOwnerParams{
		OwnerID:  ownerID,
		Period:   string(period),
		DateKind: string(dateKind),
	})
	if err != nil {
		return nil, fmt.Errorf("get aggregates by owner: %w", err)
	}

	want := make(map[core.Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var out []core.Aggregate
	for _, row := range rows {
		if !want[core.Kind(row.Kind)] {
			continue
		}
		agg, err := decodeAggregate(row)
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

// EntitySeries implements reports.AggregateStore.
func (r *SQLiteRepository) EntitySeries(ctx context.Context, ownerID int64, kind core.Kind, entityID int64, period core.Period, dateKind core.DateKind, floor time.Time, take int) ([]core.SeriesPoint, error) {
	rows, err := r.queries.GetEntitySeries(ctx, GetEntitySeriesParams{
		OwnerID:  ownerID,
		Kind:     string(kind),
		EntityID: entityID,
		Period:   string(period),
		DateKind: string(dateKind),
		Floor:    floorString(floor),
	})
	if err != nil {
		return nil, fmt.Errorf("get entity series: %w", err)
	}
	return sumSeries(rows, take)
}

// KindSeries implements reports.AggregateStore.
func (r *SQLiteRepository) KindSeries(ctx context.Context, ownerID int64, kind core.Kind, period core.Period, dateKind core.DateKind, floor time.Time, take int) ([]core.SeriesPoint, error) {
	rows, err := r.queries.GetKindSeries(ctx, GetKindSeriesParams{
		OwnerID:  ownerID,
		Kind:     string(kind),
		Period:   string(period),
		DateKind: string(dateKind),
		Floor:    floorString(floor),
	})
	if err != nil {
		return nil, fmt.Errorf("get kind series: %w", err)
	}
	return sumSeries(rows, take)
}

// ReplaceOwnerAggregates implements reports.AggregateStore. Delete and
// insert run in one transaction so readers never observe a half-replaced
// state.
func (r *SQLiteRepository) ReplaceOwnerAggregates(ctx context.Context, ownerID int64, rows []core.Aggregate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	if err := qtx.DeleteAggregatesByOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("delete owner aggregates: %w", err)
	}
	for _, agg := range rows {
		err := qtx.InsertAggregate(ctx, InsertAggregateParams{
			OwnerID:     agg.OwnerID,
			Kind:        string(agg.Kind),
			EntityID:    agg.EntityID,
			Period:      string(agg.Period),
			PeriodStart: agg.PeriodStart.Format(dateLayout),
			DateKind:    string(agg.DateKind),
			SubType:     string(agg.SubType),
			Amount:      agg.Amount.String(),
		})
		if err != nil {
			return fmt.Errorf("insert aggregate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace transaction: %w", err)
	}

	slog.InfoContext(ctx, "Owner aggregates replaced",
		"owner_id", ownerID,
		"rows", len(rows))
	return nil
}

func nullID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func floorString(floor time.Time) string {
	if floor.IsZero() {
		// Sorts before any real date.
		return ""
	}
	return floor.Format(dateLayout)
}

func decodePostings(rows []PostingRow) ([]core.Posting, error) {
	out := make([]core.Posting, 0, len(rows))
	for _, row := range rows {
		p := core.Posting{
			ID:            row.ID,
			OwnerID:       row.OwnerID,
			Kind:          core.Kind(row.Kind),
			AccountID:     row.AccountID.Int64,
			ContactID:     row.ContactID.Int64,
			SavingsPlanID: row.SavingsPlanID.Int64,
			SecurityID:    row.SecurityID.Int64,
			SubType:       core.SecuritySubType(row.SubType),
		}

		booked, err := time.ParseInLocation(dateLayout, row.BookingDate, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("posting %d: parse booking date: %w", row.ID, err)
		}
		p.BookingDate = booked

		if row.ValutaDate.Valid {
			valuta, err := time.ParseInLocation(dateLayout, row.ValutaDate.String, time.UTC)
			if err != nil {
				return nil, fmt.Errorf("posting %d: parse valuta date: %w", row.ID, err)
			}
			p.ValutaDate = valuta
		}

		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("posting %d: parse amount: %w", row.ID, err)
		}
		p.Amount = amount

		if row.GroupID.Valid {
			group, err := uuid.Parse(row.GroupID.String)
			if err != nil {
				return nil, fmt.Errorf("posting %d: parse group id: %w", row.ID, err)
			}
			p.GroupID = uuid.NullUUID{UUID: group, Valid: true}
		}

		if row.Quantity.Valid {
			qty, err := decimal.NewFromString(row.Quantity.String)
			if err != nil {
				return nil, fmt.Errorf("posting %d: parse quantity: %w", row.ID, err)
			}
			p.Quantity = decimal.NullDecimal{Decimal: qty, Valid: true}
		}

		out = append(out, p)
	}
	return out, nil
}

func decodeAggregate(row AggregateRow) (core.Aggregate, error) {
	start, err := time.ParseInLocation(dateLayout, row.PeriodStart, time.UTC)
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("aggregate: parse period start: %w", err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Aggregate{}, fmt.Errorf("aggregate: parse amount: %w", err)
	}
	return core.Aggregate{
		OwnerID:     row.OwnerID,
		Kind:        core.Kind(row.Kind),
		EntityID:    row.EntityID,
		Period:      core.Period(row.Period),
		PeriodStart: start,
		DateKind:    core.DateKind(row.DateKind),
		SubType:     core.SecuritySubType(row.SubType),
		Amount:      amount,
	}, nil
}

// sumSeries folds raw (period, amount) rows into per-period decimal sums and
// keeps the most recent take periods, ascending. Rows arrive ordered by
// period start.
func sumSeries(rows []SeriesRow, take int) ([]core.SeriesPoint, error) {
	var points []core.SeriesPoint
	for _, row := range rows {
		start, err := time.ParseInLocation(dateLayout, row.PeriodStart, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("series: parse period start: %w", err)
		}
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("series: parse amount: %w", err)
		}
		if n := len(points); n > 0 && points[n-1].PeriodStart.Equal(start) {
			points[n-1].Amount = points[n-1].Amount.Add(amount)
			continue
		}
		points = append(points, core.SeriesPoint{PeriodStart: start, Amount: amount})
	}
	if take > 0 && len(points) > take {
		points = points[len(points)-take:]
	}
	return points, nil
}
