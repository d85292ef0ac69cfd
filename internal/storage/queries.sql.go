package storage

import (
	"context"
	"database/sql"
)

const createCategory = `
INSERT INTO categories (owner_id, kind, name)
VALUES (?, ?, ?)
RETURNING id, owner_id, kind, name
`

type CreateCategoryParams struct {
	OwnerID int64
	Kind    string
	Name    string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.OwnerID, arg.Kind, arg.Name)
	var c Category
	err := row.Scan(&c.ID, &c.OwnerID, &c.Kind, &c.Name)
	return c, err
}

const createEntity = `
INSERT INTO entities (owner_id, kind, name, category_id)
VALUES (?, ?, ?, ?)
RETURNING id, owner_id, kind, name, category_id
`

type CreateEntityParams struct {
	OwnerID    int64
	Kind       string
	Name       string
	CategoryID sql.NullInt64
}

func (q *Queries) CreateEntity(ctx context.Context, arg CreateEntityParams) (Entity, error) {
	row := q.db.QueryRowContext(ctx, createEntity, arg.OwnerID, arg.Kind, arg.Name, arg.CategoryID)
	var e Entity
	err := row.Scan(&e.ID, &e.OwnerID, &e.Kind, &e.Name, &e.CategoryID)
	return e, err
}

const createPosting = `
INSERT INTO postings (
    owner_id, kind, account_id, contact_id, savings_plan_id, security_id,
    booking_date, valuta_date, amount, sub_type, group_id, quantity
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreatePostingParams struct {
	OwnerID       int64
	Kind          string
	AccountID     sql.NullInt64
	ContactID     sql.NullInt64
	SavingsPlanID sql.NullInt64
	SecurityID    sql.NullInt64
	BookingDate   string
	ValutaDate    sql.NullString
	Amount        string
	SubType       string
	GroupID       sql.NullString
	Quantity      sql.NullString
}

func (q *Queries) CreatePosting(ctx context.Context, arg CreatePostingParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createPosting,
		arg.OwnerID,
		arg.Kind,
		arg.AccountID,
		arg.ContactID,
		arg.SavingsPlanID,
		arg.SecurityID,
		arg.BookingDate,
		arg.ValutaDate,
		arg.Amount,
		arg.SubType,
		arg.GroupID,
		arg.Quantity,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getPostingsByOwner = `
SELECT id, owner_id, kind, account_id, contact_id, savings_plan_id, security_id,
       booking_date, valuta_date, amount, sub_type, group_id, quantity
FROM postings
WHERE owner_id = ?
ORDER BY booking_date, id
`

func (q *Queries) GetPostingsByOwner(ctx context.Context, ownerID int64) ([]PostingRow, error) {
	rows, err := q.db.QueryContext(ctx, getPostingsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PostingRow
	for rows.Next() {
		var p PostingRow
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Kind,
			&p.AccountID,
			&p.ContactID,
			&p.SavingsPlanID,
			&p.SecurityID,
			&p.BookingDate,
			&p.ValutaDate,
			&p.Amount,
			&p.SubType,
			&p.GroupID,
			&p.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getSecurityGroupPostings = `
SELECT id, owner_id, kind, account_id, contact_id, savings_plan_id, security_id,
       booking_date, valuta_date, amount, sub_type, group_id, quantity
FROM postings
WHERE owner_id = ?
  AND kind = 'security'
  AND sub_type <> ''
  AND group_id IS NOT NULL
  AND booking_date >= ?
  AND booking_date < ?
ORDER BY booking_date, id
`

type GetSecurityGroupPostingsParams struct {
	OwnerID int64
	From    string
	To      string
}

func (q *Queries) GetSecurityGroupPostings(ctx context.Context, arg GetSecurityGroupPostingsParams) ([]PostingRow, error) {
	rows, err := q.db.QueryContext(ctx, getSecurityGroupPostings, arg.OwnerID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PostingRow
	for rows.Next() {
		var p PostingRow
		if err := rows.Scan(
			&p.ID,
			&p.OwnerID,
			&p.Kind,
			&p.AccountID,
			&p.ContactID,
			&p.SavingsPlanID,
			&p.SecurityID,
			&p.BookingDate,
			&p.ValutaDate,
			&p.Amount,
			&p.SubType,
			&p.GroupID,
			&p.Quantity,
		); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getEntitiesByOwnerAndKind = `
SELECT e.id, e.name, e.category_id, c.name AS category_name
FROM entities e
LEFT JOIN categories c ON c.id = e.category_id
WHERE e.owner_id = ? AND e.kind = ?
ORDER BY e.name
`

type GetEntitiesByOwnerAndKindParams struct {
	OwnerID int64
	Kind    string
}

type GetEntitiesByOwnerAndKindRow struct {
	ID           int64
	Name         string
	CategoryID   sql.NullInt64
	CategoryName sql.NullString
}

func (q *Queries) GetEntitiesByOwnerAndKind(ctx context.Context, arg GetEntitiesByOwnerAndKindParams) ([]GetEntitiesByOwnerAndKindRow, error) {
	rows, err := q.db.QueryContext(ctx, getEntitiesByOwnerAndKind, arg.OwnerID, arg.Kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetEntitiesByOwnerAndKindRow
	for rows.Next() {
		var e GetEntitiesByOwnerAndKindRow
		if err := rows.Scan(&e.ID, &e.Name, &e.CategoryID, &e.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const countEntityOwnership = `
SELECT COUNT(*)
FROM entities
WHERE owner_id = ? AND kind = ? AND id = ?
`

type CountEntityOwnershipParams struct {
	OwnerID int64
	Kind    string
	ID      int64
}

func (q *Queries) CountEntityOwnership(ctx context.Context, arg CountEntityOwnershipParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countEntityOwnership, arg.OwnerID, arg.Kind, arg.ID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getAggregatesByOwner = `
SELECT owner_id, kind, entity_id, period, period_start, date_kind, sub_type, amount
FROM aggregates
WHERE owner_id = ? AND period = ? AND date_kind = ?
ORDER BY kind, entity_id, period_start
`

type GetAggregatesByOwnerParams struct {
	OwnerID  int64
	Period   string
	DateKind string
}

func (q *Queries) GetAggregatesByOwner(ctx context.Context, arg GetAggregatesByOwnerParams) ([]AggregateRow, error) {
	rows, err := q.db.QueryContext(ctx, getAggregatesByOwner, arg.OwnerID, arg.Period, arg.DateKind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AggregateRow
	for rows.Next() {
		var a AggregateRow
		if err := rows.Scan(
			&a.OwnerID,
			&a.Kind,
			&a.EntityID,
			&a.Period,
			&a.PeriodStart,
			&a.DateKind,
			&a.SubType,
			&a.Amount,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const getEntitySeries = `
SELECT period_start, amount
FROM aggregates
WHERE owner_id = ? AND kind = ? AND entity_id = ?
  AND period = ? AND date_kind = ?
  AND period_start >= ?
ORDER BY period_start
`

type GetEntitySeriesParams struct {
	OwnerID  int64
	Kind     string
	EntityID int64
	Period   string
	DateKind string
	Floor    string
}

// SeriesRow is one (period, amount) pair. Amounts stay decimal strings so
// summation happens losslessly in Go.
type SeriesRow struct {
	PeriodStart string
	Amount      string
}

func (q *Queries) GetEntitySeries(ctx context.Context, arg GetEntitySeriesParams) ([]SeriesRow, error) {
	rows, err := q.db.QueryContext(ctx, getEntitySeries,
		arg.OwnerID, arg.Kind, arg.EntityID, arg.Period, arg.DateKind, arg.Floor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SeriesRow
	for rows.Next() {
		var r SeriesRow
		if err := rows.Scan(&r.PeriodStart, &r.Amount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getKindSeries = `
SELECT period_start, amount
FROM aggregates
WHERE owner_id = ? AND kind = ?
  AND period = ? AND date_kind = ?
  AND period_start >= ?
ORDER BY period_start
`

type GetKindSeriesParams struct {
	OwnerID  int64
	Kind     string
	Period   string
	DateKind string
	Floor    string
}

func (q *Queries) GetKindSeries(ctx context.Context, arg GetKindSeriesParams) ([]SeriesRow, error) {
	rows, err := q.db.QueryContext(ctx, getKindSeries,
		arg.OwnerID, arg.Kind, arg.Period, arg.DateKind, arg.Floor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SeriesRow
	for rows.Next() {
		var r SeriesRow
		if err := rows.Scan(&r.PeriodStart, &r.Amount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const deleteAggregatesByOwner = `
DELETE FROM aggregates WHERE owner_id = ?
`

func (q *Queries) DeleteAggregatesByOwner(ctx context.Context, ownerID int64) error {
	_, err := q.db.ExecContext(ctx, deleteAggregatesByOwner, ownerID)
	return err
}

const insertAggregate = `
INSERT INTO aggregates (owner_id, kind, entity_id, period, period_start, date_kind, sub_type, amount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertAggregateParams struct {
	OwnerID     int64
	Kind        string
	EntityID    int64
	Period      string
	PeriodStart string
	DateKind    string
	SubType     string
	Amount      string
}

func (q *Queries) InsertAggregate(ctx context.Context, arg InsertAggregateParams) error {
	_, err := q.db.ExecContext(ctx, insertAggregate,
		arg.OwnerID,
		arg.Kind,
		arg.EntityID,
		arg.Period,
		arg.PeriodStart,
		arg.DateKind,
		arg.SubType,
		arg.Amount,
	)
	return err
}
