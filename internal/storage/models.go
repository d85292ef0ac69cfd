package storage

import (
	"database/sql"
)

type Category struct {
	ID      int64
	OwnerID int64
	Kind    string
	Name    string
}

type Entity struct {
	ID         int64
	OwnerID    int64
	Kind       string
	Name       string
	CategoryID sql.NullInt64
}

type PostingRow struct {
	ID            int64
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

type AggregateRow struct {
	OwnerID     int64
	Kind        string
	EntityID    int64
	Period      string
	PeriodStart string
	DateKind    string
	SubType     string
	Amount      string
}
