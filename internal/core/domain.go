package core

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the dimension a posting or aggregate belongs to: the four
// categories of ledger counterpart a household ledger can reference.
type Kind string

const (
	KindBank        Kind = "bank"
	KindContact     Kind = "contact"
	KindSavingsPlan Kind = "savings_plan"
	KindSecurity    Kind = "security"
)

// AllKinds returns the four dimension kinds in canonical order.
func AllKinds() []Kind {
	return []Kind{KindBank, KindContact, KindSavingsPlan, KindSecurity}
}

func (k Kind) Valid() bool {
	switch k {
	case KindBank, KindContact, KindSavingsPlan, KindSecurity:
		return true
	}
	return false
}

// DisplayName returns the label used for kind-level roll-up points.
func (k Kind) DisplayName() string {
	switch k {
	case KindBank:
		return "Accounts"
	case KindContact:
		return "Contacts"
	case KindSavingsPlan:
		return "Savings plans"
	case KindSecurity:
		return "Securities"
	}
	return string(k)
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", errors.New("unknown kind: " + s)
	}
	return k, nil
}

// DateKind selects which posting date an aggregate is bucketed by.
type DateKind string

const (
	DateKindBooking DateKind = "booking"
	DateKindValuta  DateKind = "valuta"
)

func (d DateKind) Valid() bool {
	return d == DateKindBooking || d == DateKindValuta
}

// SecuritySubType classifies a security posting leg. Only Dividend, Fee and
// Tax participate in dividend netting; the rest pass through untouched.
type SecuritySubType string

const (
	SubTypeDividend SecuritySubType = "dividend"
	SubTypeFee      SecuritySubType = "fee"
	SubTypeTax      SecuritySubType = "tax"
	SubTypeBuy      SecuritySubType = "buy"
	SubTypeSell     SecuritySubType = "sell"
	SubTypeInterest SecuritySubType = "interest"
)

var (
	ErrNoEntityRef        = errors.New("posting has no entity reference")
	ErrAmbiguousEntityRef = errors.New("posting has more than one entity reference")
	ErrKindMismatch       = errors.New("posting entity reference does not match kind")
)

// Posting is one signed ledger entry. Exactly one of the four entity
// references must be set, and it must match Kind.
type Posting struct {
	ID            int64
	OwnerID       int64
	Kind          Kind
	AccountID     int64
	ContactID     int64
	SavingsPlanID int64
	SecurityID    int64
	BookingDate   time.Time
	ValutaDate    time.Time
	Amount        decimal.Decimal
	SubType       SecuritySubType
	GroupID       uuid.NullUUID
	Quantity      decimal.NullDecimal
}

// EntityRef returns the single populated entity reference. It fails when the
// posting references no entity, more than one, or one that does not match
// its Kind; rebuilds treat any of these as fatal consistency errors.
func (p Posting) EntityRef() (int64, error) {
	var id int64
	var set int
	refs := []struct {
		kind Kind
		id   int64
	}{
		{KindBank, p.AccountID},
		{KindContact, p.ContactID},
		{KindSavingsPlan, p.SavingsPlanID},
		{KindSecurity, p.SecurityID},
	}
	for _, r := range refs {
		if r.id == 0 {
			continue
		}
		set++
		if r.kind == p.Kind {
			id = r.id
		}
	}
	switch {
	case set == 0:
		return 0, ErrNoEntityRef
	case set > 1:
		return 0, ErrAmbiguousEntityRef
	case id == 0:
		return 0, ErrKindMismatch
	}
	return id, nil
}

// DateFor returns the posting date selected by the date kind. A posting
// without an explicit valuta date falls back to its booking date.
func (p Posting) DateFor(dk DateKind) time.Time {
	if dk == DateKindValuta && !p.ValutaDate.IsZero() {
		return p.ValutaDate
	}
	return p.BookingDate
}

// Aggregate is one precomputed period sum. The tuple (Kind, EntityID,
// Period, PeriodStart, DateKind, SubType) is unique per owner; Amount is the
// running signed sum of every posting falling into that bucket.
type Aggregate struct {
	OwnerID     int64
	Kind        Kind
	EntityID    int64
	Period      Period
	PeriodStart time.Time
	DateKind    DateKind
	SubType     SecuritySubType
	Amount      decimal.Decimal
}

// EntityInfo is the directory entry for one owned entity. CategoryID 0
// means uncategorized.
type EntityInfo struct {
	ID           int64
	Name         string
	CategoryID   int64
	CategoryName string
}
