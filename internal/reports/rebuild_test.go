package reports

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"soldi/internal/core"
)

func bankPosting(ownerID, accountID int64, booked time.Time, amount string) core.Posting {
	return core.Posting{
		OwnerID:     ownerID,
		Kind:        core.KindBank,
		AccountID:   accountID,
		BookingDate: booked,
		Amount:      decimal.RequireFromString(amount),
	}
}

// Two postings in the same month fold into one monthly row carrying their
// sum, with matching rows at every coarser granularity.
func TestRebuildAdditivity(t *testing.T) {
	ledger := &fakeLedger{postings: []core.Posting{
		bankPosting(1, 1, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), "100.50"),
		bankPosting(1, 1, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), "-30.25"),
	}}
	store := &fakeStore{}

	if err := NewRebuilder(ledger, store).Rebuild(context.Background(), 1, nil); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	rows := store.replaced[1]
	// 4 periods x 2 date kinds, one bucket each.
	if len(rows) != 8 {
		t.Fatalf("expected 8 aggregate rows, got %d", len(rows))
	}
	want := decimal.RequireFromString("70.25")
	for _, r := range rows {
		if !r.Amount.Equal(want) {
			t.Fatalf("row %+v amount = %s, want 70.25", r, r.Amount)
		}
		if r.OwnerID != 1 || r.Kind != core.KindBank || r.EntityID != 1 {
			t.Fatalf("unexpected row identity: %+v", r)
		}
	}
}

func TestRebuildTwiceIdentical(t *testing.T) {
	ledger := &fakeLedger{postings: []core.Posting{
		bankPosting(1, 1, time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), "10"),
		bankPosting(1, 2, time.Date(2024, time.February, 7, 0, 0, 0, 0, time.UTC), "20"),
		bankPosting(1, 1, time.Date(2024, time.August, 9, 0, 0, 0, 0, time.UTC), "-5"),
	}}
	store := &fakeStore{}
	r := NewRebuilder(ledger, store)

	if err := r.Rebuild(context.Background(), 1, nil); err != nil {
		t.Fatalf("first rebuild failed: %v", err)
	}
	first := store.replaced[1]
	if err := r.Rebuild(context.Background(), 1, nil); err != nil {
		t.Fatalf("second rebuild failed: %v", err)
	}
	second := store.replaced[1]

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("rebuilds differ:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestRebuildSkipsZeroAmounts(t *testing.T) {
	ledger := &fakeLedger{postings: []core.Posting{
		bankPosting(1, 1, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), "0"),
	}}
	store := &fakeStore{}

	if err := NewRebuilder(ledger, store).Rebuild(context.Background(), 1, nil); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if rows := store.replaced[1]; len(rows) != 0 {
		t.Fatalf("zero posting produced rows: %v", rows)
	}
}

// A posting referencing two entities at once aborts the whole rebuild and
// nothing is written.
func TestRebuildAbortsOnAmbiguousReference(t *testing.T) {
	bad := bankPosting(1, 1, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), "10")
	bad.ContactID = 7
	ledger := &fakeLedger{postings: []core.Posting{
		bankPosting(1, 1, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "5"),
		bad,
	}}
	store := &fakeStore{}

	err := NewRebuilder(ledger, store).Rebuild(context.Background(), 1, nil)
	if !errors.Is(err, core.ErrAmbiguousEntityRef) {
		t.Fatalf("error = %v, want ErrAmbiguousEntityRef", err)
	}
	if store.replaced != nil {
		t.Fatalf("aborted rebuild wrote rows: %v", store.replaced)
	}
}

// The valuta date falls back to the booking date, so a posting without one
// lands in the same bucket for both date kinds.
func TestRebuildValutaFallback(t *testing.T) {
	withValuta := bankPosting(1, 1, time.Date(2024, time.March, 30, 0, 0, 0, 0, time.UTC), "10")
	withValuta.ValutaDate = time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC)
	ledger := &fakeLedger{postings: []core.Posting{withValuta}}
	store := &fakeStore{}

	if err := NewRebuilder(ledger, store).Rebuild(context.Background(), 1, nil); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	var bookingMonth, valutaMonth time.Time
	for _, r := range store.replaced[1] {
		if r.Period != core.PeriodMonth {
			continue
		}
		switch r.DateKind {
		case core.DateKindBooking:
			bookingMonth = r.PeriodStart
		case core.DateKindValuta:
			valutaMonth = r.PeriodStart
		}
	}
	if !bookingMonth.Equal(month(2024, time.March)) {
		t.Fatalf("booking month = %v", bookingMonth)
	}
	if !valutaMonth.Equal(month(2024, time.April)) {
		t.Fatalf("valuta month = %v", valutaMonth)
	}
}

func TestRebuildProgress(t *testing.T) {
	var postings []core.Posting
	for i := 0; i < 250; i++ {
		postings = append(postings,
			bankPosting(1, 1, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i), "1"))
	}
	ledger := &fakeLedger{postings: postings}
	store := &fakeStore{}

	type call struct{ step, total int }
	var calls []call
	err := NewRebuilder(ledger, store).Rebuild(context.Background(), 1, func(step, total int) {
		calls = append(calls, call{step, total})
	})
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	if len(calls) < 2 {
		t.Fatalf("expected at least start and end calls, got %v", calls)
	}
	if calls[0] != (call{0, 250}) {
		t.Fatalf("first call = %v, want (0, 250)", calls[0])
	}
	if calls[len(calls)-1] != (call{250, 250}) {
		t.Fatalf("last call = %v, want (250, 250)", calls[len(calls)-1])
	}
	for i := 1; i < len(calls); i++ {
		if calls[i].step < calls[i-1].step {
			t.Fatalf("progress went backwards: %v", calls)
		}
	}
}
