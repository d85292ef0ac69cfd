package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"soldi/internal/amqp"
	"soldi/internal/core"
	"soldi/internal/reports"
)

// gateLedger blocks OwnerPostings until released, counting calls.
type gateLedger struct {
	gate  chan struct{}
	calls int64
}

func (l *gateLedger) OwnerPostings(ctx context.Context, ownerID int64) ([]core.Posting, error) {
	atomic.AddInt64(&l.calls, 1)
	select {
	case <-l.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

func (l *gateLedger) SecurityGroupPostings(context.Context, int64, time.Time, time.Time) ([]core.Posting, error) {
	return nil, nil
}

type countingStore struct {
	replaces int64
}

func (s *countingStore) OwnerAggregates(context.Context, int64, []core.Kind, core.Period, core.DateKind) ([]core.Aggregate, error) {
	return nil, nil
}

func (s *countingStore) EntitySeries(context.Context, int64, core.Kind, int64, core.Period, core.DateKind, time.Time, int) ([]core.SeriesPoint, error) {
	return nil, nil
}

func (s *countingStore) KindSeries(context.Context, int64, core.Kind, core.Period, core.DateKind, time.Time, int) ([]core.SeriesPoint, error) {
	return nil, nil
}

func (s *countingStore) ReplaceOwnerAggregates(context.Context, int64, []core.Aggregate) error {
	atomic.AddInt64(&s.replaces, 1)
	return nil
}

// Concurrent requests for one owner collapse into a single rebuild.
func TestHandleRebuildRequestDeduplicates(t *testing.T) {
	ledger := &gateLedger{gate: make(chan struct{})}
	store := &countingStore{}
	w := NewRebuildWorker(reports.NewRebuilder(ledger, store))

	const requests = 5
	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = w.HandleRebuildRequest(context.Background(), amqp.NewRebuildRequestMessage(1, "test"))
		}(i)
	}

	// Let every goroutine reach the singleflight gate, then release.
	time.Sleep(50 * time.Millisecond)
	close(ledger.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&store.replaces); got != 1 {
		t.Fatalf("expected 1 shared rebuild, got %d", got)
	}
	if got := atomic.LoadInt64(&ledger.calls); got != 1 {
		t.Fatalf("expected 1 ledger read, got %d", got)
	}
}

func TestHandleRebuildRequestDifferentOwners(t *testing.T) {
	ledger := &gateLedger{gate: make(chan struct{})}
	close(ledger.gate)
	store := &countingStore{}
	w := NewRebuildWorker(reports.NewRebuilder(ledger, store))

	if err := w.HandleRebuildRequest(context.Background(), amqp.NewRebuildRequestMessage(1, "test")); err != nil {
		t.Fatalf("owner 1: %v", err)
	}
	if err := w.HandleRebuildRequest(context.Background(), amqp.NewRebuildRequestMessage(2, "test")); err != nil {
		t.Fatalf("owner 2: %v", err)
	}
	if got := atomic.LoadInt64(&store.replaces); got != 2 {
		t.Fatalf("expected 2 rebuilds, got %d", got)
	}
}
