package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"soldi/internal/amqp"
	"soldi/internal/reports"
)

// RebuildWorker consumes rebuild requests and recomputes owner aggregates.
// Concurrent requests for the same owner are collapsed into one rebuild via
// singleflight; each caller still observes the shared result.
type RebuildWorker struct {
	rebuilder *reports.Rebuilder
	group     singleflight.Group
}

func NewRebuildWorker(rebuilder *reports.Rebuilder) *RebuildWorker {
	return &RebuildWorker{rebuilder: rebuilder}
}

// HandleRebuildRequest processes a single rebuild request from AMQP.
func (w *RebuildWorker) HandleRebuildRequest(ctx context.Context, msg *amqp.RebuildRequestMessage) error {
	slog.InfoContext(ctx, "Processing rebuild request",
		"owner_id", msg.OwnerID,
		"reason", msg.Reason,
		"requested_at", msg.RequestedAt)

	started := time.Now()
	key := strconv.FormatInt(msg.OwnerID, 10)
	_, err, shared := w.group.Do(key, func() (interface{}, error) {
		return nil, w.rebuilder.Rebuild(ctx, msg.OwnerID, w.logProgress(ctx, msg.OwnerID))
	})
	if err != nil {
		return fmt.Errorf("rebuild owner %d: %w", msg.OwnerID, err)
	}

	slog.InfoContext(ctx, "Rebuild request completed",
		"owner_id", msg.OwnerID,
		"shared", shared,
		"duration_ms", time.Since(started).Milliseconds())
	return nil
}

// logProgress reports rebuild progress at roughly 10% steps.
func (w *RebuildWorker) logProgress(ctx context.Context, ownerID int64) reports.ProgressFunc {
	lastDecile := -1
	return func(step, total int) {
		if total == 0 {
			return
		}
		decile := step * 10 / total
		if decile == lastDecile {
			return
		}
		lastDecile = decile
		slog.InfoContext(ctx, "Rebuild progress",
			"owner_id", ownerID,
			"step", step,
			"total", total)
	}
}
