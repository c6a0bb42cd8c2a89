package reconciler

import (
	"context"
	"log"
	"time"

	"eventflow/bugsink"
	"eventflow/changes"
	"eventflow/metrics"
	"eventflow/objects"
	"eventflow/queue"
)

// Store is the slice of the repository the reconciliation worker needs.
type Store interface {
	ListUnprocessedChanges(olderThan time.Time, limit int) ([]*objects.ChangeLogEntry, error)
	ClaimChange(id, processedBy string) (bool, error)
	HasActiveReminders(scheduleID string) (bool, error)
}

// Stats summarizes one reconciliation pass.
type Stats struct {
	Scanned        int
	Executed       int
	AlreadyClaimed int
	Errors         int
}

// Worker is the server-side safety net. It picks up change log entries the
// client never applied (closed tab, crash, network loss), replays their plans
// and claims them. The dwell delay keeps it from racing changes whose grace
// windows are still open.
type Worker struct {
	store    Store
	registry *changes.Registry
	exec     queue.Applier
	dwell    time.Duration
	limit    int
}

func NewWorker(store Store, registry *changes.Registry, exec queue.Applier, dwell time.Duration, limit int) *Worker {
	return &Worker{
		store:    store,
		registry: registry,
		exec:     exec,
		dwell:    dwell,
		limit:    limit,
	}
}

// RunOnce processes one batch of abandoned changes. Errors on one entry are
// reported and do not stop the rest of the batch.
func (w *Worker) RunOnce(now time.Time) (*Stats, error) {
	stats := &Stats{}
	cutoff := now.Add(-w.dwell)

	entries, err := w.store.ListUnprocessedChanges(cutoff, w.limit)
	if err != nil {
		log.Printf("[RECONCILER] Error listing unprocessed changes: %v", err)
		bugsink.CaptureError(err, map[string]interface{}{"component": "reconciler"})
		metrics.RecordReconcileRun(false)
		return stats, err
	}
	stats.Scanned = len(entries)
	if len(entries) == 0 {
		metrics.RecordReconcileRun(true)
		return stats, nil
	}
	log.Printf("[RECONCILER] Processing %d abandoned changes", len(entries))

	for _, entry := range entries {
		w.process(entry, stats)
	}

	log.Printf("[RECONCILER] Pass complete: %d scanned, %d executed, %d already claimed, %d errors",
		stats.Scanned, stats.Executed, stats.AlreadyClaimed, stats.Errors)
	metrics.RecordReconcileRun(stats.Errors == 0)
	return stats, nil
}

func (w *Worker) process(entry *objects.ChangeLogEntry, stats *Stats) {
	log.Printf("[RECONCILER] Reconciling change %s (%s, created %s)",
		entry.ID, entry.ChangeKind, entry.CreatedAt.Format(time.RFC3339))

	// A create whose reminders already exist means the client got through
	// after all. Claim it without redoing the work.
	if entry.ChangeKind == objects.ChangeKindCreate && entry.NewData != nil {
		if !entry.NewData.SendReminder {
			w.claim(entry, stats, "skipped")
			return
		}
		exists, err := w.store.HasActiveReminders(entry.NewData.ID)
		if err != nil {
			w.fail(entry, stats, err)
			return
		}
		if exists {
			w.claim(entry, stats, "skipped")
			return
		}
	}

	cmd := changes.FromLogEntry(entry)
	plan, err := w.registry.Plan(cmd)
	if err != nil {
		w.fail(entry, stats, err)
		return
	}
	if err := w.exec.Apply(plan); err != nil {
		w.fail(entry, stats, err)
		return
	}

	w.claim(entry, stats, "executed")
}

// claim settles the entry. Losing the claim means the client finished in
// parallel; the dedup index already kept the message rows from doubling, so
// the loss is discarded silently.
func (w *Worker) claim(entry *objects.ChangeLogEntry, stats *Stats, outcome string) {
	claimed, err := w.store.ClaimChange(entry.ID, objects.ProcessedByServerCron)
	if err != nil {
		w.fail(entry, stats, err)
		return
	}
	if !claimed {
		stats.AlreadyClaimed++
		metrics.RecordReconcileEntry(entry.ChangeKind, "already_claimed")
		return
	}
	stats.Executed++
	metrics.RecordReconcileEntry(entry.ChangeKind, outcome)
}

func (w *Worker) fail(entry *objects.ChangeLogEntry, stats *Stats, err error) {
	log.Printf("[RECONCILER] Error reconciling change %s: %v", entry.ID, err)
	bugsink.CaptureError(err, map[string]interface{}{
		"change_id":   entry.ID,
		"change_kind": entry.ChangeKind,
	})
	stats.Errors++
	metrics.RecordReconcileEntry(entry.ChangeKind, "error")
}

// Run reconciles on a fixed interval until the context is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	log.Printf("[RECONCILER] Reconciliation worker started, interval %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RECONCILER] Reconciliation worker stopped")
			return
		case now := <-ticker.C:
			if _, err := w.RunOnce(now); err != nil {
				log.Printf("[RECONCILER] Reconcile pass failed: %v", err)
			}
		}
	}
}
