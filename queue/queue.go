package queue

import (
	"log"
	"math"
	"sync"
	"time"

	"eventflow/bugsink"
	"eventflow/changes"
	"eventflow/metrics"
	"eventflow/objects"
	"eventflow/planner"
)

// ClaimStore marks change log entries as processed.
type ClaimStore interface {
	ClaimChange(id, processedBy string) (bool, error)
}

// Applier materializes a sync plan once its grace window expires.
type Applier interface {
	Apply(plan *planner.SyncPlan) error
}

// PendingChange is one confirmed change waiting out its grace window.
type PendingChange struct {
	Command   *changes.Command
	Plan      *planner.SyncPlan
	ExpiresAt time.Time
}

// Queue holds confirmed changes for a grace window before applying them.
// During the window a change can still be cancelled, which rolls the
// schedule data back and marks its log entry cancelled.
type Queue struct {
	mu       sync.Mutex
	grace    time.Duration
	registry *changes.Registry
	exec     Applier
	claims   ClaimStore
	pending  map[string]*PendingChange
	timers   map[string]*time.Timer
}

func New(grace time.Duration, registry *changes.Registry, exec Applier, claims ClaimStore) *Queue {
	return &Queue{
		grace:    grace,
		registry: registry,
		exec:     exec,
		claims:   claims,
		pending:  make(map[string]*PendingChange),
		timers:   make(map[string]*time.Timer),
	}
}

// Enqueue starts the grace window for a planned change. Each change gets its
// own timer; windows do not extend each other.
func (q *Queue) Enqueue(cmd *changes.Command, plan *planner.SyncPlan) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending[cmd.ID] = &PendingChange{
		Command:   cmd,
		Plan:      plan,
		ExpiresAt: time.Now().Add(q.grace),
	}
	q.timers[cmd.ID] = time.AfterFunc(q.grace, func() {
		q.expire(cmd.ID)
	})

	metrics.RecordGraceQueue("enqueued")
	log.Printf("[QUEUE] Change %s (%s) enqueued, applies in %s", cmd.ID, cmd.Kind, q.grace)
}

// expire runs when a change's window elapses. Removing the entry under the
// lock first settles the race with Cancel: whichever path finds the entry
// gone does nothing.
func (q *Queue) expire(id string) {
	q.mu.Lock()
	pc, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	delete(q.pending, id)
	delete(q.timers, id)
	q.mu.Unlock()

	log.Printf("[QUEUE] Grace window elapsed for change %s, applying plan", id)
	metrics.RecordGraceQueue("expired")

	if err := q.exec.Apply(pc.Plan); err != nil {
		// Leave the log entry unclaimed so the reconciliation worker
		// picks the change up on its next pass.
		log.Printf("[QUEUE] Error applying change %s, leaving it for reconciliation: %v", id, err)
		bugsink.CaptureError(err, map[string]interface{}{
			"change_id":   id,
			"change_kind": pc.Command.Kind,
		})
		return
	}

	if _, err := q.claims.ClaimChange(id, objects.ProcessedByClient); err != nil {
		log.Printf("[QUEUE] Error claiming change %s: %v", id, err)
		bugsink.CaptureError(err, map[string]interface{}{"change_id": id})
	}
}

// Cancel stops a pending change, rolls its schedule data back and marks the
// log entry cancelled. Unknown ids are a no-op. A failed rollback is logged
// and reported but never blocks the cancellation itself.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	pc, ok := q.pending[id]
	if !ok {
		q.mu.Unlock()
		log.Printf("[QUEUE] Cancel of change %s ignored, not pending", id)
		return nil
	}
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
	}
	delete(q.pending, id)
	delete(q.timers, id)
	q.mu.Unlock()

	log.Printf("[QUEUE] Cancelling change %s (%s)", id, pc.Command.Kind)
	metrics.RecordGraceQueue("cancelled")

	if err := q.registry.Compensate(pc.Command); err != nil {
		// The change still counts as cancelled; the stale schedule data
		// is surfaced rather than the cancel being blocked.
		log.Printf("[QUEUE] Error compensating change %s: %v", id, err)
		bugsink.CaptureError(err, map[string]interface{}{
			"change_id":   id,
			"change_kind": pc.Command.Kind,
		})
	}

	if _, err := q.claims.ClaimChange(id, objects.ProcessedByCancelled); err != nil {
		log.Printf("[QUEUE] Error marking change %s cancelled: %v", id, err)
		return err
	}
	return nil
}

// CancelAll cancels every pending change and returns how many were cancelled.
func (q *Queue) CancelAll() int {
	q.mu.Lock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	q.mu.Unlock()

	cancelled := 0
	for _, id := range ids {
		if err := q.Cancel(id); err == nil {
			cancelled++
		}
	}
	log.Printf("[QUEUE] Cancelled %d pending changes", cancelled)
	return cancelled
}

// RemainingSeconds reports the whole seconds left in a change's window,
// rounded up. Unknown or already-applied ids report zero.
func (q *Queue) RemainingSeconds(id string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pc, ok := q.pending[id]
	if !ok {
		return 0
	}
	remaining := int(math.Ceil(time.Until(pc.ExpiresAt).Seconds()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Pending returns a snapshot of the changes still in their windows.
func (q *Queue) Pending() []*PendingChange {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]*PendingChange, 0, len(q.pending))
	for _, pc := range q.pending {
		result = append(result, pc)
	}
	return result
}

// HasPendingFor reports whether a change of the given kind for the given
// schedule is still waiting out its window.
func (q *Queue) HasPendingFor(kind, scheduleID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, pc := range q.pending {
		if pc.Command.Kind != kind {
			continue
		}
		if pc.Command.New != nil && pc.Command.New.ID == scheduleID {
			return true
		}
		if pc.Command.Old != nil && pc.Command.Old.ID == scheduleID {
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
