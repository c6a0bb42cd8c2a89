package executor

import (
	"fmt"
	"log"
	"time"

	"eventflow/metrics"
	"eventflow/objects"
	"eventflow/planner"
)

// DefaultBatchSize bounds how many creates or deletes go to the store in one
// call.
const DefaultBatchSize = 50

// MessageStore is the slice of the repository the executor writes through.
type MessageStore interface {
	CreateMessages(messages []*objects.Message) (int, error)
	UpdateMessageContent(id, content string, scheduledFor time.Time) error
	DeleteMessages(ids []string) error
}

type Executor struct {
	store     MessageStore
	batchSize int
}

func New(store MessageStore) *Executor {
	return &Executor{store: store, batchSize: DefaultBatchSize}
}

// Apply materializes a sync plan. Failed batches are logged and counted but
// do not stop the remaining work; the aggregated error reports how much of
// the plan went through.
func (ex *Executor) Apply(plan *planner.SyncPlan) error {
	if plan == nil || plan.IsTrivial() {
		return nil
	}
	log.Printf("[EXECUTOR] Applying plan: %d creates, %d updates, %d deletes",
		len(plan.Creates), len(plan.Updates), len(plan.Deletes))

	failed := 0

	for start := 0; start < len(plan.Creates); start += ex.batchSize {
		end := start + ex.batchSize
		if end > len(plan.Creates) {
			end = len(plan.Creates)
		}
		batch := plan.Creates[start:end]
		created, err := ex.store.CreateMessages(batch)
		metrics.RecordExecutorBatch("create", err == nil)
		if err != nil {
			log.Printf("[EXECUTOR] Create batch failed (%d of %d inserted): %v",
				created, len(batch), err)
			failed += len(batch) - created
			continue
		}
		if created < len(batch) {
			log.Printf("[EXECUTOR] Create batch skipped %d duplicate rows", len(batch)-created)
		}
	}

	for _, update := range plan.Updates {
		err := ex.store.UpdateMessageContent(update.ID, update.Content, update.ScheduledFor)
		metrics.RecordExecutorBatch("update", err == nil)
		if err != nil {
			log.Printf("[EXECUTOR] Update of message %s failed: %v", update.ID, err)
			failed++
		}
	}

	for start := 0; start < len(plan.Deletes); start += ex.batchSize {
		end := start + ex.batchSize
		if end > len(plan.Deletes) {
			end = len(plan.Deletes)
		}
		batch := plan.Deletes[start:end]
		err := ex.store.DeleteMessages(batch)
		metrics.RecordExecutorBatch("delete", err == nil)
		if err != nil {
			log.Printf("[EXECUTOR] Delete batch of %d failed: %v", len(batch), err)
			failed += len(batch)
		}
	}

	if failed > 0 {
		return fmt.Errorf("plan applied partially: %d operations failed", failed)
	}
	log.Printf("[EXECUTOR] Plan applied successfully")
	return nil
}
