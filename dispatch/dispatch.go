package dispatch

import (
	"context"
	"log"
	"time"

	"eventflow/bugsink"
	"eventflow/metrics"
	"eventflow/objects"
	"eventflow/quota"
	"eventflow/rabbit"
)

// Store is the slice of the repository the dispatcher reads and updates.
type Store interface {
	ListDueMessages(now time.Time, limit int) ([]*objects.Message, error)
	MarkMessageQueued(id string) error
	MarkMessageFailed(id, errorMessage string) error
}

// Publisher hands a reminder to the delivery queue. *context.Context
// satisfies it.
type Publisher interface {
	PublishReminder(bag rabbit.ReminderBag) error
}

// QuotaGate is satisfied by quota.Gate.
type QuotaGate interface {
	Check(organizationID string) (*quota.Result, error)
}

// Dispatcher moves scheduled messages whose send time has arrived onto the
// delivery queue.
type Dispatcher struct {
	store     Store
	publisher Publisher
	gate      QuotaGate
	limit     int
}

func NewDispatcher(store Store, publisher Publisher, gate QuotaGate, limit int) *Dispatcher {
	return &Dispatcher{store: store, publisher: publisher, gate: gate, limit: limit}
}

// RunOnce scans for due messages and queues them. Tenants over quota have
// their due messages failed here instead of clogging the delivery queue.
func (d *Dispatcher) RunOnce(now time.Time) error {
	messages, err := d.store.ListDueMessages(now, d.limit)
	if err != nil {
		log.Printf("[DISPATCH] Error listing due messages: %v", err)
		bugsink.CaptureError(err, map[string]interface{}{"component": "dispatch"})
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	log.Printf("[DISPATCH] Dispatching %d due messages", len(messages))

	exceeded := quota.NewExceededSet()
	for _, message := range messages {
		if exceeded.Has(message.OrganizationID) {
			d.failQuota(message)
			continue
		}

		result, err := d.gate.Check(message.OrganizationID)
		if err != nil {
			log.Printf("[DISPATCH] Error checking quota for organization %s: %v",
				message.OrganizationID, err)
			metrics.RecordDispatch(false)
			continue
		}
		if !result.Allowed {
			exceeded.Add(message.OrganizationID)
			metrics.RecordQuotaRejected(result.Tier)
			d.failQuota(message)
			continue
		}

		bag := rabbit.ReminderBag{
			MessageID:      message.ID,
			OrganizationID: message.OrganizationID,
			EventID:        message.EventID,
			ToPhone:        message.ToPhone,
			Content:        message.Content,
			Priority:       100,
		}
		if err := d.publisher.PublishReminder(bag); err != nil {
			log.Printf("[DISPATCH] Error publishing message %s: %v", message.ID, err)
			metrics.RecordDispatch(false)
			continue
		}
		if err := d.store.MarkMessageQueued(message.ID); err != nil {
			log.Printf("[DISPATCH] Error marking message %s queued: %v", message.ID, err)
		}
		metrics.RecordDispatch(true)
	}
	return nil
}

func (d *Dispatcher) failQuota(message *objects.Message) {
	log.Printf("[DISPATCH] Message %s blocked, organization %s is over quota",
		message.ID, message.OrganizationID)
	metrics.RecordDispatch(false)
	if err := d.store.MarkMessageFailed(message.ID, "Quota exceeded: 0 messages remaining in this period"); err != nil {
		log.Printf("[DISPATCH] Error marking message %s failed: %v", message.ID, err)
	}
}

// Run dispatches on a fixed interval until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	log.Printf("[DISPATCH] Dispatcher started, interval %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[DISPATCH] Dispatcher stopped")
			return
		case now := <-ticker.C:
			if err := d.RunOnce(now); err != nil {
				log.Printf("[DISPATCH] Dispatch pass failed: %v", err)
			}
		}
	}
}
