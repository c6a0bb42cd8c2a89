package pipeline

import (
	"log"

	"eventflow/changes"
	"eventflow/objects"
	"eventflow/planner"
	"eventflow/queue"
)

// ChangeLogStore persists and claims change log entries.
type ChangeLogStore interface {
	CreateChangeLogEntry(entry *objects.ChangeLogEntry) error
	ClaimChange(id, processedBy string) (bool, error)
}

// Proposal is a planned change awaiting the user's confirm or reject
// decision. A nil proposal from Submit means the change needed no reminder
// work and was settled immediately.
type Proposal struct {
	Command *changes.Command
	Plan    *planner.SyncPlan
}

// Service runs a schedule change through plan, log, confirm and the grace
// queue.
type Service struct {
	registry *changes.Registry
	queue    *queue.Queue
	store    ChangeLogStore
}

func New(registry *changes.Registry, q *queue.Queue, store ChangeLogStore) *Service {
	return &Service{registry: registry, queue: q, store: store}
}

// Submit plans the change and writes its log entry. A change whose plan
// fails to compute is not logged and not queued. A trivial plan is settled
// on the spot with no grace window.
func (s *Service) Submit(cmd *changes.Command) (*Proposal, error) {
	plan, err := s.registry.Plan(cmd)
	if err != nil {
		log.Printf("[PIPELINE] Change %s rejected, plan failed: %v", cmd.Kind, err)
		return nil, err
	}

	entry := objects.NewChangeLogEntry(cmd.EventID, cmd.OrganizationID, cmd.Kind, cmd.Old, cmd.New)
	cmd.ID = entry.ID
	if err := s.store.CreateChangeLogEntry(entry); err != nil {
		return nil, err
	}

	if plan.IsTrivial() {
		log.Printf("[PIPELINE] Change %s has no reminder impact, settling immediately", cmd.ID)
		if _, err := s.store.ClaimChange(cmd.ID, objects.ProcessedByClient); err != nil {
			return nil, err
		}
		return nil, nil
	}

	log.Printf("[PIPELINE] Change %s planned: %d creates, %d updates, %d deletes, %d participants affected",
		cmd.ID, plan.Impact.MessagesToCreate, plan.Impact.MessagesToUpdate,
		plan.Impact.MessagesToDelete, plan.Impact.AffectedParticipants)
	return &Proposal{Command: cmd, Plan: plan}, nil
}

// Confirm puts the proposal into the grace queue, returning the change id
// the caller can cancel with until the window elapses.
func (s *Service) Confirm(p *Proposal) string {
	s.queue.Enqueue(p.Command, p.Plan)
	return p.Command.ID
}

// Reject undoes the schedule mutation and marks the log entry cancelled
// without any reminder work happening.
func (s *Service) Reject(p *Proposal) error {
	log.Printf("[PIPELINE] Change %s rejected by user", p.Command.ID)
	if err := s.registry.Compensate(p.Command); err != nil {
		return err
	}
	_, err := s.store.ClaimChange(p.Command.ID, objects.ProcessedByCancelled)
	return err
}
