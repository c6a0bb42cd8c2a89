package planner

import (
	"fmt"
	"log"
	"time"

	"eventflow/metrics"
	"eventflow/objects"
)

// Store is the slice of the repository the planner reads from.
type Store interface {
	ListParticipants(eventID string) ([]*objects.Participant, error)
	ListActiveReminders(scheduleID string) ([]*objects.Message, error)
	ListActiveRemindersByEvent(eventID string) ([]*objects.Message, error)
	GetMessageTemplate(organizationID, messageType string) (string, error)
}

// MessageUpdate rewrites the content and send time of one existing reminder.
type MessageUpdate struct {
	ID           string
	Content      string
	ScheduledFor time.Time
}

// Impact summarizes a plan for the confirmation prompt shown before the
// grace window starts.
type Impact struct {
	MessagesToCreate     int `json:"messages_to_create"`
	MessagesToUpdate     int `json:"messages_to_update"`
	MessagesToDelete     int `json:"messages_to_delete"`
	AffectedParticipants int `json:"affected_participants"`
}

// SyncPlan is the full set of message mutations a schedule change implies.
// Plans are pure data: computing one touches no rows, so a plan can be
// recomputed, discarded, or held in the grace queue safely.
type SyncPlan struct {
	Creates []*objects.Message
	Updates []MessageUpdate
	Deletes []string
	Impact  Impact
}

// IsTrivial reports whether applying the plan would change nothing.
func (plan *SyncPlan) IsTrivial() bool {
	return len(plan.Creates) == 0 && len(plan.Updates) == 0 && len(plan.Deletes) == 0
}

type Planner struct {
	store Store
}

func New(store Store) *Planner {
	return &Planner{store: store}
}

// ComputePlan derives the reminder mutations implied by one schedule change.
// The same inputs always yield the same plan; message IDs are assigned by the
// store on insert, not here.
func (pl *Planner) ComputePlan(changeKind, eventID, organizationID string, schedule *objects.Schedule) (*SyncPlan, error) {
	log.Printf("[PLANNER] Computing plan for %s change (event: %s)", changeKind, eventID)

	var plan *SyncPlan
	var err error

	switch changeKind {
	case objects.ChangeKindCreate:
		plan, err = pl.planCreate(eventID, organizationID, schedule)
	case objects.ChangeKindUpdate:
		plan, err = pl.planUpdate(eventID, organizationID, schedule)
	case objects.ChangeKindDelete:
		plan, err = pl.planDelete(eventID, schedule)
	case objects.ChangeKindDeleteAll:
		plan, err = pl.planDeleteAll(eventID)
	default:
		err = fmt.Errorf("unknown change kind: %s", changeKind)
	}

	metrics.RecordSyncPlan(changeKind, err == nil)
	if err != nil {
		log.Printf("[PLANNER] Error computing %s plan: %v", changeKind, err)
		return nil, err
	}

	log.Printf("[PLANNER] Plan for %s change: %d creates, %d updates, %d deletes",
		changeKind, len(plan.Creates), len(plan.Updates), len(plan.Deletes))
	return plan, nil
}

func (pl *Planner) planCreate(eventID, organizationID string, schedule *objects.Schedule) (*SyncPlan, error) {
	plan := &SyncPlan{}
	if schedule == nil {
		return nil, fmt.Errorf("create change without schedule data")
	}
	if !schedule.SendReminder {
		return plan, nil
	}

	participants, err := pl.store.ListParticipants(eventID)
	if err != nil {
		return nil, err
	}
	template, err := pl.store.GetMessageTemplate(organizationID, objects.MessageTypeReminder)
	if err != nil {
		return nil, err
	}

	for _, participant := range participants {
		if !participant.IsContactable() {
			continue
		}
		message := objects.NewReminderMessage(eventID, organizationID, schedule.ID, participant.ID, participant.Phone)
		message.Content = BuildReminderContent(template, schedule, participant)
		dueAt := schedule.ReminderDueAt()
		message.ScheduledFor = &dueAt
		plan.Creates = append(plan.Creates, message)
	}

	// The confirmation prompt reports the whole roster as affected, phone-less
	// participants included, not just the rows touched.
	plan.Impact = Impact{
		MessagesToCreate:     len(plan.Creates),
		AffectedParticipants: len(participants),
	}
	return plan, nil
}

func (pl *Planner) planUpdate(eventID, organizationID string, schedule *objects.Schedule) (*SyncPlan, error) {
	plan := &SyncPlan{}
	if schedule == nil {
		return nil, fmt.Errorf("update change without schedule data")
	}

	participants, err := pl.store.ListParticipants(eventID)
	if err != nil {
		return nil, err
	}
	existing, err := pl.store.ListActiveReminders(schedule.ID)
	if err != nil {
		return nil, err
	}

	if !schedule.SendReminder {
		for _, message := range existing {
			plan.Deletes = append(plan.Deletes, message.ID)
		}
		plan.Impact = Impact{
			MessagesToDelete:     len(plan.Deletes),
			AffectedParticipants: len(participants),
		}
		return plan, nil
	}

	template, err := pl.store.GetMessageTemplate(organizationID, objects.MessageTypeReminder)
	if err != nil {
		return nil, err
	}

	participantsByID := make(map[string]*objects.Participant, len(participants))
	for _, participant := range participants {
		participantsByID[participant.ID] = participant
	}

	covered := make(map[string]bool, len(existing))
	dueAt := schedule.ReminderDueAt()
	for _, message := range existing {
		covered[message.ParticipantID] = true
		participant := participantsByID[message.ParticipantID]
		plan.Updates = append(plan.Updates, MessageUpdate{
			ID:           message.ID,
			Content:      BuildReminderContent(template, schedule, participant),
			ScheduledFor: dueAt,
		})
	}

	for _, participant := range participants {
		if covered[participant.ID] || !participant.IsContactable() {
			continue
		}
		message := objects.NewReminderMessage(eventID, organizationID, schedule.ID, participant.ID, participant.Phone)
		message.Content = BuildReminderContent(template, schedule, participant)
		message.ScheduledFor = &dueAt
		plan.Creates = append(plan.Creates, message)
	}

	plan.Impact = Impact{
		MessagesToCreate:     len(plan.Creates),
		MessagesToUpdate:     len(plan.Updates),
		AffectedParticipants: len(participants),
	}
	return plan, nil
}

func (pl *Planner) planDelete(eventID string, schedule *objects.Schedule) (*SyncPlan, error) {
	plan := &SyncPlan{}
	if schedule == nil {
		return nil, fmt.Errorf("delete change without schedule data")
	}

	participants, err := pl.store.ListParticipants(eventID)
	if err != nil {
		return nil, err
	}
	existing, err := pl.store.ListActiveReminders(schedule.ID)
	if err != nil {
		return nil, err
	}
	for _, message := range existing {
		plan.Deletes = append(plan.Deletes, message.ID)
	}
	plan.Impact = Impact{
		MessagesToDelete:     len(plan.Deletes),
		AffectedParticipants: len(participants),
	}
	return plan, nil
}

func (pl *Planner) planDeleteAll(eventID string) (*SyncPlan, error) {
	plan := &SyncPlan{}

	participants, err := pl.store.ListParticipants(eventID)
	if err != nil {
		return nil, err
	}
	existing, err := pl.store.ListActiveRemindersByEvent(eventID)
	if err != nil {
		return nil, err
	}
	for _, message := range existing {
		plan.Deletes = append(plan.Deletes, message.ID)
	}
	plan.Impact = Impact{
		MessagesToDelete:     len(plan.Deletes),
		AffectedParticipants: len(participants),
	}
	return plan, nil
}
