package objects

import (
	"time"
)

// Message is a derived outbound message tied to a schedule and a participant.
// The unique (schedule_id, participant_id, message_type) index in the messages
// table is what makes creation idempotent: a duplicate insert is a no-op.
type Message struct {
	ID             string
	EventID        string
	OrganizationID string
	ScheduleID     *string // nullable once the schedule is deleted
	ParticipantID  string
	Channel        string
	Direction      string
	ToPhone        string
	Subject        string
	Content        string
	Status         string // 'pending', 'scheduled', 'sent', 'delivered', 'failed'
	MessageType    string
	ScheduledFor   *time.Time
	RetryCount     int
	LastRetryAt    *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Message status constants
const (
	MessageStatusPending   = "pending"   // handed to the delivery queue
	MessageStatusScheduled = "scheduled" // waiting for its trigger time
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

// Message type and channel constants
const (
	MessageTypeReminder      = "reminder"
	MessageChannelWhatsApp   = "whatsapp"
	MessageDirectionOutgoing = "outgoing"
)

// NewReminderMessage builds the reminder row for one participant.
// The ID is left empty on purpose: the store assigns it on insert, so that
// recomputing a plan twice yields equal message sets.
func NewReminderMessage(eventID, organizationID, scheduleID, participantID, phone string) *Message {
	sid := scheduleID
	return &Message{
		EventID:        eventID,
		OrganizationID: organizationID,
		ScheduleID:     &sid,
		ParticipantID:  participantID,
		Channel:        MessageChannelWhatsApp,
		Direction:      MessageDirectionOutgoing,
		ToPhone:        phone,
		Status:         MessageStatusScheduled,
		MessageType:    MessageTypeReminder,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}
