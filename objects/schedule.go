package objects

import (
	"time"
)

// Schedule is a single timeline entry (session) of an event. The reminder
// pipeline only ever consumes it as a snapshot; the CRUD layer owns the row.
type Schedule struct {
	ID                    string    `json:"id"`
	EventID               string    `json:"event_id"`
	Title                 string    `json:"title"`
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time"`
	Location              string    `json:"location"`
	Room                  string    `json:"room"`
	SpeakerName           string    `json:"speaker_name"`
	SendReminder          bool      `json:"send_reminder"`
	ReminderMinutesBefore int       `json:"reminder_minutes_before"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DefaultReminderMinutesBefore is applied when a snapshot carries no lead time.
const DefaultReminderMinutesBefore = 30

// ReminderDueAt returns the moment the reminder for this schedule should be
// handed to the delivery channel: start time minus the lead time. A lead of
// zero means the reminder goes out at start time; the default lead is applied
// when the snapshot is constructed, not here.
func (s *Schedule) ReminderDueAt() time.Time {
	return s.StartTime.Add(-time.Duration(s.ReminderMinutesBefore) * time.Minute)
}

// NewSchedule creates a new schedule snapshot with initial values
func NewSchedule(eventID, title string, start, end time.Time) *Schedule {
	return &Schedule{
		EventID:               eventID,
		Title:                 title,
		StartTime:             start,
		EndTime:               end,
		SendReminder:          true,
		ReminderMinutesBefore: DefaultReminderMinutesBefore,
		CreatedAt:             time.Now().UTC(),
		UpdatedAt:             time.Now().UTC(),
	}
}
