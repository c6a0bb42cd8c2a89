package repository

import (
	"database/sql"
	"log"

	"eventflow/objects"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	log.Println("[REPOSITORY] Repository initialized")
	return &Repository{db: db}
}

func (repo *Repository) FindSchedule(id string) *objects.Schedule {
	log.Printf("[REPOSITORY] Finding schedule %s", id)
	schedule := &objects.Schedule{}

	var location, room, speaker sql.NullString
	err := repo.db.QueryRow(
		`SELECT id, event_id, title, start_time, end_time, location, room, speaker_name,
		        send_reminder, reminder_minutes_before, created_at, updated_at
		FROM schedules
		WHERE id = $1
		LIMIT 1`,
		id,
	).Scan(&schedule.ID, &schedule.EventID, &schedule.Title, &schedule.StartTime, &schedule.EndTime,
		&location, &room, &speaker, &schedule.SendReminder, &schedule.ReminderMinutesBefore,
		&schedule.CreatedAt, &schedule.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("[REPOSITORY] Schedule %s not found", id)
		} else {
			log.Printf("[REPOSITORY] Error finding schedule %s: %v", id, err)
		}
		return nil
	}

	if location.Valid {
		schedule.Location = location.String
	}
	if room.Valid {
		schedule.Room = room.String
	}
	if speaker.Valid {
		schedule.SpeakerName = speaker.String
	}

	return schedule
}

// SaveSchedule inserts or restores a schedule row. The queue's compensate
// path uses this to put the prior snapshot back after a cancelled edit.
func (repo *Repository) SaveSchedule(schedule *objects.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	log.Printf("[REPOSITORY] Saving schedule %s (event: %s, title: %s)",
		schedule.ID, schedule.EventID, schedule.Title)

	_, err := repo.db.Exec(
		`INSERT INTO schedules (id, event_id, title, start_time, end_time, location, room, speaker_name,
		                        send_reminder, reminder_minutes_before, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
			SET title = $3,
			    start_time = $4,
			    end_time = $5,
			    location = $6,
			    room = $7,
			    speaker_name = $8,
			    send_reminder = $9,
			    reminder_minutes_before = $10,
			    updated_at = $12`,
		schedule.ID, schedule.EventID, schedule.Title, schedule.StartTime, schedule.EndTime,
		nullString(schedule.Location), nullString(schedule.Room), nullString(schedule.SpeakerName),
		schedule.SendReminder, schedule.ReminderMinutesBefore, schedule.CreatedAt, schedule.UpdatedAt,
	)

	if err != nil {
		log.Printf("[REPOSITORY] Error saving schedule %s: %v", schedule.ID, err)
		return err
	}

	log.Printf("[REPOSITORY] Schedule %s saved successfully", schedule.ID)
	return nil
}

func (repo *Repository) DeleteSchedule(id string) error {
	log.Printf("[REPOSITORY] Deleting schedule %s", id)

	_, err := repo.db.Exec(`DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		log.Printf("[REPOSITORY] Error deleting schedule %s: %v", id, err)
		return err
	}

	log.Printf("[REPOSITORY] Schedule %s deleted", id)
	return nil
}

func (repo *Repository) ListSchedules(eventID string) ([]*objects.Schedule, error) {
	log.Printf("[REPOSITORY] Listing schedules for event %s", eventID)

	rows, err := repo.db.Query(
		`SELECT id, event_id, title, start_time, end_time, location, room, speaker_name,
		        send_reminder, reminder_minutes_before, created_at, updated_at
		FROM schedules
		WHERE event_id = $1
		ORDER BY start_time ASC, id ASC`,
		eventID,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error listing schedules for event %s: %v", eventID, err)
		return nil, err
	}
	defer rows.Close()

	var schedules []*objects.Schedule
	for rows.Next() {
		schedule := &objects.Schedule{}
		var location, room, speaker sql.NullString
		err := rows.Scan(&schedule.ID, &schedule.EventID, &schedule.Title, &schedule.StartTime,
			&schedule.EndTime, &location, &room, &speaker, &schedule.SendReminder,
			&schedule.ReminderMinutesBefore, &schedule.CreatedAt, &schedule.UpdatedAt)
		if err != nil {
			log.Printf("[REPOSITORY] Error scanning schedule row: %v", err)
			return nil, err
		}
		if location.Valid {
			schedule.Location = location.String
		}
		if room.Valid {
			schedule.Room = room.String
		}
		if speaker.Valid {
			schedule.SpeakerName = speaker.String
		}
		schedules = append(schedules, schedule)
	}

	log.Printf("[REPOSITORY] Found %d schedules for event %s", len(schedules), eventID)
	return schedules, rows.Err()
}

// ListParticipants returns every participant of the event in stable order.
// The planner relies on the ordering for deterministic plans.
func (repo *Repository) ListParticipants(eventID string) ([]*objects.Participant, error) {
	log.Printf("[REPOSITORY] Listing participants for event %s", eventID)

	rows, err := repo.db.Query(
		`SELECT id, event_id, first_name, last_name, full_name, phone, status
		FROM participants
		WHERE event_id = $1
		ORDER BY id ASC`,
		eventID,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error listing participants for event %s: %v", eventID, err)
		return nil, err
	}
	defer rows.Close()

	var participants []*objects.Participant
	for rows.Next() {
		p := &objects.Participant{}
		var lastName, fullName, phone sql.NullString
		err := rows.Scan(&p.ID, &p.EventID, &p.FirstName, &lastName, &fullName, &phone, &p.Status)
		if err != nil {
			log.Printf("[REPOSITORY] Error scanning participant row: %v", err)
			return nil, err
		}
		if lastName.Valid {
			p.LastName = lastName.String
		}
		if fullName.Valid {
			p.FullName = fullName.String
		}
		if phone.Valid {
			p.Phone = phone.String
		}
		participants = append(participants, p)
	}

	log.Printf("[REPOSITORY] Found %d participants for event %s", len(participants), eventID)
	return participants, rows.Err()
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
