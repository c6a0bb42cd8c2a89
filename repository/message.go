package repository

import (
	"database/sql"
	"log"
	"time"

	"eventflow/objects"

	"github.com/lib/pq"
)

// CreateMessages inserts reminder rows one at a time so the dedup index can
// reject duplicates per row. A conflicting row is skipped silently, any other
// error aborts the remaining inserts. Returns how many rows were inserted.
func (repo *Repository) CreateMessages(messages []*objects.Message) (int, error) {
	log.Printf("[REPOSITORY] Creating %d messages", len(messages))

	created := 0
	for _, message := range messages {
		if message.ID == "" {
			row := repo.db.QueryRow(
				`INSERT INTO messages (event_id, organization_id, schedule_id, participant_id, channel,
				                       direction, to_phone, subject, content, status, message_type,
				                       scheduled_for, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
				ON CONFLICT (schedule_id, participant_id, message_type) DO NOTHING
				RETURNING id`,
				message.EventID, message.OrganizationID, message.ScheduleID, message.ParticipantID,
				message.Channel, message.Direction, message.ToPhone, nullString(message.Subject),
				message.Content, message.Status, message.MessageType, message.ScheduledFor,
				message.CreatedAt, message.UpdatedAt,
			)
			err := row.Scan(&message.ID)
			if err == sql.ErrNoRows {
				// Dedup index already holds a live reminder for this pair
				continue
			}
			if err != nil {
				log.Printf("[REPOSITORY] Error creating message: %v", err)
				return created, err
			}
			created++
			continue
		}

		result, err := repo.db.Exec(
			`INSERT INTO messages (id, event_id, organization_id, schedule_id, participant_id, channel,
			                       direction, to_phone, subject, content, status, message_type,
			                       scheduled_for, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (schedule_id, participant_id, message_type) DO NOTHING`,
			message.ID, message.EventID, message.OrganizationID, message.ScheduleID,
			message.ParticipantID, message.Channel, message.Direction, message.ToPhone,
			nullString(message.Subject), message.Content, message.Status, message.MessageType,
			message.ScheduledFor, message.CreatedAt, message.UpdatedAt,
		)
		if err != nil {
			log.Printf("[REPOSITORY] Error creating message %s: %v", message.ID, err)
			return created, err
		}
		rows, _ := result.RowsAffected()
		created += int(rows)
	}

	log.Printf("[REPOSITORY] Created %d of %d messages", created, len(messages))
	return created, nil
}

func (repo *Repository) UpdateMessageContent(id, content string, scheduledFor time.Time) error {
	log.Printf("[REPOSITORY] Updating message %s content", id)

	_, err := repo.db.Exec(
		`UPDATE messages
		SET content = $2, scheduled_for = $3, updated_at = NOW()
		WHERE id = $1`,
		id, content, scheduledFor,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error updating message %s: %v", id, err)
	}
	return err
}

func (repo *Repository) DeleteMessages(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	log.Printf("[REPOSITORY] Deleting %d messages", len(ids))

	_, err := repo.db.Exec(`DELETE FROM messages WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		log.Printf("[REPOSITORY] Error deleting messages: %v", err)
	}
	return err
}

// ListActiveReminders returns undelivered reminder messages for one schedule,
// ordered by id so repeated plan computations see the same rows in the same order.
func (repo *Repository) ListActiveReminders(scheduleID string) ([]*objects.Message, error) {
	log.Printf("[REPOSITORY] Listing active reminders for schedule %s", scheduleID)

	rows, err := repo.db.Query(
		selectMessageColumns+`
		WHERE schedule_id = $1
		  AND message_type = $2
		  AND status IN ('pending', 'scheduled')
		ORDER BY id ASC`,
		scheduleID, objects.MessageTypeReminder,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error listing active reminders for schedule %s: %v", scheduleID, err)
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (repo *Repository) ListActiveRemindersByEvent(eventID string) ([]*objects.Message, error) {
	log.Printf("[REPOSITORY] Listing active reminders for event %s", eventID)

	rows, err := repo.db.Query(
		selectMessageColumns+`
		WHERE event_id = $1
		  AND message_type = $2
		  AND status IN ('pending', 'scheduled')
		ORDER BY id ASC`,
		eventID, objects.MessageTypeReminder,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error listing active reminders for event %s: %v", eventID, err)
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// HasActiveReminders tells the reconciliation worker whether the client side
// already materialized reminders for this schedule.
func (repo *Repository) HasActiveReminders(scheduleID string) (bool, error) {
	var exists bool
	err := repo.db.QueryRow(
		`SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE schedule_id = $1
			  AND message_type = $2
			  AND status IN ('pending', 'scheduled')
		)`,
		scheduleID, objects.MessageTypeReminder,
	).Scan(&exists)

	if err != nil {
		log.Printf("[REPOSITORY] Error checking active reminders for schedule %s: %v", scheduleID, err)
		return false, err
	}
	return exists, nil
}

// ListDueMessages returns scheduled messages whose send time has arrived.
func (repo *Repository) ListDueMessages(now time.Time, limit int) ([]*objects.Message, error) {
	log.Printf("[REPOSITORY] Listing due messages (limit: %d)", limit)

	rows, err := repo.db.Query(
		selectMessageColumns+`
		WHERE status = 'scheduled'
		  AND scheduled_for IS NOT NULL
		  AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2`,
		now, limit,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error listing due messages: %v", err)
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (repo *Repository) MarkMessageQueued(id string) error {
	log.Printf("[REPOSITORY] Marking message %s as queued", id)

	_, err := repo.db.Exec(
		`UPDATE messages SET status = 'pending', updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error marking message %s queued: %v", id, err)
	}
	return err
}

func (repo *Repository) MarkMessageSent(id string) error {
	log.Printf("[REPOSITORY] Marking message %s as sent", id)

	_, err := repo.db.Exec(
		`UPDATE messages
		SET status = 'sent', error_message = NULL, updated_at = NOW()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error marking message %s sent: %v", id, err)
	}
	return err
}

func (repo *Repository) MarkMessageFailed(id, errorMessage string) error {
	log.Printf("[REPOSITORY] Marking message %s as failed: %s", id, errorMessage)

	_, err := repo.db.Exec(
		`UPDATE messages
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1`,
		id, errorMessage,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error marking message %s failed: %v", id, err)
	}
	return err
}

func (repo *Repository) RecordMessageRetry(id string) error {
	log.Printf("[REPOSITORY] Recording retry for message %s", id)

	_, err := repo.db.Exec(
		`UPDATE messages
		SET retry_count = retry_count + 1, last_retry_at = NOW(), updated_at = NOW()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error recording retry for message %s: %v", id, err)
	}
	return err
}

const selectMessageColumns = `SELECT id, event_id, organization_id, schedule_id, participant_id, channel,
		       direction, to_phone, subject, content, status, message_type, scheduled_for,
		       retry_count, last_retry_at, error_message, created_at, updated_at
		FROM messages`

func scanMessages(rows *sql.Rows) ([]*objects.Message, error) {
	var messages []*objects.Message
	for rows.Next() {
		message := &objects.Message{}
		var scheduleID, subject, errorMessage sql.NullString
		var scheduledFor, lastRetryAt sql.NullTime
		err := rows.Scan(&message.ID, &message.EventID, &message.OrganizationID, &scheduleID,
			&message.ParticipantID, &message.Channel, &message.Direction, &message.ToPhone,
			&subject, &message.Content, &message.Status, &message.MessageType, &scheduledFor,
			&message.RetryCount, &lastRetryAt, &errorMessage, &message.CreatedAt, &message.UpdatedAt)
		if err != nil {
			log.Printf("[REPOSITORY] Error scanning message row: %v", err)
			return nil, err
		}
		if scheduleID.Valid {
			message.ScheduleID = &scheduleID.String
		}
		if subject.Valid {
			message.Subject = subject.String
		}
		if errorMessage.Valid {
			message.ErrorMessage = errorMessage.String
		}
		if scheduledFor.Valid {
			t := scheduledFor.Time
			message.ScheduledFor = &t
		}
		if lastRetryAt.Valid {
			t := lastRetryAt.Time
			message.LastRetryAt = &t
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
