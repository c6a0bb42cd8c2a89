package repository

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"eventflow/objects"
)

// CreateChangeLogEntry persists a change with its before/after snapshots.
// The snapshots are stored as jsonb so the reconciliation worker can replay
// the change without the originating client.
func (repo *Repository) CreateChangeLogEntry(entry *objects.ChangeLogEntry) error {
	log.Printf("[REPOSITORY] Creating change log entry %s (kind: %s, schedule: %v)",
		entry.ID, entry.ChangeKind, entry.ScheduleID)

	oldData, err := marshalSnapshot(entry.OldData)
	if err != nil {
		log.Printf("[REPOSITORY] Error marshalling old snapshot for entry %s: %v", entry.ID, err)
		return err
	}
	newData, err := marshalSnapshot(entry.NewData)
	if err != nil {
		log.Printf("[REPOSITORY] Error marshalling new snapshot for entry %s: %v", entry.ID, err)
		return err
	}

	_, err = repo.db.Exec(
		`INSERT INTO schedule_change_log (id, event_id, organization_id, schedule_id, change_kind,
		                                  old_data, new_data, created_at, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`,
		entry.ID, entry.EventID, entry.OrganizationID, entry.ScheduleID, entry.ChangeKind,
		oldData, newData, entry.CreatedAt,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error creating change log entry %s: %v", entry.ID, err)
		return err
	}

	log.Printf("[REPOSITORY] Change log entry %s created", entry.ID)
	return nil
}

// ListUnprocessedChanges returns unclaimed entries that have sat in the log
// longer than the dwell cutoff, oldest first.
func (repo *Repository) ListUnprocessedChanges(olderThan time.Time, limit int) ([]*objects.ChangeLogEntry, error) {
	log.Printf("[REPOSITORY] Listing unprocessed changes older than %s (limit: %d)",
		olderThan.Format(time.RFC3339), limit)

	rows, err := repo.db.Query(
		`SELECT id, event_id, organization_id, schedule_id, change_kind, old_data, new_data,
		        created_at, processed, processed_at, processed_by
		FROM schedule_change_log
		WHERE processed = false
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error listing unprocessed changes: %v", err)
		return nil, err
	}
	defer rows.Close()

	var entries []*objects.ChangeLogEntry
	for rows.Next() {
		entry := &objects.ChangeLogEntry{}
		var scheduleID, processedBy sql.NullString
		var oldData, newData []byte
		var processedAt sql.NullTime
		err := rows.Scan(&entry.ID, &entry.EventID, &entry.OrganizationID, &scheduleID,
			&entry.ChangeKind, &oldData, &newData, &entry.CreatedAt, &entry.Processed,
			&processedAt, &processedBy)
		if err != nil {
			log.Printf("[REPOSITORY] Error scanning change log row: %v", err)
			return nil, err
		}
		if scheduleID.Valid {
			entry.ScheduleID = &scheduleID.String
		}
		if processedBy.Valid {
			entry.ProcessedBy = processedBy.String
		}
		if processedAt.Valid {
			t := processedAt.Time
			entry.ProcessedAt = &t
		}
		entry.OldData, err = unmarshalSnapshot(oldData)
		if err != nil {
			log.Printf("[REPOSITORY] Error unmarshalling old snapshot for entry %s: %v", entry.ID, err)
			return nil, err
		}
		entry.NewData, err = unmarshalSnapshot(newData)
		if err != nil {
			log.Printf("[REPOSITORY] Error unmarshalling new snapshot for entry %s: %v", entry.ID, err)
			return nil, err
		}
		entries = append(entries, entry)
	}

	log.Printf("[REPOSITORY] Found %d unprocessed changes", len(entries))
	return entries, rows.Err()
}

// ClaimChange flips an entry to processed if and only if nobody claimed it
// yet. The row count decides the winner when the client and the worker race.
func (repo *Repository) ClaimChange(id, processedBy string) (bool, error) {
	log.Printf("[REPOSITORY] Claiming change %s as %s", id, processedBy)

	result, err := repo.db.Exec(
		`UPDATE schedule_change_log
		SET processed = true, processed_at = NOW(), processed_by = $2
		WHERE id = $1 AND processed = false`,
		id, processedBy,
	)
	if err != nil {
		log.Printf("[REPOSITORY] Error claiming change %s: %v", id, err)
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	claimed := rows > 0
	if !claimed {
		log.Printf("[REPOSITORY] Change %s was already claimed", id)
	}
	return claimed, nil
}

func marshalSnapshot(schedule *objects.Schedule) ([]byte, error) {
	if schedule == nil {
		return nil, nil
	}
	return json.Marshal(schedule)
}

func unmarshalSnapshot(data []byte) (*objects.Schedule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	schedule := &objects.Schedule{}
	if err := json.Unmarshal(data, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}
