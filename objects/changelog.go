package objects

import (
	"time"

	"github.com/google/uuid"
)

// Change kind constants
const (
	ChangeKindCreate    = "create"
	ChangeKindUpdate    = "update"
	ChangeKindDelete    = "delete"
	ChangeKindDeleteAll = "delete_all"
)

// Processed-by constants. Whichever actor wins the conditional claim on a
// change log entry gets recorded here.
const (
	ProcessedByClient     = "client"
	ProcessedByCancelled  = "cancelled"
	ProcessedByServerCron = "server_cron"
)

// ChangeLogEntry is the durable record of a timeline mutation, written at
// edit time and independent of any in-memory pending change. The processed
// flag transitions false->true exactly once via a conditional update.
type ChangeLogEntry struct {
	ID             string
	EventID        string
	OrganizationID string
	ScheduleID     *string // nil for delete_all
	ChangeKind     string
	OldData        *Schedule
	NewData        *Schedule
	CreatedAt      time.Time
	Processed      bool
	ProcessedAt    *time.Time
	ProcessedBy    string
}

// NewChangeLogEntry creates an unprocessed change log entry from the old and
// new schedule snapshots of one mutation.
func NewChangeLogEntry(eventID, organizationID, changeKind string, oldData, newData *Schedule) *ChangeLogEntry {
	entry := &ChangeLogEntry{
		ID:             uuid.New().String(),
		EventID:        eventID,
		OrganizationID: organizationID,
		ChangeKind:     changeKind,
		OldData:        oldData,
		NewData:        newData,
		CreatedAt:      time.Now().UTC(),
		Processed:      false,
	}
	if newData != nil && newData.ID != "" {
		sid := newData.ID
		entry.ScheduleID = &sid
	} else if oldData != nil && oldData.ID != "" {
		sid := oldData.ID
		entry.ScheduleID = &sid
	}
	return entry
}
