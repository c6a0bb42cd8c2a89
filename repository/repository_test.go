package repository

import (
	"database/sql"
	"testing"
	"time"

	"eventflow/objects"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a real database connection for testing
func setupTestDB(t *testing.T) *sql.DB {
	// Connect to the test PostgreSQL instance (Docker port mapping)
	connStr := "host=localhost port=15433 user=eventflow password=eventflow dbname=eventflow_test sslmode=disable"

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Logf("Failed to connect to test database: %v", err)
		t.Skip("Database tests require PostgreSQL connection")
		return nil
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		t.Logf("Failed to ping test database: %v", err)
		t.Skip("Database tests require PostgreSQL connection")
		return nil
	}

	return db
}

func seedEvent(t *testing.T, db *sql.DB) (orgID, eventID string) {
	orgID = uuid.New().String()
	eventID = uuid.New().String()

	_, err := db.Exec(`INSERT INTO organizations (id, name) VALUES ($1, 'Test Org')`, orgID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO events (id, organization_id, title) VALUES ($1, $2, 'Test Event')`,
		eventID, orgID)
	require.NoError(t, err)
	return orgID, eventID
}

func seedParticipant(t *testing.T, db *sql.DB, eventID, phone string) string {
	id := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO participants (id, event_id, first_name, phone) VALUES ($1, $2, 'Test', $3)`,
		id, eventID, phone)
	require.NoError(t, err)
	return id
}

func TestScheduleSaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewRepository(db)
	_, eventID := seedEvent(t, db)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	schedule := objects.NewSchedule(eventID, "Opening Keynote", start, start.Add(time.Hour))
	schedule.Location = "Main Hall"
	schedule.SendReminder = true

	require.NoError(t, repo.SaveSchedule(schedule))
	require.NotEmpty(t, schedule.ID)

	found := repo.FindSchedule(schedule.ID)
	require.NotNil(t, found)
	assert.Equal(t, "Opening Keynote", found.Title)
	assert.Equal(t, "Main Hall", found.Location)
	assert.True(t, found.SendReminder)

	// Upsert restores an earlier snapshot
	schedule.Title = "Renamed"
	require.NoError(t, repo.SaveSchedule(schedule))
	found = repo.FindSchedule(schedule.ID)
	assert.Equal(t, "Renamed", found.Title)
}

func TestFindScheduleMissingReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewRepository(db)
	assert.Nil(t, repo.FindSchedule(uuid.New().String()))
}

func TestCreateMessagesDeduplicates(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewRepository(db)
	orgID, eventID := seedEvent(t, db)
	participantID := seedParticipant(t, db, eventID, "0501234567")

	start := time.Now().Add(24 * time.Hour)
	schedule := objects.NewSchedule(eventID, "Session", start, start.Add(time.Hour))
	schedule.SendReminder = true
	require.NoError(t, repo.SaveSchedule(schedule))

	message := objects.NewReminderMessage(eventID, orgID, schedule.ID, participantID, "972501234567")
	message.Content = "Reminder"

	created, err := repo.CreateMessages([]*objects.Message{message})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.NotEmpty(t, message.ID)

	// A second pass for the same pair is a silent skip
	duplicate := objects.NewReminderMessage(eventID, orgID, schedule.ID, participantID, "972501234567")
	duplicate.Content = "Reminder"
	created, err = repo.CreateMessages([]*objects.Message{duplicate})
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	active, err := repo.ListActiveReminders(schedule.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestClaimChangeIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewRepository(db)
	orgID, eventID := seedEvent(t, db)

	entry := objects.NewChangeLogEntry(eventID, orgID, objects.ChangeKindDeleteAll, nil, nil)
	require.NoError(t, repo.CreateChangeLogEntry(entry))

	claimed, err := repo.ClaimChange(entry.ID, objects.ProcessedByClient)
	require.NoError(t, err)
	assert.True(t, claimed)

	// The second claimant loses
	claimed, err = repo.ClaimChange(entry.ID, objects.ProcessedByServerCron)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestListUnprocessedChangesHonorsCutoff(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewRepository(db)
	orgID, eventID := seedEvent(t, db)

	old := objects.NewChangeLogEntry(eventID, orgID, objects.ChangeKindDeleteAll, nil, nil)
	old.CreatedAt = time.Now().Add(-5 * time.Minute)
	require.NoError(t, repo.CreateChangeLogEntry(old))

	fresh := objects.NewChangeLogEntry(eventID, orgID, objects.ChangeKindDeleteAll, nil, nil)
	require.NoError(t, repo.CreateChangeLogEntry(fresh))

	entries, err := repo.ListUnprocessedChanges(time.Now().Add(-90*time.Second), 20)
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, entry := range entries {
		ids[entry.ID] = true
	}
	assert.True(t, ids[old.ID])
	assert.False(t, ids[fresh.ID])
}

func TestChangeLogRoundTripsSnapshots(t *testing.T) {
	db := setupTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewRepository(db)
	orgID, eventID := seedEvent(t, db)

	start := time.Now().Add(24 * time.Hour).Truncate(time.Second).UTC()
	schedule := objects.NewSchedule(eventID, "Session", start, start.Add(time.Hour))
	schedule.ID = uuid.New().String()
	schedule.SendReminder = true

	entry := objects.NewChangeLogEntry(eventID, orgID, objects.ChangeKindCreate, nil, schedule)
	entry.CreatedAt = time.Now().Add(-5 * time.Minute)
	require.NoError(t, repo.CreateChangeLogEntry(entry))

	entries, err := repo.ListUnprocessedChanges(time.Now(), 20)
	require.NoError(t, err)

	var loaded *objects.ChangeLogEntry
	for _, e := range entries {
		if e.ID == entry.ID {
			loaded = e
		}
	}
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.NewData)
	assert.Equal(t, schedule.ID, loaded.NewData.ID)
	assert.Equal(t, "Session", loaded.NewData.Title)
	assert.True(t, loaded.NewData.SendReminder)
	assert.Nil(t, loaded.OldData)
}
