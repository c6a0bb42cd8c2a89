package reconciler

import (
	"errors"
	"testing"
	"time"

	"eventflow/changes"
	"eventflow/objects"
	"eventflow/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlannerStore struct {
	participants []*objects.Participant
}

func (f *fakePlannerStore) ListParticipants(eventID string) ([]*objects.Participant, error) {
	return f.participants, nil
}

func (f *fakePlannerStore) ListActiveReminders(scheduleID string) ([]*objects.Message, error) {
	return nil, nil
}

func (f *fakePlannerStore) ListActiveRemindersByEvent(eventID string) ([]*objects.Message, error) {
	return nil, nil
}

func (f *fakePlannerStore) GetMessageTemplate(organizationID, messageType string) (string, error) {
	return "", nil
}

type fakeScheduleStore struct{}

func (fakeScheduleStore) SaveSchedule(schedule *objects.Schedule) error { return nil }
func (fakeScheduleStore) DeleteSchedule(id string) error                { return nil }

type fakeStore struct {
	entries       []*objects.ChangeLogEntry
	claims        map[string]string
	hasReminders  map[string]bool
	listErr       error
	listedCutoffs []time.Time
}

func newFakeStore(entries ...*objects.ChangeLogEntry) *fakeStore {
	return &fakeStore{
		entries:      entries,
		claims:       make(map[string]string),
		hasReminders: make(map[string]bool),
	}
}

func (f *fakeStore) ListUnprocessedChanges(olderThan time.Time, limit int) ([]*objects.ChangeLogEntry, error) {
	f.listedCutoffs = append(f.listedCutoffs, olderThan)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []*objects.ChangeLogEntry
	for _, entry := range f.entries {
		if !entry.Processed && entry.CreatedAt.Before(olderThan) && len(result) < limit {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (f *fakeStore) ClaimChange(id, processedBy string) (bool, error) {
	if _, ok := f.claims[id]; ok {
		return false, nil
	}
	f.claims[id] = processedBy
	return true, nil
}

func (f *fakeStore) HasActiveReminders(scheduleID string) (bool, error) {
	return f.hasReminders[scheduleID], nil
}

type countingApplier struct {
	applied int
	err     error
}

func (c *countingApplier) Apply(plan *planner.SyncPlan) error {
	if c.err != nil {
		return c.err
	}
	c.applied++
	return nil
}

func abandonedEntry(kind string, age time.Duration) *objects.ChangeLogEntry {
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	schedule := objects.NewSchedule("event-1", "Session", start, start.Add(time.Hour))
	schedule.ID = "sched-1"
	schedule.SendReminder = true

	var old, newData *objects.Schedule
	switch kind {
	case objects.ChangeKindCreate, objects.ChangeKindUpdate:
		newData = schedule
	case objects.ChangeKindDelete:
		old = schedule
	}
	entry := objects.NewChangeLogEntry("event-1", "org-1", kind, old, newData)
	entry.CreatedAt = time.Now().Add(-age)
	return entry
}

func newTestWorker(store *fakeStore, exec *countingApplier, participants []*objects.Participant) *Worker {
	registry := changes.NewScheduleRegistry(planner.New(&fakePlannerStore{participants: participants}), fakeScheduleStore{})
	return NewWorker(store, registry, exec, 90*time.Second, 20)
}

func contactable() []*objects.Participant {
	return []*objects.Participant{{ID: "p1", FirstName: "Alice", Phone: "0501234567"}}
}

func TestRunOnceExecutesAbandonedChange(t *testing.T) {
	entry := abandonedEntry(objects.ChangeKindCreate, 5*time.Minute)
	store := newFakeStore(entry)
	exec := &countingApplier{}
	worker := newTestWorker(store, exec, contactable())

	stats, err := worker.RunOnce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Executed)
	assert.Equal(t, 1, exec.applied)
	assert.Equal(t, objects.ProcessedByServerCron, store.claims[entry.ID])
}

func TestRunOnceRespectsDwell(t *testing.T) {
	// Changes younger than the dwell may still have open grace windows
	entry := abandonedEntry(objects.ChangeKindCreate, 30*time.Second)
	store := newFakeStore(entry)
	exec := &countingApplier{}
	worker := newTestWorker(store, exec, contactable())

	stats, err := worker.RunOnce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Scanned)
	assert.Equal(t, 0, exec.applied)
}

func TestRunOnceSkipsCreateWithExistingReminders(t *testing.T) {
	entry := abandonedEntry(objects.ChangeKindCreate, 5*time.Minute)
	store := newFakeStore(entry)
	store.hasReminders["sched-1"] = true
	exec := &countingApplier{}
	worker := newTestWorker(store, exec, contactable())

	stats, err := worker.RunOnce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, exec.applied)
	assert.Equal(t, 1, stats.Executed)
	// Still claimed so the entry stops showing up
	assert.Equal(t, objects.ProcessedByServerCron, store.claims[entry.ID])
}

func TestRunOnceSkipsCreateWithRemindersDisabled(t *testing.T) {
	entry := abandonedEntry(objects.ChangeKindCreate, 5*time.Minute)
	entry.NewData.SendReminder = false
	store := newFakeStore(entry)
	exec := &countingApplier{}
	worker := newTestWorker(store, exec, contactable())

	_, err := worker.RunOnce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, exec.applied)
	assert.Equal(t, objects.ProcessedByServerCron, store.claims[entry.ID])
}

func TestRunOnceDiscardsLostClaims(t *testing.T) {
	entry := abandonedEntry(objects.ChangeKindUpdate, 5*time.Minute)
	store := newFakeStore(entry)
	// The client claimed it between the list and the claim
	store.claims[entry.ID] = objects.ProcessedByClient
	exec := &countingApplier{}
	worker := newTestWorker(store, exec, contactable())

	stats, err := worker.RunOnce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AlreadyClaimed)
	assert.Equal(t, 0, stats.Executed)
	assert.Equal(t, objects.ProcessedByClient, store.claims[entry.ID])
}

func TestRunOnceIsolatesEntryErrors(t *testing.T) {
	bad := abandonedEntry(objects.ChangeKindUpdate, 5*time.Minute)
	good := abandonedEntry(objects.ChangeKindDelete, 5*time.Minute)
	store := newFakeStore(bad, good)
	exec := &countingApplier{}
	worker := newTestWorker(store, exec, contactable())

	// Break the first entry's plan input
	bad.NewData = nil

	stats, err := worker.RunOnce(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Executed)
	assert.Empty(t, store.claims[bad.ID])
	assert.Equal(t, objects.ProcessedByServerCron, store.claims[good.ID])
}

func TestRunOnceListErrorAborts(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db down")
	worker := newTestWorker(store, &countingApplier{}, nil)

	_, err := worker.RunOnce(time.Now())
	assert.Error(t, err)
}

func TestRunOnceUsesDwellCutoff(t *testing.T) {
	store := newFakeStore()
	worker := newTestWorker(store, &countingApplier{}, nil)

	now := time.Now()
	_, err := worker.RunOnce(now)
	require.NoError(t, err)
	require.Len(t, store.listedCutoffs, 1)
	assert.Equal(t, now.Add(-90*time.Second), store.listedCutoffs[0])
}
