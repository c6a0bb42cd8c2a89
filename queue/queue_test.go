package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"eventflow/changes"
	"eventflow/objects"
	"eventflow/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlannerStore struct{}

func (f *fakePlannerStore) ListParticipants(eventID string) ([]*objects.Participant, error) {
	return nil, nil
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

type fakeScheduleStore struct {
	mu      sync.Mutex
	saved   []*objects.Schedule
	deleted []string
}

func (f *fakeScheduleStore) SaveSchedule(schedule *objects.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, schedule)
	return nil
}

func (f *fakeScheduleStore) DeleteSchedule(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeApplier struct {
	mu      sync.Mutex
	applied int
	err     error
}

func (f *fakeApplier) Apply(plan *planner.SyncPlan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied++
	return nil
}

func (f *fakeApplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied
}

type fakeClaims struct {
	mu     sync.Mutex
	claims map[string]string
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{claims: make(map[string]string)}
}

func (f *fakeClaims) ClaimChange(id, processedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[id]; ok {
		return false, nil
	}
	f.claims[id] = processedBy
	return true, nil
}

func (f *fakeClaims) claimedBy(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[id]
}

func newTestQueue(grace time.Duration, store *fakeScheduleStore, exec *fakeApplier, claims *fakeClaims) *Queue {
	registry := changes.NewScheduleRegistry(planner.New(&fakePlannerStore{}), store)
	return New(grace, registry, exec, claims)
}

func updateCommand(id string) *changes.Command {
	start := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	old := objects.NewSchedule("event-1", "Before", start, start.Add(time.Hour))
	old.ID = "sched-1"
	updated := objects.NewSchedule("event-1", "After", start, start.Add(time.Hour))
	updated.ID = "sched-1"
	return &changes.Command{
		ID:             id,
		Kind:           objects.ChangeKindUpdate,
		EventID:        "event-1",
		OrganizationID: "org-1",
		Old:            old,
		New:            updated,
	}
}

func TestExpiryAppliesExactlyOnceAndClaimsForClient(t *testing.T) {
	store := &fakeScheduleStore{}
	exec := &fakeApplier{}
	claims := newFakeClaims()
	q := newTestQueue(30*time.Millisecond, store, exec, claims)

	q.Enqueue(updateCommand("c1"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, exec.count())
	assert.Equal(t, objects.ProcessedByClient, claims.claimedBy("c1"))
	assert.Equal(t, 0, q.Len())
}

func TestCancelRollsBackAndNeverApplies(t *testing.T) {
	store := &fakeScheduleStore{}
	exec := &fakeApplier{}
	claims := newFakeClaims()
	q := newTestQueue(time.Hour, store, exec, claims)

	cmd := updateCommand("c1")
	q.Enqueue(cmd, &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})

	require.NoError(t, q.Cancel("c1"))
	assert.Equal(t, 0, exec.count())
	assert.Equal(t, objects.ProcessedByCancelled, claims.claimedBy("c1"))

	// Compensation restored the prior snapshot
	require.Len(t, store.saved, 1)
	assert.Equal(t, "Before", store.saved[0].Title)
	assert.Equal(t, 0, q.Len())
}

func TestCancelSucceedsDespiteRollbackFailure(t *testing.T) {
	claims := newFakeClaims()
	q := newTestQueue(time.Hour, &fakeScheduleStore{}, &fakeApplier{}, claims)

	cmd := updateCommand("c1")
	cmd.Old = nil // no snapshot to restore, compensation will fail
	q.Enqueue(cmd, &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})

	require.NoError(t, q.Cancel("c1"))
	assert.Equal(t, objects.ProcessedByCancelled, claims.claimedBy("c1"))
	assert.Equal(t, 0, q.Len())
}

func TestCancelUnknownIdIsNoOp(t *testing.T) {
	q := newTestQueue(time.Hour, &fakeScheduleStore{}, &fakeApplier{}, newFakeClaims())
	assert.NoError(t, q.Cancel("missing"))
}

func TestApplyFailureLeavesChangeUnclaimed(t *testing.T) {
	store := &fakeScheduleStore{}
	exec := &fakeApplier{err: errors.New("db down")}
	claims := newFakeClaims()
	q := newTestQueue(30*time.Millisecond, store, exec, claims)

	q.Enqueue(updateCommand("c1"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})

	time.Sleep(120 * time.Millisecond)
	// The reconciliation worker will pick the entry up later
	assert.Empty(t, claims.claimedBy("c1"))
	assert.Equal(t, 0, q.Len())
}

func TestRemainingSeconds(t *testing.T) {
	q := newTestQueue(10*time.Second, &fakeScheduleStore{}, &fakeApplier{}, newFakeClaims())

	q.Enqueue(updateCommand("c1"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})

	remaining := q.RemainingSeconds("c1")
	assert.Greater(t, remaining, 8)
	assert.LessOrEqual(t, remaining, 10)

	assert.Equal(t, 0, q.RemainingSeconds("missing"))
}

func TestCancelAll(t *testing.T) {
	store := &fakeScheduleStore{}
	claims := newFakeClaims()
	q := newTestQueue(time.Hour, store, &fakeApplier{}, claims)

	q.Enqueue(updateCommand("c1"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})
	q.Enqueue(updateCommand("c2"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m2"}}})

	assert.Equal(t, 2, q.CancelAll())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, objects.ProcessedByCancelled, claims.claimedBy("c1"))
	assert.Equal(t, objects.ProcessedByCancelled, claims.claimedBy("c2"))
}

func TestHasPendingFor(t *testing.T) {
	q := newTestQueue(time.Hour, &fakeScheduleStore{}, &fakeApplier{}, newFakeClaims())

	q.Enqueue(updateCommand("c1"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})

	assert.True(t, q.HasPendingFor(objects.ChangeKindUpdate, "sched-1"))
	assert.False(t, q.HasPendingFor(objects.ChangeKindDelete, "sched-1"))
	assert.False(t, q.HasPendingFor(objects.ChangeKindUpdate, "other"))
}

func TestEachChangeKeepsItsOwnWindow(t *testing.T) {
	exec := &fakeApplier{}
	claims := newFakeClaims()
	q := newTestQueue(60*time.Millisecond, &fakeScheduleStore{}, exec, claims)

	q.Enqueue(updateCommand("c1"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m1"}}})
	time.Sleep(40 * time.Millisecond)
	// A second change does not extend the first one's window
	q.Enqueue(updateCommand("c2"), &planner.SyncPlan{Updates: []planner.MessageUpdate{{ID: "m2"}}})

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, exec.count())
	assert.Equal(t, 1, q.Len())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, exec.count())
}
