package changes

import (
	"fmt"
	"log"

	"eventflow/objects"
	"eventflow/planner"
)

// Command names one schedule mutation with enough snapshot data to plan its
// reminder impact and to undo it while it waits in the grace queue.
type Command struct {
	ID             string
	Kind           string
	EventID        string
	OrganizationID string
	Description    string
	Old            *objects.Schedule
	New            *objects.Schedule
	// OldAll carries the pre-change snapshots for a whole-event wipe.
	OldAll []*objects.Schedule
}

// ScheduleStore is the slice of the repository the compensators write through.
type ScheduleStore interface {
	SaveSchedule(schedule *objects.Schedule) error
	DeleteSchedule(id string) error
}

type handler struct {
	plan       func(cmd *Command) (*planner.SyncPlan, error)
	compensate func(cmd *Command) error
}

// Registry maps change kinds to their planning and compensation behavior.
// Handlers are registered data, not captured closures, so the reconciliation
// worker can replay a change from its log entry alone.
type Registry struct {
	handlers map[string]handler
}

func (r *Registry) register(kind string, plan func(*Command) (*planner.SyncPlan, error), compensate func(*Command) error) {
	r.handlers[kind] = handler{plan: plan, compensate: compensate}
}

// Plan computes the reminder impact of the command without touching any rows.
func (r *Registry) Plan(cmd *Command) (*planner.SyncPlan, error) {
	h, ok := r.handlers[cmd.Kind]
	if !ok {
		return nil, fmt.Errorf("no handler registered for change kind %s", cmd.Kind)
	}
	return h.plan(cmd)
}

// Compensate rolls the schedule data back to its pre-change state.
func (r *Registry) Compensate(cmd *Command) error {
	h, ok := r.handlers[cmd.Kind]
	if !ok {
		return fmt.Errorf("no handler registered for change kind %s", cmd.Kind)
	}
	log.Printf("[CHANGES] Compensating %s change %s", cmd.Kind, cmd.ID)
	return h.compensate(cmd)
}

// NewScheduleRegistry wires the four schedule change kinds.
func NewScheduleRegistry(pl *planner.Planner, store ScheduleStore) *Registry {
	r := &Registry{handlers: make(map[string]handler)}

	r.register(objects.ChangeKindCreate,
		func(cmd *Command) (*planner.SyncPlan, error) {
			return pl.ComputePlan(objects.ChangeKindCreate, cmd.EventID, cmd.OrganizationID, cmd.New)
		},
		func(cmd *Command) error {
			if cmd.New == nil {
				return fmt.Errorf("create change %s has no schedule to remove", cmd.ID)
			}
			return store.DeleteSchedule(cmd.New.ID)
		})

	r.register(objects.ChangeKindUpdate,
		func(cmd *Command) (*planner.SyncPlan, error) {
			return pl.ComputePlan(objects.ChangeKindUpdate, cmd.EventID, cmd.OrganizationID, cmd.New)
		},
		func(cmd *Command) error {
			if cmd.Old == nil {
				return fmt.Errorf("update change %s has no prior snapshot", cmd.ID)
			}
			return store.SaveSchedule(cmd.Old)
		})

	r.register(objects.ChangeKindDelete,
		func(cmd *Command) (*planner.SyncPlan, error) {
			return pl.ComputePlan(objects.ChangeKindDelete, cmd.EventID, cmd.OrganizationID, cmd.Old)
		},
		func(cmd *Command) error {
			if cmd.Old == nil {
				return fmt.Errorf("delete change %s has no prior snapshot", cmd.ID)
			}
			return store.SaveSchedule(cmd.Old)
		})

	r.register(objects.ChangeKindDeleteAll,
		func(cmd *Command) (*planner.SyncPlan, error) {
			return pl.ComputePlan(objects.ChangeKindDeleteAll, cmd.EventID, cmd.OrganizationID, nil)
		},
		func(cmd *Command) error {
			for _, schedule := range cmd.OldAll {
				if err := store.SaveSchedule(schedule); err != nil {
					return err
				}
			}
			return nil
		})

	return r
}

// FromLogEntry rebuilds a replayable command from a persisted change.
func FromLogEntry(entry *objects.ChangeLogEntry) *Command {
	return &Command{
		ID:             entry.ID,
		Kind:           entry.ChangeKind,
		EventID:        entry.EventID,
		OrganizationID: entry.OrganizationID,
		Old:            entry.OldData,
		New:            entry.NewData,
	}
}
