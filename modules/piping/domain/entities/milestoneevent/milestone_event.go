package milestoneevent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action is what happened to a milestone.
type Action string

const (
	ActionComplete Action = "complete"
	ActionRollback Action = "rollback"
	ActionUpdate   Action = "update"
)

func (a Action) Valid() bool {
	switch a {
	case ActionComplete, ActionRollback, ActionUpdate:
		return true
	}
	return false
}

// Event is one immutable entry of the progress ledger. The ledger is the
// source of truth: the milestone-state map on the component must always be
// reconstructable by replaying a component's events in order.
type Event struct {
	ID            uuid.UUID
	ComponentID   uuid.UUID
	ProjectID     uuid.UUID
	Milestone     string
	Action        Action
	Value         float64
	PreviousValue float64
	ActorID       uuid.UUID
	Metadata      map[string]string
	CreatedAt     time.Time
}

var ErrNotFound = errors.New("milestone event not found")

type FindParams struct {
	ComponentID uuid.UUID
	Milestone   string
	Limit       int
	Offset      int
}

// Repository is append-only. There is no update or delete: corrections are
// expressed as new rollback/update events.
type Repository interface {
	Append(ctx context.Context, e *Event) (*Event, error)
	List(ctx context.Context, params *FindParams) ([]*Event, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
}

// Replay folds a component's events into the milestone-state map they imply.
// Used by audit tooling to verify the cached state, never on the hot path.
func Replay(events []*Event) map[string]float64 {
	state := map[string]float64{}
	for _, e := range events {
		switch e.Action {
		case ActionComplete:
			state[e.Milestone] = 100
		case ActionRollback:
			state[e.Milestone] = 0
		case ActionUpdate:
			state[e.Milestone] = e.Value
		}
	}
	return state
}
