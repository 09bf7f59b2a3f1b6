package component

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatedEvent is published after an import or manual entry commits.
type CreatedEvent struct {
	Result Component
}

// ProgressRecalculatedEvent is published after a milestone write commits, so
// dashboard read models can refresh without the write path waiting on them.
type ProgressRecalculatedEvent struct {
	ComponentID     uuid.UUID
	ProjectID       uuid.UUID
	Milestone       string
	PercentComplete decimal.Decimal
	LedgerEventID   uuid.UUID
}

// RetiredEvent is published when a component is soft-retired.
type RetiredEvent struct {
	ComponentID uuid.UUID
	ProjectID   uuid.UUID
	Reason      string
}
