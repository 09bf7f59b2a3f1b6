package drawing

import "github.com/google/uuid"

// CreatedEvent is published after a drawing is persisted.
type CreatedEvent struct {
	Result Drawing
}

// MergedEvent is published after a duplicate drawing is merged into the one
// it duplicated and retired.
type MergedEvent struct {
	DuplicateID uuid.UUID
	SurvivorID  uuid.UUID
	Moved       int
}
