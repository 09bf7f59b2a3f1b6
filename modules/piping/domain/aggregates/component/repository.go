package component

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
)

var (
	ErrNotFound      = errors.New("component not found")
	ErrIdentityTaken = errors.New("identity key already taken")
)

type FindParams struct {
	ProjectID uuid.UUID
	DrawingID uuid.UUID
	Type      comptype.Type
	Retired   bool
	Limit     int
	Offset    int
}

// IdentityRecord is the slim projection used for bulk identity preloads during
// import validation: one row per active component of the requested types.
type IdentityRecord struct {
	ComponentID uuid.UUID
	Type        comptype.Type
	Key         IdentityKey
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Component, error)
	// GetByIDForUpdate locks the row for the rest of the transaction, so
	// concurrent milestone reports against one component serialize instead
	// of overwriting each other's state map.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (Component, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Component, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Component, int64, error)
	// ListIdentities bulk-loads every active identity key for the given
	// project and types in one read. Import validation works off this
	// snapshot instead of per-row lookups.
	ListIdentities(ctx context.Context, projectID uuid.UUID, types []comptype.Type) ([]IdentityRecord, error)
	// ListGroup returns the active instances of one grouped identity,
	// ordered by sequence number.
	ListGroup(ctx context.Context, projectID uuid.UUID, groupKey string) ([]Component, error)
	Create(ctx context.Context, c Component) (Component, error)
	CreateMany(ctx context.Context, cs []Component) ([]Component, error)
	Update(ctx context.Context, c Component) (Component, error)
	// UpdateProgress persists only the milestone-state map, cached percent
	// and audit columns; concurrent attribute edits are not clobbered.
	UpdateProgress(ctx context.Context, c Component) (Component, error)
}
