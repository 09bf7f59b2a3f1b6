package drawing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("drawing not found")
	ErrNumberTaken = errors.New("drawing number already taken")
)

type FindParams struct {
	ProjectID uuid.UUID
	Q         string
	Retired   bool
	Limit     int
	Offset    int
}

// ActiveNumber is the slim projection the similarity index is built from.
// Number keeps the stored spelling so imports can tell a cosmetic variant
// from an exact re-submission.
type ActiveNumber struct {
	ID         uuid.UUID
	Number     string
	Normalized string
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Drawing, error)
	GetByNormalized(ctx context.Context, projectID uuid.UUID, normalized string) (Drawing, error)
	// ListActiveNumbers returns every active drawing number of the project in
	// one read, for building the in-memory similarity index.
	ListActiveNumbers(ctx context.Context, projectID uuid.UUID) ([]ActiveNumber, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Drawing, int64, error)
	Create(ctx context.Context, d Drawing) (Drawing, error)
	Update(ctx context.Context, d Drawing) (Drawing, error)
}
