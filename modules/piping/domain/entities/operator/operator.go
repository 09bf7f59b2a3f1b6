package operator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Operator is a field worker reporting milestone completions. Unverified
// operators can still report (work happened either way) but their reports
// raise a needs-review exception.
type Operator struct {
	ID        uuid.UUID
	Name      string
	Badge     string
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var ErrNotFound = errors.New("operator not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Operator, error)
	List(ctx context.Context) ([]*Operator, error)
	Create(ctx context.Context, o *Operator) (*Operator, error)
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
}
