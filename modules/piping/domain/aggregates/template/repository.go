package template

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
)

var (
	ErrNotFound = errors.New("template not found")
	ErrInvalid  = errors.New("template failed validation")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Template, error)
	// GetActiveByType returns the highest version template for a component type.
	GetActiveByType(ctx context.Context, componentType comptype.Type) (Template, error)
	List(ctx context.Context) ([]Template, error)
	Create(ctx context.Context, t Template) (Template, error)
}
