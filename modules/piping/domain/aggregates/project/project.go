package project

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Project scopes everything: drawings, components, exceptions. Identity
// uniqueness never crosses a project boundary.
type Project struct {
	id        uuid.UUID
	code      string
	name      string
	createdAt time.Time
}

func New(code, name string) Project {
	return Project{code: code, name: name}
}

func Hydrate(id uuid.UUID, code, name string, createdAt time.Time) Project {
	return Project{id: id, code: code, name: name, createdAt: createdAt}
}

func (p Project) ID() uuid.UUID        { return p.id }
func (p Project) Code() string         { return p.code }
func (p Project) Name() string         { return p.name }
func (p Project) CreatedAt() time.Time { return p.createdAt }
func (p Project) IsZero() bool         { return p.id == uuid.Nil && p.code == "" }

var (
	ErrNotFound  = errors.New("project not found")
	ErrCodeTaken = errors.New("project code already taken")
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Project, error)
	GetByCode(ctx context.Context, code string) (Project, error)
	List(ctx context.Context) ([]Project, error)
	Create(ctx context.Context, p Project) (Project, error)
}
