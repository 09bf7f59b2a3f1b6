package services

import (
	"context"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
)

type ProjectService struct {
	repo project.Repository
}

func NewProjectService(repo project.Repository) *ProjectService {
	return &ProjectService{repo: repo}
}

func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (project.Project, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProjectService) GetByCode(ctx context.Context, code string) (project.Project, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

func (s *ProjectService) List(ctx context.Context) ([]project.Project, error) {
	return s.repo.List(ctx)
}

func (s *ProjectService) Create(ctx context.Context, code, name string) (project.Project, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return project.Project{}, gerrors.New("empty project code")
	}
	return s.repo.Create(ctx, project.New(code, strings.TrimSpace(name)))
}
