package services

import (
	"context"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
)

type OperatorService struct {
	repo operator.Repository
}

func NewOperatorService(repo operator.Repository) *OperatorService {
	return &OperatorService{repo: repo}
}

func (s *OperatorService) GetByID(ctx context.Context, id uuid.UUID) (*operator.Operator, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *OperatorService) List(ctx context.Context) ([]*operator.Operator, error) {
	return s.repo.List(ctx)
}

func (s *OperatorService) Create(ctx context.Context, name, badge string) (*operator.Operator, error) {
	name = strings.TrimSpace(name)
	badge = strings.TrimSpace(badge)
	if name == "" || badge == "" {
		return nil, gerrors.New("operator name and badge are required")
	}
	return s.repo.Create(ctx, &operator.Operator{Name: name, Badge: badge})
}

func (s *OperatorService) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return s.repo.SetVerified(ctx, id, verified)
}
