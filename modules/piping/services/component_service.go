package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
)

type ComponentService struct {
	repo      component.Repository
	publisher eventbus.EventBus
}

func NewComponentService(repo component.Repository, publisher eventbus.EventBus) *ComponentService {
	return &ComponentService{repo: repo, publisher: publisher}
}

func (s *ComponentService) GetByID(ctx context.Context, id uuid.UUID) (component.Component, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ComponentService) GetPaginated(ctx context.Context, params *component.FindParams) ([]component.Component, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

// Retire soft-retires a component, freeing its identity key for active use.
// The ledger keeps its events; nothing is deleted.
func (s *ComponentService) Retire(ctx context.Context, id uuid.UUID, reason string) (component.Component, error) {
	actor, err := composables.UseActorID(ctx)
	if err != nil {
		return component.Component{}, err
	}
	var retired component.Component
	run := func(txCtx context.Context) error {
		c, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if c.Retired() {
			retired = c
			return nil
		}
		retired, err = s.repo.Update(txCtx, c.Retire(reason, actor))
		if err != nil {
			return err
		}
		publish(txCtx, s.publisher, component.RetiredEvent{
			ComponentID: retired.ID(),
			ProjectID:   retired.ProjectID(),
			Reason:      reason,
		})
		return nil
	}
	if err := runInTx(ctx, s.publisher, run); err != nil {
		return component.Component{}, err
	}
	return retired, nil
}
