package services

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/milestoneevent"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
	"github.com/pipetrak/pipetrak/pkg/metrics"
)

var (
	ErrUnknownMilestone  = errors.New("milestone not in template")
	ErrComponentRetired  = errors.New("component is retired")
	ErrDiscreteMilestone = errors.New("milestone does not accept partial values")
	ErrValueOutOfRange   = errors.New("milestone value must be in [0, 100]")
)

// ProgressService applies milestone reports: every accepted report appends a
// ledger event, recomputes the cached percent and queues exceptions for
// anything a supervisor should see. Out-of-order work is accepted and
// flagged, never rejected; the field already did it.
type ProgressService struct {
	components component.Repository
	templates  template.Repository
	events     milestoneevent.Repository
	operators  operator.Repository
	exceptions *ExceptionService
	publisher  eventbus.EventBus
}

func NewProgressService(
	components component.Repository,
	templates template.Repository,
	events milestoneevent.Repository,
	operators operator.Repository,
	exceptions *ExceptionService,
	publisher eventbus.EventBus,
) *ProgressService {
	return &ProgressService{
		components: components,
		templates:  templates,
		events:     events,
		operators:  operators,
		exceptions: exceptions,
		publisher:  publisher,
	}
}

// Update applies one milestone report to one component and returns the
// updated component together with the id of the ledger event it appended.
// value is only read for ActionUpdate; complete and rollback imply 100 and 0.
func (s *ProgressService) Update(ctx context.Context, componentID uuid.UUID, milestone string, action milestoneevent.Action, value float64, metadata map[string]string) (component.Component, uuid.UUID, error) {
	actor, err := composables.UseActorID(ctx)
	if err != nil {
		return component.Component{}, uuid.Nil, err
	}

	var res applied
	run := func(txCtx context.Context) error {
		res, err = s.apply(txCtx, componentID, milestone, action, value, metadata, actor)
		return err
	}
	if err := runInTx(ctx, s.publisher, run); err != nil {
		return component.Component{}, uuid.Nil, err
	}
	return res.component, res.eventID, nil
}

// applied is the outcome of one accepted report.
type applied struct {
	component component.Component
	eventID   uuid.UUID
	flagged   bool
}

func (s *ProgressService) apply(ctx context.Context, componentID uuid.UUID, milestone string, action milestoneevent.Action, value float64, metadata map[string]string, actor uuid.UUID) (applied, error) {
	if !action.Valid() {
		return applied{}, gerrors.Errorf("unknown action %q", action)
	}
	// The row lock serializes reports against the same component: without it
	// two read-committed writers would each fold their milestone into the
	// pre-state and the second commit would erase the first's.
	c, err := s.components.GetByIDForUpdate(ctx, componentID)
	if err != nil {
		return applied{}, err
	}
	if c.Retired() {
		return applied{}, ErrComponentRetired
	}
	tpl, err := s.templates.GetByID(ctx, c.TemplateID())
	if err != nil {
		return applied{}, err
	}
	def, ok := tpl.Milestone(milestone)
	if !ok {
		return applied{}, ErrUnknownMilestone
	}

	newValue, err := targetValue(def, action, value)
	if err != nil {
		return applied{}, err
	}
	prev := c.MilestoneValue(milestone)

	event, err := s.events.Append(ctx, &milestoneevent.Event{
		ComponentID:   c.ID(),
		ProjectID:     c.ProjectID(),
		Milestone:     milestone,
		Action:        action,
		Value:         newValue,
		PreviousValue: prev,
		ActorID:       actor,
		Metadata:      metadata,
	})
	if err != nil {
		return applied{}, err
	}
	metrics.MilestoneEvents.WithLabelValues(string(action)).Inc()

	updated, err := s.components.UpdateProgress(ctx, c.WithMilestone(tpl, milestone, newValue, actor))
	if err != nil {
		return applied{}, err
	}

	flagged, err := s.flagAnomalies(ctx, updated, tpl, milestone, action, prev, actor)
	if err != nil {
		return applied{}, err
	}

	publish(ctx, s.publisher, component.ProgressRecalculatedEvent{
		ComponentID:     updated.ID(),
		ProjectID:       updated.ProjectID(),
		Milestone:       milestone,
		PercentComplete: updated.PercentComplete(),
		LedgerEventID:   event.ID,
	})
	return applied{component: updated, eventID: event.ID, flagged: flagged}, nil
}

func targetValue(def template.Milestone, action milestoneevent.Action, value float64) (float64, error) {
	switch action {
	case milestoneevent.ActionComplete:
		return 100, nil
	case milestoneevent.ActionRollback:
		return 0, nil
	default:
		if value < 0 || value > 100 {
			return 0, ErrValueOutOfRange
		}
		if !def.Partial && value != 0 && value != 100 {
			return 0, ErrDiscreteMilestone
		}
		return value, nil
	}
}

// flagAnomalies queues the non-blocking exceptions a report can trigger:
// completion ahead of its prerequisites, rollback of completed work, and
// reports from unverified operators. The bool reports whether the work was
// out of sequence.
func (s *ProgressService) flagAnomalies(ctx context.Context, c component.Component, tpl template.Template, milestone string, action milestoneevent.Action, prev float64, actor uuid.UUID) (bool, error) {
	componentID := c.ID()
	outOfSequence := false

	if action == milestoneevent.ActionComplete {
		if violated := tpl.ViolatedPrerequisites(milestone, c.Milestones()); len(violated) > 0 {
			payload := exception.OutOfSequencePayload{Milestone: milestone, Prerequisites: violated}
			if _, err := s.exceptions.Raise(ctx, c.ProjectID(), &componentID, exception.TypeOutOfSequence, payload, actor); err != nil {
				return false, err
			}
			outOfSequence = true
		}
	}
	if action == milestoneevent.ActionRollback && prev >= 100 {
		payload := exception.RollbackPayload{Milestone: milestone, PreviousValue: prev}
		if _, err := s.exceptions.Raise(ctx, c.ProjectID(), &componentID, exception.TypeRollback, payload, actor); err != nil {
			return false, err
		}
	}

	op, err := s.operators.GetByID(ctx, actor)
	switch {
	case errors.Is(err, operator.ErrNotFound):
		// Not a field operator (admin or service account): nothing to verify.
	case err != nil:
		return false, err
	case !op.Verified:
		payload := exception.UnverifiedActorPayload{OperatorID: actor, Milestone: milestone}
		if _, err := s.exceptions.Raise(ctx, c.ProjectID(), &componentID, exception.TypeUnverifiedActor, payload, actor); err != nil {
			return false, err
		}
	}
	return outOfSequence, nil
}

// BulkResult reports a bulk milestone completion. Skipped components either
// lack the milestone in their template or are retired; flagged ones were
// updated but completed ahead of their prerequisites.
type BulkResult struct {
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Flagged int        `json:"flagged"`
	Errors  []RowError `json:"errors"`
}

// BulkComplete marks one milestone complete across many components in a
// single transaction. Inapplicable components are skipped with a reason
// instead of failing the rest.
func (s *ProgressService) BulkComplete(ctx context.Context, componentIDs []uuid.UUID, milestone string) (*BulkResult, error) {
	actor, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	run := func(txCtx context.Context) error {
		for i, id := range componentIDs {
			res, err := s.apply(txCtx, id, milestone, milestoneevent.ActionComplete, 0, nil, actor)
			switch {
			case err == nil:
				result.Updated++
				if res.flagged {
					result.Flagged++
				}
			case errors.Is(err, ErrUnknownMilestone), errors.Is(err, ErrComponentRetired), errors.Is(err, component.ErrNotFound):
				result.Skipped++
				result.Errors = append(result.Errors, RowError{Row: i, Field: "component_id", Reason: err.Error()})
			default:
				return err
			}
		}
		return nil
	}
	if err := runInTx(ctx, s.publisher, run); err != nil {
		return nil, err
	}
	return result, nil
}

// History lists a component's ledger events in append order.
func (s *ProgressService) History(ctx context.Context, params *milestoneevent.FindParams) ([]*milestoneevent.Event, int64, error) {
	if params == nil {
		params = &milestoneevent.FindParams{}
	}
	events, err := s.events.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.events.Count(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return events, count, nil
}
