package services

import (
	"context"
	"encoding/json"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
	"github.com/pipetrak/pipetrak/pkg/metrics"
)

// ExceptionService owns the needs-review queue. Raising never blocks the
// pipeline that detected the anomaly; resolution applies the type-specific
// follow-up (for quantity reductions, retiring the excess instances).
type ExceptionService struct {
	repo           exception.Repository
	components     component.Repository
	drawings       drawing.Repository
	publisher      eventbus.EventBus
	coalesceWindow time.Duration
}

func NewExceptionService(
	repo exception.Repository,
	components component.Repository,
	drawings drawing.Repository,
	publisher eventbus.EventBus,
	conf configuration.ImportOptions,
) *ExceptionService {
	return &ExceptionService{
		repo:           repo,
		components:     components,
		drawings:       drawings,
		publisher:      publisher,
		coalesceWindow: conf.DeltaCoalesceWindow,
	}
}

func (s *ExceptionService) GetByID(ctx context.Context, id uuid.UUID) (*exception.Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ExceptionService) List(ctx context.Context, params *exception.FindParams) ([]*exception.Record, int64, error) {
	if params == nil {
		params = &exception.FindParams{}
	}
	records, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.Count(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return records, count, nil
}

// Raise queues a new exception. The payload must be one of the typed payload
// structs of the exception package.
func (s *ExceptionService) Raise(ctx context.Context, projectID uuid.UUID, componentID *uuid.UUID, typ exception.Type, payload any, actor uuid.UUID) (*exception.Record, error) {
	if !typ.Valid() {
		return nil, gerrors.Errorf("unknown exception type %q", typ)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal exception payload")
	}
	created, err := s.repo.Create(ctx, &exception.Record{
		ProjectID:   projectID,
		ComponentID: componentID,
		Type:        typ,
		Payload:     raw,
		CreatedBy:   actor,
	})
	if err != nil {
		return nil, err
	}
	metrics.ExceptionsRaised.WithLabelValues(string(typ)).Inc()
	publish(ctx, s.publisher, exception.RaisedEvent{Record: created})
	return created, nil
}

// RaiseQuantityDelta queues a quantity-delta exception, folding it into a
// pending one for the same group raised within the coalesce window instead of
// stacking near-identical records. Deltas sum; the requested quantity is the
// latest observation.
func (s *ExceptionService) RaiseQuantityDelta(ctx context.Context, projectID uuid.UUID, payload exception.QuantityDeltaPayload, actor uuid.UUID) (*exception.Record, error) {
	cutoff := time.Now().Add(-s.coalesceWindow)
	existing, err := s.repo.FindPendingQuantityDelta(ctx, projectID, payload.GroupKey, cutoff)
	if err != nil && !gerrors.Is(err, exception.ErrNotFound) {
		return nil, err
	}
	if existing == nil {
		return s.Raise(ctx, projectID, nil, exception.TypeQuantityDelta, payload, actor)
	}

	var merged exception.QuantityDeltaPayload
	if err := json.Unmarshal(existing.Payload, &merged); err != nil {
		return nil, gerrors.Wrap(err, "unmarshal pending quantity delta")
	}
	merged.Delta += payload.Delta
	merged.RequestedQty = payload.RequestedQty
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal merged quantity delta")
	}
	existing.Payload = raw
	return s.repo.Update(ctx, existing)
}

// ResolveParams carries the reviewer's decision alongside the note.
type ResolveParams struct {
	Note string
	// MergeIntoDrawingID, on a similar-drawing exception, merges the flagged
	// duplicate into this existing drawing: components referencing the
	// duplicate are re-pointed and the duplicate is retired. Left zero, the
	// resolution is a plain confirmation that both numbers are distinct.
	MergeIntoDrawingID uuid.UUID
}

// Resolve closes a pending exception and applies its follow-up. Resolving a
// negative quantity delta retires the highest-sequence excess instances of
// the group; a similar-drawing exception may merge the duplicate away; every
// other type resolves as an acknowledgement.
func (s *ExceptionService) Resolve(ctx context.Context, id uuid.UUID, actor uuid.UUID, params ResolveParams) (*exception.Record, error) {
	var closed *exception.Record
	run := func(txCtx context.Context) error {
		rec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if rec.Status != exception.StatusPending {
			return exception.ErrTerminal
		}
		switch {
		case rec.Type == exception.TypeQuantityDelta:
			if err := s.applyQuantityDelta(txCtx, rec, actor); err != nil {
				return err
			}
		case rec.Type == exception.TypeSimilarDrawing && params.MergeIntoDrawingID != uuid.Nil:
			if err := s.applySimilarMerge(txCtx, rec, params.MergeIntoDrawingID, actor); err != nil {
				return err
			}
		}
		closed, err = s.close(txCtx, rec, exception.StatusResolved, actor, params.Note)
		return err
	}
	if err := runInTx(ctx, s.publisher, run); err != nil {
		return nil, err
	}
	return closed, nil
}

// Ignore closes a pending exception without applying anything.
func (s *ExceptionService) Ignore(ctx context.Context, id uuid.UUID, actor uuid.UUID, note string) (*exception.Record, error) {
	var closed *exception.Record
	run := func(txCtx context.Context) error {
		rec, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if rec.Status != exception.StatusPending {
			return exception.ErrTerminal
		}
		closed, err = s.close(txCtx, rec, exception.StatusIgnored, actor, note)
		return err
	}
	if err := runInTx(ctx, s.publisher, run); err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *ExceptionService) close(ctx context.Context, rec *exception.Record, status exception.Status, actor uuid.UUID, note string) (*exception.Record, error) {
	now := time.Now()
	rec.Status = status
	rec.ResolvedBy = &actor
	rec.ResolutionNote = note
	rec.ResolvedAt = &now
	return s.repo.Update(ctx, rec)
}

// applySimilarMerge folds a duplicate drawing into the one it duplicated:
// every active component still referencing the duplicate moves over, then the
// duplicate is retired so its number frees up.
func (s *ExceptionService) applySimilarMerge(ctx context.Context, rec *exception.Record, into uuid.UUID, actor uuid.UUID) error {
	var payload exception.SimilarDrawingPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return gerrors.Wrap(err, "unmarshal similar drawing")
	}
	if payload.DrawingID == uuid.Nil {
		return gerrors.New("similar-drawing exception has no persisted duplicate to merge")
	}
	if payload.DrawingID == into {
		return gerrors.New("cannot merge a drawing into itself")
	}
	survivor, err := s.drawings.GetByID(ctx, into)
	if err != nil {
		return err
	}
	if survivor.Retired() {
		return gerrors.Errorf("merge target %q is retired", survivor.Number())
	}
	dup, err := s.drawings.GetByID(ctx, payload.DrawingID)
	if err != nil {
		return err
	}

	moved, _, err := s.components.GetPaginated(ctx, &component.FindParams{DrawingID: dup.ID()})
	if err != nil {
		return err
	}
	for _, c := range moved {
		if _, err := s.components.Update(ctx, c.WithDrawing(survivor.ID(), actor)); err != nil {
			return err
		}
	}
	if _, err := s.drawings.Update(ctx, dup.Retire("merged into "+survivor.Normalized())); err != nil {
		return err
	}
	publish(ctx, s.publisher, drawing.MergedEvent{
		DuplicateID: dup.ID(),
		SurvivorID:  survivor.ID(),
		Moved:       len(moved),
	})
	return nil
}

func (s *ExceptionService) applyQuantityDelta(ctx context.Context, rec *exception.Record, actor uuid.UUID) error {
	var payload exception.QuantityDeltaPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		return gerrors.Wrap(err, "unmarshal quantity delta")
	}
	if payload.Delta >= 0 {
		// Positive deltas were already materialized at import time.
		return nil
	}
	instances, err := s.components.ListGroup(ctx, rec.ProjectID, payload.GroupKey)
	if err != nil {
		return err
	}
	excess := -payload.Delta
	if excess > len(instances) {
		excess = len(instances)
	}
	// Retire from the highest sequence down so the survivors stay contiguous.
	for i := len(instances) - 1; i >= len(instances)-excess; i-- {
		retired := instances[i].Retire("quantity reduced on re-import", actor)
		if _, err := s.components.Update(ctx, retired); err != nil {
			return err
		}
		publish(ctx, s.publisher, component.RetiredEvent{
			ComponentID: retired.ID(),
			ProjectID:   retired.ProjectID(),
			Reason:      retired.RetireReason(),
		})
	}
	return nil
}
