package services_test

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/milestoneevent"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/constants"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
)

var testActor = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// testContext carries an actor and a transaction marker so services run their
// logic inline instead of opening a real database transaction. The marker is
// never dereferenced: every repository here is in-memory.
func testContext() context.Context {
	ctx := context.WithValue(context.Background(), constants.TxKey, "tx-marker")
	return composables.WithActorID(ctx, testActor)
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

func quietBus() eventbus.EventBus {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return eventbus.NewEventPublisher(log)
}

type alwaysLocker struct{}

func (alwaysLocker) TryLock(context.Context, int64) (bool, error) { return true, nil }

type neverLocker struct{}

func (neverLocker) TryLock(context.Context, int64) (bool, error) { return false, nil }

// memComponentRepo is an in-memory component.Repository preserving insertion
// order, close enough to the real one for pipeline tests.
type memComponentRepo struct {
	items       map[uuid.UUID]component.Component
	order       []uuid.UUID
	lockedReads int
}

func newMemComponentRepo() *memComponentRepo {
	return &memComponentRepo{items: map[uuid.UUID]component.Component{}}
}

func (r *memComponentRepo) GetByID(_ context.Context, id uuid.UUID) (component.Component, error) {
	c, ok := r.items[id]
	if !ok {
		return component.Component{}, component.ErrNotFound
	}
	return c, nil
}

func (r *memComponentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (component.Component, error) {
	r.lockedReads++
	return r.GetByID(ctx, id)
}

func (r *memComponentRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]component.Component, error) {
	var out []component.Component
	for _, id := range ids {
		if c, ok := r.items[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memComponentRepo) GetPaginated(_ context.Context, params *component.FindParams) ([]component.Component, int64, error) {
	var out []component.Component
	for _, id := range r.order {
		c := r.items[id]
		if params != nil {
			if c.Retired() != params.Retired {
				continue
			}
			if params.ProjectID != uuid.Nil && c.ProjectID() != params.ProjectID {
				continue
			}
			if params.DrawingID != uuid.Nil && c.DrawingID() != params.DrawingID {
				continue
			}
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r *memComponentRepo) ListIdentities(_ context.Context, projectID uuid.UUID, types []comptype.Type) ([]component.IdentityRecord, error) {
	wanted := map[comptype.Type]bool{}
	for _, t := range types {
		wanted[t] = true
	}
	var out []component.IdentityRecord
	for _, id := range r.order {
		c := r.items[id]
		if c.Retired() || c.ProjectID() != projectID || !wanted[c.Type()] {
			continue
		}
		out = append(out, component.IdentityRecord{
			ComponentID: c.ID(),
			Type:        c.Type(),
			Key:         c.Identity(),
		})
	}
	return out, nil
}

func (r *memComponentRepo) ListGroup(_ context.Context, projectID uuid.UUID, groupKey string) ([]component.Component, error) {
	var out []component.Component
	for _, id := range r.order {
		c := r.items[id]
		if c.Retired() || c.ProjectID() != projectID {
			continue
		}
		if c.Identity().GroupKey() == groupKey {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identity().Sequence < out[j].Identity().Sequence
	})
	return out, nil
}

func (r *memComponentRepo) Create(_ context.Context, c component.Component) (component.Component, error) {
	for _, id := range r.order {
		existing := r.items[id]
		if existing.Retired() {
			continue
		}
		if existing.ProjectID() == c.ProjectID() &&
			existing.Type() == c.Type() &&
			existing.Identity().String() == c.Identity().String() {
			return component.Component{}, component.ErrIdentityTaken
		}
	}
	now := time.Now()
	created := component.Hydrate(
		uuid.New(), c.ProjectID(), c.Type(), c.TemplateID(), c.Identity(), c.DrawingID(),
		c.Attributes(), c.Milestones(), c.PercentComplete(),
		c.Retired(), c.RetireReason(), c.CreatedBy(), c.UpdatedBy(), now, now,
	)
	r.items[created.ID()] = created
	r.order = append(r.order, created.ID())
	return created, nil
}

func (r *memComponentRepo) CreateMany(ctx context.Context, cs []component.Component) ([]component.Component, error) {
	out := make([]component.Component, 0, len(cs))
	for _, c := range cs {
		created, err := r.Create(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (r *memComponentRepo) Update(_ context.Context, c component.Component) (component.Component, error) {
	if _, ok := r.items[c.ID()]; !ok {
		return component.Component{}, component.ErrNotFound
	}
	r.items[c.ID()] = c
	return c, nil
}

func (r *memComponentRepo) UpdateProgress(ctx context.Context, c component.Component) (component.Component, error) {
	return r.Update(ctx, c)
}

type memDrawingRepo struct {
	items map[uuid.UUID]drawing.Drawing
	order []uuid.UUID
}

func newMemDrawingRepo() *memDrawingRepo {
	return &memDrawingRepo{items: map[uuid.UUID]drawing.Drawing{}}
}

func (r *memDrawingRepo) GetByID(_ context.Context, id uuid.UUID) (drawing.Drawing, error) {
	d, ok := r.items[id]
	if !ok {
		return drawing.Drawing{}, drawing.ErrNotFound
	}
	return d, nil
}

func (r *memDrawingRepo) GetByNormalized(_ context.Context, projectID uuid.UUID, normalized string) (drawing.Drawing, error) {
	for _, id := range r.order {
		d := r.items[id]
		if !d.Retired() && d.ProjectID() == projectID && d.Normalized() == normalized {
			return d, nil
		}
	}
	return drawing.Drawing{}, drawing.ErrNotFound
}

func (r *memDrawingRepo) ListActiveNumbers(_ context.Context, projectID uuid.UUID) ([]drawing.ActiveNumber, error) {
	var out []drawing.ActiveNumber
	for _, id := range r.order {
		d := r.items[id]
		if !d.Retired() && d.ProjectID() == projectID {
			out = append(out, drawing.ActiveNumber{ID: d.ID(), Number: d.Number(), Normalized: d.Normalized()})
		}
	}
	return out, nil
}

func (r *memDrawingRepo) GetPaginated(_ context.Context, params *drawing.FindParams) ([]drawing.Drawing, int64, error) {
	var out []drawing.Drawing
	for _, id := range r.order {
		d := r.items[id]
		if params != nil && d.Retired() != params.Retired {
			continue
		}
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (r *memDrawingRepo) Create(_ context.Context, d drawing.Drawing) (drawing.Drawing, error) {
	for _, id := range r.order {
		existing := r.items[id]
		if !existing.Retired() && existing.ProjectID() == d.ProjectID() && existing.Normalized() == d.Normalized() {
			return drawing.Drawing{}, drawing.ErrNumberTaken
		}
	}
	now := time.Now()
	created := drawing.Hydrate(
		uuid.New(), d.ProjectID(), d.Number(), d.Normalized(), d.Title(), d.Revision(),
		d.Retired(), d.RetireReason(), d.CreatedBy(), now, now,
	)
	r.items[created.ID()] = created
	r.order = append(r.order, created.ID())
	return created, nil
}

func (r *memDrawingRepo) Update(_ context.Context, d drawing.Drawing) (drawing.Drawing, error) {
	if _, ok := r.items[d.ID()]; !ok {
		return drawing.Drawing{}, drawing.ErrNotFound
	}
	r.items[d.ID()] = d
	return d, nil
}

type memTemplateRepo struct {
	items map[uuid.UUID]template.Template
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{items: map[uuid.UUID]template.Template{}}
}

// add hydrates a template with an id, the way a persisted one would come back.
func (r *memTemplateRepo) add(t template.Template) template.Template {
	persisted := template.Hydrate(uuid.New(), t.ComponentType(), t.Name(), t.Version(), t.Milestones(), time.Now())
	r.items[persisted.ID()] = persisted
	return persisted
}

func (r *memTemplateRepo) GetByID(_ context.Context, id uuid.UUID) (template.Template, error) {
	t, ok := r.items[id]
	if !ok {
		return template.Template{}, template.ErrNotFound
	}
	return t, nil
}

func (r *memTemplateRepo) GetActiveByType(_ context.Context, componentType comptype.Type) (template.Template, error) {
	var best template.Template
	for _, t := range r.items {
		if t.ComponentType() != componentType {
			continue
		}
		if best.IsZero() || t.Version() > best.Version() {
			best = t
		}
	}
	if best.IsZero() {
		return template.Template{}, template.ErrNotFound
	}
	return best, nil
}

func (r *memTemplateRepo) List(_ context.Context) ([]template.Template, error) {
	var out []template.Template
	for _, t := range r.items {
		out = append(out, t)
	}
	return out, nil
}

func (r *memTemplateRepo) Create(_ context.Context, t template.Template) (template.Template, error) {
	if err := t.Validate(); err != nil {
		return template.Template{}, err
	}
	return r.add(t), nil
}

type memExceptionRepo struct {
	items map[uuid.UUID]*exception.Record
	order []uuid.UUID
}

func newMemExceptionRepo() *memExceptionRepo {
	return &memExceptionRepo{items: map[uuid.UUID]*exception.Record{}}
}

func (r *memExceptionRepo) GetByID(_ context.Context, id uuid.UUID) (*exception.Record, error) {
	rec, ok := r.items[id]
	if !ok {
		return nil, exception.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *memExceptionRepo) all(params *exception.FindParams) []*exception.Record {
	var out []*exception.Record
	for _, id := range r.order {
		rec := r.items[id]
		if params != nil {
			if params.ProjectID != uuid.Nil && rec.ProjectID != params.ProjectID {
				continue
			}
			if params.Type != "" && rec.Type != params.Type {
				continue
			}
			if params.Status != "" && rec.Status != params.Status {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func (r *memExceptionRepo) List(_ context.Context, params *exception.FindParams) ([]*exception.Record, error) {
	return r.all(params), nil
}

func (r *memExceptionRepo) Count(_ context.Context, params *exception.FindParams) (int64, error) {
	return int64(len(r.all(params))), nil
}

func (r *memExceptionRepo) Create(_ context.Context, rec *exception.Record) (*exception.Record, error) {
	clone := *rec
	clone.ID = uuid.New()
	clone.Status = exception.StatusPending
	clone.CreatedAt = time.Now()
	r.items[clone.ID] = &clone
	r.order = append(r.order, clone.ID)
	return &clone, nil
}

func (r *memExceptionRepo) Update(_ context.Context, rec *exception.Record) (*exception.Record, error) {
	if _, ok := r.items[rec.ID]; !ok {
		return nil, exception.ErrNotFound
	}
	clone := *rec
	r.items[rec.ID] = &clone
	return rec, nil
}

func (r *memExceptionRepo) FindPendingQuantityDelta(_ context.Context, projectID uuid.UUID, groupKey string, cutoff time.Time) (*exception.Record, error) {
	for i := len(r.order) - 1; i >= 0; i-- {
		rec := r.items[r.order[i]]
		if rec.ProjectID != projectID || rec.Type != exception.TypeQuantityDelta || rec.Status != exception.StatusPending {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		var payload exception.QuantityDeltaPayload
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, err
		}
		if payload.GroupKey == groupKey {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, exception.ErrNotFound
}

type memEventRepo struct {
	events []*milestoneevent.Event
}

func newMemEventRepo() *memEventRepo { return &memEventRepo{} }

func (r *memEventRepo) Append(_ context.Context, e *milestoneevent.Event) (*milestoneevent.Event, error) {
	clone := *e
	clone.ID = uuid.New()
	clone.CreatedAt = time.Now()
	r.events = append(r.events, &clone)
	return &clone, nil
}

func (r *memEventRepo) List(_ context.Context, params *milestoneevent.FindParams) ([]*milestoneevent.Event, error) {
	var out []*milestoneevent.Event
	for _, e := range r.events {
		if params != nil {
			if params.ComponentID != uuid.Nil && e.ComponentID != params.ComponentID {
				continue
			}
			if params.Milestone != "" && e.Milestone != params.Milestone {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memEventRepo) Count(ctx context.Context, params *milestoneevent.FindParams) (int64, error) {
	events, err := r.List(ctx, params)
	if err != nil {
		return 0, err
	}
	return int64(len(events)), nil
}

type memOperatorRepo struct {
	items map[uuid.UUID]*operator.Operator
}

func newMemOperatorRepo() *memOperatorRepo {
	return &memOperatorRepo{items: map[uuid.UUID]*operator.Operator{}}
}

func (r *memOperatorRepo) GetByID(_ context.Context, id uuid.UUID) (*operator.Operator, error) {
	o, ok := r.items[id]
	if !ok {
		return nil, operator.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *memOperatorRepo) List(_ context.Context) ([]*operator.Operator, error) {
	var out []*operator.Operator
	for _, o := range r.items {
		clone := *o
		out = append(out, &clone)
	}
	return out, nil
}

func (r *memOperatorRepo) Create(_ context.Context, o *operator.Operator) (*operator.Operator, error) {
	clone := *o
	clone.ID = uuid.New()
	r.items[clone.ID] = &clone
	return &clone, nil
}

func (r *memOperatorRepo) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	o, ok := r.items[id]
	if !ok {
		return operator.ErrNotFound
	}
	o.Verified = verified
	return nil
}
