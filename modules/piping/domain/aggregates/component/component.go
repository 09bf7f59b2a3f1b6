package component

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
)

// Component is the unit of tracked work. Identity is immutable once assigned
// except through administrator corrections; components are soft-retired, never
// deleted, so the milestone event ledger always has a referent.
type Component struct {
	id              uuid.UUID
	projectID       uuid.UUID
	componentType   comptype.Type
	templateID      uuid.UUID
	identity        IdentityKey
	drawingID       uuid.UUID
	attributes      map[string]string
	milestones      template.State
	percentComplete decimal.Decimal
	retired         bool
	retireReason    string
	createdBy       uuid.UUID
	updatedBy       uuid.UUID
	createdAt       time.Time
	updatedAt       time.Time
}

func New(
	projectID uuid.UUID,
	componentType comptype.Type,
	templateID uuid.UUID,
	identity IdentityKey,
	drawingID uuid.UUID,
	attributes map[string]string,
	createdBy uuid.UUID,
) Component {
	if attributes == nil {
		attributes = map[string]string{}
	}
	return Component{
		projectID:       projectID,
		componentType:   componentType,
		templateID:      templateID,
		identity:        identity,
		drawingID:       drawingID,
		attributes:      attributes,
		milestones:      template.State{},
		percentComplete: decimal.Zero,
		createdBy:       createdBy,
		updatedBy:       createdBy,
	}
}

func Hydrate(
	id uuid.UUID,
	projectID uuid.UUID,
	componentType comptype.Type,
	templateID uuid.UUID,
	identity IdentityKey,
	drawingID uuid.UUID,
	attributes map[string]string,
	milestones template.State,
	percentComplete decimal.Decimal,
	retired bool,
	retireReason string,
	createdBy uuid.UUID,
	updatedBy uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) Component {
	if attributes == nil {
		attributes = map[string]string{}
	}
	if milestones == nil {
		milestones = template.State{}
	}
	return Component{
		id:              id,
		projectID:       projectID,
		componentType:   componentType,
		templateID:      templateID,
		identity:        identity,
		drawingID:       drawingID,
		attributes:      attributes,
		milestones:      milestones,
		percentComplete: percentComplete,
		retired:         retired,
		retireReason:    retireReason,
		createdBy:       createdBy,
		updatedBy:       updatedBy,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

func (c Component) ID() uuid.UUID                    { return c.id }
func (c Component) ProjectID() uuid.UUID             { return c.projectID }
func (c Component) Type() comptype.Type              { return c.componentType }
func (c Component) TemplateID() uuid.UUID            { return c.templateID }
func (c Component) Identity() IdentityKey            { return c.identity }
func (c Component) DrawingID() uuid.UUID             { return c.drawingID }
func (c Component) Attributes() map[string]string    { return c.attributes }
func (c Component) Milestones() template.State       { return c.milestones }
func (c Component) PercentComplete() decimal.Decimal { return c.percentComplete }
func (c Component) Retired() bool                    { return c.retired }
func (c Component) RetireReason() string             { return c.retireReason }
func (c Component) CreatedBy() uuid.UUID             { return c.createdBy }
func (c Component) UpdatedBy() uuid.UUID             { return c.updatedBy }
func (c Component) CreatedAt() time.Time             { return c.createdAt }
func (c Component) UpdatedAt() time.Time             { return c.updatedAt }
func (c Component) IsZero() bool                     { return c.id == uuid.Nil }

// MilestoneValue returns the cached progress value of a milestone.
func (c Component) MilestoneValue(name string) float64 {
	return c.milestones[name]
}

// WithMilestone returns a copy whose milestone-state map carries the new value
// and whose cached percent is recomputed from tpl. The event recording the
// change is the caller's responsibility; the map here is only the cache.
func (c Component) WithMilestone(tpl template.Template, name string, value float64, actor uuid.UUID) Component {
	next := template.State{}
	for k, v := range c.milestones {
		next[k] = v
	}
	next[name] = value
	c.milestones = next
	c.percentComplete = tpl.Completion(next)
	c.updatedBy = actor
	return c
}

// WithAttributes merges new attribute-bag entries, newest winning.
func (c Component) WithAttributes(attrs map[string]string, actor uuid.UUID) Component {
	merged := make(map[string]string, len(c.attributes)+len(attrs))
	for k, v := range c.attributes {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	c.attributes = merged
	c.updatedBy = actor
	return c
}

// WithDrawing re-points the component at another parent drawing, used when a
// duplicate drawing is merged into the one it duplicated.
func (c Component) WithDrawing(drawingID uuid.UUID, actor uuid.UUID) Component {
	c.drawingID = drawingID
	c.updatedBy = actor
	return c
}

// Retire soft-deletes the component. Retired components no longer occupy
// their identity key.
func (c Component) Retire(reason string, actor uuid.UUID) Component {
	c.retired = true
	c.retireReason = reason
	c.updatedBy = actor
	return c
}
