package persistence

import (
	"encoding/json"

	gerrors "github.com/go-faster/errors"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/milestoneevent"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
)

func toDomainProject(row *models.Project) project.Project {
	return project.Hydrate(row.ID, row.Code, row.Name, row.CreatedAt)
}

func toDomainOperator(row *models.Operator) *operator.Operator {
	return &operator.Operator{
		ID:        row.ID,
		Name:      row.Name,
		Badge:     row.Badge,
		Verified:  row.Verified,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toDomainDrawing(row *models.Drawing) drawing.Drawing {
	return drawing.Hydrate(
		row.ID,
		row.ProjectID,
		row.Number,
		row.Normalized,
		row.Title,
		row.Revision,
		row.Retired,
		row.RetireReason,
		row.CreatedBy,
		row.CreatedAt,
		row.UpdatedAt,
	)
}

func toDomainTemplate(row *models.ProgressTemplate, milestones []*models.TemplateMilestone) template.Template {
	ms := make([]template.Milestone, 0, len(milestones))
	for _, m := range milestones {
		ms = append(ms, template.Milestone{
			Name:    m.Name,
			Weight:  m.Weight,
			Partial: m.Partial,
			Order:   m.Ord,
		})
	}
	return template.Hydrate(
		row.ID,
		comptype.Type(row.ComponentType),
		row.Name,
		row.Version,
		ms,
		row.CreatedAt,
	)
}

func toDomainComponent(row *models.Component) (component.Component, error) {
	var attrs map[string]string
	if len(row.Attributes) > 0 {
		if err := json.Unmarshal(row.Attributes, &attrs); err != nil {
			return component.Component{}, gerrors.Wrap(err, "decode component attributes")
		}
	}
	var state template.State
	if len(row.MilestoneState) > 0 {
		if err := json.Unmarshal(row.MilestoneState, &state); err != nil {
			return component.Component{}, gerrors.Wrap(err, "decode milestone state")
		}
	}

	key := component.IdentityKey{
		Class:      comptype.IdentityClass(row.IdentityClass),
		NaturalKey: row.NaturalKey,
		Drawing:    row.GroupDrawing,
		Commodity:  row.CommodityCode,
		Size:       row.Size,
		Sequence:   row.SequenceNo,
	}

	return component.Hydrate(
		row.ID,
		row.ProjectID,
		comptype.Type(row.ComponentType),
		row.TemplateID,
		key,
		row.DrawingID,
		attrs,
		state,
		row.PercentComplete,
		row.Retired,
		row.RetireReason,
		row.CreatedBy,
		row.UpdatedBy,
		row.CreatedAt,
		row.UpdatedAt,
	), nil
}

func toDBComponent(c component.Component) (*models.Component, error) {
	attrs, err := json.Marshal(c.Attributes())
	if err != nil {
		return nil, gerrors.Wrap(err, "encode component attributes")
	}
	state, err := json.Marshal(c.Milestones())
	if err != nil {
		return nil, gerrors.Wrap(err, "encode milestone state")
	}
	key := c.Identity()
	return &models.Component{
		ID:              c.ID(),
		ProjectID:       c.ProjectID(),
		ComponentType:   string(c.Type()),
		TemplateID:      c.TemplateID(),
		IdentityClass:   string(key.Class),
		NaturalKey:      key.NaturalKey,
		DrawingID:       c.DrawingID(),
		GroupDrawing:    key.Drawing,
		CommodityCode:   key.Commodity,
		Size:            key.Size,
		SequenceNo:      key.Sequence,
		Attributes:      attrs,
		MilestoneState:  state,
		PercentComplete: c.PercentComplete(),
		Retired:         c.Retired(),
		RetireReason:    c.RetireReason(),
		CreatedBy:       c.CreatedBy(),
		UpdatedBy:       c.UpdatedBy(),
	}, nil
}

func toDomainMilestoneEvent(row *models.MilestoneEvent) (*milestoneevent.Event, error) {
	var meta map[string]string
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			return nil, gerrors.Wrap(err, "decode event metadata")
		}
	}
	return &milestoneevent.Event{
		ID:            row.ID,
		ComponentID:   row.ComponentID,
		ProjectID:     row.ProjectID,
		Milestone:     row.Milestone,
		Action:        milestoneevent.Action(row.Action),
		Value:         row.Value,
		PreviousValue: row.PreviousValue,
		ActorID:       row.ActorID,
		Metadata:      meta,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func toDomainException(row *models.Exception) *exception.Record {
	return &exception.Record{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		ComponentID:    row.ComponentID,
		Type:           exception.Type(row.Type),
		Status:         exception.Status(row.Status),
		Payload:        json.RawMessage(row.Payload),
		CreatedBy:      row.CreatedBy,
		ResolvedBy:     row.ResolvedBy,
		ResolutionNote: row.ResolutionNote,
		CreatedAt:      row.CreatedAt,
		ResolvedAt:     row.ResolvedAt,
	}
}
