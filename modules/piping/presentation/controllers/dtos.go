package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/milestoneevent"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
)

type componentResponse struct {
	ID              uuid.UUID          `json:"id"`
	ProjectID       uuid.UUID          `json:"project_id"`
	Type            string             `json:"type"`
	Identity        string             `json:"identity"`
	DrawingID       uuid.UUID          `json:"drawing_id"`
	Attributes      map[string]string  `json:"attributes,omitempty"`
	Milestones      map[string]float64 `json:"milestones"`
	PercentComplete string             `json:"percent_complete"`
	Retired         bool               `json:"retired"`
	RetireReason    string             `json:"retire_reason,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func toComponentResponse(c component.Component) componentResponse {
	return componentResponse{
		ID:              c.ID(),
		ProjectID:       c.ProjectID(),
		Type:            string(c.Type()),
		Identity:        c.Identity().String(),
		DrawingID:       c.DrawingID(),
		Attributes:      c.Attributes(),
		Milestones:      c.Milestones(),
		PercentComplete: c.PercentComplete().String(),
		Retired:         c.Retired(),
		RetireReason:    c.RetireReason(),
		UpdatedAt:       c.UpdatedAt(),
	}
}

func toComponentResponses(cs []component.Component) []componentResponse {
	out := make([]componentResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toComponentResponse(c))
	}
	return out
}

// milestoneUpdateResponse is a componentResponse plus the id of the ledger
// event the report appended, so clients can reference the entry directly.
type milestoneUpdateResponse struct {
	componentResponse
	EventID uuid.UUID `json:"event_id"`
}

type drawingResponse struct {
	ID         uuid.UUID `json:"id"`
	ProjectID  uuid.UUID `json:"project_id"`
	Number     string    `json:"number"`
	Normalized string    `json:"normalized"`
	Title      string    `json:"title,omitempty"`
	Revision   string    `json:"revision,omitempty"`
	Retired    bool      `json:"retired"`
}

func toDrawingResponse(d drawing.Drawing) drawingResponse {
	return drawingResponse{
		ID:         d.ID(),
		ProjectID:  d.ProjectID(),
		Number:     d.Number(),
		Normalized: d.Normalized(),
		Title:      d.Title(),
		Revision:   d.Revision(),
		Retired:    d.Retired(),
	}
}

type projectResponse struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
	Name string    `json:"name"`
}

func toProjectResponse(p project.Project) projectResponse {
	return projectResponse{ID: p.ID(), Code: p.Code(), Name: p.Name()}
}

type operatorResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Badge    string    `json:"badge"`
	Verified bool      `json:"verified"`
}

func toOperatorResponse(o *operator.Operator) operatorResponse {
	return operatorResponse{ID: o.ID, Name: o.Name, Badge: o.Badge, Verified: o.Verified}
}

type eventResponse struct {
	ID            uuid.UUID         `json:"id"`
	ComponentID   uuid.UUID         `json:"component_id"`
	Milestone     string            `json:"milestone"`
	Action        string            `json:"action"`
	Value         float64           `json:"value"`
	PreviousValue float64           `json:"previous_value"`
	ActorID       uuid.UUID         `json:"actor_id"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toEventResponse(e *milestoneevent.Event) eventResponse {
	return eventResponse{
		ID:            e.ID,
		ComponentID:   e.ComponentID,
		Milestone:     e.Milestone,
		Action:        string(e.Action),
		Value:         e.Value,
		PreviousValue: e.PreviousValue,
		ActorID:       e.ActorID,
		Metadata:      e.Metadata,
		CreatedAt:     e.CreatedAt,
	}
}

type templateResponse struct {
	ID            uuid.UUID           `json:"id"`
	ComponentType string              `json:"component_type"`
	Name          string              `json:"name"`
	Version       int                 `json:"version"`
	Milestones    []milestoneResponse `json:"milestones"`
}

type milestoneResponse struct {
	Name    string `json:"name"`
	Weight  int    `json:"weight"`
	Partial bool   `json:"partial"`
	Order   int    `json:"order"`
}

func toTemplateResponse(t template.Template) templateResponse {
	resp := templateResponse{
		ID:            t.ID(),
		ComponentType: string(t.ComponentType()),
		Name:          t.Name(),
		Version:       t.Version(),
	}
	for _, m := range t.Milestones() {
		resp.Milestones = append(resp.Milestones, milestoneResponse{
			Name: m.Name, Weight: m.Weight, Partial: m.Partial, Order: m.Order,
		})
	}
	return resp
}
