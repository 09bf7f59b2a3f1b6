package controllers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/milestoneevent"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/middleware"
)

// ComponentAPIController serves component reads, milestone reporting and
// retirement.
type ComponentAPIController struct {
	app      application.Application
	basePath string
}

func NewComponentAPIController(app application.Application) application.Controller {
	return &ComponentAPIController{app: app, basePath: "/api/components"}
}

func (c *ComponentAPIController) Key() string { return c.basePath }

func (c *ComponentAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.WithActor())

	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("/milestones/bulk", c.bulkComplete).Methods(http.MethodPost)
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}/milestones", c.updateMilestone).Methods(http.MethodPost)
	router.HandleFunc("/{id}/history", c.history).Methods(http.MethodGet)
	router.HandleFunc("/{id}/retire", c.retire).Methods(http.MethodPost)
}

func (c *ComponentAPIController) components() *services.ComponentService {
	return c.app.Service(services.ComponentService{}).(*services.ComponentService)
}

func (c *ComponentAPIController) progress() *services.ProgressService {
	return c.app.Service(services.ProgressService{}).(*services.ProgressService)
}

func (c *ComponentAPIController) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	params := &component.FindParams{
		Type:    comptype.Type(r.URL.Query().Get("type")),
		Retired: boolParam(r, "retired"),
		Limit:   limit,
		Offset:  offset,
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
			return
		}
		params.ProjectID = id
	}
	if raw := r.URL.Query().Get("drawing_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_DRAWING_ID", "invalid drawing id", nil)
			return
		}
		params.DrawingID = id
	}

	items, total, err := c.components().GetPaginated(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"items": toComponentResponses(items),
		"total": total,
	})
}

func (c *ComponentAPIController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid component id", nil)
		return
	}
	found, err := c.components().GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, component.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toComponentResponse(found))
}

type milestoneRequest struct {
	Milestone string            `json:"milestone" validate:"required"`
	Action    string            `json:"action" validate:"required"`
	Value     float64           `json:"value,omitempty" validate:"min=0,max=100"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (c *ComponentAPIController) updateMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid component id", nil)
		return
	}
	var req milestoneRequest
	if err := decodeValid(r, &req); err != nil {
		writeInvalidBody(w, err)
		return
	}
	action := milestoneevent.Action(req.Action)
	if !action.Valid() {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ACTION", "action must be complete, rollback or update", nil)
		return
	}

	updated, eventID, err := c.progress().Update(r.Context(), id, req.Milestone, action, req.Value, req.Metadata)
	switch {
	case errors.Is(err, services.ErrUnknownMilestone),
		errors.Is(err, services.ErrDiscreteMilestone),
		errors.Is(err, services.ErrValueOutOfRange):
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "INVALID_MILESTONE", err.Error(), nil)
	case errors.Is(err, services.ErrComponentRetired):
		_ = httpapi.WriteError(w, http.StatusConflict, "COMPONENT_RETIRED", err.Error(), nil)
	case err != nil:
		writeServiceError(w, r, err, component.ErrNotFound)
	default:
		_ = httpapi.WriteJSON(w, http.StatusOK, milestoneUpdateResponse{
			componentResponse: toComponentResponse(updated),
			EventID:           eventID,
		})
	}
}

type bulkCompleteRequest struct {
	ComponentIDs []uuid.UUID `json:"component_ids" validate:"required,min=1"`
	Milestone    string      `json:"milestone" validate:"required"`
}

func (c *ComponentAPIController) bulkComplete(w http.ResponseWriter, r *http.Request) {
	var req bulkCompleteRequest
	if err := decodeValid(r, &req); err != nil {
		writeInvalidBody(w, err)
		return
	}
	result, err := c.progress().BulkComplete(r.Context(), req.ComponentIDs, req.Milestone)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, result)
}

func (c *ComponentAPIController) history(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid component id", nil)
		return
	}
	limit, offset := pageParams(r)
	events, total, err := c.progress().History(r.Context(), &milestoneevent.FindParams{
		ComponentID: id,
		Milestone:   r.URL.Query().Get("milestone"),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	items := make([]eventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, toEventResponse(e))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

type retireRequest struct {
	Reason string `json:"reason"`
}

func (c *ComponentAPIController) retire(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid component id", nil)
		return
	}
	var req retireRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	retired, err := c.components().Retire(r.Context(), id, req.Reason)
	if err != nil {
		writeServiceError(w, r, err, component.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toComponentResponse(retired))
}
