package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/middleware"
)

// ExceptionAPIController serves the needs-review queue.
type ExceptionAPIController struct {
	app      application.Application
	basePath string
}

func NewExceptionAPIController(app application.Application) application.Controller {
	return &ExceptionAPIController{app: app, basePath: "/api/exceptions"}
}

func (c *ExceptionAPIController) Key() string { return c.basePath }

func (c *ExceptionAPIController) Register(r *mux.Router) {
	projects := r.PathPrefix("/api/projects/{projectID}/exceptions").Subrouter()
	projects.Use(middleware.WithActor())
	projects.HandleFunc("", c.list).Methods(http.MethodGet)

	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.WithActor())
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}/resolve", c.resolve).Methods(http.MethodPost)
	router.HandleFunc("/{id}/ignore", c.ignore).Methods(http.MethodPost)
}

func (c *ExceptionAPIController) service() *services.ExceptionService {
	return c.app.Service(services.ExceptionService{}).(*services.ExceptionService)
}

func (c *ExceptionAPIController) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}
	limit, offset := pageParams(r)
	records, total, err := c.service().List(r.Context(), &exception.FindParams{
		ProjectID: projectID,
		Type:      exception.Type(r.URL.Query().Get("type")),
		Status:    exception.Status(r.URL.Query().Get("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": records, "total": total})
}

func (c *ExceptionAPIController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid exception id", nil)
		return
	}
	rec, err := c.service().GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, exception.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, rec)
}

type closeExceptionRequest struct {
	Note string `json:"note,omitempty"`
	// MergeIntoDrawingID resolves a similar-drawing exception by merging the
	// duplicate into the named drawing. Ignored for other types and on ignore.
	MergeIntoDrawingID uuid.UUID `json:"merge_into_drawing_id,omitempty"`
}

func (c *ExceptionAPIController) resolve(w http.ResponseWriter, r *http.Request) {
	c.close(w, r, func(ctx context.Context, id uuid.UUID, actor uuid.UUID, req closeExceptionRequest) (*exception.Record, error) {
		return c.service().Resolve(ctx, id, actor, services.ResolveParams{
			Note:               req.Note,
			MergeIntoDrawingID: req.MergeIntoDrawingID,
		})
	})
}

func (c *ExceptionAPIController) ignore(w http.ResponseWriter, r *http.Request) {
	c.close(w, r, func(ctx context.Context, id uuid.UUID, actor uuid.UUID, req closeExceptionRequest) (*exception.Record, error) {
		return c.service().Ignore(ctx, id, actor, req.Note)
	})
}

func (c *ExceptionAPIController) close(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id uuid.UUID, actor uuid.UUID, req closeExceptionRequest) (*exception.Record, error),
) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid exception id", nil)
		return
	}
	actor, err := composables.UseActorID(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	var req closeExceptionRequest
	if r.ContentLength > 0 {
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
	}
	rec, err := fn(r.Context(), id, actor, req)
	switch {
	case errors.Is(err, exception.ErrTerminal):
		_ = httpapi.WriteError(w, http.StatusConflict, "ALREADY_CLOSED", err.Error(), nil)
	case err != nil:
		writeServiceError(w, r, err, exception.ErrNotFound)
	default:
		_ = httpapi.WriteJSON(w, http.StatusOK, rec)
	}
}
