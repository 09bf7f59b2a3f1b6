package controllers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/middleware"
)

// DrawingAPIController serves parent documents: CRUD, fuzzy search for pickers
// and the near-duplicate preview.
type DrawingAPIController struct {
	app      application.Application
	basePath string
}

func NewDrawingAPIController(app application.Application) application.Controller {
	return &DrawingAPIController{app: app, basePath: "/api/drawings"}
}

func (c *DrawingAPIController) Key() string { return c.basePath }

func (c *DrawingAPIController) Register(r *mux.Router) {
	projects := r.PathPrefix("/api/projects/{projectID}/drawings").Subrouter()
	projects.Use(middleware.WithActor())
	projects.HandleFunc("", c.list).Methods(http.MethodGet)
	projects.HandleFunc("", c.create).Methods(http.MethodPost)
	projects.HandleFunc("/similar", c.similar).Methods(http.MethodGet)
	projects.HandleFunc("/search", c.search).Methods(http.MethodGet)

	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.WithActor())
	router.HandleFunc("/{id}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id}/retire", c.retire).Methods(http.MethodPost)
}

func (c *DrawingAPIController) service() *services.DrawingService {
	return c.app.Service(services.DrawingService{}).(*services.DrawingService)
}

func (c *DrawingAPIController) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}
	limit, offset := pageParams(r)
	items, total, err := c.service().GetPaginated(r.Context(), &drawing.FindParams{
		ProjectID: projectID,
		Q:         r.URL.Query().Get("q"),
		Retired:   boolParam(r, "retired"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]drawingResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toDrawingResponse(d))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": out, "total": total})
}

type createDrawingRequest struct {
	Number   string `json:"number" validate:"required"`
	Title    string `json:"title,omitempty"`
	Revision string `json:"revision,omitempty"`
}

func (c *DrawingAPIController) create(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}
	var req createDrawingRequest
	if err := decodeValid(r, &req); err != nil {
		writeInvalidBody(w, err)
		return
	}
	created, err := c.service().Create(r.Context(), projectID, req.Number, req.Title, req.Revision)
	switch {
	case errors.Is(err, drawing.ErrNumberTaken):
		_ = httpapi.WriteError(w, http.StatusConflict, "NUMBER_TAKEN", err.Error(), nil)
	case err != nil:
		writeServiceError(w, r, err)
	default:
		_ = httpapi.WriteJSON(w, http.StatusCreated, toDrawingResponse(created))
	}
}

func (c *DrawingAPIController) similar(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "MISSING_QUERY", "q parameter is required", nil)
		return
	}
	matches, err := c.service().Similar(r.Context(), projectID, q, uuid.Nil)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (c *DrawingAPIController) search(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}
	limit, _ := pageParams(r)
	found, err := c.service().Search(r.Context(), projectID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": found})
}

func (c *DrawingAPIController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid drawing id", nil)
		return
	}
	d, err := c.service().GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, drawing.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toDrawingResponse(d))
}

func (c *DrawingAPIController) retire(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid drawing id", nil)
		return
	}
	var req retireRequest
	if r.ContentLength > 0 {
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
	}
	retired, err := c.service().Retire(r.Context(), id, req.Reason)
	if err != nil {
		writeServiceError(w, r, err, drawing.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toDrawingResponse(retired))
}
