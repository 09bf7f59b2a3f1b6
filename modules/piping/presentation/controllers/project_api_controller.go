package controllers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/middleware"
)

// ProjectAPIController serves projects, operators and progress templates:
// the reference data the tracking endpoints hang off.
type ProjectAPIController struct {
	app      application.Application
	basePath string
}

func NewProjectAPIController(app application.Application) application.Controller {
	return &ProjectAPIController{app: app, basePath: "/api/projects"}
}

func (c *ProjectAPIController) Key() string { return c.basePath }

func (c *ProjectAPIController) Register(r *mux.Router) {
	router := r.PathPrefix("/api").Subrouter()
	router.Use(middleware.WithActor())

	router.HandleFunc("/projects", c.listProjects).Methods(http.MethodGet)
	router.HandleFunc("/projects", c.createProject).Methods(http.MethodPost)
	router.HandleFunc("/projects/{projectID}", c.getProject).Methods(http.MethodGet)

	router.HandleFunc("/operators", c.listOperators).Methods(http.MethodGet)
	router.HandleFunc("/operators", c.createOperator).Methods(http.MethodPost)
	router.HandleFunc("/operators/{id}/verify", c.verifyOperator).Methods(http.MethodPost)

	router.HandleFunc("/templates", c.listTemplates).Methods(http.MethodGet)
}

func (c *ProjectAPIController) projects() *services.ProjectService {
	return c.app.Service(services.ProjectService{}).(*services.ProjectService)
}

func (c *ProjectAPIController) operators() *services.OperatorService {
	return c.app.Service(services.OperatorService{}).(*services.OperatorService)
}

func (c *ProjectAPIController) templates() *services.TemplateService {
	return c.app.Service(services.TemplateService{}).(*services.TemplateService)
}

func (c *ProjectAPIController) listProjects(w http.ResponseWriter, r *http.Request) {
	items, err := c.projects().List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]projectResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toProjectResponse(p))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

type createProjectRequest struct {
	Code string `json:"code" validate:"required"`
	Name string `json:"name" validate:"required"`
}

func (c *ProjectAPIController) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeValid(r, &req); err != nil {
		writeInvalidBody(w, err)
		return
	}
	created, err := c.projects().Create(r.Context(), req.Code, req.Name)
	switch {
	case errors.Is(err, project.ErrCodeTaken):
		_ = httpapi.WriteError(w, http.StatusConflict, "CODE_TAKEN", err.Error(), nil)
	case err != nil:
		writeServiceError(w, r, err)
	default:
		_ = httpapi.WriteJSON(w, http.StatusCreated, toProjectResponse(created))
	}
}

func (c *ProjectAPIController) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}
	p, err := c.projects().GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, project.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toProjectResponse(p))
}

func (c *ProjectAPIController) listOperators(w http.ResponseWriter, r *http.Request) {
	items, err := c.operators().List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]operatorResponse, 0, len(items))
	for _, o := range items {
		out = append(out, toOperatorResponse(o))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}

type createOperatorRequest struct {
	Name  string `json:"name" validate:"required"`
	Badge string `json:"badge"`
}

func (c *ProjectAPIController) createOperator(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := decodeValid(r, &req); err != nil {
		writeInvalidBody(w, err)
		return
	}
	created, err := c.operators().Create(r.Context(), req.Name, req.Badge)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, toOperatorResponse(created))
}

type verifyOperatorRequest struct {
	Verified bool `json:"verified"`
}

func (c *ProjectAPIController) verifyOperator(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_ID", "invalid operator id", nil)
		return
	}
	req := verifyOperatorRequest{Verified: true}
	if r.ContentLength > 0 {
		if err := httpapi.DecodeJSON(r, &req); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
	}
	if err := c.operators().SetVerified(r.Context(), id, req.Verified); err != nil {
		writeServiceError(w, r, err, operator.ErrNotFound)
		return
	}
	updated, err := c.operators().GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, operator.ErrNotFound)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toOperatorResponse(updated))
}

func (c *ProjectAPIController) listTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := c.templates().List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toTemplateResponse(t))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": out})
}
