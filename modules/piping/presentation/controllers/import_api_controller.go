package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/takeoff"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/middleware"
)

// maxUploadBytes caps takeoff workbook uploads.
const maxUploadBytes = 32 << 20

// ImportAPIController ingests takeoff batches: JSON rows from integrations and
// xlsx uploads from the browser, both feeding the same pipeline.
type ImportAPIController struct {
	app      application.Application
	basePath string
}

func NewImportAPIController(app application.Application) application.Controller {
	return &ImportAPIController{app: app, basePath: "/api/projects/{projectID}/imports"}
}

func (c *ImportAPIController) Key() string { return c.basePath }

func (c *ImportAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.WithActor())
	router.HandleFunc("", c.create).Methods(http.MethodPost)
}

type importRowRequest struct {
	Line       int               `json:"line"`
	Drawing    string            `json:"drawing"`
	Type       string            `json:"type"`
	NaturalKey string            `json:"natural_key,omitempty"`
	Commodity  string            `json:"commodity,omitempty"`
	Size       string            `json:"size,omitempty"`
	Quantity   int               `json:"quantity,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type importRequest struct {
	Rows []importRowRequest `json:"rows"`
}

type importResponse struct {
	*services.ImportResult
	SkippedRows []takeoff.SkippedRow `json:"skipped_rows,omitempty"`
}

func (c *ImportAPIController) create(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathUUID(r, "projectID")
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_PROJECT_ID", "invalid project id", nil)
		return
	}

	var rows []takeoff.Row
	var skipped []takeoff.SkippedRow
	switch {
	case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"):
		rows, skipped, err = c.rowsFromUpload(r)
	default:
		rows, err = c.rowsFromJSON(r)
	}
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BATCH", err.Error(), nil)
		return
	}

	importSvc := c.app.Service(services.ImportService{}).(*services.ImportService)
	result, err := importSvc.Import(r.Context(), projectID, rows, services.ImportOptions{
		Override: boolParam(r, "override"),
		DryRun:   boolParam(r, "dry_run"),
	})
	switch {
	case errors.Is(err, services.ErrBatchRejected):
		_ = httpapi.WriteJSON(w, http.StatusUnprocessableEntity, importResponse{ImportResult: result, SkippedRows: skipped})
	case errors.Is(err, services.ErrConcurrentImport):
		_ = httpapi.WriteError(w, http.StatusConflict, "IMPORT_IN_PROGRESS", "another import holds the project lock", nil)
	case err != nil:
		writeServiceError(w, r, err, project.ErrNotFound)
	default:
		_ = httpapi.WriteJSON(w, http.StatusOK, importResponse{ImportResult: result, SkippedRows: skipped})
	}
}

func (c *ImportAPIController) rowsFromJSON(r *http.Request) ([]takeoff.Row, error) {
	var req importRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if len(req.Rows) == 0 {
		return nil, errors.New("empty batch")
	}
	rows := make([]takeoff.Row, 0, len(req.Rows))
	for i, in := range req.Rows {
		line := in.Line
		if line == 0 {
			line = i + 1
		}
		rows = append(rows, takeoff.Row{
			Line:        line,
			Drawing:     in.Drawing,
			TypeKeyword: in.Type,
			NaturalKey:  in.NaturalKey,
			Commodity:   in.Commodity,
			Size:        in.Size,
			Quantity:    in.Quantity,
			Attributes:  in.Attributes,
		})
	}
	return rows, nil
}

func (c *ImportAPIController) rowsFromUpload(r *http.Request) ([]takeoff.Row, []takeoff.SkippedRow, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New("missing file field")
	}
	defer func() { _ = file.Close() }()

	sheet, err := takeoff.Read(file)
	if err != nil {
		return nil, nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, nil, errors.New("workbook contains no parseable rows")
	}
	return sheet.Rows, sheet.Skipped, nil
}
