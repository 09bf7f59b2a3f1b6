package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/constants"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/serrors"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}

// decodeValid decodes the JSON body into dst and checks its validate tags.
// Tag failures come back as serrors.ValidationErrors keyed by field.
func decodeValid(r *http.Request, dst any) error {
	if err := httpapi.DecodeJSON(r, dst); err != nil {
		return err
	}
	err := constants.Validate.Struct(dst)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := serrors.ValidationErrors{}
		for _, fe := range fieldErrs {
			out[fe.Field()] = serrors.NewError("INVALID_FIELD", "failed "+fe.Tag()+" validation", fe.Field())
		}
		return out
	}
	return err
}

// writeInvalidBody renders a decode or validation failure, carrying per-field
// messages in the envelope meta when available.
func writeInvalidBody(w http.ResponseWriter, err error) {
	var ve serrors.ValidationErrors
	if errors.As(err, &ve) {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "VALIDATION", "request body failed validation", ve.Fields())
		return
	}
	_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
}

// pageParams reads limit/offset query parameters, clamped to the configured
// page sizes.
func pageParams(r *http.Request) (limit, offset int) {
	conf := configuration.Use()
	limit = conf.PageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > conf.MaxPageSize {
		limit = conf.MaxPageSize
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// writeServiceError maps common service failures onto HTTP statuses, logging
// only the unexpected ones.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound ...error) {
	for _, sentinel := range notFound {
		if errors.Is(err, sentinel) {
			_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
			return
		}
	}
	if errors.Is(err, composables.ErrNoActor) {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "NO_ACTOR", "missing or invalid X-Operator-ID header", nil)
		return
	}
	composables.UseLogger(r.Context()).WithError(err).Error("piping api: request failed")
	_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
