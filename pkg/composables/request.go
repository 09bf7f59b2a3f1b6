package composables

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pipetrak/pipetrak/pkg/constants"
)

var (
	ErrNoLogger = errors.New("logger not found")
	ErrNoActor  = errors.New("no actor found in context")
)

type Params struct {
	IP            string
	UserAgent     string
	Authenticated bool
	Request       *http.Request
	Writer        http.ResponseWriter
}

// UseParams returns the request parameters from the context.
// If the parameters are not found, the second return value will be false.
func UseParams(ctx context.Context) (*Params, bool) {
	params, ok := ctx.Value(constants.ParamsKey).(*Params)
	return params, ok
}

// WithParams returns a new context with the request parameters.
func WithParams(ctx context.Context, params *Params) context.Context {
	return context.WithValue(ctx, constants.ParamsKey, params)
}

// UseLogger returns the logger from the context.
// If the logger is not found, function will panic.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		panic(ErrNoLogger)
	}
	return logger.(*logrus.Entry)
}

// WithLogger returns a new context with the logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// WithActorID records the operator performing writes in this request.
func WithActorID(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.UserKey, actorID)
}

// UseActorID returns the operator id performing writes in this request.
func UseActorID(ctx context.Context) (uuid.UUID, error) {
	actorID, ok := ctx.Value(constants.UserKey).(uuid.UUID)
	if !ok || actorID == uuid.Nil {
		return uuid.Nil, ErrNoActor
	}
	return actorID, nil
}
