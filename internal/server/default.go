package server

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/constants"
	"github.com/pipetrak/pipetrak/pkg/httpapi"
	"github.com/pipetrak/pipetrak/pkg/metrics"
	"github.com/pipetrak/pipetrak/pkg/middleware"
	"github.com/pipetrak/pipetrak/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

// Default assembles the HTTP server: logging and context middleware first,
// then every registered module controller.
func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application

	app.RegisterMiddleware(
		middleware.WithLogger(options.Logger),
		middleware.Provide(constants.PoolKey, options.Pool),
		middleware.RequestParams(),
	)

	if options.Configuration.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(options.Configuration.Prometheus.Path))
	}

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint", nil)
	})
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return server.NewHTTPServer(app, notFound, methodNotAllowed), nil
}
