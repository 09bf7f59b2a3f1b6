package piping

import (
	"embed"

	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence"
	"github.com/pipetrak/pipetrak/modules/piping/presentation/controllers"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string { return "piping" }

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use().Import
	bus := app.EventPublisher()

	componentRepo := persistence.NewComponentRepository()
	drawingRepo := persistence.NewDrawingRepository()
	projectRepo := persistence.NewProjectRepository()
	operatorRepo := persistence.NewOperatorRepository()
	templateRepo := persistence.NewTemplateRepository()
	eventRepo := persistence.NewMilestoneEventRepository()
	exceptionRepo := persistence.NewExceptionRepository()

	exceptionService := services.NewExceptionService(exceptionRepo, componentRepo, drawingRepo, bus, conf)
	app.RegisterServices(
		services.NewProjectService(projectRepo),
		services.NewOperatorService(operatorRepo),
		services.NewTemplateService(templateRepo),
		services.NewComponentService(componentRepo, bus),
		services.NewDrawingService(drawingRepo, exceptionService, bus, conf),
		exceptionService,
		services.NewProgressService(componentRepo, templateRepo, eventRepo, operatorRepo, exceptionService, bus),
		services.NewImportService(
			componentRepo, drawingRepo, templateRepo, exceptionService,
			services.NewClassifier(conf), persistence.NewPgBatchLocker(), bus, conf,
		),
	)

	app.RegisterControllers(
		controllers.NewProjectAPIController(app),
		controllers.NewDrawingAPIController(app),
		controllers.NewComponentAPIController(app),
		controllers.NewExceptionAPIController(app),
		controllers.NewImportAPIController(app),
	)

	app.Migrations().RegisterSchema(m.Name(), migrationFiles, "infrastructure/persistence/schema")
	return nil
}
