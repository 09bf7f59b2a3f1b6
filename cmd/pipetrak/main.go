package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pipetrak/pipetrak/modules"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/takeoff"
	"github.com/pipetrak/pipetrak/modules/piping/services"
	"github.com/pipetrak/pipetrak/pkg/application"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/configuration"
	"github.com/pipetrak/pipetrak/pkg/eventbus"
)

func main() {
	root := &cobra.Command{
		Use:          "pipetrak",
		Short:        "Piping progress tracking engine",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), seedCmd(), importCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration, connects the pool and registers every module.
func bootstrap(ctx context.Context) (application.Application, *pgxpool.Pool, error) {
	conf := configuration.Use()
	logger := conf.Logger()

	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connCtx, conf.Database.Opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return app, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply or roll back database schemas",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, pool, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}
			switch direction {
			case "up":
				return app.Migrations().Run()
			case "down":
				return app.Migrations().Rollback()
			default:
				return fmt.Errorf("unknown direction %q (expected up or down)", direction)
			}
		},
	}
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the standard progress templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, pool, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := composables.WithPool(cmd.Context(), pool)
			templates := app.Service(services.TemplateService{}).(*services.TemplateService)
			seeded, err := templates.SeedDefaults(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("seeded %d templates\n", seeded)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var (
		projectCode string
		actorID     string
		dryRun      bool
		override    bool
	)
	cmd := &cobra.Command{
		Use:   "import <takeoff.xlsx>",
		Short: "Import a takeoff workbook into a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, pool, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			actor, err := uuid.Parse(actorID)
			if err != nil {
				return fmt.Errorf("invalid --actor: %w", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			sheet, err := takeoff.Read(f)
			if err != nil {
				return fmt.Errorf("read workbook: %w", err)
			}
			for _, s := range sheet.Skipped {
				cmd.Printf("row %d skipped: %s\n", s.Line, s.Reason)
			}

			ctx := composables.WithActorID(composables.WithPool(cmd.Context(), pool), actor)
			projectSvc := app.Service(services.ProjectService{}).(*services.ProjectService)
			proj, err := projectSvc.GetByCode(ctx, projectCode)
			if err != nil {
				return fmt.Errorf("project %q: %w", projectCode, err)
			}

			importSvc := app.Service(services.ImportService{}).(*services.ImportService)
			result, err := importSvc.Import(ctx, proj.ID(), sheet.Rows, services.ImportOptions{
				DryRun:   dryRun,
				Override: override,
			})
			if result != nil {
				for _, rowErr := range result.Errors {
					cmd.Printf("row %d [%s]: %s\n", rowErr.Row, rowErr.Field, rowErr.Reason)
				}
				cmd.Printf("created=%d updated=%d skipped=%d flagged=%d\n",
					result.Created, result.Updated, result.Skipped, result.Flagged)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&projectCode, "project", "", "project code to import into")
	cmd.Flags().StringVar(&actorID, "actor", "", "operator id performing the import")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without writing")
	cmd.Flags().BoolVar(&override, "override", false, "update components matching existing identities")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
