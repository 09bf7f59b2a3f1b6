package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/project"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
)

const projectColumns = `id, code, name, created_at`

type ProjectRepository struct{}

func NewProjectRepository() project.Repository {
	return &ProjectRepository{}
}

func scanProject(row pgx.Row) (project.Project, error) {
	var m models.Project
	if err := row.Scan(&m.ID, &m.Code, &m.Name, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}
	return toDomainProject(&m), nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return project.Project{}, err
	}
	return scanProject(tx.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

func (r *ProjectRepository) GetByCode(ctx context.Context, code string) (project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return project.Project{}, err
	}
	return scanProject(tx.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE code = $1`, code))
}

func (r *ProjectRepository) List(ctx context.Context) ([]project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProjectRepository) Create(ctx context.Context, p project.Project) (project.Project, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return project.Project{}, err
	}
	created, err := scanProject(tx.QueryRow(ctx, `
		INSERT INTO projects (code, name) VALUES ($1, $2)
		RETURNING `+projectColumns,
		p.Code(), p.Name(),
	))
	if err != nil {
		if isUniqueViolation(err, "projects_code_key") {
			return project.Project{}, project.ErrCodeTaken
		}
		return project.Project{}, gerrors.Wrap(err, "create project")
	}
	return created, nil
}
