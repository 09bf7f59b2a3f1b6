package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/template"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/repo"
)

const templateColumns = `id, component_type, name, version, created_at`

type TemplateRepository struct{}

func NewTemplateRepository() template.Repository {
	return &TemplateRepository{}
}

func (r *TemplateRepository) queryOne(ctx context.Context, query string, args ...interface{}) (template.Template, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return template.Template{}, err
	}
	var m models.ProgressTemplate
	err = tx.QueryRow(ctx, query, args...).Scan(&m.ID, &m.ComponentType, &m.Name, &m.Version, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return template.Template{}, template.ErrNotFound
		}
		return template.Template{}, err
	}
	ms, err := r.loadMilestones(ctx, []uuid.UUID{m.ID})
	if err != nil {
		return template.Template{}, err
	}
	return toDomainTemplate(&m, ms[m.ID]), nil
}

func (r *TemplateRepository) loadMilestones(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]*models.TemplateMilestone, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT template_id, name, weight, partial, ord
		FROM template_milestones
		WHERE template_id = ANY($1)
		ORDER BY template_id, ord`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uuid.UUID][]*models.TemplateMilestone{}
	for rows.Next() {
		var m models.TemplateMilestone
		if err := rows.Scan(&m.TemplateID, &m.Name, &m.Weight, &m.Partial, &m.Ord); err != nil {
			return nil, err
		}
		out[m.TemplateID] = append(out[m.TemplateID], &m)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (template.Template, error) {
	return r.queryOne(ctx,
		`SELECT `+templateColumns+` FROM progress_templates WHERE id = $1`, id)
}

func (r *TemplateRepository) GetActiveByType(ctx context.Context, componentType comptype.Type) (template.Template, error) {
	return r.queryOne(ctx, `
		SELECT `+templateColumns+`
		FROM progress_templates
		WHERE component_type = $1
		ORDER BY version DESC
		LIMIT 1`,
		string(componentType))
}

func (r *TemplateRepository) List(ctx context.Context) ([]template.Template, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		`SELECT `+templateColumns+` FROM progress_templates ORDER BY component_type, version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		heads []models.ProgressTemplate
		ids   []uuid.UUID
	)
	for rows.Next() {
		var m models.ProgressTemplate
		if err := rows.Scan(&m.ID, &m.ComponentType, &m.Name, &m.Version, &m.CreatedAt); err != nil {
			return nil, err
		}
		heads = append(heads, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(heads) == 0 {
		return nil, nil
	}

	milestones, err := r.loadMilestones(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]template.Template, 0, len(heads))
	for i := range heads {
		out = append(out, toDomainTemplate(&heads[i], milestones[heads[i].ID]))
	}
	return out, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t template.Template) (template.Template, error) {
	if err := t.Validate(); err != nil {
		return template.Template{}, errors.Join(template.ErrInvalid, err)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return template.Template{}, err
	}
	var id uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO progress_templates (component_type, name, version)
		VALUES ($1, $2, $3)
		RETURNING id`,
		string(t.ComponentType()), t.Name(), t.Version(),
	).Scan(&id); err != nil {
		if isUniqueViolation(err, "progress_templates_component_type_version_key") {
			return template.Template{}, gerrors.Wrap(template.ErrInvalid, "version already exists")
		}
		return template.Template{}, gerrors.Wrap(err, "create template")
	}

	milestones := t.Milestones()
	args := make([]interface{}, 0, len(milestones)*5)
	for _, m := range milestones {
		args = append(args, id, m.Name, m.Weight, m.Partial, m.Order)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO template_milestones (template_id, name, weight, partial, ord)
		VALUES `+repo.BatchPlaceholders(len(milestones), 5, 1),
		args...,
	); err != nil {
		return template.Template{}, gerrors.Wrap(err, "create template milestones")
	}
	return r.GetByID(ctx, id)
}
