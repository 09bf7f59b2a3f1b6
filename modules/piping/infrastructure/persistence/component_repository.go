package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/component"
	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/comptype"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/repo"
)

const componentColumns = `
	id, project_id, component_type, template_id, identity_class, natural_key,
	drawing_id, group_drawing, commodity_code, size, sequence_no,
	attributes, milestone_state, percent_complete, retired, retire_reason,
	created_by, updated_by, created_at, updated_at`

type ComponentRepository struct{}

func NewComponentRepository() component.Repository {
	return &ComponentRepository{}
}

func scanComponent(row pgx.Row) (component.Component, error) {
	var m models.Component
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.ComponentType,
		&m.TemplateID,
		&m.IdentityClass,
		&m.NaturalKey,
		&m.DrawingID,
		&m.GroupDrawing,
		&m.CommodityCode,
		&m.Size,
		&m.SequenceNo,
		&m.Attributes,
		&m.MilestoneState,
		&m.PercentComplete,
		&m.Retired,
		&m.RetireReason,
		&m.CreatedBy,
		&m.UpdatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return component.Component{}, component.ErrNotFound
		}
		return component.Component{}, err
	}
	return toDomainComponent(&m)
}

func (r *ComponentRepository) GetByID(ctx context.Context, id uuid.UUID) (component.Component, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return component.Component{}, err
	}
	return scanComponent(tx.QueryRow(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = $1`, id))
}

func (r *ComponentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (component.Component, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return component.Component{}, err
	}
	return scanComponent(tx.QueryRow(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = $1 FOR UPDATE`, id))
}

func (r *ComponentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]component.Component, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		`SELECT `+componentColumns+` FROM components WHERE id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectComponents(rows)
}

func (r *ComponentRepository) GetPaginated(ctx context.Context, params *component.FindParams) ([]component.Component, int64, error) {
	if params == nil {
		params = &component.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := buildComponentFilters(params)
	query := `SELECT ` + componentColumns + `
		FROM components
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at, id ` + repo.FormatLimitOffset(params.Limit, params.Offset)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectComponents(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM components WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildComponentFilters(params *component.FindParams) ([]string, []interface{}) {
	where := []string{"retired = $1"}
	args := []interface{}{params.Retired}
	n := 2
	if params.ProjectID != uuid.Nil {
		where = append(where, "project_id = $"+strconv.Itoa(n))
		args = append(args, params.ProjectID)
		n++
	}
	if params.DrawingID != uuid.Nil {
		where = append(where, "drawing_id = $"+strconv.Itoa(n))
		args = append(args, params.DrawingID)
		n++
	}
	if params.Type != "" {
		where = append(where, "component_type = $"+strconv.Itoa(n))
		args = append(args, string(params.Type))
		n++
	}
	return where, args
}

func (r *ComponentRepository) ListIdentities(ctx context.Context, projectID uuid.UUID, types []comptype.Type) ([]component.IdentityRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	typeStrings := make([]string, 0, len(types))
	for _, t := range types {
		typeStrings = append(typeStrings, string(t))
	}
	rows, err := tx.Query(ctx, `
		SELECT id, component_type, identity_class, natural_key,
		       group_drawing, commodity_code, size, sequence_no
		FROM components
		WHERE project_id = $1 AND component_type = ANY($2) AND NOT retired`,
		projectID, typeStrings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []component.IdentityRecord
	for rows.Next() {
		var (
			rec           component.IdentityRecord
			componentType string
			class         string
		)
		if err := rows.Scan(
			&rec.ComponentID,
			&componentType,
			&class,
			&rec.Key.NaturalKey,
			&rec.Key.Drawing,
			&rec.Key.Commodity,
			&rec.Key.Size,
			&rec.Key.Sequence,
		); err != nil {
			return nil, err
		}
		rec.Type = comptype.Type(componentType)
		rec.Key.Class = comptype.IdentityClass(class)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *ComponentRepository) ListGroup(ctx context.Context, projectID uuid.UUID, groupKey string) ([]component.Component, error) {
	parts := strings.SplitN(groupKey, "|", 3)
	if len(parts) != 3 {
		return nil, gerrors.Errorf("malformed group key %q", groupKey)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT `+componentColumns+`
		FROM components
		WHERE project_id = $1 AND identity_class = 'grouped' AND NOT retired
		  AND group_drawing = $2 AND commodity_code = $3 AND size = $4
		ORDER BY sequence_no`,
		projectID, parts[0], parts[1], parts[2])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectComponents(rows)
}

func (r *ComponentRepository) Create(ctx context.Context, c component.Component) (component.Component, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return component.Component{}, err
	}
	m, err := toDBComponent(c)
	if err != nil {
		return component.Component{}, err
	}
	created, err := scanComponent(tx.QueryRow(ctx, `
		INSERT INTO components (
			project_id, component_type, template_id, identity_class, natural_key,
			drawing_id, group_drawing, commodity_code, size, sequence_no,
			attributes, milestone_state, percent_complete, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+componentColumns,
		m.ProjectID, m.ComponentType, m.TemplateID, m.IdentityClass, m.NaturalKey,
		m.DrawingID, m.GroupDrawing, m.CommodityCode, m.Size, m.SequenceNo,
		m.Attributes, m.MilestoneState, m.PercentComplete, m.CreatedBy, m.UpdatedBy,
	))
	if err != nil {
		if isUniqueViolation(err, "") {
			return component.Component{}, component.ErrIdentityTaken
		}
		return component.Component{}, gerrors.Wrap(err, "create component")
	}
	return created, nil
}

func (r *ComponentRepository) CreateMany(ctx context.Context, cs []component.Component) ([]component.Component, error) {
	if len(cs) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	const fields = 15
	args := make([]interface{}, 0, len(cs)*fields)
	for _, c := range cs {
		m, err := toDBComponent(c)
		if err != nil {
			return nil, err
		}
		args = append(args,
			m.ProjectID, m.ComponentType, m.TemplateID, m.IdentityClass, m.NaturalKey,
			m.DrawingID, m.GroupDrawing, m.CommodityCode, m.Size, m.SequenceNo,
			m.Attributes, m.MilestoneState, m.PercentComplete, m.CreatedBy, m.UpdatedBy,
		)
	}
	rows, err := tx.Query(ctx, `
		INSERT INTO components (
			project_id, component_type, template_id, identity_class, natural_key,
			drawing_id, group_drawing, commodity_code, size, sequence_no,
			attributes, milestone_state, percent_complete, created_by, updated_by
		) VALUES `+repo.BatchPlaceholders(len(cs), fields, 1)+`
		RETURNING `+componentColumns,
		args...,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, component.ErrIdentityTaken
		}
		return nil, gerrors.Wrap(err, "create components")
	}
	defer rows.Close()
	out, err := collectComponents(rows)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, component.ErrIdentityTaken
		}
		return nil, gerrors.Wrap(err, "create components")
	}
	return out, nil
}

func (r *ComponentRepository) Update(ctx context.Context, c component.Component) (component.Component, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return component.Component{}, err
	}
	m, err := toDBComponent(c)
	if err != nil {
		return component.Component{}, err
	}
	updated, err := scanComponent(tx.QueryRow(ctx, `
		UPDATE components SET
			template_id = $2, drawing_id = $3, attributes = $4,
			milestone_state = $5, percent_complete = $6,
			retired = $7, retire_reason = $8, updated_by = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+componentColumns,
		m.ID, m.TemplateID, m.DrawingID, m.Attributes,
		m.MilestoneState, m.PercentComplete,
		m.Retired, m.RetireReason, m.UpdatedBy,
	))
	if err != nil {
		return component.Component{}, gerrors.Wrap(err, "update component")
	}
	return updated, nil
}

func (r *ComponentRepository) UpdateProgress(ctx context.Context, c component.Component) (component.Component, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return component.Component{}, err
	}
	m, err := toDBComponent(c)
	if err != nil {
		return component.Component{}, err
	}
	updated, err := scanComponent(tx.QueryRow(ctx, `
		UPDATE components SET
			milestone_state = $2, percent_complete = $3, updated_by = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+componentColumns,
		m.ID, m.MilestoneState, m.PercentComplete, m.UpdatedBy,
	))
	if err != nil {
		return component.Component{}, gerrors.Wrap(err, "update component progress")
	}
	return updated, nil
}

func collectComponents(rows pgx.Rows) ([]component.Component, error) {
	var out []component.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

