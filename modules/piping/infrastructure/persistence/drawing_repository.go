package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/aggregates/drawing"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/repo"
)

const drawingColumns = `
	id, project_id, number, normalized, title, revision,
	retired, retire_reason, created_by, created_at, updated_at`

type DrawingRepository struct{}

func NewDrawingRepository() drawing.Repository {
	return &DrawingRepository{}
}

func scanDrawing(row pgx.Row) (drawing.Drawing, error) {
	var m models.Drawing
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Number,
		&m.Normalized,
		&m.Title,
		&m.Revision,
		&m.Retired,
		&m.RetireReason,
		&m.CreatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return drawing.Drawing{}, drawing.ErrNotFound
		}
		return drawing.Drawing{}, err
	}
	return toDomainDrawing(&m), nil
}

func (r *DrawingRepository) GetByID(ctx context.Context, id uuid.UUID) (drawing.Drawing, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return drawing.Drawing{}, err
	}
	return scanDrawing(tx.QueryRow(ctx,
		`SELECT `+drawingColumns+` FROM drawings WHERE id = $1`, id))
}

func (r *DrawingRepository) GetByNormalized(ctx context.Context, projectID uuid.UUID, normalized string) (drawing.Drawing, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return drawing.Drawing{}, err
	}
	return scanDrawing(tx.QueryRow(ctx, `
		SELECT `+drawingColumns+`
		FROM drawings
		WHERE project_id = $1 AND normalized = $2 AND NOT retired`,
		projectID, normalized))
}

func (r *DrawingRepository) ListActiveNumbers(ctx context.Context, projectID uuid.UUID) ([]drawing.ActiveNumber, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, number, normalized FROM drawings
		WHERE project_id = $1 AND NOT retired`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []drawing.ActiveNumber
	for rows.Next() {
		var n drawing.ActiveNumber
		if err := rows.Scan(&n.ID, &n.Number, &n.Normalized); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *DrawingRepository) GetPaginated(ctx context.Context, params *drawing.FindParams) ([]drawing.Drawing, int64, error) {
	if params == nil {
		params = &drawing.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := []string{"retired = $1"}
	args := []interface{}{params.Retired}
	n := 2
	if params.ProjectID != uuid.Nil {
		where = append(where, "project_id = $"+strconv.Itoa(n))
		args = append(args, params.ProjectID)
		n++
	}
	if params.Q != "" {
		where = append(where, "(number ILIKE $"+strconv.Itoa(n)+" OR title ILIKE $"+strconv.Itoa(n)+")")
		args = append(args, "%"+params.Q+"%")
		n++
	}

	rows, err := tx.Query(ctx, `
		SELECT `+drawingColumns+`
		FROM drawings
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY number `+repo.FormatLimitOffset(params.Limit, params.Offset),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []drawing.Drawing
	for rows.Next() {
		d, err := scanDrawing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM drawings WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *DrawingRepository) Create(ctx context.Context, d drawing.Drawing) (drawing.Drawing, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return drawing.Drawing{}, err
	}
	created, err := scanDrawing(tx.QueryRow(ctx, `
		INSERT INTO drawings (project_id, number, normalized, title, revision, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+drawingColumns,
		d.ProjectID(), d.Number(), d.Normalized(), d.Title(), d.Revision(), d.CreatedBy(),
	))
	if err != nil {
		if isUniqueViolation(err, "drawings_project_normalized_active_idx") {
			return drawing.Drawing{}, drawing.ErrNumberTaken
		}
		return drawing.Drawing{}, gerrors.Wrap(err, "create drawing")
	}
	return created, nil
}

func (r *DrawingRepository) Update(ctx context.Context, d drawing.Drawing) (drawing.Drawing, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return drawing.Drawing{}, err
	}
	updated, err := scanDrawing(tx.QueryRow(ctx, `
		UPDATE drawings SET
			title = $2, revision = $3, retired = $4, retire_reason = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+drawingColumns,
		d.ID(), d.Title(), d.Revision(), d.Retired(), d.RetireReason(),
	))
	if err != nil {
		return drawing.Drawing{}, gerrors.Wrap(err, "update drawing")
	}
	return updated, nil
}
