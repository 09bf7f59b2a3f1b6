package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/exception"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/repo"
)

const exceptionColumns = `
	id, project_id, component_id, type, status, payload,
	created_by, resolved_by, resolution_note, created_at, resolved_at`

type ExceptionRepository struct{}

func NewExceptionRepository() exception.Repository {
	return &ExceptionRepository{}
}

func scanException(row pgx.Row) (*exception.Record, error) {
	var m models.Exception
	err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.ComponentID,
		&m.Type,
		&m.Status,
		&m.Payload,
		&m.CreatedBy,
		&m.ResolvedBy,
		&m.ResolutionNote,
		&m.CreatedAt,
		&m.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exception.ErrNotFound
		}
		return nil, err
	}
	return toDomainException(&m), nil
}

func (r *ExceptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*exception.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanException(tx.QueryRow(ctx,
		`SELECT `+exceptionColumns+` FROM exceptions WHERE id = $1`, id))
}

func exceptionFilters(params *exception.FindParams) ([]string, []interface{}) {
	where := []string{"project_id = $1"}
	args := []interface{}{params.ProjectID}
	n := 2
	if params.ComponentID != nil {
		where = append(where, "component_id = $"+strconv.Itoa(n))
		args = append(args, *params.ComponentID)
		n++
	}
	if params.Type != "" {
		where = append(where, "type = $"+strconv.Itoa(n))
		args = append(args, string(params.Type))
		n++
	}
	if params.Status != "" {
		where = append(where, "status = $"+strconv.Itoa(n))
		args = append(args, string(params.Status))
		n++
	}
	return where, args
}

func (r *ExceptionRepository) List(ctx context.Context, params *exception.FindParams) ([]*exception.Record, error) {
	if params == nil {
		params = &exception.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	where, args := exceptionFilters(params)
	rows, err := tx.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM exceptions
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id `+repo.FormatLimitOffset(params.Limit, params.Offset),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*exception.Record
	for rows.Next() {
		rec, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *ExceptionRepository) Count(ctx context.Context, params *exception.FindParams) (int64, error) {
	if params == nil {
		params = &exception.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := exceptionFilters(params)
	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM exceptions WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ExceptionRepository) Create(ctx context.Context, rec *exception.Record) (*exception.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	payload := rec.Payload
	if payload == nil {
		payload = []byte("{}")
	}
	created, err := scanException(tx.QueryRow(ctx, `
		INSERT INTO exceptions (project_id, component_id, type, status, payload, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+exceptionColumns,
		rec.ProjectID, rec.ComponentID, string(rec.Type), string(exception.StatusPending),
		payload, rec.CreatedBy,
	))
	if err != nil {
		return nil, gerrors.Wrap(err, "create exception")
	}
	return created, nil
}

func (r *ExceptionRepository) Update(ctx context.Context, rec *exception.Record) (*exception.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := scanException(tx.QueryRow(ctx, `
		UPDATE exceptions SET
			status = $2, payload = $3, resolved_by = $4, resolution_note = $5, resolved_at = $6
		WHERE id = $1
		RETURNING `+exceptionColumns,
		rec.ID, string(rec.Status), rec.Payload, rec.ResolvedBy, rec.ResolutionNote, rec.ResolvedAt,
	))
	if err != nil {
		return nil, gerrors.Wrap(err, "update exception")
	}
	return updated, nil
}

func (r *ExceptionRepository) FindPendingQuantityDelta(ctx context.Context, projectID uuid.UUID, groupKey string, cutoff time.Time) (*exception.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanException(tx.QueryRow(ctx, `
		SELECT `+exceptionColumns+`
		FROM exceptions
		WHERE project_id = $1 AND type = $2 AND status = $3
		  AND payload->>'group_key' = $4 AND created_at >= $5
		ORDER BY created_at DESC
		LIMIT 1`,
		projectID, string(exception.TypeQuantityDelta), string(exception.StatusPending),
		groupKey, cutoff))
}
