package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/operator"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
)

const operatorColumns = `id, name, badge, verified, created_at, updated_at`

type OperatorRepository struct{}

func NewOperatorRepository() operator.Repository {
	return &OperatorRepository{}
}

func scanOperator(row pgx.Row) (*operator.Operator, error) {
	var m models.Operator
	if err := row.Scan(&m.ID, &m.Name, &m.Badge, &m.Verified, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, operator.ErrNotFound
		}
		return nil, err
	}
	return toDomainOperator(&m), nil
}

func (r *OperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*operator.Operator, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanOperator(tx.QueryRow(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id))
}

func (r *OperatorRepository) List(ctx context.Context) ([]*operator.Operator, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx,
		`SELECT `+operatorColumns+` FROM operators ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*operator.Operator
	for rows.Next() {
		o, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OperatorRepository) Create(ctx context.Context, o *operator.Operator) (*operator.Operator, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	created, err := scanOperator(tx.QueryRow(ctx, `
		INSERT INTO operators (name, badge, verified) VALUES ($1, $2, $3)
		RETURNING `+operatorColumns,
		o.Name, o.Badge, o.Verified,
	))
	if err != nil {
		return nil, gerrors.Wrap(err, "create operator")
	}
	return created, nil
}

func (r *OperatorRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE operators SET verified = $2, updated_at = now() WHERE id = $1`,
		id, verified)
	if err != nil {
		return gerrors.Wrap(err, "set operator verified")
	}
	if tag.RowsAffected() == 0 {
		return operator.ErrNotFound
	}
	return nil
}
