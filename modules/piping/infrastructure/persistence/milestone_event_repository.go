package persistence

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/pipetrak/pipetrak/modules/piping/domain/entities/milestoneevent"
	"github.com/pipetrak/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/pipetrak/pipetrak/pkg/composables"
	"github.com/pipetrak/pipetrak/pkg/repo"
)

const milestoneEventColumns = `
	id, component_id, project_id, milestone, action, value, previous_value,
	actor_id, metadata, created_at`

type MilestoneEventRepository struct{}

func NewMilestoneEventRepository() milestoneevent.Repository {
	return &MilestoneEventRepository{}
}

func scanMilestoneEvent(row pgx.Row) (*milestoneevent.Event, error) {
	var m models.MilestoneEvent
	err := row.Scan(
		&m.ID,
		&m.ComponentID,
		&m.ProjectID,
		&m.Milestone,
		&m.Action,
		&m.Value,
		&m.PreviousValue,
		&m.ActorID,
		&m.Metadata,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return toDomainMilestoneEvent(&m)
}

func (r *MilestoneEventRepository) Append(ctx context.Context, e *milestoneevent.Event) (*milestoneevent.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, gerrors.Wrap(err, "marshal event metadata")
	}
	appended, err := scanMilestoneEvent(tx.QueryRow(ctx, `
		INSERT INTO milestone_events (
			component_id, project_id, milestone, action, value, previous_value, actor_id, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+milestoneEventColumns,
		e.ComponentID, e.ProjectID, e.Milestone, string(e.Action),
		e.Value, e.PreviousValue, e.ActorID, raw,
	))
	if err != nil {
		return nil, gerrors.Wrap(err, "append milestone event")
	}
	return appended, nil
}

func milestoneEventFilters(params *milestoneevent.FindParams) ([]string, []interface{}) {
	where := []string{"component_id = $1"}
	args := []interface{}{params.ComponentID}
	if params.Milestone != "" {
		where = append(where, "milestone = $"+strconv.Itoa(len(args)+1))
		args = append(args, params.Milestone)
	}
	return where, args
}

func (r *MilestoneEventRepository) List(ctx context.Context, params *milestoneevent.FindParams) ([]*milestoneevent.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	where, args := milestoneEventFilters(params)
	rows, err := tx.Query(ctx, `
		SELECT `+milestoneEventColumns+`
		FROM milestone_events
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY seq `+repo.FormatLimitOffset(params.Limit, params.Offset),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*milestoneevent.Event
	for rows.Next() {
		e, err := scanMilestoneEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *MilestoneEventRepository) Count(ctx context.Context, params *milestoneevent.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	where, args := milestoneEventFilters(params)
	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM milestone_events WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
