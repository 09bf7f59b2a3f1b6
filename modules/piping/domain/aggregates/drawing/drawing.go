package drawing

import (
	"time"

	"github.com/google/uuid"

	"github.com/pipetrak/pipetrak/modules/piping/domain/value_objects/docid"
)

// Drawing is a parent document components hang off (isometric, P&ID, spool
// sheet). The normalized number is unique per project among active drawings.
type Drawing struct {
	id           uuid.UUID
	projectID    uuid.UUID
	number       string
	normalized   string
	title        string
	revision     string
	retired      bool
	retireReason string
	createdBy    uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
}

func New(projectID uuid.UUID, number, title, revision string, createdBy uuid.UUID) Drawing {
	return Drawing{
		projectID:  projectID,
		number:     number,
		normalized: docid.Normalize(number),
		title:      title,
		revision:   revision,
		createdBy:  createdBy,
	}
}

func Hydrate(
	id uuid.UUID,
	projectID uuid.UUID,
	number string,
	normalized string,
	title string,
	revision string,
	retired bool,
	retireReason string,
	createdBy uuid.UUID,
	createdAt time.Time,
	updatedAt time.Time,
) Drawing {
	return Drawing{
		id:           id,
		projectID:    projectID,
		number:       number,
		normalized:   normalized,
		title:        title,
		revision:     revision,
		retired:      retired,
		retireReason: retireReason,
		createdBy:    createdBy,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (d Drawing) ID() uuid.UUID        { return d.id }
func (d Drawing) ProjectID() uuid.UUID { return d.projectID }
func (d Drawing) Number() string       { return d.number }
func (d Drawing) Normalized() string   { return d.normalized }
func (d Drawing) Title() string        { return d.title }
func (d Drawing) Revision() string     { return d.revision }
func (d Drawing) Retired() bool        { return d.retired }
func (d Drawing) RetireReason() string { return d.retireReason }
func (d Drawing) CreatedBy() uuid.UUID { return d.createdBy }
func (d Drawing) CreatedAt() time.Time { return d.createdAt }
func (d Drawing) UpdatedAt() time.Time { return d.updatedAt }
func (d Drawing) IsZero() bool         { return d.id == uuid.Nil && d.normalized == "" }

func (d Drawing) Retire(reason string) Drawing {
	d.retired = true
	d.retireReason = reason
	return d
}

func (d Drawing) WithRevision(revision string) Drawing {
	d.revision = revision
	return d
}
