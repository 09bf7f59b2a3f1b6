package exception

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type classifies what needs human adjudication.
type Type string

const (
	TypeOutOfSequence   Type = "out_of_sequence"
	TypeRollback        Type = "rollback"
	TypeQuantityDelta   Type = "quantity_delta"
	TypeDrawingChange   Type = "parent_document_change"
	TypeSimilarDrawing  Type = "similar_parent_document"
	TypeUnverifiedActor Type = "unverified_operator"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOutOfSequence, TypeRollback, TypeQuantityDelta,
		TypeDrawingChange, TypeSimilarDrawing, TypeUnverifiedActor:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusIgnored  Status = "ignored"
)

// Record is one needs-review queue entry. pending -> resolved|ignored is the
// only transition; resolved and ignored are terminal.
type Record struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	ComponentID    *uuid.UUID
	Type           Type
	Status         Status
	Payload        json.RawMessage
	CreatedBy      uuid.UUID
	ResolvedBy     *uuid.UUID
	ResolutionNote string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// QuantityDeltaPayload is the typed payload of TypeQuantityDelta records.
// Delta is signed: positive for appended instances, negative for flagged
// reductions that still await manual approval.
type QuantityDeltaPayload struct {
	GroupKey      string `json:"group_key"`
	Delta         int    `json:"delta"`
	PreviousCount int    `json:"previous_count"`
	RequestedQty  int    `json:"requested_qty"`
}

// SimilarDrawingPayload is the typed payload of TypeSimilarDrawing records.
type SimilarDrawingPayload struct {
	DrawingID  uuid.UUID `json:"drawing_id"`
	Number     string    `json:"number"`
	Normalized string    `json:"normalized"`
	// Matches are the existing drawings the new number resembles,
	// best score first.
	Matches []SimilarMatch `json:"matches"`
}

type SimilarMatch struct {
	DrawingID  uuid.UUID `json:"drawing_id"`
	Normalized string    `json:"normalized"`
	Score      float64   `json:"score"`
}

// OutOfSequencePayload names the prerequisite milestones that were still open
// when the reported milestone completed.
type OutOfSequencePayload struct {
	Milestone     string   `json:"milestone"`
	Prerequisites []string `json:"prerequisites"`
}

// RollbackPayload records a completed milestone being taken back. Rolled-back
// work usually means a failed inspection, so it always gets a second look.
type RollbackPayload struct {
	Milestone     string  `json:"milestone"`
	PreviousValue float64 `json:"previous_value"`
}

// DrawingChangePayload records a Class-A component re-imported under a
// different parent drawing.
type DrawingChangePayload struct {
	PreviousDrawingID uuid.UUID `json:"previous_drawing_id"`
	NewDrawingID      uuid.UUID `json:"new_drawing_id"`
}

// UnverifiedActorPayload records a milestone report from an operator whose
// badge has not been verified yet.
type UnverifiedActorPayload struct {
	OperatorID uuid.UUID `json:"operator_id"`
	Milestone  string    `json:"milestone"`
}

var (
	ErrNotFound = errors.New("exception not found")
	ErrTerminal = errors.New("exception already resolved or ignored")
)

type FindParams struct {
	ProjectID   uuid.UUID
	ComponentID *uuid.UUID
	Type        Type
	Status      Status
	Limit       int
	Offset      int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, params *FindParams) ([]*Record, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, r *Record) (*Record, error)
	Update(ctx context.Context, r *Record) (*Record, error)
	// FindPendingQuantityDelta returns the newest pending quantity-delta
	// record for a group raised after cutoff, for coalescing.
	FindPendingQuantityDelta(ctx context.Context, projectID uuid.UUID, groupKey string, cutoff time.Time) (*Record, error)
}
