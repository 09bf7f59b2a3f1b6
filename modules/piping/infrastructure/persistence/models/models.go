package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Project struct {
	ID        uuid.UUID
	Code      string
	Name      string
	CreatedAt time.Time
}

type Operator struct {
	ID        uuid.UUID
	Name      string
	Badge     string
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Drawing struct {
	ID           uuid.UUID
	ProjectID    uuid.UUID
	Number       string
	Normalized   string
	Title        string
	Revision     string
	Retired      bool
	RetireReason string
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ProgressTemplate struct {
	ID            uuid.UUID
	ComponentType string
	Name          string
	Version       int
	CreatedAt     time.Time
}

type TemplateMilestone struct {
	TemplateID uuid.UUID
	Name       string
	Weight     int
	Partial    bool
	Ord        int
}

type Component struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	ComponentType   string
	TemplateID      uuid.UUID
	IdentityClass   string
	NaturalKey      string
	DrawingID       uuid.UUID
	GroupDrawing    string
	CommodityCode   string
	Size            string
	SequenceNo      int
	Attributes      json.RawMessage
	MilestoneState  json.RawMessage
	PercentComplete decimal.Decimal
	Retired         bool
	RetireReason    string
	CreatedBy       uuid.UUID
	UpdatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type MilestoneEvent struct {
	ID            uuid.UUID
	ComponentID   uuid.UUID
	ProjectID     uuid.UUID
	Milestone     string
	Action        string
	Value         float64
	PreviousValue float64
	ActorID       uuid.UUID
	Metadata      json.RawMessage
	CreatedAt     time.Time
}

type Exception struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	ComponentID    *uuid.UUID
	Type           string
	Status         string
	Payload        json.RawMessage
	CreatedBy      uuid.UUID
	ResolvedBy     *uuid.UUID
	ResolutionNote string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}
