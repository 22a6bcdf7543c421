package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// IngredientRequest asks for the phase's ingredient bucket. TotalCost is
// immutable after creation.
type IngredientRequest struct {
	ID              uuid.UUID                     `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID         uuid.UUID                     `gorm:"column:phase_id;type:uuid;not null;index"`
	RequestedBy     uuid.UUID                     `gorm:"column:requested_by;type:uuid;not null"`
	TotalCost       int64                         `gorm:"column:total_cost;not null"`
	Status          enums.IngredientRequestStatus `gorm:"column:status;type:text;not null"`
	Items           []IngredientRequestItem       `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	ReviewedBy      *uuid.UUID                    `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time                    `gorm:"column:reviewed_at"`
	RejectionReason *string                       `gorm:"column:rejection_reason"`
	DisbursedBy     *uuid.UUID                    `gorm:"column:disbursed_by;type:uuid"`
	DisbursedAt     *time.Time                    `gorm:"column:disbursed_at"`
	CreatedAt       time.Time                     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                     `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *IngredientRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.Status == "" {
		r.Status = enums.IngredientRequestPending
	}
	return nil
}

// IngredientRequestItem is one purchase line. PhaseID is denormalized so usage
// checks can stay scoped to the phase.
type IngredientRequestItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	RequestID           uuid.UUID       `gorm:"column:request_id;type:uuid;not null;index"`
	PhaseID             uuid.UUID       `gorm:"column:phase_id;type:uuid;not null;index"`
	Position            int             `gorm:"column:position;not null"`
	Name                string          `gorm:"column:name;not null"`
	Quantity            decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	Unit                string          `gorm:"column:unit;not null"`
	UnitPrice           int64           `gorm:"column:unit_price;not null"`
	LineTotal           int64           `gorm:"column:line_total;not null"`
	Supplier            string          `gorm:"column:supplier"`
	PlannedIngredientID *uuid.UUID      `gorm:"column:planned_ingredient_id;type:uuid"`
}

func (i *IngredientRequestItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
