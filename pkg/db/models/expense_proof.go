package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/foodrelief/relief-backend/pkg/db/types"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// ExpenseProof is media-backed evidence of actual spend against a request.
// AmountVariance is ClaimedAmount minus PlannedAmount.
type ExpenseProof struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID         uuid.UUID                `gorm:"column:phase_id;type:uuid;not null;index"`
	RequestKind     enums.ExpenseRequestKind `gorm:"column:request_kind;type:text;not null"`
	RequestID       uuid.UUID                `gorm:"column:request_id;type:uuid;not null;index"`
	SubmittedBy     uuid.UUID                `gorm:"column:submitted_by;type:uuid;not null"`
	MediaKeys       dbtypes.StringList       `gorm:"column:media_keys;type:jsonb;not null"`
	ClaimedAmount   int64                    `gorm:"column:claimed_amount;not null"`
	PlannedAmount   int64                    `gorm:"column:planned_amount;not null"`
	AmountVariance  int64                    `gorm:"column:amount_variance;not null;default:0"`
	VarianceFlagged bool                     `gorm:"column:variance_flagged;not null;default:false"`
	Status          enums.ExpenseProofStatus `gorm:"column:status;type:text;not null"`
	AdminNote       *string                  `gorm:"column:admin_note"`
	ReviewedBy      *uuid.UUID               `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time               `gorm:"column:reviewed_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *ExpenseProof) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = enums.ExpenseProofPending
	}
	return nil
}
