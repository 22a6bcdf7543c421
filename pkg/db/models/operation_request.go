package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// OperationRequest asks for the cooking or delivery bucket.
type OperationRequest struct {
	ID              uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID         uuid.UUID                    `gorm:"column:phase_id;type:uuid;not null;index"`
	RequestedBy     uuid.UUID                    `gorm:"column:requested_by;type:uuid;not null"`
	ExpenseType     enums.ExpenseType            `gorm:"column:expense_type;type:text;not null"`
	Title           string                       `gorm:"column:title;not null"`
	TotalCost       int64                        `gorm:"column:total_cost;not null"`
	Status          enums.OperationRequestStatus `gorm:"column:status;type:text;not null"`
	ReviewedBy      *uuid.UUID                   `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time                   `gorm:"column:reviewed_at"`
	RejectionReason *string                      `gorm:"column:rejection_reason"`
	CreatedAt       time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *OperationRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	if r.Status == "" {
		r.Status = enums.OperationRequestPending
	}
	return nil
}
