package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// DeliveryTask moves part of a meal batch to recipients. A task that replaces
// a rejected or failed one points at it through ReplacesTaskID.
type DeliveryTask struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID         uuid.UUID                `gorm:"column:phase_id;type:uuid;not null;index"`
	MealBatchID     uuid.UUID                `gorm:"column:meal_batch_id;type:uuid;not null;index"`
	DeliveryStaffID uuid.UUID                `gorm:"column:delivery_staff_id;type:uuid;not null;index"`
	AssignedBy      uuid.UUID                `gorm:"column:assigned_by;type:uuid;not null"`
	Status          enums.DeliveryTaskStatus `gorm:"column:status;type:text;not null"`
	FailureNote     *string                  `gorm:"column:failure_note"`
	ReplacesTaskID  *uuid.UUID               `gorm:"column:replaces_task_id;type:uuid"`
	CompletedAt     *time.Time               `gorm:"column:completed_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *DeliveryTask) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	if t.Status == "" {
		t.Status = enums.DeliveryTaskPending
	}
	return nil
}
