package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/foodrelief/relief-backend/pkg/db/types"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// MealBatch is a produced quantity of one food item within a phase.
type MealBatch struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID        uuid.UUID                  `gorm:"column:phase_id;type:uuid;not null;index"`
	FoodName       string                     `gorm:"column:food_name;not null"`
	Quantity       int                        `gorm:"column:quantity;not null"`
	Status         enums.MealBatchStatus      `gorm:"column:status;type:text;not null"`
	CookedAt       *time.Time                 `gorm:"column:cooked_at"`
	PlannedMealID  *uuid.UUID                 `gorm:"column:planned_meal_id;type:uuid"`
	MediaKeys      dbtypes.StringList         `gorm:"column:media_keys;type:jsonb;not null"`
	KitchenStaffID uuid.UUID                  `gorm:"column:kitchen_staff_id;type:uuid;not null"`
	Usages         []MealBatchIngredientUsage `gorm:"foreignKey:MealBatchID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (b *MealBatch) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	if b.Status == "" {
		b.Status = enums.MealBatchPending
	}
	return nil
}

// MealBatchIngredientUsage consumes part of an ingredient request line item.
type MealBatchIngredientUsage struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MealBatchID   uuid.UUID       `gorm:"column:meal_batch_id;type:uuid;not null;index"`
	PhaseID       uuid.UUID       `gorm:"column:phase_id;type:uuid;not null;index"`
	RequestItemID uuid.UUID       `gorm:"column:request_item_id;type:uuid;not null;index"`
	UsedQuantity  decimal.Decimal `gorm:"column:used_quantity;type:numeric(14,3);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (u *MealBatchIngredientUsage) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
