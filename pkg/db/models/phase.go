package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Phase is one sequential, budgeted stage of a campaign. Version backs the
// per-phase compare-and-swap used to serialize concurrent transitions.
type Phase struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CampaignID uuid.UUID `gorm:"column:campaign_id;type:uuid;not null;index"`
	Position   int       `gorm:"column:position;not null"`
	Name       string    `gorm:"column:name;not null"`

	TotalFundsAmount      int64 `gorm:"column:total_funds_amount;not null;default:0"`
	IngredientBudgetPct   int   `gorm:"column:ingredient_budget_pct;not null"`
	CookingBudgetPct      int   `gorm:"column:cooking_budget_pct;not null"`
	DeliveryBudgetPct     int   `gorm:"column:delivery_budget_pct;not null"`
	IngredientFundsAmount int64 `gorm:"column:ingredient_funds_amount;not null;default:0"`
	CookingFundsAmount    int64 `gorm:"column:cooking_funds_amount;not null;default:0"`
	DeliveryFundsAmount   int64 `gorm:"column:delivery_funds_amount;not null;default:0"`

	Status       enums.PhaseStatus `gorm:"column:status;type:text;not null"`
	StatusReason *string           `gorm:"column:status_reason"`
	Version      int64             `gorm:"column:version;not null;default:0"`

	IngredientPurchaseDate *time.Time `gorm:"column:ingredient_purchase_date"`
	CookingDate            *time.Time `gorm:"column:cooking_date"`
	DeliveryDate           *time.Time `gorm:"column:delivery_date"`

	PlannedIngredients []PlannedIngredient `gorm:"foreignKey:PhaseID;constraint:OnDelete:CASCADE"`
	PlannedMeals       []PlannedMeal       `gorm:"foreignKey:PhaseID;constraint:OnDelete:CASCADE"`

	TerminatedAt *time.Time `gorm:"column:terminated_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Phase) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = enums.PhaseStatusPlanning
	}
	return nil
}

// PlannedIngredient is a pre-declared purchase target for a phase.
type PlannedIngredient struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID  uuid.UUID       `gorm:"column:phase_id;type:uuid;not null;index"`
	Name     string          `gorm:"column:name;not null"`
	Quantity decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	Unit     string          `gorm:"column:unit;not null"`
}

func (p *PlannedIngredient) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PlannedMeal is a pre-declared production target for a phase.
type PlannedMeal struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID  uuid.UUID `gorm:"column:phase_id;type:uuid;not null;index"`
	Name     string    `gorm:"column:name;not null"`
	Quantity int       `gorm:"column:quantity;not null"`
}

func (p *PlannedMeal) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PhaseTransition is the audit trail of persisted status changes.
type PhaseTransition struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	PhaseID     uuid.UUID         `gorm:"column:phase_id;type:uuid;not null;index"`
	FromStatus  enums.PhaseStatus `gorm:"column:from_status;type:text;not null"`
	ToStatus    enums.PhaseStatus `gorm:"column:to_status;type:text;not null"`
	ActorUserID *uuid.UUID        `gorm:"column:actor_user_id;type:uuid"`
	Reason      *string           `gorm:"column:reason"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (t *PhaseTransition) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
