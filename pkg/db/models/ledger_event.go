package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// LedgerEvent records an immutable release of budget against a request.
type LedgerEvent struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	CampaignID  uuid.UUID             `gorm:"column:campaign_id;type:uuid;not null;index"`
	PhaseID     uuid.UUID             `gorm:"column:phase_id;type:uuid;not null;index"`
	RequestID   uuid.UUID             `gorm:"column:request_id;type:uuid;not null"`
	Bucket      enums.BudgetBucket    `gorm:"column:bucket;type:text;not null"`
	Type        enums.LedgerEventType `gorm:"column:type;type:text;not null"`
	AmountMinor int64                 `gorm:"column:amount_minor;not null"`
	ActorUserID uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	Metadata    json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
