package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// DefaultCurrency is used when a campaign does not name one.
const DefaultCurrency = "VND"

// Campaign owns an ordered list of phases. Amounts are in currency minor units.
type Campaign struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Title          string               `gorm:"column:title;not null"`
	TargetAmount   int64                `gorm:"column:target_amount;not null"`
	ReceivedAmount int64                `gorm:"column:received_amount;not null;default:0"`
	Currency       string               `gorm:"column:currency;not null"`
	Status         enums.CampaignStatus `gorm:"column:status;type:text;not null"`
	CreatedBy      uuid.UUID            `gorm:"column:created_by;type:uuid;not null"`
	Phases         []Phase              `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Campaign) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	if c.Status == "" {
		c.Status = enums.CampaignStatusActive
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	return nil
}
