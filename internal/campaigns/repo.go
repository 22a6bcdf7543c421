package campaigns

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Repository persists campaigns and reads their phases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListPhases(ctx context.Context, campaignID uuid.UUID) ([]models.Phase, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CampaignStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) ListPhases(ctx context.Context, campaignID uuid.UUID) ([]models.Phase, error) {
	var phases []models.Phase
	err := r.db.WithContext(ctx).
		Select("id", "campaign_id", "position", "name", "status", "total_funds_amount").
		Where("campaign_id = ?", campaignID).
		Order("position ASC").
		Find(&phases).Error
	return phases, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CampaignStatus) error {
	return r.db.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", id).Update("status", status).Error
}
