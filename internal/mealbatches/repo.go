package mealbatches

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Repository persists meal batches and the ingredient usage they consume.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, batch *models.MealBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MealBatch, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AddUsages(ctx context.Context, usages []models.MealBatchIngredientUsage) error
	DisbursedItems(ctx context.Context, phaseID uuid.UUID, itemIDs []uuid.UUID) (map[uuid.UUID]models.IngredientRequestItem, error)
	UsedQuantities(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	PlannedMealExists(ctx context.Context, phaseID, mealID uuid.UUID) (bool, error)
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

func (r *repository) Create(ctx context.Context, batch *models.MealBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MealBatch, error) {
	var batch models.MealBatch
	err := r.db.WithContext(ctx).
		Preload("Usages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.MealBatch{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) AddUsages(ctx context.Context, usages []models.MealBatchIngredientUsage) error {
	if len(usages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&usages).Error
}

// DisbursedItems returns the requested line items that belong to a DISBURSED
// ingredient request of the phase. Unknown or foreign ids are simply absent.
func (r *repository) DisbursedItems(ctx context.Context, phaseID uuid.UUID, itemIDs []uuid.UUID) (map[uuid.UUID]models.IngredientRequestItem, error) {
	out := make(map[uuid.UUID]models.IngredientRequestItem, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var items []models.IngredientRequestItem
	err := r.db.WithContext(ctx).
		Table("ingredient_request_items AS i").
		Select("i.*").
		Joins("JOIN ingredient_requests r ON r.id = i.request_id").
		Where("i.id IN ? AND i.phase_id = ? AND r.status = ?", itemIDs, phaseID, enums.IngredientRequestDisbursed).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

// UsedQuantities sums recorded usage per line item across every batch.
func (r *repository) UsedQuantities(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var usages []models.MealBatchIngredientUsage
	if err := r.db.WithContext(ctx).
		Select("request_item_id", "used_quantity").
		Where("request_item_id IN ?", itemIDs).
		Find(&usages).Error; err != nil {
		return nil, err
	}
	for _, usage := range usages {
		out[usage.RequestItemID] = out[usage.RequestItemID].Add(usage.UsedQuantity)
	}
	return out, nil
}

func (r *repository) PlannedMealExists(ctx context.Context, phaseID, mealID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PlannedMeal{}).
		Where("id = ? AND phase_id = ?", mealID, phaseID).
		Count(&count).Error
	return count > 0, err
}
