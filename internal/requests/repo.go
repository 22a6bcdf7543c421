package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Repository persists ingredient and operation requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIngredient(ctx context.Context, req *models.IngredientRequest) error
	FindIngredient(ctx context.Context, id uuid.UUID) (*models.IngredientRequest, error)
	HasActiveIngredient(ctx context.Context, phaseID uuid.UUID) (bool, error)
	UpdateIngredient(ctx context.Context, id uuid.UUID, updates map[string]any) error
	PlannedIngredientIDs(ctx context.Context, phaseID uuid.UUID) (map[uuid.UUID]bool, error)
	CreateOperation(ctx context.Context, req *models.OperationRequest) error
	FindOperation(ctx context.Context, id uuid.UUID) (*models.OperationRequest, error)
	HasActiveOperation(ctx context.Context, phaseID uuid.UUID, expenseType enums.ExpenseType) (bool, error)
	UpdateOperation(ctx context.Context, id uuid.UUID, updates map[string]any) error
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

func (r *repository) CreateIngredient(ctx context.Context, req *models.IngredientRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindIngredient(ctx context.Context, id uuid.UUID) (*models.IngredientRequest, error) {
	var req models.IngredientRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) HasActiveIngredient(ctx context.Context, phaseID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.IngredientRequest{}).
		Where("phase_id = ? AND status <> ?", phaseID, enums.IngredientRequestRejected).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateIngredient(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.IngredientRequest{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) PlannedIngredientIDs(ctx context.Context, phaseID uuid.UUID) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PlannedIngredient{}).
		Where("phase_id = ?", phaseID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (r *repository) CreateOperation(ctx context.Context, req *models.OperationRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindOperation(ctx context.Context, id uuid.UUID) (*models.OperationRequest, error) {
	var req models.OperationRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) HasActiveOperation(ctx context.Context, phaseID uuid.UUID, expenseType enums.ExpenseType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OperationRequest{}).
		Where("phase_id = ? AND expense_type = ? AND status <> ?", phaseID, expenseType, enums.OperationRequestRejected).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateOperation(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.OperationRequest{}).Where("id = ?", id).Updates(updates).Error
}
