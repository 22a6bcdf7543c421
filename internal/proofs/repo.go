package proofs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Repository persists expense proofs and reads the requests they target.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, proof *models.ExpenseProof) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ExpenseProof, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	HasOpenProof(ctx context.Context, requestID uuid.UUID) (bool, error)
	FindIngredientRequest(ctx context.Context, id uuid.UUID) (*models.IngredientRequest, error)
	FindOperationRequest(ctx context.Context, id uuid.UUID) (*models.OperationRequest, error)
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

func (r *repository) Create(ctx context.Context, proof *models.ExpenseProof) error {
	return r.db.WithContext(ctx).Create(proof).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ExpenseProof, error) {
	var proof models.ExpenseProof
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&proof).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.ExpenseProof{}).Where("id = ?", id).Updates(updates).Error
}

// HasOpenProof reports whether the request already has a pending or approved
// proof. Rejected proofs may be replaced.
func (r *repository) HasOpenProof(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ExpenseProof{}).
		Where("request_id = ? AND status <> ?", requestID, enums.ExpenseProofRejected).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) FindIngredientRequest(ctx context.Context, id uuid.UUID) (*models.IngredientRequest, error) {
	var req models.IngredientRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) FindOperationRequest(ctx context.Context, id uuid.UUID) (*models.OperationRequest, error) {
	var req models.OperationRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}
