package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	"github.com/foodrelief/relief-backend/pkg/pagination"
)

// Repository persists delivery tasks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, task *models.DeliveryTask) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryTask, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	FindBatch(ctx context.Context, batchID uuid.UUID) (*models.MealBatch, error)
	IsReplaced(ctx context.Context, taskID uuid.UUID) (bool, error)
	ListByStaff(ctx context.Context, staffID uuid.UUID, status *enums.DeliveryTaskStatus, after *pagination.Cursor, limit int) ([]models.DeliveryTask, error)
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

func (r *repository) Create(ctx context.Context, task *models.DeliveryTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryTask, error) {
	var task models.DeliveryTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&models.DeliveryTask{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) FindBatch(ctx context.Context, batchID uuid.UUID) (*models.MealBatch, error) {
	var batch models.MealBatch
	if err := r.db.WithContext(ctx).Where("id = ?", batchID).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) IsReplaced(ctx context.Context, taskID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.DeliveryTask{}).Where("replaces_task_id = ?", taskID).Count(&count).Error
	return count > 0, err
}

// ListByStaff returns up to limit tasks newest first, strictly after the
// given cursor when one is set.
func (r *repository) ListByStaff(ctx context.Context, staffID uuid.UUID, status *enums.DeliveryTaskStatus, after *pagination.Cursor, limit int) ([]models.DeliveryTask, error) {
	query := r.db.WithContext(ctx).Where("delivery_staff_id = ?", staffID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if after != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var tasks []models.DeliveryTask
	err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&tasks).Error
	return tasks, err
}
