package phases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/budget"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Repository defines persistence for phases and the child reads the state
// machine needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, phase *models.Phase) error
	CampaignExists(ctx context.Context, campaignID uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Phase, error)
	FindDetailed(ctx context.Context, id uuid.UUID) (*models.Phase, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Phase, error)
	ClaimVersion(ctx context.Context, id uuid.UUID, version int64) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PhaseStatus, reason *string, terminatedAt *time.Time) error
	UpdateBudget(ctx context.Context, id uuid.UUID, alloc budget.Allocation) error
	RecordTransition(ctx context.Context, transition *models.PhaseTransition) error
	ListTransitions(ctx context.Context, phaseID uuid.UUID) ([]models.PhaseTransition, error)
	LoadSnapshot(ctx context.Context, phaseID uuid.UUID) (Snapshot, error)
	LoadChildren(ctx context.Context, phaseID uuid.UUID) (*Children, error)
}

// Children groups every child row of a phase for the read model.
type Children struct {
	IngredientRequests []models.IngredientRequest
	OperationRequests  []models.OperationRequest
	ExpenseProofs      []models.ExpenseProof
	MealBatches        []models.MealBatch
	DeliveryTasks      []models.DeliveryTask
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a phase repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, phase *models.Phase) error {
	return r.db.WithContext(ctx).Create(phase).Error
}

func (r *repository) CampaignExists(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Campaign{}).Where("id = ?", campaignID).Count(&count).Error
	return count > 0, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Phase, error) {
	var phase models.Phase
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&phase).Error; err != nil {
		return nil, err
	}
	return &phase, nil
}

func (r *repository) FindDetailed(ctx context.Context, id uuid.UUID) (*models.Phase, error) {
	var phase models.Phase
	err := r.db.WithContext(ctx).
		Preload("PlannedIngredients", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Preload("PlannedMeals", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("id = ?", id).
		First(&phase).Error
	if err != nil {
		return nil, err
	}
	return &phase, nil
}

func (r *repository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Phase, error) {
	var phases []models.Phase
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("position ASC").
		Find(&phases).Error
	return phases, err
}

// ClaimVersion bumps the phase version only if it still equals version. On
// Postgres the UPDATE also holds the row lock until the transaction ends.
func (r *repository) ClaimVersion(ctx context.Context, id uuid.UUID, version int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Phase{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PhaseStatus, reason *string, terminatedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if reason != nil {
		updates["status_reason"] = *reason
	}
	if terminatedAt != nil {
		updates["terminated_at"] = *terminatedAt
	}
	return r.db.WithContext(ctx).Model(&models.Phase{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) UpdateBudget(ctx context.Context, id uuid.UUID, alloc budget.Allocation) error {
	return r.db.WithContext(ctx).Model(&models.Phase{}).Where("id = ?", id).Updates(map[string]any{
		"total_funds_amount":      alloc.Total,
		"ingredient_budget_pct":   alloc.IngredientPct,
		"cooking_budget_pct":      alloc.CookingPct,
		"delivery_budget_pct":     alloc.DeliveryPct,
		"ingredient_funds_amount": alloc.Ingredient,
		"cooking_funds_amount":    alloc.Cooking,
		"delivery_funds_amount":   alloc.Delivery,
	}).Error
}

func (r *repository) RecordTransition(ctx context.Context, transition *models.PhaseTransition) error {
	return r.db.WithContext(ctx).Create(transition).Error
}

func (r *repository) ListTransitions(ctx context.Context, phaseID uuid.UUID) ([]models.PhaseTransition, error) {
	var rows []models.PhaseTransition
	err := r.db.WithContext(ctx).
		Where("phase_id = ?", phaseID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) LoadSnapshot(ctx context.Context, phaseID uuid.UUID) (Snapshot, error) {
	var snapshot Snapshot
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.IngredientRequest{}).
		Where("phase_id = ?", phaseID).
		Pluck("status", &snapshot.IngredientRequests).Error; err != nil {
		return Snapshot{}, err
	}
	if err := db.Model(&models.ExpenseProof{}).
		Where("phase_id = ? AND request_kind = ?", phaseID, enums.ExpenseRequestIngredient).
		Pluck("status", &snapshot.IngredientProofs).Error; err != nil {
		return Snapshot{}, err
	}

	var ops []models.OperationRequest
	if err := db.Select("expense_type", "status").Where("phase_id = ?", phaseID).Find(&ops).Error; err != nil {
		return Snapshot{}, err
	}
	for _, op := range ops {
		snapshot.OperationRequests = append(snapshot.OperationRequests, OperationSignal{ExpenseType: op.ExpenseType, Status: op.Status})
	}

	var batches []models.MealBatch
	if err := db.Select("id", "status").Where("phase_id = ?", phaseID).Find(&batches).Error; err != nil {
		return Snapshot{}, err
	}
	for _, batch := range batches {
		snapshot.MealBatches = append(snapshot.MealBatches, BatchSignal{ID: batch.ID, Status: batch.Status})
	}

	var tasks []models.DeliveryTask
	if err := db.Select("id", "meal_batch_id", "status", "replaces_task_id").Where("phase_id = ?", phaseID).Find(&tasks).Error; err != nil {
		return Snapshot{}, err
	}
	superseded := SupersededTasks(tasks)
	for _, task := range tasks {
		snapshot.DeliveryTasks = append(snapshot.DeliveryTasks, TaskSignal{
			BatchID:    task.MealBatchID,
			Status:     task.Status,
			Superseded: superseded[task.ID],
		})
	}
	return snapshot, nil
}

func (r *repository) LoadChildren(ctx context.Context, phaseID uuid.UUID) (*Children, error) {
	db := r.db.WithContext(ctx)
	var children Children
	if err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("phase_id = ?", phaseID).Order("created_at ASC").
		Find(&children.IngredientRequests).Error; err != nil {
		return nil, err
	}
	if err := db.Where("phase_id = ?", phaseID).Order("created_at ASC").Find(&children.OperationRequests).Error; err != nil {
		return nil, err
	}
	if err := db.Where("phase_id = ?", phaseID).Order("created_at ASC").Find(&children.ExpenseProofs).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Usages").Where("phase_id = ?", phaseID).Order("created_at ASC").Find(&children.MealBatches).Error; err != nil {
		return nil, err
	}
	if err := db.Where("phase_id = ?", phaseID).Order("created_at ASC").Find(&children.DeliveryTasks).Error; err != nil {
		return nil, err
	}
	return &children, nil
}

// SupersededTasks returns the ids of reassignable tasks that a newer task
// replaces. Such tasks no longer count toward delivery completion.
func SupersededTasks(tasks []models.DeliveryTask) map[uuid.UUID]bool {
	byID := make(map[uuid.UUID]enums.DeliveryTaskStatus, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task.Status
	}
	out := make(map[uuid.UUID]bool)
	for _, task := range tasks {
		if task.ReplacesTaskID == nil {
			continue
		}
		if status, ok := byID[*task.ReplacesTaskID]; ok && status.IsReassignable() {
			out[*task.ReplacesTaskID] = true
		}
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
