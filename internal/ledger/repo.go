package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// Repository is append-only: ledger rows are never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.LedgerEvent) error
	ForPhase(ctx context.Context, phaseID uuid.UUID) ([]models.LedgerEvent, error)
	HasEntry(ctx context.Context, requestID uuid.UUID, kind enums.LedgerEventType) (bool, error)
	BucketTotals(ctx context.Context, phaseID uuid.UUID) (map[enums.BudgetBucket]int64, error)
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

func (r *repository) Append(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ForPhase returns entries oldest first.
func (r *repository) ForPhase(ctx context.Context, phaseID uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := r.db.WithContext(ctx).
		Where(&models.LedgerEvent{PhaseID: phaseID}).
		Order("created_at, id").
		Find(&events).Error
	return events, err
}

func (r *repository) HasEntry(ctx context.Context, requestID uuid.UUID, kind enums.LedgerEventType) (bool, error) {
	var hits []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Where(&models.LedgerEvent{RequestID: requestID, Type: kind}).
		Limit(1).
		Pluck("id", &hits).Error
	return len(hits) > 0, err
}

// BucketTotals sums disbursed minor units per bucket. Buckets with no entries
// are absent from the map.
func (r *repository) BucketTotals(ctx context.Context, phaseID uuid.UUID) (map[enums.BudgetBucket]int64, error) {
	type bucketSum struct {
		Bucket enums.BudgetBucket
		Total  int64
	}
	var sums []bucketSum
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEvent{}).
		Select("bucket, COALESCE(SUM(amount_minor), 0) AS total").
		Where(&models.LedgerEvent{PhaseID: phaseID}).
		Group("bucket").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	totals := make(map[enums.BudgetBucket]int64, len(sums))
	for _, s := range sums {
		totals[s.Bucket] = s.Total
	}
	return totals, nil
}
