package mealbatches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	dbtypes "github.com/foodrelief/relief-backend/pkg/db/types"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

type phaseRunner interface {
	Mutate(ctx context.Context, operation string, phaseID uuid.UUID, actor phases.Actor, fn phases.MutateFunc) (*phases.Change, error)
}

// KeyValidator checks media object keys handed back by the upload flow.
type KeyValidator interface {
	ValidateKeys(keys []string) error
}

// Service tracks cooked meal batches and the ingredients they consume.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*BatchResult, error)
	AddUsage(ctx context.Context, batchID uuid.UUID, usages []UsageInput, actor phases.Actor) (*BatchResult, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*BatchResult, error)
	Get(ctx context.Context, batchID uuid.UUID) (*phases.MealBatchView, error)
}

type UsageInput struct {
	RequestItemID uuid.UUID
	Quantity      decimal.Decimal
}

type CreateInput struct {
	PhaseID       uuid.UUID
	FoodName      string
	Quantity      int
	PlannedMealID *uuid.UUID
	Usages        []UsageInput
	MediaKeys     []string
	Actor         phases.Actor
}

// UpdateStatusInput moves a batch forward. MediaKeys are appended to the
// batch evidence when it is marked cooked.
// UpdateStatusInput moves a batch forward. CookedAt is the kitchen's cooked
// date for READY and defaults to now.
type UpdateStatusInput struct {
	BatchID   uuid.UUID
	Status    enums.MealBatchStatus
	CookedAt  *time.Time
	MediaKeys []string
	Actor     phases.Actor
}

// cookedAtSkew tolerates client clocks running slightly ahead.
const cookedAtSkew = 5 * time.Minute

type BatchResult struct {
	phases.MealBatchView
	PhaseStatus enums.PhaseStatus `json:"phase_status"`
}

var nextBatchStatus = map[enums.MealBatchStatus]enums.MealBatchStatus{
	enums.MealBatchPending: enums.MealBatchReady,
	enums.MealBatchReady:   enums.MealBatchCompleted,
}

type service struct {
	repo   Repository
	runner phaseRunner
	keys   KeyValidator
}

func NewService(repo Repository, runner phaseRunner, keys KeyValidator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("meal batch repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("phase runner required")
	}
	if keys == nil {
		return nil, fmt.Errorf("media key validator required")
	}
	return &service{repo: repo, runner: runner, keys: keys}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*BatchResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.PhaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phase id is required")
	}
	name := strings.TrimSpace(input.FoodName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "food name is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if len(input.MediaKeys) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one media key is required")
	}
	if err := s.keys.ValidateKeys(input.MediaKeys); err != nil {
		return nil, err
	}
	wanted, err := mergeUsages(input.Usages)
	if err != nil {
		return nil, err
	}

	var batchID uuid.UUID
	change, err := s.runner.Mutate(ctx, "create_meal_batch", input.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		if !phase.Status.AtLeast(enums.PhaseStatusCooking) {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "meal batches need a phase in COOKING or later, phase is %s", phase.Status)
		}
		repo := s.repo.WithTx(tx)
		if input.PlannedMealID != nil {
			ok, err := repo.PlannedMealExists(ctx, phase.ID, *input.PlannedMealID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check planned meal")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "planned meal does not belong to this phase")
			}
		}
		if err := checkConsumption(ctx, repo, phase.ID, wanted); err != nil {
			return err
		}

		batch := &models.MealBatch{
			PhaseID:        phase.ID,
			FoodName:       name,
			Quantity:       input.Quantity,
			Status:         enums.MealBatchPending,
			PlannedMealID:  input.PlannedMealID,
			MediaKeys:      dbtypes.StringList(input.MediaKeys),
			KitchenStaffID: input.Actor.UserID,
		}
		if err := repo.Create(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create meal batch")
		}
		batchID = batch.ID
		if err := repo.AddUsages(ctx, usageRows(batch.ID, phase.ID, wanted)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ingredient usage")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(ctx, batchID, change)
}

func (s *service) AddUsage(ctx context.Context, batchID uuid.UUID, usages []UsageInput, actor phases.Actor) (*BatchResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if len(usages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one usage is required")
	}
	wanted, err := mergeUsages(usages)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		return nil, lookupError(err)
	}

	change, err := s.runner.Mutate(ctx, "add_meal_batch_usage", existing.PhaseID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		batch, err := repo.FindByID(ctx, batchID)
		if err != nil {
			return lookupError(err)
		}
		if batch.Status != enums.MealBatchPending {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "meal batch is %s, usage can only change while PENDING", batch.Status)
		}
		if err := checkConsumption(ctx, repo, phase.ID, wanted); err != nil {
			return err
		}
		if err := repo.AddUsages(ctx, usageRows(batch.ID, phase.ID, wanted)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ingredient usage")
		}
		return repo.Update(ctx, batch.ID, map[string]any{})
	})
	if err != nil {
		return nil, err
	}
	return s.result(ctx, batchID, change)
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*BatchResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid meal batch status %q", input.Status)
	}
	cookedAt, err := resolveCookedAt(input, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if len(input.MediaKeys) > 0 {
		if err := s.keys.ValidateKeys(input.MediaKeys); err != nil {
			return nil, err
		}
	}
	existing, err := s.repo.FindByID(ctx, input.BatchID)
	if err != nil {
		return nil, lookupError(err)
	}

	change, err := s.runner.Mutate(ctx, "update_meal_batch_status", existing.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		batch, err := repo.FindByID(ctx, input.BatchID)
		if err != nil {
			return lookupError(err)
		}
		if next, ok := nextBatchStatus[batch.Status]; !ok || next != input.Status {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "meal batch cannot move from %s to %s", batch.Status, input.Status).
				WithDetails(map[string]any{"batch_id": batch.ID, "status": batch.Status})
		}
		updates := map[string]any{"status": input.Status}
		if input.Status == enums.MealBatchReady {
			updates["cooked_at"] = cookedAt
			if len(input.MediaKeys) > 0 {
				keys := append(append(dbtypes.StringList{}, batch.MediaKeys...), input.MediaKeys...)
				updates["media_keys"] = keys
			}
		}
		if err := repo.Update(ctx, batch.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update meal batch")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.result(ctx, input.BatchID, change)
}

func (s *service) Get(ctx context.Context, batchID uuid.UUID) (*phases.MealBatchView, error) {
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		return nil, lookupError(err)
	}
	view := phases.NewMealBatchView(*batch)
	return &view, nil
}

func (s *service) result(ctx context.Context, batchID uuid.UUID, change *phases.Change) (*BatchResult, error) {
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		return nil, lookupError(err)
	}
	return &BatchResult{MealBatchView: phases.NewMealBatchView(*batch), PhaseStatus: change.To}, nil
}

// mergeUsages folds repeated line items into one amount each, keeping the
// first-seen order.
func resolveCookedAt(input UpdateStatusInput, now time.Time) (time.Time, error) {
	if input.CookedAt == nil {
		return now, nil
	}
	if input.Status != enums.MealBatchReady {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "cooked date is only accepted when marking a batch READY")
	}
	cookedAt := input.CookedAt.UTC()
	if cookedAt.After(now.Add(cookedAtSkew)) {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "cooked date cannot be in the future").
			WithDetails(map[string]any{"field": "cooked_at"})
	}
	return cookedAt, nil
}

func mergeUsages(usages []UsageInput) ([]UsageInput, error) {
	merged := make([]UsageInput, 0, len(usages))
	index := make(map[uuid.UUID]int, len(usages))
	for i, usage := range usages {
		if usage.RequestItemID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "usage %d is missing a request item id", i+1)
		}
		if !usage.Quantity.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "usage %d must use a positive quantity", i+1)
		}
		if j, ok := index[usage.RequestItemID]; ok {
			merged[j].Quantity = merged[j].Quantity.Add(usage.Quantity)
			continue
		}
		index[usage.RequestItemID] = len(merged)
		merged = append(merged, usage)
	}
	return merged, nil
}

// checkConsumption rejects usage that would push any line item past its
// requested quantity across all batches of the phase.
func checkConsumption(ctx context.Context, repo Repository, phaseID uuid.UUID, wanted []UsageInput) error {
	if len(wanted) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(wanted))
	for _, usage := range wanted {
		ids = append(ids, usage.RequestItemID)
	}
	items, err := repo.DisbursedItems(ctx, phaseID, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request items")
	}
	used, err := repo.UsedQuantities(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ingredient usage")
	}
	for _, usage := range wanted {
		item, ok := items[usage.RequestItemID]
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "request item %s is not a disbursed ingredient of this phase", usage.RequestItemID)
		}
		total := used[item.ID].Add(usage.Quantity)
		if total.GreaterThan(item.Quantity) {
			return pkgerrors.Newf(pkgerrors.CodeOverconsumption, "%s usage %s exceeds requested %s %s", item.Name, total, item.Quantity, item.Unit).
				WithDetails(map[string]any{
					"request_item_id": item.ID,
					"requested":       item.Quantity.String(),
					"already_used":    used[item.ID].String(),
					"attempted":       usage.Quantity.String(),
				})
		}
	}
	return nil
}

func usageRows(batchID, phaseID uuid.UUID, usages []UsageInput) []models.MealBatchIngredientUsage {
	rows := make([]models.MealBatchIngredientUsage, 0, len(usages))
	for _, usage := range usages {
		rows = append(rows, models.MealBatchIngredientUsage{
			MealBatchID:   batchID,
			PhaseID:       phaseID,
			RequestItemID: usage.RequestItemID,
			UsedQuantity:  usage.Quantity,
		})
	}
	return rows
}

func requireActor(actor phases.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "meal batch not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load meal batch")
}
