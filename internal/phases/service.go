package phases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/budget"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

// DisbursementReader reports how much of each bucket has been released.
type DisbursementReader interface {
	DisbursedByBucket(ctx context.Context, phaseID uuid.UUID) (map[enums.BudgetBucket]int64, error)
}

// Service exposes phase lifecycle operations outside the child components.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*PhaseView, error)
	UpdateBudget(ctx context.Context, input UpdateBudgetInput) (*PhaseSummary, error)
	Get(ctx context.Context, phaseID uuid.UUID) (*PhaseView, error)
	List(ctx context.Context, campaignID uuid.UUID, status *enums.PhaseStatus) ([]PhaseSummary, error)
	Cancel(ctx context.Context, phaseID uuid.UUID, actor Actor, reason string) (*PhaseSummary, error)
	Fail(ctx context.Context, phaseID uuid.UUID, actor Actor, reason string) (*PhaseSummary, error)
}

type PlannedIngredientInput struct {
	Name     string
	Quantity decimal.Decimal
	Unit     string
}

type PlannedMealInput struct {
	Name     string
	Quantity int
}

// CreateInput describes a new phase. A non-positive Position appends the
// phase after the campaign's existing ones.
type CreateInput struct {
	CampaignID             uuid.UUID
	Name                   string
	Position               int
	TotalFunds             int64
	IngredientPct          int
	CookingPct             int
	DeliveryPct            int
	PlannedIngredients     []PlannedIngredientInput
	PlannedMeals           []PlannedMealInput
	IngredientPurchaseDate *time.Time
	CookingDate            *time.Time
	DeliveryDate           *time.Time
	Actor                  Actor
}

type UpdateBudgetInput struct {
	PhaseID       uuid.UUID
	TotalFunds    int64
	IngredientPct int
	CookingPct    int
	DeliveryPct   int
	Actor         Actor
}

type service struct {
	repo      Repository
	tx        txRunner
	runner    *Runner
	ledger    DisbursementReader
	campaigns CampaignSyncer
}

// NewService wires the phase service. campaigns may be nil.
func NewService(repo Repository, tx txRunner, runner *Runner, ledger DisbursementReader, campaigns CampaignSyncer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("phase repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if runner == nil {
		return nil, fmt.Errorf("phase runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("disbursement reader required")
	}
	return &service{repo: repo, tx: tx, runner: runner, ledger: ledger, campaigns: campaigns}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*PhaseView, error) {
	if input.CampaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phase name is required")
	}
	if err := validateSchedule(input.IngredientPurchaseDate, input.CookingDate, input.DeliveryDate); err != nil {
		return nil, err
	}
	alloc, err := budget.Allocate(input.TotalFunds, input.IngredientPct, input.CookingPct, input.DeliveryPct)
	if err != nil {
		return nil, err
	}

	phase := &models.Phase{
		CampaignID:             input.CampaignID,
		Position:               input.Position,
		Name:                   name,
		Status:                 enums.PhaseStatusPlanning,
		IngredientPurchaseDate: input.IngredientPurchaseDate,
		CookingDate:            input.CookingDate,
		DeliveryDate:           input.DeliveryDate,
	}
	applyAllocation(phase, alloc)

	for i, planned := range input.PlannedIngredients {
		item := strings.TrimSpace(planned.Name)
		if item == "" || !planned.Quantity.IsPositive() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "planned ingredient %d needs a name and a positive quantity", i+1)
		}
		phase.PlannedIngredients = append(phase.PlannedIngredients, models.PlannedIngredient{
			Name:     item,
			Quantity: planned.Quantity,
			Unit:     strings.TrimSpace(planned.Unit),
		})
	}
	for i, planned := range input.PlannedMeals {
		meal := strings.TrimSpace(planned.Name)
		if meal == "" || planned.Quantity <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "planned meal %d needs a name and a positive quantity", i+1)
		}
		phase.PlannedMeals = append(phase.PlannedMeals, models.PlannedMeal{Name: meal, Quantity: planned.Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.CampaignExists(ctx, input.CampaignID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check campaign")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		if phase.Position <= 0 {
			existing, err := repo.ListByCampaign(ctx, input.CampaignID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaign phases")
			}
			phase.Position = len(existing) + 1
		}
		if err := repo.Create(ctx, phase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create phase")
		}
		if s.campaigns != nil {
			return s.campaigns.SyncStatus(ctx, tx, input.CampaignID, input.Actor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, phase.ID)
}

func (s *service) UpdateBudget(ctx context.Context, input UpdateBudgetInput) (*PhaseSummary, error) {
	alloc, err := budget.Allocate(input.TotalFunds, input.IngredientPct, input.CookingPct, input.DeliveryPct)
	if err != nil {
		return nil, err
	}
	change, err := s.runner.Mutate(ctx, "update_phase_budget", input.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		if phase.Status != enums.PhaseStatusPlanning {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "budget can only change while PLANNING, phase is %s", phase.Status)
		}
		if err := s.repo.WithTx(tx).UpdateBudget(ctx, phase.ID, alloc); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update phase budget")
		}
		applyAllocation(phase, alloc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary := newSummary(change.Phase, change.To)
	return &summary, nil
}

func (s *service) Get(ctx context.Context, phaseID uuid.UUID) (*PhaseView, error) {
	if phaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phase id is required")
	}
	phase, err := s.repo.FindDetailed(ctx, phaseID)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "phase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load phase")
	}
	status, err := s.currentStatus(ctx, phase)
	if err != nil {
		return nil, err
	}
	children, err := s.repo.LoadChildren(ctx, phaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load phase children")
	}
	disbursed, err := s.ledger.DisbursedByBucket(ctx, phaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load disbursements")
	}
	transitions, err := s.repo.ListTransitions(ctx, phaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transitions")
	}
	return buildView(phase, status, children, disbursed, transitions), nil
}

func (s *service) List(ctx context.Context, campaignID uuid.UUID, status *enums.PhaseStatus) ([]PhaseSummary, error) {
	if campaignID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid phase status %q", *status)
	}
	exists, err := s.repo.CampaignExists(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check campaign")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
	}
	rows, err := s.repo.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list phases")
	}
	out := make([]PhaseSummary, 0, len(rows))
	for i := range rows {
		current, err := s.currentStatus(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		if status != nil && current != *status {
			continue
		}
		out = append(out, newSummary(&rows[i], current))
	}
	return out, nil
}

func (s *service) Cancel(ctx context.Context, phaseID uuid.UUID, actor Actor, reason string) (*PhaseSummary, error) {
	return s.terminate(ctx, "cancel_phase", phaseID, actor, enums.PhaseStatusCancelled, reason)
}

func (s *service) Fail(ctx context.Context, phaseID uuid.UUID, actor Actor, reason string) (*PhaseSummary, error) {
	return s.terminate(ctx, "fail_phase", phaseID, actor, enums.PhaseStatusFailed, reason)
}

func (s *service) terminate(ctx context.Context, operation string, phaseID uuid.UUID, actor Actor, target enums.PhaseStatus, reason string) (*PhaseSummary, error) {
	change, err := s.runner.Terminate(ctx, operation, phaseID, actor, target, reason)
	if err != nil {
		return nil, err
	}
	summary := newSummary(change.Phase, change.To)
	return &summary, nil
}

// currentStatus recomputes the status from stored children without writing.
func (s *service) currentStatus(ctx context.Context, phase *models.Phase) (enums.PhaseStatus, error) {
	if phase.Status.IsTerminal() {
		return phase.Status, nil
	}
	snapshot, err := s.repo.LoadSnapshot(ctx, phase.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load phase snapshot")
	}
	return Resolve(phase.Status, snapshot), nil
}

func applyAllocation(phase *models.Phase, alloc budget.Allocation) {
	phase.TotalFundsAmount = alloc.Total
	phase.IngredientBudgetPct = alloc.IngredientPct
	phase.CookingBudgetPct = alloc.CookingPct
	phase.DeliveryBudgetPct = alloc.DeliveryPct
	phase.IngredientFundsAmount = alloc.Ingredient
	phase.CookingFundsAmount = alloc.Cooking
	phase.DeliveryFundsAmount = alloc.Delivery
}

func validateSchedule(purchase, cooking, delivery *time.Time) error {
	if purchase != nil && cooking != nil && cooking.Before(*purchase) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cooking date must not precede ingredient purchase date")
	}
	if cooking != nil && delivery != nil && delivery.Before(*cooking) {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery date must not precede cooking date")
	}
	return nil
}
