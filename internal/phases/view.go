package phases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodrelief/relief-backend/internal/budget"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// BucketView reports one budget bucket and how much of it has been released.
type BucketView struct {
	Bucket     enums.BudgetBucket `json:"bucket"`
	Percentage int                `json:"percentage"`
	Allocated  int64              `json:"allocated"`
	Disbursed  int64              `json:"disbursed"`
	Remaining  int64              `json:"remaining"`
}

type FundsAllocation struct {
	TotalFunds int64        `json:"total_funds"`
	Buckets    []BucketView `json:"buckets"`
}

// PlannedIngredientProgress compares a planned ingredient with what the
// phase actually requested and consumed.
type PlannedIngredientProgress struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	PlannedQuantity   decimal.Decimal `json:"planned_quantity"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	UsedQuantity      decimal.Decimal `json:"used_quantity"`
}

type PlannedMealProgress struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	PlannedQuantity  int       `json:"planned_quantity"`
	ProducedQuantity int       `json:"produced_quantity"`
}

// PhaseSummary is the list representation of a phase.
type PhaseSummary struct {
	ID                     uuid.UUID         `json:"id"`
	CampaignID             uuid.UUID         `json:"campaign_id"`
	Position               int               `json:"position"`
	Name                   string            `json:"name"`
	Status                 enums.PhaseStatus `json:"status"`
	StatusReason           *string           `json:"status_reason,omitempty"`
	Funds                  budget.Allocation `json:"funds"`
	IngredientPurchaseDate *time.Time        `json:"ingredient_purchase_date,omitempty"`
	CookingDate            *time.Time        `json:"cooking_date,omitempty"`
	DeliveryDate           *time.Time        `json:"delivery_date,omitempty"`
	Version                int64             `json:"version"`
}

// PhaseView is the full read model returned by getPhase.
type PhaseView struct {
	PhaseSummary
	Allocation         FundsAllocation             `json:"funds_allocation"`
	PlannedIngredients []PlannedIngredientProgress `json:"planned_ingredients"`
	PlannedMeals       []PlannedMealProgress       `json:"planned_meals"`
	IngredientRequests []IngredientRequestView     `json:"ingredient_requests"`
	OperationRequests  []OperationRequestView      `json:"operation_requests"`
	ExpenseProofs      []ExpenseProofView          `json:"expense_proofs"`
	MealBatches        []MealBatchView             `json:"meal_batches"`
	DeliveryTasks      []DeliveryTaskView          `json:"delivery_tasks"`
	Transitions        []TransitionView            `json:"transitions"`
}

// AllocationOf reads the stored bucket split of a phase.
func AllocationOf(phase *models.Phase) budget.Allocation {
	return budget.Allocation{
		Total:         phase.TotalFundsAmount,
		IngredientPct: phase.IngredientBudgetPct,
		CookingPct:    phase.CookingBudgetPct,
		DeliveryPct:   phase.DeliveryBudgetPct,
		Ingredient:    phase.IngredientFundsAmount,
		Cooking:       phase.CookingFundsAmount,
		Delivery:      phase.DeliveryFundsAmount,
	}
}

func newSummary(phase *models.Phase, status enums.PhaseStatus) PhaseSummary {
	return PhaseSummary{
		ID:                     phase.ID,
		CampaignID:             phase.CampaignID,
		Position:               phase.Position,
		Name:                   phase.Name,
		Status:                 status,
		StatusReason:           phase.StatusReason,
		Funds:                  AllocationOf(phase),
		IngredientPurchaseDate: phase.IngredientPurchaseDate,
		CookingDate:            phase.CookingDate,
		DeliveryDate:           phase.DeliveryDate,
		Version:                phase.Version,
	}
}

func buildView(phase *models.Phase, status enums.PhaseStatus, children *Children, disbursed map[enums.BudgetBucket]int64, transitions []models.PhaseTransition) *PhaseView {
	alloc := AllocationOf(phase)
	view := &PhaseView{
		PhaseSummary:       newSummary(phase, status),
		Allocation:         FundsAllocation{TotalFunds: alloc.Total},
		IngredientRequests: make([]IngredientRequestView, 0, len(children.IngredientRequests)),
		OperationRequests:  make([]OperationRequestView, 0, len(children.OperationRequests)),
		ExpenseProofs:      make([]ExpenseProofView, 0, len(children.ExpenseProofs)),
		MealBatches:        make([]MealBatchView, 0, len(children.MealBatches)),
		DeliveryTasks:      make([]DeliveryTaskView, 0, len(children.DeliveryTasks)),
		Transitions:        make([]TransitionView, 0, len(transitions)),
	}

	buckets := []struct {
		bucket enums.BudgetBucket
		pct    int
	}{
		{enums.BudgetBucketIngredient, alloc.IngredientPct},
		{enums.BudgetBucketCooking, alloc.CookingPct},
		{enums.BudgetBucketDelivery, alloc.DeliveryPct},
	}
	for _, b := range buckets {
		allocated := alloc.Amount(b.bucket)
		released := disbursed[b.bucket]
		view.Allocation.Buckets = append(view.Allocation.Buckets, BucketView{
			Bucket:     b.bucket,
			Percentage: b.pct,
			Allocated:  allocated,
			Disbursed:  released,
			Remaining:  allocated - released,
		})
	}

	for _, req := range children.IngredientRequests {
		view.IngredientRequests = append(view.IngredientRequests, NewIngredientRequestView(req))
	}
	for _, req := range children.OperationRequests {
		view.OperationRequests = append(view.OperationRequests, NewOperationRequestView(req))
	}
	for _, proof := range children.ExpenseProofs {
		view.ExpenseProofs = append(view.ExpenseProofs, NewExpenseProofView(proof))
	}
	for _, batch := range children.MealBatches {
		view.MealBatches = append(view.MealBatches, NewMealBatchView(batch))
	}
	superseded := SupersededTasks(children.DeliveryTasks)
	for _, task := range children.DeliveryTasks {
		view.DeliveryTasks = append(view.DeliveryTasks, NewDeliveryTaskView(task, superseded[task.ID]))
	}
	for _, t := range transitions {
		view.Transitions = append(view.Transitions, TransitionView{
			From:        t.FromStatus,
			To:          t.ToStatus,
			ActorUserID: t.ActorUserID,
			Reason:      t.Reason,
			At:          t.CreatedAt,
		})
	}

	view.PlannedIngredients, view.PlannedMeals = reconcilePlan(phase, children)
	return view
}

// reconcilePlan sums requested and consumed quantities per planned
// ingredient and produced meals per planned meal. Rejected requests and
// uncooked batches are ignored.
func reconcilePlan(phase *models.Phase, children *Children) ([]PlannedIngredientProgress, []PlannedMealProgress) {
	ingredients := make([]PlannedIngredientProgress, 0, len(phase.PlannedIngredients))
	index := make(map[uuid.UUID]int, len(phase.PlannedIngredients))
	for i, planned := range phase.PlannedIngredients {
		index[planned.ID] = i
		ingredients = append(ingredients, PlannedIngredientProgress{
			ID:                planned.ID,
			Name:              planned.Name,
			Unit:              planned.Unit,
			PlannedQuantity:   planned.Quantity,
			RequestedQuantity: decimal.Zero,
			UsedQuantity:      decimal.Zero,
		})
	}

	itemPlan := make(map[uuid.UUID]int)
	for _, req := range children.IngredientRequests {
		if !req.Status.IsActive() {
			continue
		}
		for _, item := range req.Items {
			if item.PlannedIngredientID == nil {
				continue
			}
			i, ok := index[*item.PlannedIngredientID]
			if !ok {
				continue
			}
			itemPlan[item.ID] = i
			ingredients[i].RequestedQuantity = ingredients[i].RequestedQuantity.Add(item.Quantity)
		}
	}

	meals := make([]PlannedMealProgress, 0, len(phase.PlannedMeals))
	mealIndex := make(map[uuid.UUID]int, len(phase.PlannedMeals))
	for i, planned := range phase.PlannedMeals {
		mealIndex[planned.ID] = i
		meals = append(meals, PlannedMealProgress{ID: planned.ID, Name: planned.Name, PlannedQuantity: planned.Quantity})
	}

	for _, batch := range children.MealBatches {
		for _, usage := range batch.Usages {
			if i, ok := itemPlan[usage.RequestItemID]; ok {
				ingredients[i].UsedQuantity = ingredients[i].UsedQuantity.Add(usage.UsedQuantity)
			}
		}
		if batch.PlannedMealID == nil || !batch.Status.IsCooked() {
			continue
		}
		if i, ok := mealIndex[*batch.PlannedMealID]; ok {
			meals[i].ProducedQuantity += batch.Quantity
		}
	}
	return ingredients, meals
}
