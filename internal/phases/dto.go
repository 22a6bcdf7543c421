package phases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
)

// IngredientRequestItemView is one purchase line as returned to clients.
type IngredientRequestItemView struct {
	ID                  uuid.UUID       `json:"id"`
	Position            int             `json:"position"`
	Name                string          `json:"name"`
	Quantity            decimal.Decimal `json:"quantity"`
	Unit                string          `json:"unit"`
	UnitPrice           int64           `json:"unit_price"`
	LineTotal           int64           `json:"line_total"`
	Supplier            string          `json:"supplier,omitempty"`
	PlannedIngredientID *uuid.UUID      `json:"planned_ingredient_id,omitempty"`
}

type IngredientRequestView struct {
	ID              uuid.UUID                     `json:"id"`
	PhaseID         uuid.UUID                     `json:"phase_id"`
	RequestedBy     uuid.UUID                     `json:"requested_by"`
	TotalCost       int64                         `json:"total_cost"`
	Status          enums.IngredientRequestStatus `json:"status"`
	Items           []IngredientRequestItemView   `json:"items"`
	ReviewedBy      *uuid.UUID                    `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time                    `json:"reviewed_at,omitempty"`
	RejectionReason *string                       `json:"rejection_reason,omitempty"`
	DisbursedAt     *time.Time                    `json:"disbursed_at,omitempty"`
	CreatedAt       time.Time                     `json:"created_at"`
}

// NewIngredientRequestView maps a request and its loaded items.
func NewIngredientRequestView(req models.IngredientRequest) IngredientRequestView {
	view := IngredientRequestView{
		ID:              req.ID,
		PhaseID:         req.PhaseID,
		RequestedBy:     req.RequestedBy,
		TotalCost:       req.TotalCost,
		Status:          req.Status,
		Items:           make([]IngredientRequestItemView, 0, len(req.Items)),
		ReviewedBy:      req.ReviewedBy,
		ReviewedAt:      req.ReviewedAt,
		RejectionReason: req.RejectionReason,
		DisbursedAt:     req.DisbursedAt,
		CreatedAt:       req.CreatedAt,
	}
	for _, item := range req.Items {
		view.Items = append(view.Items, IngredientRequestItemView{
			ID:                  item.ID,
			Position:            item.Position,
			Name:                item.Name,
			Quantity:            item.Quantity,
			Unit:                item.Unit,
			UnitPrice:           item.UnitPrice,
			LineTotal:           item.LineTotal,
			Supplier:            item.Supplier,
			PlannedIngredientID: item.PlannedIngredientID,
		})
	}
	return view
}

type OperationRequestView struct {
	ID              uuid.UUID                    `json:"id"`
	PhaseID         uuid.UUID                    `json:"phase_id"`
	RequestedBy     uuid.UUID                    `json:"requested_by"`
	ExpenseType     enums.ExpenseType            `json:"expense_type"`
	Title           string                       `json:"title"`
	TotalCost       int64                        `json:"total_cost"`
	Status          enums.OperationRequestStatus `json:"status"`
	ReviewedBy      *uuid.UUID                   `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time                   `json:"reviewed_at,omitempty"`
	RejectionReason *string                      `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
}

func NewOperationRequestView(req models.OperationRequest) OperationRequestView {
	return OperationRequestView{
		ID:              req.ID,
		PhaseID:         req.PhaseID,
		RequestedBy:     req.RequestedBy,
		ExpenseType:     req.ExpenseType,
		Title:           req.Title,
		TotalCost:       req.TotalCost,
		Status:          req.Status,
		ReviewedBy:      req.ReviewedBy,
		ReviewedAt:      req.ReviewedAt,
		RejectionReason: req.RejectionReason,
		CreatedAt:       req.CreatedAt,
	}
}

// ExpenseProofView carries the variance warning surfaced to auditors.
type ExpenseProofView struct {
	ID              uuid.UUID                `json:"id"`
	PhaseID         uuid.UUID                `json:"phase_id"`
	RequestKind     enums.ExpenseRequestKind `json:"request_kind"`
	RequestID       uuid.UUID                `json:"request_id"`
	SubmittedBy     uuid.UUID                `json:"submitted_by"`
	MediaKeys       []string                 `json:"media_keys"`
	ClaimedAmount   int64                    `json:"claimed_amount"`
	PlannedAmount   int64                    `json:"planned_amount"`
	AmountVariance  int64                    `json:"amount_variance"`
	VarianceFlagged bool                     `json:"variance_flagged"`
	Status          enums.ExpenseProofStatus `json:"status"`
	AdminNote       *string                  `json:"admin_note,omitempty"`
	ReviewedAt      *time.Time               `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func NewExpenseProofView(proof models.ExpenseProof) ExpenseProofView {
	return ExpenseProofView{
		ID:              proof.ID,
		PhaseID:         proof.PhaseID,
		RequestKind:     proof.RequestKind,
		RequestID:       proof.RequestID,
		SubmittedBy:     proof.SubmittedBy,
		MediaKeys:       append([]string{}, proof.MediaKeys...),
		ClaimedAmount:   proof.ClaimedAmount,
		PlannedAmount:   proof.PlannedAmount,
		AmountVariance:  proof.AmountVariance,
		VarianceFlagged: proof.VarianceFlagged,
		Status:          proof.Status,
		AdminNote:       proof.AdminNote,
		ReviewedAt:      proof.ReviewedAt,
		CreatedAt:       proof.CreatedAt,
	}
}

type MealBatchUsageView struct {
	RequestItemID uuid.UUID       `json:"request_item_id"`
	UsedQuantity  decimal.Decimal `json:"used_quantity"`
}

type MealBatchView struct {
	ID             uuid.UUID             `json:"id"`
	PhaseID        uuid.UUID             `json:"phase_id"`
	FoodName       string                `json:"food_name"`
	Quantity       int                   `json:"quantity"`
	Status         enums.MealBatchStatus `json:"status"`
	CookedAt       *time.Time            `json:"cooked_at,omitempty"`
	PlannedMealID  *uuid.UUID            `json:"planned_meal_id,omitempty"`
	MediaKeys      []string              `json:"media_keys"`
	KitchenStaffID uuid.UUID             `json:"kitchen_staff_id"`
	Usages         []MealBatchUsageView  `json:"ingredient_usages"`
	CreatedAt      time.Time             `json:"created_at"`
}

func NewMealBatchView(batch models.MealBatch) MealBatchView {
	view := MealBatchView{
		ID:             batch.ID,
		PhaseID:        batch.PhaseID,
		FoodName:       batch.FoodName,
		Quantity:       batch.Quantity,
		Status:         batch.Status,
		CookedAt:       batch.CookedAt,
		PlannedMealID:  batch.PlannedMealID,
		MediaKeys:      append([]string{}, batch.MediaKeys...),
		KitchenStaffID: batch.KitchenStaffID,
		Usages:         make([]MealBatchUsageView, 0, len(batch.Usages)),
		CreatedAt:      batch.CreatedAt,
	}
	for _, usage := range batch.Usages {
		view.Usages = append(view.Usages, MealBatchUsageView{RequestItemID: usage.RequestItemID, UsedQuantity: usage.UsedQuantity})
	}
	return view
}

// DeliveryTaskView marks tasks a replacement has superseded.
type DeliveryTaskView struct {
	ID              uuid.UUID                `json:"id"`
	PhaseID         uuid.UUID                `json:"phase_id"`
	MealBatchID     uuid.UUID                `json:"meal_batch_id"`
	DeliveryStaffID uuid.UUID                `json:"delivery_staff_id"`
	Status          enums.DeliveryTaskStatus `json:"status"`
	FailureNote     *string                  `json:"failure_note,omitempty"`
	ReplacesTaskID  *uuid.UUID               `json:"replaces_task_id,omitempty"`
	Superseded      bool                     `json:"superseded"`
	CompletedAt     *time.Time               `json:"completed_at,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func NewDeliveryTaskView(task models.DeliveryTask, superseded bool) DeliveryTaskView {
	return DeliveryTaskView{
		ID:              task.ID,
		PhaseID:         task.PhaseID,
		MealBatchID:     task.MealBatchID,
		DeliveryStaffID: task.DeliveryStaffID,
		Status:          task.Status,
		FailureNote:     task.FailureNote,
		ReplacesTaskID:  task.ReplacesTaskID,
		Superseded:      superseded,
		CompletedAt:     task.CompletedAt,
		CreatedAt:       task.CreatedAt,
	}
}

type TransitionView struct {
	From        enums.PhaseStatus `json:"from"`
	To          enums.PhaseStatus `json:"to"`
	ActorUserID *uuid.UUID        `json:"actor_user_id,omitempty"`
	Reason      *string           `json:"reason,omitempty"`
	At          time.Time         `json:"at"`
}
