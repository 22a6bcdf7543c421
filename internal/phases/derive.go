package phases

import (
	"github.com/google/uuid"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// OperationSignal is the part of an OperationRequest the state machine reads.
type OperationSignal struct {
	ExpenseType enums.ExpenseType
	Status      enums.OperationRequestStatus
}

// BatchSignal is the part of a MealBatch the state machine reads.
type BatchSignal struct {
	ID     uuid.UUID
	Status enums.MealBatchStatus
}

// TaskSignal is the part of a DeliveryTask the state machine reads. A task is
// Superseded once a replacement task points at it.
type TaskSignal struct {
	BatchID    uuid.UUID
	Status     enums.DeliveryTaskStatus
	Superseded bool
}

// Snapshot holds the latest child-entity statuses of one phase.
type Snapshot struct {
	IngredientRequests []enums.IngredientRequestStatus
	IngredientProofs   []enums.ExpenseProofStatus
	OperationRequests  []OperationSignal
	MealBatches        []BatchSignal
	DeliveryTasks      []TaskSignal
}

// Derive computes the forward status implied by the snapshot. Each stage only
// counts once every earlier stage holds, so the result is always a prefix of
// the phase sequence.
func Derive(s Snapshot) enums.PhaseStatus {
	if len(s.IngredientRequests) == 0 {
		return enums.PhaseStatusPlanning
	}
	if !s.ingredientDisbursed() {
		return enums.PhaseStatusAwaitingIngredientDisbursement
	}
	if len(s.IngredientProofs) == 0 {
		return enums.PhaseStatusIngredientPurchase
	}
	if !s.proofApproved() {
		return enums.PhaseStatusAwaitingAudit
	}
	if !s.operationApproved(enums.ExpenseTypeCooking) {
		return enums.PhaseStatusAwaitingCookingDisbursement
	}
	if !s.batchCooked() {
		return enums.PhaseStatusCooking
	}
	if !s.operationApproved(enums.ExpenseTypeDelivery) {
		return enums.PhaseStatusAwaitingDeliveryDisbursement
	}
	if !s.deliveriesCompleted() {
		return enums.PhaseStatusDelivery
	}
	return enums.PhaseStatusCompleted
}

// Resolve combines the stored status with the derived one. Side states and
// COMPLETED are sticky and the forward path never regresses.
func Resolve(stored enums.PhaseStatus, s Snapshot) enums.PhaseStatus {
	if stored.IsTerminal() {
		return stored
	}
	derived := Derive(s)
	if derived.Rank() < stored.Rank() {
		return stored
	}
	return derived
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to enums.PhaseStatus) bool {
	if from.IsTerminal() || !to.IsValid() {
		return false
	}
	if to.IsSideState() {
		return true
	}
	return to.Rank() >= from.Rank()
}

func (s Snapshot) ingredientDisbursed() bool {
	for _, status := range s.IngredientRequests {
		if status == enums.IngredientRequestDisbursed {
			return true
		}
	}
	return false
}

func (s Snapshot) proofApproved() bool {
	for _, status := range s.IngredientProofs {
		if status == enums.ExpenseProofApproved {
			return true
		}
	}
	return false
}

func (s Snapshot) operationApproved(expenseType enums.ExpenseType) bool {
	for _, op := range s.OperationRequests {
		if op.ExpenseType == expenseType && op.Status == enums.OperationRequestApproved {
			return true
		}
	}
	return false
}

func (s Snapshot) batchCooked() bool {
	for _, batch := range s.MealBatches {
		if batch.Status.IsCooked() {
			return true
		}
	}
	return false
}

// deliveriesCompleted holds when every batch is cooked and has at least one
// live task, and every live task is COMPLETED.
func (s Snapshot) deliveriesCompleted() bool {
	if len(s.MealBatches) == 0 {
		return false
	}
	covered := make(map[uuid.UUID]bool, len(s.MealBatches))
	for _, task := range s.DeliveryTasks {
		if task.Superseded {
			continue
		}
		if task.Status != enums.DeliveryTaskCompleted {
			return false
		}
		covered[task.BatchID] = true
	}
	for _, batch := range s.MealBatches {
		if !batch.Status.IsCooked() || !covered[batch.ID] {
			return false
		}
	}
	return true
}
