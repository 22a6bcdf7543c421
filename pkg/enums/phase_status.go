package enums

import "slices"

// PhaseStatus is the lifecycle status of a campaign phase. Values are the
// canonical codes exposed to clients; localized labels live in the API layer.
type PhaseStatus string

const (
	PhaseStatusPlanning                       PhaseStatus = "PLANNING"
	PhaseStatusAwaitingIngredientDisbursement PhaseStatus = "AWAITING_INGREDIENT_DISBURSEMENT"
	PhaseStatusIngredientPurchase             PhaseStatus = "INGREDIENT_PURCHASE"
	PhaseStatusAwaitingAudit                  PhaseStatus = "AWAITING_AUDIT"
	PhaseStatusAwaitingCookingDisbursement    PhaseStatus = "AWAITING_COOKING_DISBURSEMENT"
	PhaseStatusCooking                        PhaseStatus = "COOKING"
	PhaseStatusAwaitingDeliveryDisbursement   PhaseStatus = "AWAITING_DELIVERY_DISBURSEMENT"
	PhaseStatusDelivery                       PhaseStatus = "DELIVERY"
	PhaseStatusCompleted                      PhaseStatus = "COMPLETED"
	PhaseStatusCancelled                      PhaseStatus = "CANCELLED"
	PhaseStatusFailed                         PhaseStatus = "FAILED"
)

// phaseSequence is the ordered forward path. Side states are not part of it.
var phaseSequence = []PhaseStatus{
	PhaseStatusPlanning,
	PhaseStatusAwaitingIngredientDisbursement,
	PhaseStatusIngredientPurchase,
	PhaseStatusAwaitingAudit,
	PhaseStatusAwaitingCookingDisbursement,
	PhaseStatusCooking,
	PhaseStatusAwaitingDeliveryDisbursement,
	PhaseStatusDelivery,
	PhaseStatusCompleted,
}

var validPhaseStatuses = append(append([]PhaseStatus{}, phaseSequence...), PhaseStatusCancelled, PhaseStatusFailed)

// PhaseSequence returns a copy of the ordered forward path.
func PhaseSequence() []PhaseStatus {
	return append([]PhaseStatus(nil), phaseSequence...)
}

func (s PhaseStatus) String() string {
	return string(s)
}

func (s PhaseStatus) IsValid() bool {
	return slices.Contains(validPhaseStatuses, s)
}

// Rank is the position of s along the forward path, or -1 for side states.
func (s PhaseStatus) Rank() int {
	for i, candidate := range phaseSequence {
		if candidate == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further child mutation is allowed.
func (s PhaseStatus) IsTerminal() bool {
	switch s {
	case PhaseStatusCompleted, PhaseStatusCancelled, PhaseStatusFailed:
		return true
	default:
		return false
	}
}

// IsSideState reports whether s is one of the administrative end states.
func (s PhaseStatus) IsSideState() bool {
	return s == PhaseStatusCancelled || s == PhaseStatusFailed
}

// AtLeast reports whether s has reached other along the forward path.
func (s PhaseStatus) AtLeast(other PhaseStatus) bool {
	rank := s.Rank()
	return rank >= 0 && rank >= other.Rank()
}

func ParsePhaseStatus(value string) (PhaseStatus, error) {
	return parseMember(validPhaseStatuses, "phase status", value)
}
