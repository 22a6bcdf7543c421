package deliveries

import "github.com/foodrelief/relief-backend/pkg/enums"

var allowedTransitions = map[enums.DeliveryTaskStatus][]enums.DeliveryTaskStatus{
	enums.DeliveryTaskPending:        {enums.DeliveryTaskAccepted, enums.DeliveryTaskRejected},
	enums.DeliveryTaskAccepted:       {enums.DeliveryTaskOutForDelivery},
	enums.DeliveryTaskOutForDelivery: {enums.DeliveryTaskCompleted, enums.DeliveryTaskFailed},
}

// CanTransition reports whether an assignee may move a task from one status
// to another.
func CanTransition(from, to enums.DeliveryTaskStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
