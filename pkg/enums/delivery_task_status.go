package enums

import "slices"

type DeliveryTaskStatus string

const (
	DeliveryTaskPending        DeliveryTaskStatus = "PENDING"
	DeliveryTaskAccepted       DeliveryTaskStatus = "ACCEPTED"
	DeliveryTaskRejected       DeliveryTaskStatus = "REJECTED"
	DeliveryTaskOutForDelivery DeliveryTaskStatus = "OUT_FOR_DELIVERY"
	DeliveryTaskCompleted      DeliveryTaskStatus = "COMPLETED"
	DeliveryTaskFailed         DeliveryTaskStatus = "FAILED"
)

var validDeliveryTaskStatuses = []DeliveryTaskStatus{
	DeliveryTaskPending,
	DeliveryTaskAccepted,
	DeliveryTaskRejected,
	DeliveryTaskOutForDelivery,
	DeliveryTaskCompleted,
	DeliveryTaskFailed,
}

func (s DeliveryTaskStatus) String() string {
	return string(s)
}

func (s DeliveryTaskStatus) IsValid() bool {
	return slices.Contains(validDeliveryTaskStatuses, s)
}

// IsTerminal reports whether the task can no longer move on its own.
func (s DeliveryTaskStatus) IsTerminal() bool {
	switch s {
	case DeliveryTaskRejected, DeliveryTaskCompleted, DeliveryTaskFailed:
		return true
	default:
		return false
	}
}

// IsReassignable reports whether a replacement task may supersede this one.
func (s DeliveryTaskStatus) IsReassignable() bool {
	return s == DeliveryTaskRejected || s == DeliveryTaskFailed
}

func ParseDeliveryTaskStatus(value string) (DeliveryTaskStatus, error) {
	return parseMember(validDeliveryTaskStatuses, "delivery task status", value)
}
