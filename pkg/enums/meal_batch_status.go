package enums

import "slices"

type MealBatchStatus string

const (
	MealBatchPending   MealBatchStatus = "PENDING"
	MealBatchReady     MealBatchStatus = "READY"
	MealBatchCompleted MealBatchStatus = "COMPLETED"
)

var validMealBatchStatuses = []MealBatchStatus{
	MealBatchPending,
	MealBatchReady,
	MealBatchCompleted,
}

func (s MealBatchStatus) String() string {
	return string(s)
}

func (s MealBatchStatus) IsValid() bool {
	return slices.Contains(validMealBatchStatuses, s)
}

// IsCooked reports whether the batch has been marked cooked.
func (s MealBatchStatus) IsCooked() bool {
	return s == MealBatchReady || s == MealBatchCompleted
}

func ParseMealBatchStatus(value string) (MealBatchStatus, error) {
	return parseMember(validMealBatchStatuses, "meal batch status", value)
}
