package enums

import "slices"

// IngredientRequestStatus tracks an ingredient purchase request.
type IngredientRequestStatus string

const (
	IngredientRequestPending   IngredientRequestStatus = "PENDING"
	IngredientRequestAccepted  IngredientRequestStatus = "ACCEPTED"
	IngredientRequestRejected  IngredientRequestStatus = "REJECTED"
	IngredientRequestDisbursed IngredientRequestStatus = "DISBURSED"
)

var validIngredientRequestStatuses = []IngredientRequestStatus{
	IngredientRequestPending,
	IngredientRequestAccepted,
	IngredientRequestRejected,
	IngredientRequestDisbursed,
}

func (s IngredientRequestStatus) String() string {
	return string(s)
}

func (s IngredientRequestStatus) IsValid() bool {
	return slices.Contains(validIngredientRequestStatuses, s)
}

// IsActive reports whether the request still occupies the ingredient bucket.
func (s IngredientRequestStatus) IsActive() bool {
	return s != IngredientRequestRejected
}

// OperationRequestStatus tracks a cooking or delivery disbursement request.
type OperationRequestStatus string

const (
	OperationRequestPending  OperationRequestStatus = "PENDING"
	OperationRequestApproved OperationRequestStatus = "APPROVED"
	OperationRequestRejected OperationRequestStatus = "REJECTED"
)

var validOperationRequestStatuses = []OperationRequestStatus{
	OperationRequestPending,
	OperationRequestApproved,
	OperationRequestRejected,
}

func (s OperationRequestStatus) String() string {
	return string(s)
}

func (s OperationRequestStatus) IsValid() bool {
	return slices.Contains(validOperationRequestStatuses, s)
}
