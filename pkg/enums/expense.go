package enums

import "slices"

// ExpenseType names the operation bucket an OperationRequest draws from.
type ExpenseType string

const (
	ExpenseTypeCooking  ExpenseType = "COOKING"
	ExpenseTypeDelivery ExpenseType = "DELIVERY"
)

var validExpenseTypes = []ExpenseType{
	ExpenseTypeCooking,
	ExpenseTypeDelivery,
}

func (t ExpenseType) String() string {
	return string(t)
}

func (t ExpenseType) IsValid() bool {
	return slices.Contains(validExpenseTypes, t)
}

// Bucket maps the expense type onto its budget bucket.
func (t ExpenseType) Bucket() BudgetBucket {
	if t == ExpenseTypeDelivery {
		return BudgetBucketDelivery
	}
	return BudgetBucketCooking
}

func ParseExpenseType(value string) (ExpenseType, error) {
	return parseMember(validExpenseTypes, "expense type", value)
}

// ExpenseRequestKind identifies which request table an ExpenseProof targets.
type ExpenseRequestKind string

const (
	ExpenseRequestIngredient ExpenseRequestKind = "INGREDIENT"
	ExpenseRequestOperation  ExpenseRequestKind = "OPERATION"
)

func (k ExpenseRequestKind) IsValid() bool {
	return k == ExpenseRequestIngredient || k == ExpenseRequestOperation
}

// ExpenseProofStatus tracks auditor review of a proof of spend.
type ExpenseProofStatus string

const (
	ExpenseProofPending  ExpenseProofStatus = "PENDING"
	ExpenseProofApproved ExpenseProofStatus = "APPROVED"
	ExpenseProofRejected ExpenseProofStatus = "REJECTED"
)

var validExpenseProofStatuses = []ExpenseProofStatus{
	ExpenseProofPending,
	ExpenseProofApproved,
	ExpenseProofRejected,
}

func (s ExpenseProofStatus) String() string {
	return string(s)
}

func (s ExpenseProofStatus) IsValid() bool {
	return slices.Contains(validExpenseProofStatuses, s)
}
