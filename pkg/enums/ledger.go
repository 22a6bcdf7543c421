package enums

import "slices"

// BudgetBucket is one of the three budget categories within a phase.
type BudgetBucket string

const (
	BudgetBucketIngredient BudgetBucket = "ingredient"
	BudgetBucketCooking    BudgetBucket = "cooking"
	BudgetBucketDelivery   BudgetBucket = "delivery"
)

var validBudgetBuckets = []BudgetBucket{
	BudgetBucketIngredient,
	BudgetBucketCooking,
	BudgetBucketDelivery,
}

func (b BudgetBucket) IsValid() bool {
	return slices.Contains(validBudgetBuckets, b)
}

// LedgerEventType classifies a ledger row. Only disbursements are written by
// the workflow; adjustments are reserved for manual corrections.
type LedgerEventType string

const (
	LedgerEventTypeDisbursement LedgerEventType = "disbursement"
	LedgerEventTypeAdjustment   LedgerEventType = "adjustment"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeDisbursement,
	LedgerEventTypeAdjustment,
}

func (t LedgerEventType) IsValid() bool {
	return slices.Contains(validLedgerEventTypes, t)
}
