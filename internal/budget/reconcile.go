package budget

import (
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

// MatchBucket enforces the exact-match policy: when the bucket has a non-zero
// allocation, the requested total must equal it. Anything else is a
// BudgetMismatch, including amounts below the allocation.
func MatchBucket(bucket enums.BudgetBucket, allocated, requested int64) error {
	if requested < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "requested total must not be negative")
	}
	if allocated <= 0 || requested == allocated {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeBudgetMismatch, "%s request total %d does not match allocated %d", bucket, requested, allocated).
		WithDetails(map[string]any{
			"bucket":     bucket,
			"allocated":  allocated,
			"requested":  requested,
			"difference": requested - allocated,
		})
}

// EnsureWithinBucket rejects a disbursement that would release more than the
// bucket holds.
func EnsureWithinBucket(bucket enums.BudgetBucket, allocated, alreadyDisbursed, amount int64) error {
	if allocated <= 0 {
		return nil
	}
	if alreadyDisbursed+amount > allocated {
		return pkgerrors.Newf(pkgerrors.CodeBudgetMismatch, "%s disbursement exceeds allocation", bucket).
			WithDetails(map[string]any{
				"bucket":            bucket,
				"allocated":         allocated,
				"already_disbursed": alreadyDisbursed,
				"amount":            amount,
			})
	}
	return nil
}
