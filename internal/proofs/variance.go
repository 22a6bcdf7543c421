package proofs

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Variance compares a claimed spend with the planned total. The variance is
// flagged when its magnitude exceeds tolerancePct percent of planned. It never
// blocks a proof.
func Variance(claimed, planned int64, tolerancePct decimal.Decimal) (int64, bool) {
	variance := claimed - planned
	if variance == 0 {
		return 0, false
	}
	allowed := decimal.NewFromInt(planned).Abs().Mul(tolerancePct).Div(hundred)
	return variance, decimal.NewFromInt(variance).Abs().GreaterThan(allowed)
}
