package budget

import (
	"github.com/shopspring/decimal"

	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Allocation is a phase budget split into its three buckets. Amounts are in
// currency minor units and always sum to Total.
type Allocation struct {
	Total         int64 `json:"total_funds"`
	IngredientPct int   `json:"ingredient_pct"`
	CookingPct    int   `json:"cooking_pct"`
	DeliveryPct   int   `json:"delivery_pct"`
	Ingredient    int64 `json:"ingredient_funds"`
	Cooking       int64 `json:"cooking_funds"`
	Delivery      int64 `json:"delivery_funds"`
}

// Allocate splits total by the given percentages. The first two buckets are
// rounded to the nearest minor unit and delivery takes the remainder.
func Allocate(total int64, ingredientPct, cookingPct, deliveryPct int) (Allocation, error) {
	if err := ValidatePercentages(ingredientPct, cookingPct, deliveryPct); err != nil {
		return Allocation{}, err
	}
	if total < 0 {
		return Allocation{}, pkgerrors.New(pkgerrors.CodeValidation, "total funds must not be negative").
			WithDetails(map[string]any{"total_funds": total})
	}

	ingredient := share(total, ingredientPct)
	cooking := share(total, cookingPct)
	// Both halves can round up when delivery has no share; keep the
	// remainder non-negative.
	if ingredient+cooking > total {
		cooking = total - ingredient
	}

	return Allocation{
		Total:         total,
		IngredientPct: ingredientPct,
		CookingPct:    cookingPct,
		DeliveryPct:   deliveryPct,
		Ingredient:    ingredient,
		Cooking:       cooking,
		Delivery:      total - ingredient - cooking,
	}, nil
}

// ValidatePercentages checks that all three are non-negative and sum to 100.
func ValidatePercentages(ingredientPct, cookingPct, deliveryPct int) error {
	details := map[string]any{
		"ingredient_pct": ingredientPct,
		"cooking_pct":    cookingPct,
		"delivery_pct":   deliveryPct,
	}
	if ingredientPct < 0 || cookingPct < 0 || deliveryPct < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid allocation: percentages must not be negative").WithDetails(details)
	}
	if ingredientPct+cookingPct+deliveryPct != 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid allocation: percentages must sum to 100").WithDetails(details)
	}
	return nil
}

// Amount returns the allocated amount for bucket.
func (a Allocation) Amount(bucket enums.BudgetBucket) int64 {
	switch bucket {
	case enums.BudgetBucketIngredient:
		return a.Ingredient
	case enums.BudgetBucketCooking:
		return a.Cooking
	case enums.BudgetBucketDelivery:
		return a.Delivery
	default:
		return 0
	}
}

func share(total int64, pct int) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Round(0).
		IntPart()
}
