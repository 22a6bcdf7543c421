package requests

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/budget"
	"github.com/foodrelief/relief-backend/internal/ledger"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

// ItemInput is one purchase line. LineTotal must equal Quantity x UnitPrice
// rounded to the minor unit whenever a unit price is given.
type ItemInput struct {
	Name                string
	Quantity            decimal.Decimal
	Unit                string
	UnitPrice           int64
	LineTotal           int64
	Supplier            string
	PlannedIngredientID *uuid.UUID
}

type SubmitIngredientInput struct {
	PhaseID uuid.UUID
	Items   []ItemInput
	Actor   phases.Actor
}

func (s *service) SubmitIngredient(ctx context.Context, input SubmitIngredientInput) (*IngredientRequestResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	items, total, err := buildItems(input.PhaseID, input.Items)
	if err != nil {
		return nil, err
	}

	var created *models.IngredientRequest
	change, err := s.runner.Mutate(ctx, "submit_ingredient_request", input.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.HasActiveIngredient(ctx, phase.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing ingredient requests")
		}
		if active {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "phase already has an open ingredient request")
		}
		if err := budget.MatchBucket(enums.BudgetBucketIngredient, phase.IngredientFundsAmount, total); err != nil {
			return err
		}
		planned, err := repo.PlannedIngredientIDs(ctx, phase.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load planned ingredients")
		}
		for _, item := range items {
			if item.PlannedIngredientID != nil && !planned[*item.PlannedIngredientID] {
				return pkgerrors.Newf(pkgerrors.CodeValidation, "item %d links to an unknown planned ingredient", item.Position)
			}
		}

		created = &models.IngredientRequest{
			PhaseID:     phase.ID,
			RequestedBy: input.Actor.UserID,
			TotalCost:   total,
			Status:      enums.IngredientRequestPending,
			Items:       items,
		}
		if err := repo.CreateIngredient(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ingredient request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &IngredientRequestResult{IngredientRequestView: phases.NewIngredientRequestView(*created), PhaseStatus: change.To}, nil
}

func (s *service) ApproveIngredient(ctx context.Context, requestID uuid.UUID, actor phases.Actor) (*IngredientRequestResult, error) {
	return s.transitionIngredient(ctx, "approve_ingredient_request", requestID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.IngredientRequest) (map[string]any, error) {
		if req.Status != enums.IngredientRequestPending {
			return nil, invalidIngredientTransition(req, enums.IngredientRequestAccepted)
		}
		now := time.Now().UTC()
		return map[string]any{
			"status":      enums.IngredientRequestAccepted,
			"reviewed_by": actor.UserID,
			"reviewed_at": now,
		}, nil
	})
}

func (s *service) RejectIngredient(ctx context.Context, requestID uuid.UUID, actor phases.Actor, reason string) (*IngredientRequestResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	return s.transitionIngredient(ctx, "reject_ingredient_request", requestID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.IngredientRequest) (map[string]any, error) {
		if req.Status != enums.IngredientRequestPending {
			return nil, invalidIngredientTransition(req, enums.IngredientRequestRejected)
		}
		return map[string]any{
			"status":           enums.IngredientRequestRejected,
			"reviewed_by":      actor.UserID,
			"reviewed_at":      time.Now().UTC(),
			"rejection_reason": reason,
		}, nil
	})
}

func (s *service) DisburseIngredient(ctx context.Context, requestID uuid.UUID, actor phases.Actor) (*IngredientRequestResult, error) {
	return s.transitionIngredient(ctx, "disburse_ingredient_request", requestID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.IngredientRequest) (map[string]any, error) {
		if req.Status != enums.IngredientRequestAccepted {
			return nil, invalidIngredientTransition(req, enums.IngredientRequestDisbursed)
		}
		metadata, err := disbursementMetadata(map[string]any{"source": "ingredient_request", "items": len(req.Items)})
		if err != nil {
			return nil, err
		}
		if _, err := s.ledger.RecordDisbursement(ctx, tx, ledger.RecordDisbursementInput{
			CampaignID:  phase.CampaignID,
			PhaseID:     phase.ID,
			RequestID:   req.ID,
			Bucket:      enums.BudgetBucketIngredient,
			Allocated:   phase.IngredientFundsAmount,
			AmountMinor: req.TotalCost,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Metadata:    metadata,
		}); err != nil {
			return nil, err
		}
		return map[string]any{
			"status":       enums.IngredientRequestDisbursed,
			"disbursed_by": actor.UserID,
			"disbursed_at": time.Now().UTC(),
		}, nil
	})
}

func (s *service) GetIngredient(ctx context.Context, requestID uuid.UUID) (*phases.IngredientRequestView, error) {
	req, err := s.repo.FindIngredient(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "ingredient request")
	}
	view := phases.NewIngredientRequestView(*req)
	return &view, nil
}

type ingredientStep func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.IngredientRequest) (map[string]any, error)

// transitionIngredient resolves the owning phase, then reloads the request
// inside the phase transaction so the status check sees committed state.
func (s *service) transitionIngredient(ctx context.Context, operation string, requestID uuid.UUID, actor phases.Actor, decide ingredientStep) (*IngredientRequestResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	existing, err := s.repo.FindIngredient(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "ingredient request")
	}

	var updated *models.IngredientRequest
	change, err := s.runner.Mutate(ctx, operation, existing.PhaseID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindIngredient(ctx, requestID)
		if err != nil {
			return lookupError(err, "ingredient request")
		}
		updates, err := decide(ctx, tx, phase, req)
		if err != nil {
			return err
		}
		if err := repo.UpdateIngredient(ctx, req.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ingredient request")
		}
		updated, err = repo.FindIngredient(ctx, req.ID)
		if err != nil {
			return lookupError(err, "ingredient request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &IngredientRequestResult{IngredientRequestView: phases.NewIngredientRequestView(*updated), PhaseStatus: change.To}, nil
}

// disbursementMetadata encodes the ledger row's metadata column.
func disbursementMetadata(fields map[string]any) (json.RawMessage, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode disbursement metadata")
	}
	return raw, nil
}

func invalidIngredientTransition(req *models.IngredientRequest, target enums.IngredientRequestStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "ingredient request is %s, cannot move to %s", req.Status, target).
		WithDetails(map[string]any{"request_id": req.ID, "status": req.Status})
}

func buildItems(phaseID uuid.UUID, inputs []ItemInput) ([]models.IngredientRequestItem, int64, error) {
	if phaseID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "phase id is required")
	}
	if len(inputs) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	items := make([]models.IngredientRequestItem, 0, len(inputs))
	var total int64
	for i, in := range inputs {
		position := i + 1
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d name is required", position)
		}
		if !in.Quantity.IsPositive() {
			return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d quantity must be positive", position)
		}
		if in.UnitPrice < 0 || in.LineTotal < 0 {
			return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d prices must not be negative", position)
		}
		if in.UnitPrice > 0 {
			expected := in.Quantity.Mul(decimal.NewFromInt(in.UnitPrice)).Round(0).IntPart()
			if expected != in.LineTotal {
				return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d line total %d does not match quantity x unit price %d", position, in.LineTotal, expected).
					WithDetails(map[string]any{"position": position, "line_total": in.LineTotal, "expected": expected})
			}
		}
		if in.LineTotal > math.MaxInt64-total {
			return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "item %d pushes the request total out of range", position).
				WithDetails(map[string]any{"position": position, "line_total": in.LineTotal})
		}
		total += in.LineTotal
		items = append(items, models.IngredientRequestItem{
			PhaseID:             phaseID,
			Position:            position,
			Name:                name,
			Quantity:            in.Quantity,
			Unit:                strings.TrimSpace(in.Unit),
			UnitPrice:           in.UnitPrice,
			LineTotal:           in.LineTotal,
			Supplier:            strings.TrimSpace(in.Supplier),
			PlannedIngredientID: in.PlannedIngredientID,
		})
	}
	return items, total, nil
}
