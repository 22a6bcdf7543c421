package requests

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/budget"
	"github.com/foodrelief/relief-backend/internal/ledger"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

type SubmitOperationInput struct {
	PhaseID     uuid.UUID
	ExpenseType enums.ExpenseType
	Title       string
	TotalCost   int64
	Actor       phases.Actor
}

// releaseStage is the earliest phase status at which each operation bucket
// may be released.
var releaseStage = map[enums.ExpenseType]enums.PhaseStatus{
	enums.ExpenseTypeCooking:  enums.PhaseStatusAwaitingCookingDisbursement,
	enums.ExpenseTypeDelivery: enums.PhaseStatusAwaitingDeliveryDisbursement,
}

func (s *service) SubmitOperation(ctx context.Context, input SubmitOperationInput) (*OperationRequestResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.PhaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phase id is required")
	}
	if !input.ExpenseType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid expense type %q", input.ExpenseType)
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.TotalCost < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total cost must not be negative")
	}

	var created *models.OperationRequest
	change, err := s.runner.Mutate(ctx, "submit_operation_request", input.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		active, err := repo.HasActiveOperation(ctx, phase.ID, input.ExpenseType)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing operation requests")
		}
		if active {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "phase already has an open %s request", input.ExpenseType)
		}
		bucket := input.ExpenseType.Bucket()
		if err := budget.MatchBucket(bucket, phases.AllocationOf(phase).Amount(bucket), input.TotalCost); err != nil {
			return err
		}
		created = &models.OperationRequest{
			PhaseID:     phase.ID,
			RequestedBy: input.Actor.UserID,
			ExpenseType: input.ExpenseType,
			Title:       title,
			TotalCost:   input.TotalCost,
			Status:      enums.OperationRequestPending,
		}
		if err := repo.CreateOperation(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create operation request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OperationRequestResult{OperationRequestView: phases.NewOperationRequestView(*created), PhaseStatus: change.To}, nil
}

// ApproveOperation approves the request and releases its bucket. Release is
// only legal once the phase has reached the matching awaiting state.
func (s *service) ApproveOperation(ctx context.Context, requestID uuid.UUID, actor phases.Actor) (*OperationRequestResult, error) {
	return s.transitionOperation(ctx, "approve_operation_request", requestID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.OperationRequest) (map[string]any, error) {
		if req.Status != enums.OperationRequestPending {
			return nil, invalidOperationTransition(req, enums.OperationRequestApproved)
		}
		if stage := releaseStage[req.ExpenseType]; !phase.Status.AtLeast(stage) {
			return nil, pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "%s funds cannot be released while phase is %s", req.ExpenseType, phase.Status).
				WithDetails(map[string]any{"phase_status": phase.Status, "required": stage})
		}
		bucket := req.ExpenseType.Bucket()
		metadata, err := disbursementMetadata(map[string]any{"source": "operation_request", "expense_type": req.ExpenseType})
		if err != nil {
			return nil, err
		}
		if _, err := s.ledger.RecordDisbursement(ctx, tx, ledger.RecordDisbursementInput{
			CampaignID:  phase.CampaignID,
			PhaseID:     phase.ID,
			RequestID:   req.ID,
			Bucket:      bucket,
			Allocated:   phases.AllocationOf(phase).Amount(bucket),
			AmountMinor: req.TotalCost,
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
			Metadata:    metadata,
		}); err != nil {
			return nil, err
		}
		return map[string]any{
			"status":      enums.OperationRequestApproved,
			"reviewed_by": actor.UserID,
			"reviewed_at": time.Now().UTC(),
		}, nil
	})
}

func (s *service) RejectOperation(ctx context.Context, requestID uuid.UUID, actor phases.Actor, reason string) (*OperationRequestResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	return s.transitionOperation(ctx, "reject_operation_request", requestID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.OperationRequest) (map[string]any, error) {
		if req.Status != enums.OperationRequestPending {
			return nil, invalidOperationTransition(req, enums.OperationRequestRejected)
		}
		return map[string]any{
			"status":           enums.OperationRequestRejected,
			"reviewed_by":      actor.UserID,
			"reviewed_at":      time.Now().UTC(),
			"rejection_reason": reason,
		}, nil
	})
}

func (s *service) GetOperation(ctx context.Context, requestID uuid.UUID) (*phases.OperationRequestView, error) {
	req, err := s.repo.FindOperation(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "operation request")
	}
	view := phases.NewOperationRequestView(*req)
	return &view, nil
}

type operationStep func(ctx context.Context, tx *gorm.DB, phase *models.Phase, req *models.OperationRequest) (map[string]any, error)

func (s *service) transitionOperation(ctx context.Context, operation string, requestID uuid.UUID, actor phases.Actor, decide operationStep) (*OperationRequestResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	existing, err := s.repo.FindOperation(ctx, requestID)
	if err != nil {
		return nil, lookupError(err, "operation request")
	}

	var updated *models.OperationRequest
	change, err := s.runner.Mutate(ctx, operation, existing.PhaseID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindOperation(ctx, requestID)
		if err != nil {
			return lookupError(err, "operation request")
		}
		updates, err := decide(ctx, tx, phase, req)
		if err != nil {
			return err
		}
		if err := repo.UpdateOperation(ctx, req.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update operation request")
		}
		updated, err = repo.FindOperation(ctx, req.ID)
		if err != nil {
			return lookupError(err, "operation request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OperationRequestResult{OperationRequestView: phases.NewOperationRequestView(*updated), PhaseStatus: change.To}, nil
}

func invalidOperationTransition(req *models.OperationRequest, target enums.OperationRequestStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "operation request is %s, cannot move to %s", req.Status, target).
		WithDetails(map[string]any{"request_id": req.ID, "status": req.Status})
}
