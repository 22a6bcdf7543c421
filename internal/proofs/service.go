package proofs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	dbtypes "github.com/foodrelief/relief-backend/pkg/db/types"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/outbox/payloads"
)

type phaseRunner interface {
	Mutate(ctx context.Context, operation string, phaseID uuid.UUID, actor phases.Actor, fn phases.MutateFunc) (*phases.Change, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// KeyValidator checks media object keys handed back by the upload flow.
type KeyValidator interface {
	ValidateKeys(keys []string) error
}

// Service validates proofs of spend and feeds the audit gate.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*ProofResult, error)
	Approve(ctx context.Context, proofID uuid.UUID, actor phases.Actor, note string) (*ProofResult, error)
	Reject(ctx context.Context, proofID uuid.UUID, actor phases.Actor, note string) (*ProofResult, error)
	Get(ctx context.Context, proofID uuid.UUID) (*phases.ExpenseProofView, error)
}

// SubmitInput targets either an ingredient or an operation request.
// RequestKind defaults to INGREDIENT.
type SubmitInput struct {
	RequestKind   enums.ExpenseRequestKind
	RequestID     uuid.UUID
	MediaKeys     []string
	ClaimedAmount int64
	Actor         phases.Actor
}

type ProofResult struct {
	phases.ExpenseProofView
	PhaseStatus enums.PhaseStatus `json:"phase_status"`
}

type service struct {
	repo      Repository
	runner    phaseRunner
	outbox    outboxPublisher
	keys      KeyValidator
	tolerance decimal.Decimal
}

// NewService wires the proof validator. tolerancePct is the share of the
// planned total a claim may diverge before it is flagged.
func NewService(repo Repository, runner phaseRunner, outboxPublisher outboxPublisher, keys KeyValidator, tolerancePct decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("proofs repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("phase runner required")
	}
	if outboxPublisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if keys == nil {
		return nil, fmt.Errorf("media key validator required")
	}
	if tolerancePct.IsNegative() {
		return nil, fmt.Errorf("variance tolerance must not be negative")
	}
	return &service{repo: repo, runner: runner, outbox: outboxPublisher, keys: keys, tolerance: tolerancePct}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*ProofResult, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.RequestKind == "" {
		input.RequestKind = enums.ExpenseRequestIngredient
	}
	if !input.RequestKind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid request kind %q", input.RequestKind)
	}
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	if len(input.MediaKeys) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one media key is required as evidence")
	}
	if err := s.keys.ValidateKeys(input.MediaKeys); err != nil {
		return nil, err
	}
	if input.ClaimedAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "claimed amount must be positive")
	}

	phaseID, _, err := s.target(ctx, s.repo, input.RequestKind, input.RequestID)
	if err != nil {
		return nil, err
	}

	var created *models.ExpenseProof
	change, err := s.runner.Mutate(ctx, "submit_expense_proof", phaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		_, planned, err := s.target(ctx, repo, input.RequestKind, input.RequestID)
		if err != nil {
			return err
		}
		open, err := repo.HasOpenProof(ctx, input.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing proofs")
		}
		if open {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "request already has a pending or approved proof")
		}

		variance, flagged := Variance(input.ClaimedAmount, planned, s.tolerance)
		created = &models.ExpenseProof{
			PhaseID:         phase.ID,
			RequestKind:     input.RequestKind,
			RequestID:       input.RequestID,
			SubmittedBy:     input.Actor.UserID,
			MediaKeys:       dbtypes.StringList(input.MediaKeys),
			ClaimedAmount:   input.ClaimedAmount,
			PlannedAmount:   planned,
			AmountVariance:  variance,
			VarianceFlagged: flagged,
			Status:          enums.ExpenseProofPending,
		}
		if err := repo.Create(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create expense proof")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventExpenseProofSubmitted,
			AggregateType: enums.AggregateExpenseProof,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role},
			Version:       1,
			Data: payloads.ExpenseProofSubmittedEvent{
				ProofID:         created.ID,
				PhaseID:         phase.ID,
				RequestKind:     input.RequestKind,
				RequestID:       input.RequestID,
				ClaimedAmount:   input.ClaimedAmount,
				PlannedAmount:   planned,
				AmountVariance:  variance,
				VarianceFlagged: flagged,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &ProofResult{ExpenseProofView: phases.NewExpenseProofView(*created), PhaseStatus: change.To}, nil
}

func (s *service) Approve(ctx context.Context, proofID uuid.UUID, actor phases.Actor, note string) (*ProofResult, error) {
	return s.review(ctx, "approve_expense_proof", proofID, actor, enums.ExpenseProofApproved, strings.TrimSpace(note))
}

func (s *service) Reject(ctx context.Context, proofID uuid.UUID, actor phases.Actor, note string) (*ProofResult, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required when rejecting a proof")
	}
	return s.review(ctx, "reject_expense_proof", proofID, actor, enums.ExpenseProofRejected, note)
}

func (s *service) Get(ctx context.Context, proofID uuid.UUID) (*phases.ExpenseProofView, error) {
	proof, err := s.repo.FindByID(ctx, proofID)
	if err != nil {
		return nil, lookupError(err, "expense proof")
	}
	view := phases.NewExpenseProofView(*proof)
	return &view, nil
}

func (s *service) review(ctx context.Context, operation string, proofID uuid.UUID, actor phases.Actor, target enums.ExpenseProofStatus, note string) (*ProofResult, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if proofID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof id is required")
	}
	existing, err := s.repo.FindByID(ctx, proofID)
	if err != nil {
		return nil, lookupError(err, "expense proof")
	}

	var updated *models.ExpenseProof
	change, err := s.runner.Mutate(ctx, operation, existing.PhaseID, actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		proof, err := repo.FindByID(ctx, proofID)
		if err != nil {
			return lookupError(err, "expense proof")
		}
		if proof.Status != enums.ExpenseProofPending {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "expense proof is %s, cannot move to %s", proof.Status, target).
				WithDetails(map[string]any{"proof_id": proof.ID, "status": proof.Status})
		}
		updates := map[string]any{
			"status":      target,
			"reviewed_by": actor.UserID,
			"reviewed_at": time.Now().UTC(),
		}
		if note != "" {
			updates["admin_note"] = note
		}
		if err := repo.Update(ctx, proof.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update expense proof")
		}
		updated, err = repo.FindByID(ctx, proof.ID)
		if err != nil {
			return lookupError(err, "expense proof")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ProofResult{ExpenseProofView: phases.NewExpenseProofView(*updated), PhaseStatus: change.To}, nil
}

// target resolves the phase and planned total of the request a proof points
// at. Ingredient requests must be DISBURSED, operation requests APPROVED.
func (s *service) target(ctx context.Context, repo Repository, kind enums.ExpenseRequestKind, requestID uuid.UUID) (uuid.UUID, int64, error) {
	if kind == enums.ExpenseRequestOperation {
		req, err := repo.FindOperationRequest(ctx, requestID)
		if err != nil {
			return uuid.Nil, 0, lookupError(err, "operation request")
		}
		if req.Status != enums.OperationRequestApproved {
			return uuid.Nil, 0, pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "operation request is %s, proofs need an approved request", req.Status)
		}
		return req.PhaseID, req.TotalCost, nil
	}
	req, err := repo.FindIngredientRequest(ctx, requestID)
	if err != nil {
		return uuid.Nil, 0, lookupError(err, "ingredient request")
	}
	if req.Status != enums.IngredientRequestDisbursed {
		return uuid.Nil, 0, pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "ingredient request is %s, proofs need a disbursed request", req.Status)
	}
	return req.PhaseID, req.TotalCost, nil
}

func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
