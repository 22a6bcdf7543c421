package requests

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/ledger"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

type phaseRunner interface {
	Mutate(ctx context.Context, operation string, phaseID uuid.UUID, actor phases.Actor, fn phases.MutateFunc) (*phases.Change, error)
}

type disbursementRecorder interface {
	RecordDisbursement(ctx context.Context, tx *gorm.DB, input ledger.RecordDisbursementInput) (*models.LedgerEvent, error)
}

// Service is the request ledger: ingredient and operation requests and
// their release against the phase buckets.
type Service interface {
	SubmitIngredient(ctx context.Context, input SubmitIngredientInput) (*IngredientRequestResult, error)
	ApproveIngredient(ctx context.Context, requestID uuid.UUID, actor phases.Actor) (*IngredientRequestResult, error)
	RejectIngredient(ctx context.Context, requestID uuid.UUID, actor phases.Actor, reason string) (*IngredientRequestResult, error)
	DisburseIngredient(ctx context.Context, requestID uuid.UUID, actor phases.Actor) (*IngredientRequestResult, error)
	GetIngredient(ctx context.Context, requestID uuid.UUID) (*phases.IngredientRequestView, error)

	SubmitOperation(ctx context.Context, input SubmitOperationInput) (*OperationRequestResult, error)
	ApproveOperation(ctx context.Context, requestID uuid.UUID, actor phases.Actor) (*OperationRequestResult, error)
	RejectOperation(ctx context.Context, requestID uuid.UUID, actor phases.Actor, reason string) (*OperationRequestResult, error)
	GetOperation(ctx context.Context, requestID uuid.UUID) (*phases.OperationRequestView, error)
}

// IngredientRequestResult pairs the request with the phase status the
// mutation left behind.
type IngredientRequestResult struct {
	phases.IngredientRequestView
	PhaseStatus enums.PhaseStatus `json:"phase_status"`
}

type OperationRequestResult struct {
	phases.OperationRequestView
	PhaseStatus enums.PhaseStatus `json:"phase_status"`
}

type service struct {
	repo   Repository
	runner phaseRunner
	ledger disbursementRecorder
}

func NewService(repo Repository, runner phaseRunner, ledger disbursementRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("phase runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("disbursement recorder required")
	}
	return &service{repo: repo, runner: runner, ledger: ledger}, nil
}

func requireActor(actor phases.Actor) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return nil
}

func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
