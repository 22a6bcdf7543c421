package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/budget"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/outbox/payloads"
)

// Service records budget releases. Writes always happen inside the caller's
// transaction so a disbursement commits together with the request change.
type Service interface {
	RecordDisbursement(ctx context.Context, tx *gorm.DB, input RecordDisbursementInput) (*models.LedgerEvent, error)
	DisbursedByBucket(ctx context.Context, phaseID uuid.UUID) (map[enums.BudgetBucket]int64, error)
	ListByPhase(ctx context.Context, phaseID uuid.UUID) ([]models.LedgerEvent, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	outbox outboxPublisher
}

// RecordDisbursementInput captures the immutable data a disbursement requires.
// Allocated is the bucket amount the phase currently holds.
type RecordDisbursementInput struct {
	CampaignID  uuid.UUID          `json:"campaign_id"`
	PhaseID     uuid.UUID          `json:"phase_id"`
	RequestID   uuid.UUID          `json:"request_id"`
	Bucket      enums.BudgetBucket `json:"bucket"`
	Allocated   int64              `json:"allocated"`
	AmountMinor int64              `json:"amount_minor"`
	ActorUserID uuid.UUID          `json:"actor_user_id"`
	ActorRole   enums.ActorRole    `json:"actor_role"`
	Metadata    json.RawMessage    `json:"metadata"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, outboxPublisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if outboxPublisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, outbox: outboxPublisher}, nil
}

func (s *service) RecordDisbursement(ctx context.Context, tx *gorm.DB, input RecordDisbursementInput) (*models.LedgerEvent, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if input.PhaseID == uuid.Nil || input.CampaignID == uuid.Nil {
		return nil, fmt.Errorf("phase and campaign ids are required")
	}
	if input.RequestID == uuid.Nil {
		return nil, fmt.Errorf("request id is required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, fmt.Errorf("actor user id is required")
	}
	if !input.Bucket.IsValid() {
		return nil, fmt.Errorf("invalid budget bucket %q", input.Bucket)
	}
	if input.AmountMinor < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "disbursement amount must not be negative")
	}

	repo := s.repo.WithTx(tx)
	disbursed, err := repo.HasEntry(ctx, input.RequestID, enums.LedgerEventTypeDisbursement)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check prior disbursement")
	}
	if disbursed {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "request already disbursed")
	}

	totals, err := repo.BucketTotals(ctx, input.PhaseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum disbursements")
	}
	if err := budget.EnsureWithinBucket(input.Bucket, input.Allocated, totals[input.Bucket], input.AmountMinor); err != nil {
		return nil, err
	}

	event := &models.LedgerEvent{
		CampaignID:  input.CampaignID,
		PhaseID:     input.PhaseID,
		RequestID:   input.RequestID,
		Bucket:      input.Bucket,
		Type:        enums.LedgerEventTypeDisbursement,
		AmountMinor: input.AmountMinor,
		ActorUserID: input.ActorUserID,
		Metadata:    input.Metadata,
	}
	if err := repo.Append(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record disbursement")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFundsDisbursed,
		AggregateType: enums.AggregatePhase,
		AggregateID:   input.PhaseID,
		Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
		Version:       1,
		Data: payloads.FundsDisbursedEvent{
			LedgerEventID: event.ID,
			CampaignID:    input.CampaignID,
			PhaseID:       input.PhaseID,
			RequestID:     input.RequestID,
			Bucket:        input.Bucket,
			AmountMinor:   input.AmountMinor,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit disbursement event")
	}
	return event, nil
}

func (s *service) DisbursedByBucket(ctx context.Context, phaseID uuid.UUID) (map[enums.BudgetBucket]int64, error) {
	if phaseID == uuid.Nil {
		return nil, fmt.Errorf("phase id is required")
	}
	return s.repo.BucketTotals(ctx, phaseID)
}

func (s *service) ListByPhase(ctx context.Context, phaseID uuid.UUID) ([]models.LedgerEvent, error) {
	if phaseID == uuid.Nil {
		return nil, fmt.Errorf("phase id is required")
	}
	return s.repo.ForPhase(ctx, phaseID)
}
