package campaigns

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
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service creates campaigns and keeps their rolled-up status current.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CampaignView, error)
	Get(ctx context.Context, id uuid.UUID) (*CampaignView, error)
	SyncStatus(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID, actor phases.Actor) error
}

type CreateInput struct {
	Title          string
	TargetAmount   int64
	ReceivedAmount int64
	Currency       string
	Actor          phases.Actor
}

type PhaseStatusView struct {
	ID         uuid.UUID         `json:"id"`
	Position   int               `json:"position"`
	Name       string            `json:"name"`
	Status     enums.PhaseStatus `json:"status"`
	TotalFunds int64             `json:"total_funds"`
}

// CampaignView is the campaign read model. FundingProgress is the received
// share of the target in percent, two decimal places.
type CampaignView struct {
	ID              uuid.UUID            `json:"id"`
	Title           string               `json:"title"`
	TargetAmount    int64                `json:"target_amount"`
	ReceivedAmount  int64                `json:"received_amount"`
	PlannedFunds    int64                `json:"planned_funds"`
	Currency        string               `json:"currency"`
	Status          enums.CampaignStatus `json:"status"`
	FundingProgress decimal.Decimal      `json:"funding_progress_pct"`
	Phases          []PhaseStatusView    `json:"phases"`
	CreatedAt       time.Time            `json:"created_at"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

func NewService(repo Repository, tx txRunner, outboxPublisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("campaign repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPublisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxPublisher}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CampaignView, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.TargetAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target amount must be positive")
	}
	if input.ReceivedAmount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "received amount must not be negative")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	campaign := &models.Campaign{
		Title:          title,
		TargetAmount:   input.TargetAmount,
		ReceivedAmount: input.ReceivedAmount,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		Status:         enums.CampaignStatusActive,
		CreatedBy:      input.Actor.UserID,
	}
	if err := s.repo.Create(ctx, campaign); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create campaign")
	}
	return buildView(campaign, nil), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CampaignView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	}
	campaign, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	rows, err := s.repo.ListPhases(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaign phases")
	}
	return buildView(campaign, rows), nil
}

// SyncStatus recomputes the campaign status from its phases and persists it
// when it moved, emitting campaign_status_changed.
func (s *service) SyncStatus(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID, actor phases.Actor) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	repo := s.repo.WithTx(tx)
	campaign, err := repo.FindByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	rows, err := repo.ListPhases(ctx, campaignID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaign phases")
	}
	next := DeriveStatus(phaseStatuses(rows))
	if next == campaign.Status {
		return nil
	}
	if err := repo.UpdateStatus(ctx, campaignID, next); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update campaign status")
	}

	var ref *outbox.ActorRef
	if actor.UserID != uuid.Nil {
		ref = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCampaignStatusChanged,
		AggregateType: enums.AggregateCampaign,
		AggregateID:   campaignID,
		Actor:         ref,
		Version:       1,
		Data: payloads.CampaignStatusChangedEvent{
			CampaignID: campaignID,
			From:       campaign.Status,
			To:         next,
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit campaign status event")
	}
	return nil
}

func phaseStatuses(rows []models.Phase) []enums.PhaseStatus {
	out := make([]enums.PhaseStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Status)
	}
	return out
}

func buildView(campaign *models.Campaign, rows []models.Phase) *CampaignView {
	view := &CampaignView{
		ID:              campaign.ID,
		Title:           campaign.Title,
		TargetAmount:    campaign.TargetAmount,
		ReceivedAmount:  campaign.ReceivedAmount,
		Currency:        campaign.Currency,
		Status:          DeriveStatus(phaseStatuses(rows)),
		FundingProgress: FundingProgress(campaign.ReceivedAmount, campaign.TargetAmount),
		Phases:          make([]PhaseStatusView, 0, len(rows)),
		CreatedAt:       campaign.CreatedAt,
	}
	for _, row := range rows {
		view.PlannedFunds += row.TotalFundsAmount
		view.Phases = append(view.Phases, PhaseStatusView{
			ID:         row.ID,
			Position:   row.Position,
			Name:       row.Name,
			Status:     row.Status,
			TotalFunds: row.TotalFundsAmount,
		})
	}
	return view
}

// FundingProgress returns received/target as a percentage rounded to two
// places. A non-positive target reports zero.
func FundingProgress(received, target int64) decimal.Decimal {
	if target <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(received).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(target)).
		Round(2)
}
