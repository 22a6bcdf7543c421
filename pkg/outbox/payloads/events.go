package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/foodrelief/relief-backend/pkg/enums"
)

// PhaseStatusChangedEvent is fanned out to notification dispatch whenever a
// phase's persisted status moves.
type PhaseStatusChangedEvent struct {
	PhaseID    uuid.UUID         `json:"phase_id"`
	CampaignID uuid.UUID         `json:"campaign_id"`
	From       enums.PhaseStatus `json:"from"`
	To         enums.PhaseStatus `json:"to"`
	Reason     string            `json:"reason,omitempty"`
	Version    int64             `json:"version"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// CampaignStatusChangedEvent reports a rolled-up campaign status change.
type CampaignStatusChangedEvent struct {
	CampaignID uuid.UUID            `json:"campaign_id"`
	From       enums.CampaignStatus `json:"from"`
	To         enums.CampaignStatus `json:"to"`
}

// FundsDisbursedEvent is emitted for every ledger disbursement row.
type FundsDisbursedEvent struct {
	LedgerEventID uuid.UUID          `json:"ledger_event_id"`
	CampaignID    uuid.UUID          `json:"campaign_id"`
	PhaseID       uuid.UUID          `json:"phase_id"`
	RequestID     uuid.UUID          `json:"request_id"`
	Bucket        enums.BudgetBucket `json:"bucket"`
	AmountMinor   int64              `json:"amount_minor"`
}

// ExpenseProofSubmittedEvent surfaces proof variance to the auditor queue.
type ExpenseProofSubmittedEvent struct {
	ProofID         uuid.UUID                `json:"proof_id"`
	PhaseID         uuid.UUID                `json:"phase_id"`
	RequestKind     enums.ExpenseRequestKind `json:"request_kind"`
	RequestID       uuid.UUID                `json:"request_id"`
	ClaimedAmount   int64                    `json:"claimed_amount"`
	PlannedAmount   int64                    `json:"planned_amount"`
	AmountVariance  int64                    `json:"amount_variance"`
	VarianceFlagged bool                     `json:"variance_flagged"`
}

// DeliveryTaskFailedEvent asks coordinators to reassign a delivery.
type DeliveryTaskFailedEvent struct {
	TaskID          uuid.UUID `json:"task_id"`
	PhaseID         uuid.UUID `json:"phase_id"`
	MealBatchID     uuid.UUID `json:"meal_batch_id"`
	DeliveryStaffID uuid.UUID `json:"delivery_staff_id"`
	Note            string    `json:"note"`
}
