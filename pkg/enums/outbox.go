package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePhase             OutboxAggregateType = "phase"
	AggregateCampaign          OutboxAggregateType = "campaign"
	AggregateIngredientRequest OutboxAggregateType = "ingredient_request"
	AggregateOperationRequest  OutboxAggregateType = "operation_request"
	AggregateExpenseProof      OutboxAggregateType = "expense_proof"
	AggregateDeliveryTask      OutboxAggregateType = "delivery_task"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePhase,
	AggregateCampaign,
	AggregateIngredientRequest,
	AggregateOperationRequest,
	AggregateExpenseProof,
	AggregateDeliveryTask,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPhaseStatusChanged    OutboxEventType = "phase_status_changed"
	EventCampaignStatusChanged OutboxEventType = "campaign_status_changed"
	EventFundsDisbursed        OutboxEventType = "funds_disbursed"
	EventExpenseProofSubmitted OutboxEventType = "expense_proof_submitted"
	EventDeliveryTaskFailed    OutboxEventType = "delivery_task_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPhaseStatusChanged,
	EventCampaignStatusChanged,
	EventFundsDisbursed,
	EventExpenseProofSubmitted,
	EventDeliveryTaskFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// DeadLetterReason records why an event stopped being retried.
type DeadLetterReason string

const (
	DeadLetterMaxAttempts  DeadLetterReason = "max_attempts"
	DeadLetterNonRetryable DeadLetterReason = "non_retryable"
)
