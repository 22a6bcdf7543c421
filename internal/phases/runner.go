package phases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CampaignSyncer recomputes a campaign's rolled-up status inside the phase
// transaction.
type CampaignSyncer interface {
	SyncStatus(ctx context.Context, tx *gorm.DB, campaignID uuid.UUID, actor Actor) error
}

// Observer receives workflow metrics.
type Observer interface {
	ObserveTransition(from, to string)
	IncConflict(operation string)
	ObserveDuration(operation string, duration time.Duration)
}

// Actor is the authenticated caller performing a mutation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

func (a Actor) ref() *outbox.ActorRef {
	if a.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: a.Role}
}

// MutateFunc changes child rows of a phase. It runs after the phase version
// has been claimed and must only use tx.
type MutateFunc func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error

// Change reports the phase after a mutation and the status move it caused.
type Change struct {
	Phase *models.Phase
	From  enums.PhaseStatus
	To    enums.PhaseStatus
}

// Changed reports whether the mutation moved the persisted status.
func (c *Change) Changed() bool {
	return c != nil && c.From != c.To
}

// RunnerOptions carries the runner's collaborators. Campaigns, Metrics and
// Logger are optional.
type RunnerOptions struct {
	Tx              txRunner
	Repo            Repository
	Outbox          outboxPublisher
	Campaigns       CampaignSyncer
	Metrics         Observer
	Logger          *logger.Logger
	ConflictRetries int
}

// Runner serializes every state-changing operation on a phase. Each call
// claims the phase version first, applies the child mutation, then
// recomputes and persists the phase status in the same transaction.
type Runner struct {
	tx        txRunner
	repo      Repository
	outbox    outboxPublisher
	campaigns CampaignSyncer
	metrics   Observer
	logg      *logger.Logger
	retries   int
}

// step decides the target status once the version is claimed.
type step func(ctx context.Context, tx *gorm.DB, repo Repository, phase *models.Phase) (enums.PhaseStatus, *string, error)

// NewRunner validates the collaborators and returns a runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Repo == nil {
		return nil, fmt.Errorf("phase repository required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if opts.ConflictRetries < 0 {
		return nil, fmt.Errorf("conflict retries must not be negative")
	}
	return &Runner{
		tx:        opts.Tx,
		repo:      opts.Repo,
		outbox:    opts.Outbox,
		campaigns: opts.Campaigns,
		metrics:   opts.Metrics,
		logg:      opts.Logger,
		retries:   opts.ConflictRetries,
	}, nil
}

// Mutate runs fn against a non-terminal phase and advances the phase to the
// status its children now imply.
func (r *Runner) Mutate(ctx context.Context, operation string, phaseID uuid.UUID, actor Actor, fn MutateFunc) (*Change, error) {
	return r.run(ctx, operation, phaseID, actor, func(ctx context.Context, tx *gorm.DB, repo Repository, phase *models.Phase) (enums.PhaseStatus, *string, error) {
		if phase.Status.IsTerminal() {
			return "", nil, terminatedError(phase)
		}
		if fn != nil {
			if err := fn(ctx, tx, phase); err != nil {
				return "", nil, err
			}
		}
		snapshot, err := repo.LoadSnapshot(ctx, phase.ID)
		if err != nil {
			return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load phase snapshot")
		}
		return Resolve(phase.Status, snapshot), nil, nil
	})
}

// Terminate moves a non-terminal phase into CANCELLED or FAILED.
func (r *Runner) Terminate(ctx context.Context, operation string, phaseID uuid.UUID, actor Actor, target enums.PhaseStatus, reason string) (*Change, error) {
	if !target.IsSideState() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "status %s is not a terminal side state", target)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return r.run(ctx, operation, phaseID, actor, func(ctx context.Context, tx *gorm.DB, repo Repository, phase *models.Phase) (enums.PhaseStatus, *string, error) {
		if !CanTransition(phase.Status, target) {
			return "", nil, pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "phase is already %s", phase.Status).
				WithDetails(map[string]any{"status": phase.Status})
		}
		return target, &reason, nil
	})
}

func (r *Runner) run(ctx context.Context, operation string, phaseID uuid.UUID, actor Actor, decide step) (*Change, error) {
	if phaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phase id is required")
	}
	for attempt := 0; ; attempt++ {
		start := time.Now()
		change, err := r.attempt(ctx, phaseID, actor, decide)
		if r.metrics != nil {
			r.metrics.ObserveDuration(operation, time.Since(start))
		}
		if err == nil {
			if change.Changed() && r.metrics != nil {
				r.metrics.ObserveTransition(change.From.String(), change.To.String())
			}
			r.logChange(ctx, operation, change)
			return change, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return nil, err
		}
		if r.metrics != nil {
			r.metrics.IncConflict(operation)
		}
		if attempt >= r.retries {
			return nil, err
		}
		if r.logg != nil {
			logCtx := r.logg.WithFields(ctx, map[string]any{
				"operation": operation,
				"phase_id":  phaseID.String(),
				"attempt":   attempt + 1,
			})
			r.logg.Warn(logCtx, "phase version conflict, retrying")
		}
	}
}

func (r *Runner) attempt(ctx context.Context, phaseID uuid.UUID, actor Actor, decide step) (*Change, error) {
	var change *Change
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		phase, err := repo.FindByID(ctx, phaseID)
		if err != nil {
			if isNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "phase not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load phase")
		}

		claimed, err := repo.ClaimVersion(ctx, phase.ID, phase.Version)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim phase version")
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "phase was modified concurrently").
				WithDetails(map[string]any{"phase_id": phase.ID, "version": phase.Version})
		}
		phase.Version++

		next, reason, err := decide(ctx, tx, repo, phase)
		if err != nil {
			return err
		}
		change = &Change{Phase: phase, From: phase.Status, To: next}
		if next == phase.Status {
			return nil
		}
		return r.apply(ctx, tx, repo, phase, next, reason, actor)
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

func (r *Runner) apply(ctx context.Context, tx *gorm.DB, repo Repository, phase *models.Phase, next enums.PhaseStatus, reason *string, actor Actor) error {
	now := time.Now().UTC()
	var terminatedAt *time.Time
	if next.IsTerminal() {
		terminatedAt = &now
	}
	if err := repo.UpdateStatus(ctx, phase.ID, next, reason, terminatedAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update phase status")
	}

	var actorID *uuid.UUID
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		actorID = &id
	}
	if err := repo.RecordTransition(ctx, &models.PhaseTransition{
		PhaseID:     phase.ID,
		FromStatus:  phase.Status,
		ToStatus:    next,
		ActorUserID: actorID,
		Reason:      reason,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record phase transition")
	}

	event := payloads.PhaseStatusChangedEvent{
		PhaseID:    phase.ID,
		CampaignID: phase.CampaignID,
		From:       phase.Status,
		To:         next,
		Version:    phase.Version,
		ChangedAt:  now,
	}
	if reason != nil {
		event.Reason = *reason
	}
	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPhaseStatusChanged,
		AggregateType: enums.AggregatePhase,
		AggregateID:   phase.ID,
		Actor:         actor.ref(),
		Version:       1,
		OccurredAt:    now,
		Data:          event,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit phase status event")
	}

	phase.Status = next
	if reason != nil {
		phase.StatusReason = reason
	}
	phase.TerminatedAt = terminatedAt

	if r.campaigns != nil {
		if err := r.campaigns.SyncStatus(ctx, tx, phase.CampaignID, actor); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) logChange(ctx context.Context, operation string, change *Change) {
	if r.logg == nil || !change.Changed() {
		return
	}
	logCtx := r.logg.WithPhaseID(ctx, change.Phase.ID.String())
	logCtx = r.logg.WithCampaignID(logCtx, change.Phase.CampaignID.String())
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"operation": operation,
		"from":      change.From,
		"to":        change.To,
	})
	r.logg.Info(logCtx, "phase status changed")
}

func terminatedError(phase *models.Phase) error {
	return pkgerrors.Newf(pkgerrors.CodePhaseTerminated, "phase is %s", phase.Status).
		WithDetails(map[string]any{"phase_id": phase.ID, "status": phase.Status})
}
