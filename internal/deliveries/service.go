package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/outbox/payloads"
	"github.com/foodrelief/relief-backend/pkg/pagination"
)

type phaseRunner interface {
	Mutate(ctx context.Context, operation string, phaseID uuid.UUID, actor phases.Actor, fn phases.MutateFunc) (*phases.Change, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service dispatches delivery tasks for cooked meal batches.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*TaskResult, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*TaskResult, error)
	Reassign(ctx context.Context, input ReassignInput) (*TaskResult, error)
	ListMine(ctx context.Context, actor phases.Actor, status *enums.DeliveryTaskStatus, page pagination.Params) (*TaskPage, error)
	Get(ctx context.Context, taskID uuid.UUID) (*phases.DeliveryTaskView, error)
}

type CreateInput struct {
	MealBatchID     uuid.UUID
	DeliveryStaffID uuid.UUID
	Actor           phases.Actor
}

// UpdateStatusInput is submitted by the assignee. Note is mandatory for
// FAILED and optional for REJECTED.
type UpdateStatusInput struct {
	TaskID uuid.UUID
	Status enums.DeliveryTaskStatus
	Note   string
	Actor  phases.Actor
}

type ReassignInput struct {
	TaskID          uuid.UUID
	DeliveryStaffID uuid.UUID
	Actor           phases.Actor
}

type TaskResult struct {
	phases.DeliveryTaskView
	PhaseStatus enums.PhaseStatus `json:"phase_status"`
}

// TaskPage is one page of the caller's tasks, newest first.
type TaskPage struct {
	Tasks      []phases.DeliveryTaskView `json:"tasks"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

type service struct {
	repo   Repository
	runner phaseRunner
	outbox outboxPublisher
}

func NewService(repo Repository, runner phaseRunner, outboxPublisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("phase runner required")
	}
	if outboxPublisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, runner: runner, outbox: outboxPublisher}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*TaskResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.MealBatchID == uuid.Nil || input.DeliveryStaffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "meal batch id and delivery staff id are required")
	}
	batch, err := s.repo.FindBatch(ctx, input.MealBatchID)
	if err != nil {
		return nil, lookupError(err, "meal batch")
	}

	var created *models.DeliveryTask
	change, err := s.runner.Mutate(ctx, "create_delivery_task", batch.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		if !phase.Status.AtLeast(enums.PhaseStatusDelivery) {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "delivery tasks need a phase in DELIVERY, phase is %s", phase.Status)
		}
		repo := s.repo.WithTx(tx)
		batch, err := repo.FindBatch(ctx, input.MealBatchID)
		if err != nil {
			return lookupError(err, "meal batch")
		}
		if !batch.Status.IsCooked() {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "meal batch is %s, only cooked batches can be delivered", batch.Status)
		}
		created = &models.DeliveryTask{
			PhaseID:         phase.ID,
			MealBatchID:     batch.ID,
			DeliveryStaffID: input.DeliveryStaffID,
			AssignedBy:      input.Actor.UserID,
			Status:          enums.DeliveryTaskPending,
		}
		if err := repo.Create(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery task")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TaskResult{DeliveryTaskView: phases.NewDeliveryTaskView(*created, false), PhaseStatus: change.To}, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*TaskResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery task status %q", input.Status)
	}
	note := strings.TrimSpace(input.Note)
	if input.Status == enums.DeliveryTaskFailed && note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a note is required when a delivery fails")
	}
	existing, err := s.repo.FindByID(ctx, input.TaskID)
	if err != nil {
		return nil, lookupError(err, "delivery task")
	}
	if existing.DeliveryStaffID != input.Actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned delivery staff can update this task")
	}

	var updated *models.DeliveryTask
	change, err := s.runner.Mutate(ctx, "update_delivery_task_status", existing.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		task, err := repo.FindByID(ctx, input.TaskID)
		if err != nil {
			return lookupError(err, "delivery task")
		}
		if !CanTransition(task.Status, input.Status) {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "delivery task cannot move from %s to %s", task.Status, input.Status).
				WithDetails(map[string]any{"task_id": task.ID, "status": task.Status})
		}
		updates := map[string]any{"status": input.Status}
		if note != "" && input.Status.IsReassignable() {
			updates["failure_note"] = note
		}
		if input.Status == enums.DeliveryTaskCompleted {
			updates["completed_at"] = time.Now().UTC()
		}
		if err := repo.Update(ctx, task.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery task")
		}
		if input.Status == enums.DeliveryTaskFailed {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventDeliveryTaskFailed,
				AggregateType: enums.AggregateDeliveryTask,
				AggregateID:   task.ID,
				Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: input.Actor.Role},
				Version:       1,
				Data: payloads.DeliveryTaskFailedEvent{
					TaskID:          task.ID,
					PhaseID:         phase.ID,
					MealBatchID:     task.MealBatchID,
					DeliveryStaffID: task.DeliveryStaffID,
					Note:            note,
				},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit delivery failure")
			}
		}
		updated, err = repo.FindByID(ctx, task.ID)
		if err != nil {
			return lookupError(err, "delivery task")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TaskResult{DeliveryTaskView: phases.NewDeliveryTaskView(*updated, false), PhaseStatus: change.To}, nil
}

// Reassign hands a rejected or failed delivery to another staff member. The
// original task stays as history and stops counting toward completion.
func (s *service) Reassign(ctx context.Context, input ReassignInput) (*TaskResult, error) {
	if err := requireActor(input.Actor); err != nil {
		return nil, err
	}
	if input.DeliveryStaffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery staff id is required")
	}
	existing, err := s.repo.FindByID(ctx, input.TaskID)
	if err != nil {
		return nil, lookupError(err, "delivery task")
	}

	var created *models.DeliveryTask
	change, err := s.runner.Mutate(ctx, "reassign_delivery_task", existing.PhaseID, input.Actor, func(ctx context.Context, tx *gorm.DB, phase *models.Phase) error {
		repo := s.repo.WithTx(tx)
		task, err := repo.FindByID(ctx, input.TaskID)
		if err != nil {
			return lookupError(err, "delivery task")
		}
		if !task.Status.IsReassignable() {
			return pkgerrors.Newf(pkgerrors.CodeInvalidStateTransition, "delivery task is %s, only rejected or failed tasks can be reassigned", task.Status)
		}
		replaced, err := repo.IsReplaced(ctx, task.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check replacement")
		}
		if replaced {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "delivery task has already been reassigned")
		}
		created = &models.DeliveryTask{
			PhaseID:         phase.ID,
			MealBatchID:     task.MealBatchID,
			DeliveryStaffID: input.DeliveryStaffID,
			AssignedBy:      input.Actor.UserID,
			Status:          enums.DeliveryTaskPending,
			ReplacesTaskID:  &task.ID,
		}
		if err := repo.Create(ctx, created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create replacement task")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TaskResult{DeliveryTaskView: phases.NewDeliveryTaskView(*created, false), PhaseStatus: change.To}, nil
}

func (s *service) ListMine(ctx context.Context, actor phases.Actor, status *enums.DeliveryTaskStatus, page pagination.Params) (*TaskPage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid delivery task status %q", *status)
	}
	after, err := pagination.Decode(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(page.Limit)
	tasks, err := s.repo.ListByStaff(ctx, actor.UserID, status, after, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivery tasks")
	}
	tasks, next := pagination.Trim(tasks, limit, func(task models.DeliveryTask) pagination.Cursor {
		return pagination.Cursor{CreatedAt: task.CreatedAt, ID: task.ID}
	})

	out := &TaskPage{Tasks: make([]phases.DeliveryTaskView, 0, len(tasks)), NextCursor: next}
	for _, task := range tasks {
		superseded, err := s.superseded(ctx, task)
		if err != nil {
			return nil, err
		}
		out.Tasks = append(out.Tasks, phases.NewDeliveryTaskView(task, superseded))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, taskID uuid.UUID) (*phases.DeliveryTaskView, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, lookupError(err, "delivery task")
	}
	superseded, err := s.superseded(ctx, *task)
	if err != nil {
		return nil, err
	}
	view := phases.NewDeliveryTaskView(*task, superseded)
	return &view, nil
}

func (s *service) superseded(ctx context.Context, task models.DeliveryTask) (bool, error) {
	if !task.Status.IsReassignable() {
		return false, nil
	}
	replaced, err := s.repo.IsReplaced(ctx, task.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check replacement")
	}
	return replaced, nil
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
