package controllers

import (
	"net/http"
	"strings"

	"github.com/foodrelief/relief-backend/api/presenters"
	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/deliveries"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
	"github.com/foodrelief/relief-backend/pkg/pagination"
)

type deliveryAssignRequest struct {
	DeliveryStaffID string `json:"delivery_staff_id" validate:"required,uuid"`
}

type deliveryStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

type deliveryTaskResponse struct {
	*deliveries.TaskResult
	StatusLabel      string `json:"status_label"`
	PhaseStatusLabel string `json:"phase_status_label"`
}

type deliveryTaskViewResponse struct {
	phases.DeliveryTaskView
	StatusLabel string `json:"status_label"`
}

func presentTask(result *deliveries.TaskResult, labels presenters.Labeler) deliveryTaskResponse {
	return deliveryTaskResponse{
		TaskResult:       result,
		StatusLabel:      labels.DeliveryTask(result.Status),
		PhaseStatusLabel: labels.Phase(result.PhaseStatus),
	}
}

// DeliveryTaskCreate assigns a cooked batch to a delivery staff member.
func DeliveryTaskCreate(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batchID, err := validators.ParseUUIDParam(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deliveryAssignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		staffID, err := validators.ParseUUID(payload.DeliveryStaffID, "delivery_staff_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), deliveries.CreateInput{MealBatchID: batchID, DeliveryStaffID: staffID, Actor: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, presentTask(result, presenters.FromRequest(r)))
	}
}

// DeliveryTaskUpdateStatus is called by the assignee to progress a task.
func DeliveryTaskUpdateStatus(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		taskID, err := validators.ParseUUIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDeliveryTaskStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}

		result, err := svc.UpdateStatus(r.Context(), deliveries.UpdateStatusInput{
			TaskID: taskID,
			Status: status,
			Note:   validators.SanitizeString(payload.Note, 1000),
			Actor:  actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentTask(result, presenters.FromRequest(r)))
	}
}

// DeliveryTaskReassign replaces a rejected or failed task with a new one.
func DeliveryTaskReassign(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		taskID, err := validators.ParseUUIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deliveryAssignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		staffID, err := validators.ParseUUID(payload.DeliveryStaffID, "delivery_staff_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reassign(r.Context(), deliveries.ReassignInput{TaskID: taskID, DeliveryStaffID: staffID, Actor: actor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, presentTask(result, presenters.FromRequest(r)))
	}
}

type taskPageResponse struct {
	Tasks      []deliveryTaskViewResponse `json:"tasks"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

// DeliveryTaskListMine lists the caller's tasks newest first, optionally by
// ?status=, paged with ?limit= and ?cursor=.
func DeliveryTaskListMine(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter *enums.DeliveryTaskStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseDeliveryTaskStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			filter = &status
		}

		page, err := pagination.FromQuery(r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination").
				WithDetails(map[string]any{"field": "limit"}))
			return
		}

		result, err := svc.ListMine(r.Context(), actor, filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		labels := presenters.FromRequest(r)
		out := make([]deliveryTaskViewResponse, 0, len(result.Tasks))
		for _, task := range result.Tasks {
			out = append(out, deliveryTaskViewResponse{DeliveryTaskView: task, StatusLabel: labels.DeliveryTask(task.Status)})
		}
		responses.WriteSuccess(w, taskPageResponse{Tasks: out, NextCursor: result.NextCursor})
	}
}

func DeliveryTaskGet(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery service unavailable"))
			return
		}
		taskID, err := validators.ParseUUIDParam(r, "taskId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), taskID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deliveryTaskViewResponse{DeliveryTaskView: *view, StatusLabel: presenters.FromRequest(r).DeliveryTask(view.Status)})
	}
}
