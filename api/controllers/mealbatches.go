package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodrelief/relief-backend/api/presenters"
	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/mealbatches"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type usageRequest struct {
	RequestItemID string          `json:"request_item_id" validate:"required,uuid"`
	Quantity      decimal.Decimal `json:"quantity"`
}

func toUsageInputs(rows []usageRequest) ([]mealbatches.UsageInput, error) {
	out := make([]mealbatches.UsageInput, 0, len(rows))
	for _, row := range rows {
		itemID, err := validators.ParseUUID(row.RequestItemID, "request_item_id")
		if err != nil {
			return nil, err
		}
		out = append(out, mealbatches.UsageInput{RequestItemID: itemID, Quantity: row.Quantity})
	}
	return out, nil
}

type mealBatchCreateRequest struct {
	FoodName      string         `json:"food_name" validate:"required,max=200"`
	Quantity      int            `json:"quantity" validate:"gt=0"`
	PlannedMealID *string        `json:"planned_meal_id" validate:"omitempty,uuid"`
	Usages        []usageRequest `json:"ingredient_usages" validate:"dive"`
	MediaKeys     []string       `json:"media_keys" validate:"dive,required"`
}

func (r mealBatchCreateRequest) toInput(phaseID uuid.UUID, actor phases.Actor) (mealbatches.CreateInput, error) {
	plannedID, err := validators.ParseOptionalUUID(r.PlannedMealID, "planned_meal_id")
	if err != nil {
		return mealbatches.CreateInput{}, err
	}
	usages, err := toUsageInputs(r.Usages)
	if err != nil {
		return mealbatches.CreateInput{}, err
	}
	return mealbatches.CreateInput{
		PhaseID:       phaseID,
		FoodName:      validators.SanitizeString(r.FoodName, 200),
		Quantity:      r.Quantity,
		PlannedMealID: plannedID,
		Usages:        usages,
		MediaKeys:     r.MediaKeys,
		Actor:         actor,
	}, nil
}

type mealBatchUsageRequest struct {
	Usages []usageRequest `json:"ingredient_usages" validate:"required,min=1,dive"`
}

type mealBatchStatusRequest struct {
	Status    string     `json:"status" validate:"required"`
	CookedAt  *time.Time `json:"cooked_at"`
	MediaKeys []string   `json:"media_keys" validate:"dive,required"`
}

type mealBatchResponse struct {
	*mealbatches.BatchResult
	StatusLabel      string `json:"status_label"`
	PhaseStatusLabel string `json:"phase_status_label"`
}

func presentBatch(result *mealbatches.BatchResult, labels presenters.Labeler) mealBatchResponse {
	return mealBatchResponse{
		BatchResult:      result,
		StatusLabel:      labels.MealBatch(result.Status),
		PhaseStatusLabel: labels.Phase(result.PhaseStatus),
	}
}

// MealBatchCreate records a cooked batch and the ingredients it consumed.
func MealBatchCreate(svc mealbatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "meal batch service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		phaseID, err := validators.ParseUUIDParam(r, "phaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload mealBatchCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(phaseID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, presentBatch(result, presenters.FromRequest(r)))
	}
}

func MealBatchGet(svc mealbatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "meal batch service unavailable"))
			return
		}
		batchID, err := validators.ParseUUIDParam(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		labels := presenters.FromRequest(r)
		responses.WriteSuccess(w, struct {
			*phases.MealBatchView
			StatusLabel string `json:"status_label"`
		}{view, labels.MealBatch(view.Status)})
	}
}

// MealBatchAddUsage attaches more ingredient consumption to a batch.
func MealBatchAddUsage(svc mealbatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "meal batch service unavailable"))
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

		var payload mealBatchUsageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		usages, err := toUsageInputs(payload.Usages)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddUsage(r.Context(), batchID, usages, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentBatch(result, presenters.FromRequest(r)))
	}
}

func MealBatchUpdateStatus(svc mealbatches.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "meal batch service unavailable"))
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

		var payload mealBatchStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseMealBatchStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}

		result, err := svc.UpdateStatus(r.Context(), mealbatches.UpdateStatusInput{
			BatchID:   batchID,
			Status:    status,
			CookedAt:  payload.CookedAt,
			MediaKeys: payload.MediaKeys,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentBatch(result, presenters.FromRequest(r)))
	}
}
