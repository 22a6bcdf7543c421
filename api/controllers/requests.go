package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/internal/requests"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type ingredientItemRequest struct {
	Name                string          `json:"name" validate:"required,max=200"`
	Quantity            decimal.Decimal `json:"quantity"`
	Unit                string          `json:"unit" validate:"required,max=32"`
	UnitPrice           int64           `json:"unit_price" validate:"gte=0"`
	LineTotal           int64           `json:"line_total" validate:"gte=0"`
	Supplier            string          `json:"supplier" validate:"max=200"`
	PlannedIngredientID *string         `json:"planned_ingredient_id" validate:"omitempty,uuid"`
}

type ingredientSubmitRequest struct {
	Items []ingredientItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (r ingredientSubmitRequest) toInput(phaseID uuid.UUID, actor phases.Actor) (requests.SubmitIngredientInput, error) {
	input := requests.SubmitIngredientInput{PhaseID: phaseID, Actor: actor}
	for _, item := range r.Items {
		plannedID, err := validators.ParseOptionalUUID(item.PlannedIngredientID, "planned_ingredient_id")
		if err != nil {
			return requests.SubmitIngredientInput{}, err
		}
		input.Items = append(input.Items, requests.ItemInput{
			Name:                validators.SanitizeString(item.Name, 200),
			Quantity:            item.Quantity,
			Unit:                strings.TrimSpace(item.Unit),
			UnitPrice:           item.UnitPrice,
			LineTotal:           item.LineTotal,
			Supplier:            validators.SanitizeString(item.Supplier, 200),
			PlannedIngredientID: plannedID,
		})
	}
	return input, nil
}

type operationSubmitRequest struct {
	ExpenseType string `json:"expense_type" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	TotalCost   int64  `json:"total_cost" validate:"gt=0"`
}

func (r operationSubmitRequest) toInput(phaseID uuid.UUID, actor phases.Actor) (requests.SubmitOperationInput, error) {
	expenseType, err := enums.ParseExpenseType(strings.ToUpper(strings.TrimSpace(r.ExpenseType)))
	if err != nil {
		return requests.SubmitOperationInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid expense_type").
			WithDetails(map[string]any{"field": "expense_type"})
	}
	return requests.SubmitOperationInput{
		PhaseID:     phaseID,
		ExpenseType: expenseType,
		Title:       validators.SanitizeString(r.Title, 200),
		TotalCost:   r.TotalCost,
		Actor:       actor,
	}, nil
}

// IngredientRequestSubmit files the phase's ingredient purchase request.
func IngredientRequestSubmit(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
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

		var payload ingredientSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(phaseID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SubmitIngredient(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func IngredientRequestApprove(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleIDAction(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID, actor phases.Actor) (any, error) {
		return svc.ApproveIngredient(ctx, id, actor)
	})
}

func IngredientRequestReject(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleReasonAction(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID, actor phases.Actor, reason string) (any, error) {
		return svc.RejectIngredient(ctx, id, actor, reason)
	})
}

// IngredientRequestDisburse releases the ingredient bucket for an approved
// request and records the ledger entry.
func IngredientRequestDisburse(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleIDAction(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID, actor phases.Actor) (any, error) {
		return svc.DisburseIngredient(ctx, id, actor)
	})
}

func IngredientRequestGet(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleGet(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.GetIngredient(ctx, id)
	})
}

// OperationRequestSubmit files a cooking or delivery expense request.
func OperationRequestSubmit(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "request service unavailable"))
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

		var payload operationSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(phaseID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SubmitOperation(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func OperationRequestApprove(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleIDAction(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID, actor phases.Actor) (any, error) {
		return svc.ApproveOperation(ctx, id, actor)
	})
}

func OperationRequestReject(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleReasonAction(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID, actor phases.Actor, reason string) (any, error) {
		return svc.RejectOperation(ctx, id, actor, reason)
	})
}

func OperationRequestGet(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return handleGet(svc != nil, "request", "requestId", logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.GetOperation(ctx, id)
	})
}
