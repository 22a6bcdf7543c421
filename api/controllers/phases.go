package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/foodrelief/relief-backend/api/presenters"
	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type plannedIngredientRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" validate:"max=32"`
}

type plannedMealRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type phaseCreateRequest struct {
	Name                   string                     `json:"name" validate:"required,max=200"`
	Position               int                        `json:"position" validate:"gte=0"`
	TotalFunds             int64                      `json:"total_funds" validate:"gte=0"`
	IngredientBudgetPct    int                        `json:"ingredient_budget_pct" validate:"gte=0,lte=100"`
	CookingBudgetPct       int                        `json:"cooking_budget_pct" validate:"gte=0,lte=100"`
	DeliveryBudgetPct      int                        `json:"delivery_budget_pct" validate:"gte=0,lte=100"`
	PlannedIngredients     []plannedIngredientRequest `json:"planned_ingredients" validate:"dive"`
	PlannedMeals           []plannedMealRequest       `json:"planned_meals" validate:"dive"`
	IngredientPurchaseDate *time.Time                 `json:"ingredient_purchase_date"`
	CookingDate            *time.Time                 `json:"cooking_date"`
	DeliveryDate           *time.Time                 `json:"delivery_date"`
}

func (r phaseCreateRequest) toInput(campaignID uuid.UUID, actor phases.Actor) phases.CreateInput {
	input := phases.CreateInput{
		CampaignID:             campaignID,
		Name:                   validators.SanitizeString(r.Name, 200),
		Position:               r.Position,
		TotalFunds:             r.TotalFunds,
		IngredientPct:          r.IngredientBudgetPct,
		CookingPct:             r.CookingBudgetPct,
		DeliveryPct:            r.DeliveryBudgetPct,
		IngredientPurchaseDate: r.IngredientPurchaseDate,
		CookingDate:            r.CookingDate,
		DeliveryDate:           r.DeliveryDate,
		Actor:                  actor,
	}
	for _, item := range r.PlannedIngredients {
		input.PlannedIngredients = append(input.PlannedIngredients, phases.PlannedIngredientInput{
			Name:     validators.SanitizeString(item.Name, 200),
			Quantity: item.Quantity,
			Unit:     strings.TrimSpace(item.Unit),
		})
	}
	for _, meal := range r.PlannedMeals {
		input.PlannedMeals = append(input.PlannedMeals, phases.PlannedMealInput{
			Name:     validators.SanitizeString(meal.Name, 200),
			Quantity: meal.Quantity,
		})
	}
	return input
}

type phaseBudgetRequest struct {
	TotalFunds          int64 `json:"total_funds" validate:"gte=0"`
	IngredientBudgetPct int   `json:"ingredient_budget_pct" validate:"gte=0,lte=100"`
	CookingBudgetPct    int   `json:"cooking_budget_pct" validate:"gte=0,lte=100"`
	DeliveryBudgetPct   int   `json:"delivery_budget_pct" validate:"gte=0,lte=100"`
}

type phaseResponse struct {
	*phases.PhaseView
	StatusLabel string `json:"status_label"`
	Language    string `json:"language"`
}

type phaseSummaryResponse struct {
	phases.PhaseSummary
	StatusLabel string `json:"status_label"`
}

func presentSummary(summary phases.PhaseSummary, labels presenters.Labeler) phaseSummaryResponse {
	return phaseSummaryResponse{PhaseSummary: summary, StatusLabel: labels.Phase(summary.Status)}
}

// PhaseCreate adds a PLANNING phase to a campaign.
func PhaseCreate(svc phases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "phase service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		campaignID, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload phaseCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), payload.toInput(campaignID, actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		labels := presenters.FromRequest(r)
		responses.WriteSuccessStatus(w, http.StatusCreated, phaseResponse{PhaseView: view, StatusLabel: labels.Phase(view.Status), Language: labels.Language()})
	}
}

// PhaseList returns a campaign's phases in position order, optionally
// filtered by ?status=.
func PhaseList(svc phases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "phase service unavailable"))
			return
		}
		campaignID, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter *enums.PhaseStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePhaseStatus(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			filter = &status
		}

		rows, err := svc.List(r.Context(), campaignID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		labels := presenters.FromRequest(r)
		out := make([]phaseSummaryResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, presentSummary(row, labels))
		}
		responses.WriteSuccess(w, out)
	}
}

func PhaseGet(svc phases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "phase service unavailable"))
			return
		}
		phaseID, err := validators.ParseUUIDParam(r, "phaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), phaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		labels := presenters.FromRequest(r)
		responses.WriteSuccess(w, phaseResponse{PhaseView: view, StatusLabel: labels.Phase(view.Status), Language: labels.Language()})
	}
}

// PhaseUpdateBudget replaces the bucket split of a PLANNING phase.
func PhaseUpdateBudget(svc phases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "phase service unavailable"))
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

		var payload phaseBudgetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.UpdateBudget(r.Context(), phases.UpdateBudgetInput{
			PhaseID:       phaseID,
			TotalFunds:    payload.TotalFunds,
			IngredientPct: payload.IngredientBudgetPct,
			CookingPct:    payload.CookingBudgetPct,
			DeliveryPct:   payload.DeliveryBudgetPct,
			Actor:         actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentSummary(*summary, presenters.FromRequest(r)))
	}
}

type terminateFunc func(svc phases.Service) func(ctx context.Context, phaseID uuid.UUID, actor phases.Actor, reason string) (*phases.PhaseSummary, error)

// PhaseCancel moves a phase into CANCELLED with a mandatory reason.
func PhaseCancel(svc phases.Service, logg *logger.Logger) http.HandlerFunc {
	return phaseTerminate(svc, logg, func(svc phases.Service) func(context.Context, uuid.UUID, phases.Actor, string) (*phases.PhaseSummary, error) {
		return svc.Cancel
	})
}

func PhaseFail(svc phases.Service, logg *logger.Logger) http.HandlerFunc {
	return phaseTerminate(svc, logg, func(svc phases.Service) func(context.Context, uuid.UUID, phases.Actor, string) (*phases.PhaseSummary, error) {
		return svc.Fail
	})
}

func phaseTerminate(svc phases.Service, logg *logger.Logger, pick terminateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "phase service unavailable"))
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

		var payload reasonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := pick(svc)(r.Context(), phaseID, actor, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentSummary(*summary, presenters.FromRequest(r)))
	}
}
