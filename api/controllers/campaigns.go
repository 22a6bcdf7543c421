package controllers

import (
	"net/http"
	"strings"

	"github.com/foodrelief/relief-backend/api/presenters"
	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/campaigns"
	"github.com/foodrelief/relief-backend/internal/phases"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type campaignCreateRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	TargetAmount   int64  `json:"target_amount" validate:"gt=0"`
	ReceivedAmount int64  `json:"received_amount" validate:"gte=0"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
}

func (r campaignCreateRequest) toInput(actor phases.Actor) campaigns.CreateInput {
	return campaigns.CreateInput{
		Title:          validators.SanitizeString(r.Title, 200),
		TargetAmount:   r.TargetAmount,
		ReceivedAmount: r.ReceivedAmount,
		Currency:       strings.ToUpper(strings.TrimSpace(r.Currency)),
		Actor:          actor,
	}
}

type labeledPhaseStatus struct {
	campaigns.PhaseStatusView
	StatusLabel string `json:"status_label"`
}

type campaignResponse struct {
	*campaigns.CampaignView
	StatusLabel string               `json:"status_label"`
	Phases      []labeledPhaseStatus `json:"phases"`
	Language    string               `json:"language"`
}

func presentCampaign(view *campaigns.CampaignView, labels presenters.Labeler) campaignResponse {
	out := campaignResponse{
		CampaignView: view,
		StatusLabel:  labels.Campaign(view.Status),
		Phases:       make([]labeledPhaseStatus, 0, len(view.Phases)),
		Language:     labels.Language(),
	}
	for _, phase := range view.Phases {
		out.Phases = append(out.Phases, labeledPhaseStatus{PhaseStatusView: phase, StatusLabel: labels.Phase(phase.Status)})
	}
	return out
}

// CampaignCreate opens a new fundraising campaign.
func CampaignCreate(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload campaignCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Create(r.Context(), payload.toInput(actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, presentCampaign(view, presenters.FromRequest(r)))
	}
}

func CampaignGet(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "campaign service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "campaignId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presentCampaign(view, presenters.FromRequest(r)))
	}
}
