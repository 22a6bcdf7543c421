package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/foodrelief/relief-backend/api/responses"
	"github.com/foodrelief/relief-backend/api/validators"
	"github.com/foodrelief/relief-backend/internal/phases"
	"github.com/foodrelief/relief-backend/internal/proofs"
	"github.com/foodrelief/relief-backend/pkg/enums"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type proofSubmitRequest struct {
	RequestKind   string   `json:"request_kind" validate:"omitempty,oneof=INGREDIENT OPERATION ingredient operation"`
	RequestID     string   `json:"request_id" validate:"required,uuid"`
	MediaKeys     []string `json:"media_keys" validate:"required,min=1,dive,required"`
	ClaimedAmount int64    `json:"claimed_amount" validate:"gte=0"`
}

func (r proofSubmitRequest) toInput(actor phases.Actor) (proofs.SubmitInput, error) {
	requestID, err := validators.ParseUUID(r.RequestID, "request_id")
	if err != nil {
		return proofs.SubmitInput{}, err
	}
	keys := make([]string, 0, len(r.MediaKeys))
	for _, key := range r.MediaKeys {
		keys = append(keys, strings.TrimSpace(key))
	}
	return proofs.SubmitInput{
		RequestKind:   enums.ExpenseRequestKind(strings.ToUpper(strings.TrimSpace(r.RequestKind))),
		RequestID:     requestID,
		MediaKeys:     keys,
		ClaimedAmount: r.ClaimedAmount,
		Actor:         actor,
	}, nil
}

// ExpenseProofSubmit attaches receipt evidence to a disbursed request.
func ExpenseProofSubmit(svc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "proof service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload proofSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ExpenseProofGet(svc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return handleGet(svc != nil, "proof", "proofId", logg, func(ctx context.Context, id uuid.UUID) (any, error) {
		return svc.Get(ctx, id)
	})
}

// ExpenseProofApprove accepts a proof. The note body is optional.
func ExpenseProofApprove(svc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return expenseProofReview(svc, logg, false)
}

// ExpenseProofReject requires a note explaining the rejection.
func ExpenseProofReject(svc proofs.Service, logg *logger.Logger) http.HandlerFunc {
	return expenseProofReview(svc, logg, true)
}

func expenseProofReview(svc proofs.Service, logg *logger.Logger, reject bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "proof service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proofID, err := validators.ParseUUIDParam(r, "proofId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload noteRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var result *proofs.ProofResult
		if reject {
			result, err = svc.Reject(r.Context(), proofID, actor, payload.Note)
		} else {
			result, err = svc.Approve(r.Context(), proofID, actor, payload.Note)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
